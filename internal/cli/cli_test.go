package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI with args and returns its stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeImage(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func uniformImage(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func rampImage(w, h, shift int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetGray(x, y, color.Gray{Y: uint8(max(x-shift, 0) * 8)})
		}
	}
	return img
}

func readImage(t *testing.T, path string) image.Image {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, _, err := image.Decode(f)
	require.NoError(t, err)
	return img
}

func TestSetVersion(t *testing.T) {
	SetVersion("1.0.0", "2024-01-01", "abc123")
	t.Cleanup(func() { SetVersion("dev", "unknown", "unknown") })

	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "image-pde 1.0.0")
	assert.Contains(t, out, "abc123")
	assert.Contains(t, out, "2024-01-01")
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	in := writeImage(t, dir, "in.png", uniformImage(20, 16, 77))
	out := filepath.Join(dir, "out.png")
	plot := filepath.Join(dir, "conv.png")

	_, err := execute(t, "", "run", "--filter", "heat", "--in", in, "--out", out,
		"-n", "3", "--workers", "2", "--plot", plot)
	require.NoError(t, err)

	img := readImage(t, out)
	assert.Equal(t, image.Rect(0, 0, 20, 16), img.Bounds())
	r, _, _, _ := img.At(10, 8).RGBA()
	assert.Equal(t, uint32(77), r>>8)

	info, err := os.Stat(plot)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestRun_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	in := writeImage(t, dir, "in.png", uniformImage(8, 8, 10))
	out := filepath.Join(dir, "out.jpg")
	cfg := filepath.Join(dir, "pde.toml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
[solver]
max_iterations = 2
boundary = "clamp"

[output]
mode = "rgb"
`), 0o644))

	_, err := execute(t, "", "--config", cfg, "run", "--filter", "vector", "--in", in, "--out", out)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 8), readImage(t, out).Bounds())
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	in := writeImage(t, dir, "in.png", uniformImage(8, 8, 10))
	out := filepath.Join(dir, "out.png")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown filter", []string{"run", "--filter", "blur", "--in", in, "--out", out}, "unknown filter"},
		{"bad boundary", []string{"run", "--boundary", "sticky", "--in", in, "--out", out}, "boundary"},
		{"missing input", []string{"run", "--in", filepath.Join(dir, "nope.png"), "--out", out}, "nope.png"},
		{"missing flag", []string{"run", "--in", in}, "out"},
		{"missing config", []string{"--config", filepath.Join(dir, "nope.toml"), "run", "--in", in, "--out", out}, "nope.toml"},
		{"curvature flow in rgb", []string{"run", "--filter", "curvature-flow", "--mode", "rgb", "--in", in, "--out", out}, "CONFIGURATION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBatch(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	var files []string
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		files = append(files, writeImage(t, dir, name, uniformImage(12, 12, 50)))
	}

	args := append([]string{"batch", "--filter", "curvature", "--out-dir", outDir, "-j", "2", "-n", "2"}, files...)
	_, err := execute(t, "", args...)
	require.NoError(t, err)

	for _, name := range []string{"a.png", "b.png", "c.png"} {
		assert.Equal(t, image.Rect(0, 0, 12, 12), readImage(t, filepath.Join(outDir, name)).Bounds())
	}
}

func TestBatch_StopsOnFailure(t *testing.T) {
	dir := t.TempDir()
	good := writeImage(t, dir, "good.png", uniformImage(8, 8, 1))

	_, err := execute(t, "", "batch", "--out-dir", filepath.Join(dir, "out"), good, filepath.Join(dir, "missing.png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.png")
}

func TestBatch_RejectsSharedOutputName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "a"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "b"), 0o755))
	first := writeImage(t, filepath.Join(dir, "a"), "scan.png", uniformImage(8, 8, 1))
	second := writeImage(t, filepath.Join(dir, "b"), "scan.png", uniformImage(8, 8, 2))
	outDir := filepath.Join(dir, "out")

	_, err := execute(t, "", "batch", "--out-dir", outDir, first, second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "would both write scan.png")

	_, err = os.Stat(filepath.Join(outDir, "scan.png"))
	assert.True(t, os.IsNotExist(err), "nothing is filtered when names collide")
}

func TestOutputNames(t *testing.T) {
	names, err := outputNames([]string{"in/a.png", "in/b.jpg", "other/c.png"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names)

	_, err = outputNames([]string{"in/a.png", "in/a.jpg"})
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	dir := t.TempDir()
	fixed := writeImage(t, dir, "fixed.png", rampImage(24, 8, 0))
	moving := writeImage(t, dir, "moving.png", rampImage(24, 8, 2))
	out := filepath.Join(dir, "warped.png")

	_, err := execute(t, "", "register", "--fixed", fixed, "--moving", moving, "--out", out,
		"-n", "10", "--sigma", "1.5")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 24, 8), readImage(t, out).Bounds())
}

func TestServe(t *testing.T) {
	in := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}` + "\n"

	out, err := execute(t, in, "serve")
	require.NoError(t, err)

	var resp struct {
		ID     int `json:"id"`
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 1, resp.ID)
	assert.NotEmpty(t, resp.Result.Tools)
}
