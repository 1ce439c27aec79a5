package imaging

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ironsheep/image-pde/internal/grid"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"gray", Gray, false},
		{" RGB ", RGB, false},
		{"Lab", Lab, false},
		{"cmyk", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if Mode(7).String() != "mode(7)" {
		t.Errorf("unknown mode String() = %s", Mode(7))
	}
}

func TestToGrid_Layout(t *testing.T) {
	img := image.NewGray(image.Rect(5, 7, 8, 9))
	for i := range img.Pix {
		img.Pix[i] = uint8(10 * i)
	}

	g, err := ToGrid(img, Gray)
	if err != nil {
		t.Fatalf("ToGrid failed: %v", err)
	}

	want := grid.NewRegion([]int{5, 7}, []int{3, 2})
	if diff := cmp.Diff(want, g.Region()); diff != "" {
		t.Errorf("region mismatch (-want +got):\n%s", diff)
	}
	if v := g.Value([]int{6, 8}, 0); v != 40 {
		t.Errorf("value at (6,8) = %v, want 40", v)
	}
}

func TestRoundTrip(t *testing.T) {
	img := createPatternImage(8, 6)

	for _, mode := range []Mode{Gray, RGB, Lab} {
		t.Run(mode.String(), func(t *testing.T) {
			g, err := ToGrid(img, mode)
			if err != nil {
				t.Fatalf("ToGrid failed: %v", err)
			}
			if g.Components() != mode.Components() {
				t.Fatalf("components = %d, want %d", g.Components(), mode.Components())
			}

			out, err := FromGrid(g, mode)
			if err != nil {
				t.Fatalf("FromGrid failed: %v", err)
			}
			back, err := ToGrid(out, mode)
			if err != nil {
				t.Fatalf("ToGrid of result failed: %v", err)
			}
			if diff := cmp.Diff(g.Data(), back.Data(), cmpopts.EquateApprox(0, 1)); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestToGrid_RGBValues(t *testing.T) {
	img := createInMemoryImage(2, 2, color.RGBA{255, 128, 0, 255})
	g, err := ToGrid(img, RGB)
	if err != nil {
		t.Fatal(err)
	}
	got := g.At([]int{1, 1})
	want := []float64{255, 128, 0}
	for c := range want {
		if math.Abs(got[c]-want[c]) > 1e-9 {
			t.Errorf("component %d = %v, want %v", c, got[c], want[c])
		}
	}
}

func TestToGrid_LabWhite(t *testing.T) {
	g, err := ToGrid(createInMemoryImage(1, 1, color.White), Lab)
	if err != nil {
		t.Fatal(err)
	}
	px := g.At([]int{0, 0})
	if math.Abs(px[0]-100) > 0.01 || math.Abs(px[1]) > 0.01 || math.Abs(px[2]) > 0.01 {
		t.Errorf("white in Lab = %v, want (100, 0, 0)", px)
	}
}

func TestFromGrid_ClampsAndChecksShape(t *testing.T) {
	g, err := grid.FromSlice(grid.RegionOfSize(3, 1), 1, []float64{-20, 300, math.NaN()})
	if err != nil {
		t.Fatal(err)
	}
	img, err := FromGrid(g, Gray)
	if err != nil {
		t.Fatalf("FromGrid failed: %v", err)
	}
	gray := img.(*image.Gray)
	if diff := cmp.Diff([]uint8{0, 255, 0}, gray.Pix); diff != "" {
		t.Errorf("pixels mismatch (-want +got):\n%s", diff)
	}

	if _, err := FromGrid(g, RGB); err == nil {
		t.Error("expected component mismatch error")
	}
	g3, _ := grid.New(grid.RegionOfSize(2, 2, 2), 1)
	if _, err := FromGrid(g3, Gray); err == nil {
		t.Error("expected dimension error")
	}
}

func TestAddNoise(t *testing.T) {
	g, err := grid.New(grid.RegionOfSize(32, 16), 3)
	if err != nil {
		t.Fatal(err)
	}
	g.Fill(100)

	if err := AddNoise(g, 20); err != nil {
		t.Fatalf("AddNoise failed: %v", err)
	}
	changed := 0
	for i := 0; i < len(g.Data()); i += 3 {
		px := g.Data()[i : i+3]
		if px[0] != px[1] || px[1] != px[2] {
			t.Fatalf("noise should be monochrome, got %v", px)
		}
		if px[0] != 100 {
			changed++
		}
		if math.Abs(px[0]-100) > 20 {
			t.Fatalf("noise exceeds amplitude: %v", px[0])
		}
	}
	if changed == 0 {
		t.Error("AddNoise changed nothing")
	}

	line, _ := grid.New(grid.RegionOfSize(4), 1)
	if err := AddNoise(line, 1); err == nil {
		t.Error("expected error for 1-D grid")
	}
}
