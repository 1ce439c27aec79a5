package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// EncodedImage is a PNG image ready to return from an MCP tool.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Encode returns img as a base64 PNG.
func Encode(img image.Image) (*EncodedImage, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return &EncodedImage{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// CropImage extracts rect from img and resizes the result by scale when
// scale is positive and not 1. The result's bounds start at (0,0).
func CropImage(img image.Image, rect image.Rectangle, scale float64) (image.Image, error) {
	bounds := img.Bounds()
	if !rect.In(bounds) {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
			rect.Min.X, rect.Min.Y, rect.Max.X, rect.Max.Y, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}
	if rect.Empty() {
		return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
	}

	var cropped image.Image = imaging.Crop(img, rect)
	if scale != 1.0 && scale > 0 {
		w := max(int(float64(rect.Dx())*scale), 1)
		h := max(int(float64(rect.Dy())*scale), 1)
		cropped = imaging.Resize(cropped, w, h, imaging.Lanczos)
	}
	return cropped, nil
}

// Crop extracts the region (x1,y1)-(x2,y2) and returns it encoded.
func Crop(img image.Image, x1, y1, x2, y2 int, scale float64) (*EncodedImage, error) {
	if x1 >= x2 || y1 >= y2 {
		return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
	}
	cropped, err := CropImage(img, image.Rect(x1, y1, x2, y2), scale)
	if err != nil {
		return nil, err
	}
	return Encode(cropped)
}

// NamedRegion returns the rectangle of a named part of bounds: "full",
// "top-left", "top-right", "bottom-left", "bottom-right", "top-half",
// "bottom-half", "left-half", "right-half" or "center" (the middle 50%).
func NamedRegion(bounds image.Rectangle, name string) (image.Rectangle, error) {
	w, h := bounds.Dx(), bounds.Dy()
	midX, midY := w/2, h/2

	var r image.Rectangle
	switch name {
	case "", "full":
		r = image.Rect(0, 0, w, h)
	case "top-left":
		r = image.Rect(0, 0, midX, midY)
	case "top-right":
		r = image.Rect(midX, 0, w, midY)
	case "bottom-left":
		r = image.Rect(0, midY, midX, h)
	case "bottom-right":
		r = image.Rect(midX, midY, w, h)
	case "top-half":
		r = image.Rect(0, 0, w, midY)
	case "bottom-half":
		r = image.Rect(0, midY, w, h)
	case "left-half":
		r = image.Rect(0, 0, midX, h)
	case "right-half":
		r = image.Rect(midX, 0, w, h)
	case "center":
		r = image.Rect(w/4, h/4, w-w/4, h-h/4)
	default:
		return image.Rectangle{}, fmt.Errorf("unknown region: %s", name)
	}
	return r.Add(bounds.Min), nil
}
