// Package frame holds decoded camera frames and the few image operations the
// control loop needs.
package frame

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png"

	"github.com/taubenschiesser/hardware-monitor/internal/models"
)

// JPEGQuality is used for every re-encoded frame.
const JPEGQuality = 90

var ErrEmptyFrame = errors.New("empty frame")

// Frame is a decoded camera image.
type Frame struct {
	Image image.Image
}

// Decode parses JPEG or PNG data.
func Decode(data []byte) (*Frame, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, ErrEmptyFrame
	}
	return &Frame{Image: img}, nil
}

// Width in pixels.
func (f *Frame) Width() int { return f.Image.Bounds().Dx() }

// Height in pixels.
func (f *Frame) Height() int { return f.Image.Bounds().Dy() }

// Size returns the frame dimensions.
func (f *Frame) Size() models.Size {
	return models.Size{Width: f.Width(), Height: f.Height()}
}

// JPEG encodes the frame.
func (f *Frame) JPEG() ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, f.Image, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// JPEGDataURI wraps encoded JPEG data in a base64 data URI.
func JPEGDataURI(data []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
}

// Crop copies the given rectangle, in frame-relative pixels, into a new frame
// whose bounds start at the origin.
func (f *Frame) Crop(x, y, width, height int) (*Frame, error) {
	b := f.Image.Bounds()
	rect := image.Rect(x, y, x+width, y+height).Add(b.Min)
	if width <= 0 || height <= 0 || !rect.In(b) {
		return nil, fmt.Errorf("crop %v outside frame %v", rect, b)
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), f.Image, rect.Min, draw.Src)
	return &Frame{Image: dst}, nil
}
