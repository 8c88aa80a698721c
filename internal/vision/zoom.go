package vision

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/taubenschiesser/hardware-monitor/internal/capture"
	"github.com/taubenschiesser/hardware-monitor/internal/constants"
	"github.com/taubenschiesser/hardware-monitor/internal/frame"
	"github.com/taubenschiesser/hardware-monitor/internal/models"
)

var ErrResolutionMismatch = errors.New("frame resolution does not match stream quality")

// Resolutions a local test image may have for each declared stream quality.
var expectedResolutions = map[capture.Quality][]models.Size{
	capture.QualityHigh: {{Width: 2560, Height: 1440}, {Width: 1920, Height: 1080}, {Width: 1280, Height: 720}},
	capture.QualityLow:  {{Width: 640, Height: 360}, {Width: 640, Height: 480}, {Width: 320, Height: 240}},
}

// CheckResolution verifies a frame size against the quality's set, in either
// orientation.
func CheckResolution(size models.Size, quality capture.Quality) error {
	for _, r := range expectedResolutions[quality] {
		if (size.Width == r.Width && size.Height == r.Height) || (size.Width == r.Height && size.Height == r.Width) {
			return nil
		}
	}
	return fmt.Errorf("%dx%d for %s quality: %w", size.Width, size.Height, quality, ErrResolutionMismatch)
}

// Zoomer applies waypoint zoom to captured frames.
type Zoomer struct {
	logger zerolog.Logger
}

// NewZoomer creates a Zoomer.
func NewZoomer(logger zerolog.Logger) *Zoomer {
	return &Zoomer{logger: logger.With().Str("component", "zoom").Logger()}
}

// Apply center-crops f by the zoom of the device's waypoint at routeIndex and
// returns the result with the zoom actually applied. Frames are returned
// unchanged with zoom 1 when the device is not on a zoomed waypoint, or when
// a file-backed frame has an unexpected resolution.
func (z *Zoomer) Apply(f *frame.Frame, device models.Device, src capture.Source, routeIndex int) (*frame.Frame, float64) {
	wp, ok := device.WaypointAt(routeIndex)
	if !ok {
		return f, constants.DefaultZoom
	}
	zoom := wp.ZoomFactor()
	if zoom <= constants.DefaultZoom {
		return f, constants.DefaultZoom
	}

	if src.IsFile() {
		if err := CheckResolution(f.Size(), src.Quality); err != nil {
			z.logger.Warn().Err(err).Str("device", device.Address()).Msg("Skipping zoom for local image")
			return f, constants.DefaultZoom
		}
	}

	w, h := f.Width(), f.Height()
	newW, newH := int(float64(w)/zoom), int(float64(h)/zoom)
	x, y := (w-newW)/2, (h-newH)/2
	zoomed, err := f.Crop(x, y, newW, newH)
	if err != nil {
		z.logger.Warn().Err(err).Str("device", device.Address()).Msg("Zoom crop failed")
		return f, constants.DefaultZoom
	}

	z.logger.Info().
		Str("device", device.Address()).
		Float64("zoom", zoom).
		Str("from", fmt.Sprintf("%dx%d", w, h)).
		Str("to", fmt.Sprintf("%dx%d", newW, newH)).
		Msg("Applied zoom")
	return zoomed, zoom
}
