package targeting

import "github.com/taubenschiesser/hardware-monitor/internal/models"

// Correct converts a bounding box in a zoomed frame of w x h pixels into the
// rotation and tilt offsets, in degrees, that centre the camera on it. The
// field of view narrows linearly with zoom. Positive tilt points up, so the
// image y axis is inverted.
func Correct(bbox models.BoundingBox, w, h int, zoom, hfov, vfov float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if zoom < 1 {
		zoom = 1
	}
	offsetX := bbox.X + bbox.Width/2 - float64(w)/2
	offsetY := bbox.Y + bbox.Height/2 - float64(h)/2

	deltaRot := offsetX * (hfov / zoom) / float64(w)
	deltaTilt := -offsetY * (vfov / zoom) / float64(h)
	return deltaRot, deltaTilt
}
