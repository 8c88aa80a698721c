package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/taubenschiesser/hardware-monitor/internal/frame"
	"github.com/taubenschiesser/hardware-monitor/internal/models"
	"github.com/taubenschiesser/hardware-monitor/pkg/s3"
)

// Backend persists detection events.
type Backend interface {
	RecordDetection(ctx context.Context, record models.DetectionRecord) error
	UpdateLastDetection(ctx context.Context, deviceID string, at time.Time) error
}

// Archive stores frame images. It is optional.
type Archive interface {
	UploadObject(ctx context.Context, bucketName, objectName string, data []byte, contentType string) (*s3.UploadResult, error)
}

// Analysis is everything known about one positive detection.
type Analysis struct {
	Original *frame.Frame
	Zoomed   *frame.Frame
	Zoom     float64
	Result   *models.DetectionResult
	Target   *models.Detection
}

// Recorder persists detections through the backend, optionally archiving
// the frames in object storage instead of inlining them.
type Recorder struct {
	backend Backend
	archive Archive
	bucket  string
	clock   clockwork.Clock
	logger  zerolog.Logger
}

// NewRecorder creates a Recorder. archive may be nil.
func NewRecorder(backend Backend, archive Archive, bucket string, clock clockwork.Clock, logger zerolog.Logger) *Recorder {
	return &Recorder{
		backend: backend,
		archive: archive,
		bucket:  bucket,
		clock:   clock,
		logger:  logger.With().Str("component", "detection_recorder").Logger(),
	}
}

// Record persists the analysis and then stamps the device's last detection.
func (r *Recorder) Record(ctx context.Context, device models.Device, a Analysis) error {
	now := r.clock.Now().UTC()
	deviceID := device.Identifier()

	original, err := r.image(ctx, deviceID, "original", now, a.Original)
	if err != nil {
		return err
	}
	zoomed, err := r.image(ctx, deviceID, "zoomed", now, a.Zoomed)
	if err != nil {
		return err
	}

	record := models.DetectionRecord{
		DeviceID:        deviceID,
		OriginalImage:   original,
		ZoomedImage:     zoomed,
		Detections:      a.Result.Detections,
		TargetBird:      a.Target,
		BirdCount:       a.Result.BirdCount,
		ConfidenceLevel: a.Result.ConfidenceLevel,
		ProcessingTime:  a.Result.ProcessingTime,
		ZoomFactor:      a.Zoom,
		ImageInfo: models.ImageInfo{
			OriginalSize: a.Original.Size(),
			ZoomedSize:   a.Zoomed.Size(),
		},
		Timestamp: now,
	}
	if record.Detections == nil {
		record.Detections = []models.Detection{}
	}

	if err := r.backend.RecordDetection(ctx, record); err != nil {
		return fmt.Errorf("failed to record detection for %s: %w", deviceID, err)
	}
	r.logger.Info().
		Str("device", device.Address()).
		Int("bird_count", record.BirdCount).
		Float64("zoom", record.ZoomFactor).
		Msg("Detection saved")

	if err := r.backend.UpdateLastDetection(ctx, deviceID, now); err != nil {
		r.logger.Warn().Err(err).Str("device_id", deviceID).Msg("Failed to update last detection time")
	}
	return nil
}

// image returns a URL for f in the archive, or an inline data URI when no
// archive is configured or the upload fails.
func (r *Recorder) image(ctx context.Context, deviceID, kind string, at time.Time, f *frame.Frame) (string, error) {
	data, err := f.JPEG()
	if err != nil {
		return "", err
	}
	if r.archive != nil {
		name := fmt.Sprintf("%s/%s-%s-%s.jpg", deviceID, at.Format("20060102T150405Z"), uuid.NewString()[:8], kind)
		result, err := r.archive.UploadObject(ctx, r.bucket, name, data, "image/jpeg")
		if err == nil {
			return result.URL, nil
		}
		r.logger.Warn().Err(err).Str("object", name).Msg("Frame upload failed, inlining image")
	}
	return frame.JPEGDataURI(data), nil
}
