package recorder

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/taubenschiesser/hardware-monitor/internal/frame"
	"github.com/taubenschiesser/hardware-monitor/internal/models"
	"github.com/taubenschiesser/hardware-monitor/pkg/s3"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) RecordDetection(ctx context.Context, record models.DetectionRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *mockBackend) UpdateLastDetection(ctx context.Context, deviceID string, at time.Time) error {
	return m.Called(ctx, deviceID, at).Error(0)
}

type mockArchive struct {
	mock.Mock
}

func (m *mockArchive) UploadObject(ctx context.Context, bucketName, objectName string, data []byte, contentType string) (*s3.UploadResult, error) {
	args := m.Called(ctx, bucketName, objectName, data, contentType)
	result, _ := args.Get(0).(*s3.UploadResult)
	return result, args.Error(1)
}

var now = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func testAnalysis() Analysis {
	target := &models.Detection{Class: "bird", Confidence: 0.9, BBox: &models.BoundingBox{X: 1, Y: 2, Width: 3, Height: 4}}
	return Analysis{
		Original: &frame.Frame{Image: image.NewRGBA(image.Rect(0, 0, 64, 48))},
		Zoomed:   &frame.Frame{Image: image.NewRGBA(image.Rect(0, 0, 32, 24))},
		Zoom:     2,
		Result: &models.DetectionResult{
			BirdsFound:      true,
			BirdCount:       1,
			ConfidenceLevel: 0.9,
			ProcessingTime:  0.3,
			Detections:      []models.Detection{*target},
		},
		Target: target,
	}
}

func TestRecorder_Record_InlineImages(t *testing.T) {
	// Setup
	backend := new(mockBackend)
	var recorded models.DetectionRecord
	backend.On("RecordDetection", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		recorded = args.Get(1).(models.DetectionRecord)
	}).Return(nil)
	backend.On("UpdateLastDetection", mock.Anything, "dev-1", now).Return(nil)
	rec := NewRecorder(backend, nil, "frames", clockwork.NewFakeClockAt(now), zerolog.Nop())

	// Execute
	err := rec.Record(context.Background(), models.Device{ID: "dev-1"}, testAnalysis())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "dev-1", recorded.DeviceID)
	assert.True(t, strings.HasPrefix(recorded.OriginalImage, "data:image/jpeg;base64,"))
	assert.True(t, strings.HasPrefix(recorded.ZoomedImage, "data:image/jpeg;base64,"))
	assert.Equal(t, models.Size{Width: 64, Height: 48}, recorded.ImageInfo.OriginalSize)
	assert.Equal(t, models.Size{Width: 32, Height: 24}, recorded.ImageInfo.ZoomedSize)
	assert.Equal(t, 2.0, recorded.ZoomFactor)
	assert.Equal(t, 0.9, recorded.TargetBird.Confidence)
	assert.Equal(t, now, recorded.Timestamp)
	backend.AssertExpectations(t)
}

func TestRecorder_Record_ArchivedImages(t *testing.T) {
	// Setup
	backend := new(mockBackend)
	var recorded models.DetectionRecord
	backend.On("RecordDetection", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		recorded = args.Get(1).(models.DetectionRecord)
	}).Return(nil)
	backend.On("UpdateLastDetection", mock.Anything, "dev-1", now).Return(nil)

	archive := new(mockArchive)
	archive.On("UploadObject", mock.Anything, "frames", mock.MatchedBy(func(name string) bool {
		return strings.HasPrefix(name, "dev-1/20250501T120000Z-") && strings.HasSuffix(name, "-original.jpg")
	}), mock.Anything, "image/jpeg").Return(&s3.UploadResult{URL: "https://s3/original"}, nil)
	archive.On("UploadObject", mock.Anything, "frames", mock.MatchedBy(func(name string) bool {
		return strings.HasSuffix(name, "-zoomed.jpg")
	}), mock.Anything, "image/jpeg").Return(nil, errors.New("bucket quota exceeded"))

	rec := NewRecorder(backend, archive, "frames", clockwork.NewFakeClockAt(now), zerolog.Nop())

	// Execute
	err := rec.Record(context.Background(), models.Device{ID: "dev-1"}, testAnalysis())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "https://s3/original", recorded.OriginalImage)
	assert.True(t, strings.HasPrefix(recorded.ZoomedImage, "data:image/jpeg;base64,"))
	archive.AssertExpectations(t)
}

func TestRecorder_Record_BackendFailureSkipsLastDetection(t *testing.T) {
	backend := new(mockBackend)
	backend.On("RecordDetection", mock.Anything, mock.Anything).Return(errors.New("status 500"))
	rec := NewRecorder(backend, nil, "frames", clockwork.NewFakeClockAt(now), zerolog.Nop())

	err := rec.Record(context.Background(), models.Device{ID: "dev-1"}, testAnalysis())

	assert.ErrorContains(t, err, "status 500")
	backend.AssertNotCalled(t, "UpdateLastDetection", mock.Anything, mock.Anything, mock.Anything)
}
