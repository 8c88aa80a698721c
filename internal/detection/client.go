package detection

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/taubenschiesser/hardware-monitor/internal/constants"
	"github.com/taubenschiesser/hardware-monitor/internal/models"
	http_utils "github.com/taubenschiesser/hardware-monitor/pkg/httpUtils"
)

const detectPath = "/detect_birds_optimized"

// Client talks to the bird detection service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a detection client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "detection_client").Logger(),
	}
}

// Detect submits one JPEG frame and returns the service's findings.
func (c *Client) Detect(ctx context.Context, jpeg []byte) (*models.DetectionResult, error) {
	body, contentType, err := http_utils.MultipartBody(nil, http_utils.FormFile{
		Field:       "file",
		FileName:    "camera.jpg",
		ContentType: "image/jpeg",
		Data:        jpeg,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+detectPath, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build detection request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detection request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := http_utils.CheckStatus(resp); err != nil {
		return nil, err
	}
	var result models.DetectionResult
	if err := http_utils.DecodeJSON(resp, &result); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Bool("birds_found", result.BirdsFound).
		Int("bird_count", result.BirdCount).
		Float64("processing_time", result.ProcessingTime).
		Msg("Detection completed")
	return &result, nil
}

// SelectTarget returns the most confident bird detection, or nil.
func SelectTarget(detections []models.Detection) *models.Detection {
	var best *models.Detection
	for i := range detections {
		d := &detections[i]
		if d.Class != constants.BirdClass {
			continue
		}
		if best == nil || d.Confidence > best.Confidence {
			best = d
		}
	}
	if best == nil {
		return nil
	}
	target := *best
	return &target
}
