package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/taubenschiesser/hardware-monitor/internal/models"
	http_utils "github.com/taubenschiesser/hardware-monitor/pkg/httpUtils"
)

// ErrRateLimited is returned when the inventory answers 429.
var ErrRateLimited = errors.New("inventory backend rate limited the request")

// Client is the inventory backend API used by the monitor.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a backend client. token is sent as a bearer token on
// authenticated endpoints.
func NewClient(baseURL, token string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "backend_client").Logger(),
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, auth bool) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s %s: %w", method, path, err)
	}
	if auth && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, payload any, auth bool) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize request for %s: %w", path, err)
	}
	req, err := c.newRequest(ctx, method, path, bytes.NewReader(data), auth)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do sends req and decodes a JSON response into out when out is not nil.
func (c *Client) do(req *http.Request, out any, accepted ...int) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	if err := http_utils.CheckStatus(resp, accepted...); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return http_utils.DecodeJSON(resp, out)
}

// ListDevices returns the full device inventory.
func (c *Client) ListDevices(ctx context.Context) ([]models.Device, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/devices", nil, true)
	if err != nil {
		return nil, err
	}
	var devices []models.Device
	if err := c.do(req, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// GetTenantSettings returns the messaging settings of a tenant.
func (c *Client) GetTenantSettings(ctx context.Context, tenant string) (*models.MQTTSettings, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/users/"+url.PathEscape(tenant)+"/settings", nil, true)
	if err != nil {
		return nil, err
	}
	var resp models.UserSettingsResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp.Settings.MQTT, nil
}

// RecordDetection persists a detection event.
func (c *Client) RecordDetection(ctx context.Context, record models.DetectionRecord) error {
	req, err := c.jsonRequest(ctx, http.MethodPost, "/api/hardware/detection", record, true)
	if err != nil {
		return err
	}
	return c.do(req, nil, http.StatusOK, http.StatusCreated)
}

// UpdateLastDetection stamps the device's last detection time.
func (c *Client) UpdateLastDetection(ctx context.Context, deviceID string, at time.Time) error {
	req, err := c.jsonRequest(ctx, http.MethodPut, "/api/devices/"+url.PathEscape(deviceID),
		map[string]time.Time{"lastDetection": at}, true)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// SendDeviceStatus reports device liveness. The endpoint is unauthenticated.
func (c *Client) SendDeviceStatus(ctx context.Context, deviceID string, report models.DeviceStatusReport) error {
	req, err := c.jsonRequest(ctx, http.MethodPost, "/api/devices/"+url.PathEscape(deviceID)+"/status", report, false)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// SubmitStreamFrame forwards a live camera frame to the backend's CV endpoint.
func (c *Client) SubmitStreamFrame(ctx context.Context, deviceID string, jpeg []byte) error {
	body, contentType, err := http_utils.MultipartBody(map[string]string{"deviceId": deviceID}, http_utils.FormFile{
		Field:       "image",
		FileName:    "camera.jpg",
		ContentType: "image/jpeg",
		Data:        jpeg,
	})
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/cv/detect", body, true)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	return c.do(req, nil)
}
