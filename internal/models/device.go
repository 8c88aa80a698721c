package models

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/taubenschiesser/hardware-monitor/internal/constants"
)

// Device is one taubenschiesser unit as served by the inventory backend.
type Device struct {
	ID              string                `json:"_id"`
	DeviceID        string                `json:"deviceId,omitempty"`
	Name            string                `json:"name"`
	Owner           OwnerRef              `json:"owner"`
	Status          string                `json:"status"`
	MonitorStatus   string                `json:"monitorStatus"`
	Sleep           bool                  `json:"sleep"`
	Taubenschiesser TaubenschiesserConfig `json:"taubenschiesser"`
	Camera          CameraConfig          `json:"camera"`
	Actions         ActionConfig          `json:"actions"`
}

// TaubenschiesserConfig holds the actuator's network settings.
type TaubenschiesserConfig struct {
	IP string `json:"ip"`
}

// CameraConfig describes where frames for a device come from.
type CameraConfig struct {
	Type           string     `json:"type"`
	Tapo           TapoConfig `json:"tapo"`
	DirectURL      string     `json:"directUrl,omitempty"`
	RTSPURL        string     `json:"rtspUrl,omitempty"`
	UseLocalImage  bool       `json:"useLocalImage"`
	LocalImagePath string     `json:"localImagePath,omitempty"`
}

// TapoConfig holds Tapo camera credentials and the stream profile.
type TapoConfig struct {
	IP       string `json:"ip"`
	Username string `json:"username"`
	Password string `json:"password"`
	Stream   string `json:"stream"`
}

// ActionConfig selects how the device sweeps its field of view.
type ActionConfig struct {
	Mode      string      `json:"mode"`
	BasicStep *int        `json:"basicStep,omitempty"`
	Route     RouteConfig `json:"route"`
}

// RouteConfig is the list of configured waypoints.
type RouteConfig struct {
	Coordinates []Waypoint `json:"coordinates"`
}

// Waypoint is one stop on a device's route.
type Waypoint struct {
	Rotation float64 `json:"rotation"`
	Tilt     float64 `json:"tilt"`
	Zoom     float64 `json:"zoom"`
	Order    int     `json:"order"`
}

// OwnerRef is the owning tenant id. The backend sends either the raw id or a
// populated user document.
type OwnerRef string

func (o *OwnerRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*o = ""
		return nil
	}
	if len(data) > 0 && data[0] == '{' {
		var doc struct {
			ID string `json:"_id"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		*o = OwnerRef(doc.ID)
		return nil
	}
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	*o = OwnerRef(id)
	return nil
}

// Identifier returns the id used when talking to the backend about this device.
func (d Device) Identifier() string {
	if d.ID != "" {
		return d.ID
	}
	return d.DeviceID
}

// Address returns the actuator's network address, the key telemetry uses.
func (d Device) Address() string {
	return strings.TrimSpace(d.Taubenschiesser.IP)
}

// Tenant returns the owning tenant id.
func (d Device) Tenant() string {
	return string(d.Owner)
}

// IsRouteMode reports whether the device follows its configured route.
func (d Device) IsRouteMode() bool {
	return d.Actions.Mode == constants.ModeRoute
}

// StepSize returns the configured impulse size, defaulting when unset.
func (d Device) StepSize() int {
	if d.Actions.BasicStep == nil {
		return constants.DefaultStepSize
	}
	return *d.Actions.BasicStep
}

// Route returns the waypoints sorted by their order field.
func (d Device) Route() []Waypoint {
	route := make([]Waypoint, len(d.Actions.Route.Coordinates))
	copy(route, d.Actions.Route.Coordinates)
	sort.SliceStable(route, func(i, j int) bool {
		return route[i].Order < route[j].Order
	})
	return route
}

// WaypointAt returns the route waypoint at index, if the device is in route
// mode and the index exists.
func (d Device) WaypointAt(index int) (Waypoint, bool) {
	if !d.IsRouteMode() {
		return Waypoint{}, false
	}
	route := d.Route()
	if index < 0 || index >= len(route) {
		return Waypoint{}, false
	}
	return route[index], true
}

// ZoomFactor returns the waypoint zoom clamped to the supported range.
func (w Waypoint) ZoomFactor() float64 {
	switch {
	case w.Zoom < constants.DefaultZoom:
		return constants.DefaultZoom
	case w.Zoom > constants.MaxZoom:
		return constants.MaxZoom
	default:
		return w.Zoom
	}
}
