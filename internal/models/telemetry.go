package models

// Telemetry is the status payload a device publishes on its info topic.
// Pointer fields distinguish "not reported" from zero values.
type Telemetry struct {
	Rot       *float64 `json:"Rot"`
	Tilt      *float64 `json:"Tilt"`
	Moving    *bool    `json:"moving"`
	Watertank *bool    `json:"watertank"`
	Cam       *bool    `json:"Cam"`
	IP        string   `json:"ip,omitempty"`
}

// Position is a pan/tilt pair in degrees.
type Position struct {
	Rot  float64 `json:"rot"`
	Tilt float64 `json:"tilt"`
}
