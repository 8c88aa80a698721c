package models

import "time"

// DeviceStatusReport is posted to the backend by the status monitor loop.
type DeviceStatusReport struct {
	Status   string    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}
