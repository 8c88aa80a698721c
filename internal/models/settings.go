package models

// UserSettingsResponse is the body of GET /api/users/{id}/settings.
type UserSettingsResponse struct {
	Settings struct {
		MQTT MQTTSettings `json:"mqtt"`
	} `json:"settings"`
}

// MQTTSettings are the broker credentials a tenant configured.
type MQTTSettings struct {
	Enabled  bool   `json:"enabled"`
	Broker   string `json:"broker"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}
