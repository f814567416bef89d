package model

// HealthStatus is the body of GET /health
type HealthStatus struct {
	Status        string `json:"status"`
	Service       string `json:"service"`
	Version       string `json:"version"`
	AuthRequired  bool   `json:"auth_required"`
	Metrics       bool   `json:"metrics"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}
