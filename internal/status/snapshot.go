// internal/status/snapshot.go
package status

import "time"

// Snapshot is exactly what the status mirror delivers.
type Snapshot struct {
	Health         uint16
	LastErrorCode  uint16
	SecondsInError uint16
}

// Report is the richer view served on /healthz.
type Report struct {
	Run            string    `json:"run"`
	Device         string    `json:"device"`
	Protocol       string    `json:"protocol"`
	Health         string    `json:"health"`
	HealthCode     uint16    `json:"health_code"`
	LastErrorCode  uint16    `json:"last_error_code"`
	LastError      string    `json:"last_error,omitempty"`
	SecondsInError uint16    `json:"seconds_in_error"`
	LastSuccess    time.Time `json:"last_success,omitempty"`
	Cycles         uint64    `json:"cycles"`
	Failures       uint64    `json:"failures"`
}
