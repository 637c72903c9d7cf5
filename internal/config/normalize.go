// internal/config/normalize.go
package config

import "strings"

// Defaults shared with the CLI help text.
const (
	DefaultHost          = "localhost"
	DefaultPort          = 8086
	DefaultDatabase      = "EFOStest"
	DefaultName          = "maserdata"
	DefaultDevice        = "/dev/ttyUSB0"
	DefaultIntervalMs    = 10_000
	DefaultTimeoutMs     = 2_000
	DefaultSinkTimeout   = 10_000
	DefaultSyncAttempts  = 30
	DefaultIdentityTries = 10
)

// DefaultBaudRate returns the line speed a protocol's device ships with.
func DefaultBaudRate(protocol string) int {
	switch protocol {
	case ProtocolTICC:
		return 115200
	case ProtocolVEDirect:
		return 19200
	default:
		return 9600
	}
}

// DefaultFlowControl returns the handshake the instrument's serial port is
// configured for out of the box.
func DefaultFlowControl(protocol string) string {
	switch protocol {
	case ProtocolHP5071A, ProtocolDPM7885, ProtocolTICC:
		return "xonxoff"
	default:
		return "none"
	}
}

// EventDriven reports whether the device pushes data, in which case the
// scheduler never sleeps between cycles.
func EventDriven(protocol string) bool {
	return protocol == ProtocolTICC || protocol == ProtocolVEDirect
}

// Normalize applies post-validation defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// ---- sink ----
	s := &cfg.Sink
	if s.Host == "" {
		s.Host = DefaultHost
	}
	if s.Port == 0 {
		s.Port = DefaultPort
	}
	if s.Database == "" {
		s.Database = DefaultDatabase
	}
	if s.TLS == nil {
		on := true
		s.TLS = &on
	}
	if s.TimeoutMs == 0 {
		s.TimeoutMs = DefaultSinkTimeout
	}

	// ---- device ----
	d := &cfg.Device
	if d.Name == "" {
		d.Name = DefaultName
	}
	if d.SyncAttempts == 0 {
		switch d.Protocol {
		case ProtocolDPM7885:
			d.SyncAttempts = DefaultIdentityTries
		default:
			d.SyncAttempts = DefaultSyncAttempts
		}
	}

	t := &d.Transport
	if t.Address == "" {
		t.Address = DefaultDevice
	}
	if t.BaudRate == 0 {
		t.BaudRate = DefaultBaudRate(d.Protocol)
	}
	if t.DataBits == 0 {
		t.DataBits = 8
	}
	t.Parity = strings.ToUpper(t.Parity)
	if t.Parity == "" {
		t.Parity = "N"
	}
	if t.StopBits == 0 {
		t.StopBits = 1
	}
	t.FlowControl = strings.ToLower(t.FlowControl)
	if t.FlowControl == "" {
		t.FlowControl = DefaultFlowControl(d.Protocol)
	}
	if t.TimeoutMs == 0 {
		t.TimeoutMs = DefaultTimeoutMs
	}

	// ---- poll ----
	switch {
	case EventDriven(d.Protocol):
		cfg.Poll.IntervalMs = 0
	case cfg.Poll.IntervalMs == 0:
		cfg.Poll.IntervalMs = DefaultIntervalMs
	}

	// ---- log ----
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	// ---- status ----
	if st := cfg.Status; st != nil {
		if st.DeviceName == "" {
			st.DeviceName = d.Name
		}
		if len(st.DeviceName) > 16 {
			st.DeviceName = st.DeviceName[:16]
		}
		if st.TimeoutMs == 0 {
			st.TimeoutMs = DefaultTimeoutMs
		}
	}
}
