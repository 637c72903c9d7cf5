// internal/config/validate.go
package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/tamzrod/masermon/internal/status"
)

// Validate checks configuration correctness.
// It performs declarative validation only: zero values are legal and are
// filled in later by Normalize.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}

	// ------------------------------------------------------------
	// DEVICE
	// ------------------------------------------------------------

	d := cfg.Device
	if d.Protocol == "" {
		return fmt.Errorf("device.protocol is required (one of %s)", strings.Join(Protocols, ", "))
	}
	if !slices.Contains(Protocols, d.Protocol) {
		return fmt.Errorf("device.protocol %q is not supported (one of %s)", d.Protocol, strings.Join(Protocols, ", "))
	}
	if d.SyncAttempts < 0 {
		return fmt.Errorf("device.sync_attempts must be >= 0, got %d", d.SyncAttempts)
	}
	if d.ChannelsFile != "" && d.Protocol != ProtocolEFOSB {
		return fmt.Errorf("device.channels_file only applies to %s", ProtocolEFOSB)
	}
	if d.I2CAddress > 0x7F {
		return fmt.Errorf("device.i2c_address 0x%x is not a 7-bit address", d.I2CAddress)
	}

	// ------------------------------------------------------------
	// TRANSPORT
	// ------------------------------------------------------------

	t := d.Transport
	if t.BaudRate < 0 {
		return fmt.Errorf("device.transport.baud_rate must be >= 0, got %d", t.BaudRate)
	}
	if t.DataBits != 0 && (t.DataBits < 5 || t.DataBits > 8) {
		return fmt.Errorf("device.transport.data_bits must be 5..8, got %d", t.DataBits)
	}
	switch strings.ToUpper(t.Parity) {
	case "", "N", "E", "O":
	default:
		return fmt.Errorf("device.transport.parity must be N, E or O, got %q", t.Parity)
	}
	if t.StopBits != 0 && t.StopBits != 1 && t.StopBits != 2 {
		return fmt.Errorf("device.transport.stop_bits must be 1 or 2, got %d", t.StopBits)
	}
	switch strings.ToLower(t.FlowControl) {
	case "", "none", "xonxoff", "rtscts":
	default:
		return fmt.Errorf("device.transport.flow_control must be none, xonxoff or rtscts, got %q", t.FlowControl)
	}
	if t.TimeoutMs < 0 {
		return fmt.Errorf("device.transport.timeout_ms must be >= 0, got %d", t.TimeoutMs)
	}

	// ------------------------------------------------------------
	// SINK / POLL
	// ------------------------------------------------------------

	if cfg.Sink.Port < 0 || cfg.Sink.Port > 65535 {
		return fmt.Errorf("sink.port out of range: %d", cfg.Sink.Port)
	}
	if cfg.Sink.TimeoutMs < 0 {
		return fmt.Errorf("sink.timeout_ms must be >= 0, got %d", cfg.Sink.TimeoutMs)
	}
	if cfg.Poll.IntervalMs < 0 {
		return fmt.Errorf("poll.interval_ms must be >= 0, got %d", cfg.Poll.IntervalMs)
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "", "trace", "debug", "info", "warn", "warning", "error", "disabled", "off":
	default:
		return fmt.Errorf("log.level %q is not a level", cfg.Log.Level)
	}

	// ------------------------------------------------------------
	// STATUS MIRROR (OPT-IN)
	// ------------------------------------------------------------

	if s := cfg.Status; s != nil {
		if s.Endpoint == "" {
			return fmt.Errorf("status.endpoint is required when status is set")
		}
		for i := 0; i < len(s.DeviceName); i++ {
			if s.DeviceName[i] > 0x7F {
				return fmt.Errorf("status.device_name must contain ASCII characters only")
			}
		}
		if (int(s.Slot)+1)*status.SlotsPerDevice > 1<<16 {
			return fmt.Errorf("status.slot %d is beyond the register space", s.Slot)
		}
		if s.TimeoutMs < 0 {
			return fmt.Errorf("status.timeout_ms must be >= 0, got %d", s.TimeoutMs)
		}
	}

	return nil
}
