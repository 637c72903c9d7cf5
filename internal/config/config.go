// internal/config/config.go
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Protocols.
const (
	ProtocolEFOSB    = "efosb"
	ProtocolVCH1006  = "vch1006"
	ProtocolHP5071A  = "hp5071a"
	ProtocolDPM7885  = "dpm7885"
	ProtocolBME280   = "bme280"
	ProtocolTICC     = "ticcts"
	ProtocolVEDirect = "vedirect"
)

// Protocols lists every supported subcommand in CLI order.
var Protocols = []string{
	ProtocolEFOSB,
	ProtocolVCH1006,
	ProtocolHP5071A,
	ProtocolDPM7885,
	ProtocolBME280,
	ProtocolTICC,
	ProtocolVEDirect,
}

type Config struct {
	Sink    SinkConfig    `yaml:"sink" toml:"sink"`
	Device  DeviceConfig  `yaml:"device" toml:"device"`
	Poll    PollConfig    `yaml:"poll" toml:"poll"`
	Log     LogConfig     `yaml:"log" toml:"log"`
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`

	// Status mirror (optional, opt-in)
	Status *StatusConfig `yaml:"status" toml:"status"`
}

// ---- SINK ----

type SinkConfig struct {
	Host               string `yaml:"host" toml:"host"`
	Port               int    `yaml:"port" toml:"port"`
	Database           string `yaml:"database" toml:"database"`
	TLS                *bool  `yaml:"tls" toml:"tls"` // nil => true
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" toml:"insecure_skip_verify"`
	Username           string `yaml:"username" toml:"username"`
	Password           string `yaml:"password" toml:"password"`
	TimeoutMs          int    `yaml:"timeout_ms" toml:"timeout_ms"`
}

// TLSEnabled reports the effective TLS setting.
func (s SinkConfig) TLSEnabled() bool {
	return s.TLS == nil || *s.TLS
}

// ---- DEVICE ----

type DeviceConfig struct {
	Protocol  string          `yaml:"protocol" toml:"protocol"`
	Name      string          `yaml:"name" toml:"name"` // measurement name
	Transport TransportConfig `yaml:"transport" toml:"transport"`

	// EFOS-B
	ChannelsFile string `yaml:"channels_file" toml:"channels_file"`

	// EFOS-B sync preamble, DPM7885 identity queries
	SyncAttempts int `yaml:"sync_attempts" toml:"sync_attempts"`

	// BME280
	I2CBus     string `yaml:"i2c_bus" toml:"i2c_bus"`
	I2CAddress uint16 `yaml:"i2c_address" toml:"i2c_address"`
}

type TransportConfig struct {
	Address     string `yaml:"address" toml:"address"`
	BaudRate    int    `yaml:"baud_rate" toml:"baud_rate"` // 0 => protocol default
	DataBits    int    `yaml:"data_bits" toml:"data_bits"`
	Parity      string `yaml:"parity" toml:"parity"`
	StopBits    int    `yaml:"stop_bits" toml:"stop_bits"`
	FlowControl string `yaml:"flow_control" toml:"flow_control"`
	TimeoutMs   int    `yaml:"timeout_ms" toml:"timeout_ms"`
}

// ---- POLL ----

type PollConfig struct {
	// IntervalMs is the pause between cycles. Push-style protocols always
	// run back to back.
	IntervalMs int `yaml:"interval_ms" toml:"interval_ms"`
}

// ---- LOG / METRICS ----

type LogConfig struct {
	Level   string `yaml:"level" toml:"level"`
	JSON    bool   `yaml:"json" toml:"json"`
	NoColor bool   `yaml:"no_color" toml:"no_color"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen" toml:"listen"` // empty => disabled
}

// ---- STATUS ----

type StatusConfig struct {
	Endpoint   string `yaml:"endpoint" toml:"endpoint"`
	UnitID     uint8  `yaml:"unit_id" toml:"unit_id"`
	Slot       uint16 `yaml:"slot" toml:"slot"`
	DeviceName string `yaml:"device_name" toml:"device_name"`
	TimeoutMs  int    `yaml:"timeout_ms" toml:"timeout_ms"`
}

// Load reads a YAML or TOML file, chosen by extension. Unknown keys are
// rejected.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(raw), &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
		if undec := md.Undecoded(); len(undec) > 0 {
			return nil, fmt.Errorf("config: %s: unknown key %q", path, undec[0].String())
		}
	default:
		return nil, fmt.Errorf("config: %s: unsupported extension (want .yaml, .yml or .toml)", path)
	}
	return &cfg, nil
}
