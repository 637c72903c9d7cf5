// internal/writer/builder.go
package writer

import (
	"time"

	"github.com/rs/zerolog"

	cfg "github.com/tamzrod/masermon/internal/config"
	"github.com/tamzrod/masermon/internal/writer/influx"
	wmodbus "github.com/tamzrod/masermon/internal/writer/modbus"
)

// InfluxFactory returns a factory for the configured database server.
func InfluxFactory(s cfg.SinkConfig) ClientFactory {
	return func() (Client, error) {
		return influx.New(influx.Config{
			Host:               s.Host,
			Port:               s.Port,
			TLS:                s.TLSEnabled(),
			InsecureSkipVerify: s.InsecureSkipVerify,
			Username:           s.Username,
			Password:           s.Password,
			Timeout:            time.Duration(s.TimeoutMs) * time.Millisecond,
		})
	}
}

// BuildSink connects to the configured database. It fails fast.
func BuildSink(s cfg.SinkConfig, log zerolog.Logger) (*Sink, error) {
	return NewSink(InfluxFactory(s), s.Database, log)
}

// BuildStatusWriter connects the optional status mirror. A nil config
// disables it and returns a nil writer.
func BuildStatusWriter(sc *cfg.StatusConfig) (StatusWriter, func() error, error) {
	noop := func() error { return nil }
	if sc == nil {
		return nil, noop, nil
	}

	c, err := wmodbus.NewEndpointClient(wmodbus.Config{
		Endpoint: sc.Endpoint,
		Timeout:  time.Duration(sc.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, noop, err
	}

	sw := NewDeviceStatusWriter(StatusPlan{
		Endpoint:   sc.Endpoint,
		UnitID:     sc.UnitID,
		BaseSlot:   sc.Slot,
		DeviceName: sc.DeviceName,
	}, c)
	return sw, c.Close, nil
}
