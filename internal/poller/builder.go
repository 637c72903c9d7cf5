// internal/poller/builder.go
package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/masermon/internal/calibration"
	cfg "github.com/tamzrod/masermon/internal/config"
	"github.com/tamzrod/masermon/internal/fault"
	"github.com/tamzrod/masermon/internal/poller/bme280"
	"github.com/tamzrod/masermon/internal/poller/dpm7885"
	"github.com/tamzrod/masermon/internal/poller/efosb"
	"github.com/tamzrod/masermon/internal/poller/hp5071a"
	"github.com/tamzrod/masermon/internal/poller/ticc"
	"github.com/tamzrod/masermon/internal/poller/vch1006"
	"github.com/tamzrod/masermon/internal/poller/vedirect"
	"github.com/tamzrod/masermon/internal/status"
	"github.com/tamzrod/masermon/internal/transport"
	"github.com/tamzrod/masermon/internal/writer"
)

// Deps are the outside resources Build wires together. Nil openers fall
// back to the real serial port, I2C bus and database.
type Deps struct {
	Log      zerolog.Logger
	Tracker  *status.Tracker
	Status   writer.StatusWriter
	Recorder Recorder

	OpenTransport func(transport.Config) (transport.Channel, error)
	OpenSensor    func(bus string, addr uint16) (bme280.Sensor, error)
	Sink          Sink
}

func (d *Deps) defaults() {
	if d.OpenTransport == nil {
		d.OpenTransport = func(c transport.Config) (transport.Channel, error) {
			return transport.Open(c)
		}
	}
	if d.OpenSensor == nil {
		d.OpenSensor = func(bus string, addr uint16) (bme280.Sensor, error) {
			return bme280.OpenI2C(bus, addr)
		}
	}
}

// TransportConfig converts the normalized device link settings.
func TransportConfig(t cfg.TransportConfig) transport.Config {
	return transport.Config{
		Address:     t.Address,
		BaudRate:    t.BaudRate,
		DataBits:    t.DataBits,
		Parity:      t.Parity,
		StopBits:    t.StopBits,
		FlowControl: t.FlowControl,
		Timeout:     time.Duration(t.TimeoutMs) * time.Millisecond,
	}
}

// Build opens the device, identifies it, connects the sink and returns a
// ready poller. Every failure here is fatal for the process.
func Build(ctx context.Context, c *cfg.Config, deps Deps) (*Poller, func() error, error) {
	deps.defaults()
	log := deps.Log.With().Str("device", c.Device.Name).Str("protocol", c.Device.Protocol).Logger()

	a, link, err := newAdapter(c, deps, log)
	if err != nil {
		return nil, nil, err
	}

	tags, err := a.Identify(ctx)
	if err != nil {
		link.Close()
		return nil, nil, fault.New(fault.FatalStartup, "identify", err)
	}
	log.Info().Interface("tags", tags).Msg("device identified")

	closers := []io.Closer{link}
	sink := deps.Sink
	if sink == nil {
		s, err := writer.BuildSink(c.Sink, log)
		if err != nil {
			link.Close()
			return nil, nil, err
		}
		sink = s
		closers = append(closers, s)
	}

	opts := []Option{WithLogger(log), WithTracker(deps.Tracker)}
	if deps.Status != nil {
		opts = append(opts, WithStatusWriter(deps.Status))
	}
	if deps.Recorder != nil {
		opts = append(opts, WithRecorder(deps.Recorder))
	}

	p, err := New(Config{
		Device:   c.Device.Name,
		Interval: time.Duration(c.Poll.IntervalMs) * time.Millisecond,
	}, a, sink, opts...)
	if err != nil {
		closeAll(closers)
		return nil, nil, err
	}

	return p, func() error { return closeAll(closers) }, nil
}

func closeAll(cs []io.Closer) error {
	var errs []error
	for i := len(cs) - 1; i >= 0; i-- {
		if err := cs[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newAdapter opens the device link and constructs the adapter for the
// configured protocol. The returned closer releases the link.
func newAdapter(c *cfg.Config, deps Deps, log zerolog.Logger) (Adapter, io.Closer, error) {
	d := c.Device

	if d.Protocol == cfg.ProtocolBME280 {
		addr := d.I2CAddress
		if addr == 0 {
			addr = bme280.DefaultAddress
		}
		s, err := deps.OpenSensor(d.I2CBus, addr)
		if err != nil {
			return nil, nil, fault.New(fault.FatalStartup, "open i2c", err)
		}
		a, err := bme280.New(s, bme280.Config{Name: d.Name, Log: log})
		if err != nil {
			s.Close()
			return nil, nil, err
		}
		return a, a, nil
	}

	ch, err := openLink(d.Transport, deps, log)
	if err != nil {
		return nil, nil, err
	}

	var a Adapter
	switch d.Protocol {
	case cfg.ProtocolEFOSB:
		var table calibration.Table
		table, err = channelTable(d.ChannelsFile)
		if err == nil {
			var obs efosb.Observer
			if o, ok := deps.Recorder.(efosb.Observer); ok {
				obs = o
			}
			a, err = efosb.New(ch, efosb.Config{
				Name:         d.Name,
				Channels:     table,
				SyncAttempts: d.SyncAttempts,
				Log:          log,
				Observer:     obs,
			})
		}
	case cfg.ProtocolHP5071A:
		a, err = hp5071a.New(ch, hp5071a.Config{Name: d.Name, Log: log})
	case cfg.ProtocolDPM7885:
		a, err = dpm7885.New(ch, dpm7885.Config{Name: d.Name, IdentityAttempts: d.SyncAttempts, Log: log})
	case cfg.ProtocolTICC:
		a, err = ticc.New(ch, ticc.Config{Name: d.Name, Log: log})
	case cfg.ProtocolVEDirect:
		a, err = vedirect.New(ch, vedirect.Config{Name: d.Name, Log: log})
	case cfg.ProtocolVCH1006:
		err = errors.New("vch1006 is a one-shot probe, use Probe")
	default:
		err = fmt.Errorf("unsupported protocol %q", d.Protocol)
	}
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("poller: %w", err)
	}
	return a, ch, nil
}

func channelTable(path string) (calibration.Table, error) {
	if path == "" {
		return calibration.EFOSB(), nil
	}
	return calibration.Load(path)
}

func openLink(t cfg.TransportConfig, deps Deps, log zerolog.Logger) (transport.Channel, error) {
	tc := TransportConfig(t)
	if tc.FlowControl != "" && tc.FlowControl != "none" {
		log.Warn().Str("flow_control", tc.FlowControl).Msg("flow control is not supported by the serial driver, ignored")
	}

	ch, err := deps.OpenTransport(tc)
	if err != nil {
		return nil, fault.New(fault.FatalStartup, "open "+tc.Address, err)
	}
	log.Info().Stringer("link", tc).Msg("link open")
	return ch, nil
}

// Probe runs the VCH1006 one-shot dump and returns it as hex. An empty
// dump is an error.
func Probe(c *cfg.Config, deps Deps) (string, error) {
	deps.defaults()
	log := deps.Log.With().Str("device", c.Device.Name).Str("protocol", c.Device.Protocol).Logger()

	ch, err := openLink(c.Device.Transport, deps, log)
	if err != nil {
		return "", err
	}
	defer ch.Close()

	dump, err := vch1006.Probe(ch)
	if dump == "" {
		return "", err
	}
	if err != nil {
		log.Warn().Err(err).Msg("partial dump")
	}
	return dump, nil
}
