// internal/poller/vedirect/vedirect.go

// Package vedirect reads Victron MPPT charge controllers over the
// VE.Direct text protocol. The controller pushes one block per second.
package vedirect

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/masermon/internal/fault"
	"github.com/tamzrod/masermon/internal/measurement"
	"github.com/tamzrod/masermon/internal/transport"
)

// maxQueued bounds the blocks decoded ahead of the scheduler.
const maxQueued = 64

// field maps a protocol label to a measurement field and its divisor.
type field struct {
	label string
	scale float64
}

var fields = []field{
	{"V", 1000},   // battery mV
	{"I", 1000},   // battery mA
	{"VPV", 1000}, // panel mV
	{"PPV", 1},    // panel W
	{"IL", 1000},  // load mA
}

type Config struct {
	Name string // measurement name
	Log  zerolog.Logger
}

// queued is a decoded packet stamped with the arrival of its last chunk.
type queued struct {
	pkt Packet
	at  time.Time
}

type Adapter struct {
	cfg   Config
	ch    transport.Channel
	dec   *Decoder
	queue []queued
	tags  measurement.Tags
	now   func() time.Time
}

func New(ch transport.Channel, cfg Config) (*Adapter, error) {
	if ch == nil {
		return nil, errors.New("vedirect: channel required")
	}
	if cfg.Name == "" {
		return nil, errors.New("vedirect: measurement name required")
	}
	return &Adapter{
		cfg:  cfg,
		ch:   ch,
		dec:  NewDecoder(),
		tags: measurement.Tags{"masertype": "vedirect"},
		now:  time.Now,
	}, nil
}

// Identify has nothing to ask; the controller only pushes.
func (a *Adapter) Identify(ctx context.Context) (measurement.Tags, error) {
	return a.tags.Clone(), nil
}

// PollOnce returns the next complete block, reading at most one chunk from
// the link when none is queued. Blocks carry their arrival time, not the
// cycle start passed in.
func (a *Adapter) PollOnce(ctx context.Context, _ time.Time) (measurement.Measurement, error) {
	if len(a.queue) == 0 {
		if err := a.fill(); err != nil {
			return measurement.Measurement{}, err
		}
	}
	if len(a.queue) == 0 {
		return measurement.Measurement{}, fault.ErrNoMeasurement
	}

	q := a.queue[0]
	a.queue = a.queue[1:]
	return Decode(q.pkt, a.cfg.Name, a.tags, q.at)
}

func (a *Adapter) fill() error {
	chunk, err := a.ch.ReadLine()
	if err != nil && !fault.Is(err, fault.Timeout) {
		return err
	}

	at := a.now()

	before := a.dec.Rejected()
	err = a.dec.Write(chunk, func(p Packet) error {
		if len(a.queue) >= maxQueued {
			return fault.Errorf(fault.Malformed, "queue", "more than %d blocks pending", maxQueued)
		}
		a.queue = append(a.queue, queued{pkt: p, at: at})
		return nil
	})
	if n := a.dec.Rejected() - before; n > 0 {
		a.cfg.Log.Warn().Int("blocks", n).Msg("checksum mismatch, block dropped")
	}
	return err
}

// Decode turns a block into a measurement. Every expected label must be
// present and numeric.
func Decode(p Packet, name string, tags measurement.Tags, at time.Time) (measurement.Measurement, error) {
	mb := measurement.NewBuilder(name, tags, at)
	for _, f := range fields {
		raw, ok := p[f.label]
		if !ok {
			return measurement.Measurement{}, fault.Errorf(fault.Malformed, "packet", "missing %s", f.label)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return measurement.Measurement{}, fault.New(fault.Malformed, "packet "+f.label, err)
		}
		mb.Float(f.label, v/f.scale)
	}
	return mb.Build()
}
