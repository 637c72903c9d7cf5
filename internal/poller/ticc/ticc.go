// internal/poller/ticc/ticc.go

// Package ticc reads the TAPR TICC time-interval counter in time-stamp
// mode. The counter pushes one "<seconds> <channel>" line per event.
package ticc

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/masermon/internal/fault"
	"github.com/tamzrod/masermon/internal/measurement"
	"github.com/tamzrod/masermon/internal/transport"
)

type Config struct {
	Name string // measurement name
	Log  zerolog.Logger
}

type Adapter struct {
	cfg  Config
	ch   transport.Channel
	tags measurement.Tags

	lastA float64
	haveA bool

	now func() time.Time
}

func New(ch transport.Channel, cfg Config) (*Adapter, error) {
	if ch == nil {
		return nil, errors.New("ticc: channel required")
	}
	if cfg.Name == "" {
		return nil, errors.New("ticc: measurement name required")
	}
	return &Adapter{
		cfg:  cfg,
		ch:   ch,
		tags: measurement.Tags{"masertype": "ticc", "mode": "ts"},
		now:  time.Now,
	}, nil
}

// Identify drops the first line, which is usually cut off mid-stream.
func (a *Adapter) Identify(ctx context.Context) (measurement.Tags, error) {
	if _, err := a.ch.ReadLine(); err != nil && !fault.Is(err, fault.Timeout) {
		return nil, fault.New(fault.FatalStartup, "sync", err)
	}
	return a.tags.Clone(), nil
}

// PollOnce consumes one line. Channel A stamps are stored; a channel B
// stamp is paired with the latest A to produce the interval TC = A - B.
//
// The read blocks until the counter pushes, so the measurement carries the
// arrival time of its line; the cycle start passed in may be up to one read
// timeout earlier and is not used.
func (a *Adapter) PollOnce(ctx context.Context, _ time.Time) (measurement.Measurement, error) {
	b, err := a.ch.ReadLine()
	if err != nil && !fault.Is(err, fault.Timeout) {
		return measurement.Measurement{}, err
	}
	at := a.now()

	line := strings.TrimSpace(string(b))
	if line == "" || strings.HasPrefix(line, "#") {
		return measurement.Measurement{}, fault.ErrNoMeasurement
	}

	stamp, label, err := parseLine(line)
	if err != nil {
		return measurement.Measurement{}, err
	}

	mb := measurement.NewBuilder(a.cfg.Name, a.tags, at)
	switch label {
	case "chA":
		a.lastA, a.haveA = stamp, true
		mb.Float("TA", stamp)
	case "chB":
		if !a.haveA {
			a.cfg.Log.Debug().Float64("tb", stamp).Msg("chB before any chA, skipped")
			return measurement.Measurement{}, fault.ErrNoMeasurement
		}
		mb.Float("TB", stamp).Float("TC", a.lastA-stamp)
	default:
		return measurement.Measurement{}, fault.Errorf(fault.Malformed, "line", "unknown channel %q", label)
	}
	return mb.Build()
}

func parseLine(line string) (float64, string, error) {
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return 0, "", fault.Errorf(fault.Malformed, "line", "want \"<seconds> <channel>\", got %q", line)
	}
	v, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, "", fault.New(fault.Malformed, "line", err)
	}
	return v, parts[1], nil
}
