// internal/poller/efosb/efosb.go

// Package efosb polls the EFOS-B active hydrogen maser monitor board.
//
// The board answers a three-character command "Dnn" (echoing each character
// as it arrives) with three hex digits and a line terminator. Every channel
// is read once per cycle and calibrated through the channel table.
package efosb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/masermon/internal/calibration"
	"github.com/tamzrod/masermon/internal/fault"
	"github.com/tamzrod/masermon/internal/measurement"
	"github.com/tamzrod/masermon/internal/transport"
)

const (
	syncByte = 'F'
	syncLen  = 10
	frameLen = 4

	maxAttempts = 5
	retryPause  = 10 * time.Millisecond

	DefaultSyncAttempts = 30
)

// Observer is told about channels that exhausted their retries.
type Observer interface {
	ChannelFailed(channel string)
}

type Config struct {
	Name         string // measurement name
	Channels     calibration.Table
	SyncAttempts int
	Log          zerolog.Logger
	Observer     Observer
}

type Adapter struct {
	cfg   Config
	ch    transport.Channel
	tags  measurement.Tags
	sleep func(time.Duration)
}

func New(ch transport.Channel, cfg Config) (*Adapter, error) {
	if ch == nil {
		return nil, errors.New("efosb: channel required")
	}
	if cfg.Name == "" {
		return nil, errors.New("efosb: measurement name required")
	}
	if err := cfg.Channels.Validate(); err != nil {
		return nil, fmt.Errorf("efosb: %w", err)
	}
	if cfg.SyncAttempts <= 0 {
		cfg.SyncAttempts = DefaultSyncAttempts
	}
	return &Adapter{cfg: cfg, ch: ch, sleep: time.Sleep}, nil
}

// Identify waits for the synthesizer readout that confirms the link is
// live. The readout is kept as the synth tag.
func (a *Adapter) Identify(ctx context.Context) (measurement.Tags, error) {
	a.cfg.Log.Info().Msg("syncing")

	synth, err := a.sync(ctx)
	if err != nil {
		return nil, err
	}
	a.cfg.Log.Info().Str("synth", synth).Msg("synthesizer frequency")

	a.tags = measurement.Tags{
		"masertype": "EFOS-B",
		"maser":     a.cfg.Name,
		"synth":     synth,
	}
	return a.tags.Clone(), nil
}

func (a *Adapter) sync(ctx context.Context) (string, error) {
	for i := 0; i < a.cfg.SyncAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", fault.New(fault.FatalStartup, "sync", err)
		}
		if err := a.ch.Write([]byte{syncByte}); err != nil {
			return "", fault.New(fault.FatalStartup, "sync", err)
		}

		b, err := a.ch.ReadExact(syncLen)
		if len(b) >= syncLen {
			return strings.TrimSpace(string(b)), nil
		}
		if err != nil && !fault.Is(err, fault.Timeout) {
			return "", fault.New(fault.FatalStartup, "sync", err)
		}
		a.cfg.Log.Debug().Int("attempt", i+1).Bytes("got", b).Msg("sync: short response")
	}
	return "", fault.Errorf(fault.FatalStartup, "sync", "no synthesizer readout after %d attempts", a.cfg.SyncAttempts)
}

// PollOnce reads every channel in table order. Channels that fail all
// attempts are left out of the measurement.
func (a *Adapter) PollOnce(ctx context.Context, at time.Time) (measurement.Measurement, error) {
	b := measurement.NewBuilder(a.cfg.Name, a.tags, at)

	for _, c := range a.cfg.Channels {
		if err := ctx.Err(); err != nil {
			return measurement.Measurement{}, err
		}

		raw, err := a.readChannel(c.ID)
		if err != nil {
			a.cfg.Log.Warn().Err(err).Int("channel", c.ID).Str("name", c.Name).Msg("channel failed")
			if a.cfg.Observer != nil {
				a.cfg.Observer.ChannelFailed(c.Name)
			}
			continue
		}
		b.Float(c.Name, c.Apply(raw))
	}

	m, err := b.Build()
	if err != nil {
		return m, fault.Errorf(fault.Timeout, "poll", "no channel answered")
	}
	return m, nil
}

// readChannel makes up to maxAttempts exchanges for one channel.
func (a *Adapter) readChannel(id int) (int, error) {
	cmd := fmt.Sprintf("D%02d", id)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			a.sleep(retryPause)
		}

		raw, err := a.exchange(cmd)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		a.cfg.Log.Debug().Err(err).Int("channel", id).Int("attempt", attempt).Msg("line noise")
	}
	return 0, fault.New(fault.KindOf(lastErr), fmt.Sprintf("channel %d", id), lastErr)
}

func (a *Adapter) exchange(cmd string) (int, error) {
	for i := 0; i < len(cmd); i++ {
		if err := a.ch.Write([]byte{cmd[i]}); err != nil {
			return 0, err
		}
		// The echo is not checked; a missing echo only costs time.
		if _, err := a.ch.ReadExact(1); err != nil && !fault.Is(err, fault.Timeout) {
			return 0, err
		}
	}

	frame, err := a.ch.ReadExact(frameLen)
	return parseFrame(frame, err)
}

// parseFrame accepts only terminated frames of exactly frameLen bytes.
func parseFrame(frame []byte, readErr error) (int, error) {
	if readErr != nil && !fault.Is(readErr, fault.Timeout) {
		return 0, readErr
	}
	if len(frame) == 0 {
		return 0, fault.New(fault.Timeout, "frame", readErr)
	}

	last := frame[len(frame)-1]
	if last != '\r' && last != '\n' {
		return 0, fault.Errorf(fault.Malformed, "frame", "unterminated response %q", frame)
	}
	if len(frame) != frameLen {
		return 0, fault.Errorf(fault.Timeout, "frame", "short response %q", frame)
	}

	v, err := strconv.ParseInt(strings.TrimSpace(string(frame)), 16, 32)
	if err != nil {
		return 0, fault.New(fault.Malformed, "frame", err)
	}
	return int(v), nil
}
