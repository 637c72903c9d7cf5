// internal/poller/dpm7885/dpm7885.go

// Package dpm7885 polls the Druck DPM7885 pressure indicator that watches
// the maser hydrogen supply.
package dpm7885

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/masermon/internal/fault"
	"github.com/tamzrod/masermon/internal/measurement"
	"github.com/tamzrod/masermon/internal/transport"
)

const (
	DefaultIdentityAttempts = 10

	// TempLimit is exclusive; the gauge reports garbage at or above it
	// while it is still switching modes.
	TempLimit = 200.0

	pressureScale = 100

	maxDrainLines = 1024
)

var numeric = regexp.MustCompile(`^[+-]?([0-9]+)?[.]?[0-9]+([eE][+-]?[0-9]+)?$`)

// isNumber accepts plain digit strings and signed decimal or exponent forms.
func isNumber(s string) bool {
	if s == "" {
		return false
	}
	return numeric.MatchString(s)
}

type Config struct {
	Name             string // measurement name
	IdentityAttempts int
	Log              zerolog.Logger
}

type Adapter struct {
	cfg  Config
	ch   transport.Channel
	tags measurement.Tags
}

func New(ch transport.Channel, cfg Config) (*Adapter, error) {
	if ch == nil {
		return nil, errors.New("dpm7885: channel required")
	}
	if cfg.Name == "" {
		return nil, errors.New("dpm7885: measurement name required")
	}
	if cfg.IdentityAttempts <= 0 {
		cfg.IdentityAttempts = DefaultIdentityAttempts
	}
	return &Adapter{cfg: cfg, ch: ch}, nil
}

// Identify runs the handshake and reads the model and the serial,
// cylinder and calibration numbers.
func (a *Adapter) Identify(ctx context.Context) (measurement.Tags, error) {
	if err := a.Reinitialize(ctx); err != nil {
		return nil, fault.New(fault.FatalStartup, "init", err)
	}

	model, err := a.commandNonEmpty(ctx, "$TT")
	if err != nil {
		return nil, fault.New(fault.FatalStartup, "$TT", err)
	}
	ts, err := a.commandNonEmpty(ctx, "$TS")
	if err != nil {
		return nil, fault.New(fault.FatalStartup, "$TS", err)
	}

	snr, cylinder, cal, err := parseSerials(ts)
	if err != nil {
		return nil, fault.New(fault.FatalStartup, "$TS", err)
	}
	a.cfg.Log.Info().Str("model", model).Int("snr", snr).Int("cylinder", cylinder).Int("cal", cal).Msg("identified")

	a.tags = measurement.Tags{
		"masertype":  "dpm7885",
		"model":      model,
		"snr":        strconv.Itoa(snr),
		"cylindernr": strconv.Itoa(cylinder),
		"calnr":      strconv.Itoa(cal),
	}
	return a.tags.Clone(), nil
}

// parseSerials decodes "+123 +456 +789" style identity replies.
func parseSerials(s string) (snr, cylinder, cal int, err error) {
	fields := strings.Fields(strings.ReplaceAll(s, "+", ""))
	if len(fields) < 3 {
		return 0, 0, 0, fmt.Errorf("serials %q: want 3 fields, got %d", s, len(fields))
	}
	var out [3]int
	for i := range out {
		out[i], err = strconv.Atoi(fields[i])
		if err != nil {
			return 0, 0, 0, fmt.Errorf("serials %q: %w", s, err)
		}
	}
	return out[0], out[1], out[2], nil
}

// Reinitialize puts the gauge back into remote mode with pressure in
// mbar. Running it repeatedly leaves the link in the same state, since the
// drain step discards anything the gauge had queued.
func (a *Adapter) Reinitialize(ctx context.Context) error {
	for _, cmd := range []string{"", "$MS"} {
		if _, err := a.command(cmd); err != nil {
			return err
		}
	}
	if err := a.drain(ctx); err != nil {
		return err
	}
	_, err := a.command("$SU3")
	return err
}

// drain reads lines until a read comes back empty.
func (a *Adapter) drain(ctx context.Context) error {
	for i := 0; i < maxDrainLines; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := a.ch.ReadLine()
		if err != nil && !fault.Is(err, fault.Timeout) {
			return err
		}
		if len(line) == 0 {
			return nil
		}
	}
	return fault.Errorf(fault.Timeout, "drain", "input still busy after %d lines", maxDrainLines)
}

// command writes one line and returns the trimmed reply. A timed out
// reply is the empty string.
func (a *Adapter) command(cmd string) (string, error) {
	if err := a.ch.Write([]byte(cmd + "\r\n")); err != nil {
		return "", err
	}
	line, err := a.ch.ReadLine()
	if err != nil && !fault.Is(err, fault.Timeout) {
		return "", err
	}
	return strings.TrimRight(string(line), " \t\r\n"), nil
}

func (a *Adapter) commandNonEmpty(ctx context.Context, cmd string) (string, error) {
	for i := 0; i < a.cfg.IdentityAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		s, err := a.command(cmd)
		if err != nil {
			return "", err
		}
		if s != "" {
			return s, nil
		}
	}
	return "", fmt.Errorf("no reply after %d attempts", a.cfg.IdentityAttempts)
}

// PollOnce reads pressure and temperature. Any reading that fails the
// numeric check or the temperature bound is a validation failure and no
// measurement is produced.
func (a *Adapter) PollOnce(ctx context.Context, at time.Time) (measurement.Measurement, error) {
	p, err := a.reading("$MR")
	if err != nil {
		return measurement.Measurement{}, err
	}
	t, err := a.reading("$MT")
	if err != nil {
		return measurement.Measurement{}, err
	}
	if t >= TempLimit {
		return measurement.Measurement{}, fault.Errorf(fault.Validation, "$MT", "temperature %g out of range", t)
	}

	return measurement.NewBuilder(a.cfg.Name, a.tags, at).
		Float("Pressure", pressureScale*p).
		Float("Temp", t).
		Build()
}

func (a *Adapter) reading(cmd string) (float64, error) {
	s, err := a.command(cmd)
	if err != nil {
		return 0, fault.New(fault.KindOf(err), cmd, err)
	}
	if !isNumber(s) {
		return 0, fault.Errorf(fault.Validation, cmd, "non-numeric reply %q", s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fault.New(fault.Validation, cmd, err)
	}
	return v, nil
}
