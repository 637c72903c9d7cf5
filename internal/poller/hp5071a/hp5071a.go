// internal/poller/hp5071a/hp5071a.go

// Package hp5071a polls the HP/Agilent 5071A cesium frequency standard over
// its SCPI serial port. The port echoes each command line before answering.
package hp5071a

import (
	"context"
	"errors"
	"fmt"
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
}

func New(ch transport.Channel, cfg Config) (*Adapter, error) {
	if ch == nil {
		return nil, errors.New("hp5071a: channel required")
	}
	if cfg.Name == "" {
		return nil, errors.New("hp5071a: measurement name required")
	}
	return &Adapter{cfg: cfg, ch: ch}, nil
}

// Identify wakes the port and reads the instrument serial number from
// *IDN? (fourth comma-separated field).
func (a *Adapter) Identify(ctx context.Context) (measurement.Tags, error) {
	if err := a.command(""); err != nil {
		return nil, fault.New(fault.FatalStartup, "wake", err)
	}
	if err := a.command("*IDN?"); err != nil {
		return nil, fault.New(fault.FatalStartup, "*IDN?", err)
	}
	idn, err := a.readLine("*IDN?")
	if err != nil {
		return nil, fault.New(fault.FatalStartup, "*IDN?", err)
	}

	snr, err := parseIdentity(idn)
	if err != nil {
		return nil, fault.New(fault.FatalStartup, "*IDN?", err)
	}
	a.cfg.Log.Info().Str("idn", idn).Int64("serial", snr).Msg("identified")

	a.tags = measurement.Tags{
		"masertype": "HP5071A",
		"maser":     strconv.FormatInt(snr, 10),
	}
	return a.tags.Clone(), nil
}

func parseIdentity(idn string) (int64, error) {
	parts := strings.FieldsFunc(idn, func(r rune) bool { return r == ',' })
	if len(parts) < 4 {
		return 0, fmt.Errorf("identity %q: want at least 4 fields, got %d", idn, len(parts))
	}
	snr, err := strconv.ParseInt(strings.TrimSpace(parts[3]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("identity %q: serial: %w", idn, err)
	}
	return snr, nil
}

// PollOnce runs the fixed query sequence. The first failing query aborts
// the cycle.
func (a *Adapter) PollOnce(ctx context.Context, at time.Time) (measurement.Measurement, error) {
	s := &session{a: a}

	mjd := s.integer("PTIM:MJD?")
	hms := s.integers("PTIM?", 3)
	tube := s.text("DIAG:CBTSerial?")
	cont := s.text("DIAG:STAT?")
	beam := s.number("DIAG:CURR:BEAM?")
	cfield := s.number("DIAG:CURR:CField?")
	pump := s.number("DIAG:CURR:PUMP?")
	gain := s.number("DIAG:GAIN?")
	rf := s.numbers("DIAG:RFAMplitude?", 2)
	temp := s.number("DIAG:TEMP?")
	coven := s.number("DIAG:VOLT:COVen?")
	emul := s.number("DIAG:VOLT:EMUL?")
	hwi := s.number("DIAG:VOLT:HWIonizer?")
	msp := s.number("DIAG:VOLT:MSPec?")
	pll := s.numbers("DIAG:VOLT:PLLoop?", 4)
	supply := s.numbers("DIAG:VOLT:SUPPly?", 3)
	supplyStatus := s.text("DIAG:STAT:SUPPly?")

	if s.err != nil {
		return measurement.Measurement{}, s.err
	}

	return measurement.NewBuilder(a.cfg.Name, a.tags, at).
		Tag("tube", tube).
		String("Supply", supplyStatus).
		Float("+5V", supply[0]).
		Float("+12V", supply[1]).
		Float("-12V", supply[2]).
		Float("Temp", temp).
		Int("MJD", mjd).
		String("Device Time", fmt.Sprintf("%02d:%02d:%02d", hms[0], hms[1], hms[2])).
		String("Cont OpStatus", cont).
		Float("Beam Current", beam).
		Float("C-field Current", cfield).
		Float("Ionpump Current", pump).
		Float("Gain", gain).
		Float("RF Amplitude 1", rf[0]).
		Float("RF Amplitude 2", rf[1]).
		Float("Cesium Oven Voltage", coven).
		Float("Electron Multiplier Voltage", emul).
		Float("Hot Wire Ionizer Voltage", hwi).
		Float("Mass Spectrometer Voltage", msp).
		Float("DRO Tuning Voltage", pll[0]).
		Float("SAW Tuning Voltage", pll[1]).
		Float("87 MHz Tuning Voltage", pll[2]).
		Float("uC clock Tuning Voltage", pll[3]).
		Build()
}

// command writes one line and consumes its echo.
func (a *Adapter) command(cmd string) error {
	if err := a.ch.Write([]byte(cmd + "\r\n")); err != nil {
		return err
	}
	if _, err := a.ch.ReadLine(); err != nil && !fault.Is(err, fault.Timeout) {
		return err
	}
	return nil
}

func (a *Adapter) readLine(op string) (string, error) {
	b, err := a.ch.ReadLine()
	if err != nil {
		return "", fault.New(fault.KindOf(err), op, err)
	}
	return strings.TrimRight(string(b), " \t\r\n"), nil
}

func (a *Adapter) query(cmd string) (string, error) {
	if err := a.command(cmd); err != nil {
		return "", fault.New(fault.KindOf(err), cmd, err)
	}
	return a.readLine(cmd)
}

// session runs a query sequence and keeps the first error; later queries
// become no-ops returning zero values of the right shape.
type session struct {
	a   *Adapter
	err error
}

func (s *session) line(cmd string) (string, bool) {
	if s.err != nil {
		return "", false
	}
	v, err := s.a.query(cmd)
	if err != nil {
		s.err = err
		return "", false
	}
	return v, true
}

func (s *session) fail(cmd string, err error) {
	s.err = fault.New(fault.Malformed, cmd, err)
}

func (s *session) text(cmd string) string {
	v, ok := s.line(cmd)
	if !ok {
		return ""
	}
	return parseString(v)
}

func (s *session) integer(cmd string) int64 {
	v, ok := s.line(cmd)
	if !ok {
		return 0
	}
	n, err := parseInt(v)
	if err != nil {
		s.fail(cmd, err)
	}
	return n
}

func (s *session) integers(cmd string, want int) []int64 {
	out := make([]int64, want)
	v, ok := s.line(cmd)
	if !ok {
		return out
	}
	got, err := parseInts(v, want)
	if err != nil {
		s.fail(cmd, err)
		return out
	}
	return got
}

func (s *session) number(cmd string) float64 {
	v, ok := s.line(cmd)
	if !ok {
		return 0
	}
	f, err := parseFloat(v)
	if err != nil {
		s.fail(cmd, err)
	}
	return f
}

func (s *session) numbers(cmd string, want int) []float64 {
	out := make([]float64, want)
	v, ok := s.line(cmd)
	if !ok {
		return out
	}
	got, err := parseFloats(v, want)
	if err != nil {
		s.fail(cmd, err)
		return out
	}
	return got
}

func parseString(s string) string {
	return strings.ReplaceAll(s, `"`, "")
}

func parseInt(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func parseInts(s string, want int) ([]int64, error) {
	parts := strings.Split(s, ",")
	if len(parts) < want {
		return nil, fmt.Errorf("want %d values, got %d in %q", want, len(parts), s)
	}
	out := make([]int64, len(parts))
	for i, p := range parts {
		v, err := parseInt(p)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseFloats(s string, want int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) < want {
		return nil, fmt.Errorf("want %d values, got %d in %q", want, len(parts), s)
	}
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := parseFloat(p)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
