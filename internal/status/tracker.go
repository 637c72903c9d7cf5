// internal/status/tracker.go
package status

import (
	"errors"
	"sync"
	"time"
)

// Info is fixed for the life of the process.
type Info struct {
	Run      string
	Device   string
	Protocol string
}

// Tracker owns the health state machine. The poll loop records cycle
// outcomes; the HTTP server reads concurrently.
type Tracker struct {
	mu  sync.Mutex
	now func() time.Time

	info        Info
	health      uint16
	code        uint16
	lastErr     string
	errorSince  time.Time
	lastSuccess time.Time
	cycles      uint64
	failures    uint64
}

func NewTracker(info Info) *Tracker {
	return &Tracker{info: info, now: time.Now, health: HealthUnknown}
}

// Succeeded marks a good cycle and clears the error state.
func (t *Tracker) Succeeded(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cycles++
	t.health = HealthOK
	t.code = 0
	t.lastErr = ""
	t.errorSince = time.Time{}
	t.lastSuccess = at
}

// Failed marks a failed cycle. The error clock starts at the first failure
// of a run of failures.
func (t *Tracker) Failed(err error, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cycles++
	t.failures++
	if t.health != HealthError {
		t.errorSince = at
	}
	t.health = HealthError
	t.code = ErrorCode(err)
	if err != nil {
		t.lastErr = err.Error()
	}
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	s := Snapshot{Health: t.health, LastErrorCode: t.code}
	if t.health == HealthError {
		secs := t.now().Sub(t.errorSince) / time.Second
		s.SecondsInError = uint16(min(max(secs, 0), MaxSecondsInError))
	}
	return s
}

func (t *Tracker) Report() Report {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.snapshotLocked()
	return Report{
		Run:            t.info.Run,
		Device:         t.info.Device,
		Protocol:       t.info.Protocol,
		Health:         HealthName(s.Health),
		HealthCode:     s.Health,
		LastErrorCode:  s.LastErrorCode,
		LastError:      t.lastErr,
		SecondsInError: s.SecondsInError,
		LastSuccess:    t.lastSuccess,
		Cycles:         t.cycles,
		Failures:       t.failures,
	}
}

// ErrorCode extracts a best-effort uint16 code from an error without
// assuming concrete types. Errors that expose no code map to 1.
func ErrorCode(err error) uint16 {
	if err == nil {
		return 0
	}

	type coderA interface{ Code() uint16 }
	type coderB interface{ ErrorCode() uint16 }

	var a coderA
	if errors.As(err, &a) {
		return a.Code()
	}
	var b coderB
	if errors.As(err, &b) {
		return b.ErrorCode()
	}
	return 1
}
