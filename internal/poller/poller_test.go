// internal/poller/poller_test.go
package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/masermon/internal/fault"
	"github.com/tamzrod/masermon/internal/measurement"
	"github.com/tamzrod/masermon/internal/metrics"
	"github.com/tamzrod/masermon/internal/status"
	"github.com/tamzrod/masermon/internal/writer"
)

// ---- fakes ----

type step struct {
	m   measurement.Measurement
	err error
}

type fakeAdapter struct {
	steps   []step
	calls   int
	at      []time.Time
	reinits int
}

func (f *fakeAdapter) Identify(context.Context) (measurement.Tags, error) {
	return measurement.Tags{"masertype": "fake"}, nil
}

func (f *fakeAdapter) PollOnce(_ context.Context, at time.Time) (measurement.Measurement, error) {
	f.at = append(f.at, at)
	s := f.steps[min(f.calls, len(f.steps)-1)]
	f.calls++
	if s.err != nil {
		return measurement.Measurement{}, s.err
	}
	s.m.Time = at
	return s.m, nil
}

type reinitAdapter struct{ *fakeAdapter }

func (r reinitAdapter) Reinitialize(context.Context) error {
	r.reinits++
	return nil
}

type fakeSink struct {
	written    []measurement.Measurement
	failWrites int
	reconnects int
}

func (f *fakeSink) Write(m measurement.Measurement) error {
	if f.failWrites > 0 {
		f.failWrites--
		return fault.New(fault.SinkWrite, "write", errors.New("connection reset"))
	}
	f.written = append(f.written, m)
	return nil
}

func (f *fakeSink) Reconnect(context.Context) error {
	f.reconnects++
	return nil
}

type fakeRecorder struct {
	results      []string
	writeFailed  int
	reconnectErr []error
	health       uint16
}

func (r *fakeRecorder) CycleDone(result string, _ time.Duration) {
	r.results = append(r.results, result)
}
func (r *fakeRecorder) SinkWriteFailed()          { r.writeFailed++ }
func (r *fakeRecorder) SinkReconnected(err error) { r.reconnectErr = append(r.reconnectErr, err) }
func (r *fakeRecorder) SetHealth(code uint16)     { r.health = code }

type fakeStatus struct{ snaps []status.Snapshot }

func (f *fakeStatus) WriteStatus(s status.Snapshot) error {
	f.snaps = append(f.snaps, s)
	return nil
}

func good() step {
	return step{m: measurement.Measurement{
		Name:   "maserdata",
		Tags:   measurement.Tags{"masertype": "fake"},
		Fields: map[string]any{"Temp": 21.5},
	}}
}

var epoch = time.Date(2024, 5, 6, 7, 8, 9, 0, time.FixedZone("CEST", 2*3600))

func newTestPoller(t *testing.T, a Adapter, s Sink, opts ...Option) (*Poller, *fakeRecorder, *status.Tracker) {
	t.Helper()
	rec := &fakeRecorder{}
	tr := status.NewTracker(status.Info{Device: "maserdata"})
	opts = append([]Option{WithRecorder(rec), WithTracker(tr), WithLogger(zerolog.Nop())}, opts...)

	p, err := New(Config{Device: "maserdata", Interval: 10 * time.Second}, a, s, opts...)
	require.NoError(t, err)
	p.now = func() time.Time { return epoch }
	return p, rec, tr
}

// ---- cycle classification ----

func TestPollOnce_WritesWithUTCTimestamp(t *testing.T) {
	a := &fakeAdapter{steps: []step{good()}}
	s := &fakeSink{}
	p, rec, tr := newTestPoller(t, a, s)

	assert.Equal(t, metrics.ResultOK, p.PollOnce(context.Background()))

	require.Len(t, s.written, 1)
	assert.Equal(t, time.UTC, a.at[0].Location())
	assert.True(t, epoch.Equal(s.written[0].Time))
	assert.Equal(t, status.HealthOK, tr.Snapshot().Health)
	assert.Equal(t, status.HealthOK, rec.health)
	assert.Equal(t, []string{metrics.ResultOK}, rec.results)
}

func TestPollOnce_NoMeasurementIsNotAnError(t *testing.T) {
	a := &fakeAdapter{steps: []step{{err: fault.ErrNoMeasurement}}}
	s := &fakeSink{}
	p, rec, tr := newTestPoller(t, a, s)

	assert.Equal(t, metrics.ResultEmpty, p.PollOnce(context.Background()))

	assert.Empty(t, s.written)
	assert.Equal(t, status.HealthUnknown, tr.Snapshot().Health)
	assert.Zero(t, rec.writeFailed)
}

func TestPollOnce_ValidationReinitializes(t *testing.T) {
	inner := &fakeAdapter{steps: []step{
		{err: fault.Errorf(fault.Validation, "$MT", "temperature 200 out of range")},
		good(),
	}}
	s := &fakeSink{}
	p, _, tr := newTestPoller(t, reinitAdapter{inner}, s)

	assert.Equal(t, metrics.ResultValidation, p.PollOnce(context.Background()))
	assert.Equal(t, 1, inner.reinits)
	assert.Empty(t, s.written)

	snap := tr.Snapshot()
	assert.Equal(t, status.HealthError, snap.Health)
	assert.Equal(t, uint16(fault.Validation), snap.LastErrorCode)

	assert.Equal(t, metrics.ResultOK, p.PollOnce(context.Background()))
	assert.Equal(t, 1, inner.reinits)
	assert.Equal(t, status.HealthOK, tr.Snapshot().Health)
}

func TestPollOnce_ValidationWithoutReinitializer(t *testing.T) {
	a := &fakeAdapter{steps: []step{{err: fault.Errorf(fault.Validation, "read", "bad")}}}
	p, _, _ := newTestPoller(t, a, &fakeSink{})

	assert.Equal(t, metrics.ResultValidation, p.PollOnce(context.Background()))
}

func TestPollOnce_OtherErrorsAreLoggedAndSkipped(t *testing.T) {
	inner := &fakeAdapter{steps: []step{
		{err: fault.Errorf(fault.Timeout, "DIAG:TEMP?", "no reply")},
	}}
	s := &fakeSink{}
	p, rec, tr := newTestPoller(t, reinitAdapter{inner}, s)

	assert.Equal(t, metrics.ResultError, p.PollOnce(context.Background()))

	assert.Zero(t, inner.reinits)
	assert.Empty(t, s.written)
	assert.Equal(t, uint16(fault.Timeout), tr.Snapshot().LastErrorCode)
	assert.Equal(t, status.HealthError, rec.health)
}

func TestPollOnce_SinkFailureReconnectsAndDrops(t *testing.T) {
	a := &fakeAdapter{steps: []step{good()}}
	s := &fakeSink{failWrites: 1}
	p, rec, tr := newTestPoller(t, a, s)

	assert.Equal(t, metrics.ResultSinkError, p.PollOnce(context.Background()))
	assert.Equal(t, 1, s.reconnects)
	assert.Empty(t, s.written)
	assert.Equal(t, 1, rec.writeFailed)
	assert.Equal(t, []error{nil}, rec.reconnectErr)
	assert.Equal(t, uint16(fault.SinkWrite), tr.Snapshot().LastErrorCode)

	// next cycle goes through; the failed point was never queued
	assert.Equal(t, metrics.ResultOK, p.PollOnce(context.Background()))
	assert.Len(t, s.written, 1)
	assert.Equal(t, 1, s.reconnects)
}

// ---- sink recovery end to end through writer.Sink ----

type dbClient struct {
	ensured  int
	written  []measurement.Measurement
	writeErr error
	closed   bool
}

func (c *dbClient) EnsureDatabase(string) error { c.ensured++; return nil }
func (c *dbClient) WritePoints(ms []measurement.Measurement) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, ms...)
	return nil
}
func (c *dbClient) Close() error { c.closed = true; return nil }

func TestSinkRecovery(t *testing.T) {
	var clients []*dbClient
	factory := func() (writer.Client, error) {
		c := &dbClient{}
		if len(clients) == 0 {
			c.writeErr = errors.New("broken pipe")
		}
		clients = append(clients, c)
		return c, nil
	}

	sink, err := writer.NewSink(factory, "EFOStest", zerolog.Nop(), writer.WithReconnectPause(0))
	require.NoError(t, err)

	a := &fakeAdapter{steps: []step{good()}}
	p, _, _ := newTestPoller(t, a, sink)

	assert.Equal(t, metrics.ResultSinkError, p.PollOnce(context.Background()))
	require.Len(t, clients, 2)
	assert.True(t, clients[0].closed)
	assert.Equal(t, 1, clients[1].ensured)
	assert.Empty(t, clients[1].written)

	assert.Equal(t, metrics.ResultOK, p.PollOnce(context.Background()))
	assert.Len(t, clients, 2)
	assert.Len(t, clients[1].written, 1)
}

// ---- status mirror ----

func TestPollOnce_MirrorsStatus(t *testing.T) {
	a := &fakeAdapter{steps: []step{
		{err: fault.Errorf(fault.Malformed, "frame", "bad terminator")},
		good(),
	}}
	sw := &fakeStatus{}
	p, _, _ := newTestPoller(t, a, &fakeSink{}, WithStatusWriter(sw))

	p.PollOnce(context.Background())
	p.PollOnce(context.Background())

	require.Len(t, sw.snaps, 2)
	assert.Equal(t, status.HealthError, sw.snaps[0].Health)
	assert.Equal(t, uint16(fault.Malformed), sw.snaps[0].LastErrorCode)
	assert.Equal(t, status.Snapshot{Health: status.HealthOK}, sw.snaps[1])
}

// ---- loop ----

func TestRun_SleepsIntervalAndStopsOnCancel(t *testing.T) {
	a := &fakeAdapter{steps: []step{good()}}
	sw := &fakeStatus{}
	p, _, _ := newTestPoller(t, a, &fakeSink{}, WithStatusWriter(sw))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pauses []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		if len(pauses) == 3 {
			cancel()
		}
		return ctx.Err()
	}

	require.NoError(t, p.Run(ctx))

	assert.Equal(t, 3, a.calls)
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second, 10 * time.Second}, pauses)
	// one full block on start, one per cycle
	assert.Len(t, sw.snaps, 4)
}

// cancelAfterPauses cancels ctx on the n-th interval pause and records the
// pauses taken.
func cancelAfterPauses(p *Poller, cancel context.CancelFunc, n int) *[]time.Duration {
	var pauses []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		if len(pauses) == n {
			cancel()
		}
		return ctx.Err()
	}
	return &pauses
}

func TestRun_NoIntervalPauseAfterSinkError(t *testing.T) {
	a := &fakeAdapter{steps: []step{good()}}
	s := &fakeSink{failWrites: 1}
	p, rec, _ := newTestPoller(t, a, s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pauses := cancelAfterPauses(p, cancel, 1)

	require.NoError(t, p.Run(ctx))

	// failed write, reconnect, immediate retry, then the regular pause
	assert.Equal(t, 2, a.calls)
	assert.Equal(t, 1, s.reconnects)
	assert.Len(t, s.written, 1)
	assert.Equal(t, []string{metrics.ResultSinkError, metrics.ResultOK}, rec.results)
	assert.Equal(t, []time.Duration{10 * time.Second}, *pauses)
}

func TestRun_NoIntervalPauseAfterValidationFailure(t *testing.T) {
	inner := &fakeAdapter{steps: []step{
		{err: fault.Errorf(fault.Validation, "$MR", "non-numeric reply")},
		good(),
	}}
	s := &fakeSink{}
	p, _, _ := newTestPoller(t, reinitAdapter{inner}, s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pauses := cancelAfterPauses(p, cancel, 1)

	require.NoError(t, p.Run(ctx))

	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 1, inner.reinits)
	assert.Len(t, s.written, 1)
	assert.Equal(t, []time.Duration{10 * time.Second}, *pauses)
}

func TestRun_PausesAfterOtherErrors(t *testing.T) {
	a := &fakeAdapter{steps: []step{
		{err: fault.Errorf(fault.Timeout, "PTIM:MJD?", "no reply")},
		{err: fault.ErrNoMeasurement},
	}}
	p, _, _ := newTestPoller(t, a, &fakeSink{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pauses := cancelAfterPauses(p, cancel, 2)

	require.NoError(t, p.Run(ctx))

	assert.Equal(t, 2, a.calls)
	assert.Len(t, *pauses, 2)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	a := &fakeAdapter{steps: []step{good()}}
	p, _, _ := newTestPoller(t, a, &fakeSink{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Zero(t, a.calls)
}

func TestSleepCtx(t *testing.T) {
	assert.NoError(t, sleepCtx(context.Background(), 0))
	assert.NoError(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}

func TestNew_Rejects(t *testing.T) {
	a := &fakeAdapter{steps: []step{good()}}

	_, err := New(Config{Interval: time.Second}, nil, &fakeSink{})
	assert.Error(t, err)

	_, err = New(Config{Interval: time.Second}, a, nil)
	assert.Error(t, err)

	_, err = New(Config{Interval: -time.Second}, a, &fakeSink{})
	assert.Error(t, err)

	p, err := New(Config{}, a, &fakeSink{})
	require.NoError(t, err)
	assert.NotNil(t, p.tracker)
}
