// internal/poller/poller.go
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/masermon/internal/fault"
	"github.com/tamzrod/masermon/internal/metrics"
	"github.com/tamzrod/masermon/internal/status"
	"github.com/tamzrod/masermon/internal/writer"
)

// Config is the minimal runtime config the poller needs.
type Config struct {
	Device   string // for logs
	Interval time.Duration
}

// Poller drives one adapter. One goroutine, no overlap.
type Poller struct {
	cfg     Config
	adapter Adapter
	sink    Sink

	tracker *status.Tracker
	status  writer.StatusWriter
	rec     Recorder
	log     zerolog.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

type Option func(*Poller)

func WithTracker(t *status.Tracker) Option { return func(p *Poller) { p.tracker = t } }

// WithStatusWriter mirrors the health snapshot after every cycle.
func WithStatusWriter(sw writer.StatusWriter) Option { return func(p *Poller) { p.status = sw } }

func WithRecorder(r Recorder) Option { return func(p *Poller) { p.rec = r } }

func WithLogger(l zerolog.Logger) Option { return func(p *Poller) { p.log = l } }

// New creates a poller with immutable config.
func New(cfg Config, a Adapter, s Sink, opts ...Option) (*Poller, error) {
	if a == nil {
		return nil, errors.New("poller: adapter required")
	}
	if s == nil {
		return nil, errors.New("poller: sink required")
	}
	if cfg.Interval < 0 {
		return nil, errors.New("poller: interval must be >= 0")
	}

	p := &Poller{
		cfg:     cfg,
		adapter: a,
		sink:    s,
		rec:     nopRecorder{},
		log:     zerolog.Nop(),
		now:     time.Now,
		sleep:   sleepCtx,
	}
	for _, o := range opts {
		o(p)
	}
	if p.tracker == nil {
		p.tracker = status.NewTracker(status.Info{Device: cfg.Device})
	}
	return p, nil
}

// PollOnce performs exactly one cycle and reports its result label.
func (p *Poller) PollOnce(ctx context.Context) string {
	start := p.now()
	at := start.UTC()

	result := p.cycle(ctx, at)

	p.rec.CycleDone(result, p.now().Sub(start))
	p.rec.SetHealth(p.tracker.Snapshot().Health)
	p.writeStatus()
	return result
}

func (p *Poller) cycle(ctx context.Context, at time.Time) string {
	m, err := p.adapter.PollOnce(ctx, at)
	switch {
	case errors.Is(err, fault.ErrNoMeasurement):
		return metrics.ResultEmpty

	case fault.Is(err, fault.Validation):
		p.log.Warn().Err(err).Msg("reading rejected")
		p.tracker.Failed(err, at)
		if r, ok := p.adapter.(Reinitializer); ok {
			if rerr := r.Reinitialize(ctx); rerr != nil {
				p.log.Error().Err(rerr).Msg("reinitialize failed")
			}
		}
		return metrics.ResultValidation

	case err != nil:
		p.log.Error().Err(err).Str("kind", fault.KindOf(err).String()).Msg("poll failed")
		p.tracker.Failed(err, at)
		return metrics.ResultError
	}

	if err := p.sink.Write(m); err != nil {
		p.log.Error().Err(err).Strs("fields", m.FieldNames()).Msg("sink write failed, measurement dropped")
		p.rec.SinkWriteFailed()
		p.tracker.Failed(err, at)

		rerr := p.sink.Reconnect(ctx)
		p.rec.SinkReconnected(rerr)
		return metrics.ResultSinkError
	}

	p.tracker.Succeeded(at)
	p.log.Debug().Time("at", m.Time).Strs("fields", m.FieldNames()).Msg("written")
	return metrics.ResultOK
}

func (p *Poller) writeStatus() {
	if p.status == nil {
		return
	}
	if err := p.status.WriteStatus(p.tracker.Snapshot()); err != nil {
		p.log.Warn().Err(err).Msg("status write failed")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
