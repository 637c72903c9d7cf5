// internal/writer/writer.go
package writer

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/masermon/internal/fault"
	"github.com/tamzrod/masermon/internal/measurement"
)

// ReconnectPause is how long Reconnect waits after rebuilding the client.
const ReconnectPause = time.Second

// Sink forwards measurements to the database. The connection is reused
// while healthy; after a failure the caller asks for Reconnect, which
// discards the client and builds a fresh one through the factory.
// Nothing is buffered: a point that fails to write is gone.
type Sink struct {
	factory  ClientFactory
	database string
	log      zerolog.Logger

	pause time.Duration
	sleep func(ctx context.Context, d time.Duration) error

	client Client
}

type SinkOption func(*Sink)

// WithReconnectPause overrides ReconnectPause.
func WithReconnectPause(d time.Duration) SinkOption {
	return func(s *Sink) { s.pause = d }
}

// NewSink connects and ensures the database. Failure is
// fault.SinkUnavailable.
func NewSink(factory ClientFactory, database string, log zerolog.Logger, opts ...SinkOption) (*Sink, error) {
	if factory == nil {
		return nil, errors.New("writer: client factory required")
	}
	if database == "" {
		return nil, errors.New("writer: database required")
	}

	s := &Sink{
		factory:  factory,
		database: database,
		log:      log,
		pause:    ReconnectPause,
		sleep:    sleepCtx,
	}
	for _, o := range opts {
		o(s)
	}
	if err := s.connect(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sink) connect() error {
	c, err := s.factory()
	if err != nil {
		return fault.New(fault.SinkUnavailable, "connect", err)
	}
	if err := c.EnsureDatabase(s.database); err != nil {
		_ = c.Close()
		return fault.New(fault.SinkUnavailable, "create database "+s.database, err)
	}
	s.client = c
	return nil
}

// Write sends one measurement as a single-point batch.
func (s *Sink) Write(m measurement.Measurement) error {
	if s.client == nil {
		return fault.Errorf(fault.SinkUnavailable, "write", "not connected")
	}
	if err := s.client.WritePoints([]measurement.Measurement{m}); err != nil {
		return fault.New(fault.SinkWrite, "write", err)
	}
	return nil
}

// Reconnect replaces the client, ensures the database and then pauses.
// The pause applies even when reconnecting fails.
func (s *Sink) Reconnect(ctx context.Context) error {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.log.Debug().Err(err).Msg("closing old sink client")
		}
		s.client = nil
	}

	err := s.connect()
	if err != nil {
		s.log.Error().Err(err).Msg("sink reconnect failed")
	} else {
		s.log.Info().Str("database", s.database).Msg("sink reconnected")
	}

	if serr := s.sleep(ctx, s.pause); serr != nil && err == nil {
		err = serr
	}
	return err
}

func (s *Sink) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
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
