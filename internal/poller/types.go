// internal/poller/types.go
package poller

import (
	"context"
	"time"

	"github.com/tamzrod/masermon/internal/measurement"
)

// Adapter turns one device link into measurements.
// Identify runs once at startup; any error is fatal.
type Adapter interface {
	Identify(ctx context.Context) (measurement.Tags, error)

	// PollOnce performs one cycle. fault.ErrNoMeasurement means the
	// cycle produced nothing and is not an error.
	PollOnce(ctx context.Context, at time.Time) (measurement.Measurement, error)
}

// Reinitializer is implemented by adapters that can recover the device
// link after a validation failure.
type Reinitializer interface {
	Reinitialize(ctx context.Context) error
}

// Sink receives measurements. After a failed Write the poller calls
// Reconnect once and drops the measurement.
type Sink interface {
	Write(m measurement.Measurement) error
	Reconnect(ctx context.Context) error
}

// Recorder observes cycle outcomes (metrics).
type Recorder interface {
	CycleDone(result string, d time.Duration)
	SinkWriteFailed()
	SinkReconnected(err error)
	SetHealth(code uint16)
}

type nopRecorder struct{}

func (nopRecorder) CycleDone(string, time.Duration) {}
func (nopRecorder) SinkWriteFailed()                {}
func (nopRecorder) SinkReconnected(error)           {}
func (nopRecorder) SetHealth(uint16)                {}
