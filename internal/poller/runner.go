// internal/poller/runner.go
package poller

import (
	"context"

	"github.com/tamzrod/masermon/internal/metrics"
)

// Run polls until ctx is cancelled. The pause between cycles is the
// configured interval, not compensated for cycle duration.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info().Dur("interval", p.cfg.Interval).Msg("polling")

	// Full status block on start.
	p.writeStatus()

	for ctx.Err() == nil {
		if retryNow(p.PollOnce(ctx)) {
			continue
		}
		if err := p.sleep(ctx, p.cfg.Interval); err != nil {
			break
		}
	}

	p.log.Info().Msg("stopped")
	return nil
}

// retryNow reports results that are followed by another cycle without the
// interval pause. Sink.Reconnect has already paused, and a re-initialised
// device is read again straight away.
func retryNow(result string) bool {
	return result == metrics.ResultSinkError || result == metrics.ResultValidation
}
