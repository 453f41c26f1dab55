package sweep

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultInterval matches the once-a-minute cleanup expected by deployments
// that do not configure one.
const DefaultInterval = time.Minute

/*
Sweeper removes expired sessions and reports how many it removed.
*stores.SessionStore satisfies it.
*/
type Sweeper interface {
	CleanupExpiredSessions(ctx context.Context) (int, error)
}

/*
Scheduler calls a Sweeper on a fixed interval until its context ends.
*/
type Scheduler struct {
	sweeper  Sweeper
	interval time.Duration
}

/*
NewScheduler returns a scheduler for sweeper. A non-positive interval falls
back to DefaultInterval.
*/
func NewScheduler(sweeper Sweeper, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Scheduler{
		sweeper:  sweeper,
		interval: interval,
	}
}

func (scheduler *Scheduler) Interval() time.Duration {
	return scheduler.interval
}

/*
Run sweeps once per interval. A failed sweep is logged and retried on the
next tick; only the end of ctx stops the loop, in which case Run returns nil.
*/
func (scheduler *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(scheduler.interval)
	defer ticker.Stop()

	log.Info("session sweep scheduled", "interval", scheduler.interval)

	for {
		select {
		case <-ctx.Done():
			log.Info("session sweep stopped")
			return nil
		case <-ticker.C:
			if _, err := scheduler.RunOnce(ctx); err != nil && ctx.Err() == nil {
				log.Warn("session sweep failed, retrying next interval", "error", err)
			}
		}
	}
}

/*
RunOnce performs a single sweep immediately.
*/
func (scheduler *Scheduler) RunOnce(ctx context.Context) (int, error) {
	removed, err := scheduler.sweeper.CleanupExpiredSessions(ctx)

	if err != nil {
		log.Error("session sweep failed", "removed", removed, "error", err)
		return removed, err
	}

	log.Debug("session sweep finished", "removed", removed)
	return removed, nil
}
