package fakehmc

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Jeomhps/hmc-go/internal/db"
)

// Reaper deletes ended jobs that clients never deleted.
type Reaper struct {
	Store     db.Store
	Retention time.Duration
	Log       *zap.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// RunOnce deletes the ended jobs older than the retention period and
// returns how many were deleted.
func (r Reaper) RunOnce(ctx context.Context) (int, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	cutoff := now().Add(-r.Retention)

	jobs, err := r.Store.ListResources(ctx, db.ClassJob, "")
	if err != nil {
		return 0, err
	}
	n := 0
	for _, job := range jobs {
		status, _ := job.Properties["status"].(string)
		if status != jobComplete && status != jobCanceled {
			continue
		}
		if job.CreatedAt.After(cutoff) {
			continue
		}
		if err := r.Store.DeleteResource(ctx, job.URI); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Run calls RunOnce every interval until ctx is done.
func (r Reaper) Run(ctx context.Context, interval time.Duration) {
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("starting job reaper", zap.Duration("interval", interval), zap.Duration("retention", r.Retention))
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("job reaper exiting")
			return
		case <-t.C:
			n, err := r.RunOnce(ctx)
			if err != nil && ctx.Err() == nil {
				log.Error("reap jobs", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("reaped jobs", zap.Int("count", n))
			}
		}
	}
}
