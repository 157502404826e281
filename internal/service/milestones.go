package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/launchfeed/launchfeed/internal/models"
)

// Default wake-up offsets relative to the launch time.
var defaultMilestoneOffsets = []time.Duration{
	-7 * 24 * time.Hour,
	-24 * time.Hour,
	0,
}

// MilestoneRegistry owns the cancellable timers that re-check a launch around
// its known milestones. At most one live schedule set exists per launch id:
// registering a launch cancels and replaces any previous timers for that id.
type MilestoneRegistry struct {
	offsets []time.Duration
	recheck func(ctx context.Context, id string)
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	closed  bool
}

// NewMilestoneRegistry creates a registry firing recheck for each scheduled
// milestone. A nil offsets slice uses the defaults (T-1week, T-1day, T).
func NewMilestoneRegistry(offsets []time.Duration, recheck func(ctx context.Context, id string), logger *slog.Logger) *MilestoneRegistry {
	if offsets == nil {
		offsets = defaultMilestoneOffsets
	}
	return &MilestoneRegistry{
		offsets: offsets,
		recheck: recheck,
		logger:  logger,
		now:     time.Now,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Schedule registers wake-ups for one launch, replacing any existing set for
// the same id. Milestones already in the past at schedule time are skipped; a
// launch with no known time only cancels its previous set.
func (r *MilestoneRegistry) Schedule(launch models.Launch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	if cancel, ok := r.cancels[launch.ID]; ok {
		cancel()
		delete(r.cancels, launch.ID)
	}
	if launch.LaunchTime == nil {
		return
	}

	now := r.now()
	var delays []time.Duration
	for _, offset := range r.offsets {
		fireAt := launch.LaunchTime.Add(offset)
		if fireAt.After(now) {
			delays = append(delays, fireAt.Sub(now))
		}
	}
	if len(delays) == 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancels[launch.ID] = cancel

	for _, delay := range delays {
		go r.waitAndRecheck(ctx, launch.ID, delay)
	}

	r.logger.Debug("scheduled milestone re-checks",
		"launch_id", launch.ID,
		"count", len(delays))
}

// ScheduleAll registers every launch in the list.
func (r *MilestoneRegistry) ScheduleAll(launches []models.Launch) {
	for _, launch := range launches {
		r.Schedule(launch)
	}
}

func (r *MilestoneRegistry) waitAndRecheck(ctx context.Context, id string, delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
		r.recheck(ctx, id)
	}
}

// Stop cancels every live timer. The registry accepts no further schedules.
func (r *MilestoneRegistry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for id, cancel := range r.cancels {
		cancel()
		delete(r.cancels, id)
	}
}
