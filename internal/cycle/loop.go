package cycle

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/murmur/internal/config"
)

// Schedule controls when cycles run.
type Schedule struct {
	WorkStartHour int
	WorkEndHour   int

	// IntervalMin and IntervalMax bound the pause between successful cycles.
	IntervalMin time.Duration
	IntervalMax time.Duration

	OffHoursPause time.Duration
	ErrorPause    time.Duration
}

const (
	minPause = 5 * time.Minute
	maxPause = 60 * time.Minute
)

// ScheduleFromConfig extracts the schedule from the application config.
func ScheduleFromConfig(cfg *config.Config) Schedule {
	return Schedule{
		WorkStartHour: cfg.WorkStartHour,
		WorkEndHour:   cfg.WorkEndHour,
		IntervalMin:   time.Duration(cfg.IntervalMinMinutes) * time.Minute,
		IntervalMax:   time.Duration(cfg.IntervalMaxMinutes) * time.Minute,
		OffHoursPause: 30 * time.Minute,
		ErrorPause:    5 * time.Minute,
	}
}

func (s Schedule) withDefaults() Schedule {
	if s.WorkEndHour == 0 {
		s.WorkStartHour, s.WorkEndHour = 9, 18
	}
	if s.IntervalMin <= 0 {
		s.IntervalMin = 15 * time.Minute
	}
	if s.IntervalMax < s.IntervalMin {
		s.IntervalMax = s.IntervalMin
	}
	if s.OffHoursPause <= 0 {
		s.OffHoursPause = 30 * time.Minute
	}
	if s.ErrorPause <= 0 {
		s.ErrorPause = 5 * time.Minute
	}
	return s
}

// InWorkingHours reports whether t falls in [WorkStartHour, WorkEndHour).
func (s Schedule) InWorkingHours(t time.Time) bool {
	h := t.Hour()
	return h >= s.WorkStartHour && h < s.WorkEndHour
}

// NextPause picks a pause uniformly in [IntervalMin, IntervalMax], adds up
// to ±5% jitter, rounds to a tenth of a minute and clamps it to [5m, 60m].
// r must return values in [0, 1).
func (s Schedule) NextPause(r func() float64) time.Duration {
	minutes := s.IntervalMin.Minutes() + r()*(s.IntervalMax-s.IntervalMin).Minutes()
	minutes += minutes * 0.1 * (r() - 0.5)
	minutes = math.Round(minutes*10) / 10

	d := time.Duration(minutes * float64(time.Minute))
	return min(max(d, minPause), maxPause)
}

// Loop runs cycles until ctx is cancelled. Outside working hours it waits
// OffHoursPause, after a failed cycle ErrorPause, and otherwise a random
// pause from NextPause. It returns nil on cancellation once background
// refills have finished.
func (r *Runner) Loop(ctx context.Context) error {
	r.log.Info("worker started",
		zap.Int("work_start_hour", r.sched.WorkStartHour),
		zap.Int("work_end_hour", r.sched.WorkEndHour))
	defer r.Wait()

	for {
		var pause time.Duration

		if !r.sched.InWorkingHours(r.now()) {
			pause = r.sched.OffHoursPause
			r.log.Info("outside working hours", zap.Duration("pause", pause))
		} else if res, err := r.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			pause = r.sched.ErrorPause
			r.log.Error("cycle failed", zap.Error(err), zap.Duration("pause", pause))
		} else {
			pause = r.sched.NextPause(r.rand)
			stats := r.buffer.Stats(ctx)
			r.log.Info("next cycle scheduled",
				zap.String("tier", string(res.Tier)),
				zap.Int("queued", stats.Queued),
				zap.Duration("pause", pause),
				zap.Time("next_at", r.now().Add(pause)))
		}

		if !sleep(ctx, pause) {
			break
		}
	}

	r.log.Info("worker stopping")
	return nil
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func newRandFloat() func() float64 {
	var mu sync.Mutex
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	return func() float64 {
		mu.Lock()
		defer mu.Unlock()
		return rng.Float64()
	}
}
