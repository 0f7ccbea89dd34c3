// Package exclusion tracks how many of the most recent source comments are
// skipped before the rest are used as generation context. The count starts
// each day at a base value and grows by one per published comment.
package exclusion

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/errors"
)

// Store persists opaque records by key. Load must return a NOT_FOUND
// MurmurError when the key is absent.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, payload []byte) error
}

// Options tune the counter.
type Options struct {
	Base          int
	Max           int
	WorkStartHour int
	WorkEndHour   int
}

// OptionsFromConfig extracts counter options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Base:          cfg.BaseExcludeCount,
		Max:           cfg.MaxExcludeCount,
		WorkStartHour: cfg.WorkStartHour,
		WorkEndHour:   cfg.WorkEndHour,
	}
}

// Counter is the daily exclusion counter.
type Counter struct {
	store Store
	opts  Options
	log   *zap.Logger
	now   func() time.Time

	mu sync.Mutex
}

// New creates a Counter using the wall clock. log may be nil.
func New(store Store, opts Options, log *zap.Logger) *Counter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Counter{
		store: store,
		opts:  opts,
		log:   log.Named("exclusion"),
		now:   time.Now,
	}
}

// SetClock overrides the time source. The clock's location defines the
// calendar day.
func (c *Counter) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// ExcludeCount returns today's exclusion count, capped at Max. It rolls the
// state over to the base value on a new day or when the working day has
// started since the state was established.
func (c *Counter) ExcludeCount(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.currentLocked(ctx)
	return c.capped(st.CommentsCount)
}

// IncrementPublished records one published comment and returns the new
// stored count. Call it once per successful publish.
func (c *Counter) IncrementPublished(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.currentLocked(ctx)
	now := c.now()
	st.CommentsCount++
	st.LastComment = &now
	c.saveLocked(ctx, st)

	c.log.Info("published count incremented",
		zap.Int("comments_count", st.CommentsCount),
		zap.Int("exclude_count", c.capped(st.CommentsCount)))
	return st.CommentsCount
}

// State returns today's state after applying rollover rules.
func (c *Counter) State(ctx context.Context) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentLocked(ctx)
}

// Reset forces today's state back to the base value.
func (c *Counter) Reset(ctx context.Context) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.fresh()
	data, err := encodeState(st)
	if err != nil {
		return State{}, errors.NewInternal(err)
	}
	if err := c.store.Save(ctx, RecordKey, data); err != nil {
		return State{}, err
	}
	c.log.Warn("exclusion state reset", zap.Int("comments_count", st.CommentsCount))
	return st, nil
}

// Max returns the configured cap.
func (c *Counter) Max() int {
	return c.opts.Max
}

// currentLocked loads the stored state and applies the rollover rules,
// persisting whenever a fresh state is established.
func (c *Counter) currentLocked(ctx context.Context) State {
	now := c.now()
	today := now.Format(dateLayout)

	st, ok := c.loadLocked(ctx, now.Location())
	switch {
	case !ok:
		st = c.fresh()
		c.log.Info("exclusion state created", zap.String("date", today))
		c.saveLocked(ctx, st)
	case st.Date != today:
		c.log.Info("new day, exclusion state reset",
			zap.String("previous_date", st.Date),
			zap.Int("previous_count", st.CommentsCount))
		st = c.fresh()
		c.saveLocked(ctx, st)
	case c.workdayStartedSince(now, st.StartTime):
		c.log.Info("working day started, exclusion state reset",
			zap.Time("previous_start", st.StartTime),
			zap.Int("previous_count", st.CommentsCount))
		st = c.fresh()
		c.saveLocked(ctx, st)
	case st.CommentsCount < c.opts.Base:
		// Base was raised since the record was written.
		c.log.Info("exclusion count below base, raised",
			zap.Int("previous_count", st.CommentsCount),
			zap.Int("base", c.opts.Base))
		st.CommentsCount = c.opts.Base
		c.saveLocked(ctx, st)
	}
	return st
}

// workdayStartedSince reports whether today's working-day start lies
// between start and now, with now inside working hours.
func (c *Counter) workdayStartedSince(now, start time.Time) bool {
	hour := now.Hour()
	if hour < c.opts.WorkStartHour || hour >= c.opts.WorkEndHour {
		return false
	}
	boundary := time.Date(now.Year(), now.Month(), now.Day(), c.opts.WorkStartHour, 0, 0, 0, now.Location())
	return start.Before(boundary) && !now.Before(boundary)
}

func (c *Counter) fresh() State {
	now := c.now()
	return State{
		Date:          now.Format(dateLayout),
		StartTime:     now,
		CommentsCount: c.opts.Base,
		Version:       recordVersion,
	}
}

func (c *Counter) loadLocked(ctx context.Context, loc *time.Location) (State, bool) {
	data, err := c.store.Load(ctx, RecordKey)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			c.log.Warn("exclusion read failed, using base state", zap.Error(err))
		}
		return State{}, false
	}
	st, err := decodeState(data, c.opts.Base, loc)
	if err != nil {
		c.log.Warn("exclusion record unreadable, using base state", zap.Error(err))
		return State{}, false
	}
	return st, true
}

func (c *Counter) saveLocked(ctx context.Context, st State) {
	data, err := encodeState(st)
	if err == nil {
		err = c.store.Save(ctx, RecordKey, data)
	}
	if err != nil {
		c.log.Error("exclusion write failed", zap.Error(err))
	}
}

func (c *Counter) capped(n int) int {
	if c.opts.Max > 0 && n > c.opts.Max {
		return c.opts.Max
	}
	return n
}
