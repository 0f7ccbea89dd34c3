// Package buffer keeps a bounded FIFO queue of generated comments with
// similarity-aware selection. State lives in a record store and is reloaded
// before every operation so that a restarted process picks up where the
// previous one stopped.
package buffer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/errors"
	"github.com/hpungsan/murmur/internal/similarity"
)

// Store persists opaque records by key. Load must return a NOT_FOUND
// MurmurError when the key is absent.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, payload []byte) error
}

// Generator produces candidate comments from context comments.
type Generator interface {
	GenerateBatch(ctx context.Context, contextComments []string) ([]string, error)
}

// Options tune the buffer.
type Options struct {
	Capacity            int
	RefillThreshold     int
	SimilarityThreshold int
	MinChars            int // exclusive
	MaxChars            int // exclusive
}

// OptionsFromConfig extracts buffer options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Capacity:            cfg.BufferCapacity,
		RefillThreshold:     cfg.RefillThreshold,
		SimilarityThreshold: cfg.SimilarityThreshold,
		MinChars:            cfg.MinCommentChars,
		MaxChars:            cfg.MaxCommentChars,
	}
}

// Stats describes the current buffer contents.
type Stats struct {
	Queued          int       `json:"queued"`
	Capacity        int       `json:"capacity"`
	RefillThreshold int       `json:"refill_threshold"`
	NeedsRefill     bool      `json:"needs_refill"`
	Refilling       bool      `json:"refilling"`
	PreviousComment string    `json:"previous_comment,omitempty"`
	LastUpdated     time.Time `json:"last_updated,omitzero"`
	Comments        []string  `json:"comments"`
}

// Buffer is the comment queue. One value per process; safe for use by the
// work cycle and its background refill at the same time.
type Buffer struct {
	store Store
	gen   Generator
	opts  Options
	log   *zap.Logger
	now   func() time.Time

	mu    sync.Mutex
	state record
	// unsaved is set when the last write failed. The in-memory state then
	// stays authoritative for this process instead of the stale stored copy.
	unsaved bool

	refilling atomic.Bool
	wg        sync.WaitGroup
}

// New creates a Buffer. gen may be nil if EnsureReady and RefillBackground
// are never called; log may be nil.
func New(store Store, gen Generator, opts Options, log *zap.Logger) *Buffer {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 10
	}
	if opts.MinChars <= 0 {
		opts.MinChars = 10
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = 1000
	}
	return &Buffer{
		store: store,
		gen:   gen,
		opts:  opts,
		log:   log.Named("buffer"),
		now:   time.Now,
	}
}

// SetClock overrides the time source used for lastUpdated stamps.
func (b *Buffer) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// Valid reports whether text may enter the buffer.
func (b *Buffer) Valid(text string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	return n > b.opts.MinChars && n < b.opts.MaxChars
}

// AddBatch appends the valid candidates in order and trims the oldest
// entries down to capacity. It returns how many candidates were accepted,
// counted before trimming.
func (b *Buffer) AddBatch(ctx context.Context, candidates []string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.loadLocked(ctx)

	valid := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if b.Valid(c) {
			valid = append(valid, strings.TrimSpace(c))
		}
	}
	if dropped := len(candidates) - len(valid); dropped > 0 {
		b.log.Debug("dropped invalid candidates", zap.Int("dropped", dropped))
	}
	if len(valid) == 0 {
		b.log.Warn("no valid candidates in batch", zap.Int("candidates", len(candidates)))
		return 0
	}

	queue := append(b.state.Comments, valid...)
	if over := len(queue) - b.opts.Capacity; over > 0 {
		queue = queue[over:]
		b.log.Info("trimmed oldest comments", zap.Int("removed", over))
	}
	b.state.Comments = queue

	b.saveLocked(ctx)
	b.log.Info("added comments to buffer",
		zap.Int("added", len(valid)),
		zap.Int("queued", len(b.state.Comments)))
	return len(valid)
}

// GetNext pops the next comment. When the head is at least
// SimilarityThreshold percent similar to the previously returned comment and
// the entry behind it is strictly less similar, that entry is returned
// instead and the head moves to the tail. Otherwise the head is returned even
// if it is similar, so a repetitive buffer still drains. ok is false when the
// buffer is empty.
func (b *Buffer) GetNext(ctx context.Context) (comment string, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.loadLocked(ctx)

	queue := b.state.Comments
	if len(queue) == 0 {
		b.log.Warn("buffer is empty")
		return "", false
	}

	candidate := queue[0]
	queue = queue[1:]
	selected := candidate

	if prev := b.state.PreviousComment; prev != "" {
		candidateScore := similarity.Score(candidate, prev)
		if candidateScore >= float64(b.opts.SimilarityThreshold) && len(queue) > 0 {
			alternative := queue[0]
			queue = queue[1:]
			alternativeScore := similarity.Score(alternative, prev)

			if alternativeScore < candidateScore {
				queue = append(queue, candidate)
				selected = alternative
				b.log.Info("skipped similar comment",
					zap.Float64("similarity", candidateScore),
					zap.Float64("alternative_similarity", alternativeScore))
			} else {
				queue = append([]string{alternative}, queue...)
				b.log.Debug("no less similar alternative, using head",
					zap.Float64("similarity", candidateScore))
			}
		}
	}

	b.state.Comments = queue
	b.state.PreviousComment = selected
	b.saveLocked(ctx)

	b.log.Info("took comment from buffer",
		zap.String("preview", preview(selected)),
		zap.Int("remaining", len(queue)))
	return selected, true
}

// NeedsRefill reports whether fewer than RefillThreshold comments are queued.
func (b *Buffer) NeedsRefill(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.loadLocked(ctx)
	return len(b.state.Comments) < b.opts.RefillThreshold
}

// Len returns the number of queued comments.
func (b *Buffer) Len(ctx context.Context) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.loadLocked(ctx)
	return len(b.state.Comments)
}

// EnsureReady fills an empty buffer synchronously from the generator. It is
// meant for cold start: the caller proceeds only once at least one comment
// is queued. Generator failures are returned as is.
func (b *Buffer) EnsureReady(ctx context.Context, contextComments []string) error {
	if b.Len(ctx) > 0 {
		return nil
	}
	if b.gen == nil {
		return errors.NewInternal(fmt.Errorf("buffer has no generator"))
	}

	b.log.Info("buffer empty, generating initial batch")
	batch, err := b.gen.GenerateBatch(ctx, contextComments)
	if err != nil {
		return err
	}
	if b.AddBatch(ctx, batch) == 0 {
		return errors.NewGeneratorExhausted(1, fmt.Errorf("generator returned no valid comments"))
	}
	return nil
}

// RefillBackground generates a batch in a separate goroutine and adds it to
// the buffer. Errors are logged and never reach the caller. Only one refill
// runs at a time; further calls while one is in flight are ignored.
func (b *Buffer) RefillBackground(ctx context.Context, contextComments []string) {
	if b.gen == nil {
		b.log.Warn("refill requested without a generator")
		return
	}
	if !b.refilling.CompareAndSwap(false, true) {
		b.log.Debug("refill already in progress")
		return
	}

	input := append([]string(nil), contextComments...)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer b.refilling.Store(false)
		defer func() {
			if r := recover(); r != nil {
				b.log.Error("background refill panicked", zap.Any("panic", r))
			}
		}()

		batch, err := b.gen.GenerateBatch(ctx, input)
		if err != nil {
			b.log.Error("background refill failed", zap.Error(err))
			return
		}
		added := b.AddBatch(ctx, batch)
		b.log.Info("background refill finished", zap.Int("added", added))
	}()
}

// Wait blocks until in-flight background refills have finished.
func (b *Buffer) Wait() {
	b.wg.Wait()
}

// Stats returns a snapshot of the buffer.
func (b *Buffer) Stats(ctx context.Context) Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.loadLocked(ctx)
	return Stats{
		Queued:          len(b.state.Comments),
		Capacity:        b.opts.Capacity,
		RefillThreshold: b.opts.RefillThreshold,
		NeedsRefill:     len(b.state.Comments) < b.opts.RefillThreshold,
		Refilling:       b.refilling.Load(),
		PreviousComment: b.state.PreviousComment,
		LastUpdated:     b.state.LastUpdated,
		Comments:        append([]string{}, b.state.Comments...),
	}
}

// Clear empties the queue and forgets the previous selection.
func (b *Buffer) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = record{}
	b.unsaved = false
	if err := b.persistLocked(ctx); err != nil {
		b.unsaved = true
		return err
	}
	b.log.Warn("buffer cleared")
	return nil
}

// loadLocked refreshes the in-memory state from the store. Missing or
// unreadable records yield an empty buffer.
func (b *Buffer) loadLocked(ctx context.Context) {
	if b.unsaved {
		// Retry the pending write; keep the newer in-memory state either way.
		if err := b.persistLocked(ctx); err == nil {
			b.unsaved = false
		}
		return
	}

	data, err := b.store.Load(ctx, RecordKey)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			b.log.Warn("buffer read failed, treating as empty", zap.Error(err))
		}
		b.state = record{}
		return
	}

	rec, err := decodeRecord(data)
	if err != nil {
		b.log.Warn("buffer record unreadable, treating as empty", zap.Error(err))
		b.state = record{}
		return
	}
	if len(rec.Comments) > b.opts.Capacity {
		rec.Comments = rec.Comments[len(rec.Comments)-b.opts.Capacity:]
	}
	b.state = rec
}

// saveLocked persists the state, logging failures.
func (b *Buffer) saveLocked(ctx context.Context) {
	if err := b.persistLocked(ctx); err != nil {
		b.unsaved = true
		b.log.Error("buffer write failed, keeping in-memory state", zap.Error(err))
		return
	}
	b.unsaved = false
}

func (b *Buffer) persistLocked(ctx context.Context) error {
	b.state.LastUpdated = b.now()
	data, err := encodeRecord(b.state)
	if err != nil {
		return errors.NewInternal(err)
	}
	return b.store.Save(ctx, RecordKey, data)
}

// preview shortens a comment for log output.
func preview(s string) string {
	const limit = 40
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}
