// Package cycle runs the comment work cycle: collect context from the page,
// pick a comment through the buffer fallback chain, publish it, and record
// the result.
package cycle

import (
	"context"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/murmur/internal/buffer"
	"github.com/hpungsan/murmur/internal/db"
	"github.com/hpungsan/murmur/internal/exclusion"
	"github.com/hpungsan/murmur/internal/generator"
)

// Source is where context comments come from and where comments go.
type Source interface {
	CollectComments(ctx context.Context) ([]string, error)
	Publish(ctx context.Context, text string) error
}

// Tier names the fallback step that produced a comment.
type Tier string

const (
	TierBuffer         Tier = "buffer"
	TierEmergency      Tier = "emergency"
	TierStaticFallback Tier = "static_fallback"
)

// Result describes one completed cycle.
type Result struct {
	CycleID      string `json:"cycle_id"`
	Comment      string `json:"comment"`
	Tier         Tier   `json:"tier"`
	ExcludeCount int    `json:"exclude_count"`
	ContextSize  int    `json:"context_size"`
	Published    bool   `json:"published"`
	// CommentsCount is the stored exclusion count after publishing.
	CommentsCount int `json:"comments_count,omitempty"`
}

// Runner executes work cycles. It is not safe for concurrent RunCycle calls;
// one cycle runs at a time.
type Runner struct {
	source  Source
	buffer  *buffer.Buffer
	counter *exclusion.Counter
	gen     generator.Generator
	db      *sql.DB
	target  string
	sched   Schedule
	log     *zap.Logger
	now     func() time.Time
	rand    func() float64

	warm bool
}

// Deps bundles the Runner's collaborators.
type Deps struct {
	Source    Source
	Buffer    *buffer.Buffer
	Counter   *exclusion.Counter
	Generator generator.Generator
	// DB receives publish log rows; nil disables the log.
	DB *sql.DB
	// Target is recorded with each publish log row.
	Target string
	Logger *zap.Logger
}

// NewRunner creates a Runner.
func NewRunner(deps Deps, sched Schedule) *Runner {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		source:  deps.Source,
		buffer:  deps.Buffer,
		counter: deps.Counter,
		gen:     deps.Generator,
		db:      deps.DB,
		target:  deps.Target,
		sched:   sched.withDefaults(),
		log:     log.Named("cycle"),
		now:     time.Now,
		rand:    newRandFloat(),
	}
}

// RunCycle performs one cycle. A cycle that cannot obtain context or a cold
// start batch, or whose publish fails, returns an error and leaves the
// exclusion counter untouched.
func (r *Runner) RunCycle(ctx context.Context) (*Result, error) {
	res := &Result{CycleID: ulid.Make().String()}
	log := r.log.With(zap.String("cycle_id", res.CycleID))

	raw, err := r.source.CollectComments(ctx)
	if err != nil {
		return res, err
	}

	res.ExcludeCount = r.counter.ExcludeCount(ctx)
	skip := min(res.ExcludeCount, len(raw))
	contextComments := FilterNoise(raw[skip:])
	res.ContextSize = len(contextComments)
	log.Info("context collected",
		zap.Int("raw", len(raw)),
		zap.Int("excluded", skip),
		zap.Int("context", len(contextComments)))

	if !r.warm {
		if err := r.buffer.EnsureReady(ctx, contextComments); err != nil {
			log.Error("cold start generation failed", zap.Error(err))
			return res, err
		}
		r.warm = true
	}

	res.Comment, res.Tier = r.selectComment(ctx, log, contextComments)

	if r.buffer.NeedsRefill(ctx) {
		log.Info("buffer low, refilling in background")
		r.buffer.RefillBackground(ctx, contextComments)
	}

	if err := r.source.Publish(ctx, res.Comment); err != nil {
		log.Error("publish failed", zap.Error(err))
		return res, err
	}
	res.Published = true
	res.CommentsCount = r.counter.IncrementPublished(ctx)

	r.record(ctx, log, res)
	log.Info("cycle complete",
		zap.String("tier", string(res.Tier)),
		zap.Int("comments_count", res.CommentsCount))
	return res, nil
}

// selectComment walks the fallback chain: buffer, emergency batch, static
// fallback. It always returns a comment.
func (r *Runner) selectComment(ctx context.Context, log *zap.Logger, contextComments []string) (string, Tier) {
	if text, ok := r.buffer.GetNext(ctx); ok {
		return text, TierBuffer
	}

	log.Warn("buffer empty, generating emergency batch")
	batch, err := r.gen.GenerateBatch(ctx, contextComments)
	if err != nil {
		log.Error("emergency generation failed", zap.Error(err))
	} else if r.buffer.AddBatch(ctx, batch) > 0 {
		if text, ok := r.buffer.GetNext(ctx); ok {
			return text, TierEmergency
		}
	}

	log.Warn("using static fallback comment")
	return r.gen.GenerateSingleFallback(contextComments), TierStaticFallback
}

func (r *Runner) record(ctx context.Context, log *zap.Logger, res *Result) {
	if r.db == nil {
		return
	}
	row := &db.Publish{
		ID:           ulid.Make().String(),
		CycleID:      res.CycleID,
		CommentText:  res.Comment,
		Tier:         string(res.Tier),
		ExcludeCount: res.ExcludeCount,
		Target:       r.target,
		PublishedAt:  r.now().Unix(),
	}
	if err := db.InsertPublish(ctx, r.db, row); err != nil {
		log.Error("publish log write failed", zap.Error(err))
	}
}

// Wait blocks until background work started by cycles has finished.
func (r *Runner) Wait() {
	r.buffer.Wait()
}
