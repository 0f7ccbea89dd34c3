package cycle

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/murmur/internal/buffer"
	"github.com/hpungsan/murmur/internal/db"
	"github.com/hpungsan/murmur/internal/errors"
	"github.com/hpungsan/murmur/internal/exclusion"
)

type fakeSource struct {
	comments   []string
	collectErr error
	publishErr error
	published  []string
	onPublish  func()
}

func (f *fakeSource) CollectComments(context.Context) ([]string, error) {
	return f.comments, f.collectErr
}

func (f *fakeSource) Publish(_ context.Context, text string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, text)
	if f.onPublish != nil {
		f.onPublish()
	}
	return nil
}

type fakeGenerator struct {
	mu       sync.Mutex
	batch    []string
	err      error
	contexts [][]string
}

func (g *fakeGenerator) GenerateBatch(_ context.Context, contextComments []string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.contexts = append(g.contexts, contextComments)
	if g.err != nil {
		return nil, g.err
	}
	return g.batch, nil
}

func (g *fakeGenerator) GenerateSingleFallback([]string) string {
	return "static fallback comment text"
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.contexts)
}

var generated = []string{
	"generated alpha comment for the post",
	"generated bravo remark on the topic",
	"generated charlie note about the author",
	"generated delta opinion with some words",
	"generated echo reply closing the batch",
}

var rawComments = []string{
	"my own latest comment one",
	"my own latest comment two",
	"my own latest comment three",
	"someone else said something nice",
	"2 hours ago",
	"username_only",
	"another genuine reader reaction",
	"another genuine reader reaction",
}

type harness struct {
	db      *sql.DB
	source  *fakeSource
	gen     *fakeGenerator
	buffer  *buffer.Buffer
	counter *exclusion.Counter
	runner  *Runner
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store := db.NewRecords(database)
	h := &harness{
		db:     database,
		source: &fakeSource{comments: rawComments},
		gen:    &fakeGenerator{batch: generated},
	}
	h.buffer = buffer.New(store, h.gen, buffer.Options{
		Capacity:            10,
		RefillThreshold:     2,
		SimilarityThreshold: 50,
		MinChars:            10,
		MaxChars:            1000,
	}, nil)
	h.counter = exclusion.New(store, exclusion.Options{Base: 3, Max: 50, WorkStartHour: 9, WorkEndHour: 18}, nil)

	now := func() time.Time { return time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC) }
	h.counter.SetClock(now)
	h.runner = NewRunner(Deps{
		Source:    h.source,
		Buffer:    h.buffer,
		Counter:   h.counter,
		Generator: h.gen,
		DB:        database,
		Target:    "https://example.com/profile",
	}, Schedule{WorkStartHour: 9, WorkEndHour: 18})
	h.runner.now = now
	return h
}

func (h *harness) publishes(t *testing.T) []db.Publish {
	t.Helper()
	rows, err := db.ListPublishes(context.Background(), h.db, 100, 0)
	require.NoError(t, err)
	return rows
}

func TestRunCycle_ColdStartUsesBuffer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.runner.RunCycle(ctx)
	require.NoError(t, err)

	require.True(t, res.Published)
	require.Equal(t, TierBuffer, res.Tier)
	require.Equal(t, generated[0], res.Comment)
	require.Equal(t, 3, res.ExcludeCount)
	require.Equal(t, 4, res.CommentsCount)
	require.Equal(t, []string{generated[0]}, h.source.published)

	// First three raw comments are excluded and noise is filtered
	require.Equal(t, [][]string{{
		"someone else said something nice",
		"another genuine reader reaction",
	}}, h.gen.contexts)

	rows := h.publishes(t)
	require.Len(t, rows, 1)
	require.Equal(t, res.CycleID, rows[0].CycleID)
	require.Equal(t, "buffer", rows[0].Tier)
	require.Equal(t, 3, rows[0].ExcludeCount)
	require.Equal(t, "https://example.com/profile", rows[0].Target)

	// Second cycle takes the next entry without regenerating
	res, err = h.runner.RunCycle(ctx)
	require.NoError(t, err)
	require.Equal(t, generated[1], res.Comment)
	require.Equal(t, 4, res.ExcludeCount)
	require.Equal(t, 1, h.gen.calls())
}

func TestRunCycle_ColdStartFailureAborts(t *testing.T) {
	h := newHarness(t)
	h.gen.err = errors.NewGeneratorExhausted(5, fmt.Errorf("rate limited"))
	ctx := context.Background()

	res, err := h.runner.RunCycle(ctx)
	require.True(t, errors.Is(err, errors.ErrGeneratorExhausted))
	require.False(t, res.Published)
	require.Empty(t, h.source.published)
	require.Equal(t, 3, h.counter.State(ctx).CommentsCount)
	require.Empty(t, h.publishes(t))
}

func TestRunCycle_EmergencyTier(t *testing.T) {
	h := newHarness(t)
	h.runner.warm = true

	res, err := h.runner.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, TierEmergency, res.Tier)
	require.Equal(t, generated[0], res.Comment)
	require.Equal(t, "emergency", h.publishes(t)[0].Tier)
}

func TestRunCycle_StaticFallbackTier(t *testing.T) {
	h := newHarness(t)
	h.runner.warm = true
	h.gen.err = fmt.Errorf("upstream down")

	res, err := h.runner.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, TierStaticFallback, res.Tier)
	require.Equal(t, "static fallback comment text", res.Comment)
	require.True(t, res.Published)
	h.runner.Wait()
}

func TestRunCycle_PublishFailureDoesNotIncrement(t *testing.T) {
	h := newHarness(t)
	h.source.publishErr = errors.NewPage("submit comment", fmt.Errorf("button detached"))
	ctx := context.Background()

	res, err := h.runner.RunCycle(ctx)
	require.True(t, errors.Is(err, errors.ErrPage))
	require.False(t, res.Published)
	require.Equal(t, 3, h.counter.State(ctx).CommentsCount)
	require.Empty(t, h.publishes(t))
}

func TestRunCycle_CollectFailureAborts(t *testing.T) {
	h := newHarness(t)
	h.source.collectErr = errors.NewPage("navigate", fmt.Errorf("offline"))

	_, err := h.runner.RunCycle(context.Background())
	require.True(t, errors.Is(err, errors.ErrPage))
	require.Zero(t, h.gen.calls())
}

func TestRunCycle_LowBufferRefillsInBackground(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.runner.warm = true
	h.buffer.AddBatch(ctx, []string{"the last queued comment in line"})

	res, err := h.runner.RunCycle(ctx)
	require.NoError(t, err)
	require.Equal(t, "the last queued comment in line", res.Comment)

	h.runner.Wait()
	require.Equal(t, len(generated), h.buffer.Len(ctx))
}

func TestFilterNoise(t *testing.T) {
	got := FilterNoise([]string{
		"  a genuine comment from a reader  ",
		"short one",
		"nospacesatallinthisline",
		"Оригинальное аудио автора поста",
		"Подробнее о чем-то там",
		"15 отметок нравится",
		"seen 3 hours ago",
		"a genuine comment from a reader",
		"Отличный пост, спасибо автору!",
	})
	require.Equal(t, []string{
		"a genuine comment from a reader",
		"Отличный пост, спасибо автору!",
	}, got)
}

func TestSchedule_InWorkingHours(t *testing.T) {
	s := Schedule{WorkStartHour: 9, WorkEndHour: 18}
	day := func(h int) time.Time { return time.Date(2025, 3, 4, h, 30, 0, 0, time.UTC) }

	require.False(t, s.InWorkingHours(day(8)))
	require.True(t, s.InWorkingHours(day(9)))
	require.True(t, s.InWorkingHours(day(17)))
	require.False(t, s.InWorkingHours(day(18)))
}

func TestSchedule_NextPause(t *testing.T) {
	s := Schedule{IntervalMin: 15 * time.Minute, IntervalMax: 20 * time.Minute}
	constant := func(v float64) func() float64 { return func() float64 { return v } }

	// Midpoint with zero jitter
	require.InDelta(t, (17*time.Minute + 30*time.Second).Seconds(), s.NextPause(constant(0.5)).Seconds(), 0.01)

	for _, v := range []float64{0, 0.25, 0.5, 0.75, 0.999} {
		got := s.NextPause(constant(v))
		require.GreaterOrEqual(t, got, time.Duration(float64(15*time.Minute)*0.95)-time.Second)
		require.LessOrEqual(t, got, time.Duration(float64(20*time.Minute)*1.05)+time.Second)
	}

	short := Schedule{IntervalMin: time.Minute, IntervalMax: 2 * time.Minute}
	require.Equal(t, 5*time.Minute, short.NextPause(constant(0.5)))

	long := Schedule{IntervalMin: 70 * time.Minute, IntervalMax: 90 * time.Minute}
	require.Equal(t, 60*time.Minute, long.NextPause(constant(0.5)))
}

func TestLoop_StopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.source.onPublish = cancel

	done := make(chan error, 1)
	go func() { done <- h.runner.Loop(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Loop did not stop after cancellation")
	}
	require.Len(t, h.source.published, 1)
}

func TestLoop_OffHoursSkipsCycles(t *testing.T) {
	h := newHarness(t)
	h.runner.now = func() time.Time { return time.Date(2025, 3, 4, 3, 0, 0, 0, time.UTC) }

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, h.runner.Loop(ctx))
	require.Empty(t, h.source.published)
	require.Zero(t, h.gen.calls())
}
