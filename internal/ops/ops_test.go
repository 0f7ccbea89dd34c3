package ops

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/murmur/internal/buffer"
	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/db"
	"github.com/hpungsan/murmur/internal/exclusion"
)

type testEnv struct {
	db      *sql.DB
	buf     *buffer.Buffer
	counter *exclusion.Counter
	cfg     *config.Config
	now     time.Time
	dir     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	dir := t.TempDir()
	cfg.AllowedPaths = []string{dir}

	now := time.Date(2025, time.March, 4, 11, 0, 0, 0, time.UTC)
	store := db.NewRecords(database)

	buf := buffer.New(store, nil, buffer.OptionsFromConfig(cfg), nil)
	buf.SetClock(func() time.Time { return now })
	counter := exclusion.New(store, exclusion.OptionsFromConfig(cfg), nil)
	counter.SetClock(func() time.Time { return now })

	return &testEnv{db: database, buf: buf, counter: counter, cfg: cfg, now: now, dir: dir}
}

func (e *testEnv) publish(t *testing.T, id, text string, at time.Time) {
	t.Helper()
	p := &db.Publish{
		ID:           id,
		CycleID:      "cycle-" + id,
		CommentText:  text,
		Tier:         "buffer",
		ExcludeCount: 3,
		PublishedAt:  at.Unix(),
	}
	require.NoError(t, db.InsertPublish(context.Background(), e.db, p))
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.publish(t, "01A", "posted yesterday evening", env.now.Add(-20*time.Hour))
	env.publish(t, "01B", "posted this morning early", env.now.Add(-time.Hour))
	env.buf.AddBatch(ctx, []string{"queued comment number one", "queued comment number two"})
	env.counter.IncrementPublished(ctx)

	out, err := Status(ctx, env.db, env.buf, env.counter, env.now)
	require.NoError(t, err)

	require.Equal(t, 1, out.PublishedToday)
	require.Equal(t, 2, out.PublishedTotal)
	require.NotNil(t, out.LastPublished)
	require.Equal(t, "01B", out.LastPublished.ID)
	require.Equal(t, 2, out.Buffer.Queued)
	require.Equal(t, 4, out.Exclusion.ExcludeCount)
	require.Equal(t, 50, out.Exclusion.Max)
	require.Equal(t, env.now.Unix(), out.GeneratedAt)
}

func TestStatus_Empty(t *testing.T) {
	env := newTestEnv(t)

	out, err := Status(context.Background(), env.db, env.buf, env.counter, env.now)
	require.NoError(t, err)
	require.Nil(t, out.LastPublished)
	require.Zero(t, out.PublishedTotal)
	require.Equal(t, 3, out.Exclusion.ExcludeCount)
	require.True(t, out.Buffer.NeedsRefill)
}
