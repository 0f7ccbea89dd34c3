package ops

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/murmur/internal/buffer"
	"github.com/hpungsan/murmur/internal/db"
	"github.com/hpungsan/murmur/internal/exclusion"
)

// StatusOutput summarizes the worker's persisted state.
type StatusOutput struct {
	Buffer         buffer.Stats    `json:"buffer"`
	Exclusion      ExclusionOutput `json:"exclusion"`
	PublishedToday int             `json:"published_today"`
	PublishedTotal int             `json:"published_total"`
	LastPublished  *db.Publish     `json:"last_published,omitempty"`
	GeneratedAt    int64           `json:"generated_at"`
}

// Status reads buffer, exclusion and publish log state. now decides where
// "today" starts.
func Status(ctx context.Context, database *sql.DB, buf *buffer.Buffer, counter *exclusion.Counter, now time.Time) (*StatusOutput, error) {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	today, err := db.CountPublishes(ctx, database, startOfDay.Unix())
	if err != nil {
		return nil, err
	}
	total, err := db.CountPublishes(ctx, database, 0)
	if err != nil {
		return nil, err
	}
	latest, err := db.ListPublishes(ctx, database, 1, 0)
	if err != nil {
		return nil, err
	}

	out := &StatusOutput{
		Buffer:         buf.Stats(ctx),
		Exclusion:      exclusionOutput(ctx, counter),
		PublishedToday: today,
		PublishedTotal: total,
		GeneratedAt:    now.Unix(),
	}
	if len(latest) > 0 {
		out.LastPublished = &latest[0]
	}
	return out, nil
}
