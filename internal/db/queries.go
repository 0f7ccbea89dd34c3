package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/murmur/internal/errors"
)

// Records is a key/value record store backed by the records table.
// Payloads are opaque to the store; callers own their schema.
type Records struct {
	DB *sql.DB
}

// NewRecords wraps an initialized database as a record store.
func NewRecords(db *sql.DB) *Records {
	return &Records{DB: db}
}

// Load returns the payload stored under key, or a NOT_FOUND error.
func (r *Records) Load(ctx context.Context, key string) ([]byte, error) {
	return GetRecord(ctx, r.DB, key)
}

// Save upserts the payload under key.
func (r *Records) Save(ctx context.Context, key string, payload []byte) error {
	return PutRecord(ctx, r.DB, key, payload)
}

// Delete removes the record under key. Deleting a missing key is not an error.
func (r *Records) Delete(ctx context.Context, key string) error {
	return DeleteRecord(ctx, r.DB, key)
}

// GetRecord retrieves a record payload by key.
func GetRecord(ctx context.Context, db *sql.DB, key string) ([]byte, error) {
	var payload string
	err := db.QueryRowContext(ctx, `SELECT payload FROM records WHERE key = ?`, key).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(key)
	}
	if err != nil {
		return nil, errors.NewStorage("load record", err)
	}
	return []byte(payload), nil
}

// PutRecord inserts or replaces a record payload.
func PutRecord(ctx context.Context, db *sql.DB, key string, payload []byte) error {
	query := `
		INSERT INTO records (key, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`
	if _, err := db.ExecContext(ctx, query, key, string(payload), time.Now().Unix()); err != nil {
		return errors.NewStorage("save record", err)
	}
	return nil
}

// DeleteRecord removes a record by key.
func DeleteRecord(ctx context.Context, db *sql.DB, key string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM records WHERE key = ?`, key); err != nil {
		return errors.NewStorage("delete record", err)
	}
	return nil
}

// Publish is a row of the publish log.
type Publish struct {
	ID           string `json:"id"`
	CycleID      string `json:"cycle_id"`
	CommentText  string `json:"comment_text"`
	Tier         string `json:"tier"`
	ExcludeCount int    `json:"exclude_count"`
	Target       string `json:"target,omitempty"`
	PublishedAt  int64  `json:"published_at"`
}

// InsertPublish appends a row to the publish log.
func InsertPublish(ctx context.Context, db *sql.DB, p *Publish) error {
	query := `
		INSERT INTO publish_log (id, cycle_id, comment_text, tier, exclude_count, target, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		p.ID, p.CycleID, p.CommentText, p.Tier, p.ExcludeCount, toNullString(p.Target), p.PublishedAt,
	)
	if err != nil {
		return errors.NewStorage("insert publish", err)
	}
	return nil
}

// ListPublishes returns publish log rows, newest first.
func ListPublishes(ctx context.Context, db *sql.DB, limit, offset int) ([]Publish, error) {
	query := `
		SELECT id, cycle_id, comment_text, tier, exclude_count, target, published_at
		FROM publish_log
		ORDER BY published_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, errors.NewStorage("list publishes", err)
	}
	defer rows.Close()

	items := make([]Publish, 0)
	for rows.Next() {
		var p Publish
		var target sql.NullString
		if err := rows.Scan(&p.ID, &p.CycleID, &p.CommentText, &p.Tier, &p.ExcludeCount, &target, &p.PublishedAt); err != nil {
			return nil, errors.NewStorage("scan publish", err)
		}
		p.Target = target.String
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage("list publishes", err)
	}
	return items, nil
}

// CountPublishes returns the number of publish log rows at or after since (unix seconds).
func CountPublishes(ctx context.Context, db *sql.DB, since int64) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM publish_log WHERE published_at >= ?`, since).Scan(&count)
	if err != nil {
		return 0, errors.NewStorage("count publishes", err)
	}
	return count, nil
}

// toNullString converts an empty string to a SQL NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
