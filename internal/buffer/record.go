package buffer

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RecordKey is the record store key of the persisted buffer.
const RecordKey = "comment_buffer"

// recordVersion is the canonical schema version written by this package.
const recordVersion = "2"

// legacyVersion marks records written by the first file-based buffer,
// where comments were objects with a used flag instead of plain strings.
const legacyVersion = "1.0"

// record is the persisted buffer state.
type record struct {
	Comments        []string  `json:"comments"`
	PreviousComment string    `json:"previousComment"`
	LastUpdated     time.Time `json:"lastUpdated"`
	Version         string    `json:"version"`
}

// rawRecord defers decoding of comments until the version is known.
type rawRecord struct {
	Comments        json.RawMessage `json:"comments"`
	PreviousComment string          `json:"previousComment"`
	LastUpdated     time.Time       `json:"lastUpdated"`
	Version         string          `json:"version"`
}

type legacyEntry struct {
	Text string `json:"text"`
	Used bool   `json:"used"`
}

// decodeRecord parses a persisted payload, migrating the legacy schema.
// Unknown versions are rejected rather than guessed at.
func decodeRecord(data []byte) (record, error) {
	var raw rawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return record{}, fmt.Errorf("decode buffer record: %w", err)
	}

	rec := record{
		PreviousComment: raw.PreviousComment,
		LastUpdated:     raw.LastUpdated,
		Version:         recordVersion,
	}

	switch raw.Version {
	case recordVersion:
		if len(raw.Comments) > 0 {
			if err := json.Unmarshal(raw.Comments, &rec.Comments); err != nil {
				return record{}, fmt.Errorf("decode buffer comments: %w", err)
			}
		}
	case legacyVersion:
		var entries []legacyEntry
		if len(raw.Comments) > 0 {
			if err := json.Unmarshal(raw.Comments, &entries); err != nil {
				return record{}, fmt.Errorf("decode legacy buffer comments: %w", err)
			}
		}
		for _, e := range entries {
			if !e.Used && strings.TrimSpace(e.Text) != "" {
				rec.Comments = append(rec.Comments, strings.TrimSpace(e.Text))
			}
		}
	default:
		return record{}, fmt.Errorf("unsupported buffer record version %q", raw.Version)
	}

	return rec, nil
}

func encodeRecord(rec record) ([]byte, error) {
	rec.Version = recordVersion
	if rec.Comments == nil {
		rec.Comments = []string{}
	}
	return json.MarshalIndent(rec, "", "  ")
}
