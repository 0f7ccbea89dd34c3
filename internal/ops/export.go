package ops

import (
	"bufio"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/db"
	"github.com/hpungsan/murmur/internal/errors"
)

// exportPageSize is the number of publish log rows read per query.
const exportPageSize = 500

// ExportInput contains parameters for the ExportHistory operation.
type ExportInput struct {
	Path string // optional, default: ~/.murmur/exports/history-<timestamp>.jsonl
}

// ExportOutput contains the result of the ExportHistory operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportHeader is the first line of a history export.
type ExportHeader struct {
	MurmurExport  bool   `json:"_murmur_export"`
	SchemaVersion string `json:"schema_version"`
	ExportedAt    int64  `json:"exported_at"`
}

// ExportHistory writes the publish log to a JSONL file, newest first, after
// a header line. The file is written to a temp name and renamed into place
// so an existing export survives a failed run.
func ExportHistory(ctx context.Context, database *sql.DB, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	now := time.Now()

	path := input.Path
	if path == "" {
		dir, err := DefaultExportsDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, fmt.Sprintf("history-%s.jsonl", now.Format("2006-01-02T150405")))
	}
	if err := ValidatePath(path, PathCheckWrite, cfg); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(suffix) + ".tmp"

	file, err := createNoFollow(tempPath)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}
	done := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !done {
			os.Remove(tempPath)
		}
	}()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	if err := enc.Encode(ExportHeader{MurmurExport: true, SchemaVersion: "1", ExportedAt: now.Unix()}); err != nil {
		return nil, errors.NewInternal(err)
	}

	count := 0
	for offset := 0; ; offset += exportPageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := db.ListPublishes(ctx, database, exportPageSize, offset)
		if err != nil {
			return nil, err
		}
		for i := range rows {
			if err := enc.Encode(&rows[i]); err != nil {
				return nil, errors.NewInternal(err)
			}
		}
		count += len(rows)
		if len(rows) < exportPageSize {
			break
		}
	}

	if err := w.Flush(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	if isSymlink(path) {
		return nil, errors.NewInternal(fmt.Errorf("export path is a symlink"))
	}
	if err := os.Rename(tempPath, path); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	done = true
	return &ExportOutput{Path: path, Count: count, ExportedAt: now.Unix()}, nil
}
