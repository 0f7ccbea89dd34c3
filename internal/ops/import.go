package ops

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hpungsan/murmur/internal/buffer"
	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/errors"
)

// ImportInput contains parameters for the ImportComments operation.
type ImportInput struct {
	Path string // required
}

// ImportOutput contains the result of the ImportComments operation.
type ImportOutput struct {
	Read     int           `json:"read"`
	Added    int           `json:"added"`
	Rejected int           `json:"rejected"`
	Queued   int           `json:"queued"`
	Errors   []ImportError `json:"errors"`
}

// ImportError describes a line that could not be parsed.
type ImportError struct {
	Line    int    `json:"line"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// importRecord is one line of a comment seed file. A line may also be a bare
// JSON string.
type importRecord struct {
	Text string `json:"text"`
}

// ImportComments seeds the buffer from a JSONL file. Each line is either
// {"text": "..."} or a JSON string; blank lines and export headers are
// skipped. Parsed comments go through the normal buffer validation and
// capacity rules, so a long file keeps only its newest entries.
func ImportComments(ctx context.Context, buf *buffer.Buffer, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if err := ValidatePath(input.Path, PathCheckRead, cfg); err != nil {
		return nil, err
	}

	file, err := openNoFollow(input.Path)
	if err != nil {
		if errors.Is(err, errors.ErrFileNotFound) || errors.Is(err, errors.ErrInvalidRequest) {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	out := &ImportOutput{Errors: []ImportError{}}
	var texts []string

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		text, skip, err := parseImportLine(raw)
		if err != nil {
			out.Errors = append(out.Errors, ImportError{
				Line:    line,
				Code:    "PARSE_ERROR",
				Message: err.Error(),
			})
			continue
		}
		if skip {
			continue
		}
		texts = append(texts, text)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read import file: %w", err))
	}

	out.Read = len(texts)
	if len(texts) > 0 {
		out.Added = buf.AddBatch(ctx, texts)
	}
	out.Rejected = out.Read - out.Added
	out.Queued = buf.Len(ctx)
	return out, nil
}

func parseImportLine(raw []byte) (text string, skip bool, err error) {
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return "", false, fmt.Errorf("invalid JSON string: %v", err)
		}
		return text, strings.TrimSpace(text) == "", nil
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(raw, &header); err != nil {
		return "", false, fmt.Errorf("invalid JSON: %v", err)
	}
	if _, ok := header["_murmur_export"]; ok {
		return "", true, nil
	}

	var rec importRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return "", false, fmt.Errorf("invalid record: %v", err)
	}
	if strings.TrimSpace(rec.Text) == "" {
		return "", false, fmt.Errorf("missing text field")
	}
	return rec.Text, false, nil
}
