package ops

import (
	"context"
	"fmt"
	"strings"

	"github.com/hpungsan/murmur/internal/buffer"
	"github.com/hpungsan/murmur/internal/errors"
)

// BufferAddInput contains parameters for the BufferAdd operation.
type BufferAddInput struct {
	Comments []string
}

// BufferAddOutput contains the result of the BufferAdd operation.
type BufferAddOutput struct {
	Added    int `json:"added"`
	Rejected int `json:"rejected"`
	Queued   int `json:"queued"`
}

// BufferAdd queues hand-written comments. Invalid entries are counted as
// rejected, matching how generated batches are treated.
func BufferAdd(ctx context.Context, buf *buffer.Buffer, input BufferAddInput) (*BufferAddOutput, error) {
	comments := make([]string, 0, len(input.Comments))
	for _, c := range input.Comments {
		if strings.TrimSpace(c) != "" {
			comments = append(comments, c)
		}
	}
	if len(comments) == 0 {
		return nil, errors.NewInvalidRequest("comments must not be empty")
	}
	if len(comments) > MaxBufferAddItems {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("at most %d comments per call", MaxBufferAddItems))
	}

	added := buf.AddBatch(ctx, comments)
	return &BufferAddOutput{
		Added:    added,
		Rejected: len(comments) - added,
		Queued:   buf.Len(ctx),
	}, nil
}

// BufferNextOutput contains the result of the BufferNext operation.
type BufferNextOutput struct {
	Comment   string `json:"comment,omitempty"`
	Found     bool   `json:"found"`
	Remaining int    `json:"remaining"`
}

// BufferNext takes the next comment out of the buffer, exactly as a work
// cycle would. An empty buffer is reported with Found=false.
func BufferNext(ctx context.Context, buf *buffer.Buffer) (*BufferNextOutput, error) {
	comment, ok := buf.GetNext(ctx)
	return &BufferNextOutput{
		Comment:   comment,
		Found:     ok,
		Remaining: buf.Len(ctx),
	}, nil
}

// BufferClearOutput contains the result of the BufferClear operation.
type BufferClearOutput struct {
	Cleared int `json:"cleared"`
}

// BufferClear empties the buffer.
func BufferClear(ctx context.Context, buf *buffer.Buffer) (*BufferClearOutput, error) {
	n := buf.Len(ctx)
	if err := buf.Clear(ctx); err != nil {
		return nil, err
	}
	return &BufferClearOutput{Cleared: n}, nil
}
