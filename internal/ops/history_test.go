package ops

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestHistory_Pagination(t *testing.T) {
	env := newTestEnv(t)
	for i := range 5 {
		env.publish(t, fmt.Sprintf("01%c", 'A'+i), fmt.Sprintf("published comment %d", i), env.now.Add(time.Duration(i)*time.Minute))
	}

	out, err := History(context.Background(), env.db, HistoryInput{Limit: 2})
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(out.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(out.Items))
	}
	if out.Items[0].ID != "01E" {
		t.Errorf("Items[0].ID = %q, want newest 01E", out.Items[0].ID)
	}
	if !out.Pagination.HasMore || out.Pagination.Total != 5 {
		t.Errorf("Pagination = %+v, want HasMore with Total 5", out.Pagination)
	}
	if out.Sort != "published_at_desc" {
		t.Errorf("Sort = %q", out.Sort)
	}

	out, err = History(context.Background(), env.db, HistoryInput{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(out.Items) != 1 || out.Pagination.HasMore {
		t.Errorf("last page = %d items, HasMore=%v; want 1, false", len(out.Items), out.Pagination.HasMore)
	}
}

func TestHistory_LimitBounds(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		input HistoryInput
		want  int
	}{
		{"default", HistoryInput{}, DefaultHistoryLimit},
		{"clamped", HistoryInput{Limit: 1000}, MaxHistoryLimit},
		{"negative offset", HistoryInput{Limit: 5, Offset: -3}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := History(context.Background(), env.db, tt.input)
			if err != nil {
				t.Fatalf("History() error = %v", err)
			}
			if out.Pagination.Limit != tt.want {
				t.Errorf("Limit = %d, want %d", out.Pagination.Limit, tt.want)
			}
			if out.Pagination.Offset != 0 {
				t.Errorf("Offset = %d, want 0", out.Pagination.Offset)
			}
			if out.Items == nil {
				t.Errorf("Items should be an empty slice, not nil")
			}
		})
	}
}
