package ops

import (
	"context"

	"github.com/hpungsan/murmur/internal/exclusion"
)

// ExclusionOutput describes today's exclusion state.
type ExclusionOutput struct {
	State        exclusion.State `json:"state"`
	ExcludeCount int             `json:"exclude_count"`
	Max          int             `json:"max_exclude_count"`
}

// ExclusionShow returns today's exclusion state, rolling it over first if
// the day or working day changed.
func ExclusionShow(ctx context.Context, counter *exclusion.Counter) (*ExclusionOutput, error) {
	out := exclusionOutput(ctx, counter)
	return &out, nil
}

// ExclusionReset puts today's count back to the base value.
func ExclusionReset(ctx context.Context, counter *exclusion.Counter) (*ExclusionOutput, error) {
	if _, err := counter.Reset(ctx); err != nil {
		return nil, err
	}
	out := exclusionOutput(ctx, counter)
	return &out, nil
}

func exclusionOutput(ctx context.Context, counter *exclusion.Counter) ExclusionOutput {
	st := counter.State(ctx)
	n := st.CommentsCount
	if m := counter.Max(); m > 0 && n > m {
		n = m
	}
	return ExclusionOutput{State: st, ExcludeCount: n, Max: counter.Max()}
}
