package exclusion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// RecordKey is the record store key of the persisted exclusion state.
const RecordKey = "exclusion_state"

const (
	recordVersion = "2"
	dateLayout    = "2006-01-02"
)

// State is the persisted daily exclusion state.
type State struct {
	Date          string     `json:"date"`
	StartTime     time.Time  `json:"startTime"`
	CommentsCount int        `json:"commentsCount"`
	LastComment   *time.Time `json:"lastComment,omitempty"`
	Version       string     `json:"version"`
}

// decodeState parses a stored payload. Accepted inputs:
//   - the canonical versioned object;
//   - the same object without a version field;
//   - a bare RFC 3339 start time (the old start-time file), which becomes
//     base state for that day.
//
// Anything else is an error and callers treat it as absent.
func decodeState(data []byte, base int, loc *time.Location) (State, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return State{}, fmt.Errorf("empty exclusion record")
	}

	if trimmed[0] != '{' {
		start, err := time.Parse(time.RFC3339Nano, string(bytes.Trim(trimmed, `"`)))
		if err != nil {
			return State{}, fmt.Errorf("decode legacy start time: %w", err)
		}
		start = start.In(loc)
		return State{
			Date:          start.Format(dateLayout),
			StartTime:     start,
			CommentsCount: base,
			Version:       recordVersion,
		}, nil
	}

	var st State
	if err := json.Unmarshal(trimmed, &st); err != nil {
		return State{}, fmt.Errorf("decode exclusion record: %w", err)
	}
	if st.Version != "" && st.Version != recordVersion {
		return State{}, fmt.Errorf("unsupported exclusion record version %q", st.Version)
	}
	if _, err := time.ParseInLocation(dateLayout, st.Date, loc); err != nil {
		return State{}, fmt.Errorf("invalid exclusion date %q", st.Date)
	}
	if st.CommentsCount < 0 || st.StartTime.IsZero() {
		return State{}, fmt.Errorf("incomplete exclusion record")
	}
	st.Version = recordVersion
	return st, nil
}

func encodeState(st State) ([]byte, error) {
	st.Version = recordVersion
	return json.MarshalIndent(st, "", "  ")
}
