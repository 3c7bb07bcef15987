package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Time decodes the timestamp shapes the task service actually emits:
// RFC 3339, Python isoformat() without a zone, and bare dates.
// It always encodes back to RFC 3339.
type Time struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NewTime wraps a time.Time for optional task fields.
func NewTime(t time.Time) *Time {
	return &Time{Time: t}
}

func (t *Time) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timeLayouts {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unsupported timestamp %q", raw)
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339))
}
