package timex

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// naiveLayout is the ISO 8601 form without zone offset that the API emits
// for UTC datetimes.
const naiveLayout = "2006-01-02T15:04:05.999999999"

// Timestamp is a time.Time that accepts both RFC 3339 and zone-less ISO 8601
// values. Zone-less values are interpreted as UTC.
type Timestamp struct {
	time.Time
}

// ParseTimestamp parses s using the same rules as Timestamp.UnmarshalJSON.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(naiveLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}
