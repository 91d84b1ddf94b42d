package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// localLayouts are the zone-less date-time layouts the backend emits.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// Timestamp decodes RFC 3339 and zone-less local date-times; zero values encode as null.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if v, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = v
		return nil
	}
	for _, layout := range localLayouts {
		if v, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = v
			return nil
		}
	}
	return fmt.Errorf("timestamp: unsupported format %q", s)
}

// MarshalJSON implements json.Marshaler. The backend expects zone-less local times.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Local().Format("2006-01-02T15:04:05"))
}
