package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// decodeRows unmarshals a PostgREST response body. PostgREST always returns
// an array, even for single-row filters.
func decodeRows[T any](raw []byte) ([]T, error) {
	var rows []T
	if len(bytes.TrimSpace(raw)) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rows: %w", err)
	}
	return rows, nil
}

func decodeOne[T any](raw []byte, what string) (*T, error) {
	rows, err := decodeRows[T](raw)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return &rows[0], nil
}

// rangeOf converts offset/limit into the inclusive PostgREST range.
func rangeOf(offset, limit int) (int, int) {
	return offset, offset + limit - 1
}

var eventDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// EventDate accepts the shapes Postgres hands back for event_date: a plain
// date, a timestamp without zone, or a full timestamptz. Zone-less values are UTC.
type EventDate struct {
	time.Time
}

func NewEventDate(t time.Time) EventDate {
	return EventDate{Time: t.UTC()}
}

func ParseEventDate(s string) (EventDate, error) {
	s = strings.TrimSpace(s)
	for _, layout := range eventDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return EventDate{Time: t.UTC()}, nil
		}
	}
	return EventDate{}, fmt.Errorf("unrecognised event date %q", s)
}

func (d *EventDate) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		d.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("event date must be a string: %w", err)
	}
	parsed, err := ParseEventDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d EventDate) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.UTC().Format(time.RFC3339))
}

func (d *EventDate) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		d.Time = time.Time{}
		return nil
	case time.Time:
		d.Time = v.UTC()
		return nil
	case []byte:
		parsed, err := ParseEventDate(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case string:
		parsed, err := ParseEventDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into EventDate", src)
	}
}

func (d EventDate) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.UTC(), nil
}
