package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
	// Any matches every event type in a Filter.
	Any EventType = "*"
)

// Event is a row-level change on one table.
type Event struct {
	Table           string          `json:"table"`
	Type            EventType       `json:"type"`
	Record          json.RawMessage `json:"record,omitempty"`
	OldRecord       json.RawMessage `json:"old_record,omitempty"`
	CommitTimestamp time.Time       `json:"commit_timestamp"`
}

// NewEvent marshals record and old (either may be nil).
func NewEvent(table string, typ EventType, record, old any) (Event, error) {
	e := Event{Table: table, Type: typ, CommitTimestamp: time.Now().UTC()}
	var err error
	if record != nil {
		if e.Record, err = json.Marshal(record); err != nil {
			return e, fmt.Errorf("marshal record: %w", err)
		}
	}
	if old != nil {
		if e.OldRecord, err = json.Marshal(old); err != nil {
			return e, fmt.Errorf("marshal old record: %w", err)
		}
	}
	return e, nil
}

// Column returns the string form of column in the row the event refers to:
// the new record, or the old one for deletes.
func (e Event) Column(column string) (string, bool) {
	raw := e.Record
	if e.Type == Delete || len(raw) == 0 {
		raw = e.OldRecord
	}
	if len(raw) == 0 {
		return "", false
	}
	var row map[string]any
	if err := json.Unmarshal(raw, &row); err != nil {
		return "", false
	}
	v, ok := row[column]
	if !ok || v == nil {
		return "", false
	}
	if s, isString := v.(string); isString {
		return s, true
	}
	return fmt.Sprint(v), true
}

// Decode unmarshals the event's row (old row for deletes) into dst.
func (e Event) Decode(dst any) error {
	raw := e.Record
	if e.Type == Delete || len(raw) == 0 {
		raw = e.OldRecord
	}
	if len(raw) == 0 {
		return errors.New("event has no record")
	}
	return json.Unmarshal(raw, dst)
}

var ErrBadFilter = errors.New("invalid filter")

// Filter selects events by type, table and an optional column equality.
type Filter struct {
	Event  EventType
	Table  string
	Column string
	Value  string
}

// ParseFilter builds a Filter from an event type ("*", "INSERT", ...), a table and
// an optional expression of the form "column=eq.value".
func ParseFilter(event, table, expr string) (Filter, error) {
	f := Filter{Event: EventType(strings.ToUpper(event)), Table: table}
	switch f.Event {
	case Any, Insert, Update, Delete:
	default:
		return f, fmt.Errorf("%w: unknown event %q", ErrBadFilter, event)
	}
	if table == "" {
		return f, fmt.Errorf("%w: table is required", ErrBadFilter)
	}
	if expr == "" {
		return f, nil
	}

	column, rest, ok := strings.Cut(expr, "=")
	if !ok || column == "" {
		return f, fmt.Errorf("%w: %q", ErrBadFilter, expr)
	}
	value, ok := strings.CutPrefix(rest, "eq.")
	if !ok || value == "" {
		return f, fmt.Errorf("%w: only eq is supported in %q", ErrBadFilter, expr)
	}
	f.Column, f.Value = column, value
	return f, nil
}

// MustFilter is ParseFilter for static filters.
func MustFilter(event, table, expr string) Filter {
	f, err := ParseFilter(event, table, expr)
	if err != nil {
		panic(err)
	}
	return f
}

func (f Filter) Matches(e Event) bool {
	if f.Table != e.Table {
		return false
	}
	if f.Event != Any && f.Event != e.Type {
		return false
	}
	if f.Column == "" {
		return true
	}
	v, ok := e.Column(f.Column)
	return ok && v == f.Value
}

func (f Filter) String() string {
	s := string(f.Event) + ":" + f.Table
	if f.Column != "" {
		s += ":" + f.Column + "=eq." + f.Value
	}
	return s
}
