package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Reason codes carried by ValidationError.
const (
	ReasonMalformedBody  = "malformed_body"
	ReasonSchemaMismatch = "schema_mismatch"
)

// ValidationError reports an event rejected during validation. Reason is a
// stable code, Message names the offending field or defect.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string { return e.Reason + ": " + e.Message }

// Event is the normalized result of a successful validation pass.
type Event struct {
	// ID is the event UUID, adopted from a valid "id" field in the body or
	// freshly generated.
	ID string

	// Type is the discriminator value, "unknown" when the body carries none.
	Type string

	// Timestamp is the event time in epoch seconds.
	Timestamp int64

	// Data is the exact serialized payload to persist. When the body needed
	// no rewriting and summary mode is off, these are the request bytes
	// unchanged.
	Data []byte

	// Fields is the decoded object backing Data.
	Fields map[string]any
}

// Normalize parses, validates, and stamps one event body against the
// policy. allowUnvalidated skips the family and field checks but never the
// JSON well-formedness check; summaryMode persists the reduced projection
// instead of the full payload. now supplies the ingestion clock.
func (p *Policy) Normalize(body []byte, allowUnvalidated, summaryMode bool, now time.Time) (*Event, error) {
	fields, err := decodeObject(body)
	if err != nil {
		return nil, err
	}

	mutated := false

	// Collector envelopes wrap the event under an "event" key with
	// transport metadata beside it. Unwrap and let the metadata fill gaps
	// in the inner event, never overwriting it.
	if inner, ok := fields["event"]; ok {
		obj, ok := inner.(map[string]any)
		if !ok {
			return nil, &ValidationError{Reason: ReasonMalformedBody, Message: "envelope event must be a JSON object"}
		}
		for _, k := range []string{"time", "sourcetype", "host", "index"} {
			if v, ok := fields[k]; ok {
				if _, exists := obj[k]; !exists {
					obj[k] = v
				}
			}
		}
		if extra, ok := fields["fields"].(map[string]any); ok {
			for k, v := range extra {
				if _, exists := obj[k]; !exists {
					obj[k] = v
				}
			}
		}
		fields = obj
		mutated = true
	}

	eventType := discriminator(fields)
	family, known := p.Family(eventType)
	if known && applyMapping(fields, family.FieldMapping) {
		mutated = true
	}

	if !allowUnvalidated {
		if !known {
			return nil, &ValidationError{Reason: ReasonSchemaMismatch, Message: fmt.Sprintf("unknown event type %q", eventType)}
		}
		for _, f := range family.Required {
			if _, ok := fields[f]; !ok {
				return nil, &ValidationError{Reason: ReasonSchemaMismatch, Message: fmt.Sprintf("event type %q missing required field %q", eventType, f)}
			}
		}
		if raw, ok := fields["id"]; ok {
			s, isString := raw.(string)
			if !isString {
				return nil, &ValidationError{Reason: ReasonSchemaMismatch, Message: "id field must be a UUID string"}
			}
			if _, err := uuid.Parse(s); err != nil {
				return nil, &ValidationError{Reason: ReasonSchemaMismatch, Message: fmt.Sprintf("id field is not a valid UUID: %q", s)}
			}
		}
	}

	ev := &Event{
		ID:        eventID(fields),
		Type:      eventType,
		Timestamp: extractTimestamp(fields, family, now),
		Fields:    fields,
	}

	switch {
	case summaryMode:
		summary := summarize(fields, family)
		data, err := json.Marshal(summary)
		if err != nil {
			return nil, fmt.Errorf("encode event summary: %w", err)
		}
		ev.Data = data
		ev.Fields = summary
	case mutated:
		data, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("encode event data: %w", err)
		}
		ev.Data = data
	default:
		ev.Data = body
	}

	return ev, nil
}

func decodeObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &ValidationError{Reason: ReasonMalformedBody, Message: "body is not valid JSON"}
	}
	if dec.More() {
		return nil, &ValidationError{Reason: ReasonMalformedBody, Message: "body contains trailing data"}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &ValidationError{Reason: ReasonMalformedBody, Message: "event must be a JSON object"}
	}
	return obj, nil
}

func discriminator(fields map[string]any) string {
	if v, ok := fields["eventType"].(string); ok && v != "" {
		return v
	}
	if v, ok := fields["sourcetype"].(string); ok && v != "" {
		return v
	}
	return "unknown"
}

// applyMapping renames legacy sender fields onto their schema names. A
// source moves only when its target is absent; when both are present the
// event is left untouched. Reports whether the event changed.
func applyMapping(fields map[string]any, mapping map[string]string) bool {
	changed := false
	for src, dst := range mapping {
		v, ok := fields[src]
		if !ok {
			continue
		}
		if _, exists := fields[dst]; exists {
			continue
		}
		fields[dst] = v
		delete(fields, src)
		changed = true
	}
	return changed
}

func eventID(fields map[string]any) string {
	if s, ok := fields["id"].(string); ok {
		if _, err := uuid.Parse(s); err == nil {
			return s
		}
	}
	return uuid.NewString()
}

// extractTimestamp picks the event time from the family's timestamp field,
// the generic "time" field, or the ingestion clock, in that order.
func extractTimestamp(fields map[string]any, family *Family, now time.Time) int64 {
	if family != nil && family.TimestampField != "" {
		if v, ok := fields[family.TimestampField]; ok {
			if ts, ok := parseTimestamp(v); ok {
				return ts
			}
		}
	}
	if v, ok := fields[TimeField]; ok {
		if ts, ok := parseTimestamp(v); ok {
			return ts
		}
	}
	return now.Unix()
}

// parseTimestamp accepts epoch numbers (including fractional seconds),
// numeric strings, and common date string layouts.
func parseTimestamp(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return int64(f), true
		}
	case string:
		if t == "" {
			return 0, false
		}
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return int64(f), true
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts.Unix(), true
			}
		}
	}
	return 0, false
}

// summarize reduces an event to its summary projection. Families with
// declared summary fields keep exactly those; otherwise the top-level
// scalar fields are kept and nested structures dropped.
func summarize(fields map[string]any, family *Family) map[string]any {
	out := make(map[string]any)
	if family != nil && len(family.SummaryFields) > 0 {
		for _, f := range family.SummaryFields {
			if v, ok := fields[f]; ok {
				out[f] = v
			}
		}
		return out
	}
	for k, v := range fields {
		switch v.(type) {
		case map[string]any, []any:
		default:
			out[k] = v
		}
	}
	return out
}
