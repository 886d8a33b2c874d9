package gelf

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/trickstertwo/xclock"
)

// Producer record keys consumed while deriving the reserved GELF fields.
// They never show up as custom fields.
var derivedKeys = map[string]bool{
	"message":   true,
	"msg":       true,
	"level":     true,
	"time":      true,
	"timestamp": true,
	"stack":     true,
	"error":     true,
	"err":       true,
}

// Numeric producer timestamps at or above this value are epoch milliseconds
// (pino emits epoch-ms); below it they are epoch seconds.
const epochMillisFloor = 1e12

// Format derives a GELF wire Message from a producer log record. It is pure:
// no I/O, never panics, tolerant of missing or extra keys. A record that is
// not a field mapping (a raw string, error value, byte slice, ...) falls
// back to wrapping its printed form as the message text.
//
// Derivation, in order: the reserved fields (version, host, short_message,
// full_message, timestamp, level), then the facility and caller-supplied
// static fields, then the record's remaining fields as underscore-prefixed
// custom fields. Later stages never overwrite fields an earlier stage set.
func Format(record any, host, facility string, static map[string]any) Message {
	rec := asRecord(record)

	m := Message{
		fieldVersion: Version,
		fieldHost:    host,
		fieldLevel:   severityFromLevel(rec["level"]),
	}

	m[fieldShortMessage] = shortMessage(rec, record)
	m[fieldTimestamp] = eventTimestamp(rec)

	if full, ok := fullMessage(rec); ok {
		m[fieldFullMessage] = full
	}

	if facility != "" {
		m["_facility"] = facility
	}

	// static fields first, then record custom fields; neither overwrites
	// anything already set
	for k, v := range static {
		setCustom(m, k, v)
	}
	for k, v := range rec {
		if derivedKeys[k] {
			continue
		}
		setCustom(m, k, v)
	}

	return m
}

// asRecord coerces the producer input to a field mapping, or returns nil for
// the raw-payload fallback path.
func asRecord(record any) Record {
	switch r := record.(type) {
	case Record:
		return r
	case map[string]any:
		return r
	}
	return nil
}

func shortMessage(rec Record, raw any) string {
	if rec == nil {
		// raw payload fallback
		switch p := raw.(type) {
		case string:
			return p
		case []byte:
			return string(p)
		}
		return fmt.Sprint(raw)
	}
	if s, ok := rec["message"]; ok {
		return stringify(s)
	}
	if s, ok := rec["msg"]; ok {
		return stringify(s)
	}
	// no message-equivalent field: dump the whole record
	return stringify(map[string]any(rec))
}

// fullMessage extracts stack-like long text: a top-level stack string, or
// the stack carried inside an error/err mapping.
func fullMessage(rec Record) (string, bool) {
	if s, ok := rec["stack"].(string); ok && s != "" {
		return s, true
	}
	for _, key := range []string{"error", "err"} {
		errMap, ok := rec[key].(map[string]any)
		if !ok {
			continue
		}
		if s, ok := errMap["stack"].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// eventTimestamp resolves the producer-supplied event time, preserving it
// even if the message sits in the queue before being sent; without one the
// current time is used.
func eventTimestamp(rec Record) float64 {
	for _, key := range []string{"time", "timestamp"} {
		switch t := rec[key].(type) {
		case time.Time:
			return float64(t.UnixNano()) / float64(time.Second)
		default:
			if f, ok := toFloat64(rec[key]); ok {
				if f >= epochMillisFloor {
					return f / 1000
				}
				return f
			}
		}
	}
	return float64(xclock.Now().UnixNano()) / float64(time.Second)
}

// setCustom adds one custom field, prefixing the key with an underscore
// unless it already carries one, and leaving any already-set field alone.
func setCustom(m Message, key string, v any) {
	if !strings.HasPrefix(key, "_") {
		key = "_" + key
	}
	if _, exists := m[key]; exists {
		return
	}
	m[key] = customValue(v)
}

// customValue keeps scalars as-is and flattens structured values to their
// JSON string form, since GELF custom fields are scalar.
func customValue(v any) any {
	switch v.(type) {
	case nil, string, bool,
		float64, float32,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		json.Number:
		return v
	}
	return stringify(v)
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
