package gelf

import (
	"encoding/json"
	"fmt"
)

// Version is the GELF protocol version stamped into every message.
const Version = "1.1"

// Reserved top-level GELF fields. Everything else on a Message is a custom
// field and carries an underscore prefix.
const (
	fieldVersion      = "version"
	fieldHost         = "host"
	fieldShortMessage = "short_message"
	fieldFullMessage  = "full_message"
	fieldTimestamp    = "timestamp"
	fieldLevel        = "level"
)

// Syslog severity ordinals used for the GELF level field.
const (
	SeverityCritical = 2
	SeverityError    = 3
	SeverityWarning  = 4
	SeverityInfo     = 6
	SeverityDebug    = 7
)

// Record is the producer-side log record: a dynamic mapping of field name to
// value. It is treated as immutable once handed to the transport. The
// formatter recognizes a few well-known optional keys (message/msg, level,
// time/timestamp, stack, error/err); everything else becomes a custom field
// on the wire.
type Record map[string]any

// Message is one flat GELF wire message: reserved fields plus
// underscore-prefixed custom fields. It holds no reference back to the
// Record it was derived from.
type Message map[string]any

// ShortMessage returns the message text field.
func (m Message) ShortMessage() string {
	s, _ := m[fieldShortMessage].(string)
	return s
}

// Level returns the syslog severity ordinal of the message.
func (m Message) Level() int {
	n, _ := m[fieldLevel].(int)
	return n
}

// Timestamp returns the epoch timestamp in seconds, fractional part allowed.
func (m Message) Timestamp() float64 {
	t, _ := m[fieldTimestamp].(float64)
	return t
}

// Bytes renders the message as one flat JSON object with no framing, the
// form sent over the datagram transport.
func (m Message) Bytes() []byte {
	b, err := json.Marshal(m)
	if err != nil {
		// a Message only ever holds JSON-marshalable values the formatter
		// produced; if one slipped through, ship what we can instead of
		// losing the record
		b, _ = json.Marshal(Message{
			fieldVersion:      Version,
			fieldHost:         m[fieldHost],
			fieldShortMessage: fmt.Sprintf("unserializable gelf message: %v", err),
			fieldLevel:        SeverityError,
		})
	}
	return b
}

// Frame renders the message for the stream transports: the JSON object
// terminated by the single NUL delimiter byte the collector's line protocol
// requires.
func (m Message) Frame() []byte {
	return append(m.Bytes(), 0x00)
}

// severityFromLevel maps a producer level ordinal onto the syslog scale used
// by GELF. The producer scale is pino-style ascending urgency (trace 10,
// debug 20, info 30, warn 40, error 50, fatal 60); syslog descends, so the
// mapping is monotonically decreasing. A missing or non-numeric level is
// informational.
func severityFromLevel(v any) int {
	f, ok := toFloat64(v)
	if !ok {
		return SeverityInfo
	}
	switch {
	case f >= 60:
		return SeverityCritical
	case f >= 50:
		return SeverityError
	case f >= 40:
		return SeverityWarning
	case f >= 30:
		return SeverityInfo
	default:
		return SeverityDebug
	}
}

// toFloat64 widens any numeric value to float64. Records decoded from JSON
// carry float64 already, but producers handing native Go maps may use any
// integer type.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
