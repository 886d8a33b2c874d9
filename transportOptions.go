package gelf

import (
	"crypto/tls"
	"os"
	"time"
)

// OverflowPolicy selects which side of a full queue loses a message.
type OverflowPolicy int

const (
	// DropOldest evicts the queue head to make room for the incoming
	// message. This is the default: under sustained disconnection the queue
	// keeps the most recent window of records.
	DropOldest OverflowPolicy = iota

	// DropNewest rejects the incoming message and leaves the queue
	// untouched.
	DropNewest
)

func (p OverflowPolicy) String() string {
	if p == DropNewest {
		return "drop-newest"
	}
	return "drop-oldest"
}

// TransportOptions are used to customize the Transport.
//
// # Invalid options are coerced
//
// As with the options elsewhere in this package, out-of-range values are
// coerced to their defaults rather than rejected.
type TransportOptions struct {

	// Network protocol used to reach the collector: "tcp", "tls", or "udp".
	// The default is "tcp".
	Network string

	// Port of the collector. The default is 12201.
	Port int

	// LocalHostname is the host label stamped into every message's `host`
	// field. The default is os.Hostname(), falling back to "localhost".
	LocalHostname string

	// Facility, when set, is merged into every message as the `_facility`
	// custom field.
	Facility string

	// StaticFields are merged into every message as custom fields, applied
	// before the record's own custom fields; record fields never overwrite
	// them.
	StaticFields map[string]any

	// MaxQueueSize bounds the number of messages held while the collector
	// is unreachable or slow. The default is 1000.
	MaxQueueSize int

	// OverflowPolicy decides what a full queue drops. The default is
	// DropOldest.
	OverflowPolicy OverflowPolicy

	// DropNotifyEvery rate-limits overflow notifications on the error
	// channel: the first drop notifies immediately, then every Nth. The
	// default is 100.
	DropNotifyEvery int

	// DialTimeout bounds each connection attempt. The default is 10s.
	DialTimeout time.Duration

	// WriteTimeout bounds each socket write. If negative, no deadline is
	// set. The default is 10s.
	WriteTimeout time.Duration

	// FlushTimeout is the default bound for Flush, and the per-attempt
	// bound for Shutdown's final flushes. The default is 5s.
	FlushTimeout time.Duration

	// MaxShutdownFlushes limits how many times Shutdown re-flushes to catch
	// records submitted concurrently with shutdown. The default is 10.
	MaxShutdownFlushes int

	// SkipEagerDial disables the connection attempt otherwise started on
	// construction. Session protocols only; the datagram transport has no
	// connection to establish.
	SkipEagerDial bool

	// InsecureSkipVerify controls whether the "tls" network verifies the
	// collector's certificate chain and host name. Verification is on by
	// default and a failure fails the connection; there is no silent
	// downgrade.
	InsecureSkipVerify bool

	// TLSConfig optionally overrides the tls.Config used by the "tls"
	// network. ServerName and InsecureSkipVerify are filled in from the
	// destination and the option above when unset.
	TLSConfig *tls.Config

	// OnError receives every asynchronous failure: connection errors,
	// connect timeouts, queue overflow. Nothing ever surfaces on the Send
	// path. The default writes to the package's internal logger.
	OnError func(error)

	// OnReady, when set, is invoked exactly once with the outcome of the
	// first connection attempt (the eager one, unless SkipEagerDial defers
	// it to the first Send or Flush); nil on success. Unused with the "udp"
	// network, which has no session to establish.
	OnReady func(error)

	// Verbose controls whether debug logs are written to the internal
	// logger.
	Verbose bool
}

const (
	defaultPort            = 12201
	defaultNetwork         = "tcp"
	defaultMaxQueueSize    = 1000
	defaultDropNotifyEvery = 100
	defaultDialTimeout     = time.Second * 10
	defaultWriteTimeout    = time.Second * 10
	defaultFlushTimeout    = time.Second * 5
	defaultShutdownFlushes = 10
)

// DefaultTransportOptions returns *TransportOptions with all default values.
func DefaultTransportOptions() *TransportOptions {
	return &TransportOptions{
		Port:               defaultPort,
		Network:            defaultNetwork,
		MaxQueueSize:       defaultMaxQueueSize,
		DropNotifyEvery:    defaultDropNotifyEvery,
		DialTimeout:        defaultDialTimeout,
		WriteTimeout:       defaultWriteTimeout,
		FlushTimeout:       defaultFlushTimeout,
		MaxShutdownFlushes: defaultShutdownFlushes,
	}
}

// resolve ensures that all options have valid values.
func (o *TransportOptions) resolve() {

	// constrain to valid range
	if o.Port < 1 || o.Port > 65535 {
		o.Port = defaultPort
	}

	// only [tcp|tls|udp]
	if o.Network != "tcp" && o.Network != "tls" && o.Network != "udp" {
		o.Network = defaultNetwork
	}

	if o.LocalHostname == "" {
		if h, err := os.Hostname(); err == nil && h != "" {
			o.LocalHostname = h
		} else {
			o.LocalHostname = "localhost"
		}
	}

	// must be positive
	if o.MaxQueueSize < 1 {
		o.MaxQueueSize = defaultMaxQueueSize
	}

	if o.OverflowPolicy != DropOldest && o.OverflowPolicy != DropNewest {
		o.OverflowPolicy = DropOldest
	}

	// must be positive
	if o.DropNotifyEvery < 1 {
		o.DropNotifyEvery = defaultDropNotifyEvery
	}

	// must be positive
	if o.DialTimeout < 1 {
		o.DialTimeout = defaultDialTimeout
	}

	// can be negative (no deadline) or positive, but not 0
	if o.WriteTimeout == 0 {
		o.WriteTimeout = defaultWriteTimeout
	}

	// must be positive
	if o.FlushTimeout < 1 {
		o.FlushTimeout = defaultFlushTimeout
	}

	// must be positive
	if o.MaxShutdownFlushes < 1 {
		o.MaxShutdownFlushes = defaultShutdownFlushes
	}

	if o.OnError == nil {
		o.OnError = func(err error) {
			InternalLogger().Printf("transport error: %v", err)
		}
	}
}
