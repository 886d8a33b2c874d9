package gelf

import (
	"testing"
	"time"
)

func TestTransportOptions_resolvedPort(t *testing.T) {

	tests := []struct {
		name   string
		input  int
		expect int
	}{
		{"valid custom port unchanged", 20_000, 20_000},
		{"zero port coerced to default", 0, defaultPort},
		{"out-of-range port coerced to default", 100_000, defaultPort},
	}
	for i := 0; i < len(tests); i++ {
		tt := tests[i]
		t.Run(tt.name, func(t *testing.T) {
			opts := &TransportOptions{Port: tt.input}
			opts.resolve()
			if opts.Port != tt.expect {
				t.Errorf("failed: %s, expected: %d, got: %d", tt.name, tt.expect, opts.Port)
			}
		})
	}
}

func TestTransportOptions_resolvedNetwork(t *testing.T) {

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{"valid network unchanged", "tls", "tls"},
		{"udp network unchanged", "udp", "udp"},
		{"empty network coerced to default", "", defaultNetwork},
		{"unknown network coerced to default", "sctp", defaultNetwork},
	}
	for i := 0; i < len(tests); i++ {
		tt := tests[i]
		t.Run(tt.name, func(t *testing.T) {
			opts := &TransportOptions{Network: tt.input}
			opts.resolve()
			if opts.Network != tt.expect {
				t.Errorf("failed: %s, expected: %s, got: %s", tt.name, tt.expect, opts.Network)
			}
		})
	}
}

func TestTransportOptions_resolvedMaxQueueSize(t *testing.T) {
	tests := []struct {
		name   string
		input  int
		expect int
	}{
		{"valid (positive) size unchanged", 5, 5},
		{"zero coerced to default", 0, defaultMaxQueueSize},
		{"negative coerced to default", -1, defaultMaxQueueSize},
	}
	for i := 0; i < len(tests); i++ {
		tt := tests[i]
		t.Run(tt.name, func(t *testing.T) {
			opts := &TransportOptions{MaxQueueSize: tt.input}
			opts.resolve()
			if opts.MaxQueueSize != tt.expect {
				t.Errorf("failed: %s, expected: %d, got: %d", tt.name, tt.expect, opts.MaxQueueSize)
			}
		})
	}
}

func TestTransportOptions_resolvedDialTimeout(t *testing.T) {
	tests := []struct {
		name   string
		input  time.Duration
		expect time.Duration
	}{
		{"valid (positive) DialTimeout unchanged", time.Minute, time.Minute},
		{"0 duration gets coerced to the default", 0, defaultDialTimeout},
		{"negative duration gets coerced to the default", time.Second * -1, defaultDialTimeout},
	}
	for i := 0; i < len(tests); i++ {
		tt := tests[i]
		t.Run(tt.name, func(t *testing.T) {
			opts := &TransportOptions{DialTimeout: tt.input}
			opts.resolve()
			if opts.DialTimeout != tt.expect {
				t.Errorf("failed: %s, expected: %s, got: %s", tt.name, tt.expect, opts.DialTimeout)
			}
		})
	}
}

// WriteTimeout must be negative (no deadline) or positive, but not 0.
func TestTransportOptions_resolvedWriteTimeout(t *testing.T) {
	tests := []struct {
		name   string
		input  time.Duration
		expect time.Duration
	}{
		{"valid (positive) WriteTimeout unchanged", time.Minute, time.Minute},
		{"negative duration is unchanged", -time.Second, -time.Second},
		{"0 duration gets coerced to the default", 0, defaultWriteTimeout},
	}
	for i := 0; i < len(tests); i++ {
		tt := tests[i]
		t.Run(tt.name, func(t *testing.T) {
			opts := &TransportOptions{WriteTimeout: tt.input}
			opts.resolve()
			if opts.WriteTimeout != tt.expect {
				t.Errorf("failed: %s, expected: %s, got: %s", tt.name, tt.expect, opts.WriteTimeout)
			}
		})
	}
}

func TestTransportOptions_resolvedDropNotifyEvery(t *testing.T) {
	tests := []struct {
		name   string
		input  int
		expect int
	}{
		{"positive DropNotifyEvery unchanged", 10, 10},
		{"zero coerced to the default", 0, defaultDropNotifyEvery},
		{"negative coerced to the default", -1, defaultDropNotifyEvery},
	}
	for i := 0; i < len(tests); i++ {
		tt := tests[i]
		t.Run(tt.name, func(t *testing.T) {
			opts := &TransportOptions{DropNotifyEvery: tt.input}
			opts.resolve()
			if opts.DropNotifyEvery != tt.expect {
				t.Errorf("failed: %s, expected: %d, got: %d", tt.name, tt.expect, opts.DropNotifyEvery)
			}
		})
	}
}

func TestTransportOptions_resolvedDefaults(t *testing.T) {
	opts := &TransportOptions{}
	opts.resolve()

	if opts.FlushTimeout != defaultFlushTimeout {
		t.Errorf("FlushTimeout, expected: %s, got: %s", defaultFlushTimeout, opts.FlushTimeout)
	}
	if opts.MaxShutdownFlushes != defaultShutdownFlushes {
		t.Errorf("MaxShutdownFlushes, expected: %d, got: %d", defaultShutdownFlushes, opts.MaxShutdownFlushes)
	}
	if opts.LocalHostname == "" {
		t.Error("LocalHostname must resolve to a non-empty host label")
	}
	if opts.OnError == nil {
		t.Error("OnError must resolve to the internal-logger default")
	}
	if opts.OverflowPolicy != DropOldest {
		t.Errorf("OverflowPolicy, expected: %s, got: %s", DropOldest, opts.OverflowPolicy)
	}
}
