package gelf

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

const keepAlivePeriod = time.Second * 30

// connCallbacks observe one connection attempt. The guard wrapping them
// guarantees each fires at most once.
type connCallbacks struct {
	// onConnect receives the live, tuned socket; the receiver takes
	// ownership of it.
	onConnect func(net.Conn)

	// onError fires when the attempt fails: refused, reset, DNS failure,
	// timeout (tagged ErrConnectTimeout), or TLS validation failure (tagged
	// ErrCertValidation).
	onError func(error)
}

// connAttempt is the handle for one in-flight connection attempt. The
// Transport keeps at most one alive at a time; concurrent triggers share it.
// done is closed by the Transport once the attempt's outcome has been
// applied to the state machine, which is what Flush waits on.
type connAttempt struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// callbackGuard enforces the at-most-once contract on a callback set.
type callbackGuard struct {
	connectOnce sync.Once
	errorOnce   sync.Once
	cb          connCallbacks
}

func (g *callbackGuard) connect(conn net.Conn) {
	g.connectOnce.Do(func() { g.cb.onConnect(conn) })
}

func (g *callbackGuard) fail(err error) {
	g.errorOnce.Do(func() { g.cb.onError(err) })
}

// dialSession opens exactly one socket to addr over the given session
// protocol ("tcp" or "tls") and reports through cb. The attempt aborts after
// opts.DialTimeout, surfacing an ErrConnectTimeout-tagged error. The
// returned cancel aborts the attempt early; cancelling after an outcome has
// fired is a no-op beyond releasing the timer.
func dialSession(network, addr, serverName string, opts *TransportOptions, cb connCallbacks) context.CancelFunc {
	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	guard := &callbackGuard{cb: cb}

	go func() {
		// the deadline timer is released as soon as either callback fires
		defer cancel()

		conn, err := dial(ctx, network, addr, serverName, opts)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%w: dialing %s took longer than %s", ErrConnectTimeout, addr, opts.DialTimeout)
			}
			guard.fail(err)
			return
		}
		tune(conn)
		guard.connect(conn)
	}()

	return cancel
}

func dial(ctx context.Context, network, addr, serverName string, opts *TransportOptions) (net.Conn, error) {
	var d net.Dialer

	switch network {
	case "tcp":
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to dial collector at %s over tcp: %w", addr, err)
		}
		return conn, nil

	case "tls":
		tlsDialer := tls.Dialer{
			NetDialer: &d,
			Config:    tlsConfig(serverName, opts),
		}
		conn, err := tlsDialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			var certErr *tls.CertificateVerificationError
			if errors.As(err, &certErr) {
				return nil, fmt.Errorf("%w: collector at %s: %v", ErrCertValidation, addr, err)
			}
			return nil, fmt.Errorf("failed to dial collector at %s over tls: %w", addr, err)
		}
		return conn, nil
	}

	return nil, fmt.Errorf("unsupported session protocol: %s", network)
}

func tlsConfig(serverName string, opts *TransportOptions) *tls.Config {
	cfg := &tls.Config{}
	if opts.TLSConfig != nil {
		cfg = opts.TLSConfig.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = serverName
	}
	if opts.InsecureSkipVerify {
		cfg.InsecureSkipVerify = true
	}
	return cfg
}

// tune applies low-latency settings where the socket supports them: disable
// send coalescing and enable keep-alive.
func tune(conn net.Conn) {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		// a tls.Conn wraps the TCP socket
		if tlsConn, isTLS := conn.(*tls.Conn); isTLS {
			tcpConn, ok = tlsConn.NetConn().(*net.TCPConn)
		}
	}
	if !ok {
		return
	}
	tcpConn.SetNoDelay(true)
	tcpConn.SetKeepAlive(true)
	tcpConn.SetKeepAlivePeriod(keepAlivePeriod)
}

// monitorConn owns the read side of a live connection and reports when the
// collector ends or breaks it: onDown receives nil on a clean close and the
// read error otherwise, exactly once. The collector never sends application
// data, so any successful read is discarded.
func monitorConn(conn net.Conn, onDown func(error)) {
	buf := make([]byte, 256)
	for {
		_, err := conn.Read(buf)
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
			onDown(nil)
		} else {
			onDown(err)
		}
		return
	}
}
