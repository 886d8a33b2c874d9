package gelf

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/bitdabbler/backoff"
)

// connState is the transport's connection lifecycle state. stateClosing is
// terminal; it is entered once Shutdown has finished its final flushes and
// released the socket.
type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
	stateClosing
)

// Transport ships GELF messages to one collector. Records submitted while
// the collector is unreachable are held in a bounded in-memory queue and
// drained, in order, once a connection is (re)established; Send never blocks
// on the network and never returns an error. All failures funnel to the
// configured error handler.
//
// A Transport is safe for concurrent use. Flush is the only call that
// suspends its caller.
type Transport struct {
	opts *TransportOptions
	host string // destination host, also the TLS server name
	addr string

	udp *datagramClient // non-nil iff Network == "udp"

	mu      sync.Mutex
	state   connState
	q       *messageQueue
	fc      *flushCoordinator
	conn    net.Conn     // exclusively owned; nil unless state is Connected
	attempt *connAttempt // non-nil while exactly one dial is in flight
	gen     int          // connection generation, fences stale callbacks
	wake    chan struct{}
	writing int  // untracked writes in flight; a stale writer can briefly overlap its replacement
	closing bool // Shutdown has begun; final flushes may still run

	readyOnce sync.Once
}

// New creates a Transport shipping to the given collector host. Unless
// SkipEagerDial is set (or the network is "udp", which has no session), a
// connection attempt starts immediately in the background; the constructor
// never waits for it, so records can be submitted right away and queue until
// the session is up.
func New(host string, opts *TransportOptions) (*Transport, error) {
	if len(host) == 0 {
		return nil, errors.New("valid host required")
	}

	if opts == nil {
		opts = DefaultTransportOptions()
	}
	opts.resolve()

	t := &Transport{
		opts: opts,
		host: host,
		addr: fmt.Sprintf("%s:%d", host, opts.Port),
		fc:   &flushCoordinator{},
	}
	t.q = newMessageQueue(opts.MaxQueueSize, opts.OverflowPolicy, opts.DropNotifyEvery,
		func(dropped uint64) {
			// reported outside the state lock so the handler may call back
			// into the Transport
			go t.opts.OnError(&QueueOverflowError{Dropped: dropped, Policy: opts.OverflowPolicy})
		})

	t.debug("starting Transport with the resolved TransportOptions: %+v", t.opts)

	if opts.Network == "udp" {
		t.udp = newDatagramClient(t.addr)
		return t, nil
	}

	if !opts.SkipEagerDial {
		t.mu.Lock()
		t.connectLocked()
		t.mu.Unlock()
	}

	return t, nil
}

// Send formats the record and hands it to the transport: written out
// opportunistically when connected, queued otherwise. It never blocks on the
// network and never returns an error; connection failures and overflow drops
// surface on the error handler.
//
// The record may be a Record / map[string]any, or any raw value, which is
// then wrapped as the message text.
func (t *Transport) Send(record any) {
	msg := Format(record, t.opts.LocalHostname, t.opts.Facility, t.opts.StaticFields)

	if t.udp != nil {
		if err := t.udp.send(msg.Bytes()); err != nil {
			t.opts.OnError(err)
		}
		return
	}

	t.mu.Lock()
	if t.state == stateClosing {
		t.mu.Unlock()
		t.opts.OnError(fmt.Errorf("%w: record dropped", ErrTransportClosed))
		return
	}

	t.q.enqueue(msg)

	switch t.state {
	case stateDisconnected:
		// lazy retry: reconnection is only ever triggered from Send and
		// Flush, never from a background timer
		t.connectLocked()
	case stateConnected:
		t.signalWriterLocked()
	}
	t.mu.Unlock()
}

// Flush waits until the queue is empty and in-flight writes have completed,
// or until the timeout (the configured FlushTimeout if timeout <= 0). It
// shares any in-progress connection attempt, and actively triggers one when
// queued work has no live connection. Flush never fails: on timeout it
// simply returns, and callers needing a hard guarantee should inspect
// PendingCount. Concurrent Flush calls are independent; one caller's timeout
// never affects another's.
func (t *Transport) Flush(timeout time.Duration) {
	if timeout <= 0 {
		timeout = t.opts.FlushTimeout
	}

	if t.udp != nil {
		// datagrams are handed to the OS as they are sent; nothing buffers
		return
	}

	t.mu.Lock()
	t.fc.outstanding++

	// share the in-flight attempt rather than racing it
	for t.attempt != nil {
		done := t.attempt.done
		t.mu.Unlock()
		<-done
		t.mu.Lock()
	}

	// queued work and no live connection: trigger one attempt and wait for
	// its outcome
	if t.q.size() > 0 && t.state != stateConnected {
		t.connectLocked()
		if att := t.attempt; att != nil {
			done := att.done
			t.mu.Unlock()
			<-done
			t.mu.Lock()
		}
	}

	if t.drainedLocked() {
		t.fc.outstanding--
		t.mu.Unlock()
		return
	}

	if t.state == stateConnected {
		t.signalWriterLocked()
	}

	waiter := t.fc.addWaiter()
	t.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-waiter:
	case <-timer.C:
	}

	t.mu.Lock()
	// a fired timer fully unregisters its resolver, so a later drain cannot
	// resolve into a channel nobody reads; no-op for a resolved waiter
	t.fc.removeWaiter(waiter)
	t.fc.outstanding--
	t.mu.Unlock()
}

// Shutdown flushes and releases the transport: it re-flushes up to
// MaxShutdownFlushes times to catch records submitted concurrently with
// shutdown, then ends the live connection and discards whatever could not be
// delivered (reporting the count on the error handler). It always completes;
// ctx bounds how long the final flushes may take, and the context error, if
// any, is returned. Shutdown is idempotent, and no records may be submitted
// after it returns.
func (t *Transport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	if t.closing {
		t.mu.Unlock()
		return nil
	}
	t.closing = true
	t.mu.Unlock()

	if t.udp == nil {
		b, berr := backoff.New(
			backoff.WithInitialDelay(time.Millisecond*50),
			backoff.WithExponentialLimit(time.Second),
		)
		if berr != nil {
			b = nil
		}

		for i := 0; i < t.opts.MaxShutdownFlushes; i++ {
			t.Flush(t.opts.FlushTimeout)

			t.mu.Lock()
			drained := t.drainedLocked()
			t.mu.Unlock()

			if drained || ctx.Err() != nil {
				break
			}
			if b != nil {
				b.Sleep()
			}
		}
	}

	t.mu.Lock()
	t.state = stateClosing
	att := t.attempt
	t.attempt = nil
	conn := t.conn
	t.conn = nil
	t.gen++ // fence the writer and monitor of the old connection
	unsent := t.q.drainAll()
	t.signalWriterLocked()
	t.mu.Unlock()

	if att != nil {
		att.cancel()
		close(att.done)
	}
	if conn != nil {
		conn.Close()
	}
	if t.udp != nil {
		t.udp.close()
	}
	if n := len(unsent); n > 0 {
		t.opts.OnError(fmt.Errorf("shutdown: abandoning %d undelivered messages", n))
	}

	t.debug("transport closed")
	return ctx.Err()
}

// Ready reports whether the transport can ship right now: a live session, or
// an open datagram path (which is ready by construction).
func (t *Transport) Ready() bool {
	if t.udp != nil {
		return t.udp.ready()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == stateConnected
}

// Connected reports whether a live connection exists. For the datagram
// network this is vacuously true while the client is open.
func (t *Transport) Connected() bool {
	if t.udp != nil {
		return t.udp.ready()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// QueueSize returns the number of messages held pending delivery.
func (t *Transport) QueueSize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.q.size()
}

// MaxQueueSize returns the configured queue capacity.
func (t *Transport) MaxQueueSize() int {
	return t.opts.MaxQueueSize
}

// DroppedCount returns the total number of messages dropped due to queue
// overflow since construction. It is monotonically non-decreasing.
func (t *Transport) DroppedCount() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.q.droppedCount()
}

// PendingCount returns the outstanding work: queued messages plus writes
// issued but not yet completed.
func (t *Transport) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fc.pending + t.q.size() + t.writing
}

// connectLocked starts a connection attempt unless one is already in flight
// or the state forbids it. Concurrent triggers share the one attempt.
// Caller holds t.mu.
func (t *Transport) connectLocked() {
	if t.attempt != nil || t.state == stateConnected || t.state == stateClosing {
		return
	}

	t.state = stateConnecting
	att := &connAttempt{done: make(chan struct{})}
	t.attempt = att
	att.cancel = dialSession(t.opts.Network, t.addr, t.host, t.opts, connCallbacks{
		onConnect: func(conn net.Conn) { t.connEstablished(att, conn) },
		onError:   func(err error) { t.connFailed(att, err) },
	})

	t.debug("connection attempt started: %s %s", t.opts.Network, t.addr)
}

func (t *Transport) connEstablished(att *connAttempt, conn net.Conn) {
	t.mu.Lock()
	if t.attempt != att {
		// the attempt was torn down while the dial was resolving; whoever
		// cleared it already resolved att.done
		t.mu.Unlock()
		conn.Close()
		return
	}

	t.attempt = nil
	t.conn = conn
	t.state = stateConnected
	t.gen++
	gen := t.gen
	wake := make(chan struct{}, 1)
	t.wake = wake
	go t.writeLoop(conn, gen, wake)
	go monitorConn(conn, func(err error) { t.connLost(gen, err) })
	t.mu.Unlock()

	close(att.done)
	t.notifyReady(nil)
	t.debug("connected to collector at %s", t.addr)
}

func (t *Transport) connFailed(att *connAttempt, err error) {
	t.mu.Lock()
	if t.attempt != att {
		t.mu.Unlock()
		return
	}

	t.attempt = nil
	if t.state == stateConnecting {
		// queue preserved; the next Send or Flush retriggers connection
		t.state = stateDisconnected
	}
	t.mu.Unlock()

	close(att.done)
	t.opts.OnError(err)
	t.notifyReady(err)
}

// connLost tears down a live connection after a socket error or close. The
// queue is preserved. Safe to call more than once per connection; the
// generation fence makes stale calls no-ops.
func (t *Transport) connLost(gen int, err error) {
	t.mu.Lock()
	if t.gen != gen || t.conn == nil {
		t.mu.Unlock()
		return
	}

	conn := t.conn
	t.conn = nil
	if t.state == stateConnected {
		t.state = stateDisconnected
	}
	t.signalWriterLocked()
	t.mu.Unlock()

	conn.Close()
	if err != nil {
		t.opts.OnError(fmt.Errorf("connection to %s lost: %w", t.addr, err))
	}
	t.debug("connection lost; %d messages queued", t.QueueSize())
}

// writeLoop drains the queue onto one connection in FIFO order. It is the
// only goroutine that writes to the socket. It exits when the connection is
// torn down or superseded.
func (t *Transport) writeLoop(conn net.Conn, gen int, wake chan struct{}) {
	for {
		t.mu.Lock()
		if t.gen != gen || t.conn == nil {
			t.mu.Unlock()
			return
		}

		msg, ok := t.q.dequeue()
		if !ok {
			if t.drainedLocked() {
				t.fc.broadcast()
			}
			t.mu.Unlock()
			<-wake
			continue
		}

		tracked := t.fc.trackWrite()
		if !tracked {
			t.writing++
		}
		t.mu.Unlock()

		if t.opts.WriteTimeout > 0 {
			conn.SetWriteDeadline(time.Now().Add(t.opts.WriteTimeout))
		}
		_, err := conn.Write(msg.Frame())

		t.mu.Lock()
		if tracked {
			t.fc.writeComplete()
		} else {
			t.writing--
		}

		if err != nil {
			stale := t.gen != gen
			if !stale {
				// keep the in-flight message: back to the head so
				// reconnection preserves order
				t.q.requeue(msg)
			}
			t.mu.Unlock()
			if stale {
				// a replacement connection is already draining the queue;
				// re-inserting at the head now would reorder
				t.opts.OnError(fmt.Errorf("write failed after reconnect, record abandoned: %w", err))
				return
			}
			t.connLost(gen, fmt.Errorf("write failed: %w", err))
			return
		}

		if t.drainedLocked() {
			t.fc.broadcast()
		}
		t.mu.Unlock()
	}
}

// drainedLocked reports the full drain condition: empty queue, no tracked
// pending writes, and no untracked write mid-flight. Caller holds t.mu.
func (t *Transport) drainedLocked() bool {
	return t.writing == 0 && t.fc.drained(t.q.size())
}

// signalWriterLocked nudges the writer without blocking; the buffered
// channel coalesces redundant signals. Caller holds t.mu.
func (t *Transport) signalWriterLocked() {
	if t.wake == nil {
		return
	}
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *Transport) notifyReady(err error) {
	if t.opts.OnReady == nil {
		return
	}
	t.readyOnce.Do(func() { t.opts.OnReady(err) })
}

func (t *Transport) debug(format string, args ...any) {
	if !t.opts.Verbose {
		return
	}
	InternalLogger().Printf(format, args...)
}
