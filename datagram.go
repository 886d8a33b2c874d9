package gelf

import (
	"fmt"
	"net"
	"sync"
)

// MaxDatagramSize is the hard per-datagram payload ceiling. Messages that
// render larger are rejected, never truncated; the stream transports have no
// such limit.
const MaxDatagramSize = 8192

// datagramClient is the connectionless send path. There is no session to
// establish, so the client is ready as soon as the local socket exists,
// which happens lazily on the first send.
type datagramClient struct {
	addr string

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

func newDatagramClient(addr string) *datagramClient {
	return &datagramClient{addr: addr}
}

// send ships one rendered message as a single datagram, fire-and-forget.
func (d *datagramClient) send(payload []byte) error {
	if len(payload) > MaxDatagramSize {
		return &OversizedMessageError{Size: len(payload), Limit: MaxDatagramSize}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrTransportClosed
	}
	if d.conn == nil {
		conn, err := net.Dial("udp", d.addr)
		if err != nil {
			return fmt.Errorf("failed to open datagram socket to %s: %w", d.addr, err)
		}
		d.conn = conn
	}

	if _, err := d.conn.Write(payload); err != nil {
		return fmt.Errorf("datagram send to %s failed: %w", d.addr, err)
	}
	return nil
}

// ready reports whether the client can accept sends. Connectionless, so it
// is true until closed.
func (d *datagramClient) ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.closed
}

// close releases the local socket. It is idempotent, and safe on a client
// that never sent anything.
func (d *datagramClient) close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}
