package gelf

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testHost = "127.0.0.1"

// testCollector is an in-process stand-in for the log collector's stream
// listener: it accepts connections and decodes NUL-delimited flat JSON
// frames onto messageCh.
type testCollector struct {
	listener   net.Listener
	messageCh  chan map[string]any
	shutdownCh chan struct{}
	port       int
}

func newTestCollector(t *testing.T) *testCollector {
	return newTestCollectorAt(t, testHost+":0")
}

// newTestCollectorAt binds a specific address, letting a test bring a
// collector up on a port the transport has already been pointed at.
func newTestCollectorAt(t *testing.T, addr string) *testCollector {
	t.Helper()

	l, err := net.Listen("tcp", addr)
	require.NoError(t, err, "failed to start test collector listener")

	c := &testCollector{
		listener:   l,
		messageCh:  make(chan map[string]any, 256),
		shutdownCh: make(chan struct{}),
		port:       l.Addr().(*net.TCPAddr).Port,
	}

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				select {
				case <-c.shutdownCh:
					return
				default:
					continue
				}
			}
			go c.handle(conn)
		}
	}()

	return c
}

func (c *testCollector) handle(conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReader(conn)
	for {
		frame, err := r.ReadBytes(0x00)
		if err != nil {
			return
		}
		frame = bytes.TrimSuffix(frame, []byte{0x00})

		var m map[string]any
		if err := json.Unmarshal(frame, &m); err != nil {
			continue
		}
		select {
		case c.messageCh <- m:
		case <-c.shutdownCh:
			return
		}
	}
}

func (c *testCollector) Shutdown() {
	close(c.shutdownCh)
	c.listener.Close()
}

// next returns the next decoded message, failing the test if none arrives in
// time.
func (c *testCollector) next(t *testing.T, timeout time.Duration) map[string]any {
	t.Helper()
	select {
	case m := <-c.messageCh:
		return m
	case <-time.After(timeout):
		t.Fatalf("no message received within %s", timeout)
		return nil
	}
}

// testDatagramCollector receives raw UDP packets onto packetCh.
type testDatagramCollector struct {
	conn     net.PacketConn
	packetCh chan []byte
	port     int
}

func newTestDatagramCollector(t *testing.T) *testDatagramCollector {
	t.Helper()

	conn, err := net.ListenPacket("udp", testHost+":0")
	require.NoError(t, err, "failed to start test datagram collector")

	c := &testDatagramCollector{
		conn:     conn,
		packetCh: make(chan []byte, 64),
		port:     conn.LocalAddr().(*net.UDPAddr).Port,
	}

	go func() {
		buf := make([]byte, 64*1024)
		for {
			n, _, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			pkt := make([]byte, n)
			copy(pkt, buf[:n])
			c.packetCh <- pkt
		}
	}()

	return c
}

func (c *testDatagramCollector) Shutdown() {
	c.conn.Close()
}

// refusedPort returns a port on which nothing is listening, so dials fail
// fast with a refusal instead of hanging.
func refusedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", testHost+":0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

// errorRecorder is a concurrency-safe OnError sink for tests.
type errorRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *errorRecorder) record(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *errorRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

func (r *errorRecorder) all() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]error, len(r.errs))
	copy(out, r.errs)
	return out
}
