// Package gemtest runs an in-process TLS capsule for client tests.
package gemtest

import (
	"bufio"
	"crypto/tls"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/danmuck/gemctl/internal/testutil/tlstest"
)

// Handler writes a raw response for one request line (without CRLF).
type Handler func(requestLine string) []byte

// Capsule accepts Gemini requests on 127.0.0.1 until the test ends.
type Capsule struct {
	Addr   string
	CAFile string

	listener net.Listener
	handler  Handler

	mu       sync.Mutex
	requests []string
	wg       sync.WaitGroup
}

// Start serves handler over TLS with a certificate signed by a fresh
// authority. The capsule closes on test cleanup.
func Start(t testing.TB, handler Handler) *Capsule {
	t.Helper()
	dir := t.TempDir()
	authority := tlstest.NewAuthority(t, dir, "gemtest-ca")
	tlsCfg := authority.ServerConfig(t, dir, "127.0.0.1")

	ln, err := tls.Listen("tcp", "127.0.0.1:0", tlsCfg)
	if err != nil {
		t.Fatalf("listen capsule: %v", err)
	}
	c := &Capsule{
		Addr:     ln.Addr().String(),
		CAFile:   authority.CAFile(),
		listener: ln,
		handler:  handler,
	}
	c.wg.Add(1)
	go c.serve()
	t.Cleanup(c.Close)
	return c
}

// Static replies with the same raw bytes to every request.
func Static(raw string) Handler {
	return func(string) []byte { return []byte(raw) }
}

// Routes dispatches on the request line; unknown lines get 51.
func Routes(routes map[string]string) Handler {
	return func(line string) []byte {
		if raw, ok := routes[line]; ok {
			return []byte(raw)
		}
		return []byte("51 Not found\r\n")
	}
}

// Port is the listener port, for building gemini:// URLs.
func (c *Capsule) Port() uint16 {
	addr := c.listener.Addr().(*net.TCPAddr)
	return uint16(addr.Port)
}

// Requests returns every request line received, in order.
func (c *Capsule) Requests() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.requests))
	copy(out, c.requests)
	return out
}

func (c *Capsule) Close() {
	_ = c.listener.Close()
	c.wg.Wait()
}

func (c *Capsule) serve() {
	defer c.wg.Done()
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		c.wg.Add(1)
		go c.handle(conn)
	}
}

func (c *Capsule) handle(conn net.Conn) {
	defer c.wg.Done()
	defer conn.Close()

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return
	}
	line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")

	c.mu.Lock()
	c.requests = append(c.requests, line)
	c.mu.Unlock()

	_, _ = conn.Write(c.handler(line))
}
