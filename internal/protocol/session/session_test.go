package session

import (
	"context"
	"errors"
	"net"
	"slices"
	"testing"
	"time"

	"github.com/danmuck/gemctl/internal/protocol"
	"github.com/danmuck/gemctl/internal/protocol/gemurl"
	"github.com/danmuck/gemctl/internal/testutil/gemtest"
	"github.com/danmuck/gemctl/internal/testutil/testlog"
)

func capsuleURL(c *gemtest.Capsule, path string) gemurl.URL {
	return gemurl.URL{Scheme: protocol.Scheme, Host: "127.0.0.1", Port: c.Port(), Path: path}
}

func pinnedConfig(c *gemtest.Capsule) Config {
	cfg := DefaultConfig()
	cfg.TLS.InsecureSkipVerify = false
	cfg.TLS.CAFile = c.CAFile
	return cfg
}

func TestSessionSendsRequestLineAndClassifies(t *testing.T) {
	testlog.Start(t)
	capsule := gemtest.Start(t, gemtest.Static("20 text/gemini; charset=utf-8\r\n# Welcome\n"))
	u := capsuleURL(capsule, "/hello")

	s := Open(u, pinnedConfig(capsule))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result := <-s.Activate(ctx)

	ok, isSuccess := result.(Success)
	if !isSuccess {
		t.Fatalf("expected Success, got %#v", result)
	}
	if string(ok.Body) != "# Welcome\n" {
		t.Fatalf("unexpected body: %q", ok.Body)
	}
	if got := capsule.Requests(); len(got) != 1 || got[0] != u.String() {
		t.Fatalf("unexpected request lines: %v", got)
	}
	want := []Phase{PhaseIdle, PhaseConnecting, PhaseSending, PhaseReceiving, PhaseHeaderParsed, PhaseComplete}
	if trace := s.Trace(); !slices.Equal(trace, want) {
		t.Fatalf("unexpected trace: %v", trace)
	}
}

func TestSessionServerErrorEndsFailed(t *testing.T) {
	testlog.Start(t)
	capsule := gemtest.Start(t, gemtest.Static("51 Not found\r\n"))
	s := Open(capsuleURL(capsule, "/missing"), pinnedConfig(capsule))
	result := <-s.Activate(context.Background())

	f, ok := result.(Failure)
	if !ok {
		t.Fatalf("expected Failure, got %#v", result)
	}
	if !errors.Is(f, protocol.ErrServer) {
		t.Fatalf("expected ErrServer, got %v", f.Err)
	}
	if s.Phase() != PhaseFailed {
		t.Fatalf("expected failed phase, got %s", s.Phase())
	}
}

func TestSessionRejectsForeignScheme(t *testing.T) {
	testlog.Start(t)
	capsule := gemtest.Start(t, gemtest.Static("20 text/gemini\r\n# never\n"))
	u := capsuleURL(capsule, "/")
	u.Scheme = "https"

	s := Open(u, pinnedConfig(capsule))
	result := <-s.Activate(context.Background())
	f, ok := result.(Failure)
	if !ok || !errors.Is(f, protocol.ErrUnsupportedScheme) {
		t.Fatalf("expected ErrUnsupportedScheme, got %#v", result)
	}
	if got := capsule.Requests(); len(got) != 0 {
		t.Fatalf("expected no request on the wire, got %v", got)
	}
	if trace := s.Trace(); !slices.Equal(trace, []Phase{PhaseIdle, PhaseFailed}) {
		t.Fatalf("unexpected trace: %v", trace)
	}
}

func TestSessionActivateTwice(t *testing.T) {
	testlog.Start(t)
	capsule := gemtest.Start(t, gemtest.Static("10 Query?\r\n"))
	s := Open(capsuleURL(capsule, "/"), pinnedConfig(capsule))
	first := <-s.Activate(context.Background())
	if _, ok := first.(InputRequest); !ok {
		t.Fatalf("expected InputRequest, got %#v", first)
	}
	second := <-s.Activate(context.Background())
	f, ok := second.(Failure)
	if !ok || !errors.Is(f, ErrAlreadyActivated) {
		t.Fatalf("expected ErrAlreadyActivated, got %#v", second)
	}
}

func TestSessionConnectionRefused(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := uint16(ln.Addr().(*net.TCPAddr).Port)
	_ = ln.Close()

	u := gemurl.URL{Scheme: protocol.Scheme, Host: "127.0.0.1", Port: port, Path: "/"}
	result := <-Open(u, DefaultConfig()).Activate(context.Background())
	f, ok := result.(Failure)
	if !ok {
		t.Fatalf("expected Failure, got %#v", result)
	}
	if !errors.Is(f, protocol.ErrConnectionFailure) {
		t.Fatalf("expected ErrConnectionFailure, got %v", f.Err)
	}
}

func TestSessionResponseTooLarge(t *testing.T) {
	testlog.Start(t)
	body := make([]byte, 4096)
	capsule := gemtest.Start(t, gemtest.Static("20 text/plain\r\n"+string(body)))
	cfg := pinnedConfig(capsule)
	cfg.Limits.MaxResponseBytes = 1024

	result := <-Open(capsuleURL(capsule, "/big"), cfg).Activate(context.Background())
	f, ok := result.(Failure)
	if !ok || !errors.Is(f, protocol.ErrResponseTooLarge) {
		t.Fatalf("expected ErrResponseTooLarge, got %#v", result)
	}
}

func TestClientRejectsInvalidTransport(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TLS.CAFile = "/tmp/ca.crt"
	if _, err := NewClient(cfg); !errors.Is(err, ErrTLSCAFileConflict) {
		t.Fatalf("expected ErrTLSCAFileConflict, got %v", err)
	}
	cfg = DefaultConfig()
	cfg.ReadTimeout = -time.Second
	if _, err := NewClient(cfg); !errors.Is(err, ErrInvalidTimeout) {
		t.Fatalf("expected ErrInvalidTimeout, got %v", err)
	}
}

func TestClientFetch(t *testing.T) {
	testlog.Start(t)
	capsule := gemtest.Start(t, gemtest.Routes(map[string]string{}))
	client, err := NewClient(pinnedConfig(capsule))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	result := client.Fetch(context.Background(), capsuleURL(capsule, "/nowhere"))
	if kind, code := Describe(result); kind != "error" || code != 51 {
		t.Fatalf("unexpected result: %s %d", kind, code)
	}
}
