package session

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/gemctl/internal/protocol"
	"github.com/danmuck/gemctl/internal/protocol/gemurl"
	"github.com/danmuck/gemctl/internal/protocol/response"
)

var (
	ErrPhaseOrder       = errors.New("session: invalid phase transition")
	ErrAlreadyActivated = errors.New("session: already activated")
)

// Phase is a step in the per-request machine:
// connecting -> sending -> receiving -> header_parsed -> complete, with
// failed reachable from every non-terminal phase.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseConnecting   Phase = "connecting"
	PhaseSending      Phase = "sending"
	PhaseReceiving    Phase = "receiving"
	PhaseHeaderParsed Phase = "header_parsed"
	PhaseComplete     Phase = "complete"
	PhaseFailed       Phase = "failed"
)

var nextPhase = map[Phase]Phase{
	PhaseIdle:         PhaseConnecting,
	PhaseConnecting:   PhaseSending,
	PhaseSending:      PhaseReceiving,
	PhaseReceiving:    PhaseHeaderParsed,
	PhaseHeaderParsed: PhaseComplete,
}

func (p Phase) terminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

const readChunk = 64 * 1024

// Session owns one TLS connection for one request.
type Session struct {
	id  string
	url gemurl.URL
	cfg Config

	activated atomic.Bool

	mu    sync.Mutex
	phase Phase
	trace []Phase
}

// Open prepares a request to u. Nothing is dialed until Activate.
func Open(u gemurl.URL, cfg Config) *Session {
	return &Session{
		id:    uuid.NewString(),
		url:   u,
		cfg:   cfg.WithDefaults(),
		phase: PhaseIdle,
		trace: []Phase{PhaseIdle},
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) URL() gemurl.URL {
	return s.url
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Trace returns every phase the session has entered, in order.
func (s *Session) Trace() []Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Phase, len(s.trace))
	copy(out, s.trace)
	return out
}

func (s *Session) advance(to Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	from := s.phase
	switch {
	case from.terminal():
		return fmt.Errorf("%w: %s -> %s", ErrPhaseOrder, from, to)
	case to == PhaseFailed:
	case nextPhase[from] != to:
		return fmt.Errorf("%w: %s -> %s", ErrPhaseOrder, from, to)
	}
	s.phase = to
	s.trace = append(s.trace, to)
	return nil
}

// Activate runs the request off the caller's goroutine. The returned channel
// yields exactly one Result and is then closed. A second call yields a
// Failure wrapping ErrAlreadyActivated.
func (s *Session) Activate(ctx context.Context) <-chan Result {
	out := make(chan Result, 1)
	if !s.activated.CompareAndSwap(false, true) {
		out <- Fail(s.url, ErrAlreadyActivated)
		close(out)
		return out
	}
	go func() {
		defer close(out)
		out <- s.run(ctx)
	}()
	return out
}

func (s *Session) run(ctx context.Context) Result {
	log.Debug().Str("request_id", s.id).Msgf("session.Activate url=%q", s.url.String())

	if s.url.Scheme != protocol.Scheme {
		return s.fail(fmt.Errorf("%w: %s", protocol.ErrUnsupportedScheme, s.url.Scheme))
	}
	if err := s.cfg.ValidateClientTransport(); err != nil {
		return s.fail(err)
	}
	_ = s.advance(PhaseConnecting)
	conn, err := s.dial(ctx)
	if err != nil {
		return s.fail(fmt.Errorf("%w: %v", protocol.ErrConnectionFailure, err))
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	_ = s.advance(PhaseSending)
	if err := s.send(conn); err != nil {
		return s.fail(fmt.Errorf("%w: send: %v", protocol.ErrConnectionFailure, ctxErr(ctx, err)))
	}

	_ = s.advance(PhaseReceiving)
	buf, err := s.receive(conn)
	if err != nil {
		if errors.Is(err, protocol.ErrResponseTooLarge) {
			return s.fail(err)
		}
		return s.fail(fmt.Errorf("%w: receive: %v", protocol.ErrConnectionFailure, ctxErr(ctx, err)))
	}

	header, body, err := response.ParseHeader(buf, s.cfg.Limits)
	if err != nil {
		return s.fail(err)
	}
	_ = s.advance(PhaseHeaderParsed)

	result := classifyHeader(s.url, header, body)
	if f, ok := result.(Failure); ok {
		_ = s.advance(PhaseFailed)
		log.Debug().Str("request_id", s.id).Msgf("session.Complete url=%q code=%d failure=%q", s.url.String(), header.Code, f.Message)
		return f
	}
	_ = s.advance(PhaseComplete)
	log.Debug().Str("request_id", s.id).Msgf("session.Complete url=%q code=%d bytes=%d", s.url.String(), header.Code, len(body))
	return result
}

func (s *Session) fail(err error) Failure {
	_ = s.advance(PhaseFailed)
	f := Fail(s.url, err)
	log.Warn().Str("request_id", s.id).Msgf("session.Failed url=%q err=%v", s.url.String(), err)
	return f
}

func (s *Session) dial(ctx context.Context) (net.Conn, error) {
	tlsCfg, err := s.cfg.clientTLSConfig(s.url.Host)
	if err != nil {
		return nil, err
	}
	dialer := net.Dialer{Timeout: s.cfg.ConnectTimeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", s.url.Address())
	if err != nil {
		return nil, err
	}
	conn := tls.Client(rawConn, tlsCfg)
	handshakeCtx := ctx
	if s.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		handshakeCtx, cancel = context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
		defer cancel()
	}
	if err := conn.HandshakeContext(handshakeCtx); err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	return conn, nil
}

// send writes the request line in a single write.
func (s *Session) send(conn net.Conn) error {
	if s.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	_, err := conn.Write([]byte(s.url.String() + "\r\n"))
	return err
}

// receive appends to one buffer until the peer closes the stream.
func (s *Session) receive(conn net.Conn) ([]byte, error) {
	buf := make([]byte, 0, readChunk)
	chunk := make([]byte, readChunk)
	for {
		if s.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		n, err := conn.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if limit := s.cfg.Limits.MaxResponseBytes; limit > 0 && int64(len(buf)) > limit {
			return nil, fmt.Errorf("%w: more than %d bytes", protocol.ErrResponseTooLarge, limit)
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) || (errors.Is(err, io.ErrUnexpectedEOF) && len(buf) > 0) {
			return buf, nil
		}
		return nil, err
	}
}

func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
