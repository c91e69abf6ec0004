package session

import (
	"errors"
	"fmt"

	"github.com/danmuck/gemctl/internal/protocol"
	"github.com/danmuck/gemctl/internal/protocol/gemurl"
	"github.com/danmuck/gemctl/internal/protocol/response"
	"github.com/danmuck/gemctl/internal/protocol/status"
)

// Result is the outcome of one request: Success, InputRequest, Redirect or
// Failure.
type Result interface {
	Request() gemurl.URL
	isResult()
}

type Success struct {
	URL  gemurl.URL
	Body []byte
	MIME response.MimeType
}

type InputRequest struct {
	URL    gemurl.URL
	Prompt string
}

type Redirect struct {
	URL       gemurl.URL
	Target    gemurl.URL
	Permanent bool
}

// Failure is the Error variant. Message is user facing; Err classifies it
// against the protocol sentinels. Code is set for server errors.
type Failure struct {
	URL     gemurl.URL
	Code    int
	Message string
	Err     error
}

func (r Success) Request() gemurl.URL      { return r.URL }
func (r InputRequest) Request() gemurl.URL { return r.URL }
func (r Redirect) Request() gemurl.URL     { return r.URL }
func (r Failure) Request() gemurl.URL      { return r.URL }

func (Success) isResult()      {}
func (InputRequest) isResult() {}
func (Redirect) isResult()     {}
func (Failure) isResult()      {}

func (f Failure) Error() string { return f.Message }
func (f Failure) Unwrap() error { return f.Err }

// Fail wraps err as the Failure for a request to u.
func Fail(u gemurl.URL, err error) Failure {
	f := Failure{
		URL:     u,
		Message: fmt.Sprintf("couldn't retrieve %s: %s", u.String(), describe(err)),
		Err:     err,
	}
	var serverErr *protocol.ServerError
	if errors.As(err, &serverErr) {
		f.Code = serverErr.Code
	}
	return f
}

func describe(err error) string {
	var serverErr *protocol.ServerError
	if errors.As(err, &serverErr) {
		return serverErr.Error()
	}
	return err.Error()
}

// Classify parses a complete response buffer for a request to u.
func Classify(u gemurl.URL, buf []byte, limits response.Limits) Result {
	header, body, err := response.ParseHeader(buf, limits)
	if err != nil {
		return Fail(u, err)
	}
	return classifyHeader(u, header, body)
}

func classifyHeader(u gemurl.URL, header response.Header, body []byte) Result {
	info, ok := status.Lookup(header.Code)
	if !ok {
		return Fail(u, fmt.Errorf("%w: Invalid status code %02d", protocol.ErrProtocol, header.Code))
	}
	switch {
	case info.Class == status.ClassInput:
		return InputRequest{URL: u, Prompt: header.Meta}

	case info.Class == status.ClassSuccess:
		mime, err := response.ParseMIME(header.Meta)
		if err != nil {
			return Fail(u, err)
		}
		return Success{URL: u, Body: body, MIME: mime}

	case info.Class == status.ClassRedirect:
		target, err := redirectTarget(u, header.Meta)
		if err != nil {
			return Fail(u, err)
		}
		return Redirect{URL: u, Target: target, Permanent: header.Code == status.RedirectPermanent}

	case info.IsFailure():
		return Fail(u, &protocol.ServerError{Code: header.Code, Label: info.Label, Meta: header.Meta})
	}
	return Fail(u, fmt.Errorf("%w: Invalid status code %02d", protocol.ErrProtocol, header.Code))
}

// redirectTarget resolves meta against the request URL so relative
// redirects land on the same capsule.
func redirectTarget(u gemurl.URL, meta string) (gemurl.URL, error) {
	if meta == "" {
		return gemurl.URL{}, fmt.Errorf("%w: redirected to empty URL", protocol.ErrInvalidURL)
	}
	ref, err := gemurl.ParseReference(meta)
	if err != nil {
		return gemurl.URL{}, fmt.Errorf("redirected to mangled URL: %w", err)
	}
	if !ref.IsGemini() {
		return gemurl.URL{}, fmt.Errorf("%w: redirect to %s", protocol.ErrUnsupportedScheme, meta)
	}
	return gemurl.Resolve(u, ref), nil
}
