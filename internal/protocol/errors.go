package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidURL        = errors.New("protocol: invalid url")
	ErrConnectionFailure = errors.New("protocol: connection failure")
	ErrProtocol          = errors.New("protocol: malformed response")
	ErrServer            = errors.New("protocol: server error")
	ErrDecode            = errors.New("protocol: decode failure")
	ErrParse             = errors.New("protocol: parse failure")
	ErrTooManyRedirects  = errors.New("protocol: too many redirects")
	ErrUnsupportedScheme = errors.New("protocol: unsupported scheme")
	ErrResponseTooLarge  = errors.New("protocol: response too large")
)

// ServerError is a 4x/5x response. Meta is the server text, verbatim.
type ServerError struct {
	Code  int
	Label string
	Meta  string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s (%d %s)", e.Meta, e.Code, e.Label)
}

func (e *ServerError) Unwrap() error {
	return ErrServer
}
