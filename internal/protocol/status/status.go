// Package status holds the two-digit Gemini status code table.
package status

import (
	"fmt"

	"github.com/danmuck/gemctl/internal/protocol"
)

// Class is the first digit of a status code.
type Class int

const (
	ClassInput Class = iota + 1
	ClassSuccess
	ClassRedirect
	ClassTemporaryFailure
	ClassPermanentFailure
)

func (c Class) String() string {
	switch c {
	case ClassInput:
		return "input"
	case ClassSuccess:
		return "success"
	case ClassRedirect:
		return "redirect"
	case ClassTemporaryFailure:
		return "temporary_failure"
	case ClassPermanentFailure:
		return "permanent_failure"
	default:
		return "unknown"
	}
}

// Codes the client dispatches on.
const (
	Input               = 10
	Success             = 20
	RedirectTemporary   = 30
	RedirectPermanent   = 31
	TemporaryFailure    = 40
	ServerUnavailable   = 41
	CGIError            = 42
	ProxyError          = 43
	SlowDown            = 44
	PermanentFailure    = 50
	NotFound            = 51
	Gone                = 52
	ProxyRequestRefused = 53
	BadRequest          = 59
)

// Info describes one accepted status code.
type Info struct {
	Code  int
	Class Class
	Label string
}

// IsFailure reports whether the code is in the 40-59 server error range.
func (i Info) IsFailure() bool {
	return i.Class == ClassTemporaryFailure || i.Class == ClassPermanentFailure
}

var table = map[int]Info{
	Input:               {Input, ClassInput, "INPUT"},
	Success:             {Success, ClassSuccess, "SUCCESS"},
	RedirectTemporary:   {RedirectTemporary, ClassRedirect, "REDIRECT - TEMPORARY"},
	RedirectPermanent:   {RedirectPermanent, ClassRedirect, "REDIRECT - PERMANENT"},
	TemporaryFailure:    {TemporaryFailure, ClassTemporaryFailure, "TEMPORARY FAILURE"},
	ServerUnavailable:   {ServerUnavailable, ClassTemporaryFailure, "SERVER UNAVAILABLE"},
	CGIError:            {CGIError, ClassTemporaryFailure, "CGI ERROR"},
	ProxyError:          {ProxyError, ClassTemporaryFailure, "PROXY ERROR"},
	SlowDown:            {SlowDown, ClassTemporaryFailure, "SLOW DOWN"},
	PermanentFailure:    {PermanentFailure, ClassPermanentFailure, "PERMANENT FAILURE"},
	NotFound:            {NotFound, ClassPermanentFailure, "NOT FOUND"},
	Gone:                {Gone, ClassPermanentFailure, "GONE"},
	ProxyRequestRefused: {ProxyRequestRefused, ClassPermanentFailure, "PROXY REQUEST REFUSED"},
	BadRequest:          {BadRequest, ClassPermanentFailure, "BAD REQUEST"},
}

// Lookup returns the entry for code. Undefined codes inside 40-59 fall back
// to their class label; everything else outside the table is unknown.
func Lookup(code int) (Info, bool) {
	if info, ok := table[code]; ok {
		return info, true
	}
	switch {
	case code >= 40 && code <= 49:
		return Info{Code: code, Class: ClassTemporaryFailure, Label: "TEMPORARY FAILURE"}, true
	case code >= 50 && code <= 59:
		return Info{Code: code, Class: ClassPermanentFailure, Label: "PERMANENT FAILURE"}, true
	}
	return Info{}, false
}

// ParseCode reads the two ASCII digits that open a response header.
func ParseCode(b []byte) (int, error) {
	if len(b) < 2 {
		return 0, fmt.Errorf("%w: couldn't read status code", protocol.ErrProtocol)
	}
	hi, lo := b[0], b[1]
	if hi < '0' || hi > '9' || lo < '0' || lo > '9' {
		return 0, fmt.Errorf("%w: invalid status code %q", protocol.ErrProtocol, string(b[:2]))
	}
	return int(hi-'0')*10 + int(lo-'0'), nil
}
