// Package response parses the Gemini status line, the MIME meta that
// follows a success code, and decodes text bodies.
package response

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/danmuck/gemctl/internal/protocol"
	"github.com/danmuck/gemctl/internal/protocol/status"
)

var (
	ErrUnterminatedHeader = fmt.Errorf("%w: header not concluded with line feed", protocol.ErrProtocol)
	ErrMissingSeparator   = fmt.Errorf("%w: no separator after status code", protocol.ErrProtocol)
	ErrMetaTooLong        = fmt.Errorf("%w: meta too long", protocol.ErrProtocol)
	ErrMetaEncoding       = fmt.Errorf("%w: couldn't read meta text", protocol.ErrProtocol)
)

// Limits constrains response memory use.
type Limits struct {
	MaxMetaBytes     int
	MaxResponseBytes int64
}

func DefaultLimits() Limits {
	return Limits{
		MaxMetaBytes:     1024,
		MaxResponseBytes: 32 * 1024 * 1024,
	}
}

// Header is the parsed status line.
type Header struct {
	Code int
	Meta string
}

// ParseHeader splits a complete response buffer into its header and body.
// The header ends at the first line feed; meta stops at the first carriage
// return.
func ParseHeader(buf []byte, limits Limits) (Header, []byte, error) {
	code, err := status.ParseCode(buf)
	if err != nil {
		return Header{}, nil, err
	}
	lf := bytes.IndexByte(buf, '\n')
	if lf < 0 {
		return Header{}, nil, ErrUnterminatedHeader
	}
	line := buf[:lf]

	var meta []byte
	if len(line) > 2 {
		switch line[2] {
		case ' ', '\t':
			meta = line[3:]
		case '\r':
		default:
			return Header{}, nil, ErrMissingSeparator
		}
	}
	if cr := bytes.IndexByte(meta, '\r'); cr >= 0 {
		meta = meta[:cr]
	}
	if limits.MaxMetaBytes > 0 && len(meta) > limits.MaxMetaBytes {
		return Header{}, nil, ErrMetaTooLong
	}
	if !utf8.Valid(meta) {
		return Header{}, nil, ErrMetaEncoding
	}
	return Header{Code: code, Meta: string(meta)}, buf[lf+1:], nil
}
