package response

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/danmuck/gemctl/internal/protocol"
)

// Decode converts a text body to a string under the declared charset.
func Decode(body []byte, charset Charset) (string, error) {
	switch charset {
	case CharsetUTF8, "":
		if !utf8.Valid(body) {
			return "", fmt.Errorf("%w: body is not valid utf-8", protocol.ErrDecode)
		}
		return string(body), nil
	case CharsetASCII:
		for i, b := range body {
			if b >= 0x80 {
				return "", fmt.Errorf("%w: non-ascii byte 0x%02x at offset %d", protocol.ErrDecode, b, i)
			}
		}
		return string(body), nil
	case CharsetLatin1:
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(body)
		if err != nil {
			return "", fmt.Errorf("%w: %v", protocol.ErrDecode, err)
		}
		return string(out), nil
	default:
		return "", fmt.Errorf("%w: unsupported charset %s", protocol.ErrDecode, charset)
	}
}
