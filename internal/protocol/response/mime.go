package response

import (
	"fmt"
	"strings"

	"github.com/danmuck/gemctl/internal/protocol"
)

// DefaultMIME applies when a success header carries no meta.
const DefaultMIME = "text/gemini; charset=utf-8"

type Kind int

const (
	KindText Kind = iota
	KindImage
)

type Format int

const (
	FormatPlain Format = iota
	FormatGemini
)

func (f Format) String() string {
	if f == FormatGemini {
		return "gemini"
	}
	return "plain"
}

type Charset string

const (
	CharsetUTF8   Charset = "utf-8"
	CharsetLatin1 Charset = "iso-8859-1"
	CharsetASCII  Charset = "us-ascii"
)

// MimeType is either Text{Charset, Format} or Image. MediaType keeps the
// lowercased media type as sent.
type MimeType struct {
	Kind      Kind
	Charset   Charset
	Format    Format
	MediaType string
}

func (m MimeType) IsImage() bool {
	return m.Kind == KindImage
}

func (m MimeType) String() string {
	if m.Kind == KindImage {
		return m.MediaType
	}
	return fmt.Sprintf("%s; charset=%s", m.MediaType, m.Charset)
}

// ParseMIME reads a ';'-delimited media type. Segments are trimmed and
// lowercased, unknown key=value parameters are ignored.
func ParseMIME(meta string) (MimeType, error) {
	if strings.TrimSpace(meta) == "" {
		meta = DefaultMIME
	}
	charset := CharsetUTF8
	mediaType := "text/gemini"

	for _, segment := range strings.Split(meta, ";") {
		segment = strings.ToLower(strings.TrimSpace(segment))
		if segment == "" {
			continue
		}
		if value, ok := strings.CutPrefix(segment, "charset="); ok {
			switch Charset(value) {
			case CharsetUTF8, CharsetLatin1, CharsetASCII:
				charset = Charset(value)
			default:
				return MimeType{}, fmt.Errorf("%w: unknown charset %s", protocol.ErrProtocol, value)
			}
			continue
		}
		if strings.Contains(segment, "=") {
			continue
		}
		mediaType = segment
	}

	switch mediaType {
	case "text/plain":
		return MimeType{Kind: KindText, Charset: charset, Format: FormatPlain, MediaType: mediaType}, nil
	case "text/gemini":
		return MimeType{Kind: KindText, Charset: charset, Format: FormatGemini, MediaType: mediaType}, nil
	case "image/png", "image/jpeg":
		return MimeType{Kind: KindImage, MediaType: mediaType}, nil
	default:
		return MimeType{}, fmt.Errorf("%w: Unknown MIME type %s", protocol.ErrProtocol, mediaType)
	}
}
