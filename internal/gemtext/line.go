package gemtext

import (
	"strings"
	"unicode"

	"github.com/danmuck/gemctl/internal/protocol"
	"github.com/danmuck/gemctl/internal/protocol/gemurl"
)

// LineType is the markup kind of one parsed line.
type LineType int

const (
	PlainText LineType = iota
	Heading
	Quote
	ListItem
	Link
	Preformatted
)

func (t LineType) String() string {
	switch t {
	case PlainText:
		return "text"
	case Heading:
		return "heading"
	case Quote:
		return "quote"
	case ListItem:
		return "list_item"
	case Link:
		return "link"
	case Preformatted:
		return "preformatted"
	default:
		return "unknown"
	}
}

// Line is an immutable parsed record. Level is 1..3 for headings and zero
// otherwise; Target is set only for links and may be relative.
type Line struct {
	Text   string
	Type   LineType
	Level  int
	Target gemurl.Reference
}

// ParseError is a malformed gemtext construct. It matches protocol.ErrParse.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return e.Reason }
func (e *ParseError) Unwrap() error { return protocol.ErrParse }

var (
	ErrNoLinkURL      = &ParseError{Reason: "No URL given for link."}
	ErrInvalidLinkURL = &ParseError{Reason: "Link has invalid URL."}
)

const (
	linkPrefix  = "=>"
	fencePrefix = "```"
)

// ParseLine classifies one line outside a preformatted block. Prefixes are
// tested in order: link, heading 3, heading 2, heading 1, list item, quote.
func ParseLine(text string) (Line, error) {
	switch {
	case strings.HasPrefix(text, linkPrefix):
		return parseLink(text[len(linkPrefix):])
	case strings.HasPrefix(text, "###"):
		return Line{Text: stripPrefix(text, '#'), Type: Heading, Level: 3}, nil
	case strings.HasPrefix(text, "##"):
		return Line{Text: stripPrefix(text, '#'), Type: Heading, Level: 2}, nil
	case strings.HasPrefix(text, "#"):
		return Line{Text: stripPrefix(text, '#'), Type: Heading, Level: 1}, nil
	case strings.HasPrefix(text, "*"):
		return Line{Text: stripPrefix(text, '*'), Type: ListItem}, nil
	case strings.HasPrefix(text, ">"):
		return Line{Text: stripPrefix(text, '>'), Type: Quote}, nil
	}
	return Line{Text: text, Type: PlainText}, nil
}

func stripPrefix(text string, marker byte) string {
	i := 0
	for i < len(text) && text[i] == marker {
		i++
	}
	return strings.TrimSpace(text[i:])
}

type linkState int

const (
	linkStatePrefix linkState = iota
	linkStateURL
	linkStateText
)

// parseLink scans the remainder after "=>": skip whitespace, take the URL
// run, skip one whitespace run, keep the rest as display text. Without
// display text the URL text is shown.
func parseLink(rest string) (Line, error) {
	var (
		state   = linkStatePrefix
		urlText strings.Builder
		display strings.Builder
	)
	for _, r := range rest {
		switch state {
		case linkStatePrefix:
			if unicode.IsSpace(r) {
				continue
			}
			urlText.WriteRune(r)
			state = linkStateURL
		case linkStateURL:
			if unicode.IsSpace(r) {
				state = linkStateText
				continue
			}
			urlText.WriteRune(r)
		case linkStateText:
			if display.Len() == 0 && unicode.IsSpace(r) {
				continue
			}
			display.WriteRune(r)
		}
	}
	if state == linkStatePrefix {
		return Line{}, ErrNoLinkURL
	}
	target, err := gemurl.ParseReference(urlText.String())
	if err != nil {
		return Line{}, ErrInvalidLinkURL
	}
	text := display.String()
	if text == "" {
		text = urlText.String()
	}
	return Line{Text: text, Type: Link, Target: target}, nil
}

// IsFence reports whether text toggles preformatted mode.
func IsFence(text string) bool {
	return strings.HasPrefix(text, fencePrefix)
}
