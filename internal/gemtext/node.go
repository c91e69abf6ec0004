package gemtext

import "github.com/danmuck/gemctl/internal/protocol/gemurl"

// NodeID identifies a node for the lifetime of its document.
type NodeID uint64

// Node wraps one source line. Content is nil only when the line failed to
// parse, in which case Error holds the reason. SubContent and Error may be
// attached after parsing; Content never changes.
type Node struct {
	ID         NodeID
	Content    *Line
	SubContent SubContent
	Error      string
}

// SubContent is an InputPrompt or an InlineImage attached to a node.
type SubContent interface {
	isSubContent()
}

// InputPrompt asks for text; submitting it requests Target with the text
// as query.
type InputPrompt struct {
	Text   string
	Target gemurl.URL
}

// InlineImage is an image fetched from a link and shown under it.
type InlineImage struct {
	Target    gemurl.URL
	MediaType string
	Data      []byte
	Width     int
	Height    int
}

func (InputPrompt) isSubContent() {}
func (InlineImage) isSubContent() {}

// WithSubContent returns a copy of n with sc attached and any error cleared.
func (n Node) WithSubContent(sc SubContent) Node {
	n.SubContent = sc
	n.Error = ""
	return n
}

// WithError returns a copy of n carrying msg.
func (n Node) WithError(msg string) Node {
	n.Error = msg
	return n
}

// IDSequence hands out increasing node ids. It is not safe for concurrent
// use; one goroutine owns each sequence.
type IDSequence struct {
	next NodeID
}

func NewIDSequence() *IDSequence {
	return &IDSequence{next: 1}
}

func (s *IDSequence) Next() NodeID {
	id := s.next
	s.next++
	return id
}

// NewNode wraps line with the next id.
func (s *IDSequence) NewNode(line Line) Node {
	return Node{ID: s.Next(), Content: &line}
}

// NewErrorNode is a node for a line that could not be parsed.
func (s *IDSequence) NewErrorNode(msg string) Node {
	return Node{ID: s.Next(), Error: msg}
}
