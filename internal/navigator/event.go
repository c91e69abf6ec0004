package navigator

import (
	"github.com/danmuck/gemctl/internal/gemtext"
	"github.com/danmuck/gemctl/internal/protocol/gemurl"
)

type EventKind string

const (
	// EventLoading: a new request chain started.
	EventLoading EventKind = "loading"
	// EventCleared: the document is about to be replaced; Ready is false.
	EventCleared EventKind = "cleared"
	// EventReady: the new document is in place.
	EventReady EventKind = "ready"
	// EventNodeUpdated: subcontent or an error was attached to NodeID.
	EventNodeUpdated EventKind = "node_updated"
	// EventNotice: a top-level message with no node to attach to.
	EventNotice EventKind = "notice"
)

type Event struct {
	Kind    EventKind      `json:"kind"`
	Epoch   uint64         `json:"epoch"`
	Address string         `json:"address,omitempty"`
	NodeID  gemtext.NodeID `json:"node_id,omitempty"`
	Message string         `json:"message,omitempty"`
}

// Snapshot is an immutable copy of the controller state.
type Snapshot struct {
	Epoch   uint64
	Ready   bool
	Loading bool
	Address string
	Nodes   []gemtext.Node
	Source  []string
	History []gemurl.URL
	Cursor  int
	Notice  string
}

// Node returns the node with id, if present.
func (s Snapshot) Node(id gemtext.NodeID) (gemtext.Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return gemtext.Node{}, false
}
