package gateway

import (
	"github.com/danmuck/gemctl/internal/gemtext"
	"github.com/danmuck/gemctl/internal/navigator"
)

type inputView struct {
	Prompt string `json:"prompt"`
	Target string `json:"target"`
}

type imageView struct {
	Target    string `json:"target"`
	MediaType string `json:"media_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Data      []byte `json:"data"`
}

type nodeView struct {
	ID     gemtext.NodeID `json:"id"`
	Type   string         `json:"type,omitempty"`
	Text   string         `json:"text,omitempty"`
	Level  int            `json:"level,omitempty"`
	Target string         `json:"target,omitempty"`
	Error  string         `json:"error,omitempty"`
	Input  *inputView     `json:"input,omitempty"`
	Image  *imageView     `json:"image,omitempty"`
}

type documentView struct {
	Epoch   uint64     `json:"epoch"`
	Ready   bool       `json:"ready"`
	Loading bool       `json:"loading"`
	Address string     `json:"address"`
	Notice  string     `json:"notice,omitempty"`
	History []string   `json:"history"`
	Cursor  int        `json:"cursor"`
	Nodes   []nodeView `json:"nodes"`
}

func newDocumentView(snap navigator.Snapshot) documentView {
	view := documentView{
		Epoch:   snap.Epoch,
		Ready:   snap.Ready,
		Loading: snap.Loading,
		Address: snap.Address,
		Notice:  snap.Notice,
		History: make([]string, 0, len(snap.History)),
		Cursor:  snap.Cursor,
		Nodes:   make([]nodeView, 0, len(snap.Nodes)),
	}
	for _, u := range snap.History {
		view.History = append(view.History, u.String())
	}
	for _, n := range snap.Nodes {
		view.Nodes = append(view.Nodes, newNodeView(n))
	}
	return view
}

func newNodeView(n gemtext.Node) nodeView {
	view := nodeView{ID: n.ID, Error: n.Error}
	if line := n.Content; line != nil {
		view.Type = line.Type.String()
		view.Text = line.Text
		view.Level = line.Level
		if line.Type == gemtext.Link {
			view.Target = line.Target.String()
		}
	}
	switch sc := n.SubContent.(type) {
	case gemtext.InputPrompt:
		view.Input = &inputView{Prompt: sc.Text, Target: sc.Target.String()}
	case gemtext.InlineImage:
		view.Image = &imageView{
			Target:    sc.Target.String(),
			MediaType: sc.MediaType,
			Width:     sc.Width,
			Height:    sc.Height,
			Data:      sc.Data,
		}
	}
	return view
}
