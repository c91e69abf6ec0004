package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/gemctl/internal/gemtext"
	"github.com/danmuck/gemctl/internal/navigator"
)

// render writes the document as gemtext-like text. With source set the raw
// decoded lines are written instead.
func render(w io.Writer, snap navigator.Snapshot, source bool) error {
	if source {
		for _, line := range snap.Source {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		return nil
	}
	for _, n := range snap.Nodes {
		if _, err := fmt.Fprintln(w, renderNode(n)); err != nil {
			return err
		}
	}
	return nil
}

func renderNode(n gemtext.Node) string {
	var b strings.Builder
	if line := n.Content; line != nil {
		switch line.Type {
		case gemtext.Heading:
			b.WriteString(strings.Repeat("#", line.Level) + " " + line.Text)
		case gemtext.Link:
			b.WriteString("=> " + line.Target.String())
			if line.Text != line.Target.String() {
				b.WriteString(" " + line.Text)
			}
		case gemtext.ListItem:
			b.WriteString("* " + line.Text)
		case gemtext.Quote:
			b.WriteString("> " + line.Text)
		default:
			b.WriteString(line.Text)
		}
	}
	if n.Error != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("  ! " + n.Error)
	}
	switch sc := n.SubContent.(type) {
	case gemtext.InputPrompt:
		b.WriteString("\n  ? " + sc.Text)
	case gemtext.InlineImage:
		fmt.Fprintf(&b, "\n  [%s %dx%d]", sc.MediaType, sc.Width, sc.Height)
	}
	return b.String()
}
