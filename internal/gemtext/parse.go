package gemtext

import "strings"

// ParseGemini builds one node per source line. Fence lines toggle
// preformatted mode and produce no node; a line that fails ParseLine still
// yields a node carrying the error.
func ParseGemini(lines []string, seq *IDSequence) []Node {
	nodes := make([]Node, 0, len(lines))
	preformatted := false
	for _, text := range lines {
		if IsFence(text) {
			preformatted = !preformatted
			continue
		}
		if preformatted {
			nodes = append(nodes, seq.NewNode(Line{Text: text, Type: Preformatted}))
			continue
		}
		line, err := ParseLine(text)
		if err != nil {
			nodes = append(nodes, seq.NewErrorNode(err.Error()))
			continue
		}
		nodes = append(nodes, seq.NewNode(line))
	}
	return nodes
}

// ParsePlain keeps every line verbatim as preformatted text.
func ParsePlain(lines []string, seq *IDSequence) []Node {
	nodes := make([]Node, 0, len(lines))
	for _, text := range lines {
		nodes = append(nodes, seq.NewNode(Line{Text: text, Type: Preformatted}))
	}
	return nodes
}

// SplitLines breaks decoded text on line feeds and drops carriage returns.
// A trailing line feed does not produce an empty final line.
func SplitLines(text string) []string {
	var (
		lines []string
		line  strings.Builder
	)
	for _, r := range text {
		switch r {
		case '\r':
		case '\n':
			lines = append(lines, line.String())
			line.Reset()
		default:
			line.WriteRune(r)
		}
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return lines
}
