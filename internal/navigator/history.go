package navigator

import (
	"slices"

	"github.com/danmuck/gemctl/internal/protocol/gemurl"
)

// History is the back/forward stack. Cursor is -1 only while empty.
type History struct {
	entries []gemurl.URL
	cursor  int
}

func NewHistory() *History {
	return &History{cursor: -1}
}

// Push drops everything after the cursor, appends u and moves onto it.
func (h *History) Push(u gemurl.URL) {
	h.entries = append(h.entries[:h.cursor+1], u)
	h.cursor = len(h.entries) - 1
}

func (h *History) Current() (gemurl.URL, bool) {
	if h.cursor < 0 {
		return gemurl.URL{}, false
	}
	return h.entries[h.cursor], true
}

// Back moves the cursor one step; false at the first entry.
func (h *History) Back() bool {
	if h.cursor <= 0 {
		return false
	}
	h.cursor--
	return true
}

// Forward moves the cursor one step; false at the last entry.
func (h *History) Forward() bool {
	if h.cursor >= len(h.entries)-1 {
		return false
	}
	h.cursor++
	return true
}

func (h *History) Len() int    { return len(h.entries) }
func (h *History) Cursor() int { return h.cursor }

func (h *History) Entries() []gemurl.URL {
	return slices.Clone(h.entries)
}
