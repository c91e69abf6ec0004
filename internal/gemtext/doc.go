// Package gemtext turns decoded response lines into an ordered sequence of
// addressable nodes. Parsing is pure: ids come from an IDSequence owned by
// the caller, so two documents never share a counter.
package gemtext
