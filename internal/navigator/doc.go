// Package navigator drives one Gemini document: history, the current node
// sequence, and the requests that change them.
//
// All state is owned by a single goroutine. Public methods send commands to
// it and return a channel that closes once the resulting request chain
// settles. Results from a superseded request are dropped.
package navigator
