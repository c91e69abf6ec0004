// Package gateway exposes a navigator.Controller over HTTP: JSON document
// snapshots, navigation commands and a server-sent event stream.
package gateway
