// Package protocol owns the Gemini wire contract and its error taxonomy.
//
// Ownership boundary:
// - gemurl: absolute URLs, references and relative resolution
// - status: two-digit status code table
// - response: header/MIME codec and body decoding
// - session: one TLS connection per request
package protocol
