// Package session owns one Gemini request: a TLS connection, the request
// line, the receive loop and classification of the response.
//
// Ownership boundary:
// - transport config and TLS validation
// - the per-request phase machine
// - ConnectionResult variants (Success, InputRequest, Redirect, Failure)
//
// Nothing here retries or reconnects; each Session delivers exactly one
// Result and holds no state afterwards.
package session
