package protocol

// DefaultPort is used when a URL carries no explicit port.
const DefaultPort uint16 = 1965

// Scheme is the only scheme the transport speaks.
const Scheme = "gemini"

// DefaultHome is the first page a new controller loads.
const DefaultHome = "gemini://gemini.circumlunar.space/"
