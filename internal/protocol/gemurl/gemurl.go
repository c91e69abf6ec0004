// Package gemurl models absolute Gemini URLs and the references (links,
// redirect targets, address-bar text) that resolve against them.
package gemurl

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/danmuck/gemctl/internal/protocol"
)

// URL is an absolute, immutable Gemini URL. Path always starts with "/".
type URL struct {
	Scheme   string
	Host     string
	Port     uint16
	Path     string
	Query    string
	HasQuery bool
}

// Parse splits absolute URL text. Scheme defaults to gemini, port to 1965
// and an empty path to "/". Text without a host is rejected.
func Parse(text string) (URL, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return URL{}, fmt.Errorf("%w: empty", protocol.ErrInvalidURL)
	}
	if !strings.Contains(raw, "://") && !strings.HasPrefix(raw, "//") {
		raw = protocol.Scheme + "://" + raw
	}
	ref, err := ParseReference(raw)
	if err != nil {
		return URL{}, err
	}
	if !ref.IsAbsolute() {
		return URL{}, fmt.Errorf("%w: no host in %q", protocol.ErrInvalidURL, text)
	}
	return ref.URL(), nil
}

// MustParse is Parse for static text; it panics on error.
func MustParse(text string) URL {
	u, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return u
}

// WithQuery returns a copy whose query is replaced by q. Escaping q is the
// caller's job.
func (u URL) WithQuery(q string) URL {
	u.Query = q
	u.HasQuery = true
	return u
}

// String renders scheme://host[:port]path[?query]; the default port is omitted.
// A URL without a host renders as scheme:path[?query].
func (u URL) String() string {
	var b strings.Builder
	b.WriteString(u.Scheme)
	if u.Host == "" {
		b.WriteByte(':')
		b.WriteString(u.Path)
		if u.HasQuery {
			b.WriteByte('?')
			b.WriteString(u.Query)
		}
		return b.String()
	}
	b.WriteString("://")
	host := u.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	b.WriteString(host)
	if u.Port != protocol.DefaultPort {
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(uint64(u.Port), 10))
	}
	b.WriteString(u.Path)
	if u.HasQuery {
		b.WriteByte('?')
		b.WriteString(u.Query)
	}
	return b.String()
}

// Reference converts u back to a fully populated reference.
func (u URL) Reference() Reference {
	return Reference(u)
}

// Address is the host:port pair to dial.
func (u URL) Address() string {
	return net.JoinHostPort(u.Host, strconv.FormatUint(uint64(u.Port), 10))
}

// Reference is URL text that may lack a scheme, host or path. Port is zero
// when no port was written.
type Reference struct {
	Scheme   string
	Host     string
	Port     uint16
	Path     string
	Query    string
	HasQuery bool
}

// ParseReference accepts any syntactically valid URL reference.
func ParseReference(text string) (Reference, error) {
	u, err := url.Parse(strings.TrimSpace(text))
	if err != nil {
		return Reference{}, fmt.Errorf("%w: %v", protocol.ErrInvalidURL, err)
	}
	ref := Reference{
		Scheme:   strings.ToLower(u.Scheme),
		Host:     u.Hostname(),
		Path:     u.EscapedPath(),
		Query:    u.RawQuery,
		HasQuery: u.ForceQuery || u.RawQuery != "",
	}
	if u.Opaque != "" {
		ref.Path = u.Opaque
	}
	if p := u.Port(); p != "" {
		port, err := strconv.ParseUint(p, 10, 16)
		if err != nil || port == 0 {
			return Reference{}, fmt.Errorf("%w: bad port %q", protocol.ErrInvalidURL, p)
		}
		ref.Port = uint16(port)
	}
	return ref, nil
}

// IsAbsolute reports whether the reference names a host.
func (r Reference) IsAbsolute() bool {
	return r.Host != ""
}

// IsGemini reports whether following the reference stays on the gemini scheme.
func (r Reference) IsGemini() bool {
	return r.Scheme == "" || r.Scheme == protocol.Scheme
}

// URL fills protocol defaults into an absolute reference.
func (r Reference) URL() URL {
	u := URL{
		Scheme:   r.Scheme,
		Host:     r.Host,
		Port:     r.Port,
		Path:     r.Path,
		Query:    r.Query,
		HasQuery: r.HasQuery,
	}
	if u.Scheme == "" {
		u.Scheme = protocol.Scheme
	}
	if u.Port == 0 {
		u.Port = protocol.DefaultPort
	}
	if u.Path == "" {
		u.Path = "/"
	} else if !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
	}
	return u
}

func (r Reference) String() string {
	var b strings.Builder
	if r.Scheme != "" {
		b.WriteString(r.Scheme)
		b.WriteByte(':')
	}
	if r.Host != "" {
		b.WriteString("//")
		host := r.Host
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		b.WriteString(host)
		if r.Port != 0 {
			b.WriteByte(':')
			b.WriteString(strconv.FormatUint(uint64(r.Port), 10))
		}
	}
	b.WriteString(r.Path)
	if r.HasQuery {
		b.WriteByte('?')
		b.WriteString(r.Query)
	}
	return b.String()
}
