package session

import (
	"crypto/tls"
	"time"

	"github.com/danmuck/gemctl/internal/protocol/response"
)

// TLSConfig controls certificate handling. InsecureSkipVerify accepts any
// server certificate, which is the default because trust-on-first-use is
// not implemented.
type TLSConfig struct {
	InsecureSkipVerify bool
	CAFile             string
	ServerName         string
	MinVersion         uint16
}

// Config defines per-request transport limits. A zero timeout disables it.
type Config struct {
	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	TLS              TLSConfig
	Limits           response.Limits
}

// DefaultConfig returns the client transport defaults.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:   15 * time.Second,
		HandshakeTimeout: 15 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      30 * time.Second,
		TLS: TLSConfig{
			InsecureSkipVerify: true,
			MinVersion:         tls.VersionTLS12,
		},
		Limits: response.DefaultLimits(),
	}
}

// WithDefaults fills zero limits and TLS version; timeouts are left alone.
func (c Config) WithDefaults() Config {
	def := response.DefaultLimits()
	if c.Limits.MaxMetaBytes <= 0 {
		c.Limits.MaxMetaBytes = def.MaxMetaBytes
	}
	if c.Limits.MaxResponseBytes <= 0 {
		c.Limits.MaxResponseBytes = def.MaxResponseBytes
	}
	if c.TLS.MinVersion == 0 {
		c.TLS.MinVersion = tls.VersionTLS12
	}
	return c
}
