package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/danmuck/gemctl/internal/navigator"
	"github.com/danmuck/gemctl/internal/protocol"
	"github.com/danmuck/gemctl/internal/protocol/gemurl"
	"github.com/danmuck/gemctl/internal/protocol/session"
)

// clientConfig is everything a gemctl process needs to browse.
type clientConfig struct {
	Navigator navigator.Config
	Session   session.Config
}

func defaultClientConfig() clientConfig {
	return clientConfig{
		Navigator: navigator.DefaultConfig(),
		Session:   session.DefaultConfig(),
	}
}

type fileConfig struct {
	Home               string `toml:"home"`
	MaxRedirects       int    `toml:"max_redirects"`
	ConnectTimeout     string `toml:"connect_timeout"`
	HandshakeTimeout   string `toml:"handshake_timeout"`
	WriteTimeout       string `toml:"write_timeout"`
	ReadTimeout        string `toml:"read_timeout"`
	MaxResponseBytes   int64  `toml:"max_response_bytes"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
	CAFile             string `toml:"ca_file"`
	ServerName         string `toml:"server_name"`
}

// loadClientConfig overlays the keys present in path onto the defaults.
// An empty path yields the defaults.
func loadClientConfig(path string) (clientConfig, error) {
	cfg := defaultClientConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return clientConfig{}, fmt.Errorf("load client config: %w", err)
	}

	if meta.IsDefined("home") {
		home, err := gemurl.Parse(raw.Home)
		if err != nil {
			return clientConfig{}, fmt.Errorf("parse home: %w", err)
		}
		if home.Scheme != protocol.Scheme {
			return clientConfig{}, fmt.Errorf("parse home: %w: %s", protocol.ErrUnsupportedScheme, home.Scheme)
		}
		cfg.Navigator.Home = home
	}

	if meta.IsDefined("max_redirects") {
		cfg.Navigator.MaxRedirects = raw.MaxRedirects
	}

	durations := []struct {
		key  string
		raw  string
		dest *time.Duration
	}{
		{"connect_timeout", raw.ConnectTimeout, &cfg.Session.ConnectTimeout},
		{"handshake_timeout", raw.HandshakeTimeout, &cfg.Session.HandshakeTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.Session.WriteTimeout},
		{"read_timeout", raw.ReadTimeout, &cfg.Session.ReadTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return clientConfig{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dest = parsed
	}

	if meta.IsDefined("max_response_bytes") {
		cfg.Session.Limits.MaxResponseBytes = raw.MaxResponseBytes
	}

	if meta.IsDefined("ca_file") {
		cfg.Session.TLS.CAFile = strings.TrimSpace(raw.CAFile)
		if cfg.Session.TLS.CAFile != "" {
			cfg.Session.TLS.InsecureSkipVerify = false
		}
	}

	if meta.IsDefined("insecure_skip_verify") {
		cfg.Session.TLS.InsecureSkipVerify = raw.InsecureSkipVerify
	}

	if meta.IsDefined("server_name") {
		cfg.Session.TLS.ServerName = strings.TrimSpace(raw.ServerName)
	}

	if err := cfg.validate(); err != nil {
		return clientConfig{}, err
	}
	return cfg, nil
}

func (c clientConfig) validate() error {
	err := validation.Errors{
		"max_redirects":      validation.Validate(c.Navigator.MaxRedirects, validation.Required, validation.Min(1), validation.Max(20)),
		"max_response_bytes": validation.Validate(c.Session.Limits.MaxResponseBytes, validation.Required, validation.Min(int64(1024))),
	}.Filter()
	if err != nil {
		return fmt.Errorf("client config: %w", err)
	}
	if err := c.Session.ValidateClientTransport(); err != nil {
		return fmt.Errorf("client config: %w", err)
	}
	return nil
}
