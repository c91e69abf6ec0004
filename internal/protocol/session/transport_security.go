package session

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrInvalidTimeout      = errors.New("session: negative timeout")
	ErrTLSCAFileConflict   = errors.New("session: ca file set with insecure skip verify")
	ErrTLSVersionTooOld    = errors.New("session: tls version below 1.2")
	ErrTLSCABundleUnparsed = errors.New("session: parse tls ca bundle")
)

// ValidateClientTransport checks the config before any dial.
func (c Config) ValidateClientTransport() error {
	for name, d := range map[string]int64{
		"connect":   int64(c.ConnectTimeout),
		"handshake": int64(c.HandshakeTimeout),
		"write":     int64(c.WriteTimeout),
		"read":      int64(c.ReadTimeout),
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s", ErrInvalidTimeout, name)
		}
	}
	if c.TLS.InsecureSkipVerify && strings.TrimSpace(c.TLS.CAFile) != "" {
		return ErrTLSCAFileConflict
	}
	if c.TLS.MinVersion != 0 && c.TLS.MinVersion < tls.VersionTLS12 {
		return ErrTLSVersionTooOld
	}
	return nil
}

// clientTLSConfig builds the TLS config for one host. Without a CA file and
// with verification on, the system roots apply.
func (c Config) clientTLSConfig(host string) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         c.TLS.MinVersion,
		InsecureSkipVerify: c.TLS.InsecureSkipVerify,
	}
	serverName := strings.TrimSpace(c.TLS.ServerName)
	if serverName == "" {
		serverName = host
	}
	cfg.ServerName = serverName

	if caPath := strings.TrimSpace(c.TLS.CAFile); caPath != "" {
		caPEM, err := os.ReadFile(caPath)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPEM); !ok {
			return nil, fmt.Errorf("%w: %s", ErrTLSCABundleUnparsed, caPath)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}
