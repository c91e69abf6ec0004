package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	KindClient  = "client"
	KindGateway = "gateway"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindClient:
		return clientTemplate, nil
	case KindGateway:
		return gatewayTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const clientTemplate = `home = "gemini://gemini.circumlunar.space/"
max_redirects = 5

connect_timeout = "15s"
handshake_timeout = "15s"
write_timeout = "10s"
read_timeout = "30s"
max_response_bytes = 33554432

# Certificates are accepted without verification unless a CA bundle is pinned.
insecure_skip_verify = true
ca_file = ""
server_name = ""
`

const gatewayTemplate = `name = "gemctl"
addr = ":1966"
cors_origins = ["http://localhost:3000"]
metrics = true
event_buffer = 32

# Bearer token required on POST routes. Empty leaves them open.
token = ""
`
