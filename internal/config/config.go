// Package config loads the gateway TOML file and writes starter templates
// for both gemctl config kinds.
package config

import (
	"fmt"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultGatewayName = "gemctl"
	DefaultGatewayAddr = ":1966"
	DefaultEventBuffer = 32
)

// GatewayConfig is the `gemctl serve` file.
type GatewayConfig struct {
	Name        string   `toml:"name" json:"name"`
	Addr        string   `toml:"addr" json:"addr"`
	CorsOrigins []string `toml:"cors_origins" json:"cors_origins"`
	Metrics     bool     `toml:"metrics" json:"metrics"`
	EventBuffer int      `toml:"event_buffer" json:"event_buffer"`
	Token       string   `toml:"token" json:"token"`
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Name:        DefaultGatewayName,
		Addr:        DefaultGatewayAddr,
		CorsOrigins: []string{"http://localhost:3000"},
		Metrics:     true,
		EventBuffer: DefaultEventBuffer,
	}
}

// LoadGatewayConfig reads path over the defaults. Keys missing from the
// file keep their default value.
func LoadGatewayConfig(path string) (GatewayConfig, error) {
	cfg := DefaultGatewayConfig()
	if err := loadToml(path, &cfg); err != nil {
		return GatewayConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return GatewayConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func (c GatewayConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Addr, validation.Required, validation.By(validateAddr)),
		validation.Field(&c.EventBuffer, validation.Required, validation.Min(1), validation.Max(4096)),
		validation.Field(&c.CorsOrigins, validation.Each(validation.By(validateOrigin))),
	)
}

func validateAddr(value any) error {
	addr, _ := value.(string)
	if !strings.Contains(addr, ":") {
		return fmt.Errorf("must be host:port or :port")
	}
	return nil
}

func validateOrigin(value any) error {
	origin, _ := value.(string)
	if origin == "*" {
		return nil
	}
	if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
		return fmt.Errorf("must be an http(s) origin or *")
	}
	return nil
}
