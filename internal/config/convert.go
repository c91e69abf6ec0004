package config

import "github.com/danmuck/gemctl/internal/gateway"

// GatewayOptions maps the file onto the HTTP gateway.
func GatewayOptions(cfg GatewayConfig) gateway.Options {
	return gateway.Options{
		Name:        cfg.Name,
		Addr:        cfg.Addr,
		CorsOrigins: cfg.CorsOrigins,
		Metrics:     cfg.Metrics,
		Token:       cfg.Token,
	}
}
