package navigator

import (
	"github.com/danmuck/gemctl/internal/protocol"
	"github.com/danmuck/gemctl/internal/protocol/gemurl"
)

const (
	DefaultMaxRedirects = 5
	DefaultEventBuffer  = 32
)

// Config controls one Controller. Zero fields take the defaults.
type Config struct {
	Home         gemurl.URL
	MaxRedirects int
	EventBuffer  int
}

func DefaultConfig() Config {
	return Config{
		Home:         gemurl.MustParse(protocol.DefaultHome),
		MaxRedirects: DefaultMaxRedirects,
		EventBuffer:  DefaultEventBuffer,
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Home.Host == "" {
		c.Home = def.Home
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = def.MaxRedirects
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = def.EventBuffer
	}
	return c
}
