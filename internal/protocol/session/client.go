package session

import (
	"context"
	"time"

	"github.com/danmuck/gemctl/internal/observability"
	"github.com/danmuck/gemctl/internal/protocol/gemurl"
)

// Client opens one Session per Fetch with a shared, validated Config.
type Client struct {
	cfg Config
}

func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.ValidateClientTransport(); err != nil {
		return nil, err
	}
	return &Client{cfg: cfg}, nil
}

func (c *Client) Config() Config {
	return c.cfg
}

// Fetch blocks until the request to u settles.
func (c *Client) Fetch(ctx context.Context, u gemurl.URL) Result {
	start := time.Now()
	s := Open(u, c.cfg)
	result := <-s.Activate(ctx)
	kind, code := Describe(result)
	observability.RecordGeminiRequest(u.Host, kind, code, time.Since(start))
	return result
}

// Describe names the result variant and its status code for logs and
// metrics. Code is 0 when no status line was read.
func Describe(r Result) (string, int) {
	switch v := r.(type) {
	case Success:
		return "success", 20
	case InputRequest:
		return "input", 10
	case Redirect:
		if v.Permanent {
			return "redirect", 31
		}
		return "redirect", 30
	case Failure:
		return "error", v.Code
	default:
		return "unknown", 0
	}
}
