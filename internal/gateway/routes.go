package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danmuck/gemctl/internal/gemtext"
	"github.com/danmuck/gemctl/internal/protocol/gemurl"
)

type navigateRequest struct {
	URL    string         `json:"url"`
	Origin gemtext.NodeID `json:"origin"`
}

type inputRequest struct {
	Text string `json:"text"`
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.appeared).String(),
			"component": s.opts.Name,
			"version":   version,
		})
	})

	if s.opts.Metrics {
		s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	s.router.GET("/document", func(c *gin.Context) {
		c.JSON(http.StatusOK, newDocumentView(s.nav.Snapshot()))
	})

	s.router.GET("/source", func(c *gin.Context) {
		snap := s.nav.Snapshot()
		lines := snap.Source
		if lines == nil {
			lines = []string{}
		}
		c.JSON(http.StatusOK, gin.H{
			"address": snap.Address,
			"lines":   lines,
		})
	})

	s.router.GET("/events", s.streamEvents)

	cmds := s.router.Group("", s.requireToken())

	cmds.POST("/navigate", func(c *gin.Context) {
		var req navigateRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
			return
		}
		ref, err := gemurl.ParseReference(req.URL)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.await(c, s.nav.Navigate(ref, req.Origin))
	})

	cmds.POST("/back", func(c *gin.Context) {
		s.await(c, s.nav.Back())
	})

	cmds.POST("/forward", func(c *gin.Context) {
		s.await(c, s.nav.Forward())
	})

	cmds.POST("/reload", func(c *gin.Context) {
		s.await(c, s.nav.Reload())
	})

	cmds.POST("/nodes/:id/input", func(c *gin.Context) {
		raw, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid node id"})
			return
		}
		id := gemtext.NodeID(raw)
		node, ok := s.nav.Snapshot().Node(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "node not found"})
			return
		}
		if _, ok := node.SubContent.(gemtext.InputPrompt); !ok {
			c.JSON(http.StatusConflict, gin.H{"error": "node has no input prompt"})
			return
		}
		var req inputRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
			return
		}
		s.await(c, s.nav.SubmitInput(id, req.Text))
	})
}

// await blocks until the command settles or the client goes away, then
// responds with the current document.
func (s *Server) await(c *gin.Context, done <-chan struct{}) {
	select {
	case <-done:
		c.JSON(http.StatusOK, newDocumentView(s.nav.Snapshot()))
	case <-c.Request.Context().Done():
		c.Status(http.StatusRequestTimeout)
	}
}

// streamEvents relays controller events as server-sent events until the
// client disconnects.
func (s *Server) streamEvents(c *gin.Context) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}
	events := s.nav.Subscribe()
	defer s.nav.Unsubscribe(events)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	flusher.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			_, _ = fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Kind, payload)
			flusher.Flush()
		}
	}
}
