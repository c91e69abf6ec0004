package navigator

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/gemctl/internal/gemtext"
	"github.com/danmuck/gemctl/internal/observability"
	"github.com/danmuck/gemctl/internal/protocol"
	"github.com/danmuck/gemctl/internal/protocol/gemurl"
	"github.com/danmuck/gemctl/internal/protocol/response"
	"github.com/danmuck/gemctl/internal/protocol/session"
)

const (
	outcomeLoaded   = "loaded"
	outcomeInline   = "inline"
	outcomeInput    = "input"
	outcomeError    = "error"
	outcomeStale    = "stale"
	outcomeRedirect = "redirect"
)

func recordOutcome(outcome string) {
	observability.RecordNavigation(outcome)
}

// settle routes one result from the active chain.
func (c *Controller) settle(res fetched) {
	req := res.req
	if req.epoch != c.epoch {
		log.Debug().Msgf("navigator.Drop stale url=%q epoch=%d current=%d", req.url.String(), req.epoch, c.epoch)
		recordOutcome(outcomeStale)
		return
	}

	switch r := res.result.(type) {
	case session.Redirect:
		c.redirect(req, r)

	case session.InputRequest:
		c.promptInput(req, r)

	case session.Failure:
		c.attachError(req.origin, r.Message)
		c.finish(outcomeError)

	case session.Success:
		if r.MIME.IsImage() {
			c.loadImage(req, r)
			return
		}
		c.loadText(req, r)

	default:
		c.attachError(req.origin, fmt.Sprintf("couldn't retrieve %s: unexpected result %T", req.url.String(), r))
		c.finish(outcomeError)
	}
}

// redirect re-issues the request inside the same chain. History is left
// alone until the chain succeeds.
func (c *Controller) redirect(req request, r session.Redirect) {
	if req.hops >= c.cfg.MaxRedirects {
		err := fmt.Errorf("%w: more than %d", protocol.ErrTooManyRedirects, c.cfg.MaxRedirects)
		c.attachError(req.origin, session.Fail(req.url, err).Message)
		c.finish(outcomeError)
		return
	}
	log.Info().Msgf("navigator.Redirect from=%q to=%q hops=%d", req.url.String(), r.Target.String(), req.hops+1)
	recordOutcome(outcomeRedirect)

	next := req
	next.url = r.Target
	next.hops++
	c.fetch(next)
}

func (c *Controller) promptInput(req request, r session.InputRequest) {
	prompt := gemtext.InputPrompt{Text: r.Prompt, Target: req.url}
	if !c.updateNode(req.origin, func(n gemtext.Node) gemtext.Node { return n.WithSubContent(prompt) }) {
		log.Warn().Msgf("navigator.Input no originating node url=%q prompt=%q", req.url.String(), r.Prompt)
	}
	c.finish(outcomeInput)
}

func (c *Controller) loadText(req request, r session.Success) {
	text, err := response.Decode(r.Body, r.MIME.Charset)
	if err != nil {
		c.attachError(req.origin, session.Fail(req.url, err).Message)
		c.finish(outcomeError)
		return
	}
	lines := gemtext.SplitLines(text)
	seq := gemtext.NewIDSequence()
	var nodes []gemtext.Node
	if r.MIME.Format == response.FormatGemini {
		nodes = gemtext.ParseGemini(lines, seq)
	} else {
		nodes = gemtext.ParsePlain(lines, seq)
	}
	c.commit(req, nodes, lines)
	log.Debug().Msgf("navigator.Loaded url=%q nodes=%d format=%s", req.url.String(), len(nodes), r.MIME.Format)
	c.finish(outcomeLoaded)
}

// loadImage attaches the image under its origin node. Without one the image
// becomes a document of its own.
func (c *Controller) loadImage(req request, r session.Success) {
	img, err := inlineImage(req.url, r)
	if err != nil {
		c.attachError(req.origin, session.Fail(req.url, err).Message)
		c.finish(outcomeError)
		return
	}
	if c.updateNode(req.origin, func(n gemtext.Node) gemtext.Node { return n.WithSubContent(img) }) {
		c.finish(outcomeInline)
		return
	}

	seq := gemtext.NewIDSequence()
	line := gemtext.Line{Text: req.url.String(), Type: gemtext.Link, Target: req.url.Reference()}
	node := seq.NewNode(line).WithSubContent(img)
	c.commit(req, []gemtext.Node{node}, nil)
	c.finish(outcomeLoaded)
}

func inlineImage(u gemurl.URL, r session.Success) (gemtext.InlineImage, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(r.Body))
	if err != nil {
		return gemtext.InlineImage{}, fmt.Errorf("%w: %s: %v", protocol.ErrDecode, r.MIME.MediaType, err)
	}
	return gemtext.InlineImage{
		Target:    u,
		MediaType: r.MIME.MediaType,
		Data:      r.Body,
		Width:     cfg.Width,
		Height:    cfg.Height,
	}, nil
}

// commit swaps in a new document in two phases: EventCleared with Ready
// false, then EventReady once the nodes are in place.
func (c *Controller) commit(req request, nodes []gemtext.Node, source []string) {
	if req.push {
		c.history.Push(req.url)
	}
	c.address = req.url.String()
	c.notice = ""

	c.ready = false
	c.publishSnapshot()
	c.emit(Event{Kind: EventCleared})

	c.nodes = nodes
	c.source = source
	c.ready = true
	c.publishSnapshot()
	c.emit(Event{Kind: EventReady})
}
