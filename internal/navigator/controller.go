package navigator

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/gemctl/internal/gemtext"
	"github.com/danmuck/gemctl/internal/protocol"
	"github.com/danmuck/gemctl/internal/protocol/gemurl"
	"github.com/danmuck/gemctl/internal/protocol/session"
)

// Fetcher performs one request. session.Client is the production Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, u gemurl.URL) session.Result
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, u gemurl.URL) session.Result

func (f FetcherFunc) Fetch(ctx context.Context, u gemurl.URL) session.Result {
	return f(ctx, u)
}

type commandKind int

const (
	cmdOpen commandKind = iota
	cmdNavigate
	cmdBack
	cmdForward
	cmdReload
	cmdSubmitInput
)

type command struct {
	kind   commandKind
	url    gemurl.URL
	ref    gemurl.Reference
	origin gemtext.NodeID
	text   string
	done   chan struct{}
}

// request is one hop of a request chain. Every hop of a chain shares its
// epoch; origin is carried through redirects.
type request struct {
	epoch  uint64
	url    gemurl.URL
	origin gemtext.NodeID
	push   bool
	hops   int
}

type fetched struct {
	req    request
	result session.Result
}

// Controller is the sequential context for one document.
type Controller struct {
	fetcher Fetcher
	cfg     Config

	commands      chan command
	results       chan fetched
	subscribeCh   chan chan Event
	unsubscribeCh chan (<-chan Event)

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool

	snapshot atomic.Pointer[Snapshot]

	// Owned by run.
	history     *History
	nodes       []gemtext.Node
	source      []string
	address     string
	ready       bool
	loading     bool
	notice      string
	epoch       uint64
	cancel      context.CancelFunc
	chainCtx    context.Context
	pending     chan struct{}
	subscribers map[<-chan Event]chan Event
}

// New starts the controller goroutine. Nothing is fetched until a command
// arrives.
func New(fetcher Fetcher, cfg Config) *Controller {
	c := &Controller{
		fetcher:       fetcher,
		cfg:           cfg.WithDefaults(),
		commands:      make(chan command),
		results:       make(chan fetched),
		subscribeCh:   make(chan chan Event),
		unsubscribeCh: make(chan (<-chan Event)),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
		history:       NewHistory(),
		subscribers:   make(map[<-chan Event]chan Event),
	}
	c.publishSnapshot()
	go c.run()
	return c
}

func (c *Controller) Config() Config {
	return c.cfg
}

// Load opens the configured home URL.
func (c *Controller) Load() <-chan struct{} {
	return c.Open(c.cfg.Home)
}

// Open navigates to an absolute URL.
func (c *Controller) Open(u gemurl.URL) <-chan struct{} {
	return c.submit(command{kind: cmdOpen, url: u})
}

// Navigate follows ref. References without a host resolve against the
// current history entry. A non-zero origin receives any input prompt,
// inline image or error the request produces.
func (c *Controller) Navigate(ref gemurl.Reference, origin gemtext.NodeID) <-chan struct{} {
	return c.submit(command{kind: cmdNavigate, ref: ref, origin: origin})
}

// NavigateText parses address-bar text and navigates with no origin.
func (c *Controller) NavigateText(text string) (<-chan struct{}, error) {
	ref, err := gemurl.ParseReference(text)
	if err != nil {
		return nil, err
	}
	return c.Navigate(ref, 0), nil
}

// Back re-fetches the previous entry; a no-op at the first entry.
func (c *Controller) Back() <-chan struct{} {
	return c.submit(command{kind: cmdBack})
}

// Forward re-fetches the next entry; a no-op at the last entry.
func (c *Controller) Forward() <-chan struct{} {
	return c.submit(command{kind: cmdForward})
}

// Reload re-fetches the current entry.
func (c *Controller) Reload() <-chan struct{} {
	return c.submit(command{kind: cmdReload})
}

// SubmitInput answers the input prompt attached to node. Empty text and
// nodes without a prompt are ignored.
func (c *Controller) SubmitInput(node gemtext.NodeID, text string) <-chan struct{} {
	return c.submit(command{kind: cmdSubmitInput, origin: node, text: text})
}

// Snapshot returns the state as of the last mutation.
func (c *Controller) Snapshot() Snapshot {
	return *c.snapshot.Load()
}

// Subscribe returns a channel of events. Slow subscribers miss events
// rather than block the controller. The channel closes on Unsubscribe or
// Close.
func (c *Controller) Subscribe() <-chan Event {
	ch := make(chan Event, c.cfg.EventBuffer)
	if c.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case c.subscribeCh <- ch:
	case <-c.stopped:
		close(ch)
	}
	return ch
}

func (c *Controller) Unsubscribe(ch <-chan Event) {
	if c.closed.Load() {
		return
	}
	select {
	case c.unsubscribeCh <- ch:
	case <-c.stopped:
	}
}

// Close stops the controller, cancels any in-flight request and closes
// every subscriber channel and pending future.
func (c *Controller) Close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.stopCh)
	}
	<-c.stopped
}

func (c *Controller) submit(cmd command) <-chan struct{} {
	cmd.done = make(chan struct{})
	if c.closed.Load() {
		close(cmd.done)
		return cmd.done
	}
	select {
	case c.commands <- cmd:
	case <-c.stopped:
		close(cmd.done)
	}
	return cmd.done
}

func (c *Controller) run() {
	defer close(c.stopped)
	for {
		select {
		case <-c.stopCh:
			c.shutdown()
			return

		case ch := <-c.subscribeCh:
			c.subscribers[ch] = ch

		case key := <-c.unsubscribeCh:
			if ch, ok := c.subscribers[key]; ok {
				delete(c.subscribers, key)
				close(ch)
			}

		case cmd := <-c.commands:
			c.handle(cmd)

		case res := <-c.results:
			c.settle(res)
		}
	}
}

func (c *Controller) shutdown() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.resolvePending()
	for _, ch := range c.subscribers {
		close(ch)
	}
	clear(c.subscribers)
	log.Debug().Msgf("navigator.Close epoch=%d", c.epoch)
}

func (c *Controller) handle(cmd command) {
	switch cmd.kind {
	case cmdOpen:
		if cmd.url.Scheme != protocol.Scheme {
			c.rejectScheme(cmd.url.String(), cmd.url.Scheme, 0, cmd.done)
			return
		}
		c.connect(cmd.url, 0, true, cmd.done)

	case cmdNavigate:
		c.navigate(cmd.ref, cmd.origin, cmd.done)

	case cmdBack, cmdForward, cmdReload:
		moved := true
		switch cmd.kind {
		case cmdBack:
			moved = c.history.Back()
		case cmdForward:
			moved = c.history.Forward()
		}
		current, ok := c.history.Current()
		if !moved || !ok {
			close(cmd.done)
			return
		}
		c.connect(current, 0, false, cmd.done)

	case cmdSubmitInput:
		c.submitInput(cmd.origin, cmd.text, cmd.done)

	default:
		close(cmd.done)
	}
}

func (c *Controller) navigate(ref gemurl.Reference, origin gemtext.NodeID, done chan struct{}) {
	if !ref.IsGemini() {
		c.rejectScheme(ref.String(), ref.Scheme, origin, done)
		return
	}
	base, ok := c.history.Current()
	if !ok {
		base = c.cfg.Home
	}
	c.connect(gemurl.Resolve(base, ref), origin, true, done)
}

// rejectScheme reports a target the transport cannot fetch without
// touching the active chain.
func (c *Controller) rejectScheme(target, scheme string, origin gemtext.NodeID, done chan struct{}) {
	msg := fmt.Sprintf("couldn't retrieve %s: %v", target, protocol.ErrUnsupportedScheme)
	log.Warn().Msgf("navigator.Navigate unsupported scheme=%q target=%q", scheme, target)
	c.attachError(origin, msg)
	c.publishSnapshot()
	recordOutcome(outcomeError)
	close(done)
}

func (c *Controller) submitInput(id gemtext.NodeID, text string, done chan struct{}) {
	if text == "" {
		close(done)
		return
	}
	prompt, ok := c.inputPrompt(id)
	if !ok {
		log.Warn().Msgf("navigator.SubmitInput node=%d has no input prompt", id)
		close(done)
		return
	}
	target := prompt.Target.WithQuery(strings.ReplaceAll(text, " ", "%20"))
	c.connect(target, id, true, done)
}

func (c *Controller) inputPrompt(id gemtext.NodeID) (gemtext.InputPrompt, bool) {
	i := c.nodeIndex(id)
	if i < 0 {
		return gemtext.InputPrompt{}, false
	}
	prompt, ok := c.nodes[i].SubContent.(gemtext.InputPrompt)
	return prompt, ok
}

// connect starts a new request chain for u. The previous chain is cancelled
// and its future resolved; its late results will carry a stale epoch.
func (c *Controller) connect(u gemurl.URL, origin gemtext.NodeID, push bool, done chan struct{}) {
	if c.cancel != nil {
		c.cancel()
	}
	c.resolvePending()

	c.epoch++
	c.chainCtx, c.cancel = context.WithCancel(context.Background())
	c.pending = done
	c.loading = true
	log.Debug().Msgf("navigator.Connect url=%q epoch=%d origin=%d push=%t", u.String(), c.epoch, origin, push)

	c.emit(Event{Kind: EventLoading, Address: u.String()})
	c.publishSnapshot()
	c.fetch(request{epoch: c.epoch, url: u, origin: origin, push: push})
}

func (c *Controller) fetch(req request) {
	ctx := c.chainCtx
	go func() {
		result := c.fetcher.Fetch(ctx, req.url)
		select {
		case c.results <- fetched{req: req, result: result}:
		case <-c.stopCh:
		}
	}()
}

func (c *Controller) resolvePending() {
	if c.pending != nil {
		close(c.pending)
		c.pending = nil
	}
}

// finish ends the active chain.
func (c *Controller) finish(outcome string) {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.loading = false
	c.publishSnapshot()
	c.resolvePending()
	recordOutcome(outcome)
}

func (c *Controller) nodeIndex(id gemtext.NodeID) int {
	if id == 0 {
		return -1
	}
	return slices.IndexFunc(c.nodes, func(n gemtext.Node) bool { return n.ID == id })
}

// updateNode applies fn to the node with id; false when it is not in the
// current document.
func (c *Controller) updateNode(id gemtext.NodeID, fn func(gemtext.Node) gemtext.Node) bool {
	i := c.nodeIndex(id)
	if i < 0 {
		return false
	}
	c.nodes[i] = fn(c.nodes[i])
	c.emit(Event{Kind: EventNodeUpdated, NodeID: id})
	return true
}

// attachError puts msg on the origin node, or raises it as a notice when
// there is none.
func (c *Controller) attachError(origin gemtext.NodeID, msg string) {
	if c.updateNode(origin, func(n gemtext.Node) gemtext.Node { return n.WithError(msg) }) {
		return
	}
	log.Warn().Msgf("navigator.Notice message=%q", msg)
	c.notice = msg
	c.emit(Event{Kind: EventNotice, Message: msg})
}

func (c *Controller) emit(ev Event) {
	ev.Epoch = c.epoch
	if ev.Address == "" {
		ev.Address = c.address
	}
	for _, ch := range c.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (c *Controller) publishSnapshot() {
	snap := &Snapshot{
		Epoch:   c.epoch,
		Ready:   c.ready,
		Loading: c.loading,
		Address: c.address,
		Nodes:   slices.Clone(c.nodes),
		Source:  slices.Clone(c.source),
		History: c.history.Entries(),
		Cursor:  c.history.Cursor(),
		Notice:  c.notice,
	}
	c.snapshot.Store(snap)
}
