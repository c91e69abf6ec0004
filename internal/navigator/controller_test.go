package navigator

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/gemctl/internal/gemtext"
	"github.com/danmuck/gemctl/internal/protocol"
	"github.com/danmuck/gemctl/internal/protocol/gemurl"
	"github.com/danmuck/gemctl/internal/protocol/response"
	"github.com/danmuck/gemctl/internal/protocol/session"
	"github.com/danmuck/gemctl/internal/testutil/testlog"
)

type route func(ctx context.Context, u gemurl.URL) session.Result

// fakeCapsule answers by request line and records every request.
type fakeCapsule struct {
	mu       sync.Mutex
	routes   map[string]route
	requests []string
}

func newFakeCapsule() *fakeCapsule {
	return &fakeCapsule{routes: make(map[string]route)}
}

func (f *fakeCapsule) Fetch(ctx context.Context, u gemurl.URL) session.Result {
	f.mu.Lock()
	f.requests = append(f.requests, u.String())
	r, ok := f.routes[u.String()]
	f.mu.Unlock()
	if !ok {
		return session.Fail(u, &protocol.ServerError{Code: 51, Label: "NOT FOUND", Meta: "Not found"})
	}
	return r(ctx, u)
}

func (f *fakeCapsule) handle(url string, r route) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[url] = r
}

func (f *fakeCapsule) page(url, mime, body string) {
	f.handle(url, func(_ context.Context, u gemurl.URL) session.Result {
		m, err := response.ParseMIME(mime)
		if err != nil {
			return session.Fail(u, err)
		}
		return session.Success{URL: u, Body: []byte(body), MIME: m}
	})
}

func (f *fakeCapsule) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	copy(out, f.requests)
	return out
}

func wait(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("command did not settle")
	}
}

func newController(t *testing.T, f Fetcher) *Controller {
	t.Helper()
	c := New(f, DefaultConfig())
	t.Cleanup(c.Close)
	return c
}

func firstLink(t *testing.T, snap Snapshot) gemtext.Node {
	t.Helper()
	for _, n := range snap.Nodes {
		if n.Content != nil && n.Content.Type == gemtext.Link {
			return n
		}
	}
	t.Fatalf("no link node in %+v", snap.Nodes)
	return gemtext.Node{}
}

func TestLoadHome(t *testing.T) {
	testlog.Start(t)
	capsule := newFakeCapsule()
	capsule.page(protocol.DefaultHome, "text/gemini", "# Home\n=> docs/ Docs\nplain\n")
	c := newController(t, capsule)

	wait(t, c.Load())
	snap := c.Snapshot()
	if !snap.Ready || snap.Loading {
		t.Fatalf("expected ready idle document, got ready=%t loading=%t", snap.Ready, snap.Loading)
	}
	if snap.Address != protocol.DefaultHome {
		t.Fatalf("unexpected address %q", snap.Address)
	}
	if len(snap.Nodes) != 3 || len(snap.Source) != 3 {
		t.Fatalf("unexpected document: nodes=%d source=%d", len(snap.Nodes), len(snap.Source))
	}
	if len(snap.History) != 1 || snap.Cursor != 0 {
		t.Fatalf("unexpected history %v cursor=%d", snap.History, snap.Cursor)
	}
}

func TestBackForwardRestoresAddress(t *testing.T) {
	testlog.Start(t)
	capsule := newFakeCapsule()
	capsule.page("gemini://h/a", "text/gemini", "# A\n")
	capsule.page("gemini://h/b", "text/gemini", "# B\n")
	c := newController(t, capsule)

	wait(t, c.Open(gemurl.MustParse("gemini://h/a")))
	wait(t, c.Open(gemurl.MustParse("gemini://h/b")))

	wait(t, c.Back())
	snap := c.Snapshot()
	if snap.Address != "gemini://h/a" || len(snap.History) != 2 || snap.Cursor != 0 {
		t.Fatalf("after back: address=%q history=%d cursor=%d", snap.Address, len(snap.History), snap.Cursor)
	}

	wait(t, c.Forward())
	snap = c.Snapshot()
	if snap.Address != "gemini://h/b" || len(snap.History) != 2 || snap.Cursor != 1 {
		t.Fatalf("after forward: address=%q history=%d cursor=%d", snap.Address, len(snap.History), snap.Cursor)
	}

	want := []string{"gemini://h/a", "gemini://h/b", "gemini://h/a", "gemini://h/b"}
	if got := capsule.Requests(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected refetch on every move, got %v", got)
	}
}

func TestBackAtFirstEntryIsNoOp(t *testing.T) {
	testlog.Start(t)
	capsule := newFakeCapsule()
	capsule.page("gemini://h/", "text/gemini", "hi\n")
	c := newController(t, capsule)

	wait(t, c.Open(gemurl.MustParse("gemini://h/")))
	wait(t, c.Back())
	wait(t, c.Forward())
	if got := capsule.Requests(); len(got) != 1 {
		t.Fatalf("expected one request, got %v", got)
	}
}

func TestReloadRefetchesCurrent(t *testing.T) {
	testlog.Start(t)
	capsule := newFakeCapsule()
	capsule.page("gemini://h/", "text/gemini", "hi\n")
	c := newController(t, capsule)

	wait(t, c.Open(gemurl.MustParse("gemini://h/")))
	wait(t, c.Reload())
	if got := capsule.Requests(); len(got) != 2 {
		t.Fatalf("expected two requests, got %v", got)
	}
	if snap := c.Snapshot(); len(snap.History) != 1 {
		t.Fatalf("reload should not grow history: %v", snap.History)
	}
}

func TestRelativeNavigationResolvesAgainstCurrent(t *testing.T) {
	testlog.Start(t)
	capsule := newFakeCapsule()
	capsule.page("gemini://h/a/b", "text/gemini", "=> c next\n")
	capsule.page("gemini://h/a/c", "text/gemini", "# C\n")
	c := newController(t, capsule)

	wait(t, c.Open(gemurl.MustParse("gemini://h/a/b")))
	link := firstLink(t, c.Snapshot())
	wait(t, c.Navigate(link.Content.Target, link.ID))

	snap := c.Snapshot()
	if snap.Address != "gemini://h/a/c" {
		t.Fatalf("unexpected address %q", snap.Address)
	}
	if len(snap.History) != 2 {
		t.Fatalf("expected two history entries, got %v", snap.History)
	}
}

func TestNavigateTextAbsoluteBypassesCurrent(t *testing.T) {
	testlog.Start(t)
	capsule := newFakeCapsule()
	capsule.page("gemini://h/", "text/gemini", "hi\n")
	capsule.page("gemini://other/x", "text/gemini", "there\n")
	c := newController(t, capsule)

	wait(t, c.Open(gemurl.MustParse("gemini://h/")))
	done, err := c.NavigateText("gemini://other/x")
	if err != nil {
		t.Fatalf("navigate text: %v", err)
	}
	wait(t, done)
	if got := c.Snapshot().Address; got != "gemini://other/x" {
		t.Fatalf("unexpected address %q", got)
	}
}

func TestInputPromptSubmission(t *testing.T) {
	testlog.Start(t)
	capsule := newFakeCapsule()
	capsule.page("gemini://h/", "text/gemini", "=> /search Search\n")
	capsule.handle("gemini://h/search", func(_ context.Context, u gemurl.URL) session.Result {
		return session.InputRequest{URL: u, Prompt: "Query?"}
	})
	capsule.page("gemini://h/search?hello%20world", "text/gemini", "# Results\n")
	c := newController(t, capsule)

	wait(t, c.Open(gemurl.MustParse("gemini://h/")))
	link := firstLink(t, c.Snapshot())
	wait(t, c.Navigate(link.Content.Target, link.ID))

	node, ok := c.Snapshot().Node(link.ID)
	if !ok {
		t.Fatalf("origin node vanished")
	}
	prompt, ok := node.SubContent.(gemtext.InputPrompt)
	if !ok || prompt.Text != "Query?" {
		t.Fatalf("expected input prompt, got %#v", node.SubContent)
	}
	if len(c.Snapshot().History) != 1 {
		t.Fatalf("input request must not touch history")
	}

	wait(t, c.SubmitInput(link.ID, ""))
	wait(t, c.SubmitInput(link.ID, "hello world"))

	requests := capsule.Requests()
	if last := requests[len(requests)-1]; last != "gemini://h/search?hello%20world" {
		t.Fatalf("unexpected submission request %q", last)
	}
	snap := c.Snapshot()
	if snap.Address != "gemini://h/search?hello%20world" || len(snap.History) != 2 {
		t.Fatalf("unexpected state address=%q history=%v", snap.Address, snap.History)
	}
}

func TestRedirectUpdatesHistoryOnlyOnSuccess(t *testing.T) {
	testlog.Start(t)
	capsule := newFakeCapsule()
	capsule.handle("gemini://h/old", func(_ context.Context, u gemurl.URL) session.Result {
		return session.Redirect{URL: u, Target: gemurl.MustParse("gemini://h/new")}
	})
	capsule.page("gemini://h/new", "text/gemini", "# New\n")
	c := newController(t, capsule)

	wait(t, c.Open(gemurl.MustParse("gemini://h/old")))
	snap := c.Snapshot()
	if snap.Address != "gemini://h/new" {
		t.Fatalf("unexpected address %q", snap.Address)
	}
	if len(snap.History) != 1 || snap.History[0].String() != "gemini://h/new" {
		t.Fatalf("unexpected history %v", snap.History)
	}
}

func TestRedirectLoopIsCapped(t *testing.T) {
	testlog.Start(t)
	capsule := newFakeCapsule()
	capsule.handle("gemini://h/loop", func(_ context.Context, u gemurl.URL) session.Result {
		return session.Redirect{URL: u, Target: u}
	})
	c := newController(t, capsule)

	wait(t, c.Open(gemurl.MustParse("gemini://h/loop")))
	snap := c.Snapshot()
	if !strings.Contains(snap.Notice, "too many redirects") {
		t.Fatalf("expected redirect cap notice, got %q", snap.Notice)
	}
	if got := len(capsule.Requests()); got != DefaultMaxRedirects+1 {
		t.Fatalf("expected %d requests, got %d", DefaultMaxRedirects+1, got)
	}
	if len(snap.History) != 0 {
		t.Fatalf("expected empty history, got %v", snap.History)
	}
}

func TestErrorsAttachToOriginNode(t *testing.T) {
	testlog.Start(t)
	capsule := newFakeCapsule()
	capsule.page("gemini://h/", "text/gemini", "=> /missing Gone\nafter\n")
	c := newController(t, capsule)

	wait(t, c.Open(gemurl.MustParse("gemini://h/")))
	link := firstLink(t, c.Snapshot())
	wait(t, c.Navigate(link.Content.Target, link.ID))

	snap := c.Snapshot()
	node, _ := snap.Node(link.ID)
	if !strings.Contains(node.Error, "Not found (51 NOT FOUND)") {
		t.Fatalf("unexpected node error %q", node.Error)
	}
	if snap.Notice != "" {
		t.Fatalf("expected no notice, got %q", snap.Notice)
	}
	if snap.Address != "gemini://h/" || len(snap.Nodes) != 2 {
		t.Fatalf("document should be untouched: %q %d", snap.Address, len(snap.Nodes))
	}
}

func TestErrorWithoutOriginIsNotice(t *testing.T) {
	testlog.Start(t)
	c := newController(t, newFakeCapsule())

	wait(t, c.Open(gemurl.MustParse("gemini://h/missing")))
	snap := c.Snapshot()
	if !strings.HasPrefix(snap.Notice, "couldn't retrieve gemini://h/missing") {
		t.Fatalf("unexpected notice %q", snap.Notice)
	}
	if len(snap.History) != 0 {
		t.Fatalf("failed request must not touch history: %v", snap.History)
	}
}

func TestNonGeminiLinkIsRejected(t *testing.T) {
	testlog.Start(t)
	capsule := newFakeCapsule()
	capsule.page("gemini://h/", "text/gemini", "=> https://example.com/ Web\n")
	c := newController(t, capsule)

	wait(t, c.Open(gemurl.MustParse("gemini://h/")))
	link := firstLink(t, c.Snapshot())
	wait(t, c.Navigate(link.Content.Target, link.ID))

	node, _ := c.Snapshot().Node(link.ID)
	if !strings.Contains(node.Error, "unsupported scheme") {
		t.Fatalf("unexpected node error %q", node.Error)
	}
	if got := capsule.Requests(); len(got) != 1 {
		t.Fatalf("expected no request for https link, got %v", got)
	}
}

func TestOpenRejectsForeignScheme(t *testing.T) {
	testlog.Start(t)
	capsule := newFakeCapsule()
	capsule.page("https://example.org/", "text/gemini", "# web\n")
	c := newController(t, capsule)

	wait(t, c.Open(gemurl.MustParse("https://example.org/")))
	snap := c.Snapshot()
	if got := capsule.Requests(); len(got) != 0 {
		t.Fatalf("expected no fetch for https URL, got %v", got)
	}
	if snap.Notice != "couldn't retrieve https://example.org/: protocol: unsupported scheme" {
		t.Fatalf("unexpected notice %q", snap.Notice)
	}
	if snap.Loading || len(snap.History) != 0 {
		t.Fatalf("rejected open must not start a chain: %+v", snap)
	}
}

func TestDecodeFailureLeavesHistory(t *testing.T) {
	testlog.Start(t)
	capsule := newFakeCapsule()
	capsule.page("gemini://h/ascii", "text/plain; charset=us-ascii", "caf\xe9\n")
	c := newController(t, capsule)

	wait(t, c.Open(gemurl.MustParse("gemini://h/ascii")))
	snap := c.Snapshot()
	if snap.Notice == "" || len(snap.History) != 0 || snap.Ready {
		t.Fatalf("unexpected state notice=%q history=%v ready=%t", snap.Notice, snap.History, snap.Ready)
	}
}

func TestPlainTextIsPreformatted(t *testing.T) {
	testlog.Start(t)
	capsule := newFakeCapsule()
	capsule.page("gemini://h/file.txt", "text/plain", "# not a heading\r\n=> not a link\r\n")
	c := newController(t, capsule)

	wait(t, c.Open(gemurl.MustParse("gemini://h/file.txt")))
	snap := c.Snapshot()
	if len(snap.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(snap.Nodes))
	}
	for _, n := range snap.Nodes {
		if n.Content.Type != gemtext.Preformatted {
			t.Fatalf("expected preformatted, got %v", n.Content.Type)
		}
	}
	if snap.Source[0] != "# not a heading" {
		t.Fatalf("unexpected source %q", snap.Source)
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestInlineImageAttachesToOrigin(t *testing.T) {
	testlog.Start(t)
	capsule := newFakeCapsule()
	capsule.page("gemini://h/", "text/gemini", "=> pic.png Picture\n")
	capsule.page("gemini://h/pic.png", "image/png", string(pngBytes(t, 3, 2)))
	c := newController(t, capsule)

	wait(t, c.Open(gemurl.MustParse("gemini://h/")))
	link := firstLink(t, c.Snapshot())
	wait(t, c.Navigate(link.Content.Target, link.ID))

	snap := c.Snapshot()
	node, _ := snap.Node(link.ID)
	img, ok := node.SubContent.(gemtext.InlineImage)
	if !ok {
		t.Fatalf("expected inline image, got %#v", node.SubContent)
	}
	if img.Width != 3 || img.Height != 2 || img.MediaType != "image/png" {
		t.Fatalf("unexpected image %dx%d %s", img.Width, img.Height, img.MediaType)
	}
	if len(snap.History) != 1 || snap.Address != "gemini://h/" {
		t.Fatalf("inline image must not navigate: %q %v", snap.Address, snap.History)
	}
}

func TestImageWithoutOriginBecomesDocument(t *testing.T) {
	testlog.Start(t)
	capsule := newFakeCapsule()
	capsule.page("gemini://h/pic.png", "image/png", string(pngBytes(t, 1, 1)))
	c := newController(t, capsule)

	wait(t, c.Open(gemurl.MustParse("gemini://h/pic.png")))
	snap := c.Snapshot()
	if len(snap.Nodes) != 1 || len(snap.History) != 1 {
		t.Fatalf("unexpected state nodes=%d history=%v", len(snap.Nodes), snap.History)
	}
	if _, ok := snap.Nodes[0].SubContent.(gemtext.InlineImage); !ok {
		t.Fatalf("expected image subcontent, got %#v", snap.Nodes[0].SubContent)
	}
}

func TestStaleResultIsDropped(t *testing.T) {
	testlog.Start(t)
	capsule := newFakeCapsule()
	slowStarted := make(chan struct{})
	slowReturned := make(chan struct{})
	capsule.handle("gemini://h/slow", func(ctx context.Context, u gemurl.URL) session.Result {
		defer close(slowReturned)
		close(slowStarted)
		<-ctx.Done()
		m, _ := response.ParseMIME("text/gemini")
		return session.Success{URL: u, Body: []byte("# Slow\n"), MIME: m}
	})
	capsule.page("gemini://h/fast", "text/gemini", "# Fast\n")
	c := newController(t, capsule)

	slow := c.Open(gemurl.MustParse("gemini://h/slow"))
	<-slowStarted
	fast := c.Open(gemurl.MustParse("gemini://h/fast"))
	wait(t, slow)
	wait(t, fast)
	<-slowReturned
	time.Sleep(50 * time.Millisecond)

	snap := c.Snapshot()
	if snap.Address != "gemini://h/fast" || len(snap.History) != 1 {
		t.Fatalf("stale result leaked: address=%q history=%v", snap.Address, snap.History)
	}
	if snap.Nodes[0].Content.Text != "Fast" {
		t.Fatalf("unexpected document %+v", snap.Nodes[0].Content)
	}
}

func TestReadinessIsTwoPhase(t *testing.T) {
	testlog.Start(t)
	capsule := newFakeCapsule()
	capsule.page("gemini://h/", "text/gemini", "hi\n")
	c := newController(t, capsule)
	events := c.Subscribe()
	defer c.Unsubscribe(events)

	wait(t, c.Open(gemurl.MustParse("gemini://h/")))

	var kinds []EventKind
	timeout := time.After(2 * time.Second)
	for len(kinds) == 0 || kinds[len(kinds)-1] != EventReady {
		select {
		case ev := <-events:
			kinds = append(kinds, ev.Kind)
		case <-timeout:
			t.Fatalf("no ready event, got %v", kinds)
		}
	}
	want := []EventKind{EventLoading, EventCleared, EventReady}
	if len(kinds) != len(want) {
		t.Fatalf("unexpected events %v", kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("unexpected events %v", kinds)
		}
	}
}

func TestCloseResolvesEverything(t *testing.T) {
	testlog.Start(t)
	capsule := newFakeCapsule()
	capsule.handle("gemini://h/hang", func(ctx context.Context, u gemurl.URL) session.Result {
		<-ctx.Done()
		return session.Fail(u, ctx.Err())
	})
	c := New(capsule, DefaultConfig())
	events := c.Subscribe()
	pending := c.Open(gemurl.MustParse("gemini://h/hang"))

	c.Close()
	wait(t, pending)
	for range events {
	}
	wait(t, c.Reload())
}
