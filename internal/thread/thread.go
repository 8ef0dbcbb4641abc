// Package thread holds the ordered list of rendered chat messages.
package thread

import (
	"strconv"
	"sync"

	"golang.org/x/net/html"

	"github.com/ziadkadry99/osbuddy/internal/render"
)

// Handle identifies an appended message for later removal or update.
// Handles are never reused within a Thread.
type Handle uint64

// Entry is a read-only view of one message. Text is the content region's
// text, without the avatar.
type Entry struct {
	Handle Handle
	Class  string
	Text   string
}

// Thread is safe for concurrent use. Listeners run after every change, outside
// the lock, on the goroutine that made the change.
type Thread struct {
	mu        sync.Mutex
	root      *html.Node
	nodes     map[Handle]*html.Node
	next      Handle
	listeners map[int]func()
	nextL     int
}

func New() *Thread {
	return &Thread{
		root:      render.Element("div", "id", "messages-container"),
		nodes:     make(map[Handle]*html.Node),
		listeners: make(map[int]func()),
	}
}

// Append adds n as the last message.
func (t *Thread) Append(n *html.Node) Handle {
	t.mu.Lock()
	h := t.appendLocked(n)
	t.mu.Unlock()
	t.notify()
	return h
}

// Replace clears the thread and appends nodes as one change.
func (t *Thread) Replace(nodes ...*html.Node) []Handle {
	t.mu.Lock()
	t.clearLocked()
	handles := make([]Handle, len(nodes))
	for i, n := range nodes {
		handles[i] = t.appendLocked(n)
	}
	t.mu.Unlock()
	t.notify()
	return handles
}

// Reset removes every message.
func (t *Thread) Reset() {
	t.Replace()
}

// Remove detaches the message. It reports false if h is not in the thread.
func (t *Thread) Remove(h Handle) bool {
	t.mu.Lock()
	n, ok := t.nodes[h]
	if ok {
		t.root.RemoveChild(n)
		delete(t.nodes, h)
	}
	t.mu.Unlock()
	if ok {
		t.notify()
	}
	return ok
}

// Update runs fn on the message under the thread lock. It reports false, and
// does not call fn, if h is no longer in the thread.
func (t *Thread) Update(h Handle, fn func(*html.Node)) bool {
	t.mu.Lock()
	n, ok := t.nodes[h]
	if ok {
		fn(n)
	}
	t.mu.Unlock()
	if ok {
		t.notify()
	}
	return ok
}

// Contains reports whether h is still in the thread.
func (t *Thread) Contains(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.nodes[h]
	return ok
}

func (t *Thread) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.nodes)
}

// Entries lists the messages in order.
func (t *Thread) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Entry
	for c := t.root.FirstChild; c != nil; c = c.NextSibling {
		h, _ := strconv.ParseUint(render.Attr(c, "data-handle"), 10, 64)
		out = append(out, Entry{
			Handle: Handle(h),
			Class:  render.Attr(c, "class"),
			Text:   render.TextContent(contentOf(c)),
		})
	}
	return out
}

// HTML serializes the children of the messages container.
func (t *Thread) HTML() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var nodes []*html.Node
	for c := t.root.FirstChild; c != nil; c = c.NextSibling {
		nodes = append(nodes, c)
	}
	return render.HTML(nodes...)
}

// OnChange registers fn and returns a function that unregisters it.
func (t *Thread) OnChange(fn func()) func() {
	t.mu.Lock()
	id := t.nextL
	t.nextL++
	t.listeners[id] = fn
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

func (t *Thread) appendLocked(n *html.Node) Handle {
	t.next++
	h := t.next
	render.SetAttr(n, "data-handle", strconv.FormatUint(uint64(h), 10))
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	t.root.AppendChild(n)
	t.nodes[h] = n
	return h
}

func (t *Thread) clearLocked() {
	for h, n := range t.nodes {
		t.root.RemoveChild(n)
		delete(t.nodes, h)
	}
}

// contentOf returns the message's content region, or n itself for nodes
// without one.
func contentOf(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if render.HasClass(c, "content") {
			return c
		}
	}
	return n
}

func (t *Thread) notify() {
	t.mu.Lock()
	fns := make([]func(), 0, len(t.listeners))
	for _, fn := range t.listeners {
		fns = append(fns, fn)
	}
	t.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
