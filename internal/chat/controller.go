// Package chat owns the client-side session state and drives the thread and
// directory views from user intents.
package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/ziadkadry99/osbuddy/internal/api"
	"github.com/ziadkadry99/osbuddy/internal/directory"
	"github.com/ziadkadry99/osbuddy/internal/render"
	"github.com/ziadkadry99/osbuddy/internal/thread"
)

// Texts shown in the thread.
const (
	Greeting      = "Hello! I'm OS Buddy. Ready for a new topic?"
	EmptyChat     = "This chat is empty."
	MissingNotice = "That chat no longer exists. Start a new one!"
	DeletedNotice = "Chat deleted. Start a new one!"
	Thinking      = "Thinking..."
	ConnectError  = "Error: Could not connect to OS Buddy."
	ConfirmDelete = "Delete this chat?"
)

// Service is the subset of the session service the controller needs.
// *api.Client implements it.
type Service interface {
	ListSessions(ctx context.Context) ([]api.SessionSummary, error)
	NewSession(ctx context.Context) (string, error)
	GetSession(ctx context.Context, id string) (*api.Session, error)
	DeleteSession(ctx context.Context, id string) (bool, error)
	Chat(ctx context.Context, message, sessionID string) (*api.ChatReply, error)
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// AlwaysConfirm answers yes without asking.
var AlwaysConfirm = ConfirmFunc(func(context.Context, string) bool { return true })

type Options struct {
	Service   Service
	Pipeline  *render.Pipeline
	Thread    *thread.Thread
	Directory *directory.View
	// Confirmer defaults to AlwaysConfirm.
	Confirmer Confirmer
}

// Controller is safe for concurrent use. Operations may overlap; late
// responses are checked against the state current at arrival.
type Controller struct {
	svc      Service
	pipeline *render.Pipeline
	thread   *thread.Thread
	dir      *directory.View
	confirm  Confirmer

	mu      sync.Mutex
	current string
	// issued numbers view-replacing requests; view is the number of the
	// request whose view is on screen.
	issued uint64
	view   uint64
	// listSeq numbers list requests; listShown is the newest one applied.
	listSeq   uint64
	listShown uint64

	wg sync.WaitGroup
}

func New(opts Options) *Controller {
	c := &Controller{
		svc:      opts.Service,
		pipeline: opts.Pipeline,
		thread:   opts.Thread,
		dir:      opts.Directory,
		confirm:  opts.Confirmer,
	}
	if c.pipeline == nil {
		c.pipeline = &render.Pipeline{}
	}
	if c.thread == nil {
		c.thread = thread.New()
	}
	if c.dir == nil {
		c.dir = directory.NewView()
	}
	if c.confirm == nil {
		c.confirm = AlwaysConfirm
	}
	return c
}

func (c *Controller) Thread() *thread.Thread      { return c.thread }
func (c *Controller) Directory() *directory.View { return c.dir }

// CurrentSession returns the bound session ID, or "" when unset.
func (c *Controller) CurrentSession() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Start shows the greeting and loads the session list.
func (c *Controller) Start(ctx context.Context) error {
	greeting := c.pipeline.Build(render.Assistant, Greeting).Node
	c.mu.Lock()
	c.issued++
	c.view = c.issued
	c.thread.Replace(greeting)
	c.mu.Unlock()
	return c.RefreshSessions(ctx)
}

// RefreshSessions fetches the list and re-renders the directory. On failure
// the previous list stays.
func (c *Controller) RefreshSessions(ctx context.Context) error {
	c.mu.Lock()
	c.listSeq++
	seq := c.listSeq
	c.mu.Unlock()

	list, err := c.svc.ListSessions(ctx)
	if err != nil {
		log.Printf("chat: refreshing sessions: %v", err)
		return err
	}

	entries := make([]directory.Session, len(list))
	for i, s := range list {
		entries[i] = directory.Session{ID: s.ID, Title: s.Title}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq < c.listShown {
		return nil
	}
	c.listShown = seq
	c.dir.Update(entries, c.current)
	return nil
}

// StartNewChat creates a session on the service and binds it.
func (c *Controller) StartNewChat(ctx context.Context) error {
	ticket := c.issue()

	id, err := c.svc.NewSession(ctx)
	if err != nil {
		log.Printf("chat: starting new chat: %v", err)
		return err
	}

	greeting := c.pipeline.Build(render.Assistant, Greeting).Node
	c.mu.Lock()
	if ticket > c.view {
		c.current = id
		c.view = ticket
		c.thread.Replace(greeting)
	}
	c.mu.Unlock()

	return c.RefreshSessions(ctx)
}

// LoadSession shows the session's history and binds it. A session the
// service no longer knows unsets the current session instead.
func (c *Controller) LoadSession(ctx context.Context, id string) error {
	ticket := c.issue()

	s, err := c.svc.GetSession(ctx, id)
	switch {
	case errors.Is(err, api.ErrNotFound):
		log.Printf("chat: session %s no longer exists", id)
		notice := c.pipeline.Build(render.Assistant, MissingNotice).Node
		c.mu.Lock()
		if ticket > c.view {
			c.current = ""
			c.view = ticket
			c.thread.Replace(notice)
		}
		c.mu.Unlock()
		return c.RefreshSessions(ctx)
	case err != nil:
		log.Printf("chat: loading session %s: %v", id, err)
		return err
	}

	var msgs []*render.Message
	for _, m := range s.Messages {
		msgs = append(msgs, c.pipeline.Build(render.KindForRole(m.Role), m.Content))
	}
	if len(msgs) == 0 {
		msgs = append(msgs, c.pipeline.Build(render.Assistant, EmptyChat))
	}
	nodes := make([]*html.Node, len(msgs))
	for i, m := range msgs {
		nodes[i] = m.Node
	}

	c.mu.Lock()
	applied := ticket > c.view
	var handles []thread.Handle
	if applied {
		c.current = id
		c.view = ticket
		handles = c.thread.Replace(nodes...)
	}
	c.mu.Unlock()

	if applied {
		for i, m := range msgs {
			c.renderDiagrams(ctx, handles[i], m)
		}
	}
	return c.RefreshSessions(ctx)
}

// DeleteSession asks for confirmation and deletes the session. A session that
// is already gone counts as deleted.
func (c *Controller) DeleteSession(ctx context.Context, id string) error {
	if id == "" || !c.confirm.Confirm(ctx, ConfirmDelete) {
		return nil
	}

	_, err := c.svc.DeleteSession(ctx, id)
	if err != nil && !errors.Is(err, api.ErrNotFound) {
		log.Printf("chat: deleting session %s: %v", id, err)
		c.RefreshSessions(ctx)
		return err
	}

	notice := c.pipeline.Build(render.Assistant, DeletedNotice).Node
	c.mu.Lock()
	if c.current == id {
		c.current = ""
		c.issued++
		c.view = c.issued
		c.thread.Replace(notice)
	}
	c.mu.Unlock()

	return c.RefreshSessions(ctx)
}

// SendMessage posts text to the current session, or to a new one when none
// is bound. Blank text is ignored.
func (c *Controller) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	view, sid := c.view, c.current
	c.mu.Unlock()

	c.appendIfViewing(ctx, view, render.User, text)
	thinking := c.pipeline.Build(render.Assistant, Thinking).Node
	var placeholder thread.Handle
	c.mu.Lock()
	if c.view == view {
		placeholder = c.thread.Append(thinking)
	}
	c.mu.Unlock()

	reply, err := c.svc.Chat(ctx, text, sid)
	if placeholder != 0 {
		c.thread.Remove(placeholder)
	}
	if err != nil {
		log.Printf("chat: sending message: %v", err)
		c.appendIfViewing(ctx, view, render.Assistant, ConnectError)
		return err
	}

	c.mu.Lock()
	stale := c.view != view
	if !stale && reply.SessionID != "" {
		c.current = reply.SessionID
	}
	c.mu.Unlock()

	if reply.SessionID != "" {
		c.RefreshSessions(ctx)
	}
	if !stale {
		c.appendIfViewing(ctx, view, render.Assistant, reply.Response)
	}
	return nil
}

// Wait blocks until dispatched intents and background diagram rendering
// have finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) issue() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issued++
	return c.issued
}

// appendIfViewing renders text and appends it only while view is still on
// screen.
func (c *Controller) appendIfViewing(ctx context.Context, view uint64, kind render.Kind, text string) {
	msg := c.pipeline.Build(kind, text)
	c.mu.Lock()
	if c.view != view {
		c.mu.Unlock()
		return
	}
	h := c.thread.Append(msg.Node)
	c.mu.Unlock()
	c.renderDiagrams(ctx, h, msg)
}

// renderDiagrams finishes msg in the background. Results are dropped if the
// message has left the thread by then.
func (c *Controller) renderDiagrams(ctx context.Context, h thread.Handle, msg *render.Message) {
	if msg.Diagrams() == 0 {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		out := c.pipeline.RenderDiagrams(ctx, msg)
		for _, o := range out {
			if !o.OK() {
				log.Printf("chat: %v", o.Err)
			}
		}
		c.thread.Update(h, func(*html.Node) { msg.ApplyDiagrams(out) })
	}()
}
