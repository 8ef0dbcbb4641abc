// Package directory renders the session list sidebar.
package directory

import (
	"sync"

	"golang.org/x/net/html"

	"github.com/ziadkadry99/osbuddy/internal/render"
)

// Intent kinds carried in data-intent attributes.
const (
	IntentNew    = "new"
	IntentOpen   = "open"
	IntentDelete = "delete"
)

// Session is one entry of the list.
type Session struct {
	ID    string
	Title string
}

// Action is what activating a node asks for.
type Action struct {
	Intent    string
	SessionID string
}

// Render builds ul#history-list. The "+ New Chat" entry always comes first and
// only the first session whose ID equals current is marked active.
func Render(sessions []Session, current string) *html.Node {
	ul := render.Element("ul", "id", "history-list")

	newChat := render.Element("li", "class", "new-chat-btn", "data-intent", IntentNew)
	newChat.AppendChild(render.Text("+ New Chat"))
	ul.AppendChild(newChat)

	marked := false
	for _, s := range sessions {
		li := render.Element("li", "data-session-id", s.ID)
		if !marked && current != "" && s.ID == current {
			render.SetAttr(li, "class", "active")
			marked = true
		}

		title := render.Element("span", "class", "chat-title", "data-intent", IntentOpen, "data-session-id", s.ID)
		title.AppendChild(render.Text(s.Title))
		del := render.Element("span", "class", "delete-btn", "data-intent", IntentDelete, "data-session-id", s.ID, "title", "Delete chat")
		del.AppendChild(render.Text("×"))

		li.AppendChild(title)
		li.AppendChild(del)
		ul.AppendChild(li)
	}
	return ul
}

// Target resolves an activated node to the innermost enclosing affordance,
// so a delete never also opens. ok is false when no affordance encloses n.
func Target(n *html.Node) (Action, bool) {
	for ; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if intent := render.Attr(n, "data-intent"); intent != "" {
			return Action{Intent: intent, SessionID: render.Attr(n, "data-session-id")}, true
		}
	}
	return Action{}, false
}

// View keeps the latest rendered list. Each Update fully replaces the
// previous output.
type View struct {
	mu        sync.Mutex
	root      *html.Node
	listeners map[int]func()
	nextL     int
}

func NewView() *View {
	return &View{root: Render(nil, ""), listeners: make(map[int]func())}
}

func (v *View) Update(sessions []Session, current string) {
	root := Render(sessions, current)
	v.mu.Lock()
	v.root = root
	fns := make([]func(), 0, len(v.listeners))
	for _, fn := range v.listeners {
		fns = append(fns, fn)
	}
	v.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Root returns the current list element. Callers must not modify it.
func (v *View) Root() *html.Node {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.root
}

// HTML serializes the current list.
func (v *View) HTML() string {
	return render.HTML(v.Root())
}

// Active returns the session ID marked active, or "".
func (v *View) Active() string {
	for c := v.Root().FirstChild; c != nil; c = c.NextSibling {
		if render.HasClass(c, "active") {
			return render.Attr(c, "data-session-id")
		}
	}
	return ""
}

// OnChange registers fn and returns a function that unregisters it.
func (v *View) OnChange(fn func()) func() {
	v.mu.Lock()
	id := v.nextL
	v.nextL++
	v.listeners[id] = fn
	v.mu.Unlock()
	return func() {
		v.mu.Lock()
		delete(v.listeners, id)
		v.mu.Unlock()
	}
}
