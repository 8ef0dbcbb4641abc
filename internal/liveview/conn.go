package liveview

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/ziadkadry99/osbuddy/internal/chat"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
)

// conn is one browser tab. Only writePump writes to ws.
type conn struct {
	ws      *websocket.Conn
	ctrl    *chat.Controller
	limiter *rate.Limiter

	// kick wakes writePump after a region changed. Bursts of changes
	// collapse into one frame per region.
	kick chan struct{}
	out  chan Frame
	// done asks writePump to close; stopped is closed once it has.
	done    chan struct{}
	stopped chan struct{}

	mu          sync.Mutex
	threadDirty bool
	dirDirty    bool
	nextConfirm uint64
	pending     map[uint64]chan bool
}

func newConn(ws *websocket.Conn, limiter *rate.Limiter) *conn {
	return &conn{
		ws:      ws,
		limiter: limiter,
		kick:    make(chan struct{}, 1),
		out:     make(chan Frame, 16),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		pending: make(map[uint64]chan bool),
	}
}

// serve runs the connection until the page goes away.
func (c *conn) serve(parent context.Context) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	defer cancel()

	stopThread := c.ctrl.Thread().OnChange(func() { c.mark(true, false) })
	stopDir := c.ctrl.Directory().OnChange(func() { c.mark(false, true) })
	defer stopThread()
	defer stopDir()

	go c.writePump()

	started := make(chan struct{})
	go func() {
		defer close(started)
		if err := c.ctrl.Start(ctx); err != nil {
			c.send(ctx, Frame{Type: FrameError, Text: "Could not load your chats."})
		}
	}()

	c.readPump(ctx)

	cancel()
	<-started
	c.ctrl.Wait()
	close(c.done)
	<-c.stopped
}

// mark records which regions changed. It runs inside controller and view
// callbacks and must not block.
func (c *conn) mark(thread, dir bool) {
	c.mu.Lock()
	c.threadDirty = c.threadDirty || thread
	c.dirDirty = c.dirDirty || dir
	c.mu.Unlock()
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

func (c *conn) send(ctx context.Context, f Frame) bool {
	select {
	case c.out <- f:
		return true
	case <-ctx.Done():
		return false
	case <-c.stopped:
		return false
	}
}

// Confirm asks the page and waits for its answer. A closed page answers no.
func (c *conn) Confirm(ctx context.Context, prompt string) bool {
	ch := make(chan bool, 1)
	c.mu.Lock()
	c.nextConfirm++
	id := c.nextConfirm
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if !c.send(ctx, Frame{Type: FrameConfirm, ID: id, Text: prompt}) {
		return false
	}
	select {
	case ok := <-ch:
		return ok
	case <-ctx.Done():
		return false
	}
}

func (c *conn) resolve(id uint64, ok bool) {
	c.mu.Lock()
	ch := c.pending[id]
	c.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- ok:
	default:
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
		close(c.stopped)
	}()

	for {
		select {
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-c.kick:
			c.mu.Lock()
			thread, dir := c.threadDirty, c.dirDirty
			c.threadDirty, c.dirDirty = false, false
			c.mu.Unlock()
			if dir && !c.write(Frame{Type: FrameDirectory, HTML: c.ctrl.Directory().HTML()}) {
				return
			}
			if thread && !c.write(Frame{Type: FrameThread, HTML: c.ctrl.Thread().HTML()}) {
				return
			}

		case f := <-c.out:
			if !c.write(f) {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *conn) write(f Frame) bool {
	data, err := json.Marshal(f)
	if err != nil {
		log.Printf("liveview: marshal %s frame: %v", f.Type, err)
		return true
	}
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("liveview: websocket write: %v", err)
		return false
	}
	return true
}

func (c *conn) readPump(ctx context.Context) {
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("liveview: websocket read: %v", err)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.send(ctx, Frame{Type: FrameError, Text: "invalid message format"})
			continue
		}

		switch msg.Type {
		case MsgConfirmResult:
			c.resolve(msg.ID, msg.OK)
		case MsgIntent:
			if !c.limiter.Allow() {
				c.send(ctx, Frame{Type: FrameError, Text: "Slow down a little."})
				continue
			}
			c.ctrl.Dispatch(ctx, chat.Intent{
				Kind:      chat.IntentKind(msg.Intent),
				SessionID: msg.SessionID,
				Text:      msg.Text,
			})
		default:
			c.send(ctx, Frame{Type: FrameError, Text: "unknown message type: " + msg.Type})
		}
	}
}
