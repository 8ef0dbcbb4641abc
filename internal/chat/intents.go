package chat

import (
	"context"
	"fmt"
	"log"
)

// IntentKind names a user action.
type IntentKind string

const (
	IntentNew     IntentKind = "new"
	IntentOpen    IntentKind = "open"
	IntentDelete  IntentKind = "delete"
	IntentSend    IntentKind = "send"
	IntentRefresh IntentKind = "refresh"
)

// Intent is one user action. SessionID is used by open and delete, Text by
// send.
type Intent struct {
	Kind      IntentKind
	SessionID string
	Text      string
}

// Handle runs the intent to completion on the calling goroutine.
func (c *Controller) Handle(ctx context.Context, in Intent) error {
	switch in.Kind {
	case IntentNew:
		return c.StartNewChat(ctx)
	case IntentOpen:
		if in.SessionID == "" {
			return fmt.Errorf("open: missing session id")
		}
		return c.LoadSession(ctx, in.SessionID)
	case IntentDelete:
		return c.DeleteSession(ctx, in.SessionID)
	case IntentSend:
		return c.SendMessage(ctx, in.Text)
	case IntentRefresh:
		return c.RefreshSessions(ctx)
	default:
		return fmt.Errorf("unknown intent %q", in.Kind)
	}
}

// Dispatch runs the intent on its own goroutine so that a slow request never
// holds up the next action. Errors are logged.
func (c *Controller) Dispatch(ctx context.Context, in Intent) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.Handle(ctx, in); err != nil {
			log.Printf("chat: %s intent: %v", in.Kind, err)
		}
	}()
}

// Run dispatches intents until the channel closes or ctx is done, then waits
// for every dispatched intent to finish.
func (c *Controller) Run(ctx context.Context, intents <-chan Intent) error {
	defer c.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in, ok := <-intents:
			if !ok {
				return nil
			}
			c.Dispatch(ctx, in)
		}
	}
}
