// Package identity provides the stable per-browser user identifier that
// partitions chat sessions on the service.
package identity

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// Key is the fixed namespace under which the identifier is persisted.
const Key = "os_buddy_user_id"

// Store is durable client-side key/value storage.
type Store interface {
	// Get returns the stored value and whether one exists.
	Get(key string) (string, bool)
	// Set persists value under key.
	Set(key, value string) error
}

// Provider hands out the user identifier, creating and persisting one on
// first use.
type Provider struct {
	store Store

	mu     sync.Mutex
	cached string
}

// New creates a Provider backed by the given store.
func New(store Store) *Provider {
	return &Provider{store: store}
}

// UserID returns the persisted identifier, generating one if the store has
// none. It never fails: a store that cannot be written is logged and the
// generated value is kept for the lifetime of the Provider.
func (p *Provider) UserID() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != "" {
		return p.cached
	}
	if id, ok := p.store.Get(Key); ok && id != "" {
		p.cached = id
		return id
	}

	id := newID()
	if err := p.store.Set(Key, id); err != nil {
		log.Printf("identity: persisting user id: %v", err)
	}
	p.cached = id
	return id
}

func newID() string {
	return "user_" + uuid.NewString()
}
