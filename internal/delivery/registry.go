// internal/delivery/registry.go
package delivery

import (
	"fmt"
	"strings"
	"sync"
)

// Handler delivers a message to the channel identified by channelKey.
type Handler func(channelKey, message string) error

// Registry routes outbound notifications to the right channel adapter based
// on channel key prefix (e.g. "telegram:"). The expiry sweeper uses it to
// tell actors their drafts lapsed.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty delivery registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for channel keys starting with prefix.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// Deliver finds the handler matching the channel key prefix and calls it.
// Returns an error if no handler is registered for the prefix.
func (r *Registry) Deliver(channelKey, message string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for prefix, handler := range r.handlers {
		if strings.HasPrefix(channelKey, prefix) {
			return handler(channelKey, message)
		}
	}
	return fmt.Errorf("no delivery handler for channel key: %s", channelKey)
}
