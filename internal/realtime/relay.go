package realtime

import (
	"sync"

	"github.com/rs/zerolog"

	"chat-backend/internal/observability"
)

// Sender is the per-connection send primitive supplied by the transport.
type Sender interface {
	Send(event string, payload any) error
	Close() error
}

// Relay resolves target users to live connections through the Registry and
// pushes named events to each. Delivery is at-most-once and best-effort:
// a send failure is logged, counted and swallowed, never surfaced to the
// caller and never retried.
type Relay struct {
	registry *Registry
	log      zerolog.Logger

	mu      sync.RWMutex
	senders map[string]Sender
}

// NewRelay builds a relay over an explicitly constructed registry.
func NewRelay(registry *Registry, log zerolog.Logger) *Relay {
	return &Relay{
		registry: registry,
		log:      log.With().Str("component", "relay").Logger(),
		senders:  make(map[string]Sender),
	}
}

// Registry exposes the underlying presence registry.
func (r *Relay) Registry() *Registry {
	return r.registry
}

// Connect registers the user/connection pair and attaches its sender.
func (r *Relay) Connect(userID, connID string, sender Sender) {
	r.mu.Lock()
	r.senders[connID] = sender
	r.mu.Unlock()
	r.registry.Register(userID, connID)
}

// Disconnect unregisters the pair and detaches the sender. Safe to call for
// pairs that were never connected or were already disconnected.
func (r *Relay) Disconnect(userID, connID string) {
	r.registry.Unregister(userID, connID)
	r.mu.Lock()
	delete(r.senders, connID)
	r.mu.Unlock()
}

// Broadcast delivers (event, payload) to every live connection of the target
// users. Targets with no live connection are skipped silently. Delivery
// order across connections is unspecified.
func (r *Relay) Broadcast(event string, payload any, userIDs []string) {
	handles := r.registry.Resolve(userIDs)
	for _, connID := range handles {
		r.mu.RLock()
		sender, ok := r.senders[connID]
		r.mu.RUnlock()
		if !ok {
			// Disconnected between resolve and send; acceptable race.
			observability.IncBroadcastDropped(event)
			continue
		}
		if err := sender.Send(event, payload); err != nil {
			r.log.Warn().Err(err).Str("event", event).Str("conn_id", connID).Msg("send failed, detaching connection")
			observability.IncBroadcastDropped(event)
			r.detach(connID)
			continue
		}
		observability.IncBroadcastDelivered(event)
	}
}

// detach closes and forgets a sender whose transport failed. The owning
// session removes its registry entry when its read loop observes the close.
func (r *Relay) detach(connID string) {
	r.mu.Lock()
	sender, ok := r.senders[connID]
	delete(r.senders, connID)
	r.mu.Unlock()
	if ok {
		_ = sender.Close()
	}
}

// Shutdown closes every live connection and clears the registry.
func (r *Relay) Shutdown() {
	r.mu.Lock()
	senders := r.senders
	r.senders = make(map[string]Sender)
	r.mu.Unlock()
	for _, sender := range senders {
		_ = sender.Close()
	}
	r.registry.Reset()
}
