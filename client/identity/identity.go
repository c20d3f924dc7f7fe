// Package identity manages the visitor and session tokens used to key
// variant assignments and telemetry events.
package identity

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/client/kv"
)

// Storage keys for identity tokens.
const (
	visitorKey = "visitor_id"
	sessionKey = "session_id"
)

// Provider hands out stable, opaque identity tokens. The visitor token is
// created once and persisted in the durable store; the session token is
// created once per session store lifetime. Tokens are never interpreted,
// only compared and hashed.
//
// If the backing store fails, the provider degrades to an ephemeral
// in-process token so callers never see an error.
type Provider struct {
	durable kv.Store
	session kv.Store

	mu        sync.Mutex
	visitorID string
	sessionID string
}

// NewProvider creates a Provider. durable holds the visitor token across
// sessions; session holds the session token for one session lifetime.
func NewProvider(durable, session kv.Store) *Provider {
	return &Provider{durable: durable, session: session}
}

// VisitorID returns the stable visitor token, creating and persisting it on
// first use.
func (p *Provider) VisitorID() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.visitorID == "" {
		p.visitorID = loadOrCreate(p.durable, visitorKey, "v_")
	}
	return p.visitorID
}

// SessionID returns the session token, creating it on first use.
func (p *Provider) SessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sessionID == "" {
		p.sessionID = loadOrCreate(p.session, sessionKey, "s_")
	}
	return p.sessionID
}

// loadOrCreate reads the token under key, generating and persisting a fresh
// one on a miss. Store failures fall back to an ephemeral token.
func loadOrCreate(store kv.Store, key, prefix string) string {
	existing, err := store.Get(key)
	if err == nil && existing != "" {
		return existing
	}
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		// Read failure: hand out an ephemeral token rather than erroring.
		return prefix + uuid.NewString()
	}

	token := prefix + uuid.NewString()
	// Best effort: a failed write means the token will not survive the
	// process, which is the accepted degradation.
	_ = store.Set(key, token)
	return token
}
