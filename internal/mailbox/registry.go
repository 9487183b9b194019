package mailbox

import (
	"log"
	"sync"
)

// Registry is the process-wide account→session map. It is constructed once
// at startup, injected into the components that need a session lookup, and
// torn down at shutdown; there is no ambient singleton.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates a new Registry instance
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Add registers a session under its account identity.
func (r *Registry) Add(session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.AccountID()] = session
}

// Remove drops a session from the registry.
func (r *Registry) Remove(accountID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, accountID)
}

// Get returns the session for an account, or nil when none is connected.
func (r *Registry) Get(accountID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[accountID]
}

// Accounts returns the identities of all registered sessions.
func (r *Registry) Accounts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	accounts := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		accounts = append(accounts, id)
	}
	return accounts
}

// Shutdown stops every registered session and clears the registry.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}
	if len(sessions) > 0 {
		log.Printf("[Mailbox] Stopped %d session(s)", len(sessions))
	}
}
