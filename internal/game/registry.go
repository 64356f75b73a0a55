package game

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// sessionIDBytes yields 6 uppercase hex characters, short enough to be
// relayed over voice chat.
const sessionIDBytes = 3

// Registry owns the mapping from session id to session. It is created
// once and injected into every handler that needs it; there is no
// package-level instance.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	buffer   int
	logger   *zap.Logger
}

// NewRegistry creates an empty registry. buffer is the per-subscriber
// broadcast capacity handed to each new session.
func NewRegistry(buffer int, logger *zap.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		buffer:   buffer,
		logger:   logger,
	}
}

// Create stores and returns a new empty session under a freshly generated
// id. Create always succeeds.
func (r *Registry) Create() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newIDLocked()
	sess := NewSession(id, r.buffer, r.logger)
	r.sessions[id] = sess

	r.logger.Info("session created", zap.String("session_id", id))
	return sess
}

// newIDLocked generates a short uppercase hex id not currently in use.
func (r *Registry) newIDLocked() string {
	for {
		buf := make([]byte, sessionIDBytes)
		if _, err := rand.Read(buf); err != nil {
			// crypto/rand never fails on supported platforms.
			panic(err)
		}
		id := strings.ToUpper(hex.EncodeToString(buf))
		if _, taken := r.sessions[id]; !taken {
			return id
		}
	}
}

// Get returns the session for id. Unknown ids return ok=false, never an
// error; callers drop the operation silently.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// Delete removes the session for id, if present.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; ok {
		delete(r.sessions, id)
		r.logger.Info("session deleted", zap.String("session_id", id))
	}
}

// Count reports the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
