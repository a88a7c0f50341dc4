package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/finbotd/internal/config"
	"github.com/fyrsmithlabs/finbotd/internal/vectorstore"
)

// ErrNotFound is returned when a session ID is not registered.
var ErrNotFound = errors.New("session not found")

// Registry tracks live sessions and evicts the ones idle past the TTL.
type Registry struct {
	engine        *vectorstore.Engine
	logger        *zap.Logger
	ttl           time.Duration
	sweepInterval time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates a registry backed by the given vector engine.
func NewRegistry(engine *vectorstore.Engine, cfg config.SessionConfig, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		engine:        engine,
		logger:        logger,
		ttl:           cfg.TTL,
		sweepInterval: cfg.SweepInterval,
		sessions:      make(map[string]*Session),
	}
}

// GetOrCreate returns the session for id, creating it if unknown. An empty
// id mints a fresh one. created reports whether this call created the
// session, so first-touch work like seeding runs exactly once.
func (r *Registry) GetOrCreate(id string) (sess *Session, created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id != "" {
		if s, ok := r.sessions[id]; ok {
			s.Touch()
			return s, false, nil
		}
	} else {
		id = uuid.NewString()
	}

	store, err := r.engine.CreateStore(id)
	if err != nil {
		return nil, false, fmt.Errorf("creating session store: %w", err)
	}
	s := newSession(id, store, time.Now())
	r.sessions[id] = s
	r.logger.Debug("session created", zap.String("session_id", id))
	return s, true, nil
}

// Get returns the session for id or ErrNotFound.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.Touch()
	return s, nil
}

// Remove evicts a session and drops its vector store.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(id)
}

func (r *Registry) removeLocked(id string) error {
	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	// Drop the collection before forgetting the session. If the drop fails
	// the session stays registered, so a later sweep can retry instead of
	// leaking the collection.
	if err := r.engine.DropStore(id); err != nil {
		return fmt.Errorf("dropping session store: %w", err)
	}
	delete(r.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Run sweeps idle sessions until the context is cancelled. Intended to be
// started once as a background goroutine.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}

// Sweep evicts every session idle longer than the TTL.
func (r *Registry) Sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.sessions {
		idle := now.Sub(s.LastActive())
		if idle < r.ttl {
			continue
		}
		if err := r.removeLocked(id); err != nil {
			r.logger.Warn("session eviction failed",
				zap.String("session_id", id),
				zap.Error(err),
			)
			continue
		}
		r.logger.Info("session evicted",
			zap.String("session_id", id),
			zap.Duration("idle", idle),
		)
	}
}
