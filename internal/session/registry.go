// Package session owns one drift engine per conversation and serializes
// access to each of them.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/context-rot-monitor/internal/drift"
	"github.com/wolfman30/context-rot-monitor/pkg/logging"
)

var (
	// ErrNotFound is returned for unknown session IDs.
	ErrNotFound = errors.New("session: not found")
	// ErrCapacity is returned when the registry is full and nothing can be evicted.
	ErrCapacity = errors.New("session: capacity reached")
)

// EvictReason labels why a session left the registry.
type EvictReason string

const (
	EvictIdle     EvictReason = "idle"
	EvictCapacity EvictReason = "capacity"
	EvictDeleted  EvictReason = "deleted"
)

// Options configures a Registry.
type Options struct {
	Drift         drift.Config
	IdleTTL       time.Duration
	MaxSessions   int
	SweepInterval time.Duration
	Now           func() time.Time
	OnEvict       func(id string, reason EvictReason)
}

// Session pairs an engine with the lock that guards it.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu     sync.Mutex // guards engine
	engine *drift.Engine

	// guarded by Registry.mu
	lastUsed time.Time
	busy     int
}

// Registry maps session IDs to engines.
type Registry struct {
	opts   Options
	logger *logging.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry validates the drift config up front so every later engine build succeeds.
func NewRegistry(opts Options, logger *logging.Logger) (*Registry, error) {
	if err := opts.Drift.Validate(); err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 5 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Registry{
		opts:     opts,
		logger:   logger,
		sessions: make(map[string]*Session),
	}, nil
}

// DriftConfig returns the engine configuration shared by all sessions.
func (r *Registry) DriftConfig() drift.Config {
	return r.opts.Drift
}

// Create starts a session with the given goal, replacing any existing
// session under the same ID. An empty id gets a generated UUID.
func (r *Registry) Create(id, goal string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}
	engine, err := drift.New(r.opts.Drift)
	if err != nil {
		return "", err
	}
	if err := engine.SetGoal(goal); err != nil {
		return "", err
	}

	var victim string
	r.mu.Lock()
	if _, exists := r.sessions[id]; !exists {
		victim, err = r.makeRoomLocked()
		if err != nil {
			r.mu.Unlock()
			return "", err
		}
	}
	now := r.opts.Now()
	r.sessions[id] = &Session{ID: id, CreatedAt: now, engine: engine, lastUsed: now}
	r.mu.Unlock()

	if victim != "" {
		r.logger.Warn("session evicted to make room", "session_id", victim)
		r.notifyEvict(victim, EvictCapacity)
	}
	r.logger.Debug("session created", "session_id", id)
	return id, nil
}

// Reset swaps in a fresh, uninitialized engine built from the same config.
func (r *Registry) Reset(id string) error {
	engine, err := drift.New(r.opts.Drift)
	if err != nil {
		return err
	}
	s, err := r.lookup(id)
	if err != nil {
		return err
	}
	r.touch(s)
	s.mu.Lock()
	s.engine = engine
	s.mu.Unlock()
	return nil
}

// With runs fn while holding the session lock.
func (r *Registry) With(id string, fn func(*drift.Engine) error) error {
	s, err := r.lookup(id)
	if err != nil {
		return err
	}
	r.mu.Lock()
	s.busy++
	s.lastUsed = r.opts.Now()
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		s.busy--
		r.mu.Unlock()
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.engine)
}

// Delete removes a session.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.notifyEvict(id, EvictDeleted)
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// IDs returns live session IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Sweep evicts sessions idle for longer than IdleTTL and returns how many were removed.
func (r *Registry) Sweep(now time.Time) int {
	if r.opts.IdleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-r.opts.IdleTTL)
	var evicted []string

	r.mu.Lock()
	for id, s := range r.sessions {
		if s.busy == 0 && s.lastUsed.Before(cutoff) {
			delete(r.sessions, id)
			evicted = append(evicted, id)
		}
	}
	r.mu.Unlock()

	for _, id := range evicted {
		r.notifyEvict(id, EvictIdle)
	}
	if len(evicted) > 0 {
		r.logger.Info("evicted idle sessions", "count", len(evicted))
	}
	return len(evicted)
}

// Run sweeps on a ticker until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(r.opts.Now())
		}
	}
}

func (r *Registry) lookup(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// makeRoomLocked evicts the least recently used idle session when full and
// returns its ID. Caller holds r.mu.
func (r *Registry) makeRoomLocked() (string, error) {
	if r.opts.MaxSessions <= 0 || len(r.sessions) < r.opts.MaxSessions {
		return "", nil
	}
	var victim *Session
	for _, s := range r.sessions {
		if s.busy > 0 {
			continue
		}
		if victim == nil || s.lastUsed.Before(victim.lastUsed) {
			victim = s
		}
	}
	if victim == nil {
		return "", ErrCapacity
	}
	delete(r.sessions, victim.ID)
	return victim.ID, nil
}

func (r *Registry) notifyEvict(id string, reason EvictReason) {
	if r.opts.OnEvict != nil {
		r.opts.OnEvict(id, reason)
	}
}

func (r *Registry) touch(s *Session) {
	r.mu.Lock()
	s.lastUsed = r.opts.Now()
	r.mu.Unlock()
}
