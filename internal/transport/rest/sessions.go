package rest

import (
	"context"
	"sync"
	"time"

	"onboarding-flow/internal/common/errors"
	"onboarding-flow/internal/common/logger"
	"onboarding-flow/internal/common/metrics"
	answerstore "onboarding-flow/internal/flow/answer-store"
	"onboarding-flow/internal/flow/catalog"
	"onboarding-flow/internal/flow/navigation"
	"onboarding-flow/internal/models"

	"github.com/google/uuid"
)

// SessionConfig wires what every new session needs.
type SessionConfig struct {
	Catalogs      *catalog.Registry
	Cache         answerstore.Cache
	KeyPrefix     string
	MirrorTimeout time.Duration
	IdleTTL       time.Duration

	// Dependencies is shared by every controller except Completer, which
	// NewCompleter builds per session so the in-flight guard stays per session.
	Dependencies navigation.Dependencies
	NewCompleter func() navigation.Completer
}

// Sessions holds the live controllers of the service.
type Sessions struct {
	cfg    SessionConfig
	logger logger.Logger
	now    func() time.Time

	mu    sync.Mutex
	byID  map[string]*entry
	byKey map[string]string
}

type entry struct {
	ctrl         *navigation.Controller
	lastActivity time.Time
}

func NewSessions(cfg SessionConfig, log logger.Logger) *Sessions {
	return &Sessions{
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "sessions"}),
		now:    time.Now,
		byID:   map[string]*entry{},
		byKey:  map[string]string{},
	}
}

// Open returns the live session of userID in flowType, or mounts a new one
// from the durable cache. The boolean reports whether a session was created.
// Cache reads and flushes run without holding the registry lock.
func (s *Sessions) Open(ctx context.Context, flowType models.FlowType, userID string) (*navigation.Controller, bool, error) {
	c, err := s.cfg.Catalogs.Get(flowType)
	if err != nil {
		return nil, false, err
	}
	key := answerstore.StorageKey(s.cfg.KeyPrefix, string(flowType), userID)

	s.mu.Lock()
	live, done := s.liveByKey(key)
	s.mu.Unlock()
	if live != nil {
		return live, false, nil
	}
	if done != nil {
		_ = done.Close(ctx)
	}

	store, err := answerstore.Open(ctx, s.cfg.Cache, key, s.logger, s.cfg.MirrorTimeout)
	if err != nil {
		return nil, false, err
	}

	now := s.now().UTC()
	session := models.Session{
		ID:           uuid.New().String(),
		FlowType:     flowType,
		UserID:       userID,
		StorageKey:   key,
		CreatedAt:    now,
		LastActivity: now,
	}

	deps := s.cfg.Dependencies
	if s.cfg.NewCompleter != nil {
		deps.Completer = s.cfg.NewCompleter()
	}
	ctrl := navigation.New(session, c, store, deps)

	s.mu.Lock()
	live, done = s.liveByKey(key)
	if live != nil {
		// a concurrent Open of the same user won
		s.mu.Unlock()
		_ = ctrl.Close(ctx)
		return live, false, nil
	}
	s.byID[session.ID] = &entry{ctrl: ctrl, lastActivity: s.now()}
	s.byKey[key] = session.ID
	s.mu.Unlock()
	if done != nil {
		_ = done.Close(ctx)
	}

	metrics.ActiveSessions.WithLabelValues(string(flowType)).Inc()
	s.logger.Info("session opened", map[string]interface{}{
		"sessionId": session.ID,
		"flowType":  flowType,
		"restored":  len(store.Snapshot()),
	})
	return ctrl, true, nil
}

// liveByKey returns the active session stored under key and records activity
// on it. A completed session is forgotten and returned as done so the caller
// can close it outside the lock. s.mu must be held.
func (s *Sessions) liveByKey(key string) (live, done *navigation.Controller) {
	id, ok := s.byKey[key]
	if !ok {
		return nil, nil
	}
	e, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	if e.ctrl.State().Completed {
		s.forget(id, e.ctrl)
		return nil, e.ctrl
	}
	e.lastActivity = s.now()
	return e.ctrl, nil
}

// Get returns a live session and records activity on it.
func (s *Sessions) Get(id string) (*navigation.Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return nil, errors.NewSessionNotFoundError(id)
	}
	e.lastActivity = s.now()
	return e.ctrl, nil
}

// Close unmounts and forgets a session. The durable snapshot is kept.
func (s *Sessions) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	e, ok := s.byID[id]
	if ok {
		s.forget(id, e.ctrl)
	}
	s.mu.Unlock()

	if !ok {
		return errors.NewSessionNotFoundError(id)
	}
	if err := e.ctrl.Close(ctx); err != nil {
		s.logger.Warn("session closed with unflushed answers", map[string]interface{}{"sessionId": id, "error": err})
	}
	return nil
}

// Sweep closes sessions idle for longer than the configured TTL.
func (s *Sessions) Sweep(ctx context.Context) int {
	now := s.now()
	var idle []string

	s.mu.Lock()
	for id, e := range s.byID {
		session := e.ctrl.Session()
		session.Touch(e.lastActivity)
		if session.IsIdle(s.cfg.IdleTTL, now) {
			idle = append(idle, id)
		}
	}
	s.mu.Unlock()

	for _, id := range idle {
		_ = s.Close(ctx, id)
	}
	if len(idle) > 0 {
		s.logger.Info("idle sessions closed", map[string]interface{}{"count": len(idle)})
	}
	return len(idle)
}

// Run sweeps every interval until ctx ends.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	if s.cfg.IdleTTL <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// CloseAll unmounts every session, flushing their mirrors.
func (s *Sessions) CloseAll(ctx context.Context) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		_ = s.Close(ctx, id)
	}
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func (s *Sessions) forget(id string, ctrl *navigation.Controller) {
	session := ctrl.Session()
	delete(s.byID, id)
	if s.byKey[session.StorageKey] == id {
		delete(s.byKey, session.StorageKey)
	}
	metrics.ActiveSessions.WithLabelValues(string(session.FlowType)).Dec()
}
