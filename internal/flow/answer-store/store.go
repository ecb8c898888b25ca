// Package answerstore keeps the authoritative answer map of a session and
// mirrors it into a durable cache without blocking the caller.
package answerstore

import (
	"context"
	"sync"
	"time"

	"onboarding-flow/internal/common/errors"
	"onboarding-flow/internal/common/logger"
	"onboarding-flow/internal/common/metrics"
	"onboarding-flow/internal/models"
)

// DefaultMirrorTimeout bounds one background cache write.
const DefaultMirrorTimeout = 3 * time.Second

// Store is safe for concurrent use. Reads always observe the latest write.
type Store struct {
	key           string
	cache         Cache
	logger        logger.Logger
	mirrorTimeout time.Duration

	mu      sync.RWMutex
	answers models.Answers
	pruned  map[string]struct{}
	version uint64
	written uint64
	lastErr error

	// writeMu serializes read-merge-write cycles against the cache.
	writeMu sync.Mutex
	pending sync.WaitGroup
}

// Open loads the snapshot stored under key. A corrupt snapshot is logged,
// removed best-effort, and the store starts empty.
func Open(ctx context.Context, cache Cache, key string, log logger.Logger, mirrorTimeout time.Duration) (*Store, error) {
	if mirrorTimeout <= 0 {
		mirrorTimeout = DefaultMirrorTimeout
	}
	s := &Store{
		key:           key,
		cache:         cache,
		logger:        log.WithFields(map[string]interface{}{"storageKey": key}),
		mirrorTimeout: mirrorTimeout,
		answers:       models.Answers{},
		pruned:        map[string]struct{}{},
	}

	raw, ok, err := cache.Get(ctx, key)
	if err != nil {
		return nil, errors.NewCacheUnavailableError(err)
	}
	if !ok {
		return s, nil
	}

	loaded, err := models.DecodeAnswers(raw)
	if err != nil {
		s.logger.Warn("discarding corrupt answer snapshot", map[string]interface{}{"error": err})
		if rmErr := cache.Remove(ctx, key); rmErr != nil {
			s.logger.Warn("failed to remove corrupt snapshot", map[string]interface{}{"error": rmErr})
		}
		return s, nil
	}

	s.answers = loaded
	s.logger.Debug("answers restored", map[string]interface{}{"fields": len(loaded)})
	return s, nil
}

// Key returns the storage key.
func (s *Store) Key() string {
	return s.key
}

// UpdateField stores value under field and schedules a mirror.
func (s *Store) UpdateField(field string, value interface{}) {
	s.mu.Lock()
	s.answers[field] = value
	delete(s.pruned, field)
	s.version++
	s.mu.Unlock()

	s.mirror()
}

// Remove deletes fields and tombstones them so the merge with the stored
// snapshot does not bring them back.
func (s *Store) Remove(fields ...string) {
	if len(fields) == 0 {
		return
	}
	s.mu.Lock()
	for _, f := range fields {
		delete(s.answers, f)
		s.pruned[f] = struct{}{}
	}
	s.version++
	s.mu.Unlock()

	s.mirror()
}

// ApplyDefault stores q's default when the field has no answer yet.
func (s *Store) ApplyDefault(q models.Question) bool {
	if !q.HasDefault() || q.Field == "" {
		return false
	}

	s.mu.Lock()
	if _, exists := s.answers[q.Field]; exists {
		s.mu.Unlock()
		return false
	}
	s.answers[q.Field] = q.DefaultValue
	delete(s.pruned, q.Field)
	s.version++
	s.mu.Unlock()

	s.mirror()
	return true
}

// Get returns the current value of field.
func (s *Store) Get(field string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.answers[field]
	return v, ok
}

// Snapshot returns a deep copy of the latest answers.
func (s *Store) Snapshot() models.Answers {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.answers.Clone()
}

// Reset empties the in-memory answers without touching the cache.
func (s *Store) Reset() {
	s.mu.Lock()
	s.answers = models.Answers{}
	s.pruned = map[string]struct{}{}
	s.written = s.version
	s.mu.Unlock()
}

// Clear deletes the durable snapshot. Mirrors queued before the call are
// dropped; the in-memory answers are kept.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.written = s.version
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.cache.Remove(ctx, s.key); err != nil {
		return errors.NewCacheUnavailableError(err)
	}

	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
	return nil
}

// Flush waits for scheduled mirrors and returns the last mirror error.
func (s *Store) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Store) mirror() {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		s.mu.RLock()
		if s.written >= s.version {
			s.mu.RUnlock()
			return
		}
		version := s.version
		snapshot := s.answers.Clone()
		pruned := make([]string, 0, len(s.pruned))
		for f := range s.pruned {
			pruned = append(pruned, f)
		}
		s.mu.RUnlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.mirrorTimeout)
		defer cancel()
		err := s.readMergeWrite(ctx, snapshot, pruned)

		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			s.lastErr = err
			metrics.CacheMirrorFailures.WithLabelValues("write").Inc()
			s.logger.Warn("answer mirror failed", map[string]interface{}{"error": err})
			return
		}
		s.lastErr = nil
		if version > s.written {
			s.written = version
		}
	}()
}

// readMergeWrite keeps fields other pages stored under the same key.
func (s *Store) readMergeWrite(ctx context.Context, snapshot models.Answers, pruned []string) error {
	merged := models.Answers{}

	raw, ok, err := s.cache.Get(ctx, s.key)
	if err != nil {
		return err
	}
	if ok {
		stored, decodeErr := models.DecodeAnswers(raw)
		if decodeErr != nil {
			s.logger.Warn("overwriting corrupt answer snapshot", map[string]interface{}{"error": decodeErr})
		} else {
			merged = stored
		}
	}

	for _, f := range pruned {
		delete(merged, f)
	}
	merged.Merge(snapshot)

	encoded, err := merged.Encode()
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.key, encoded)
}
