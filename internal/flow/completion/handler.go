// internal/flow/completion/handler.go
package completion

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"onboarding-flow/internal/common/logger"
	"onboarding-flow/internal/common/metrics"
	"onboarding-flow/internal/common/observability"
	answerstore "onboarding-flow/internal/flow/answer-store"
	"onboarding-flow/internal/flow/remote"
	"onboarding-flow/internal/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrInFlight is returned while a previous completion of the same session runs.
var ErrInFlight = stderrors.New("completion already in flight")

// DefaultHookTimeout bounds each hook run after a save.
const DefaultHookTimeout = 15 * time.Second

type Handler struct {
	saver       remote.Saver
	hooks       []Hook
	logger      logger.Logger
	obs         *observability.Observability
	hookTimeout time.Duration

	inFlight atomic.Bool
	hooksWG  *sync.WaitGroup
}

type Option func(*Handler)

// WithHooks registers hooks run after every successful save.
func WithHooks(hooks ...Hook) Option {
	return func(h *Handler) {
		h.hooks = append(h.hooks, hooks...)
	}
}

// WithHookGroup tracks hook runs on wg, letting several handlers be awaited
// together on shutdown.
func WithHookGroup(wg *sync.WaitGroup) Option {
	return func(h *Handler) {
		if wg != nil {
			h.hooksWG = wg
		}
	}
}

func WithHookTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.hookTimeout = d
		}
	}
}

func NewHandler(saver remote.Saver, log logger.Logger, obs *observability.Observability, opts ...Option) *Handler {
	h := &Handler{
		saver:       saver,
		logger:      log.WithFields(map[string]interface{}{"component": "completion"}),
		obs:         obs,
		hookTimeout: DefaultHookTimeout,
		hooksWG:     &sync.WaitGroup{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// InFlight reports whether a completion is running.
func (h *Handler) InFlight() bool {
	return h.inFlight.Load()
}

// Complete saves the latest answers of store and, on success, deletes the
// durable snapshot and schedules the hooks. On failure the answers are kept
// and the save error is returned unchanged. A call made while another one runs
// returns ErrInFlight without side effects.
func (h *Handler) Complete(ctx context.Context, session models.Session, store *answerstore.Store) error {
	if !h.inFlight.CompareAndSwap(false, true) {
		metrics.Completions.WithLabelValues(string(session.FlowType), OutcomeInFlight).Inc()
		return ErrInFlight
	}
	defer h.inFlight.Store(false)

	ctx, span := h.obs.StartSpan(ctx, "flow.complete",
		attribute.String("flow_type", string(session.FlowType)),
		attribute.String("session_id", session.ID),
	)
	defer span.End()

	log := h.logger.WithFields(map[string]interface{}{
		"sessionId": session.ID,
		"flowType":  session.FlowType,
	})

	answers := store.Snapshot()
	if err := h.saver.Save(ctx, session.FlowType, session.UserID, answers); err != nil {
		span.SetStatus(codes.Error, err.Error())
		metrics.Completions.WithLabelValues(string(session.FlowType), OutcomeFailed).Inc()
		log.Warn("completion save failed", map[string]interface{}{"error": err})
		return err
	}

	if err := store.Clear(ctx); err != nil {
		log.Warn("failed to delete answer snapshot", map[string]interface{}{"error": err})
	}

	metrics.Completions.WithLabelValues(string(session.FlowType), OutcomeSaved).Inc()
	log.Info("onboarding completed", map[string]interface{}{"fields": len(answers)})

	h.runHooks(Event{
		SessionID:   session.ID,
		FlowType:    session.FlowType,
		UserID:      session.UserID,
		Answers:     answers,
		CompletedAt: time.Now().UTC(),
	})
	return nil
}

// Wait blocks until scheduled hooks finish or ctx ends.
func (h *Handler) Wait(ctx context.Context) error {
	return Wait(ctx, h.hooksWG)
}

// Wait blocks until wg is done or ctx ends.
func Wait(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) runHooks(event Event) {
	for _, hook := range h.hooks {
		if !hook.Applies(event.FlowType) {
			continue
		}
		h.hooksWG.Add(1)
		go func(hook Hook) {
			defer h.hooksWG.Done()

			ctx, cancel := context.WithTimeout(context.Background(), h.hookTimeout)
			defer cancel()

			if err := hook.Run(ctx, event); err != nil {
				h.logger.Warn("completion hook failed", map[string]interface{}{
					"hook":      hook.Name(),
					"sessionId": event.SessionID,
					"error":     err,
				})
				return
			}
			h.logger.Debug("completion hook done", map[string]interface{}{
				"hook":      hook.Name(),
				"sessionId": event.SessionID,
			})
		}(hook)
	}
}
