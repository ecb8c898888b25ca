package navigation

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"onboarding-flow/internal/common/errors"
	"onboarding-flow/internal/common/logger"
	"onboarding-flow/internal/common/metrics"
	"onboarding-flow/internal/common/observability"
	answerstore "onboarding-flow/internal/flow/answer-store"
	"onboarding-flow/internal/flow/completion"
	"onboarding-flow/internal/flow/progress"
	"onboarding-flow/internal/flow/remote"
	"onboarding-flow/internal/flow/resolver"
	"onboarding-flow/internal/flow/validator"
	"onboarding-flow/internal/models"

	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/attribute"
)

const verifyFailedMessage = "We could not verify this value right now, please try again"

// Completer persists a finished session.
type Completer interface {
	Complete(ctx context.Context, session models.Session, store *answerstore.Store) error
}

type Dependencies struct {
	Checker   remote.UniquenessChecker
	Completer Completer
	Logger    logger.Logger
	Obs       *observability.Observability
}

// Controller owns the authoritative state of one session. Methods are safe
// for concurrent use; remote calls run without holding the lock and mark the
// controller busy until they return.
type Controller struct {
	session   models.Session
	catalog   *models.Catalog
	store     *answerstore.Store
	checker   remote.UniquenessChecker
	completer Completer
	logger    logger.Logger
	obs       *observability.Observability

	mu           sync.Mutex
	pos          models.Position
	questionID   string
	direction    Direction
	interstitial *models.Section
	err          *errors.StandardError
	busy         bool
	completed    bool
	closed       bool
}

// New mounts a controller on store, positioned at the resume point of the
// loaded answers.
func New(session models.Session, catalog *models.Catalog, store *answerstore.Store, deps Dependencies) *Controller {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	c := &Controller{
		session:   session,
		catalog:   catalog,
		store:     store,
		checker:   deps.Checker,
		completer: deps.Completer,
		logger: log.WithFields(map[string]interface{}{
			"sessionId": session.ID,
			"flowType":  session.FlowType,
		}),
		obs:       deps.Obs,
		direction: DirectionForward,
	}

	answers := store.Snapshot()
	if pos, ok := resolver.ResumePosition(catalog, answers, validator.Valid); ok {
		c.setPosition(resolver.Sequence(catalog, answers), pos)
		c.reach(answers, pos)
	}
	return c
}

func (c *Controller) Session() models.Session {
	return c.session
}

// Next validates the current answer and moves forward, or completes the flow
// when the current question is the last visible one. Completion also requires
// every earlier visible answer to validate; the first one that does not
// becomes the current question.
func (c *Controller) Next(ctx context.Context) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r, stop := c.guard(); stop {
		return c.record(DirectionForward, r)
	}
	c.err = nil
	c.interstitial = nil

	answers := c.store.Snapshot()
	seq := resolver.Sequence(c.catalog, answers)
	idx, ok := c.locate(seq)
	if !ok {
		return c.record(DirectionForward, c.block(answers, errors.NewNavigationError("no visible question")))
	}
	c.moveTo(seq[idx])
	q := seq[idx].Question
	value := answers[q.Field]

	for {
		if stdErr := validator.Validate(q, value); stdErr != nil {
			return c.record(DirectionForward, c.block(answers, stdErr))
		}
		if q.Unique == "" || c.checker == nil {
			break
		}
		if r, stop := c.checkUnique(ctx, q, value); stop {
			return c.record(DirectionForward, r)
		}

		// an edit made while suspended is validated and checked again
		answers = c.store.Snapshot()
		latest := answers[q.Field]
		if !q.Visible(answers) || cmp.Equal(latest, value) {
			break
		}
		value = latest
	}

	answers = c.store.Snapshot()
	seq = resolver.Sequence(c.catalog, answers)
	idx, ok = c.locate(seq)
	if !ok {
		return c.record(DirectionForward, c.block(answers, errors.NewNavigationError("no visible question")))
	}
	if seq[idx].Question.ID != q.ID {
		c.moveTo(seq[idx])
		return c.record(DirectionForward, c.block(answers, errors.NewNavigationError("question is no longer visible")))
	}

	if idx >= len(seq)-1 {
		if r, stop := c.requireEarlier(seq, answers, idx); stop {
			return c.record(DirectionForward, r)
		}
		return c.record(DirectionForward, c.complete(ctx))
	}

	from, to := seq[idx].Question, seq[idx+1]
	c.moveTo(to)
	c.direction = DirectionForward
	c.interstitial = c.interstitialFor(from, to.Question)
	answers = c.reach(answers, to.Position)
	c.obs.RecordStepReached(ctx, string(c.session.FlowType), to.Question.ID)

	return c.record(DirectionForward, Result{
		Status:       StatusAdvanced,
		Target:       indexTarget(c.pos),
		Direction:    DirectionForward,
		Interstitial: c.interstitial,
		Progress:     progress.ForPosition(c.catalog, answers, c.pos),
	})
}

// Back moves to the previous visible question without validation, or exits
// from the first one. The durable snapshot is kept on exit.
func (c *Controller) Back(ctx context.Context) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r, stop := c.guard(); stop {
		return c.record(DirectionBackward, r)
	}
	c.err = nil
	c.interstitial = nil
	c.direction = DirectionBackward

	answers := c.store.Snapshot()
	seq := resolver.Sequence(c.catalog, answers)
	idx, ok := c.locate(seq)
	if !ok || idx == 0 {
		c.logger.Info("flow exited", nil)
		return c.record(DirectionBackward, Result{
			Status:    StatusExit,
			Target:    Target{Kind: TargetExit},
			Direction: DirectionBackward,
			Progress:  progress.ForPosition(c.catalog, answers, c.pos),
		})
	}

	c.moveTo(seq[idx-1])
	answers = c.reach(answers, c.pos)
	return c.record(DirectionBackward, Result{
		Status:    StatusAdvanced,
		Target:    indexTarget(c.pos),
		Direction: DirectionBackward,
		Progress:  progress.ForPosition(c.catalog, answers, c.pos),
	})
}

// Seek jumps to pos, e.g. from a deep link. A position that is hidden, or
// lies past the first question whose answer does not validate, redirects to
// that resume point and reports a NAVIGATION_INVALID error.
func (c *Controller) Seek(ctx context.Context, pos models.Position) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r, stop := c.guard(); stop {
		return c.record("seek", r)
	}
	c.err = nil
	c.interstitial = nil

	answers := c.store.Snapshot()
	seq := resolver.Sequence(c.catalog, answers)
	resume, ok := resolver.ResumePosition(c.catalog, answers, validator.Valid)
	if !ok {
		return c.record("seek", c.block(answers, errors.NewNavigationError("no visible question")))
	}

	target := resolver.IndexOf(seq, pos)
	limit := resolver.IndexOf(seq, resume)
	if target < 0 || target > limit {
		c.logger.Warn("unreachable position, redirecting to resume point", map[string]interface{}{
			"step":  pos.Step,
			"index": pos.Index,
		})
		c.setPosition(seq, resume)
		answers = c.reach(answers, c.pos)
		c.err = errors.NewNavigationError(fmt.Sprintf("position %d/%d is not reachable", pos.Step, pos.Index))
		return c.record("seek", Result{
			Status:   StatusBlocked,
			Target:   indexTarget(c.pos),
			Progress: progress.ForPosition(c.catalog, answers, c.pos),
			Error:    c.err,
		})
	}

	if current, _ := c.locate(seq); target > current {
		c.direction = DirectionForward
	} else {
		c.direction = DirectionBackward
	}
	c.moveTo(seq[target])
	answers = c.reach(answers, c.pos)
	return c.record("seek", Result{
		Status:    StatusAdvanced,
		Target:    indexTarget(c.pos),
		Direction: c.direction,
		Progress:  progress.ForPosition(c.catalog, answers, c.pos),
	})
}

// SeekNumber is Seek addressed by 1-based global question number.
func (c *Controller) SeekNumber(ctx context.Context, number int) Result {
	pos, ok := resolver.Locate(c.catalog, c.store.Snapshot(), number)
	if !ok {
		pos = models.Position{Step: -1, Index: -1}
	}
	return c.Seek(ctx, pos)
}

// UpdateField stores value and prunes answers of questions the change hides.
// An error on field is cleared. Edits are accepted while a remote call is
// suspended; a suspended Next validates them before moving. The current
// question is kept even when the edit shows or hides questions before it.
func (c *Controller) UpdateField(field string, value interface{}) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.completed {
		return State{}, errors.NewNavigationError("session is no longer active")
	}
	if _, ok := c.catalog.QuestionByField(field); !ok {
		return State{}, errors.NewInvalidRequestError(fmt.Sprintf("unknown field %q", field))
	}

	c.store.UpdateField(field, value)
	if c.err != nil && c.err.Field == field {
		c.err = nil
	}

	if pruned := orphans(c.catalog, c.store.Snapshot(), field); len(pruned) > 0 {
		c.store.Remove(pruned...)
		c.logger.Debug("pruned hidden answers", map[string]interface{}{
			"field":  field,
			"pruned": pruned,
		})
	}
	return c.state(), nil
}

// Restart deletes the durable snapshot and starts over with no answers.
func (c *Controller) Restart(ctx context.Context) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return State{}, errors.NewNavigationError("session is no longer active")
	}
	if c.busy {
		return c.state(), nil
	}

	if err := c.store.Clear(ctx); err != nil {
		c.logger.Warn("failed to delete answer snapshot on restart", map[string]interface{}{"error": err})
	}
	c.store.Reset()

	c.pos = models.Position{}
	c.questionID = ""
	c.direction = DirectionForward
	c.interstitial = nil
	c.err = nil
	c.completed = false

	answers := c.store.Snapshot()
	if pos, ok := resolver.ResumePosition(c.catalog, answers, validator.Valid); ok {
		c.setPosition(resolver.Sequence(c.catalog, answers), pos)
		c.reach(answers, pos)
	}
	c.logger.Info("flow restarted", nil)
	return c.state(), nil
}

// State returns a snapshot for the view.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state()
}

// Close unmounts the controller. Remote results that arrive later are
// ignored. Pending mirrors are flushed so an exited session can resume.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.store.Flush(ctx)
}

// ==========================
// Internals (c.mu held)
// ==========================

func (c *Controller) guard() (Result, bool) {
	switch {
	case c.closed:
		return Result{Status: StatusBlocked, Target: indexTarget(c.pos), Error: errors.NewNavigationError("session is closed")}, true
	case c.busy:
		return Result{Status: StatusBusy, Target: indexTarget(c.pos)}, true
	case c.completed:
		return Result{Status: StatusBlocked, Target: Target{Kind: TargetComplete}, Error: errors.NewNavigationError("flow already completed")}, true
	}
	return Result{}, false
}

func (c *Controller) block(answers models.Answers, stdErr *errors.StandardError) Result {
	c.err = stdErr
	metrics.ValidationFailures.WithLabelValues(string(c.session.FlowType), string(stdErr.Code)).Inc()
	return Result{
		Status:   StatusBlocked,
		Target:   indexTarget(c.pos),
		Progress: progress.ForPosition(c.catalog, answers, c.pos),
		Error:    stdErr,
	}
}

// suspend releases the lock around fn with the busy flag set. It reports
// false when the controller was closed meanwhile.
func (c *Controller) suspend(fn func()) bool {
	c.busy = true
	c.mu.Unlock()
	fn()
	c.mu.Lock()
	c.busy = false
	return !c.closed
}

func (c *Controller) checkUnique(ctx context.Context, q models.Question, value interface{}) (Result, bool) {
	ctx, span := c.obs.StartSpan(ctx, "flow.uniqueness", attribute.String("field", q.Field))
	defer span.End()

	var (
		resp models.UniquenessResponse
		err  error
	)
	pos := c.pos
	if !c.suspend(func() {
		resp, err = c.checker.Check(ctx, q.Unique, fmt.Sprint(value), c.session.UserID)
	}) {
		return Result{Status: StatusBlocked, Target: indexTarget(pos), Error: errors.NewNavigationError("session is closed")}, true
	}

	answers := c.store.Snapshot()
	if err != nil {
		c.logger.Warn("uniqueness check unavailable", map[string]interface{}{"field": q.Field, "error": err})
		return c.block(answers, errors.NewConflictError(q.Field, verifyFailedMessage)), true
	}
	if !resp.Available {
		return c.block(answers, errors.NewConflictError(q.Field, resp.Error)), true
	}
	return Result{}, false
}

// requireEarlier blocks completion on the first visible question before last
// whose answer does not validate, making it the current question.
func (c *Controller) requireEarlier(seq []resolver.Entry, answers models.Answers, last int) (Result, bool) {
	resume, ok := resolver.ResumePosition(c.catalog, answers, validator.Valid)
	if !ok {
		return Result{}, false
	}
	idx := resolver.IndexOf(seq, resume)
	if idx < 0 || idx >= last {
		return Result{}, false
	}

	q := seq[idx].Question
	c.moveTo(seq[idx])
	c.direction = DirectionBackward
	answers = c.reach(answers, c.pos)
	c.logger.Warn("completion blocked by an earlier answer", map[string]interface{}{"field": q.Field})

	stdErr := validator.Validate(q, answers[q.Field])
	if stdErr == nil {
		stdErr = errors.NewNavigationError(fmt.Sprintf("question %q must be answered before completing", q.ID))
	}
	return c.block(answers, stdErr), true
}

func (c *Controller) complete(ctx context.Context) Result {
	if c.completer == nil {
		return c.block(c.store.Snapshot(), errors.NewPersistenceError("", "", stderrors.New("no completion handler")))
	}

	var err error
	pos := c.pos
	if !c.suspend(func() {
		err = c.completer.Complete(ctx, c.session, c.store)
	}) {
		return Result{Status: StatusBlocked, Target: indexTarget(pos), Error: errors.NewNavigationError("session is closed")}
	}

	if stderrors.Is(err, completion.ErrInFlight) {
		return Result{Status: StatusBusy, Target: indexTarget(c.pos)}
	}

	answers := c.store.Snapshot()
	if err != nil {
		stdErr, ok := errors.AsStandard(err)
		if !ok {
			stdErr = errors.NewPersistenceError("", "", err)
		}
		if stdErr.Field != "" {
			if target, found := resolver.PositionOfField(c.catalog, answers, stdErr.Field); found {
				c.setPosition(resolver.Sequence(c.catalog, answers), target)
				c.direction = DirectionBackward
			}
		}
		return c.block(answers, stdErr)
	}

	c.completed = true
	c.logger.Info("flow completed", nil)
	return Result{
		Status:    StatusComplete,
		Target:    Target{Kind: TargetComplete},
		Direction: DirectionForward,
		Progress:  progress.ForPosition(c.catalog, answers, c.pos),
	}
}

// locate finds the current question in seq by id. A question hidden since it
// became current falls back to its stale position.
func (c *Controller) locate(seq []resolver.Entry) (int, bool) {
	if c.questionID != "" {
		for i := range seq {
			if seq[i].Question.ID == c.questionID {
				return i, true
			}
		}
	}
	return resolver.Normalize(seq, c.pos)
}

func (c *Controller) moveTo(e resolver.Entry) {
	c.pos = e.Position
	c.questionID = e.Question.ID
}

func (c *Controller) setPosition(seq []resolver.Entry, pos models.Position) {
	c.pos = pos
	c.questionID = ""
	if i := resolver.IndexOf(seq, pos); i >= 0 {
		c.questionID = seq[i].Question.ID
	}
}

// reach applies the lazy default of the question at pos and returns the
// answers it leaves behind.
func (c *Controller) reach(answers models.Answers, pos models.Position) models.Answers {
	for _, e := range resolver.Sequence(c.catalog, answers) {
		if e.Position == pos {
			if c.store.ApplyDefault(e.Question) {
				return c.store.Snapshot()
			}
			break
		}
	}
	return answers
}

// interstitialFor returns the section entered when moving from one question
// to the next, except for the flow's first section.
func (c *Controller) interstitialFor(from, to models.Question) *models.Section {
	if to.Section == "" || to.Section == from.Section || to.Section == c.catalog.FirstSectionID() {
		return nil
	}
	sec, ok := c.catalog.Section(to.Section)
	if !ok {
		return nil
	}
	return &sec
}

func (c *Controller) state() State {
	answers := c.store.Snapshot()
	st := State{
		SessionID:    c.session.ID,
		FlowType:     c.session.FlowType,
		Answers:      answers,
		Direction:    c.direction,
		Interstitial: c.interstitial,
		Error:        c.err,
		Busy:         c.busy,
		Completed:    c.completed,
	}

	seq := resolver.Sequence(c.catalog, answers)
	if idx, ok := c.locate(seq); ok {
		e := seq[idx]
		q := e.Question
		st.Position = e.Position
		st.Number = idx + 1
		st.Question = &q
		st.Value = answers[q.Field]
		st.Progress = progress.ForPosition(c.catalog, answers, e.Position)
	}
	return st
}

func (c *Controller) record(direction Direction, r Result) Result {
	metrics.NavigationTransitions.WithLabelValues(string(c.session.FlowType), string(direction), string(r.Status)).Inc()
	return r
}
