package navigation

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"onboarding-flow/internal/common/errors"
	commonhttp "onboarding-flow/internal/common/http"
	"onboarding-flow/internal/common/logger"
	"onboarding-flow/internal/common/observability"
	answerstore "onboarding-flow/internal/flow/answer-store"
	"onboarding-flow/internal/flow/completion"
	"onboarding-flow/internal/flow/remote"
	"onboarding-flow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const storageKey = "onboarding:family:u-1"

// ==========================
// Test Helpers
// ==========================

func childQuestion(i int) models.Question {
	return models.Question{
		ID:              fmt.Sprintf("child%dName", i),
		Field:           fmt.Sprintf("child%dName", i),
		Type:            models.TypeText,
		Required:        true,
		Section:         "children",
		ShowIf:          models.AtLeast("numberOfChildren", float64(i)),
		PruneWhenHidden: true,
	}
}

func testCatalog() *models.Catalog {
	return &models.Catalog{
		FlowType: models.FlowFamily,
		Version:  "test",
		Sections: []models.Section{
			{ID: "personal", Label: "About you"},
			{ID: "children", Label: "Your children"},
			{ID: "documents", Label: "Documents"},
		},
		Steps: []models.Step{
			{
				ID: "about",
				Questions: []models.Question{
					{ID: "name", Field: "name", Type: models.TypeText, Required: true, Section: "personal",
						Validation: []models.Rule{{Kind: models.RuleMinLength, Limit: 3}}},
					{ID: "numberOfChildren", Field: "numberOfChildren", Type: models.TypeSelect, Required: true, Section: "personal",
						Options: []models.Option{{Value: 0, Label: "0"}, {Value: 1, Label: "1"}, {Value: 2, Label: "2"}, {Value: 3, Label: "3"}}},
				},
			},
			{
				ID:        "children",
				Questions: []models.Question{childQuestion(1), childQuestion(2), childQuestion(3)},
			},
			{
				ID: "documents",
				Questions: []models.Question{
					{ID: "cpf", Field: "cpf", Type: models.TypeText, Required: true, Section: "documents", Unique: "cpf"},
					{ID: "notes", Field: "notes", Type: models.TypeTextarea, Section: "documents", DefaultValue: "none"},
				},
			},
		},
	}
}

type stubChecker struct {
	mu    sync.Mutex
	resp  models.UniquenessResponse
	err   error
	gate  chan struct{}
	calls int32
}

func (s *stubChecker) Check(ctx context.Context, category, value, userID string) (models.UniquenessResponse, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resp, s.err
}

func (s *stubChecker) set(resp models.UniquenessResponse, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resp, s.err = resp, err
}

// saveServer answers every save with status and body and counts the calls.
func saveServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

type fixture struct {
	cache *answerstore.MemoryCache
	store *answerstore.Store
	ctrl  *Controller
}

func mount(t *testing.T, answers models.Answers, deps Dependencies) *fixture {
	t.Helper()
	return mountCatalog(t, testCatalog(), answers, deps)
}

func mountCatalog(t *testing.T, catalog *models.Catalog, answers models.Answers, deps Dependencies) *fixture {
	t.Helper()
	cache := answerstore.NewMemoryCache()
	seed, err := answers.Encode()
	require.NoError(t, err)
	require.NoError(t, cache.Set(context.Background(), storageKey, seed))

	store, err := answerstore.Open(context.Background(), cache, storageKey, logger.NewTestLogger(t), time.Second)
	require.NoError(t, err)

	if deps.Logger == nil {
		deps.Logger = logger.NewTestLogger(t)
	}
	if deps.Obs == nil {
		deps.Obs = observability.Noop()
	}
	session := models.Session{ID: "s-1", FlowType: models.FlowFamily, UserID: "u-1", StorageKey: storageKey}
	return &fixture{cache: cache, store: store, ctrl: New(session, catalog, store, deps)}
}

func completer(t *testing.T, url string) *completion.Handler {
	log := logger.NewTestLogger(t)
	return completion.NewHandler(remote.NewSaveClient(commonhttp.NewClient(time.Second), url, log, observability.Noop()), log, observability.Noop())
}

func (f *fixture) cached(t *testing.T) bool {
	t.Helper()
	_, ok, err := f.cache.Get(context.Background(), storageKey)
	require.NoError(t, err)
	return ok
}

func pos(step, index int) models.Position {
	return models.Position{Step: step, Index: index}
}

// ==========================
// Forward navigation
// ==========================

func TestController_StartsAtFirstQuestion(t *testing.T) {
	f := mount(t, models.Answers{}, Dependencies{})

	st := f.ctrl.State()
	assert.Equal(t, pos(0, 0), st.Position)
	assert.Equal(t, 1, st.Number)
	assert.Equal(t, "name", st.Question.ID)
	assert.Equal(t, 1, st.Progress.Current)
	assert.Equal(t, 4, st.Progress.Total)
}

func TestController_RequiredEmptyBlocks(t *testing.T) {
	f := mount(t, models.Answers{}, Dependencies{})
	_, err := f.ctrl.UpdateField("name", "")
	require.NoError(t, err)

	r := f.ctrl.Next(context.Background())

	assert.Equal(t, StatusBlocked, r.Status)
	assert.Equal(t, pos(0, 0), f.ctrl.State().Position)
	require.NotNil(t, r.Error)
	assert.Equal(t, errors.ErrCodeValidationFailed, r.Error.Code)
	assert.Equal(t, "name", r.Error.Field)
	assert.NotEmpty(t, r.Error.Message)
	assert.Equal(t, models.Answers{"name": ""}, f.ctrl.State().Answers)
}

func TestController_NeverSkipsInvalidRequired(t *testing.T) {
	f := mount(t, models.Answers{"name": "Ana Souza", "numberOfChildren": 2, "child1Name": "Leo"}, Dependencies{})
	require.Equal(t, pos(1, 1), f.ctrl.State().Position)

	for i := 0; i < 5; i++ {
		r := f.ctrl.Next(context.Background())
		assert.Equal(t, StatusBlocked, r.Status)
		assert.Equal(t, pos(1, 1), f.ctrl.State().Position)
	}

	_, err := f.ctrl.UpdateField("child2Name", "Lia")
	require.NoError(t, err)
	assert.Nil(t, f.ctrl.State().Error)
	assert.Equal(t, StatusAdvanced, f.ctrl.Next(context.Background()).Status)
}

func TestController_NextUsesLatestAnswers(t *testing.T) {
	f := mount(t, models.Answers{"name": "Ana Souza"}, Dependencies{})
	require.Equal(t, pos(0, 1), f.ctrl.State().Position)

	_, err := f.ctrl.UpdateField("numberOfChildren", 2)
	require.NoError(t, err)
	_, err = f.ctrl.UpdateField("numberOfChildren", 3)
	require.NoError(t, err)

	r := f.ctrl.Next(context.Background())
	require.Equal(t, StatusAdvanced, r.Status)
	assert.Equal(t, Target{Kind: TargetIndex, Step: 1, Index: 0}, r.Target)
	assert.Equal(t, 3, r.Progress.Current)
	assert.Equal(t, 7, r.Progress.Total)
}

func TestController_Interstitials(t *testing.T) {
	f := mount(t, models.Answers{}, Dependencies{})

	_, _ = f.ctrl.UpdateField("name", "Ana Souza")
	r := f.ctrl.Next(context.Background())
	require.Equal(t, StatusAdvanced, r.Status)
	assert.Nil(t, r.Interstitial)

	_, _ = f.ctrl.UpdateField("numberOfChildren", 1)
	r = f.ctrl.Next(context.Background())
	require.Equal(t, StatusAdvanced, r.Status)
	require.NotNil(t, r.Interstitial)
	assert.Equal(t, "children", r.Interstitial.ID)
	assert.Equal(t, "children", f.ctrl.State().Interstitial.ID)

	// navigation clears the interstitial
	f.ctrl.Back(context.Background())
	assert.Nil(t, f.ctrl.State().Interstitial)
}

func TestController_SkipsHiddenStep(t *testing.T) {
	f := mount(t, models.Answers{"name": "Ana Souza", "numberOfChildren": 0}, Dependencies{})
	require.Equal(t, pos(2, 0), f.ctrl.State().Position)

	r := f.ctrl.Back(context.Background())
	assert.Equal(t, Target{Kind: TargetIndex, Step: 0, Index: 1}, r.Target)
	assert.Equal(t, DirectionBackward, r.Direction)

	r = f.ctrl.Next(context.Background())
	assert.Equal(t, Target{Kind: TargetIndex, Step: 2, Index: 0}, r.Target)
	require.NotNil(t, r.Interstitial)
	assert.Equal(t, "documents", r.Interstitial.ID)
}

// ==========================
// Uniqueness
// ==========================

func TestController_UniquenessConflict(t *testing.T) {
	checker := &stubChecker{resp: models.UniquenessResponse{Available: false, Error: "CPF already registered"}}
	f := mount(t, models.Answers{"name": "Ana Souza", "numberOfChildren": 0}, Dependencies{Checker: checker})
	_, _ = f.ctrl.UpdateField("cpf", "12345678900")

	r := f.ctrl.Next(context.Background())
	assert.Equal(t, StatusBlocked, r.Status)
	assert.Equal(t, pos(2, 0), f.ctrl.State().Position)
	require.NotNil(t, r.Error)
	assert.Equal(t, errors.ErrCodeUniquenessConflict, r.Error.Code)
	assert.Equal(t, "cpf", r.Error.Field)
	assert.Equal(t, "CPF already registered", r.Error.Message)
	assert.True(t, r.Error.Retryable)

	// editing clears the error and a retry is allowed
	_, _ = f.ctrl.UpdateField("cpf", "52998224725")
	assert.Nil(t, f.ctrl.State().Error)
	checker.set(models.UniquenessResponse{Available: true}, nil)

	r = f.ctrl.Next(context.Background())
	require.Equal(t, StatusAdvanced, r.Status)
	assert.Equal(t, pos(2, 1), f.ctrl.State().Position)
	assert.Equal(t, "none", f.ctrl.State().Value)
	assert.Equal(t, int32(2), atomic.LoadInt32(&checker.calls))
}

func TestController_UniquenessTransportFailure(t *testing.T) {
	checker := &stubChecker{err: errors.NewExternalServiceError("uniqueness", fmt.Errorf("timeout"))}
	f := mount(t, models.Answers{"name": "Ana Souza", "numberOfChildren": 0, "cpf": "52998224725"}, Dependencies{Checker: checker})
	f.ctrl.Seek(context.Background(), pos(2, 0))

	r := f.ctrl.Next(context.Background())
	assert.Equal(t, StatusBlocked, r.Status)
	assert.Equal(t, errors.ErrCodeUniquenessConflict, r.Error.Code)
	assert.Equal(t, verifyFailedMessage, r.Error.Message)
}

func TestController_BusyWhileSuspended(t *testing.T) {
	checker := &stubChecker{resp: models.UniquenessResponse{Available: true}, gate: make(chan struct{})}
	f := mount(t, models.Answers{"name": "Ana Souza", "numberOfChildren": 0, "cpf": "52998224725"}, Dependencies{Checker: checker})
	f.ctrl.Seek(context.Background(), pos(2, 0))

	done := make(chan Result, 1)
	go func() { done <- f.ctrl.Next(context.Background()) }()
	require.Eventually(t, func() bool { return f.ctrl.State().Busy }, time.Second, time.Millisecond)

	assert.Equal(t, StatusBusy, f.ctrl.Next(context.Background()).Status)
	assert.Equal(t, StatusBusy, f.ctrl.Back(context.Background()).Status)

	close(checker.gate)
	r := <-done
	assert.Equal(t, StatusAdvanced, r.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&checker.calls))
}

func TestController_EditWhileCheckingIsValidated(t *testing.T) {
	checker := &stubChecker{resp: models.UniquenessResponse{Available: true}, gate: make(chan struct{})}
	f := mount(t, models.Answers{"name": "Ana Souza", "numberOfChildren": 0, "cpf": "52998224725"}, Dependencies{Checker: checker})
	f.ctrl.Seek(context.Background(), pos(2, 0))

	done := make(chan Result, 1)
	go func() { done <- f.ctrl.Next(context.Background()) }()
	require.Eventually(t, func() bool { return f.ctrl.State().Busy }, time.Second, time.Millisecond)

	_, err := f.ctrl.UpdateField("cpf", "")
	require.NoError(t, err)
	close(checker.gate)

	r := <-done
	assert.Equal(t, StatusBlocked, r.Status)
	require.NotNil(t, r.Error)
	assert.Equal(t, errors.ErrCodeValidationFailed, r.Error.Code)
	assert.Equal(t, "cpf", r.Error.Field)
	assert.Equal(t, pos(2, 0), f.ctrl.State().Position)
}

func TestController_EditWhileCheckingIsCheckedAgain(t *testing.T) {
	checker := &stubChecker{resp: models.UniquenessResponse{Available: true}, gate: make(chan struct{})}
	f := mount(t, models.Answers{"name": "Ana Souza", "numberOfChildren": 0, "cpf": "52998224725"}, Dependencies{Checker: checker})
	f.ctrl.Seek(context.Background(), pos(2, 0))

	done := make(chan Result, 1)
	go func() { done <- f.ctrl.Next(context.Background()) }()
	require.Eventually(t, func() bool { return f.ctrl.State().Busy }, time.Second, time.Millisecond)

	_, err := f.ctrl.UpdateField("cpf", "11144477735")
	require.NoError(t, err)
	close(checker.gate)

	r := <-done
	assert.Equal(t, StatusAdvanced, r.Status)
	assert.Equal(t, pos(2, 1), f.ctrl.State().Position)
	assert.Equal(t, int32(2), atomic.LoadInt32(&checker.calls))
}

func TestController_ResultAfterCloseIgnored(t *testing.T) {
	checker := &stubChecker{resp: models.UniquenessResponse{Available: true}, gate: make(chan struct{})}
	f := mount(t, models.Answers{"name": "Ana Souza", "numberOfChildren": 0, "cpf": "52998224725"}, Dependencies{Checker: checker})
	f.ctrl.Seek(context.Background(), pos(2, 0))

	done := make(chan Result, 1)
	go func() { done <- f.ctrl.Next(context.Background()) }()
	require.Eventually(t, func() bool { return f.ctrl.State().Busy }, time.Second, time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- f.ctrl.Close(context.Background()) }()
	require.NoError(t, <-closed)

	close(checker.gate)
	r := <-done
	assert.Equal(t, StatusBlocked, r.Status)
	assert.Equal(t, pos(2, 0), f.ctrl.State().Position)
	assert.True(t, f.cached(t))
}

// ==========================
// Completion
// ==========================

func TestController_CompleteOnSave(t *testing.T) {
	server, calls := saveServer(t, http.StatusOK, "")
	f := mount(t, models.Answers{"name": "Ana Souza", "numberOfChildren": 0, "cpf": "52998224725", "notes": "-"},
		Dependencies{Completer: completer(t, server.URL)})
	require.Equal(t, pos(2, 1), f.ctrl.State().Position)

	r := f.ctrl.Next(context.Background())
	assert.Equal(t, StatusComplete, r.Status)
	assert.Equal(t, TargetComplete, r.Target.Kind)
	assert.False(t, f.cached(t))
	assert.True(t, f.ctrl.State().Completed)

	r = f.ctrl.Next(context.Background())
	assert.NotEqual(t, StatusComplete, r.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestController_SaveFailureRedirectsToField(t *testing.T) {
	server, _ := saveServer(t, http.StatusInternalServerError, `{"field":"name"}`)
	answers := models.Answers{"name": "Ana Souza", "numberOfChildren": 0, "cpf": "52998224725", "notes": "-"}
	f := mount(t, answers, Dependencies{Completer: completer(t, server.URL)})

	r := f.ctrl.Next(context.Background())
	assert.Equal(t, StatusBlocked, r.Status)
	assert.Equal(t, Target{Kind: TargetIndex, Step: 0, Index: 0}, r.Target)
	require.NotNil(t, r.Error)
	assert.Equal(t, errors.ErrCodePersistenceFailed, r.Error.Code)
	assert.Equal(t, "name", r.Error.Field)

	require.NoError(t, f.store.Flush(context.Background()))
	assert.True(t, f.cached(t))
	assert.Equal(t, "Ana Souza", f.ctrl.State().Answers["name"])
	assert.False(t, f.ctrl.State().Completed)
}

func TestController_SaveFailureWithoutFieldStays(t *testing.T) {
	server, calls := saveServer(t, http.StatusBadGateway, "")
	f := mount(t, models.Answers{"name": "Ana Souza", "numberOfChildren": 0, "cpf": "52998224725", "notes": "-"},
		Dependencies{Completer: completer(t, server.URL)})

	r := f.ctrl.Next(context.Background())
	assert.Equal(t, StatusBlocked, r.Status)
	assert.Equal(t, pos(2, 1), f.ctrl.State().Position)

	// retries are user initiated and unlimited
	f.ctrl.Next(context.Background())
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

// detailCatalog keeps every question in one step so a revealed question
// shifts the indexes of those after it.
func detailCatalog() *models.Catalog {
	text := func(id string) models.Question {
		return models.Question{ID: id, Field: id, Type: models.TypeText, Required: true}
	}
	detail := text("detail")
	detail.ShowIf = models.IsTruthy("flag")
	return &models.Catalog{
		FlowType: models.FlowFamily,
		Version:  "test",
		Steps: []models.Step{{
			ID: "only",
			Questions: []models.Question{
				text("a"),
				{ID: "flag", Field: "flag", Type: models.TypeRadio,
					Options: []models.Option{{Value: true, Label: "Yes"}, {Value: false, Label: "No"}}},
				detail,
				text("b"),
				text("c"),
			},
		}},
	}
}

func TestController_CompletionRequiresEarlierAnswers(t *testing.T) {
	filled := models.Answers{"a": "x", "flag": false, "b": "y", "c": "z"}

	tests := []struct {
		name      string
		field     string
		value     interface{}
		wantField string
		wantPos   models.Position
	}{
		{"cleared earlier answer", "a", "", "a", pos(0, 0)},
		{"revealed required question", "flag", true, "detail", pos(0, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, calls := saveServer(t, http.StatusOK, "")
			f := mountCatalog(t, detailCatalog(), filled.Clone(), Dependencies{Completer: completer(t, server.URL)})
			require.Equal(t, "c", f.ctrl.State().Question.ID)

			st, err := f.ctrl.UpdateField(tt.field, tt.value)
			require.NoError(t, err)
			assert.Equal(t, "c", st.Question.ID)

			r := f.ctrl.Next(context.Background())
			assert.Equal(t, StatusBlocked, r.Status)
			require.NotNil(t, r.Error)
			assert.Equal(t, errors.ErrCodeValidationFailed, r.Error.Code)
			assert.Equal(t, tt.wantField, r.Error.Field)
			assert.Equal(t, Target{Kind: TargetIndex, Step: tt.wantPos.Step, Index: tt.wantPos.Index}, r.Target)
			assert.Equal(t, tt.wantField, f.ctrl.State().Question.ID)
			assert.False(t, f.ctrl.State().Completed)
			assert.Equal(t, int32(0), atomic.LoadInt32(calls))
		})
	}
}

func TestController_RevealedQuestionIsVisited(t *testing.T) {
	server, calls := saveServer(t, http.StatusOK, "")
	f := mountCatalog(t, detailCatalog(), models.Answers{"a": "x", "flag": false, "b": "y"}, Dependencies{Completer: completer(t, server.URL)})
	require.Equal(t, "c", f.ctrl.State().Question.ID)

	r := f.ctrl.Back(context.Background())
	require.Equal(t, StatusAdvanced, r.Status)
	assert.Equal(t, "b", f.ctrl.State().Question.ID)

	// b moves from index 2 to 3 but stays current
	_, err := f.ctrl.UpdateField("flag", true)
	require.NoError(t, err)
	st := f.ctrl.State()
	assert.Equal(t, "b", st.Question.ID)
	assert.Equal(t, pos(0, 3), st.Position)

	r = f.ctrl.Next(context.Background())
	require.Equal(t, StatusAdvanced, r.Status)
	assert.Equal(t, "c", f.ctrl.State().Question.ID)

	_, _ = f.ctrl.UpdateField("c", "z")
	r = f.ctrl.Next(context.Background())
	assert.Equal(t, StatusBlocked, r.Status)
	assert.Equal(t, "detail", f.ctrl.State().Question.ID)

	_, _ = f.ctrl.UpdateField("detail", "w")
	for _, want := range []string{"b", "c"} {
		require.Equal(t, StatusAdvanced, f.ctrl.Next(context.Background()).Status)
		assert.Equal(t, want, f.ctrl.State().Question.ID)
	}
	assert.Equal(t, StatusComplete, f.ctrl.Next(context.Background()).Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

// ==========================
// Back, Seek, Restart
// ==========================

func TestController_BackFromFirstExits(t *testing.T) {
	f := mount(t, models.Answers{}, Dependencies{})
	_, _ = f.ctrl.UpdateField("name", "Ana")

	r := f.ctrl.Back(context.Background())
	assert.Equal(t, StatusExit, r.Status)
	assert.Equal(t, TargetExit, r.Target.Kind)

	require.NoError(t, f.ctrl.Close(context.Background()))
	assert.True(t, f.cached(t))
}

func TestController_BackSkipsValidation(t *testing.T) {
	f := mount(t, models.Answers{"name": "Ana Souza"}, Dependencies{})
	_, _ = f.ctrl.UpdateField("numberOfChildren", "")

	r := f.ctrl.Back(context.Background())
	assert.Equal(t, StatusAdvanced, r.Status)
	assert.Equal(t, pos(0, 0), f.ctrl.State().Position)
	assert.Nil(t, r.Error)
}

func TestController_Seek(t *testing.T) {
	f := mount(t, models.Answers{"name": "Ana Souza", "numberOfChildren": 2, "child1Name": "Leo"}, Dependencies{})

	r := f.ctrl.Seek(context.Background(), pos(0, 0))
	assert.Equal(t, StatusAdvanced, r.Status)
	assert.Equal(t, DirectionBackward, r.Direction)

	tests := []struct {
		name string
		to   models.Position
	}{
		{"hidden question", pos(1, 2)},
		{"past the resume point", pos(2, 0)},
		{"out of range", pos(9, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := f.ctrl.Seek(context.Background(), tt.to)
			assert.Equal(t, StatusBlocked, r.Status)
			assert.Equal(t, errors.ErrCodeNavigationInvalid, r.Error.Code)
			assert.Equal(t, Target{Kind: TargetIndex, Step: 1, Index: 1}, r.Target)
		})
	}

	r = f.ctrl.SeekNumber(context.Background(), 3)
	assert.Equal(t, StatusAdvanced, r.Status)
	assert.Equal(t, pos(1, 0), f.ctrl.State().Position)
}

func TestController_RestartDeletesCache(t *testing.T) {
	f := mount(t, models.Answers{"name": "Ana Souza", "numberOfChildren": 0}, Dependencies{})

	st, err := f.ctrl.Restart(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st.Answers)
	assert.Equal(t, pos(0, 0), st.Position)

	require.NoError(t, f.store.Flush(context.Background()))
	assert.False(t, f.cached(t))
}

// ==========================
// Orphan pruning
// ==========================

func TestController_PrunesDroppedChildren(t *testing.T) {
	f := mount(t, models.Answers{
		"name": "Ana Souza", "numberOfChildren": 3,
		"child1Name": "Leo", "child2Name": "Lia", "child3Name": "Noa",
	}, Dependencies{})
	require.Equal(t, pos(2, 0), f.ctrl.State().Position)

	st, err := f.ctrl.UpdateField("numberOfChildren", 1)
	require.NoError(t, err)
	assert.Equal(t, "Leo", st.Answers["child1Name"])
	assert.NotContains(t, st.Answers, "child2Name")
	assert.NotContains(t, st.Answers, "child3Name")

	require.NoError(t, f.store.Flush(context.Background()))
	raw, _, _ := f.cache.Get(context.Background(), storageKey)
	assert.NotContains(t, raw, "child2Name")
}

func TestController_StalePositionSelfHeals(t *testing.T) {
	f := mount(t, models.Answers{"name": "Ana Souza", "numberOfChildren": 3, "child1Name": "Leo", "child2Name": "Lia"}, Dependencies{})
	require.Equal(t, pos(1, 2), f.ctrl.State().Position)

	_, err := f.ctrl.UpdateField("numberOfChildren", 1)
	require.NoError(t, err)
	assert.Equal(t, pos(1, 0), f.ctrl.State().Position)

	r := f.ctrl.Next(context.Background())
	assert.Equal(t, StatusAdvanced, r.Status)
	assert.Equal(t, Target{Kind: TargetIndex, Step: 2, Index: 0}, r.Target)
}

func TestController_UpdateUnknownField(t *testing.T) {
	f := mount(t, models.Answers{}, Dependencies{})
	_, err := f.ctrl.UpdateField("favouriteColour", "blue")
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidRequest))
}

func TestOrphans_NoPruneWhileVisible(t *testing.T) {
	answers := models.Answers{"numberOfChildren": 3, "child1Name": "Leo", "child3Name": "Noa"}
	assert.Empty(t, orphans(testCatalog(), answers, "numberOfChildren"))
	assert.Empty(t, orphans(testCatalog(), answers, "name"))
}
