package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"onboarding-flow/internal/common/errors"
	"onboarding-flow/internal/common/logger"
	answerstore "onboarding-flow/internal/flow/answer-store"
	"onboarding-flow/internal/flow/catalog"
	"onboarding-flow/internal/flow/navigation"
	"onboarding-flow/internal/models"
	"onboarding-flow/internal/submissions"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helpers
// ==========================

type stubStore struct {
	owners map[string]string
	err    error
}

func (s *stubStore) Owner(_ context.Context, category, value string) (string, error) {
	return s.owners[category+":"+value], nil
}

func (s *stubStore) Insert(_ context.Context, flowType models.FlowType, userID string, answers models.Answers, _ []submissions.Identity) (*models.Submission, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Submission{ID: "sub-1", FlowType: flowType, UserID: userID, Answers: answers, Status: models.SubmissionStatusSubmitted}, nil
}

type server struct {
	handler  http.Handler
	sessions *Sessions
	cache    *answerstore.MemoryCache
}

func newServer(t *testing.T, store submissions.Store) *server {
	t.Helper()
	// mirror writes may outlive the test, so no testing.TB logger here
	log := logger.NewNoOpLogger()
	reg, err := catalog.Builtin(catalog.DefaultMaxChildren)
	require.NoError(t, err)

	cache := answerstore.NewMemoryCache()
	sessions := NewSessions(SessionConfig{
		Catalogs:      reg,
		Cache:         cache,
		KeyPrefix:     "onboarding",
		MirrorTimeout: time.Second,
		IdleTTL:       time.Minute,
		Dependencies:  navigation.Dependencies{Logger: log},
	}, log)
	t.Cleanup(func() { sessions.CloseAll(context.Background()) })

	c := &Container{
		Catalogs: reg,
		Sessions: sessions,
		Logger:   log,
		Checks: map[string]func(ctx context.Context) error{
			"cache": func(context.Context) error { return nil },
		},
	}
	if store != nil {
		c.Submissions = submissions.NewService(store, reg, log)
	}
	return &server{handler: NewRouter(c), sessions: sessions, cache: cache}
}

func (s *server) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(userHeader, userID)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *server) open(t *testing.T, userID string) SessionResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/flows/family/sessions", userID, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) errors.ErrorCode {
	t.Helper()
	var resp errors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

// ==========================
// Probes
// ==========================

func TestProbes(t *testing.T) {
	s := newServer(t, nil)

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cache":"ok"`)
}

func TestReady_FailingCheck(t *testing.T) {
	handler := readyHandler(map[string]func(ctx context.Context) error{
		"redis": func(context.Context) error { return fmt.Errorf("connection refused") },
	})
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

// ==========================
// Flows
// ==========================

func TestCatalog(t *testing.T) {
	s := newServer(t, nil)

	rec := s.do(t, http.MethodGet, "/v1/flows/nanny/catalog", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		FlowType      models.FlowType       `json:"flowType"`
		SectionRanges []models.SectionRange `json:"sectionRanges"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.FlowNanny, resp.FlowType)
	assert.NotEmpty(t, resp.SectionRanges)

	rec = s.do(t, http.MethodGet, "/v1/flows/pets/catalog", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errors.ErrCodeFlowNotFound, errorCode(t, rec))
}

func TestOpenSession(t *testing.T) {
	s := newServer(t, nil)

	rec := s.do(t, http.MethodPost, "/v1/flows/family/sessions", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	first := s.open(t, "u-1")
	assert.Equal(t, models.Position{Step: 0, Index: 0}, first.State.Position)
	assert.Equal(t, 1, first.State.Number)

	// the same user in the same flow gets the live session back
	rec = s.do(t, http.MethodPost, "/v1/flows/family/sessions", "u-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var again SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
	assert.Equal(t, first.Session.ID, again.Session.ID)

	// user id from the body
	rec = s.do(t, http.MethodPost, "/v1/flows/family/sessions", "", OpenSessionRequest{UserID: "u-2"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 2, s.sessions.Len())
}

func TestSessionNavigation(t *testing.T) {
	s := newServer(t, nil)
	id := s.open(t, "u-1").Session.ID
	base := "/v1/sessions/" + id

	// an empty required answer blocks without moving
	rec := s.do(t, http.MethodPost, base+"/next", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var nav NavigationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &nav))
	assert.Equal(t, navigation.StatusBlocked, nav.Result.Status)
	require.NotNil(t, nav.State.Error)
	assert.Equal(t, "name", nav.State.Error.Field)

	rec = s.do(t, http.MethodPut, base+"/answers/name", "", UpdateAnswerRequest{Value: "Ana Souza"})
	require.Equal(t, http.StatusOK, rec.Code)
	var state navigation.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Nil(t, state.Error)
	assert.Equal(t, "Ana Souza", state.Answers["name"])

	rec = s.do(t, http.MethodPost, base+"/next", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &nav))
	assert.Equal(t, navigation.StatusAdvanced, nav.Result.Status)
	assert.Equal(t, models.Position{Step: 0, Index: 1}, nav.State.Position)

	rec = s.do(t, http.MethodPost, base+"/back", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &nav))
	assert.Equal(t, navigation.DirectionBackward, nav.Result.Direction)
	assert.Equal(t, models.Position{Step: 0, Index: 0}, nav.State.Position)

	rec = s.do(t, http.MethodPost, base+"/seek", "", SeekRequest{Number: 2})
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &nav))
	assert.Equal(t, models.Position{Step: 0, Index: 1}, nav.State.Position)

	rec = s.do(t, http.MethodPost, base+"/restart", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state = navigation.State{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Empty(t, state.Answers)
	assert.Equal(t, models.Position{Step: 0, Index: 0}, state.Position)
}

func TestSessionErrors(t *testing.T) {
	s := newServer(t, nil)
	id := s.open(t, "u-1").Session.ID

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   errors.ErrorCode
	}{
		{"unknown session", http.MethodGet, "/v1/sessions/missing", nil, http.StatusNotFound, errors.ErrCodeSessionNotFound},
		{"unknown field", http.MethodPut, "/v1/sessions/" + id + "/answers/shoeSize", UpdateAnswerRequest{Value: 42}, http.StatusBadRequest, errors.ErrCodeInvalidRequest},
		{"seek without target", http.MethodPost, "/v1/sessions/" + id + "/seek", map[string]int{}, http.StatusBadRequest, errors.ErrCodeInvalidRequest},
		{"malformed body", http.MethodPut, "/v1/sessions/" + id + "/answers/name", "{", http.StatusBadRequest, errors.ErrCodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec *httptest.ResponseRecorder
			if raw, ok := tt.body.(string); ok {
				req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(raw))
				rec = httptest.NewRecorder()
				s.handler.ServeHTTP(rec, req)
			} else {
				rec = s.do(t, tt.method, tt.path, "", tt.body)
			}
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestCloseSession_KeepsSnapshot(t *testing.T) {
	s := newServer(t, nil)
	id := s.open(t, "u-1").Session.ID

	rec := s.do(t, http.MethodPut, "/v1/sessions/"+id+"/answers/name", "", UpdateAnswerRequest{Value: "Ana Souza"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, "/v1/sessions/"+id, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodGet, "/v1/sessions/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// reopening restores the flushed answers
	reopened := s.open(t, "u-1")
	assert.NotEqual(t, id, reopened.Session.ID)
	assert.Equal(t, "Ana Souza", reopened.State.Answers["name"])
}

func TestCORSPreflight(t *testing.T) {
	s := newServer(t, nil)
	rec := s.do(t, http.MethodOptions, "/v1/flows/family/sessions", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-User-ID")
}

// ==========================
// Submissions
// ==========================

func TestUniquenessEndpoint(t *testing.T) {
	s := newServer(t, &stubStore{owners: map[string]string{"cpf:52998224725": "u-2"}})

	rec := s.do(t, http.MethodPost, "/v1/uniqueness", "u-1", models.UniquenessRequest{CandidateValue: "529.982.247-25", Category: "cpf"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.UniquenessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Available)
	assert.NotEmpty(t, resp.Error)

	rec = s.do(t, http.MethodPost, "/v1/uniqueness", "u-2", models.UniquenessRequest{CandidateValue: "529.982.247-25", Category: "cpf"})
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Available)
}

func TestSubmitEndpoint(t *testing.T) {
	tests := []struct {
		name      string
		store     *stubStore
		answers   models.Answers
		status    int
		wantField string
	}{
		{"stored", &stubStore{}, models.Answers{"name": "Ana Souza"}, http.StatusCreated, ""},
		{"invalid name", &stubStore{}, models.Answers{"name": "A1"}, http.StatusUnprocessableEntity, "name"},
		{"identity taken", &stubStore{err: &submissions.IdentityConflictError{Field: "email", Category: "email"}},
			models.Answers{"name": "Ana Souza", "email": "ana@example.com"}, http.StatusConflict, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t, tt.store)
			rec := s.do(t, http.MethodPost, "/v1/flows/family/submissions", "u-1", tt.answers)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.wantField == "" {
				return
			}
			var failure models.SaveFailure
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failure))
			assert.Equal(t, tt.wantField, failure.Field)
			assert.NotEmpty(t, failure.Error)
		})
	}
}

func TestSubmissionRoutesNeedService(t *testing.T) {
	s := newServer(t, nil)
	rec := s.do(t, http.MethodPost, "/v1/uniqueness", "u-1", models.UniquenessRequest{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
