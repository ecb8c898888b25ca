package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"onboarding-flow/internal/common/errors"
	"onboarding-flow/internal/flow/catalog"
	"onboarding-flow/internal/flow/navigation"
	"onboarding-flow/internal/models"

	"github.com/gorilla/mux"
)

const (
	userHeader   = "X-User-ID"
	maxBodyBytes = 1 << 20
)

// FlowHandler exposes catalogs and sessions.
type FlowHandler struct {
	catalogs *catalog.Registry
	sessions *Sessions
	errors   *errors.ErrorHandler
}

func NewFlowHandler(catalogs *catalog.Registry, sessions *Sessions, errHandler *errors.ErrorHandler) *FlowHandler {
	return &FlowHandler{catalogs: catalogs, sessions: sessions, errors: errHandler}
}

// CatalogResponse is a catalog plus each section's question range.
type CatalogResponse struct {
	*models.Catalog
	SectionRanges []models.SectionRange `json:"sectionRanges"`
}

// OpenSessionRequest is the optional body of POST /sessions.
type OpenSessionRequest struct {
	UserID string `json:"userId"`
}

type SessionResponse struct {
	Session models.Session   `json:"session"`
	State   navigation.State `json:"state"`
}

type NavigationResponse struct {
	Result navigation.Result `json:"result"`
	State  navigation.State  `json:"state"`
}

type UpdateAnswerRequest struct {
	Value interface{} `json:"value"`
}

// SeekRequest addresses a question by position or by 1-based number.
type SeekRequest struct {
	Step   *int `json:"step,omitempty"`
	Index  *int `json:"index,omitempty"`
	Number int  `json:"number,omitempty"`
}

// Catalog handles GET /v1/flows/{flowType}/catalog
func (h *FlowHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	c, err := h.catalogs.Get(models.FlowType(mux.Vars(r)["flowType"]))
	if err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CatalogResponse{Catalog: c, SectionRanges: c.SectionRanges()})
}

// OpenSession handles POST /v1/flows/{flowType}/sessions
func (h *FlowHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if err := decodeOptional(r, &req); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	userID := strings.TrimSpace(r.Header.Get(userHeader))
	if userID == "" {
		userID = strings.TrimSpace(req.UserID)
	}
	if userID == "" {
		h.errors.HandleHTTPError(w, r, errors.NewInvalidRequestError("user id is required"))
		return
	}

	ctrl, created, err := h.sessions.Open(r.Context(), models.FlowType(mux.Vars(r)["flowType"]), userID)
	if err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, SessionResponse{Session: ctrl.Session(), State: ctrl.State()})
}

// GetSession handles GET /v1/sessions/{id}
func (h *FlowHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Session: ctrl.Session(), State: ctrl.State()})
}

// UpdateAnswer handles PUT /v1/sessions/{id}/answers/{field}
func (h *FlowHandler) UpdateAnswer(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	var req UpdateAnswerRequest
	if err := decode(r, &req); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}

	state, err := ctrl.UpdateField(mux.Vars(r)["field"], req.Value)
	if err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// Next handles POST /v1/sessions/{id}/next
func (h *FlowHandler) Next(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	result := ctrl.Next(r.Context())
	writeJSON(w, http.StatusOK, NavigationResponse{Result: result, State: ctrl.State()})
}

// Back handles POST /v1/sessions/{id}/back
func (h *FlowHandler) Back(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	result := ctrl.Back(r.Context())
	writeJSON(w, http.StatusOK, NavigationResponse{Result: result, State: ctrl.State()})
}

// Seek handles POST /v1/sessions/{id}/seek
func (h *FlowHandler) Seek(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	var req SeekRequest
	if err := decode(r, &req); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}

	var result navigation.Result
	switch {
	case req.Step != nil && req.Index != nil:
		result = ctrl.Seek(r.Context(), models.Position{Step: *req.Step, Index: *req.Index})
	case req.Number > 0:
		result = ctrl.SeekNumber(r.Context(), req.Number)
	default:
		h.errors.HandleHTTPError(w, r, errors.NewInvalidRequestError("either step and index or number is required"))
		return
	}
	writeJSON(w, http.StatusOK, NavigationResponse{Result: result, State: ctrl.State()})
}

// Restart handles POST /v1/sessions/{id}/restart
func (h *FlowHandler) Restart(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	state, err := ctrl.Restart(r.Context())
	if err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// CloseSession handles DELETE /v1/sessions/{id}
func (h *FlowHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FlowHandler) controller(w http.ResponseWriter, r *http.Request) (*navigation.Controller, bool) {
	ctrl, err := h.sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return nil, false
	}
	return ctrl, true
}

// ==========================
// Helpers
// ==========================

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		return errors.NewInvalidRequestError(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

// decodeOptional accepts an empty body.
func decodeOptional(r *http.Request, v interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil || err == io.EOF {
		return nil
	}
	return errors.NewInvalidRequestError(fmt.Sprintf("invalid request body: %v", err))
}
