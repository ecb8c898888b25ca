package rest

import (
	"net/http"
	"strings"

	"onboarding-flow/internal/common/errors"
	"onboarding-flow/internal/models"
	"onboarding-flow/internal/submissions"

	"github.com/gorilla/mux"
)

// SubmissionHandler serves the save and uniqueness endpoints the flow
// controllers call back into.
type SubmissionHandler struct {
	service *submissions.Service
	errors  *errors.ErrorHandler
}

func NewSubmissionHandler(service *submissions.Service, errHandler *errors.ErrorHandler) *SubmissionHandler {
	return &SubmissionHandler{service: service, errors: errHandler}
}

// CheckUniqueness handles POST /v1/uniqueness
func (h *SubmissionHandler) CheckUniqueness(w http.ResponseWriter, r *http.Request) {
	var req models.UniquenessRequest
	if err := decode(r, &req); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	if req.UserID == "" {
		req.UserID = strings.TrimSpace(r.Header.Get(userHeader))
	}

	resp, err := h.service.CheckUniqueness(r.Context(), req)
	if err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Submit handles POST /v1/flows/{flowType}/submissions. Rejections are
// written as a SaveFailure so the flow can return to the offending field.
func (h *SubmissionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var answers models.Answers
	if err := decode(r, &answers); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	sub, err := h.service.Submit(r.Context(), models.FlowType(mux.Vars(r)["flowType"]), strings.TrimSpace(r.Header.Get(userHeader)), answers)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *SubmissionHandler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	stdErr, ok := errors.AsStandard(err)
	if !ok {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, errors.HTTPStatus(stdErr.Code), models.SaveFailure{Field: stdErr.Field, Error: stdErr.Message})
}
