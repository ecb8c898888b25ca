// internal/submissions/service.go
package submissions

import (
	"context"
	stderrors "errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"onboarding-flow/internal/common/errors"
	"onboarding-flow/internal/common/logger"
	"onboarding-flow/internal/common/validation"
	"onboarding-flow/internal/flow/catalog"
	"onboarding-flow/internal/models"
)

const (
	nameField     = "name"
	invalidName   = "Please enter your full name using letters only"
	alreadyTaken  = "This value is already registered"
	minNameRunes  = 3
	categoryCPF   = "cpf"
	categoryEmail = "email"
)

var namePattern = regexp.MustCompile(`^[\p{L}][\p{L} .'\-]*$`)

// Store is the persistence the service needs.
type Store interface {
	Owner(ctx context.Context, category, value string) (string, error)
	Insert(ctx context.Context, flowType models.FlowType, userID string, answers models.Answers, identities []Identity) (*models.Submission, error)
}

// Service is the server side of the save and uniqueness endpoints.
type Service struct {
	store    Store
	catalogs *catalog.Registry
	logger   logger.Logger
}

func NewService(store Store, catalogs *catalog.Registry, log logger.Logger) *Service {
	return &Service{
		store:    store,
		catalogs: catalogs,
		logger:   log.WithFields(map[string]interface{}{"component": "submissions"}),
	}
}

// CheckUniqueness reports whether value is free in category for userID. A
// value the same user already holds counts as available.
func (s *Service) CheckUniqueness(ctx context.Context, req models.UniquenessRequest) (models.UniquenessResponse, error) {
	if strings.TrimSpace(req.Category) == "" {
		return models.UniquenessResponse{}, errors.NewInvalidRequestError("category is required")
	}
	value := Normalize(req.Category, req.CandidateValue)
	if value == "" {
		return models.UniquenessResponse{}, errors.NewInvalidRequestError("candidateValue is required")
	}

	owner, err := s.store.Owner(ctx, req.Category, value)
	if err != nil {
		return models.UniquenessResponse{}, errors.NewDatabaseError(err)
	}
	if owner != "" && owner != req.UserID {
		return models.UniquenessResponse{Available: false, Error: takenMessage(req.Category)}, nil
	}
	return models.UniquenessResponse{Available: true}, nil
}

// Submit persists a completed answer set. Rejections carry the field the
// client should send the user back to.
func (s *Service) Submit(ctx context.Context, flowType models.FlowType, userID string, answers models.Answers) (*models.Submission, error) {
	c, err := s.catalogs.Get(flowType)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(userID) == "" {
		return nil, errors.NewInvalidRequestError("user id is required")
	}

	if msg := checkName(answers[nameField]); msg != "" {
		s.logger.Info("submission rejected", map[string]interface{}{"field": nameField, "userId": userID})
		return nil, errors.NewValidationError(nameField, msg)
	}

	var identities []Identity
	for _, q := range c.Questions() {
		if q.Unique == "" {
			continue
		}
		raw, _ := answers[q.Field].(string)
		if value := Normalize(q.Unique, raw); value != "" {
			identities = append(identities, Identity{Field: q.Field, Category: q.Unique, Value: value})
		}
	}

	sub, err := s.store.Insert(ctx, flowType, userID, answers, identities)
	if err != nil {
		var conflict *IdentityConflictError
		if stderrors.As(err, &conflict) {
			return nil, errors.NewConflictError(conflict.Field, takenMessage(conflict.Category))
		}
		s.logger.Error("submission insert failed", map[string]interface{}{"error": err, "userId": userID})
		return nil, errors.NewDatabaseError(err)
	}

	s.logger.Info("submission stored", map[string]interface{}{
		"submissionId": sub.ID,
		"flowType":     flowType,
		"userId":       userID,
	})
	return sub, nil
}

// Normalize canonicalizes an identity before lookup.
func Normalize(category, value string) string {
	switch category {
	case categoryCPF:
		return validation.Digits(value)
	case categoryEmail:
		return strings.ToLower(strings.TrimSpace(value))
	}
	return strings.TrimSpace(value)
}

func checkName(v interface{}) string {
	name, _ := v.(string)
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < minNameRunes || !namePattern.MatchString(name) {
		return invalidName
	}
	return ""
}

func takenMessage(category string) string {
	switch category {
	case categoryCPF:
		return "This CPF is already registered"
	case categoryEmail:
		return "This e-mail is already registered"
	}
	return alreadyTaken
}
