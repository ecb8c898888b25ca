// internal/submissions/repository.go
package submissions

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"onboarding-flow/internal/common/database"
	"onboarding-flow/internal/models"

	"github.com/google/uuid"
)

var (
	ErrInsertFailed     = stderrors.New("SUBMISSION_INSERT_FAILED")
	ErrIdentityConflict = stderrors.New("IDENTITY_CONFLICT")
)

// IdentityConflictError names the identity another user already holds.
type IdentityConflictError struct {
	Field    string
	Category string
}

func (e *IdentityConflictError) Error() string {
	return fmt.Sprintf("%s: %s", ErrIdentityConflict, e.Field)
}

func (e *IdentityConflictError) Unwrap() error {
	return ErrIdentityConflict
}

// Identity is a value that may be registered by one user only.
type Identity struct {
	Field    string
	Category string
	Value    string
}

type Repository struct {
	pg  *database.PostgresClient
	now func() time.Time
}

func NewRepository(pg *database.PostgresClient) *Repository {
	return &Repository{pg: pg, now: time.Now}
}

// Owner returns the user holding value in category, or "" when it is free.
func (r *Repository) Owner(ctx context.Context, category, value string) (string, error) {
	var userID string
	err := r.pg.QueryRow(ctx, `
		SELECT user_id FROM identity_registry
		WHERE category = $1 AND value = $2`, category, value).Scan(&userID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("identity lookup failed: %w", err)
	}
	return userID, nil
}

// Insert stores a submission and registers its identities in one transaction.
// An identity owned by another user aborts with an IdentityConflictError.
func (r *Repository) Insert(ctx context.Context, flowType models.FlowType, userID string, answers models.Answers, identities []Identity) (*models.Submission, error) {
	payload, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal answers: %v", ErrInsertFailed, err)
	}

	sub := &models.Submission{
		ID:        uuid.New().String(),
		FlowType:  flowType,
		UserID:    userID,
		Answers:   answers,
		Status:    models.SubmissionStatusSubmitted,
		CreatedAt: r.now().UTC().Format(time.RFC3339),
	}

	err = r.pg.WithTx(ctx, func(tx *sql.Tx) error {
		for _, id := range identities {
			var owner string
			err := tx.QueryRowContext(ctx, `
				INSERT INTO identity_registry (category, value, user_id, created_at)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (category, value) DO UPDATE SET category = EXCLUDED.category
				RETURNING user_id`, id.Category, id.Value, userID, sub.CreatedAt).Scan(&owner)
			if err != nil {
				return fmt.Errorf("%w: register %s: %v", ErrInsertFailed, id.Category, err)
			}
			if owner != userID {
				return &IdentityConflictError{Field: id.Field, Category: id.Category}
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO onboarding_submissions (id, flow_type, user_id, answers, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			sub.ID, string(flowType), userID, payload, sub.Status, sub.CreatedAt,
		); err != nil {
			return fmt.Errorf("%w: %v", ErrInsertFailed, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}
