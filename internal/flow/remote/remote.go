// Package remote talks to the uniqueness-check and completion-save endpoints.
package remote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"onboarding-flow/internal/common/errors"
	commonhttp "onboarding-flow/internal/common/http"
	"onboarding-flow/internal/common/logger"
	"onboarding-flow/internal/common/metrics"
	"onboarding-flow/internal/common/observability"
	"onboarding-flow/internal/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// UniquenessChecker asks whether a value is still free in its category.
type UniquenessChecker interface {
	Check(ctx context.Context, category, value, userID string) (models.UniquenessResponse, error)
}

// Saver persists a completed answer map. A failure is a PERSISTENCE_FAILED
// StandardError whose Field, when set, names the offending answer.
type Saver interface {
	Save(ctx context.Context, flowType models.FlowType, userID string, answers models.Answers) error
}

// ==========================
// Uniqueness
// ==========================

type UniquenessClient struct {
	http   *commonhttp.Client
	url    string
	logger logger.Logger
	obs    *observability.Observability
}

func NewUniquenessClient(http *commonhttp.Client, url string, log logger.Logger, obs *observability.Observability) *UniquenessClient {
	return &UniquenessClient{http: http, url: url, logger: log, obs: obs}
}

// Check posts {candidateValue, category}. Transport failures and non-2xx
// replies are returned as errors.
func (c *UniquenessClient) Check(ctx context.Context, category, value, userID string) (models.UniquenessResponse, error) {
	ctx, span := c.obs.StartSpan(ctx, "remote.uniqueness", attribute.String("category", category))
	defer span.End()
	start := time.Now()

	var out models.UniquenessResponse
	resp, err := c.http.PostJSON(ctx, c.url, models.UniquenessRequest{
		CandidateValue: value,
		Category:       category,
		UserID:         userID,
	})
	if err == nil && !resp.OK() {
		err = fmt.Errorf("uniqueness endpoint returned %d", resp.StatusCode)
	}
	if err == nil {
		err = resp.Decode(&out)
	}

	c.record(ctx, "uniqueness", start, err)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("uniqueness check failed", map[string]interface{}{"category": category, "error": err})
		return models.UniquenessResponse{}, errors.NewExternalServiceError("uniqueness", err)
	}
	return out, nil
}

func (c *UniquenessClient) record(ctx context.Context, endpoint string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RemoteCallDuration.WithLabelValues(endpoint, outcome).Observe(time.Since(start).Seconds())
	c.obs.RecordRemoteCall(ctx, endpoint, time.Since(start), outcome)
}

// ==========================
// Save
// ==========================

type SaveClient struct {
	http   *commonhttp.Client
	url    string
	logger logger.Logger
	obs    *observability.Observability
}

// NewSaveClient posts to url; a "{flowType}" placeholder is replaced per call.
func NewSaveClient(http *commonhttp.Client, url string, log logger.Logger, obs *observability.Observability) *SaveClient {
	return &SaveClient{http: http, url: url, logger: log, obs: obs}
}

// Save posts the full answer map as the JSON body. Any 2xx is success.
func (c *SaveClient) Save(ctx context.Context, flowType models.FlowType, userID string, answers models.Answers) error {
	ctx, span := c.obs.StartSpan(ctx, "remote.save", attribute.String("flow_type", string(flowType)))
	defer span.End()
	start := time.Now()

	url := strings.ReplaceAll(c.url, "{flowType}", string(flowType))
	resp, err := c.http.PostJSON(ctx, url, answers,
		commonhttp.WithHeader("X-User-ID", userID),
		commonhttp.WithHeader("X-Flow-Type", string(flowType)),
	)

	outcome := "ok"
	defer func() {
		metrics.RemoteCallDuration.WithLabelValues("save", outcome).Observe(time.Since(start).Seconds())
		c.obs.RecordRemoteCall(ctx, "save", time.Since(start), outcome)
	}()

	if err != nil {
		outcome = "error"
		span.SetStatus(codes.Error, err.Error())
		return errors.NewPersistenceError("", "", err)
	}
	if resp.OK() {
		return nil
	}

	outcome = "rejected"
	var failure models.SaveFailure
	if decodeErr := resp.Decode(&failure); decodeErr != nil {
		c.logger.Warn("unreadable save failure body", map[string]interface{}{"status": resp.StatusCode, "error": decodeErr})
	}
	span.SetStatus(codes.Error, fmt.Sprintf("status %d", resp.StatusCode))
	c.logger.Warn("save rejected", map[string]interface{}{
		"status": resp.StatusCode,
		"field":  failure.Field,
	})
	return errors.NewPersistenceError(failure.Field, failure.Error, fmt.Errorf("save endpoint returned %d", resp.StatusCode))
}
