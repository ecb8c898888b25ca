// internal/flow/completion/hooks.go
package completion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"onboarding-flow/internal/models"
)

// Hook is a best-effort side effect of a saved completion. Failures are logged
// by the handler and never reach the user.
type Hook interface {
	Name() string
	Applies(flowType models.FlowType) bool
	Run(ctx context.Context, event Event) error
}

// Define interfaces for mocking
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, textBody, htmlBody string) (string, error)
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, payload interface{}) (string, error)
}

type ProcessStarter interface {
	StartProcess(ctx context.Context, processID string, variables map[string]interface{}) (int64, error)
}

type DocumentIndexer interface {
	IndexDocument(ctx context.Context, index, id string, doc interface{}) error
}

func appliesTo(flows []models.FlowType, flowType models.FlowType) bool {
	if len(flows) == 0 {
		return true
	}
	for _, f := range flows {
		if f == flowType {
			return true
		}
	}
	return false
}

// ==========================
// Welcome e-mail (SES)
// ==========================

type WelcomeEmailHook struct {
	mailer Mailer
}

func NewWelcomeEmailHook(mailer Mailer) *WelcomeEmailHook {
	return &WelcomeEmailHook{mailer: mailer}
}

func (h *WelcomeEmailHook) Name() string { return "welcome-email" }

func (h *WelcomeEmailHook) Applies(models.FlowType) bool { return true }

func (h *WelcomeEmailHook) Run(ctx context.Context, event Event) error {
	to, _ := event.Answers["email"].(string)
	if strings.TrimSpace(to) == "" {
		return nil
	}

	tmpl, ok := welcomeTemplates[event.FlowType]
	if !ok {
		return fmt.Errorf("no welcome template for flow %s", event.FlowType)
	}
	data := map[string]interface{}{"name": firstName(event.Answers["name"])}

	_, err := h.mailer.SendEmail(ctx, to,
		renderTemplate(tmpl.subject, data),
		renderTemplate(tmpl.text, data),
		renderTemplate(tmpl.html, data),
	)
	return err
}

type emailTemplate struct {
	subject string
	text    string
	html    string
}

var welcomeTemplates = map[models.FlowType]emailTemplate{
	models.FlowFamily: {
		subject: "Welcome, {{name}}!",
		text:    "Hi {{name}}, your family profile is complete. We will start matching caregivers for you.",
		html:    "<p>Hi {{name}},</p><p>Your family profile is complete. We will start matching caregivers for you.</p>",
	},
	models.FlowNanny: {
		subject: "Welcome, {{name}}!",
		text:    "Hi {{name}}, your caregiver profile was received and is now under review.",
		html:    "<p>Hi {{name}},</p><p>Your caregiver profile was received and is now under review.</p>",
	},
}

func firstName(v interface{}) string {
	s, _ := v.(string)
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}

// renderTemplate replaces {{key}} placeholders and drops unknown ones.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl
	for k, v := range data {
		result = strings.ReplaceAll(result, "{{"+k+"}}", fmt.Sprint(v))
	}
	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		result = result[:start] + result[start+end+2:]
	}
	return result
}

// ==========================
// Completion event (SNS)
// ==========================

type EventHook struct {
	publisher EventPublisher
}

func NewEventHook(publisher EventPublisher) *EventHook {
	return &EventHook{publisher: publisher}
}

func (h *EventHook) Name() string { return "completion-event" }

func (h *EventHook) Applies(models.FlowType) bool { return true }

func (h *EventHook) Run(ctx context.Context, event Event) error {
	_, err := h.publisher.PublishEvent(ctx, EventTypeCompleted, eventPayload{
		SessionID:   event.SessionID,
		FlowType:    event.FlowType,
		UserID:      event.UserID,
		Fields:      len(event.Answers),
		CompletedAt: event.CompletedAt.Format(time.RFC3339),
	})
	return err
}

// ==========================
// Review process (Zeebe)
// ==========================

type ReviewProcessHook struct {
	starter   ProcessStarter
	processID string
	flows     []models.FlowType
}

// NewReviewProcessHook starts processID for the given flows; none means all.
func NewReviewProcessHook(starter ProcessStarter, processID string, flows ...models.FlowType) *ReviewProcessHook {
	return &ReviewProcessHook{starter: starter, processID: processID, flows: flows}
}

func (h *ReviewProcessHook) Name() string { return "review-process" }

func (h *ReviewProcessHook) Applies(flowType models.FlowType) bool {
	return appliesTo(h.flows, flowType)
}

func (h *ReviewProcessHook) Run(ctx context.Context, event Event) error {
	_, err := h.starter.StartProcess(ctx, h.processID, map[string]interface{}{
		"sessionId":   event.SessionID,
		"flowType":    string(event.FlowType),
		"userId":      event.UserID,
		"answers":     map[string]interface{}(event.Answers),
		"completedAt": event.CompletedAt.Format(time.RFC3339),
	})
	return err
}

// ==========================
// Profile indexing (Elasticsearch)
// ==========================

type ProfileIndexHook struct {
	indexer DocumentIndexer
	index   string
}

func NewProfileIndexHook(indexer DocumentIndexer, index string) *ProfileIndexHook {
	return &ProfileIndexHook{indexer: indexer, index: index}
}

func (h *ProfileIndexHook) Name() string { return "profile-index" }

// Applies only to caregivers; family profiles are not searchable.
func (h *ProfileIndexHook) Applies(flowType models.FlowType) bool {
	return flowType == models.FlowNanny
}

func (h *ProfileIndexHook) Run(ctx context.Context, event Event) error {
	a := event.Answers
	doc := profileDocument{
		UserID:          event.UserID,
		Name:            a["name"],
		ExperienceYears: a["experienceYears"],
		AgeGroups:       a["ageGroups"],
		Weekdays:        a["weekdays"],
		Periods:         a["periods"],
		HourlyRate:      a["hourlyRate"],
		Bio:             a["bio"],
		Photos:          a["photos"],
		IndexedAt:       event.CompletedAt.Format(time.RFC3339),
	}
	if addr, ok := a["address"].(map[string]interface{}); ok {
		doc.City = addr["city"]
		doc.State = addr["state"]
	}
	return h.indexer.IndexDocument(ctx, h.index, event.UserID, doc)
}
