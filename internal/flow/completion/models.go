// internal/flow/completion/models.go
package completion

import (
	"time"

	"onboarding-flow/internal/models"
)

// Event describes a session whose answers were saved.
type Event struct {
	SessionID   string          `json:"sessionId"`
	FlowType    models.FlowType `json:"flowType"`
	UserID      string          `json:"userId"`
	Answers     models.Answers  `json:"answers"`
	CompletedAt time.Time       `json:"completedAt"`
}

// EventTypeCompleted is the SNS eventType attribute of a completion.
const EventTypeCompleted = "onboarding.completed"

// Outcomes recorded on the completions counter.
const (
	OutcomeSaved    = "saved"
	OutcomeFailed   = "failed"
	OutcomeInFlight = "in_flight"
)

// eventPayload is what leaves the service on the event topic; answers stay out.
type eventPayload struct {
	SessionID   string          `json:"sessionId"`
	FlowType    models.FlowType `json:"flowType"`
	UserID      string          `json:"userId"`
	Fields      int             `json:"fields"`
	CompletedAt string          `json:"completedAt"`
}

// profileDocument is the nanny search document.
type profileDocument struct {
	UserID          string      `json:"userId"`
	Name            interface{} `json:"name,omitempty"`
	City            interface{} `json:"city,omitempty"`
	State           interface{} `json:"state,omitempty"`
	ExperienceYears interface{} `json:"experienceYears,omitempty"`
	AgeGroups       interface{} `json:"ageGroups,omitempty"`
	Weekdays        interface{} `json:"weekdays,omitempty"`
	Periods         interface{} `json:"periods,omitempty"`
	HourlyRate      interface{} `json:"hourlyRate,omitempty"`
	Bio             interface{} `json:"bio,omitempty"`
	Photos          interface{} `json:"photos,omitempty"`
	IndexedAt       string      `json:"indexedAt"`
}
