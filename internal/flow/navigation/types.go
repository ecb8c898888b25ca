// Package navigation drives one session through its flow: it validates the
// current answer, runs the remote checks, moves the position and hands the
// terminal state to the completion handler.
package navigation

import (
	"onboarding-flow/internal/common/errors"
	"onboarding-flow/internal/flow/progress"
	"onboarding-flow/internal/models"
)

type Status string

const (
	StatusAdvanced Status = "advanced"
	StatusComplete Status = "complete"
	StatusExit     Status = "exit"
	// StatusBlocked leaves the position unchanged and carries an Error.
	StatusBlocked Status = "blocked"
	// StatusBusy means a previous call is suspended on a remote call; nothing changed.
	StatusBusy Status = "busy"
)

type TargetKind string

const (
	TargetIndex    TargetKind = "index"
	TargetComplete TargetKind = "complete"
	TargetExit     TargetKind = "exit"
)

// Target is an abstract destination; turning it into a page transition is the caller's job.
type Target struct {
	Kind  TargetKind `json:"kind"`
	Step  int        `json:"step"`
	Index int        `json:"index"`
}

func indexTarget(pos models.Position) Target {
	return Target{Kind: TargetIndex, Step: pos.Step, Index: pos.Index}
}

// Direction only drives transition animations.
type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
)

// Result is the outcome of one navigation call.
type Result struct {
	Status       Status                `json:"status"`
	Target       Target                `json:"target"`
	Direction    Direction             `json:"direction,omitempty"`
	Interstitial *models.Section       `json:"interstitial,omitempty"`
	Progress     progress.Progress     `json:"progress"`
	Error        *errors.StandardError `json:"error,omitempty"`
}

// State is a read-only snapshot for the view layer.
type State struct {
	SessionID    string                `json:"sessionId"`
	FlowType     models.FlowType       `json:"flowType"`
	Position     models.Position       `json:"position"`
	Number       int                   `json:"number"`
	Question     *models.Question      `json:"question,omitempty"`
	Value        interface{}           `json:"value,omitempty"`
	Answers      models.Answers        `json:"answers"`
	Progress     progress.Progress     `json:"progress"`
	Direction    Direction             `json:"direction,omitempty"`
	Interstitial *models.Section       `json:"interstitial,omitempty"`
	Error        *errors.StandardError `json:"error,omitempty"`
	Busy         bool                  `json:"busy"`
	Completed    bool                  `json:"completed"`
}
