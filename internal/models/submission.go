package models

// Submission is the completed answer set as persisted by the save endpoint.
type Submission struct {
	ID        string   `json:"id"`
	FlowType  FlowType `json:"flowType"`
	UserID    string   `json:"userId"`
	Answers   Answers  `json:"answers"`
	Status    string   `json:"status"`
	CreatedAt string   `json:"createdAt"`
}

const (
	SubmissionStatusSubmitted = "submitted"
)

// UniquenessRequest is the body of the uniqueness-check endpoint.
type UniquenessRequest struct {
	CandidateValue string `json:"candidateValue"`
	Category       string `json:"category"`
	UserID         string `json:"userId,omitempty"`
}

// UniquenessResponse is the uniqueness-check endpoint reply.
type UniquenessResponse struct {
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// SaveFailure is the optional body of a failed save, naming the offending field.
type SaveFailure struct {
	Field string `json:"field,omitempty"`
	Error string `json:"error,omitempty"`
}
