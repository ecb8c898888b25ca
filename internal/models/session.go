package models

import "time"

// Session is one user's run through a flow. It never stores a position.
type Session struct {
	ID           string    `json:"id"`
	FlowType     FlowType  `json:"flowType"`
	UserID       string    `json:"userId"`
	StorageKey   string    `json:"storageKey"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// IsIdle reports whether the session has seen no activity for longer than ttl.
func (s *Session) IsIdle(ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.Sub(s.LastActivity) > ttl
}

// Touch updates the last activity timestamp.
func (s *Session) Touch(now time.Time) {
	s.LastActivity = now
}
