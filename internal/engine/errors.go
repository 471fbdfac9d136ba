package engine

import (
	"errors"
	"fmt"
)

var (
	ErrAgentNotFound = errors.New("agent not found")
	ErrInvalidRange  = errors.New("invalid date range")
)

// IntegrityWarning records a malformed record that was excluded from a
// computation. Warnings ride alongside results; they never abort a report.
type IntegrityWarning struct {
	AgentID string `json:"agent_id"`
	EventID string `json:"event_id,omitempty"`
	Reason  string `json:"reason"`
}

func (w IntegrityWarning) String() string {
	if w.EventID == "" {
		return fmt.Sprintf("agent %s: %s", w.AgentID, w.Reason)
	}
	return fmt.Sprintf("agent %s event %s: %s", w.AgentID, w.EventID, w.Reason)
}
