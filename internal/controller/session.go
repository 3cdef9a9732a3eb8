package controller

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ZeroSumQuant/cake/internal/stage"
)

// TaskSession tracks one supervised task. The controller is its sole mutator;
// every other component communicates via the bus, never by touching this.
type TaskSession struct {
	TaskID    string      `json:"task_id"`
	State     State       `json:"state"`
	Stage     stage.Stage `json:"stage"`
	StartedAt time.Time   `json:"started_at"`

	// Incident bookkeeping: reset when an incident closes.
	IncidentStart time.Time `json:"incident_start,omitempty"`
	RetriesUsed   int       `json:"retries_used"`
}

// NewTaskSession creates a session in its initial state.
func NewTaskSession() *TaskSession {
	return &TaskSession{
		TaskID:    uuid.NewString(),
		State:     Monitoring,
		Stage:     stage.Think,
		StartedAt: time.Now(),
	}
}

// transition moves the session along the lifecycle chain. Illegal requests
// are rejected and the session stays in its last valid state.
func (s *TaskSession) transition(to State) error {
	if !canTransition(s.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.State, to)
	}
	s.State = to
	return nil
}

// advanceStage routes the task lifecycle stage.
func (s *TaskSession) advanceStage(outcome stage.Outcome) error {
	next, err := stage.Advance(s.Stage, outcome)
	if err != nil {
		return err
	}
	s.Stage = next
	return nil
}

// openIncident stamps the start of a new incident if none is open.
func (s *TaskSession) openIncident(now time.Time) {
	if s.IncidentStart.IsZero() {
		s.IncidentStart = now
	}
}

// closeIncident resets incident bookkeeping.
func (s *TaskSession) closeIncident() {
	s.IncidentStart = time.Time{}
	s.RetriesUsed = 0
}

// incidentElapsed reports how long the current incident has been open.
func (s *TaskSession) incidentElapsed(now time.Time) time.Duration {
	if s.IncidentStart.IsZero() {
		return 0
	}
	return now.Sub(s.IncidentStart)
}
