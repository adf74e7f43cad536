// Package automation evaluates tasks against an ordered rule set and
// proposes status transitions. Rules are pure: they inspect a task and
// its surroundings and return at most one Decision. Applying a decision
// is a separate step guarded by a staleness timeout and the state
// machine, so a proposal computed against since-changed state never
// lands.
package automation

import (
	"time"

	"github.com/google/uuid"

	"github.com/recallhq/recall/pkg/entity"
)

const (
	// StalenessTimeout is how old a decision may be before apply
	// rejects it.
	StalenessTimeout = time.Hour

	// EvidenceWindow bounds how far back the memory-evidence rule
	// looks at connections.
	EvidenceWindow = 24 * time.Hour

	evidenceMinConfidence = 0.7

	staleInProgress = 7 * 24 * time.Hour
	staleUrgentTodo = 3 * 24 * time.Hour
	staleBlocked    = 5 * 24 * time.Hour
)

// Decision is a proposed status change for a single task. Advisory
// decisions are surfaced to the caller but never applied.
type Decision struct {
	ID         string        `json:"id"`
	TaskID     string        `json:"task_id"`
	From       entity.Status `json:"from"`
	To         entity.Status `json:"to"`
	Confidence float64       `json:"confidence"`
	Rule       string        `json:"rule"`
	Advisory   bool          `json:"advisory,omitempty"`
	Details    string        `json:"details,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

func newDecision(task *entity.Task, to entity.Status, confidence float64, rule, details string) *Decision {
	return &Decision{
		ID:         uuid.NewString(),
		TaskID:     task.ID,
		From:       task.Status,
		To:         to,
		Confidence: confidence,
		Rule:       rule,
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	}
}

func newAdvisory(task *entity.Task, to entity.Status, confidence float64, rule, details string) *Decision {
	d := newDecision(task, to, confidence, rule, details)
	d.Advisory = true
	return d
}

// RunSummary reports one evaluation pass over the task pool.
type RunSummary struct {
	Evaluated  int         `json:"evaluated"`
	Proposed   int         `json:"proposed"`
	Applied    int         `json:"applied"`
	Rejected   int         `json:"rejected"`
	Advisories []*Decision `json:"advisories,omitempty"`
	Decisions  []*Decision `json:"decisions,omitempty"`
}
