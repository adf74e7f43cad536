package automation

import (
	"fmt"
	"strings"
	"time"

	"github.com/recallhq/recall/pkg/entity"
	"github.com/recallhq/recall/pkg/relevance"
)

// Env gives rules read access to the entity pool.
type Env interface {
	Task(id string) (*entity.Task, bool)
	Memory(id string) (*entity.Memory, bool)
}

// Classifier is the text-intent collaborator consulted by the
// memory-evidence, dependency and workflow rules.
// *relevance.PatternClassifier satisfies it; an embedding-backed
// implementation can be substituted without touching the rules.
type Classifier interface {
	Classify(text string, current entity.Status) (relevance.Intent, bool)
	Workflow(category, text string, current entity.Status) (relevance.Intent, bool)
	BlockingKeywords() []string
}

// Rule proposes at most one status change for a task. Returning
// (nil, nil) means no opinion.
type Rule interface {
	Name() string
	Evaluate(task *entity.Task, env Env) (*Decision, error)
}

// DefaultRules returns the rule set in evaluation order. The first
// rule that returns a decision wins the cycle.
func DefaultRules(classifier Classifier) []Rule {
	return []Rule{
		&SubtaskCompletionRule{},
		&MemoryEvidenceRule{Classifier: classifier},
		&TimeAdvisoryRule{},
		&DependencyRule{Classifier: classifier},
		&WorkflowRule{Classifier: classifier},
	}
}

// SubtaskCompletionRule closes a task when every resolvable subtask is
// done, and blocks an in-progress task when any subtask is blocked.
type SubtaskCompletionRule struct{}

func (r *SubtaskCompletionRule) Name() string { return "subtask_completion" }

func (r *SubtaskCompletionRule) Evaluate(task *entity.Task, env Env) (*Decision, error) {
	if len(task.SubtaskIDs) == 0 {
		return nil, nil
	}

	var resolved, done, blocked int
	for _, id := range task.SubtaskIDs {
		sub, ok := env.Task(id)
		if !ok {
			continue
		}
		resolved++
		switch sub.Status {
		case entity.StatusDone:
			done++
		case entity.StatusBlocked:
			blocked++
		}
	}
	if resolved == 0 {
		return nil, nil
	}

	if done == resolved && task.Status != entity.StatusDone {
		details := fmt.Sprintf("all %d subtasks done", resolved)
		return newDecision(task, entity.StatusDone, 0.95, r.Name(), details), nil
	}
	if blocked > 0 && task.Status == entity.StatusInProgress {
		details := fmt.Sprintf("%d of %d subtasks blocked", blocked, resolved)
		return newDecision(task, entity.StatusBlocked, 0.7, r.Name(), details), nil
	}
	return nil, nil
}

// MemoryEvidenceRule reads recently linked memories and classifies
// their text for status intent. A status is proposed when at least one
// signal points at it and the average confidence clears the bar.
type MemoryEvidenceRule struct {
	Classifier Classifier
}

func (r *MemoryEvidenceRule) Name() string { return "memory_evidence" }

type evidenceTally struct {
	count  int
	sum    float64
	phrase string
	newest time.Time
}

func (r *MemoryEvidenceRule) Evaluate(task *entity.Task, env Env) (*Decision, error) {
	if r.Classifier == nil || len(task.Connections) == 0 {
		return nil, nil
	}

	cutoff := time.Now().Add(-EvidenceWindow)
	tallies := make(map[entity.Status]*evidenceTally)

	for _, conn := range task.Connections {
		if conn.LastActive().Before(cutoff) {
			continue
		}
		mem, ok := env.Memory(conn.ToID)
		if !ok {
			continue
		}
		intent, ok := r.Classifier.Classify(memoryText(mem), task.Status)
		if !ok {
			continue
		}
		t := tallies[intent.Status]
		if t == nil {
			t = &evidenceTally{}
			tallies[intent.Status] = t
		}
		t.count++
		t.sum += intent.Confidence
		if at := conn.LastActive(); at.After(t.newest) {
			t.newest = at
			t.phrase = intent.MatchedPhrase
		}
	}

	var (
		best      entity.Status
		bestTally *evidenceTally
		bestAvg   float64
	)
	for status, t := range tallies {
		avg := t.sum / float64(t.count)
		if avg <= evidenceMinConfidence {
			continue
		}
		if bestTally == nil || avg > bestAvg || (avg == bestAvg && t.count > bestTally.count) {
			best, bestTally, bestAvg = status, t, avg
		}
	}
	if bestTally == nil {
		return nil, nil
	}

	details := fmt.Sprintf("%d evidence signal(s), last matched %q", bestTally.count, bestTally.phrase)
	return newDecision(task, best, bestAvg, r.Name(), details), nil
}

// TimeAdvisoryRule flags tasks that have gone quiet. It only ever
// produces advisory decisions.
type TimeAdvisoryRule struct{}

func (r *TimeAdvisoryRule) Name() string { return "time_advisory" }

func (r *TimeAdvisoryRule) Evaluate(task *entity.Task, _ Env) (*Decision, error) {
	idle := time.Since(task.Updated)

	if task.Status == entity.StatusInProgress && idle > staleInProgress {
		details := fmt.Sprintf("in progress with no updates for %d days", int(idle.Hours()/24))
		return newAdvisory(task, entity.StatusBlocked, 0.5, r.Name(), details), nil
	}
	if task.Status == entity.StatusTodo && task.Priority == entity.PriorityUrgent && idle > staleUrgentTodo {
		details := fmt.Sprintf("urgent and untouched for %d days", int(idle.Hours()/24))
		return newAdvisory(task, entity.StatusInProgress, 0.5, r.Name(), details), nil
	}
	return nil, nil
}

// DependencyRule unblocks a task once its parent is moving again, and
// flags long-blocked tasks whose text carries no blocking keyword.
type DependencyRule struct {
	Classifier Classifier
}

func (r *DependencyRule) Name() string { return "dependency_resolution" }

func (r *DependencyRule) Evaluate(task *entity.Task, env Env) (*Decision, error) {
	if task.Status != entity.StatusBlocked {
		return nil, nil
	}

	if task.ParentID != "" {
		if parent, ok := env.Task(task.ParentID); ok && parent.Status == entity.StatusInProgress {
			details := fmt.Sprintf("parent %s is in progress", parent.ID)
			return newDecision(task, entity.StatusTodo, 0.8, r.Name(), details), nil
		}
	}

	if time.Since(task.Updated) > staleBlocked && !r.mentionsBlocker(task) {
		details := fmt.Sprintf("blocked for %d days with no blocking keyword", int(time.Since(task.Updated).Hours()/24))
		return newAdvisory(task, entity.StatusTodo, 0.6, r.Name(), details), nil
	}
	return nil, nil
}

func (r *DependencyRule) mentionsBlocker(task *entity.Task) bool {
	if r.Classifier == nil {
		return false
	}
	text := strings.ToLower(task.Title + " " + task.Description)
	for _, kw := range r.Classifier.BlockingKeywords() {
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// WorkflowRule applies category-specific phrase heuristics to the
// task's own text plus recently linked memory text.
type WorkflowRule struct {
	Classifier Classifier
}

func (r *WorkflowRule) Name() string { return "workflow_pattern" }

func (r *WorkflowRule) Evaluate(task *entity.Task, env Env) (*Decision, error) {
	if r.Classifier == nil || task.Category == "" {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString(task.Title)
	sb.WriteByte(' ')
	sb.WriteString(task.Description)
	cutoff := time.Now().Add(-EvidenceWindow)
	for _, conn := range task.Connections {
		if conn.LastActive().Before(cutoff) {
			continue
		}
		if mem, ok := env.Memory(conn.ToID); ok {
			sb.WriteByte(' ')
			sb.WriteString(memoryText(mem))
		}
	}

	intent, ok := r.Classifier.Workflow(task.Category, sb.String(), task.Status)
	if !ok {
		return nil, nil
	}
	details := fmt.Sprintf("workflow pattern for category %q matched %q", task.Category, intent.MatchedPhrase)
	return newDecision(task, intent.Status, intent.Confidence, r.Name(), details), nil
}

func memoryText(m *entity.Memory) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{m.Title, m.Summary, m.Content} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
