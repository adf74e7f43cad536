package automation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/recall/pkg/entity"
	"github.com/recallhq/recall/pkg/relevance"
)

type mapEnv struct {
	tasks    map[string]*entity.Task
	memories map[string]*entity.Memory
}

func (e mapEnv) Task(id string) (*entity.Task, bool) {
	t, ok := e.tasks[id]
	return t, ok
}

func (e mapEnv) Memory(id string) (*entity.Memory, bool) {
	m, ok := e.memories[id]
	return m, ok
}

func testClassifier() Classifier {
	return relevance.NewPatternClassifier(relevance.DefaultPatterns())
}

func TestSubtaskCompletionRule(t *testing.T) {
	rule := &SubtaskCompletionRule{}

	t.Run("all subtasks done proposes done", func(t *testing.T) {
		env := mapEnv{tasks: map[string]*entity.Task{
			"task-s1": {ID: "task-s1", Status: entity.StatusDone},
			"task-s2": {ID: "task-s2", Status: entity.StatusDone},
		}}
		task := &entity.Task{ID: "task-p", Status: entity.StatusInProgress, SubtaskIDs: []string{"task-s1", "task-s2"}}

		d, err := rule.Evaluate(task, env)
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, entity.StatusDone, d.To)
		assert.Equal(t, 0.95, d.Confidence)
		assert.False(t, d.Advisory)
	})

	t.Run("blocked subtask blocks in-progress parent", func(t *testing.T) {
		env := mapEnv{tasks: map[string]*entity.Task{
			"task-s1": {ID: "task-s1", Status: entity.StatusDone},
			"task-s2": {ID: "task-s2", Status: entity.StatusBlocked},
		}}
		task := &entity.Task{ID: "task-p", Status: entity.StatusInProgress, SubtaskIDs: []string{"task-s1", "task-s2"}}

		d, err := rule.Evaluate(task, env)
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, entity.StatusBlocked, d.To)
		assert.Equal(t, 0.7, d.Confidence)
	})

	t.Run("already done parent stays quiet", func(t *testing.T) {
		env := mapEnv{tasks: map[string]*entity.Task{
			"task-s1": {ID: "task-s1", Status: entity.StatusDone},
		}}
		task := &entity.Task{ID: "task-p", Status: entity.StatusDone, SubtaskIDs: []string{"task-s1"}}

		d, err := rule.Evaluate(task, env)
		require.NoError(t, err)
		assert.Nil(t, d)
	})

	t.Run("unresolvable subtasks are skipped", func(t *testing.T) {
		env := mapEnv{tasks: map[string]*entity.Task{
			"task-s1": {ID: "task-s1", Status: entity.StatusDone},
		}}
		task := &entity.Task{ID: "task-p", Status: entity.StatusInProgress, SubtaskIDs: []string{"task-s1", "task-gone"}}

		d, err := rule.Evaluate(task, env)
		require.NoError(t, err)
		require.NotNil(t, d, "the one resolvable subtask is done")
		assert.Equal(t, entity.StatusDone, d.To)
	})

	t.Run("no subtasks no opinion", func(t *testing.T) {
		d, err := rule.Evaluate(&entity.Task{ID: "task-p", Status: entity.StatusTodo}, mapEnv{})
		require.NoError(t, err)
		assert.Nil(t, d)
	})
}

func TestMemoryEvidenceRule(t *testing.T) {
	rule := &MemoryEvidenceRule{Classifier: testClassifier()}
	now := time.Now()

	t.Run("recent completion evidence proposes done", func(t *testing.T) {
		env := mapEnv{memories: map[string]*entity.Memory{
			"mem-1": {ID: "mem-1", Content: "Implemented JWT auth middleware successfully, tests passing"},
		}}
		task := &entity.Task{
			ID: "task-1", Status: entity.StatusInProgress,
			Connections: []entity.Connection{
				{FromID: "task-1", ToID: "mem-1", Type: entity.ConnectionRelated, Created: now},
			},
		}

		d, err := rule.Evaluate(task, env)
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, entity.StatusDone, d.To)
		assert.Greater(t, d.Confidence, 0.7)
	})

	t.Run("connections outside the window are ignored", func(t *testing.T) {
		env := mapEnv{memories: map[string]*entity.Memory{
			"mem-1": {ID: "mem-1", Content: "deployed and finished"},
		}}
		task := &entity.Task{
			ID: "task-1", Status: entity.StatusInProgress,
			Connections: []entity.Connection{
				{FromID: "task-1", ToID: "mem-1", Type: entity.ConnectionRelated, Created: now.Add(-48 * time.Hour)},
			},
		}

		d, err := rule.Evaluate(task, env)
		require.NoError(t, err)
		assert.Nil(t, d)
	})

	t.Run("old edge refreshed by re-linking counts as fresh evidence", func(t *testing.T) {
		env := mapEnv{memories: map[string]*entity.Memory{
			"mem-1": {ID: "mem-1", Content: "Implemented JWT auth middleware successfully, tests passing"},
		}}
		task := &entity.Task{
			ID: "task-1", Status: entity.StatusInProgress,
			Connections: []entity.Connection{
				{FromID: "task-1", ToID: "mem-1", Type: entity.ConnectionRelated,
					Created: now.Add(-72 * time.Hour), Updated: now},
			},
		}

		d, err := rule.Evaluate(task, env)
		require.NoError(t, err)
		require.NotNil(t, d, "a merged edge bumps Updated and re-enters the window")
		assert.Equal(t, entity.StatusDone, d.To)
	})

	t.Run("low average confidence is not enough", func(t *testing.T) {
		env := mapEnv{memories: map[string]*entity.Memory{
			"mem-1": {ID: "mem-1", Content: "still pending, need to write the migration"},
		}}
		task := &entity.Task{
			ID: "task-1", Status: entity.StatusInProgress,
			Connections: []entity.Connection{
				{FromID: "task-1", ToID: "mem-1", Type: entity.ConnectionRelated, Created: now},
			},
		}

		d, err := rule.Evaluate(task, env)
		require.NoError(t, err)
		assert.Nil(t, d, "todo intent confidence 0.6 stays under the bar")
	})

	t.Run("blocked evidence proposes blocked", func(t *testing.T) {
		env := mapEnv{memories: map[string]*entity.Memory{
			"mem-1": {ID: "mem-1", Content: "stuck waiting on the infra team for database access"},
		}}
		task := &entity.Task{
			ID: "task-1", Status: entity.StatusInProgress,
			Connections: []entity.Connection{
				{FromID: "task-1", ToID: "mem-1", Type: entity.ConnectionRelated, Created: now},
			},
		}

		d, err := rule.Evaluate(task, env)
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, entity.StatusBlocked, d.To)
	})
}

func TestTimeAdvisoryRule(t *testing.T) {
	rule := &TimeAdvisoryRule{}

	t.Run("stale in-progress task", func(t *testing.T) {
		task := &entity.Task{
			ID: "task-1", Status: entity.StatusInProgress,
			Updated: time.Now().Add(-8 * 24 * time.Hour),
		}
		d, err := rule.Evaluate(task, mapEnv{})
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.True(t, d.Advisory)
	})

	t.Run("stale urgent todo", func(t *testing.T) {
		task := &entity.Task{
			ID: "task-1", Status: entity.StatusTodo, Priority: entity.PriorityUrgent,
			Updated: time.Now().Add(-4 * 24 * time.Hour),
		}
		d, err := rule.Evaluate(task, mapEnv{})
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.True(t, d.Advisory)
		assert.Equal(t, entity.StatusInProgress, d.To)
	})

	t.Run("fresh task stays quiet", func(t *testing.T) {
		task := &entity.Task{ID: "task-1", Status: entity.StatusInProgress, Updated: time.Now()}
		d, err := rule.Evaluate(task, mapEnv{})
		require.NoError(t, err)
		assert.Nil(t, d)
	})

	t.Run("non-urgent stale todo stays quiet", func(t *testing.T) {
		task := &entity.Task{
			ID: "task-1", Status: entity.StatusTodo, Priority: entity.PriorityMedium,
			Updated: time.Now().Add(-10 * 24 * time.Hour),
		}
		d, err := rule.Evaluate(task, mapEnv{})
		require.NoError(t, err)
		assert.Nil(t, d)
	})
}

func TestDependencyRule(t *testing.T) {
	rule := &DependencyRule{Classifier: testClassifier()}

	t.Run("parent in progress unblocks child", func(t *testing.T) {
		env := mapEnv{tasks: map[string]*entity.Task{
			"task-p": {ID: "task-p", Status: entity.StatusInProgress},
		}}
		task := &entity.Task{ID: "task-1", Status: entity.StatusBlocked, ParentID: "task-p", Updated: time.Now()}

		d, err := rule.Evaluate(task, env)
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, entity.StatusTodo, d.To)
		assert.Equal(t, 0.8, d.Confidence)
		assert.False(t, d.Advisory)
	})

	t.Run("long-blocked without blocking keyword is advisory", func(t *testing.T) {
		task := &entity.Task{
			ID: "task-1", Title: "Refactor billing", Status: entity.StatusBlocked,
			Updated: time.Now().Add(-6 * 24 * time.Hour),
		}
		d, err := rule.Evaluate(task, mapEnv{})
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.True(t, d.Advisory)
	})

	t.Run("blocking keyword in text suppresses the advisory", func(t *testing.T) {
		task := &entity.Task{
			ID: "task-1", Title: "Refactor billing", Description: "waiting on vendor API keys",
			Status:  entity.StatusBlocked,
			Updated: time.Now().Add(-6 * 24 * time.Hour),
		}
		d, err := rule.Evaluate(task, mapEnv{})
		require.NoError(t, err)
		assert.Nil(t, d)
	})

	t.Run("non-blocked task stays quiet", func(t *testing.T) {
		task := &entity.Task{ID: "task-1", Status: entity.StatusInProgress, ParentID: "task-p"}
		d, err := rule.Evaluate(task, mapEnv{})
		require.NoError(t, err)
		assert.Nil(t, d)
	})
}

func TestWorkflowRule(t *testing.T) {
	rule := &WorkflowRule{Classifier: testClassifier()}

	t.Run("code category needs both phrases", func(t *testing.T) {
		task := &entity.Task{
			ID: "task-1", Status: entity.StatusInProgress, Category: "code",
			Description: "testing complete and review complete, ready to ship",
		}
		d, err := rule.Evaluate(task, mapEnv{})
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, entity.StatusDone, d.To)
		assert.Equal(t, 0.8, d.Confidence)
	})

	t.Run("one of two required phrases is not enough", func(t *testing.T) {
		task := &entity.Task{
			ID: "task-1", Status: entity.StatusInProgress, Category: "code",
			Description: "testing complete, review still open",
		}
		d, err := rule.Evaluate(task, mapEnv{})
		require.NoError(t, err)
		assert.Nil(t, d)
	})

	t.Run("research category needs any phrase", func(t *testing.T) {
		task := &entity.Task{
			ID: "task-1", Status: entity.StatusInProgress, Category: "research",
			Description: "findings documented in the shared doc",
		}
		d, err := rule.Evaluate(task, mapEnv{})
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, 0.75, d.Confidence)
	})

	t.Run("linked memory text counts", func(t *testing.T) {
		env := mapEnv{memories: map[string]*entity.Memory{
			"mem-1": {ID: "mem-1", Content: "review complete, approved by two reviewers"},
		}}
		task := &entity.Task{
			ID: "task-1", Status: entity.StatusInProgress, Category: "code",
			Description: "testing complete",
			Connections: []entity.Connection{
				{FromID: "task-1", ToID: "mem-1", Type: entity.ConnectionRelated, Created: time.Now()},
			},
		}
		d, err := rule.Evaluate(task, env)
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, entity.StatusDone, d.To)
	})

	t.Run("uncategorized task stays quiet", func(t *testing.T) {
		task := &entity.Task{ID: "task-1", Status: entity.StatusInProgress, Description: "testing complete and review complete"}
		d, err := rule.Evaluate(task, mapEnv{})
		require.NoError(t, err)
		assert.Nil(t, d)
	})
}
