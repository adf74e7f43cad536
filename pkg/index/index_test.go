package index

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/recall/pkg/entity"
	"github.com/recallhq/recall/pkg/store"
)

type staticLoader struct {
	snap *store.Snapshot
}

func (l *staticLoader) LoadAll(_ context.Context) (*store.Snapshot, error) {
	return l.snap, nil
}

func testIndex(t *testing.T, snap *store.Snapshot) *Index {
	t.Helper()
	ix := New(Config{Loader: &staticLoader{snap: snap}, Logger: zerolog.Nop()})
	require.NoError(t, ix.Rebuild(context.Background()))
	return ix
}

func mem(id, project string, ts time.Time) *entity.Memory {
	return &entity.Memory{ID: id, Project: project, Content: "content for " + id, Timestamp: ts}
}

func task(id, serial, project string, status entity.Status, created time.Time) *entity.Task {
	return &entity.Task{
		ID: id, Serial: serial, Title: "task " + id, Project: project,
		Status: status, Priority: entity.PriorityMedium, Created: created, Updated: created,
	}
}

func TestRebuildAndGet(t *testing.T) {
	now := time.Now()
	ix := testIndex(t, &store.Snapshot{
		Memories: []*entity.Memory{mem("mem-aaa111222333", "api", now)},
		Tasks:    []*entity.Task{task("task-bbb111222333", "TASK-00001", "api", entity.StatusTodo, now)},
	})

	m, ok := ix.Memory("mem-aaa111222333")
	require.True(t, ok)
	assert.Equal(t, "api", m.Project)

	_, ok = ix.Task("task-missing")
	assert.False(t, ok)
}

func TestRebuildHook(t *testing.T) {
	rebuilds := 0
	ix := New(Config{
		Loader:    &staticLoader{snap: &store.Snapshot{}},
		OnRebuild: func() { rebuilds++ },
		Logger:    zerolog.Nop(),
	})

	require.NoError(t, ix.Rebuild(context.Background()))
	assert.Equal(t, 1, rebuilds)

	// clean index must not rebuild
	require.NoError(t, ix.RefreshIfDirty(context.Background()))
	assert.Equal(t, 1, rebuilds)

	ix.MarkDirty()
	require.NoError(t, ix.RefreshIfDirty(context.Background()))
	assert.Equal(t, 2, rebuilds)
}

func TestListTasksFilters(t *testing.T) {
	now := time.Now()
	t1 := task("task-a11111111111", "TASK-00001", "api", entity.StatusTodo, now.Add(-3*time.Hour))
	t1.Category = "code"
	t1.Tags = []string{"auth"}
	t2 := task("task-b11111111111", "TASK-00002", "api", entity.StatusDone, now.Add(-2*time.Hour))
	t3 := task("task-c11111111111", "TASK-00003", "web", entity.StatusTodo, now.Add(-1*time.Hour))

	ix := testIndex(t, &store.Snapshot{Tasks: []*entity.Task{t1, t2, t3}})

	assert.Len(t, ix.ListTasks(Filter{Project: "api"}), 2)
	assert.Len(t, ix.ListTasks(Filter{Status: entity.StatusTodo}), 2)
	assert.Len(t, ix.ListTasks(Filter{Category: "code"}), 1)
	assert.Len(t, ix.ListTasks(Filter{Tag: "auth"}), 1)
	assert.Len(t, ix.ListTasks(Filter{Since: now.Add(-90 * time.Minute)}), 1)

	// newest first
	got := ix.ListTasks(Filter{})
	require.Len(t, got, 3)
	assert.Equal(t, t3.ID, got[0].ID)

	// pagination
	page := ix.ListTasks(Filter{Limit: 1, Offset: 1})
	require.Len(t, page, 1)
	assert.Equal(t, t2.ID, page[0].ID)
}

func TestResolveTaskExactAndSerial(t *testing.T) {
	now := time.Now()
	t1 := task("task-abc123def456", "TASK-00007", "api", entity.StatusTodo, now)
	ix := testIndex(t, &store.Snapshot{Tasks: []*entity.Task{t1}})

	got, err := ix.ResolveTask("task-abc123def456")
	require.NoError(t, err)
	assert.Equal(t, t1.ID, got.ID)

	got, err = ix.ResolveTask("TASK-00007")
	require.NoError(t, err)
	assert.Equal(t, t1.ID, got.ID)

	got, err = ix.ResolveTask("task-00007")
	require.NoError(t, err)
	assert.Equal(t, t1.ID, got.ID)
}

func TestResolveNearMatch(t *testing.T) {
	now := time.Now()
	t1 := task("task-abc123def456", "TASK-00001", "api", entity.StatusTodo, now)
	ix := testIndex(t, &store.Snapshot{Tasks: []*entity.Task{t1}})

	// one transposed character still resolves unambiguously
	got, err := ix.ResolveTask("task-abc123def465")
	require.NoError(t, err)
	assert.Equal(t, t1.ID, got.ID)

	// a distant id fails with a suggestion
	_, err = ix.ResolveTask("task-zzzzzzzzzzzz")
	var nf *entity.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, t1.ID, nf.Suggestion)
}

func TestResolveAmbiguousFails(t *testing.T) {
	now := time.Now()
	t1 := task("task-abc123def451", "TASK-00001", "api", entity.StatusTodo, now)
	t2 := task("task-abc123def452", "TASK-00002", "api", entity.StatusTodo, now)
	ix := testIndex(t, &store.Snapshot{Tasks: []*entity.Task{t1, t2}})

	// equally close to both candidates: must not guess
	_, err := ix.ResolveTask("task-abc123def453")
	var nf *entity.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.NotEmpty(t, nf.Suggestion)
}

func TestDirtyRefresh(t *testing.T) {
	now := time.Now()
	loader := &staticLoader{snap: &store.Snapshot{Memories: []*entity.Memory{mem("mem-a00000000001", "api", now)}}}
	ix := New(Config{Loader: loader, Logger: zerolog.Nop()})
	require.NoError(t, ix.Rebuild(context.Background()))

	loader.snap = &store.Snapshot{Memories: []*entity.Memory{
		mem("mem-a00000000001", "api", now),
		mem("mem-a00000000002", "api", now),
	}}

	// not dirty: refresh is a no-op
	require.NoError(t, ix.RefreshIfDirty(context.Background()))
	assert.Len(t, ix.Memories(), 1)

	ix.MarkDirty()
	require.NoError(t, ix.RefreshIfDirty(context.Background()))
	assert.Len(t, ix.Memories(), 2)
}

func TestMaxSerial(t *testing.T) {
	now := time.Now()
	ix := testIndex(t, &store.Snapshot{Tasks: []*entity.Task{
		task("task-a00000000001", "TASK-00004", "api", entity.StatusTodo, now),
		task("task-a00000000002", "TASK-00009", "api", entity.StatusTodo, now),
	}})
	assert.Equal(t, 9, ix.MaxSerial())
}
