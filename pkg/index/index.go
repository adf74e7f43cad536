// Package index holds the in-memory id -> entity mapping that serves all
// reads. It is rebuilt in full from the document store and updated
// incrementally on every save/delete. The index is owned by the service
// and passed by reference; it never reaches for globals.
package index

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/recallhq/recall/pkg/entity"
	"github.com/recallhq/recall/pkg/store"
)

// Loader supplies full snapshots for rebuilds
type Loader interface {
	LoadAll(ctx context.Context) (*store.Snapshot, error)
}

// Index is the authoritative in-process read surface
type Index struct {
	mu        sync.RWMutex
	memories  map[string]*entity.Memory
	tasks     map[string]*entity.Task
	dirty     bool
	loader    Loader
	onRebuild func()
	logger    zerolog.Logger
}

// Config holds index configuration. OnRebuild may be nil.
type Config struct {
	Loader    Loader
	OnRebuild func() // called after each successful rebuild
	Logger    zerolog.Logger
}

// New creates an empty index. Call Rebuild to populate it.
func New(cfg Config) *Index {
	return &Index{
		memories:  make(map[string]*entity.Memory),
		tasks:     make(map[string]*entity.Task),
		loader:    cfg.Loader,
		onRebuild: cfg.OnRebuild,
		logger:    cfg.Logger.With().Str("component", "index").Logger(),
	}
}

// Rebuild replaces the index contents with a fresh snapshot
func (ix *Index) Rebuild(ctx context.Context) error {
	snap, err := ix.loader.LoadAll(ctx)
	if err != nil {
		return err
	}

	memories := make(map[string]*entity.Memory, len(snap.Memories))
	for _, m := range snap.Memories {
		if prev, ok := memories[m.ID]; ok {
			ix.logger.Warn().Str("id", m.ID).Str("project", prev.Project).
				Msg("Duplicate memory id across projects, keeping latest")
		}
		memories[m.ID] = m
	}
	tasks := make(map[string]*entity.Task, len(snap.Tasks))
	for _, t := range snap.Tasks {
		if prev, ok := tasks[t.ID]; ok {
			ix.logger.Warn().Str("id", t.ID).Str("project", prev.Project).
				Msg("Duplicate task id across projects, keeping latest")
		}
		tasks[t.ID] = t
	}

	ix.mu.Lock()
	ix.memories = memories
	ix.tasks = tasks
	ix.dirty = false
	ix.mu.Unlock()

	if ix.onRebuild != nil {
		ix.onRebuild()
	}
	ix.logger.Debug().Int("memories", len(memories)).Int("tasks", len(tasks)).Msg("Index rebuilt")
	return nil
}

// MarkDirty flags the index as out of date with the underlying documents
func (ix *Index) MarkDirty() {
	ix.mu.Lock()
	ix.dirty = true
	ix.mu.Unlock()
}

// RefreshIfDirty rebuilds the index when an external change was observed
func (ix *Index) RefreshIfDirty(ctx context.Context) error {
	ix.mu.RLock()
	dirty := ix.dirty
	ix.mu.RUnlock()
	if !dirty {
		return nil
	}
	return ix.Rebuild(ctx)
}

// PutMemory inserts or replaces a memory
func (ix *Index) PutMemory(m *entity.Memory) {
	ix.mu.Lock()
	ix.memories[m.ID] = m
	ix.mu.Unlock()
}

// RemoveMemory drops a memory by id
func (ix *Index) RemoveMemory(id string) {
	ix.mu.Lock()
	delete(ix.memories, id)
	ix.mu.Unlock()
}

// PutTask inserts or replaces a task
func (ix *Index) PutTask(t *entity.Task) {
	ix.mu.Lock()
	ix.tasks[t.ID] = t
	ix.mu.Unlock()
}

// RemoveTask drops a task by id
func (ix *Index) RemoveTask(id string) {
	ix.mu.Lock()
	delete(ix.tasks, id)
	ix.mu.Unlock()
}

// Memory returns the memory with the exact id
func (ix *Index) Memory(id string) (*entity.Memory, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	m, ok := ix.memories[id]
	return m, ok
}

// Task returns the task with the exact id
func (ix *Index) Task(id string) (*entity.Task, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	t, ok := ix.tasks[id]
	return t, ok
}

// Memories returns all memories, newest first
func (ix *Index) Memories() []*entity.Memory {
	ix.mu.RLock()
	out := make([]*entity.Memory, 0, len(ix.memories))
	for _, m := range ix.memories {
		out = append(out, m)
	}
	ix.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Tasks returns all tasks, newest first
func (ix *Index) Tasks() []*entity.Task {
	ix.mu.RLock()
	out := make([]*entity.Task, 0, len(ix.tasks))
	for _, t := range ix.tasks {
		out = append(out, t)
	}
	ix.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.After(out[j].Created)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Filter narrows list results. Zero values mean "any".
type Filter struct {
	Project  string
	Status   entity.Status
	Category string
	Tag      string
	Since    time.Time
	Limit    int
	Offset   int
}

// ListTasks returns tasks matching the filter, newest first
func (ix *Index) ListTasks(f Filter) []*entity.Task {
	var out []*entity.Task
	for _, t := range ix.Tasks() {
		if f.Project != "" && t.Project != f.Project {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Category != "" && t.Category != f.Category {
			continue
		}
		if f.Tag != "" && !hasTag(t.Tags, f.Tag) {
			continue
		}
		if !f.Since.IsZero() && t.Created.Before(f.Since) {
			continue
		}
		out = append(out, t)
	}
	return paginate(out, f.Offset, f.Limit)
}

// ListMemories returns memories matching the filter, newest first
func (ix *Index) ListMemories(f Filter) []*entity.Memory {
	var out []*entity.Memory
	for _, m := range ix.Memories() {
		if f.Project != "" && m.Project != f.Project {
			continue
		}
		if f.Category != "" && m.Category != f.Category {
			continue
		}
		if f.Tag != "" && !hasTag(m.Tags, f.Tag) {
			continue
		}
		if !f.Since.IsZero() && m.Timestamp.Before(f.Since) {
			continue
		}
		out = append(out, m)
	}
	return paginate(out, f.Offset, f.Limit)
}

// MaxSerial returns the highest task serial sequence seen
func (ix *Index) MaxSerial() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	max := 0
	for _, t := range ix.tasks {
		if n := entity.ParseSerial(t.Serial); n > max {
			max = n
		}
	}
	return max
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func paginate[T any](in []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(in) {
			return nil
		}
		in = in[offset:]
	}
	if limit > 0 && len(in) > limit {
		in = in[:limit]
	}
	return in
}
