// Package linker discovers and maintains scored edges between memories
// and tasks. Edges are written on both endpoints so either side can be
// audited without a join.
package linker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/recallhq/recall/pkg/entity"
	"github.com/recallhq/recall/pkg/index"
	"github.com/recallhq/recall/pkg/relevance"
)

// Store is the persistence surface the linker writes through
type Store interface {
	SaveMemory(ctx context.Context, project string, m *entity.Memory) error
	SaveTask(ctx context.Context, project string, t *entity.Task) error
}

// Linker wires the ranker to the index and store
type Linker struct {
	ranker *relevance.Ranker
	index  *index.Index
	store  Store
	opts   relevance.Options
	logger zerolog.Logger
}

// Config holds linker configuration
type Config struct {
	Ranker  *relevance.Ranker
	Index   *index.Index
	Store   Store
	Options relevance.Options // zero values use ranker defaults
	Logger  zerolog.Logger
}

// New creates a linker
func New(cfg Config) *Linker {
	return &Linker{
		ranker: cfg.Ranker,
		index:  cfg.Index,
		store:  cfg.Store,
		opts:   cfg.Options,
		logger: cfg.Logger.With().Str("component", "linker").Logger(),
	}
}

// LinkMemory ranks all tasks against a just-saved memory and records
// edges for the top matches. Re-running with an unchanged neighbor set
// merges into existing edges instead of duplicating them.
func (l *Linker) LinkMemory(ctx context.Context, m *entity.Memory) (int, error) {
	matches := l.ranker.RankTasks(ctx, m, l.index.Tasks(), l.opts)

	linked := 0
	memoryChanged := false
	for _, match := range matches {
		t, ok := l.index.Task(match.ID)
		if !ok {
			continue
		}

		edgeType := autoEdgeType(m)
		taskChanged := entity.UpsertConnection(&t.Connections, entity.Connection{
			FromID:       t.ID,
			ToID:         m.ID,
			Type:         edgeType,
			Relevance:    match.Score,
			MatchedTerms: match.MatchedTerms,
			Created:      time.Now().UTC(),
		})
		if entity.UpsertConnection(&m.Links, entity.Connection{
			FromID:       m.ID,
			ToID:         t.ID,
			Type:         edgeType,
			Relevance:    match.Score,
			MatchedTerms: match.MatchedTerms,
			Created:      time.Now().UTC(),
		}) {
			memoryChanged = true
		}

		if taskChanged {
			if err := l.store.SaveTask(ctx, t.Project, t); err != nil {
				return linked, err
			}
			l.index.PutTask(t)
		}
		linked++

		l.logger.Debug().
			Str("memory", m.ID).
			Str("task", t.ID).
			Float64("relevance", match.Score).
			Strs("strategies", match.Strategies).
			Msg("Edge discovered")
	}

	if memoryChanged {
		if err := l.store.SaveMemory(ctx, m.Project, m); err != nil {
			return linked, err
		}
		l.index.PutMemory(m)
	}
	return linked, nil
}

// LinkTask ranks all memories against a just-saved task and records
// edges for the top matches.
func (l *Linker) LinkTask(ctx context.Context, t *entity.Task) (int, error) {
	matches := l.ranker.RankMemories(ctx, t, l.index.Memories(), l.opts)

	linked := 0
	taskChanged := false
	for _, match := range matches {
		m, ok := l.index.Memory(match.ID)
		if !ok {
			continue
		}

		edgeType := autoEdgeType(m)
		if entity.UpsertConnection(&t.Connections, entity.Connection{
			FromID:       t.ID,
			ToID:         m.ID,
			Type:         edgeType,
			Relevance:    match.Score,
			MatchedTerms: match.MatchedTerms,
			Created:      time.Now().UTC(),
		}) {
			taskChanged = true
		}
		memoryChanged := entity.UpsertConnection(&m.Links, entity.Connection{
			FromID:       m.ID,
			ToID:         t.ID,
			Type:         edgeType,
			Relevance:    match.Score,
			MatchedTerms: match.MatchedTerms,
			Created:      time.Now().UTC(),
		})

		if memoryChanged {
			if err := l.store.SaveMemory(ctx, m.Project, m); err != nil {
				return linked, err
			}
			l.index.PutMemory(m)
		}
		linked++
	}

	if taskChanged {
		if err := l.store.SaveTask(ctx, t.Project, t); err != nil {
			return linked, err
		}
		l.index.PutTask(t)
	}
	return linked, nil
}

// Link records a manual, explicitly-typed edge between two entities.
// Both ids must resolve; self-links are rejected; a duplicate link is
// merged, never an error.
func (l *Linker) Link(ctx context.Context, fromID, toID string, edgeType entity.ConnectionType, reason string) (*entity.Connection, error) {
	if fromID == toID {
		return nil, &entity.ValidationError{Field: "to", Reason: "self-links are not permitted"}
	}
	if !edgeType.Valid() {
		return nil, &entity.ValidationError{Field: "type", Reason: "unknown connection type"}
	}

	from, err := l.resolveEndpoint(fromID)
	if err != nil {
		return nil, err
	}
	to, err := l.resolveEndpoint(toID)
	if err != nil {
		return nil, err
	}
	// resolution may canonicalize both inputs to the same entity
	if from.id() == to.id() {
		return nil, &entity.ValidationError{Field: "to", Reason: "self-links are not permitted"}
	}

	var terms []string
	if reason != "" {
		terms = []string{reason}
	}
	edge := entity.Connection{
		FromID:       from.id(),
		ToID:         to.id(),
		Type:         edgeType,
		Relevance:    1.0, // manual links are authoritative
		MatchedTerms: terms,
		Created:      time.Now().UTC(),
	}

	entity.UpsertConnection(from.edges(), edge)
	reverse := edge
	reverse.FromID, reverse.ToID = edge.ToID, edge.FromID
	entity.UpsertConnection(to.edges(), reverse)

	// an explicit type wins over a previously auto-discovered one
	setEdgeType(from.edges(), edge.FromID, edge.ToID, edgeType)
	setEdgeType(to.edges(), reverse.FromID, reverse.ToID, edgeType)

	if err := from.save(ctx, l); err != nil {
		return nil, err
	}
	if err := to.save(ctx, l); err != nil {
		return nil, err
	}

	l.logger.Info().
		Str("from", edge.FromID).
		Str("to", edge.ToID).
		Str("type", string(edgeType)).
		Msg("Manual link recorded")

	return &edge, nil
}

// endpoint abstracts over the two entity kinds for manual linking
type endpoint struct {
	memory *entity.Memory
	task   *entity.Task
}

func (e endpoint) id() string {
	if e.memory != nil {
		return e.memory.ID
	}
	return e.task.ID
}

func (e endpoint) edges() *[]entity.Connection {
	if e.memory != nil {
		return &e.memory.Links
	}
	return &e.task.Connections
}

func (e endpoint) save(ctx context.Context, l *Linker) error {
	if e.memory != nil {
		if err := l.store.SaveMemory(ctx, e.memory.Project, e.memory); err != nil {
			return err
		}
		l.index.PutMemory(e.memory)
		return nil
	}
	if err := l.store.SaveTask(ctx, e.task.Project, e.task); err != nil {
		return err
	}
	l.index.PutTask(e.task)
	return nil
}

func (l *Linker) resolveEndpoint(id string) (endpoint, error) {
	if t, err := l.index.ResolveTask(id); err == nil {
		return endpoint{task: t}, nil
	}
	m, err := l.index.ResolveMemory(id)
	if err != nil {
		return endpoint{}, err
	}
	return endpoint{memory: m}, nil
}

func setEdgeType(conns *[]entity.Connection, fromID, toID string, edgeType entity.ConnectionType) {
	for i := range *conns {
		if (*conns)[i].FromID == fromID && (*conns)[i].ToID == toID {
			(*conns)[i].Type = edgeType
			return
		}
	}
}

func autoEdgeType(m *entity.Memory) entity.ConnectionType {
	if m.Category == "research" {
		return entity.ConnectionResearch
	}
	return entity.ConnectionRelated
}
