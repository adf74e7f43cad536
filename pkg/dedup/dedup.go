// Package dedup finds groups of near-duplicate memories and collapses
// each group onto a single survivor, re-pointing edges so nothing
// dangles.
package dedup

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/recallhq/recall/pkg/entity"
	"github.com/recallhq/recall/pkg/index"
	"github.com/recallhq/recall/pkg/relevance"
)

// DefaultThreshold is the minimum pair similarity for grouping
const DefaultThreshold = 0.85

// Store is the persistence surface the engine mutates through
type Store interface {
	SaveMemory(ctx context.Context, project string, m *entity.Memory) error
	SaveTask(ctx context.Context, project string, t *entity.Task) error
	DeleteMemory(ctx context.Context, project, id string) error
}

// PairScorer produces a similarity in [0,1] for a memory pair
type PairScorer func(a, b *entity.Memory) float64

// LexicalScorer is the default pair scorer: token-set overlap of title
// plus content. An embedding-backed scorer can be injected instead.
func LexicalScorer(a, b *entity.Memory) float64 {
	return relevance.LexicalOverlap(a.Title+" "+a.Content, b.Title+" "+b.Content)
}

// Engine detects and resolves duplicate memory groups
type Engine struct {
	index  *index.Index
	store  Store
	scorer PairScorer
	logger zerolog.Logger
}

// Config holds engine configuration
type Config struct {
	Index  *index.Index
	Store  Store
	Scorer PairScorer // nil uses LexicalScorer
	Logger zerolog.Logger
}

// New creates a deduplication engine
func New(cfg Config) *Engine {
	scorer := cfg.Scorer
	if scorer == nil {
		scorer = LexicalScorer
	}
	return &Engine{
		index:  cfg.Index,
		store:  cfg.Store,
		scorer: scorer,
		logger: cfg.Logger.With().Str("component", "dedup").Logger(),
	}
}

// Options narrow a run
type Options struct {
	Project   string  // empty scans all projects
	Threshold float64 // zero uses DefaultThreshold
	DryRun    bool    // report groups without mutating storage
}

// Group is one set of duplicates and its chosen survivor
type Group struct {
	SurvivorID string
	MemberIDs  []string // includes the survivor
}

// Report summarizes a run
type Report struct {
	Groups         []Group
	Deleted        int
	EdgesRewritten int
	DryRun         bool
}

// Run detects duplicate groups and, unless DryRun is set, deletes the
// losers and rewrites edges onto the survivors. Pairs above the
// threshold merge under transitive closure: A~B and B~C join A, B and C
// into one group even when A~C falls short.
func (e *Engine) Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Threshold == 0 {
		opts.Threshold = DefaultThreshold
	}

	memories := e.index.ListMemories(index.Filter{Project: opts.Project})
	report := &Report{DryRun: opts.DryRun}

	uf := newUnionFind(len(memories))
	for i := 0; i < len(memories); i++ {
		for j := i + 1; j < len(memories); j++ {
			if e.scorer(memories[i], memories[j]) >= opts.Threshold {
				uf.union(i, j)
			}
		}
	}

	byRoot := make(map[int][]*entity.Memory)
	for i, m := range memories {
		root := uf.find(i)
		byRoot[root] = append(byRoot[root], m)
	}

	var roots []int
	for root, members := range byRoot {
		if len(members) > 1 {
			roots = append(roots, root)
		}
	}
	sort.Ints(roots)

	for _, root := range roots {
		members := byRoot[root]
		survivor := chooseSurvivor(members)

		group := Group{SurvivorID: survivor.ID}
		for _, m := range members {
			group.MemberIDs = append(group.MemberIDs, m.ID)
		}
		sort.Strings(group.MemberIDs)
		report.Groups = append(report.Groups, group)

		if opts.DryRun {
			continue
		}
		if err := e.resolveGroup(ctx, survivor, members, report); err != nil {
			return report, err
		}
	}

	e.logger.Info().
		Int("groups", len(report.Groups)).
		Int("deleted", report.Deleted).
		Int("edges_rewritten", report.EdgesRewritten).
		Bool("dry_run", opts.DryRun).
		Msg("Deduplication completed")

	return report, nil
}

// resolveGroup deletes every non-survivor and re-points edges
func (e *Engine) resolveGroup(ctx context.Context, survivor *entity.Memory, members []*entity.Memory, report *Report) error {
	replaced := make(map[string]bool, len(members)-1)
	survivorChanged := false

	for _, m := range members {
		if m.ID == survivor.ID {
			continue
		}
		replaced[m.ID] = true

		// carry the loser's outgoing edges over to the survivor
		for _, edge := range m.Links {
			if edge.ToID == survivor.ID {
				continue
			}
			edge.FromID = survivor.ID
			if entity.UpsertConnection(&survivor.Links, edge) {
				survivorChanged = true
			}
		}

		if err := e.store.DeleteMemory(ctx, m.Project, m.ID); err != nil {
			return err
		}
		e.index.RemoveMemory(m.ID)
		report.Deleted++
	}

	// incoming edges on tasks move to the survivor
	for _, t := range e.index.Tasks() {
		if rewritten := rewriteEdges(&t.Connections, replaced, survivor.ID); rewritten > 0 {
			report.EdgesRewritten += rewritten
			if err := e.store.SaveTask(ctx, t.Project, t); err != nil {
				return err
			}
			e.index.PutTask(t)
		}
	}

	// incoming edges on other memories (manual memory-to-memory links)
	for _, m := range e.index.Memories() {
		if m.ID == survivor.ID || replaced[m.ID] {
			continue
		}
		if rewritten := rewriteEdges(&m.Links, replaced, survivor.ID); rewritten > 0 {
			report.EdgesRewritten += rewritten
			if err := e.store.SaveMemory(ctx, m.Project, m); err != nil {
				return err
			}
			e.index.PutMemory(m)
		}
	}

	// the survivor must not point at deleted members either
	if rewritten := rewriteEdges(&survivor.Links, replaced, survivor.ID); rewritten > 0 {
		survivorChanged = true
	}

	if survivorChanged {
		if err := e.store.SaveMemory(ctx, survivor.Project, survivor); err != nil {
			return err
		}
		e.index.PutMemory(survivor)
	}
	return nil
}

// rewriteEdges re-points edges whose target was replaced, merging when
// an edge to the survivor already exists. Returns how many edges were
// rewritten or dropped.
func rewriteEdges(conns *[]entity.Connection, replaced map[string]bool, survivorID string) int {
	rewritten := 0
	kept := (*conns)[:0]
	var toMerge []entity.Connection
	for _, edge := range *conns {
		if !replaced[edge.ToID] {
			kept = append(kept, edge)
			continue
		}
		rewritten++
		edge.ToID = survivorID
		toMerge = append(toMerge, edge)
	}
	*conns = kept
	for _, edge := range toMerge {
		entity.UpsertConnection(conns, edge)
	}
	return rewritten
}

// chooseSurvivor picks the entity to keep: first one with both title and
// summary, then the most recent, then the longest content. Id order
// breaks exact ties for determinism.
func chooseSurvivor(members []*entity.Memory) *entity.Memory {
	best := members[0]
	for _, m := range members[1:] {
		if survivorLess(best, m) {
			best = m
		}
	}
	return best
}

// survivorLess reports whether b is a better survivor than a
func survivorLess(a, b *entity.Memory) bool {
	aFull := a.Title != "" && a.Summary != ""
	bFull := b.Title != "" && b.Summary != ""
	if aFull != bFull {
		return bFull
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return b.Timestamp.After(a.Timestamp)
	}
	if len(a.Content) != len(b.Content) {
		return len(b.Content) > len(a.Content)
	}
	return b.ID < a.ID
}

// unionFind is a plain disjoint-set over slice indices
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		if ra < rb {
			u.parent[rb] = ra
		} else {
			u.parent[ra] = rb
		}
	}
}
