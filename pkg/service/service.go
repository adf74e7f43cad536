// Package service is the host-facing surface of the recall core. It
// owns the store, the index and the discovery, deduplication and
// automation components, and exposes the operations a transport, CLI
// or dashboard builds on.
package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/recallhq/recall/internal/metrics"
	"github.com/recallhq/recall/pkg/automation"
	"github.com/recallhq/recall/pkg/dedup"
	"github.com/recallhq/recall/pkg/entity"
	"github.com/recallhq/recall/pkg/index"
	"github.com/recallhq/recall/pkg/linker"
	"github.com/recallhq/recall/pkg/store"
)

// Service wires the components together behind one API. Writes to the
// same project must be serialized by the caller; see the store package
// contract.
type Service struct {
	store      *store.Store
	index      *index.Index
	linker     *linker.Linker
	dedup      *dedup.Engine
	automation *automation.Engine
	metrics    *metrics.Metrics
	nextSerial atomic.Int64
	logger     zerolog.Logger
}

// Config assembles a service from already-constructed components.
// Metrics may be nil.
type Config struct {
	Store      *store.Store
	Index      *index.Index
	Linker     *linker.Linker
	Dedup      *dedup.Engine
	Automation *automation.Engine
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
}

func New(cfg Config) *Service {
	s := &Service{
		store:      cfg.Store,
		index:      cfg.Index,
		linker:     cfg.Linker,
		dedup:      cfg.Dedup,
		automation: cfg.Automation,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.With().Str("component", "service").Logger(),
	}
	s.nextSerial.Store(int64(cfg.Index.MaxSerial()))
	return s
}

// LinkItems creates an explicit edge between two entities.
func (s *Service) LinkItems(ctx context.Context, fromID, toID string, edgeType entity.ConnectionType, reason string) (*entity.Connection, error) {
	defer s.observe("link_items", time.Now())

	conn, err := s.linker.Link(ctx, fromID, toID, edgeType, reason)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.EdgesCreatedTotal.WithLabelValues("manual").Inc()
	}
	return conn, nil
}

// RelatedItem is one connected entity with the edge that reaches it.
// Exactly one of Memory and Task is set.
type RelatedItem struct {
	Memory       *entity.Memory        `json:"memory,omitempty"`
	Task         *entity.Task          `json:"task,omitempty"`
	Type         entity.ConnectionType `json:"type"`
	Relevance    float64               `json:"relevance"`
	MatchedTerms []string              `json:"matched_terms,omitempty"`
}

// GetRelated resolves an id against both pools and returns its
// connected entities sorted by relevance.
func (s *Service) GetRelated(ctx context.Context, id string) ([]RelatedItem, error) {
	defer s.observe("get_related", time.Now())
	if err := s.index.RefreshIfDirty(ctx); err != nil {
		return nil, err
	}

	var edges []entity.Connection
	if t, err := s.index.ResolveTask(id); err == nil {
		edges = t.Connections
	} else if m, merr := s.index.ResolveMemory(id); merr == nil {
		edges = m.Links
	} else {
		return nil, err
	}

	items := make([]RelatedItem, 0, len(edges))
	for _, edge := range edges {
		item := RelatedItem{
			Type:         edge.Type,
			Relevance:    edge.Relevance,
			MatchedTerms: edge.MatchedTerms,
		}
		if m, ok := s.index.Memory(edge.ToID); ok {
			item.Memory = m
		} else if t, ok := s.index.Task(edge.ToID); ok {
			item.Task = t
		} else {
			continue
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Relevance != items[j].Relevance {
			return items[i].Relevance > items[j].Relevance
		}
		return itemID(items[i]) < itemID(items[j])
	})
	return items, nil
}

func itemID(it RelatedItem) string {
	if it.Memory != nil {
		return it.Memory.ID
	}
	return it.Task.ID
}

// RunAutomationCheck evaluates the rule set over the task pool once.
func (s *Service) RunAutomationCheck(ctx context.Context) (*automation.RunSummary, error) {
	defer s.observe("run_automation_check", time.Now())

	summary, err := s.automation.RunCheck(ctx)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		for _, d := range summary.Decisions {
			s.metrics.AutomationProposalsTotal.WithLabelValues(d.Rule).Inc()
			s.metrics.AutomationAppliedTotal.WithLabelValues(d.Rule).Inc()
		}
		for _, d := range summary.Advisories {
			s.metrics.AutomationProposalsTotal.WithLabelValues(d.Rule).Inc()
			s.metrics.AutomationAdvisories.Inc()
		}
		s.metrics.AutomationRejectedTotal.Add(float64(summary.Rejected))
	}
	return summary, nil
}

// Deduplicate detects and optionally merges duplicate memories.
func (s *Service) Deduplicate(ctx context.Context, opts dedup.Options) (*dedup.Report, error) {
	defer s.observe("deduplicate", time.Now())

	report, err := s.dedup.Run(ctx, opts)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.DedupGroupsTotal.Add(float64(len(report.Groups)))
		s.metrics.DedupMergedTotal.Add(float64(report.Deleted))
		s.metrics.DedupEdgeRewrites.Add(float64(report.EdgesRewritten))
		s.updateIndexGauges()
	}
	return report, nil
}

func (s *Service) claimSerial() string {
	return entity.FormatSerial(int(s.nextSerial.Add(1)))
}

// storeErr counts storage failures before handing the error back
func (s *Service) storeErr(err error) error {
	var serr *entity.StorageError
	if s.metrics != nil && errors.As(err, &serr) {
		s.metrics.StorageErrorsTotal.Inc()
	}
	return err
}

func (s *Service) observe(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

func (s *Service) updateIndexGauges() {
	if s.metrics == nil {
		return
	}
	s.metrics.IndexedMemories.Set(float64(len(s.index.Memories())))
	s.metrics.IndexedTasks.Set(float64(len(s.index.Tasks())))
}

var placeholderPatterns = []string{"lorem ipsum", "test test", "asdf", "todo: fill"}

func validateText(field, value string, minLen int) error {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) < minLen {
		return &entity.ValidationError{Field: field, Reason: "too short"}
	}
	lowered := strings.ToLower(trimmed)
	for _, p := range placeholderPatterns {
		if strings.Contains(lowered, p) {
			return &entity.ValidationError{Field: field, Reason: "placeholder content"}
		}
	}
	return nil
}
