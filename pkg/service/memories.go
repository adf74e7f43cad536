package service

import (
	"context"
	"time"

	"github.com/recallhq/recall/pkg/entity"
	"github.com/recallhq/recall/pkg/index"
)

// CreateMemoryParams carries the fields accepted on memory creation.
type CreateMemoryParams struct {
	Title      string
	Content    string
	Summary    string
	Project    string
	Category   string
	Priority   entity.Priority
	Complexity int
	Tags       []string
}

// UpdateMemoryParams carries a partial update; nil fields are left
// untouched.
type UpdateMemoryParams struct {
	Title    *string
	Content  *string
	Summary  *string
	Category *string
	Tags     *[]string
}

// CreateMemory validates, persists and indexes a new memory, then runs
// relationship discovery against the task pool.
func (s *Service) CreateMemory(ctx context.Context, params CreateMemoryParams) (*entity.Memory, error) {
	defer s.observe("create_memory", time.Now())

	if err := validateText("content", params.Content, 5); err != nil {
		return nil, err
	}
	if params.Project == "" {
		return nil, &entity.ValidationError{Field: "project", Reason: "required"}
	}
	if params.Priority != "" && !params.Priority.Valid() {
		return nil, &entity.ValidationError{Field: "priority", Reason: "unknown priority"}
	}

	m := &entity.Memory{
		ID:         entity.NewMemoryID(),
		Title:      params.Title,
		Summary:    params.Summary,
		Content:    params.Content,
		Tags:       params.Tags,
		Category:   params.Category,
		Project:    params.Project,
		Priority:   params.Priority,
		Complexity: params.Complexity,
		Timestamp:  time.Now().UTC(),
		SizeBytes:  len(params.Content),
	}
	m.NormalizeTags()

	if err := s.store.SaveMemory(ctx, m.Project, m); err != nil {
		return nil, s.storeErr(err)
	}
	s.index.PutMemory(m)

	s.discoverMemoryLinks(ctx, m)
	s.recordSave("memory")

	s.logger.Info().
		Str("memory_id", m.ID).
		Str("project", m.Project).
		Int("size_bytes", m.SizeBytes).
		Msg("memory created")
	return m, nil
}

// UpdateMemory applies a partial update and re-runs discovery, since
// changed text can change what the memory relates to.
func (s *Service) UpdateMemory(ctx context.Context, id string, params UpdateMemoryParams) (*entity.Memory, error) {
	defer s.observe("update_memory", time.Now())

	m, err := s.index.ResolveMemory(id)
	if err != nil {
		return nil, err
	}

	if params.Content != nil {
		if err := validateText("content", *params.Content, 5); err != nil {
			return nil, err
		}
		m.Content = *params.Content
		m.SizeBytes = len(m.Content)
	}
	if params.Title != nil {
		m.Title = *params.Title
	}
	if params.Summary != nil {
		m.Summary = *params.Summary
	}
	if params.Category != nil {
		m.Category = *params.Category
	}
	if params.Tags != nil {
		m.Tags = *params.Tags
		m.NormalizeTags()
	}

	if err := s.store.SaveMemory(ctx, m.Project, m); err != nil {
		return nil, s.storeErr(err)
	}
	s.index.PutMemory(m)

	s.discoverMemoryLinks(ctx, m)
	s.recordSave("memory")
	return m, nil
}

// DeleteMemory removes the memory and scrubs every edge that pointed
// at it.
func (s *Service) DeleteMemory(ctx context.Context, id string) error {
	defer s.observe("delete_memory", time.Now())

	m, err := s.index.ResolveMemory(id)
	if err != nil {
		return err
	}

	if err := s.scrubEdges(ctx, m.ID, m.Links); err != nil {
		return err
	}

	if err := s.store.DeleteMemory(ctx, m.Project, m.ID); err != nil {
		return s.storeErr(err)
	}
	s.index.RemoveMemory(m.ID)
	s.recordDelete("memory")

	s.logger.Info().Str("memory_id", m.ID).Msg("memory deleted")
	return nil
}

// GetMemory resolves a memory by id or near-match and marks it
// accessed. The access time is persisted on the next write.
func (s *Service) GetMemory(ctx context.Context, id string) (*entity.Memory, error) {
	if err := s.index.RefreshIfDirty(ctx); err != nil {
		return nil, err
	}
	m, err := s.index.ResolveMemory(id)
	if err != nil {
		return nil, err
	}
	m.AccessedAt = time.Now().UTC()
	return m, nil
}

// ListMemories returns memories matching the filter, newest first.
func (s *Service) ListMemories(ctx context.Context, filter index.Filter) ([]*entity.Memory, error) {
	if err := s.index.RefreshIfDirty(ctx); err != nil {
		return nil, err
	}
	return s.index.ListMemories(filter), nil
}

func (s *Service) discoverMemoryLinks(ctx context.Context, m *entity.Memory) {
	linked, err := s.linker.LinkMemory(ctx, m)
	if err != nil {
		s.logger.Warn().Err(err).Str("memory_id", m.ID).Msg("relationship discovery failed")
		return
	}
	if linked > 0 && s.metrics != nil {
		s.metrics.EdgesCreatedTotal.WithLabelValues("auto").Add(float64(linked))
	}
}
