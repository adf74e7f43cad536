package service

import (
	"context"
	"time"

	"github.com/recallhq/recall/pkg/entity"
	"github.com/recallhq/recall/pkg/index"
)

// CreateTaskParams carries the fields accepted on task creation.
// Status always starts at todo.
type CreateTaskParams struct {
	Title       string
	Description string
	Project     string
	Category    string
	Priority    entity.Priority
	Tags        []string
	ParentID    string
}

// UpdateTaskParams carries a partial update; nil fields are left
// untouched.
type UpdateTaskParams struct {
	Title       *string
	Description *string
	Status      *entity.Status
	Priority    *entity.Priority
	Category    *string
	Tags        *[]string
}

// CreateTask validates, persists and indexes a new task, assigns it the
// next serial, attaches it under its parent when one is named, and runs
// relationship discovery against the memory pool.
func (s *Service) CreateTask(ctx context.Context, params CreateTaskParams) (*entity.Task, error) {
	defer s.observe("create_task", time.Now())

	if err := validateText("title", params.Title, 2); err != nil {
		return nil, err
	}
	if params.Description != "" {
		if err := validateText("description", params.Description, 5); err != nil {
			return nil, err
		}
	}
	if params.Project == "" {
		return nil, &entity.ValidationError{Field: "project", Reason: "required"}
	}
	priority := params.Priority
	if priority == "" {
		priority = entity.PriorityMedium
	}
	if !priority.Valid() {
		return nil, &entity.ValidationError{Field: "priority", Reason: "unknown priority"}
	}

	var parent *entity.Task
	if params.ParentID != "" {
		var err error
		if parent, err = s.index.ResolveTask(params.ParentID); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	task := &entity.Task{
		ID:          entity.NewTaskID(),
		Serial:      s.claimSerial(),
		Title:       params.Title,
		Description: params.Description,
		Status:      entity.StatusTodo,
		Priority:    priority,
		Project:     params.Project,
		Category:    params.Category,
		Tags:        params.Tags,
		Created:     now,
		Updated:     now,
	}
	task.NormalizeTags()
	if parent != nil {
		task.ParentID = parent.ID
	}

	if err := s.store.SaveTask(ctx, task.Project, task); err != nil {
		return nil, s.storeErr(err)
	}
	s.index.PutTask(task)

	if parent != nil {
		parent.SubtaskIDs = append(parent.SubtaskIDs, task.ID)
		parent.Touch()
		if err := s.store.SaveTask(ctx, parent.Project, parent); err != nil {
			return nil, s.storeErr(err)
		}
		s.index.PutTask(parent)
	}

	s.discoverTaskLinks(ctx, task)
	s.recordSave("task")

	s.logger.Info().
		Str("task_id", task.ID).
		Str("serial", task.Serial).
		Str("project", task.Project).
		Msg("task created")
	return task, nil
}

// UpdateTask applies a partial update. A status change goes through the
// state machine and clears any automation provenance, since the new
// status is a human decision.
func (s *Service) UpdateTask(ctx context.Context, id string, params UpdateTaskParams) (*entity.Task, error) {
	defer s.observe("update_task", time.Now())

	task, err := s.index.ResolveTask(id)
	if err != nil {
		return nil, err
	}

	if params.Title != nil {
		if err := validateText("title", *params.Title, 2); err != nil {
			return nil, err
		}
		task.Title = *params.Title
	}
	if params.Description != nil {
		if *params.Description != "" {
			if err := validateText("description", *params.Description, 5); err != nil {
				return nil, err
			}
		}
		task.Description = *params.Description
	}
	if params.Status != nil && *params.Status != task.Status {
		if !entity.CanTransition(task.Status, *params.Status) {
			return nil, &entity.InvalidTransitionError{From: task.Status, To: *params.Status}
		}
		task.Status = *params.Status
		task.Automation = nil
	}
	if params.Priority != nil {
		if !params.Priority.Valid() {
			return nil, &entity.ValidationError{Field: "priority", Reason: "unknown priority"}
		}
		task.Priority = *params.Priority
	}
	if params.Category != nil {
		task.Category = *params.Category
	}
	if params.Tags != nil {
		task.Tags = *params.Tags
		task.NormalizeTags()
	}
	task.Touch()

	if err := s.store.SaveTask(ctx, task.Project, task); err != nil {
		return nil, s.storeErr(err)
	}
	s.index.PutTask(task)

	s.discoverTaskLinks(ctx, task)
	s.recordSave("task")
	return task, nil
}

// DeleteTask removes the task, detaches it from its parent and
// subtasks, and scrubs every edge that pointed at it.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	defer s.observe("delete_task", time.Now())

	task, err := s.index.ResolveTask(id)
	if err != nil {
		return err
	}

	if task.ParentID != "" {
		if parent, ok := s.index.Task(task.ParentID); ok {
			parent.SubtaskIDs = removeString(parent.SubtaskIDs, task.ID)
			parent.Touch()
			if err := s.store.SaveTask(ctx, parent.Project, parent); err != nil {
				return s.storeErr(err)
			}
			s.index.PutTask(parent)
		}
	}
	for _, subID := range task.SubtaskIDs {
		if sub, ok := s.index.Task(subID); ok {
			sub.ParentID = ""
			sub.Touch()
			if err := s.store.SaveTask(ctx, sub.Project, sub); err != nil {
				return s.storeErr(err)
			}
			s.index.PutTask(sub)
		}
	}

	if err := s.scrubEdges(ctx, task.ID, task.Connections); err != nil {
		return err
	}

	if err := s.store.DeleteTask(ctx, task.Project, task.ID); err != nil {
		return s.storeErr(err)
	}
	s.index.RemoveTask(task.ID)
	s.recordDelete("task")

	s.logger.Info().Str("task_id", task.ID).Msg("task deleted")
	return nil
}

// GetTask resolves a task by id, serial or near-match.
func (s *Service) GetTask(ctx context.Context, id string) (*entity.Task, error) {
	if err := s.index.RefreshIfDirty(ctx); err != nil {
		return nil, err
	}
	return s.index.ResolveTask(id)
}

// ListTasks returns tasks matching the filter, newest first.
func (s *Service) ListTasks(ctx context.Context, filter index.Filter) ([]*entity.Task, error) {
	if err := s.index.RefreshIfDirty(ctx); err != nil {
		return nil, err
	}
	return s.index.ListTasks(filter), nil
}

func (s *Service) discoverTaskLinks(ctx context.Context, task *entity.Task) {
	linked, err := s.linker.LinkTask(ctx, task)
	if err != nil {
		s.logger.Warn().Err(err).Str("task_id", task.ID).Msg("relationship discovery failed")
		return
	}
	if linked > 0 && s.metrics != nil {
		s.metrics.EdgesCreatedTotal.WithLabelValues("auto").Add(float64(linked))
	}
}

// scrubEdges removes the reverse half of every edge held by a deleted
// entity, so no peer is left pointing at a dead id.
func (s *Service) scrubEdges(ctx context.Context, deletedID string, edges []entity.Connection) error {
	for _, edge := range edges {
		if m, ok := s.index.Memory(edge.ToID); ok {
			m.Links = removeEdgesTo(m.Links, deletedID)
			if err := s.store.SaveMemory(ctx, m.Project, m); err != nil {
				return s.storeErr(err)
			}
			s.index.PutMemory(m)
		} else if t, ok := s.index.Task(edge.ToID); ok {
			t.Connections = removeEdgesTo(t.Connections, deletedID)
			if err := s.store.SaveTask(ctx, t.Project, t); err != nil {
				return s.storeErr(err)
			}
			s.index.PutTask(t)
		}
	}
	return nil
}

func removeEdgesTo(conns []entity.Connection, id string) []entity.Connection {
	kept := conns[:0]
	for _, c := range conns {
		if c.ToID != id {
			kept = append(kept, c)
		}
	}
	return kept
}

func removeString(in []string, s string) []string {
	kept := in[:0]
	for _, v := range in {
		if v != s {
			kept = append(kept, v)
		}
	}
	return kept
}

func (s *Service) recordSave(kind string) {
	if s.metrics != nil {
		s.metrics.EntitySavesTotal.WithLabelValues(kind).Inc()
		s.updateIndexGauges()
	}
}

func (s *Service) recordDelete(kind string) {
	if s.metrics != nil {
		s.metrics.EntityDeletesTotal.WithLabelValues(kind).Inc()
		s.updateIndexGauges()
	}
}
