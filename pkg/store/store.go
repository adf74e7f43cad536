// Package store persists memories and tasks as project-grouped
// front-matter documents under a base directory.
//
// Every write rewrites the project file in full; cost is proportional to
// the number of entities in the project. Concurrent writers to the same
// project must be serialized by the caller (a documented contract, not
// enforced here). Cross-process writers are unsafe without an external
// advisory lock.
package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/recallhq/recall/pkg/entity"
)

const (
	memoriesFile = "memories.md"
	tasksFile    = "tasks.md"

	kindMemories = "memories"
	kindTasks    = "tasks"
)

// Store reads and writes per-project documents
type Store struct {
	baseDir string
	logger  zerolog.Logger
}

// Config holds store configuration
type Config struct {
	BaseDir string
	Logger  zerolog.Logger
}

// New creates a document store rooted at cfg.BaseDir
func New(cfg Config) (*Store, error) {
	if cfg.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return nil, &entity.StorageError{Op: "mkdir", Path: cfg.BaseDir, Err: err}
	}
	return &Store{
		baseDir: cfg.BaseDir,
		logger:  cfg.Logger.With().Str("component", "store").Logger(),
	}, nil
}

// BaseDir returns the store root
func (s *Store) BaseDir() string {
	return s.baseDir
}

// Snapshot is the result of a full load
type Snapshot struct {
	Memories []*entity.Memory
	Tasks    []*entity.Task
}

// Projects lists project directories under the base dir
func (s *Store) Projects() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, &entity.StorageError{Op: "readdir", Path: s.baseDir, Err: err}
	}
	var projects []string
	for _, e := range entries {
		if e.IsDir() {
			projects = append(projects, e.Name())
		}
	}
	sort.Strings(projects)
	return projects, nil
}

// ProjectPath returns the directory for a project, creating it lazily
func (s *Store) ProjectPath(project string) (string, error) {
	if project == "" {
		return "", &entity.ValidationError{Field: "project", Reason: "must not be empty"}
	}
	dir := filepath.Join(s.baseDir, project)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &entity.StorageError{Op: "mkdir", Path: dir, Err: err}
	}
	return dir, nil
}

// LoadAll scans every project directory and parses every document. A
// malformed entity is skipped with a warning; only unreadable directories
// abort the load.
func (s *Store) LoadAll(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	projects, err := s.Projects()
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{}
	for _, project := range projects {
		mems, err := s.loadMemories(project)
		if err != nil {
			s.logger.Warn().Err(err).Str("project", project).Msg("Skipping unreadable memories document")
		} else {
			snap.Memories = append(snap.Memories, mems...)
		}

		tasks, err := s.loadTasks(project)
		if err != nil {
			s.logger.Warn().Err(err).Str("project", project).Msg("Skipping unreadable tasks document")
		} else {
			snap.Tasks = append(snap.Tasks, tasks...)
		}
	}

	s.logger.Debug().
		Int("projects", len(projects)).
		Int("memories", len(snap.Memories)).
		Int("tasks", len(snap.Tasks)).
		Msg("Load completed")

	return snap, nil
}

func (s *Store) loadMemories(project string) ([]*entity.Memory, error) {
	sections, err := s.readSections(project, memoriesFile)
	if err != nil {
		return nil, err
	}
	var out []*entity.Memory
	for _, sec := range sections {
		m, err := decodeMemory(sec)
		if err != nil {
			s.logger.Warn().Err(err).Str("project", project).Msg("Skipping malformed memory")
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) loadTasks(project string) ([]*entity.Task, error) {
	sections, err := s.readSections(project, tasksFile)
	if err != nil {
		return nil, err
	}
	var out []*entity.Task
	for _, sec := range sections {
		t, err := decodeTask(sec)
		if err != nil {
			s.logger.Warn().Err(err).Str("project", project).Msg("Skipping malformed task")
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) readSections(project, file string) ([]section, error) {
	path := filepath.Join(s.baseDir, project, file)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &entity.StorageError{Op: "read", Path: path, Err: err}
	}
	_, sections, err := decodeDocument(data)
	if err != nil {
		return nil, &entity.StorageError{Op: "parse", Path: path, Err: err}
	}
	return sections, nil
}

// SaveMemory upserts a memory into its project document
func (s *Store) SaveMemory(ctx context.Context, project string, m *entity.Memory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	existing, err := s.loadMemories(project)
	if err != nil {
		return err
	}

	replaced := false
	for i, e := range existing {
		if e.ID == m.ID {
			existing[i] = m
			replaced = true
			break
		}
	}
	if !replaced {
		existing = append(existing, m)
	}

	return s.writeMemories(project, existing)
}

// DeleteMemory removes a memory and rewrites the project document.
// Deleting an absent id is a no-op.
func (s *Store) DeleteMemory(ctx context.Context, project, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	existing, err := s.loadMemories(project)
	if err != nil {
		return err
	}
	kept := existing[:0]
	for _, e := range existing {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	return s.writeMemories(project, kept)
}

// SaveTask upserts a task into its project document
func (s *Store) SaveTask(ctx context.Context, project string, t *entity.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	existing, err := s.loadTasks(project)
	if err != nil {
		return err
	}

	replaced := false
	for i, e := range existing {
		if e.ID == t.ID {
			existing[i] = t
			replaced = true
			break
		}
	}
	if !replaced {
		existing = append(existing, t)
	}

	return s.writeTasks(project, existing)
}

// DeleteTask removes a task and rewrites the project document
func (s *Store) DeleteTask(ctx context.Context, project, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	existing, err := s.loadTasks(project)
	if err != nil {
		return err
	}
	kept := existing[:0]
	for _, e := range existing {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	return s.writeTasks(project, kept)
}

func (s *Store) writeMemories(project string, mems []*entity.Memory) error {
	sections := make([]section, 0, len(mems))
	for _, m := range mems {
		sec, err := encodeMemory(m)
		if err != nil {
			return err
		}
		sections = append(sections, sec)
	}
	return s.writeDocument(project, memoriesFile, kindMemories, sections)
}

func (s *Store) writeTasks(project string, tasks []*entity.Task) error {
	sections := make([]section, 0, len(tasks))
	for _, t := range tasks {
		sec, err := encodeTask(t)
		if err != nil {
			return err
		}
		sections = append(sections, sec)
	}
	return s.writeDocument(project, tasksFile, kindTasks, sections)
}

// writeDocument rewrites the full file via temp-file + rename so readers
// never observe a partial write.
func (s *Store) writeDocument(project, file, kind string, sections []section) error {
	dir, err := s.ProjectPath(project)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, file)

	data, err := encodeDocument(fileHeader{
		Project: project,
		Kind:    kind,
		Count:   len(sections),
		Updated: time.Now().UTC(),
	}, sections)
	if err != nil {
		return &entity.StorageError{Op: "encode", Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, file+".tmp-*")
	if err != nil {
		return &entity.StorageError{Op: "write", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &entity.StorageError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &entity.StorageError{Op: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &entity.StorageError{Op: "rename", Path: path, Err: err}
	}

	s.logger.Debug().
		Str("project", project).
		Str("file", file).
		Int("entities", len(sections)).
		Msg("Document rewritten")

	return nil
}
