package entity

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a task
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusBlocked    Status = "blocked"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone, StatusBlocked:
		return true
	}
	return false
}

// legal status transitions; done is terminal
var transitions = map[Status][]Status{
	StatusTodo:       {StatusInProgress, StatusBlocked},
	StatusInProgress: {StatusDone, StatusBlocked},
	StatusBlocked:    {StatusTodo},
	StatusDone:       {},
}

// CanTransition reports whether moving from -> to is permitted by the
// task state machine.
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Priority represents task urgency
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ConnectionType classifies an edge between two entities
type ConnectionType string

const (
	ConnectionRelated    ConnectionType = "related"
	ConnectionBlocks     ConnectionType = "blocks"
	ConnectionImplements ConnectionType = "implements"
	ConnectionReferences ConnectionType = "references"
	ConnectionCausedBy   ConnectionType = "caused_by"
	ConnectionResearch   ConnectionType = "research"
)

// Valid reports whether t is a known connection type
func (t ConnectionType) Valid() bool {
	switch t {
	case ConnectionRelated, ConnectionBlocks, ConnectionImplements,
		ConnectionReferences, ConnectionCausedBy, ConnectionResearch:
		return true
	}
	return false
}

// Connection is a typed, scored edge between two entities
type Connection struct {
	FromID       string         `json:"from_id" yaml:"from_id"`
	ToID         string         `json:"to_id" yaml:"to_id"`
	Type         ConnectionType `json:"type" yaml:"type"`
	Relevance    float64        `json:"relevance" yaml:"relevance"`
	MatchedTerms []string       `json:"matched_terms,omitempty" yaml:"matched_terms,omitempty"`
	Created      time.Time      `json:"created" yaml:"created"`
	Updated      time.Time      `json:"updated,omitempty" yaml:"updated,omitempty"`
}

// LastActive returns when the connection was last created or refreshed
func (c *Connection) LastActive() time.Time {
	if c.Updated.After(c.Created) {
		return c.Updated
	}
	return c.Created
}

// Clamp forces the relevance score into [0,1]
func (c *Connection) Clamp() {
	if c.Relevance < 0 {
		c.Relevance = 0
	}
	if c.Relevance > 1 {
		c.Relevance = 1
	}
}

// MergeTerms unions terms into the connection's matched terms, preserving
// first-seen order.
func (c *Connection) MergeTerms(terms []string) {
	seen := make(map[string]bool, len(c.MatchedTerms))
	for _, t := range c.MatchedTerms {
		seen[t] = true
	}
	for _, t := range terms {
		if !seen[t] {
			c.MatchedTerms = append(c.MatchedTerms, t)
			seen[t] = true
		}
	}
}

// UpsertConnection merges an edge into a connection list, returning true
// when the list changed. An existing edge to the same target keeps the
// max relevance and the union of matched terms, and its Updated stamp is
// refreshed so re-affirmed links count as recent activity; there is
// never more than one edge per (from, to) pair, and self-loops are
// dropped.
func UpsertConnection(conns *[]Connection, edge Connection) bool {
	edge.Clamp()
	if edge.FromID == edge.ToID {
		return false
	}
	for i := range *conns {
		existing := &(*conns)[i]
		if existing.FromID == edge.FromID && existing.ToID == edge.ToID {
			changed := false
			if edge.Relevance > existing.Relevance {
				existing.Relevance = edge.Relevance
				changed = true
			}
			before := len(existing.MatchedTerms)
			existing.MergeTerms(edge.MatchedTerms)
			if len(existing.MatchedTerms) != before {
				changed = true
			}
			if at := edge.LastActive(); at.After(existing.LastActive()) {
				existing.Updated = at
				changed = true
			}
			return changed
		}
	}
	*conns = append(*conns, edge)
	return true
}

// Memory is a stored free-text note with metadata
type Memory struct {
	ID         string       `json:"id" yaml:"id"`
	Title      string       `json:"title,omitempty" yaml:"title,omitempty"`
	Summary    string       `json:"summary,omitempty" yaml:"summary,omitempty"`
	Content    string       `json:"content" yaml:"-"`
	Tags       []string     `json:"tags,omitempty" yaml:"tags,omitempty"`
	Category   string       `json:"category,omitempty" yaml:"category,omitempty"`
	Project    string       `json:"project" yaml:"project"`
	Priority   Priority     `json:"priority,omitempty" yaml:"priority,omitempty"`
	Complexity int          `json:"complexity,omitempty" yaml:"complexity,omitempty"`
	Timestamp  time.Time    `json:"timestamp" yaml:"timestamp"`
	SizeBytes  int          `json:"size_bytes,omitempty" yaml:"size_bytes,omitempty"`
	AccessedAt time.Time    `json:"accessed_at,omitempty" yaml:"accessed_at,omitempty"`
	Links      []Connection `json:"links,omitempty" yaml:"links,omitempty"`
}

// NormalizeTags lowercases nothing but removes duplicate tags while
// preserving order.
func (m *Memory) NormalizeTags() {
	m.Tags = dedupeStrings(m.Tags)
}

// SearchText returns the text surface used for keyword matching
func (m *Memory) SearchText() string {
	return strings.TrimSpace(m.Title + " " + m.Summary + " " + m.Content)
}

// AutomationApplied records the provenance of an automated status change
type AutomationApplied struct {
	Type       string    `json:"type" yaml:"type"`
	Confidence float64   `json:"confidence" yaml:"confidence"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
	Details    string    `json:"details,omitempty" yaml:"details,omitempty"`
}

// Task is a trackable work item with status, priority and an optional
// parent/child hierarchy.
type Task struct {
	ID          string             `json:"id" yaml:"id"`
	Serial      string             `json:"serial" yaml:"serial"`
	Title       string             `json:"title" yaml:"title"`
	Description string             `json:"description,omitempty" yaml:"-"`
	Status      Status             `json:"status" yaml:"status"`
	Priority    Priority           `json:"priority" yaml:"priority"`
	Project     string             `json:"project" yaml:"project"`
	Category    string             `json:"category,omitempty" yaml:"category,omitempty"`
	Tags        []string           `json:"tags,omitempty" yaml:"tags,omitempty"`
	ParentID    string             `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	SubtaskIDs  []string           `json:"subtask_ids,omitempty" yaml:"subtask_ids,omitempty"`
	Connections []Connection       `json:"memory_connections,omitempty" yaml:"memory_connections,omitempty"`
	Automation  *AutomationApplied `json:"automation_applied,omitempty" yaml:"automation_applied,omitempty"`
	Created     time.Time          `json:"created" yaml:"created"`
	Updated     time.Time          `json:"updated" yaml:"updated"`
}

// NormalizeTags removes duplicate tags while preserving order
func (t *Task) NormalizeTags() {
	t.Tags = dedupeStrings(t.Tags)
}

// Touch bumps the updated timestamp
func (t *Task) Touch() {
	t.Updated = time.Now().UTC()
}

// SearchText returns the text surface used for keyword matching
func (t *Task) SearchText() string {
	return strings.TrimSpace(t.Title + " " + t.Description)
}

// Serial formatting. Serials are human-readable and distinct from ids.
const serialPrefix = "TASK"

// FormatSerial renders the n-th task serial, e.g. TASK-00042
func FormatSerial(n int) string {
	return fmt.Sprintf("%s-%05d", serialPrefix, n)
}

// ParseSerial extracts the sequence number from a serial, returning 0 for
// anything unparseable.
func ParseSerial(serial string) int {
	var n int
	if _, err := fmt.Sscanf(serial, serialPrefix+"-%d", &n); err != nil {
		return 0
	}
	return n
}

func dedupeStrings(in []string) []string {
	if len(in) < 2 {
		return in
	}
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
