package index

import (
	"strings"

	"github.com/recallhq/recall/pkg/entity"
)

// minimum normalized similarity for an id near-match to resolve
const resolveThreshold = 0.85

// ResolveTask finds a task by id with tolerant resolution: exact id, then
// serial, then a unique normalized near-match. Anything else returns a
// NotFoundError carrying the nearest suggestion.
func (ix *Index) ResolveTask(id string) (*entity.Task, error) {
	if t, ok := ix.Task(id); ok {
		return t, nil
	}

	// serials are a legal way to address a task
	norm := normalizeID(id)
	for _, t := range ix.Tasks() {
		if normalizeID(t.Serial) == norm {
			return t, nil
		}
	}

	ids := make([]string, 0)
	ix.mu.RLock()
	for tid := range ix.tasks {
		ids = append(ids, tid)
	}
	ix.mu.RUnlock()

	match, suggestion := nearestID(id, ids)
	if match != "" {
		t, _ := ix.Task(match)
		return t, nil
	}
	return nil, &entity.NotFoundError{ID: id, Suggestion: suggestion}
}

// ResolveMemory finds a memory by id with tolerant resolution
func (ix *Index) ResolveMemory(id string) (*entity.Memory, error) {
	if m, ok := ix.Memory(id); ok {
		return m, nil
	}

	ids := make([]string, 0)
	ix.mu.RLock()
	for mid := range ix.memories {
		ids = append(ids, mid)
	}
	ix.mu.RUnlock()

	match, suggestion := nearestID(id, ids)
	if match != "" {
		m, _ := ix.Memory(match)
		return m, nil
	}
	return nil, &entity.NotFoundError{ID: id, Suggestion: suggestion}
}

// nearestID compares the requested id against all known ids. It returns a
// definite match only when exactly one candidate clears the threshold;
// otherwise it returns the best candidate as a suggestion.
func nearestID(requested string, ids []string) (match, suggestion string) {
	norm := normalizeID(requested)
	if norm == "" {
		return "", ""
	}

	var best string
	var bestScore float64
	hits := 0
	for _, id := range ids {
		score := similarity(norm, normalizeID(id))
		if score >= resolveThreshold {
			hits++
			if hits == 1 {
				match = id
			} else {
				match = "" // ambiguous
			}
		}
		if score > bestScore {
			bestScore, best = score, id
		}
	}
	if match != "" {
		return match, ""
	}
	return "", best
}

// normalizeID lowercases and strips separator characters
func normalizeID(id string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(id) {
		switch r {
		case '-', '_', ' ', '.', '/':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// similarity is a normalized Levenshtein ratio in [0,1]
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}

	dist := prev[lb]
	longer := la
	if lb > longer {
		longer = lb
	}
	return 1 - float64(dist)/float64(longer)
}
