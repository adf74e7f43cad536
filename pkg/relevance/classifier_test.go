package relevance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/recall/pkg/entity"
)

func TestDefaultPatternsParse(t *testing.T) {
	p := DefaultPatterns()
	assert.NotEmpty(t, p.StatusIntents)
	assert.NotEmpty(t, p.WorkflowPatterns)
	assert.NotEmpty(t, p.BlockingKeywords)
}

func TestClassifyDoneIntent(t *testing.T) {
	c := NewPatternClassifier(DefaultPatterns())

	intent, ok := c.Classify(
		"Implemented JWT auth middleware successfully, tests passing",
		entity.StatusInProgress,
	)
	require.True(t, ok)
	assert.Equal(t, entity.StatusDone, intent.Status)
	assert.Greater(t, intent.Confidence, 0.7)
	assert.NotEmpty(t, intent.MatchedPhrase)
}

func TestClassifyIgnoresCurrentStatus(t *testing.T) {
	c := NewPatternClassifier(DefaultPatterns())

	// "completed" suggests done; a done task gets no signal from it
	_, ok := c.Classify("completed", entity.StatusDone)
	assert.False(t, ok)
}

func TestClassifyBlocked(t *testing.T) {
	c := NewPatternClassifier(DefaultPatterns())

	intent, ok := c.Classify("stuck waiting on the upstream API token", entity.StatusInProgress)
	require.True(t, ok)
	assert.Equal(t, entity.StatusBlocked, intent.Status)
}

func TestClassifyNoSignal(t *testing.T) {
	c := NewPatternClassifier(DefaultPatterns())
	_, ok := c.Classify("weather was nice today", entity.StatusTodo)
	assert.False(t, ok)
}

func TestWorkflowPatterns(t *testing.T) {
	c := NewPatternClassifier(DefaultPatterns())

	intent, ok := c.Workflow("code", "testing complete and review complete", entity.StatusInProgress)
	require.True(t, ok)
	assert.Equal(t, entity.StatusDone, intent.Status)
	assert.InDelta(t, 0.8, intent.Confidence, 1e-9)

	// one of the two required phrases is not enough
	_, ok = c.Workflow("code", "testing complete", entity.StatusInProgress)
	assert.False(t, ok)

	intent, ok = c.Workflow("research", "findings documented in the wiki", entity.StatusInProgress)
	require.True(t, ok)
	assert.InDelta(t, 0.75, intent.Confidence, 1e-9)

	_, ok = c.Workflow("design", "testing complete and review complete", entity.StatusInProgress)
	assert.False(t, ok, "patterns are category specific")
}

func TestLoadPatternsValidates(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, defaultPatternsJSON, 0o644))
	p, err := LoadPatterns(good)
	require.NoError(t, err)
	assert.NotEmpty(t, p.StatusIntents)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"status_intents": [{"status": "nope", "confidence": 2, "phrases": []}]}`), 0o644))
	_, err = LoadPatterns(bad)
	assert.Error(t, err)

	_, err = LoadPatterns(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
