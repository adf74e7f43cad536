// Package relevance scores the relationship between memories and tasks.
// A fixed weighted sum over lexical, structural and temporal signals
// produces a score in [0,1]; an optional external similarity provider
// contributes a semantic term when configured.
package relevance

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/recallhq/recall/pkg/entity"
)

// Default consumer cutoffs
const (
	DefaultThreshold = 0.3
	DefaultLimit     = 5

	semanticK = 20

	keywordWindow = 30 * 24 * time.Hour
	contextWindow = 7 * 24 * time.Hour
)

// Strategy names recorded on matches
const (
	StrategyKeyword  = "keyword"
	StrategySemantic = "semantic"
	StrategyContext  = "context"
)

// scoring weights; the sum is clamped to [0,1]
const (
	weightSemantic      = 0.35
	weightSameProject   = 0.25
	weightSameCategory  = 0.15
	weightTagOverlap    = 0.15
	weightKeyword       = 0.12
	weightTechTerm      = 0.10
	bonusSameDay        = 0.08
	bonusSameWeek       = 0.06
	bonusSameMonth      = 0.04
	bonusInProgress     = 0.05
	bonusTodo           = 0.03
	bonusBlocked        = 0.02
	bonusUrgent         = 0.04
	bonusHigh           = 0.03
	bonusMultiStrategy  = 0.05
	bonusHighComplexity = 0.02
)

// Ranker scores candidate entities against a target
type Ranker struct {
	provider SimilarityProvider
	logger   zerolog.Logger
}

// Config holds ranker configuration. Provider may be nil.
type Config struct {
	Provider SimilarityProvider
	Logger   zerolog.Logger
}

// NewRanker creates a ranker
func NewRanker(cfg Config) *Ranker {
	return &Ranker{
		provider: cfg.Provider,
		logger:   cfg.Logger.With().Str("component", "ranker").Logger(),
	}
}

// Options bound the result set
type Options struct {
	Threshold float64 // minimum score, default 0.3
	Limit     int     // top-N cap, default 5
}

func (o Options) withDefaults() Options {
	if o.Threshold == 0 {
		o.Threshold = DefaultThreshold
	}
	if o.Limit == 0 {
		o.Limit = DefaultLimit
	}
	return o
}

// Match is one scored candidate
type Match struct {
	ID           string
	Score        float64
	MatchedTerms []string
	Strategies   []string
}

type candidate struct {
	strategies   map[string]bool
	semantic     *float64
	timestamp    time.Time
	score        float64
	matchedTerms []string
}

// RankTasks scores tasks relevant to a memory
func (r *Ranker) RankTasks(ctx context.Context, m *entity.Memory, tasks []*entity.Task, opts Options) []Match {
	opts = opts.withDefaults()
	tokens := ExtractTokens(m.SearchText())
	semantic := r.findSimilar(ctx, m.Content)

	byID := make(map[string]*candidate)
	pool := make(map[string]*entity.Task, len(tasks))
	add := func(t *entity.Task, strategy string) {
		if t.ID == "" {
			return
		}
		c, ok := byID[t.ID]
		if !ok {
			c = &candidate{strategies: map[string]bool{}, timestamp: t.Created}
			byID[t.ID] = c
			pool[t.ID] = t
		}
		c.strategies[strategy] = true
	}

	for _, t := range tasks {
		text := strings.ToLower(t.SearchText())
		switch {
		case sharesStructure(m.Project, m.Category, m.Tags, t.Project, t.Category, t.Tags):
			add(t, StrategyKeyword)
		case containsAny(text, tokens.Keywords) || containsAnyFold(t.SearchText(), tokens.TechTerms):
			add(t, StrategyKeyword)
		case within(m.Timestamp, t.Created, keywordWindow):
			add(t, StrategyKeyword)
		}
		if t.Project == m.Project || within(m.Timestamp, t.Created, contextWindow) {
			add(t, StrategyContext)
		}
		if score, ok := semantic[t.ID]; ok {
			add(t, StrategySemantic)
			byID[t.ID].semantic = &score
		}
	}

	for id, c := range byID {
		t := pool[id]
		c.score, c.matchedTerms = scorePair(m, t, tokens, t.SearchText(), c.semantic, len(c.strategies) > 1)
	}

	return collect(byID, opts)
}

// RankMemories scores memories relevant to a task
func (r *Ranker) RankMemories(ctx context.Context, t *entity.Task, memories []*entity.Memory, opts Options) []Match {
	opts = opts.withDefaults()
	tokens := ExtractTokens(t.SearchText())
	semantic := r.findSimilar(ctx, t.SearchText())

	byID := make(map[string]*candidate)
	pool := make(map[string]*entity.Memory, len(memories))
	add := func(m *entity.Memory, strategy string) {
		if m.ID == "" {
			return
		}
		c, ok := byID[m.ID]
		if !ok {
			c = &candidate{strategies: map[string]bool{}, timestamp: m.Timestamp}
			byID[m.ID] = c
			pool[m.ID] = m
		}
		c.strategies[strategy] = true
	}

	for _, m := range memories {
		text := strings.ToLower(m.SearchText())
		switch {
		case sharesStructure(t.Project, t.Category, t.Tags, m.Project, m.Category, m.Tags):
			add(m, StrategyKeyword)
		case containsAny(text, tokens.Keywords) || containsAnyFold(m.SearchText(), tokens.TechTerms):
			add(m, StrategyKeyword)
		case within(t.Created, m.Timestamp, keywordWindow):
			add(m, StrategyKeyword)
		}
		if m.Project == t.Project || within(t.Created, m.Timestamp, contextWindow) {
			add(m, StrategyContext)
		}
		if score, ok := semantic[m.ID]; ok {
			add(m, StrategySemantic)
			byID[m.ID].semantic = &score
		}
	}

	for id, c := range byID {
		m := pool[id]
		c.score, c.matchedTerms = scorePair(m, t, tokens, m.SearchText(), c.semantic, len(c.strategies) > 1)
	}

	return collect(byID, opts)
}

// findSimilar queries the optional provider; absence or failure simply
// drops the semantic strategy.
func (r *Ranker) findSimilar(ctx context.Context, text string) map[string]float64 {
	if r.provider == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	similar, err := r.provider.FindSimilar(ctx, text, semanticK)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Similarity provider failed, continuing without semantic signal")
		return nil
	}
	out := make(map[string]float64, len(similar))
	for _, s := range similar {
		out[s.ID] = clamp01(s.Score)
	}
	return out
}

// scorePair computes the weighted relevance between one memory and one
// task, returning the score and the terms that matched. Tokens come
// from the ranking target, so keyword and tech-term hits must be counted
// against the candidate's own text; candidateText carries it.
func scorePair(m *entity.Memory, t *entity.Task, tokens Tokens, candidateText string, semantic *float64, multiStrategy bool) (float64, []string) {
	var score float64
	var matched []string

	if semantic != nil {
		score += *semantic * weightSemantic
	}
	if m.Project != "" && m.Project == t.Project {
		score += weightSameProject
	}
	if m.Category != "" && m.Category == t.Category {
		score += weightSameCategory
	}

	shared, union := tagOverlap(m.Tags, t.Tags)
	if union > 0 {
		score += float64(len(shared)) / float64(union) * weightTagOverlap
		matched = append(matched, shared...)
	}

	candText := strings.ToLower(candidateText)
	keywordHits := 0
	for _, kw := range append(tokens.Keywords, tokens.Quoted...) {
		if strings.Contains(candText, strings.ToLower(kw)) {
			keywordHits++
			matched = append(matched, kw)
		}
	}
	score += math.Min(float64(keywordHits)/5, 1) * weightKeyword

	techHits := 0
	for _, term := range tokens.TechTerms {
		if strings.Contains(candText, strings.ToLower(term)) {
			techHits++
			matched = append(matched, term)
		}
	}
	score += float64(techHits) / math.Max(float64(len(tokens.TechTerms)), 1) * weightTechTerm

	switch gap := absDuration(m.Timestamp.Sub(t.Created)); {
	case gap <= 24*time.Hour:
		score += bonusSameDay
	case gap <= 7*24*time.Hour:
		score += bonusSameWeek
	case gap <= 30*24*time.Hour:
		score += bonusSameMonth
	}

	switch t.Status {
	case entity.StatusInProgress:
		score += bonusInProgress
	case entity.StatusTodo:
		score += bonusTodo
	case entity.StatusBlocked:
		score += bonusBlocked
	}

	switch t.Priority {
	case entity.PriorityUrgent:
		score += bonusUrgent
	case entity.PriorityHigh:
		score += bonusHigh
	}

	if multiStrategy {
		score += bonusMultiStrategy
	}
	if m.Complexity >= 3 {
		score += bonusHighComplexity
	}

	return clamp01(score), dedupe(matched)
}

// collect filters by threshold, sorts and caps matches. Ties break by
// more recent candidate timestamp, then id.
func collect(byID map[string]*candidate, opts Options) []Match {
	type scored struct {
		id string
		c  *candidate
	}
	var all []scored
	for id, c := range byID {
		if c.score >= opts.Threshold {
			all = append(all, scored{id: id, c: c})
		}
	}

	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.c.score != b.c.score {
			return a.c.score > b.c.score
		}
		if !a.c.timestamp.Equal(b.c.timestamp) {
			return a.c.timestamp.After(b.c.timestamp)
		}
		return a.id < b.id
	})

	if len(all) > opts.Limit {
		all = all[:opts.Limit]
	}

	out := make([]Match, 0, len(all))
	for _, s := range all {
		strategies := make([]string, 0, len(s.c.strategies))
		for name := range s.c.strategies {
			strategies = append(strategies, name)
		}
		sort.Strings(strategies)
		out = append(out, Match{
			ID:           s.id,
			Score:        s.c.score,
			MatchedTerms: s.c.matchedTerms,
			Strategies:   strategies,
		})
	}
	return out
}

func sharesStructure(projA, catA string, tagsA []string, projB, catB string, tagsB []string) bool {
	if projA != "" && projA == projB {
		return true
	}
	if catA != "" && catA == catB {
		return true
	}
	shared, _ := tagOverlap(tagsA, tagsB)
	return len(shared) > 0
}

func tagOverlap(a, b []string) (shared []string, union int) {
	set := make(map[string]bool, len(a))
	for _, t := range a {
		if t != "" {
			set[t] = true
		}
	}
	union = len(set)
	seenB := make(map[string]bool, len(b))
	for _, t := range b {
		if t == "" || seenB[t] {
			continue
		}
		seenB[t] = true
		if set[t] {
			shared = append(shared, t)
		} else {
			union++
		}
	}
	return shared, union
}

func containsAny(loweredText string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(loweredText, t) {
			return true
		}
	}
	return false
}

func containsAnyFold(text string, terms []string) bool {
	lowered := strings.ToLower(text)
	for _, t := range terms {
		if strings.Contains(lowered, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

func within(a, b time.Time, window time.Duration) bool {
	return absDuration(a.Sub(b)) <= window
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func dedupe(in []string) []string {
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
