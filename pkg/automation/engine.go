package automation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/recallhq/recall/pkg/entity"
	"github.com/recallhq/recall/pkg/index"
)

// DefaultBatchSize bounds how many tasks one batch evaluates in
// parallel. Batches run sequentially, which also bounds concurrent
// writes.
const DefaultBatchSize = 10

// Store is the persistence surface the engine writes through.
type Store interface {
	SaveTask(ctx context.Context, project string, t *entity.Task) error
}

// Engine runs the rule set over the task pool and applies the winning
// decisions.
type Engine struct {
	index  *index.Index
	store  Store
	rules  []Rule
	batch  int
	logger zerolog.Logger
}

type Config struct {
	Index      *index.Index
	Store      Store
	Classifier Classifier
	Rules      []Rule // nil uses DefaultRules(Classifier)
	BatchSize  int
	Logger     zerolog.Logger
}

func New(cfg Config) *Engine {
	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRules(cfg.Classifier)
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	return &Engine{
		index:  cfg.Index,
		store:  cfg.Store,
		rules:  rules,
		batch:  batch,
		logger: cfg.Logger.With().Str("component", "automation").Logger(),
	}
}

// indexEnv adapts the index to the read surface rules see.
type indexEnv struct {
	ix *index.Index
}

func (e indexEnv) Task(id string) (*entity.Task, bool)     { return e.ix.Task(id) }
func (e indexEnv) Memory(id string) (*entity.Memory, bool) { return e.ix.Memory(id) }

// Evaluate runs the rules in priority order and returns the first
// decision, or nil when no rule has an opinion. A rule that errors or
// panics is logged and skipped.
func (e *Engine) Evaluate(task *entity.Task) *Decision {
	env := indexEnv{ix: e.index}
	for _, rule := range e.rules {
		d, err := safeEvaluate(rule, task, env)
		if err != nil {
			e.logger.Warn().Err(err).
				Str("rule", rule.Name()).
				Str("task_id", task.ID).
				Msg("rule evaluation failed")
			continue
		}
		if d != nil {
			return d
		}
	}
	return nil
}

func safeEvaluate(rule Rule, task *entity.Task, env Env) (d *Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			d, err = nil, fmt.Errorf("rule %s panicked: %v", rule.Name(), r)
		}
	}()
	return rule.Evaluate(task, env)
}

// Apply validates a decision against current state and writes the new
// status with a provenance record. Advisory decisions are never
// applied.
func (e *Engine) Apply(ctx context.Context, d *Decision) error {
	if d.Advisory {
		return &entity.ValidationError{Field: "decision", Reason: "advisory decisions cannot be applied"}
	}
	if age := time.Since(d.CreatedAt); age > StalenessTimeout {
		return &entity.StaleAutomationError{Age: age}
	}

	task, ok := e.index.Task(d.TaskID)
	if !ok {
		return &entity.NotFoundError{ID: d.TaskID}
	}
	if !entity.CanTransition(task.Status, d.To) {
		return &entity.InvalidTransitionError{From: task.Status, To: d.To}
	}

	task.Status = d.To
	task.Automation = &entity.AutomationApplied{
		Type:       d.Rule,
		Confidence: d.Confidence,
		Timestamp:  time.Now().UTC(),
		Details:    d.Details,
	}
	task.Touch()

	if err := e.store.SaveTask(ctx, task.Project, task); err != nil {
		return err
	}
	e.index.PutTask(task)

	e.logger.Info().
		Str("task_id", task.ID).
		Str("rule", d.Rule).
		Str("from", string(d.From)).
		Str("to", string(d.To)).
		Float64("confidence", d.Confidence).
		Msg("automated status change applied")
	return nil
}

// RunCheck evaluates every open task in batches and applies the
// non-advisory decisions. Evaluation within a batch is parallel;
// batches and applies are sequential.
func (e *Engine) RunCheck(ctx context.Context) (*RunSummary, error) {
	if err := e.index.RefreshIfDirty(ctx); err != nil {
		return nil, err
	}

	var open []*entity.Task
	for _, t := range e.index.Tasks() {
		if t.Status != entity.StatusDone {
			open = append(open, t)
		}
	}

	summary := &RunSummary{}
	for start := 0; start < len(open); start += e.batch {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		end := start + e.batch
		if end > len(open) {
			end = len(open)
		}

		decisions := e.evaluateBatch(open[start:end])
		summary.Evaluated += end - start

		for _, d := range decisions {
			summary.Proposed++
			if d.Advisory {
				summary.Advisories = append(summary.Advisories, d)
				continue
			}
			if err := e.Apply(ctx, d); err != nil {
				summary.Rejected++
				e.logger.Warn().Err(err).
					Str("task_id", d.TaskID).
					Str("rule", d.Rule).
					Msg("decision rejected")
				continue
			}
			summary.Applied++
			summary.Decisions = append(summary.Decisions, d)
		}
	}

	e.logger.Info().
		Int("evaluated", summary.Evaluated).
		Int("proposed", summary.Proposed).
		Int("applied", summary.Applied).
		Int("advisories", len(summary.Advisories)).
		Msg("automation check complete")
	return summary, nil
}

func (e *Engine) evaluateBatch(tasks []*entity.Task) []*Decision {
	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		decisions []*Decision
	)
	for _, task := range tasks {
		wg.Add(1)
		go func(t *entity.Task) {
			defer wg.Done()
			if d := e.Evaluate(t); d != nil {
				mu.Lock()
				decisions = append(decisions, d)
				mu.Unlock()
			}
		}(task)
	}
	wg.Wait()

	// deterministic apply order regardless of goroutine scheduling
	sort.Slice(decisions, func(i, j int) bool { return decisions[i].TaskID < decisions[j].TaskID })
	return decisions
}
