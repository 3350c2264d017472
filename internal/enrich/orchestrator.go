package enrich

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/persona-cli/internal/config"
	"github.com/sells-group/persona-cli/internal/model"
	"github.com/sells-group/persona-cli/internal/resilience"
	"github.com/sells-group/persona-cli/pkg/anthropic"
)

// State is the orchestrator's position in its run lifecycle.
type State int

const (
	StateInitializing State = iota
	StateRunning
	// StateConverged means every eligible prospect has a valid result.
	StateConverged
	// StateExhausted means the pass limit was reached with prospects still
	// unresolved.
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateConverged:
		return "converged"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// nextState decides the transition at the end of a pass.
func nextState(pending, pass, maxPasses int) State {
	if pending == 0 {
		return StateConverged
	}
	if pass >= maxPasses {
		return StateExhausted
	}
	return StateRunning
}

// Outcome is the terminal product of a run: disjoint accepted and skipped
// sets covering every input prospect, plus per-pass statistics and total
// token usage.
type Outcome struct {
	State    State
	Accepted []model.AcceptedRecord
	Skipped  []model.SkippedRecord
	Passes   []model.PassStats
	Usage    anthropic.TokenUsage
}

// Orchestrator drives repeated passes over the unresolved prospect set,
// shrinking the chunk size each pass so that a record poisoning a large
// chunk eventually gets isolated. Execution is strictly sequential: the
// provider budget is shared, so requests are paced by estimated tokens
// rather than parallelized.
type Orchestrator struct {
	cfg        config.EnrichConfig
	retry      resilience.RetryConfig
	classifier Classifier
	personas   model.PersonaSet
	counter    *TokenCounter
	limiter    *rate.Limiter
}

// NewOrchestrator wires the multi-pass orchestrator. The token-per-minute
// budget becomes a rate limiter that every request waits on with its
// estimated cost.
func NewOrchestrator(cfg config.EnrichConfig, retry resilience.RetryConfig, classifier Classifier, personas model.PersonaSet) *Orchestrator {
	budget := cfg.TokenBudgetTPM
	if budget <= 0 {
		budget = 360000
	}
	return &Orchestrator{
		cfg:        cfg,
		retry:      retry,
		classifier: classifier,
		personas:   personas,
		counter:    NewTokenCounter(cfg.SafetyTokensPerRow),
		limiter:    rate.NewLimiter(rate.Limit(float64(budget)/60.0), budget),
	}
}

// Run executes the full multi-pass pipeline over the prospect set and
// returns a terminal outcome. Prospects without a job title are excluded
// before the first pass and surface in the skipped set as NoResponse.
func (o *Orchestrator) Run(ctx context.Context, prospects []model.Prospect) (*Outcome, error) {
	log := zap.L().With(zap.Int("prospects", len(prospects)))
	log.Info("enrich: starting run")

	results := make(map[string]model.ClassificationResult)
	tracker := NewTracker()

	eligible := make(map[string]bool)
	for _, p := range prospects {
		if strings.TrimSpace(p.JobTitle) != "" {
			eligible[p.ID] = true
		}
	}

	outcome := &Outcome{State: StateRunning}
	chunkSize := o.initialChunkSize()

	for pass := 1; ; pass++ {
		pending := o.pendingSet(prospects, eligible, results)
		if len(pending) == 0 {
			outcome.State = StateConverged
			break
		}

		stats := model.PassStats{
			Pass:          pass,
			ChunkSize:     chunkSize,
			PendingBefore: len(pending),
			StartedAt:     time.Now().UTC(),
		}
		log.Info("enrich: pass starting",
			zap.Int("pass", pass),
			zap.Int("max_passes", o.cfg.MaxPasses),
			zap.Int("pending", len(pending)),
			zap.Int("chunk_size", chunkSize),
		)

		for _, chunk := range PlanChunks(pending, chunkSize, o.cfg.ChunkTokenCeiling, o.counter.EstimateRow) {
			o.runChunk(ctx, chunk, results, tracker, &outcome.Usage)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}

		remaining := o.pendingSet(prospects, eligible, results)
		stats.PendingAfter = len(remaining)
		outcome.Passes = append(outcome.Passes, stats)
		log.Info("enrich: pass complete",
			zap.Int("pass", pass),
			zap.Int("resolved", stats.PendingBefore-stats.PendingAfter),
			zap.Int("remaining", stats.PendingAfter),
		)

		state := nextState(len(remaining), pass, o.cfg.MaxPasses)
		if state != StateRunning {
			outcome.State = state
			break
		}
		chunkSize = shrinkChunkSize(chunkSize, o.cfg.MinChunk)
	}

	outcome.Accepted, outcome.Skipped = Merge(prospects, results, tracker)
	log.Info("enrich: run finished",
		zap.String("state", outcome.State.String()),
		zap.Int("accepted", len(outcome.Accepted)),
		zap.Int("skipped", len(outcome.Skipped)),
		zap.Int("passes", len(outcome.Passes)),
	)
	return outcome, nil
}

// RunRecords classifies each prospect individually in structured mode.
// Used by the rerun path, where the remaining records already failed in
// chunked form and per-record isolation is worth the extra requests.
func (o *Orchestrator) RunRecords(ctx context.Context, prospects []model.Prospect) (*Outcome, error) {
	results := make(map[string]model.ClassificationResult)
	tracker := NewTracker()
	outcome := &Outcome{}

	for _, p := range prospects {
		if strings.TrimSpace(p.JobTitle) == "" {
			continue
		}
		cost := o.counter.EstimateRow(p)
		resp, err := resilience.DoVal(ctx, o.retryConfig("record"), func(ctx context.Context) (*Response, error) {
			if err := o.waitBudget(ctx, cost); err != nil {
				return nil, err
			}
			return o.classifier.ClassifyRecord(ctx, p)
		})
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			tracker.ProviderFailure([]string{p.ID}, err)
			continue
		}

		outcome.Usage.Add(resp.Usage)
		parsed := ParseStructured(p.ID, resp.Text, o.personas)
		tracker.Observe(p.ID, parsed)
		if parsed.Kind == OutcomeValid {
			results[p.ID] = *parsed.Result
		}
	}

	outcome.Accepted, outcome.Skipped = Merge(prospects, results, tracker)
	if anyUnresolved(outcome.Skipped) {
		outcome.State = StateExhausted
	} else {
		outcome.State = StateConverged
	}
	outcome.Passes = []model.PassStats{{
		Pass:          1,
		ChunkSize:     1,
		PendingBefore: len(prospects),
		PendingAfter:  len(outcome.Skipped),
		StartedAt:     time.Now().UTC(),
	}}
	return outcome, nil
}

// runChunk submits one chunk under the retry controller, parses whatever
// comes back, and records attempt history. A failed unit (fatal or
// retries exhausted) marks every identifier in the chunk; those prospects
// stay pending for the next, smaller-chunked pass.
func (o *Orchestrator) runChunk(ctx context.Context, chunk Chunk, results map[string]model.ClassificationResult, tracker *Tracker, usage *anthropic.TokenUsage) {
	cost := chunk.EstTokens
	resp, err := resilience.DoVal(ctx, o.retryConfig("chunk"), func(ctx context.Context) (*Response, error) {
		if err := o.waitBudget(ctx, cost); err != nil {
			return nil, err
		}
		return o.classifier.ClassifyChunk(ctx, chunk)
	})
	if err != nil {
		zap.L().Warn("enrich: chunk failed",
			zap.Int("records", len(chunk.Prospects)),
			zap.Bool("fatal", resilience.IsFatal(err)),
			zap.Error(err),
		)
		tracker.ProviderFailure(chunk.IDs(), err)
		return
	}

	usage.Add(resp.Usage)
	outcomes := ParseTabular(resp.Text, o.personas)

	absent := 0
	for _, id := range chunk.IDs() {
		outcome, ok := outcomes[id]
		if !ok {
			absent++
			continue
		}
		tracker.Observe(id, outcome)
		if outcome.Kind == OutcomeValid {
			results[id] = *outcome.Result
		}
	}
	if absent > 0 {
		zap.L().Warn("enrich: response omitted records",
			zap.Int("submitted", len(chunk.Prospects)),
			zap.Int("absent", absent),
		)
	}
}

// waitBudget blocks until the token budget allows a request of the given
// estimated cost. Oversized requests are clamped to the limiter's burst so
// a single huge chunk still goes through after draining the budget.
func (o *Orchestrator) waitBudget(ctx context.Context, cost int) error {
	if cost < 1 {
		cost = 1
	}
	if burst := o.limiter.Burst(); cost > burst {
		cost = burst
	}
	return o.limiter.WaitN(ctx, cost)
}

func (o *Orchestrator) retryConfig(operation string) resilience.RetryConfig {
	cfg := o.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("anthropic", operation)
	}
	return cfg
}

func (o *Orchestrator) pendingSet(prospects []model.Prospect, eligible map[string]bool, results map[string]model.ClassificationResult) []model.Prospect {
	var pending []model.Prospect
	seen := make(map[string]bool)
	for _, p := range prospects {
		if !eligible[p.ID] || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		if _, ok := results[p.ID]; !ok {
			pending = append(pending, p)
		}
	}
	return pending
}

func (o *Orchestrator) initialChunkSize() int {
	size := o.cfg.InitialChunk
	if size < 1 {
		size = 1
	}
	if o.cfg.MaxChunk > 0 && size > o.cfg.MaxChunk {
		size = o.cfg.MaxChunk
	}
	return size
}

// shrinkChunkSize halves the chunk size between passes, floored at the
// configured minimum (and never below 1).
func shrinkChunkSize(size, minChunk int) int {
	size /= 2
	if minChunk < 1 {
		minChunk = 1
	}
	if size < minChunk {
		size = minChunk
	}
	return size
}

func anyUnresolved(skipped []model.SkippedRecord) bool {
	for _, s := range skipped {
		if s.Reason == model.SkipNoResponse || s.Reason == model.SkipProviderError {
			return true
		}
	}
	return false
}
