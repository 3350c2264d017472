package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/persona-cli/internal/cost"
	"github.com/sells-group/persona-cli/internal/enrich"
	"github.com/sells-group/persona-cli/internal/model"
	"github.com/sells-group/persona-cli/internal/resilience"
	"github.com/sells-group/persona-cli/internal/store"
	"github.com/sells-group/persona-cli/pkg/anthropic"
)

func personaSet() model.PersonaSet {
	labels := cfg.Enrich.Personas
	if len(labels) == 0 {
		labels = model.DefaultPersonas()
	}
	return model.NewPersonaSet(labels)
}

func retryConfig() resilience.RetryConfig {
	return resilience.FromConfig(
		cfg.Retry.MaxAttempts,
		time.Duration(cfg.Retry.InitialBackoffMs)*time.Millisecond,
		time.Duration(cfg.Retry.MaxBackoffMs)*time.Millisecond,
	)
}

// buildOrchestrator wires the full classification stack from configuration.
func buildOrchestrator() (*enrich.Orchestrator, error) {
	if err := cfg.Validate("enrich"); err != nil {
		return nil, err
	}

	instructions, err := enrich.LoadSystemInstructions(cfg.Enrich.FrameFile, cfg.Enrich.PersonasFile)
	if err != nil {
		return nil, err
	}

	client := anthropic.NewClient(cfg.Anthropic.Key)
	classifier := enrich.NewClassifier(client, cfg.Anthropic, instructions)
	return enrich.NewOrchestrator(cfg.Enrich, retryConfig(), classifier, personaSet()), nil
}

// openStore opens the run-history store, or returns nil when none is
// configured.
func openStore(ctx context.Context) (store.Store, error) {
	if cfg.Store.Path == "" {
		return nil, nil
	}
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// recordRun persists the outcome of a run when a store is configured.
// Failures here are logged, never fatal: the CSVs on disk are the source
// of truth.
func recordRun(ctx context.Context, st store.Store, source string, outcome *enrich.Outcome, prospects int) {
	if st == nil {
		return
	}

	run, err := st.CreateRun(ctx, source)
	if err != nil {
		zap.L().Warn("store: create run failed", zap.Error(err))
		return
	}

	for _, pass := range outcome.Passes {
		pass.RunID = run.ID
		if err := st.RecordPass(ctx, pass); err != nil {
			zap.L().Warn("store: record pass failed", zap.Error(err))
		}
	}

	calc := cost.NewCalculator(cost.DefaultRates())
	result := &model.RunResult{
		Prospects:    prospects,
		Accepted:     len(outcome.Accepted),
		Skipped:      len(outcome.Skipped),
		Passes:       len(outcome.Passes),
		InputTokens:  int(outcome.Usage.InputTokens),
		OutputTokens: int(outcome.Usage.OutputTokens),
		TotalCost: calc.Claude(cfg.Anthropic.Model,
			int(outcome.Usage.InputTokens),
			int(outcome.Usage.OutputTokens),
			int(outcome.Usage.CacheCreationInputTokens),
			int(outcome.Usage.CacheReadInputTokens),
		),
	}
	if err := st.UpdateRunResult(ctx, run.ID, result); err != nil {
		zap.L().Warn("store: update result failed", zap.Error(err))
	}

	status := model.RunStatusConverged
	if outcome.State == enrich.StateExhausted {
		status = model.RunStatusExhausted
	}
	if err := st.UpdateRunStatus(ctx, run.ID, status); err != nil {
		zap.L().Warn("store: update status failed", zap.Error(err))
	}
}

// logSummary prints the tallies and persona distribution for a finished run.
func logSummary(outcome *enrich.Outcome, acceptedPath, skippedPath string) {
	distribution := make(map[string]int)
	for _, r := range outcome.Accepted {
		distribution[r.Persona]++
	}

	fields := []zap.Field{
		zap.String("state", outcome.State.String()),
		zap.Int("accepted", len(outcome.Accepted)),
		zap.Int("skipped", len(outcome.Skipped)),
		zap.Int64("input_tokens", outcome.Usage.InputTokens),
		zap.Int64("output_tokens", outcome.Usage.OutputTokens),
		zap.String("accepted_path", acceptedPath),
		zap.String("skipped_path", skippedPath),
	}
	for persona, count := range distribution {
		fields = append(fields, zap.Int("persona:"+persona, count))
	}
	zap.L().Info("enrichment summary", fields...)
}
