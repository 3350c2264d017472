package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/persona-cli/internal/config"
	"github.com/sells-group/persona-cli/internal/model"
	"github.com/sells-group/persona-cli/internal/resilience"
	"github.com/sells-group/persona-cli/pkg/anthropic"
)

func testEnrichConfig() config.EnrichConfig {
	return config.EnrichConfig{
		InitialChunk:       3,
		MinChunk:           1,
		MaxChunk:           100,
		MaxPasses:          3,
		TokenBudgetTPM:     1_000_000,
		SafetyTokensPerRow: 10,
	}
}

func testRetryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0,
		OnRetry:        func(int, error) {},
	}
}

func newTestOrchestrator(c Classifier) *Orchestrator {
	return NewOrchestrator(testEnrichConfig(), testRetryConfig(), c, testPersonas())
}

func chunkResponse(lines ...string) *Response {
	return &Response{
		Text:  strings.Join(lines, "\n"),
		Usage: anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}
}

func TestRunConvergesInOnePass(t *testing.T) {
	classifier := &funcClassifier{
		chunk: func(c Chunk) (*Response, error) {
			lines := make([]string, len(c.Prospects))
			for i, p := range c.Prospects {
				lines[i] = fmt.Sprintf("%s,%s,Data User,80", p.ID, p.JobTitle)
			}
			return chunkResponse(lines...), nil
		},
	}

	o := newTestOrchestrator(classifier)
	outcome, err := o.Run(context.Background(), []model.Prospect{
		{ID: "1", JobTitle: "Analyst"},
		{ID: "2", JobTitle: "Engineer"},
	})

	require.NoError(t, err)
	assert.Equal(t, StateConverged, outcome.State)
	assert.Len(t, outcome.Accepted, 2)
	assert.Empty(t, outcome.Skipped)
	require.Len(t, outcome.Passes, 1)
	assert.Equal(t, 2, outcome.Passes[0].PendingBefore)
	assert.Equal(t, 0, outcome.Passes[0].PendingAfter)
	assert.Equal(t, int64(100), outcome.Usage.InputTokens)
}

func TestRunSecondPassRecoversDroppedRecord(t *testing.T) {
	// Pass 1 omits prospect 3 from the response; the shrunken second pass
	// isolates it and succeeds.
	calls := 0
	classifier := &funcClassifier{
		chunk: func(c Chunk) (*Response, error) {
			calls++
			var lines []string
			for _, p := range c.Prospects {
				if calls == 1 && p.ID == "3" {
					continue
				}
				lines = append(lines, fmt.Sprintf("%s,%s,Data User,80", p.ID, p.JobTitle))
			}
			return chunkResponse(lines...), nil
		},
	}

	o := newTestOrchestrator(classifier)
	outcome, err := o.Run(context.Background(), []model.Prospect{
		{ID: "1", JobTitle: "Analyst"},
		{ID: "2", JobTitle: "Engineer"},
		{ID: "3", JobTitle: "DBA"},
	})

	require.NoError(t, err)
	assert.Equal(t, StateConverged, outcome.State)
	assert.Len(t, outcome.Accepted, 3)
	assert.Empty(t, outcome.Skipped)
	require.Len(t, outcome.Passes, 2)
	assert.Equal(t, 3, outcome.Passes[0].ChunkSize)
	assert.Equal(t, 1, outcome.Passes[0].PendingAfter)
	assert.Equal(t, 1, outcome.Passes[1].ChunkSize)
	assert.Equal(t, 0, outcome.Passes[1].PendingAfter)
}

func TestRunExhaustsOnPersistentInvalidPersona(t *testing.T) {
	classifier := &funcClassifier{
		chunk: func(c Chunk) (*Response, error) {
			var lines []string
			for _, p := range c.Prospects {
				persona := "Data User"
				if p.ID == "2" {
					persona = "Unicorn Rider"
				}
				lines = append(lines, fmt.Sprintf("%s,%s,%s,80", p.ID, p.JobTitle, persona))
			}
			return chunkResponse(lines...), nil
		},
	}

	o := newTestOrchestrator(classifier)
	outcome, err := o.Run(context.Background(), []model.Prospect{
		{ID: "1", JobTitle: "Analyst"},
		{ID: "2", JobTitle: "Juggler"},
	})

	require.NoError(t, err)
	assert.Equal(t, StateExhausted, outcome.State)
	assert.Len(t, outcome.Accepted, 1)
	require.Len(t, outcome.Skipped, 1)
	assert.Equal(t, "2", outcome.Skipped[0].ID)
	assert.Equal(t, model.SkipInvalidPersona, outcome.Skipped[0].Reason)
	assert.Len(t, outcome.Passes, 3)
}

func TestRunProviderFailureSkipsChunk(t *testing.T) {
	classifier := &funcClassifier{
		chunk: func(Chunk) (*Response, error) {
			return nil, resilience.NewTransientError(errors.New("overloaded"), 529)
		},
	}

	o := newTestOrchestrator(classifier)
	outcome, err := o.Run(context.Background(), []model.Prospect{
		{ID: "1", JobTitle: "Analyst"},
	})

	require.NoError(t, err)
	assert.Equal(t, StateExhausted, outcome.State)
	assert.Empty(t, outcome.Accepted)
	require.Len(t, outcome.Skipped, 1)
	assert.Equal(t, model.SkipProviderError, outcome.Skipped[0].Reason)
	assert.Contains(t, outcome.Skipped[0].Detail, "overloaded")
}

func TestRunFatalErrorDoesNotRetry(t *testing.T) {
	calls := 0
	classifier := &funcClassifier{
		chunk: func(Chunk) (*Response, error) {
			calls++
			return nil, resilience.NewFatalError(errors.New("invalid api key"), 401)
		},
	}

	o := newTestOrchestrator(classifier)
	outcome, err := o.Run(context.Background(), []model.Prospect{
		{ID: "1", JobTitle: "Analyst"},
	})

	require.NoError(t, err)
	assert.Equal(t, StateExhausted, outcome.State)
	// One call per pass, never retried within a pass.
	assert.Equal(t, 3, calls)
}

func TestRunExcludesBlankJobTitles(t *testing.T) {
	classifier := &funcClassifier{
		chunk: func(c Chunk) (*Response, error) {
			for _, p := range c.Prospects {
				require.NotEmpty(t, strings.TrimSpace(p.JobTitle))
			}
			var lines []string
			for _, p := range c.Prospects {
				lines = append(lines, fmt.Sprintf("%s,%s,Data User,80", p.ID, p.JobTitle))
			}
			return chunkResponse(lines...), nil
		},
	}

	o := newTestOrchestrator(classifier)
	outcome, err := o.Run(context.Background(), []model.Prospect{
		{ID: "1", JobTitle: "Analyst"},
		{ID: "2", JobTitle: "   "},
	})

	require.NoError(t, err)
	assert.Equal(t, StateConverged, outcome.State)
	assert.Len(t, outcome.Accepted, 1)
	require.Len(t, outcome.Skipped, 1)
	assert.Equal(t, "2", outcome.Skipped[0].ID)
	assert.Equal(t, model.SkipNoResponse, outcome.Skipped[0].Reason)
}

func TestRunEmptyInputConvergesImmediately(t *testing.T) {
	o := newTestOrchestrator(&funcClassifier{})
	outcome, err := o.Run(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, StateConverged, outcome.State)
	assert.Empty(t, outcome.Accepted)
	assert.Empty(t, outcome.Skipped)
	assert.Empty(t, outcome.Passes)
}

func TestRunHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	classifier := &funcClassifier{
		chunk: func(Chunk) (*Response, error) {
			cancel()
			return chunkResponse(), nil
		},
	}

	o := newTestOrchestrator(classifier)
	_, err := o.Run(ctx, []model.Prospect{{ID: "1", JobTitle: "Analyst"}})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunRecordsMixedOutcomes(t *testing.T) {
	classifier := &funcClassifier{
		record: func(p model.Prospect) (*Response, error) {
			if p.ID == "2" {
				return &Response{Text: `{"persona": "Unicorn Rider", "certainty": 99}`}, nil
			}
			return &Response{
				Text:  `{"persona": "Economic Buyer", "certainty": "85%"}`,
				Usage: anthropic.TokenUsage{InputTokens: 40, OutputTokens: 10},
			}, nil
		},
	}

	o := newTestOrchestrator(classifier)
	outcome, err := o.RunRecords(context.Background(), []model.Prospect{
		{ID: "1", JobTitle: "CFO"},
		{ID: "2", JobTitle: "Juggler"},
	})

	require.NoError(t, err)
	assert.Equal(t, StateConverged, outcome.State)
	require.Len(t, outcome.Accepted, 1)
	assert.Equal(t, "Economic Buyer", outcome.Accepted[0].Persona)
	assert.Equal(t, 85.0, outcome.Accepted[0].Certainty)
	require.Len(t, outcome.Skipped, 1)
	assert.Equal(t, model.SkipInvalidPersona, outcome.Skipped[0].Reason)
}

func TestRunRecordsProviderFailureIsExhausted(t *testing.T) {
	classifier := &funcClassifier{
		record: func(model.Prospect) (*Response, error) {
			return nil, resilience.NewTransientError(errors.New("timeout"), 408)
		},
	}

	o := newTestOrchestrator(classifier)
	outcome, err := o.RunRecords(context.Background(), []model.Prospect{
		{ID: "1", JobTitle: "CFO"},
	})

	require.NoError(t, err)
	assert.Equal(t, StateExhausted, outcome.State)
	require.Len(t, outcome.Skipped, 1)
	assert.Equal(t, model.SkipProviderError, outcome.Skipped[0].Reason)
}

func TestNextState(t *testing.T) {
	assert.Equal(t, StateConverged, nextState(0, 1, 3))
	assert.Equal(t, StateRunning, nextState(5, 1, 3))
	assert.Equal(t, StateRunning, nextState(5, 2, 3))
	assert.Equal(t, StateExhausted, nextState(5, 3, 3))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "initializing", StateInitializing.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "converged", StateConverged.String())
	assert.Equal(t, "exhausted", StateExhausted.String())
}
