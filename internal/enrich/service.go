package enrich

import (
	"context"

	"github.com/sells-group/persona-cli/internal/config"
	"github.com/sells-group/persona-cli/internal/model"
	"github.com/sells-group/persona-cli/pkg/anthropic"
)

// Response is the raw text of one classification request along with its
// token usage.
type Response struct {
	Text  string
	Usage anthropic.TokenUsage
}

// Classifier is the request boundary to the classification service. The
// orchestrator never talks to the provider directly, so tests can stub
// this out.
type Classifier interface {
	// ClassifyChunk submits a chunk in tabular mode and returns the
	// line-oriented response.
	ClassifyChunk(ctx context.Context, c Chunk) (*Response, error)
	// ClassifyRecord submits a single prospect in structured mode and
	// returns the JSON response.
	ClassifyRecord(ctx context.Context, p model.Prospect) (*Response, error)
}

type anthropicClassifier struct {
	client           anthropic.Client
	model            string
	maxTokens        int64
	tabularSystem    []anthropic.SystemBlock
	structuredSystem []anthropic.SystemBlock
}

// NewClassifier builds the Anthropic-backed Classifier. instructions is the
// combined frame + persona-definitions text shared by every request.
func NewClassifier(client anthropic.Client, cfg config.AnthropicConfig, instructions string) Classifier {
	return &anthropicClassifier{
		client:           client,
		model:            cfg.Model,
		maxTokens:        int64(cfg.MaxTokens),
		tabularSystem:    anthropic.BuildCachedSystemBlocks(TabularSystemPrompt(instructions)),
		structuredSystem: anthropic.BuildCachedSystemBlocks(StructuredSystemPrompt(instructions)),
	}
}

func (c *anthropicClassifier) send(ctx context.Context, system []anthropic.SystemBlock, user string) (*Response, error) {
	temperature := 0.0
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		System:      system,
		Messages:    []anthropic.Message{{Role: "user", Content: user}},
		Temperature: &temperature,
	})
	if err != nil {
		return nil, err
	}
	return &Response{Text: resp.Text(), Usage: resp.Usage}, nil
}

func (c *anthropicClassifier) ClassifyChunk(ctx context.Context, chunk Chunk) (*Response, error) {
	return c.send(ctx, c.tabularSystem, TabularPayload(chunk))
}

func (c *anthropicClassifier) ClassifyRecord(ctx context.Context, p model.Prospect) (*Response, error) {
	return c.send(ctx, c.structuredSystem, StructuredPayload(p.ID, p.JobTitle))
}
