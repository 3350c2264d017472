// Package enrich implements the persona enrichment core: chunk planning,
// response parsing, skip classification, multi-pass orchestration, and
// result merging.
package enrich

import (
	"github.com/tiktoken-go/tokenizer"

	"github.com/sells-group/persona-cli/internal/model"
)

// TokenCounter estimates the token cost of submitting prospects. The
// estimate paces request sizing against the provider's TPM budget; it is
// never used for correctness.
type TokenCounter struct {
	codec  tokenizer.Codec
	safety int
}

// NewTokenCounter creates a counter with the given per-row safety margin.
// Claude tokenization is approximated with the GPT-4 encoding; when the
// codec cannot be built the counter falls back to chars/4.
func NewTokenCounter(safetyPerRow int) *TokenCounter {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		codec = nil
	}
	return &TokenCounter{codec: codec, safety: safetyPerRow}
}

// Count returns the number of tokens in the given text, falling back to a
// chars/4 estimate when no codec is available.
func (tc *TokenCounter) Count(text string) int {
	if tc.codec == nil {
		return len(text) / 4
	}
	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// EstimateRow returns the estimated token cost of one prospect row,
// including the per-row safety margin for the model's echoed output.
func (tc *TokenCounter) EstimateRow(p model.Prospect) int {
	return tc.Count(p.ID+","+p.JobTitle) + tc.safety
}
