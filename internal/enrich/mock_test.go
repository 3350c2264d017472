package enrich

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/persona-cli/internal/model"
	"github.com/sells-group/persona-cli/pkg/anthropic"
)

// --- Anthropic Client Mock ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// funcClassifier scripts responses as a function of the submitted chunk,
// for tests where the reply depends on which prospects are pending.
type funcClassifier struct {
	chunk  func(c Chunk) (*Response, error)
	record func(p model.Prospect) (*Response, error)
}

func (f *funcClassifier) ClassifyChunk(_ context.Context, c Chunk) (*Response, error) {
	return f.chunk(c)
}

func (f *funcClassifier) ClassifyRecord(_ context.Context, p model.Prospect) (*Response, error) {
	return f.record(p)
}
