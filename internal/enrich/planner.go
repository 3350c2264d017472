package enrich

import (
	"github.com/sells-group/persona-cli/internal/model"
)

// Chunk is an ordered, non-overlapping group of prospects submitted
// together in one classification request. Chunks live for a single request
// attempt; each pass replans from its own pending set.
type Chunk struct {
	Prospects []model.Prospect
	EstTokens int
}

// IDs returns the prospect identifiers in the chunk, in order.
func (c Chunk) IDs() []string {
	ids := make([]string, len(c.Prospects))
	for i, p := range c.Prospects {
		ids[i] = p.ID
	}
	return ids
}

// PlanChunks partitions prospects into chunks of at most chunkSize records
// whose estimated token cost stays under tokenCeiling. A single prospect
// whose estimate alone exceeds the ceiling still forms its own chunk rather
// than being dropped.
func PlanChunks(prospects []model.Prospect, chunkSize, tokenCeiling int, est func(model.Prospect) int) []Chunk {
	if chunkSize < 1 {
		chunkSize = 1
	}

	var chunks []Chunk
	var cur Chunk
	for _, p := range prospects {
		cost := est(p)
		full := len(cur.Prospects) >= chunkSize ||
			(len(cur.Prospects) > 0 && tokenCeiling > 0 && cur.EstTokens+cost > tokenCeiling)
		if full {
			chunks = append(chunks, cur)
			cur = Chunk{}
		}
		cur.Prospects = append(cur.Prospects, p)
		cur.EstTokens += cost
	}
	if len(cur.Prospects) > 0 {
		chunks = append(chunks, cur)
	}
	return chunks
}
