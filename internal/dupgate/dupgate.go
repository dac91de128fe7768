// Package dupgate blocks publishing articles that are semantically
// near-duplicates of earlier posts, using embedding cosine similarity.
package dupgate

import (
	"context"
	"fmt"
	"math"

	"tourpost/internal/logger"
	"tourpost/internal/storage"
)

// Embedder turns text into a vector. Satisfied by the gemini client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Gate struct {
	store     *storage.Store
	embedder  Embedder
	threshold float64
}

func NewGate(store *storage.Store, embedder Embedder, threshold float64) *Gate {
	return &Gate{store: store, embedder: embedder, threshold: threshold}
}

// Check embeds the article text and compares it against every published
// post. It returns the embedding so an accepted article can be recorded
// without a second API call. An embedding failure aborts the check:
// publishing anyway would record a post with no vector, leaving it
// invisible to every future duplicate scan.
func (g *Gate) Check(ctx context.Context, text string) ([]float32, bool, error) {
	emb, err := g.embedder.Embed(ctx, text)
	if err != nil {
		logger.Error("embedding failed, cannot run similarity gate", "error", err)
		return nil, false, fmt.Errorf("failed to embed article: %w", err)
	}

	posts, err := g.store.Posts(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load published posts: %w", err)
	}

	for _, p := range posts {
		if len(p.Embedding) == 0 {
			continue
		}
		sim := CosineSimilarity(emb, p.Embedding)
		if sim > g.threshold {
			logger.Warn("article too similar to published post",
				"existing", p.Title, "similarity", fmt.Sprintf("%.3f", sim))
			return emb, false, nil
		}
	}

	return emb, true, nil
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths or zero vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
