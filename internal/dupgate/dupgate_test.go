package dupgate

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"tourpost/internal/storage"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

func testStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCheckRejectsNearDuplicate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.AddPost(ctx, "가평 캠핑장 추천", []float32{1, 0, 0}); err != nil {
		t.Fatal(err)
	}

	// Cosine similarity with {1,0,0} is 0.97 > 0.95.
	vec := []float32{0.97, float32(math.Sqrt(1 - 0.97*0.97)), 0}
	gate := NewGate(s, &fakeEmbedder{vec: vec}, 0.95)

	_, ok, err := gate.Check(ctx, "본문")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("near-duplicate article passed the gate")
	}
}

func TestCheckAcceptsDistinct(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.AddPost(ctx, "가평 캠핑장 추천", []float32{1, 0, 0}); err != nil {
		t.Fatal(err)
	}

	vec := []float32{0.80, float32(math.Sqrt(1 - 0.80*0.80)), 0}
	gate := NewGate(s, &fakeEmbedder{vec: vec}, 0.95)

	emb, ok, err := gate.Check(ctx, "본문")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("distinct article blocked by the gate")
	}
	if len(emb) != 3 {
		t.Errorf("expected the embedding back, got %v", emb)
	}
}

func TestCheckAbortsOnEmbedderError(t *testing.T) {
	s := testStore(t)
	gate := NewGate(s, &fakeEmbedder{err: errors.New("quota exceeded")}, 0.95)

	emb, ok, err := gate.Check(context.Background(), "본문")
	if err == nil {
		t.Fatal("embedder failure must abort the check")
	}
	if ok {
		t.Error("check must not pass without an embedding")
	}
	if emb != nil {
		t.Errorf("expected nil embedding, got %v", emb)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("CosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}
