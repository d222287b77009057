// Package memory is an in-process vector store using brute-force cosine
// similarity. It backs tests and small single-corpus deployments where
// running Postgres or Weaviate is not worth it; semantics match the other
// backends exactly.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"campaignlab/internal/rag"
	"campaignlab/internal/retrieval"
)

type record struct {
	entry retrieval.Entry
	seq   uint64
}

type Store struct {
	mu      sync.RWMutex
	dim     int
	seq     uint64
	records []record
}

func NewStore(dim int) *Store {
	return &Store{dim: dim}
}

func (s *Store) Upsert(_ context.Context, entries []retrieval.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if len(e.Vector) != s.dim {
			return fmt.Errorf("%w: entry for document %s has %d dimensions, store uses %d", rag.ErrSchemaMismatch, e.DocumentID, len(e.Vector), s.dim)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := make(map[string]bool)
	for _, e := range entries {
		replaced[e.DocumentID] = true
	}
	kept := s.records[:0]
	for _, r := range s.records {
		if !replaced[r.entry.DocumentID] {
			kept = append(kept, r)
		}
	}
	s.records = kept

	s.seq++
	for _, e := range entries {
		s.records = append(s.records, record{entry: e, seq: s.seq})
	}
	return nil
}

func (s *Store) Query(_ context.Context, vector []float32, k int, brandID string) ([]retrieval.Result, error) {
	if len(vector) != s.dim {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, store uses %d", rag.ErrSchemaMismatch, len(vector), s.dim)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		rec   record
		score float32
	}
	var candidates []scored
	for _, r := range s.records {
		if brandID != "" && r.entry.BrandID != brandID {
			continue
		}
		candidates = append(candidates, scored{rec: r, score: cosine(vector, r.entry.Vector)})
	}

	// Descending score; ties break by most recent ingestion, then ordinal,
	// matching the SQL backend's ordering.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if candidates[i].rec.seq != candidates[j].rec.seq {
			return candidates[i].rec.seq > candidates[j].rec.seq
		}
		return candidates[i].rec.entry.Ordinal < candidates[j].rec.entry.Ordinal
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	results := make([]retrieval.Result, 0, k)
	for _, c := range candidates[:k] {
		results = append(results, retrieval.Result{
			Text:       c.rec.entry.Text,
			Score:      c.score,
			DocumentID: c.rec.entry.DocumentID,
			Ordinal:    c.rec.entry.Ordinal,
		})
	}
	return results, nil
}

func (s *Store) Delete(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	for _, r := range s.records {
		if r.entry.DocumentID != documentID {
			kept = append(kept, r)
		}
	}
	s.records = kept
	return nil
}

func (s *Store) CountChunks(_ context.Context, brandID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if brandID == "" {
		return len(s.records), nil
	}
	n := 0
	for _, r := range s.records {
		if r.entry.BrandID == brandID {
			n++
		}
	}
	return n, nil
}

// cosine returns raw cosine similarity in [-1, 1]. Vectors are not assumed
// to be normalized.
func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
