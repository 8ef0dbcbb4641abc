package knowledge

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"testing"
)

// mockEmbedder returns deterministic bag-of-words embeddings: texts sharing
// words land on the same vector positions.
type mockEmbedder struct {
	dims int
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, m.dims)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			h.Write([]byte(word))
			vec[h.Sum32()%uint32(m.dims)] += 1
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v * v)
		}
		norm = math.Sqrt(norm)
		for k := range vec {
			if norm > 0 {
				vec[k] = float32(float64(vec[k]) / norm)
			}
		}
		out[i] = vec
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int { return m.dims }
func (m *mockEmbedder) Name() string    { return "mock" }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(&mockEmbedder{dims: 256})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

var notes = []Chunk{
	{Source: "sched.md", Index: 0, Hash: "h1", Content: "Round robin scheduling gives each process a time quantum"},
	{Source: "sched.md", Index: 1, Hash: "h1", Content: "Multilevel feedback queues move processes between priority levels"},
	{Source: "memory.md", Index: 0, Hash: "h2", Content: "Paging splits memory into fixed size frames and pages"},
}

func TestStoreAddAndQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if res, err := s.Query(ctx, "anything", 3); err != nil || res != nil {
		t.Errorf("empty query = %v, %v", res, err)
	}

	if err := s.Add(ctx, notes); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if s.Count() != 3 {
		t.Fatalf("Count = %d", s.Count())
	}

	res, err := s.Query(ctx, "paging memory frames", 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res) != 3 {
		t.Fatalf("k not clamped to collection size: %d", len(res))
	}
	if res[0].Source != "memory.md" {
		t.Errorf("best match = %+v", res[0].Chunk)
	}

	text, err := s.Context(ctx, "paging memory frames", 2)
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if strings.Count(text, "\n\n") != 1 {
		t.Errorf("context = %q", text)
	}
}

func TestStoreReAddOverwrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	s.Add(ctx, notes)
	s.Add(ctx, notes[:1])
	if s.Count() != 3 {
		t.Errorf("Count = %d, duplicate chunk ids", s.Count())
	}
	if notes[0].ID() == notes[1].ID() {
		t.Error("distinct chunks share an id")
	}
}

func TestStoreDeleteSourceAndHash(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	s.Add(ctx, notes)

	if h, _ := s.SourceHash(ctx, "sched.md"); h != "h1" {
		t.Errorf("hash = %q", h)
	}
	if err := s.DeleteSource(ctx, "sched.md"); err != nil {
		t.Fatalf("DeleteSource: %v", err)
	}
	if s.Count() != 1 {
		t.Errorf("Count = %d after delete", s.Count())
	}
	if h, _ := s.SourceHash(ctx, "sched.md"); h != "" {
		t.Errorf("hash after delete = %q", h)
	}
}

func TestStorePersistAndLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	empty := newTestStore(t)
	if err := empty.Load(dir); !errors.Is(err, ErrNoIndex) {
		t.Errorf("Load of empty dir = %v", err)
	}

	s := newTestStore(t)
	s.Add(ctx, notes)
	if err := s.Persist(dir); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	loaded := newTestStore(t)
	if err := loaded.Load(dir); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Count() != 3 {
		t.Errorf("loaded Count = %d", loaded.Count())
	}
	res, err := loaded.Query(ctx, "round robin quantum", 1)
	if err != nil || len(res) != 1 || res[0].Source != "sched.md" {
		t.Errorf("loaded query = %+v, %v", res, err)
	}
}
