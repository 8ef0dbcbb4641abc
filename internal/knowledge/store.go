package knowledge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/osbuddy/internal/embeddings"
)

const (
	collectionName = "notes"
	indexFile      = "knowledge.gob.gz"
)

// Chunk is one indexed slice of a reference note.
type Chunk struct {
	Source  string // path of the note, relative to the ingest root
	Index   int    // position of the chunk within Source
	Hash    string // content hash of the whole source file
	Content string
}

// ID is stable for a (source, index) pair so re-ingesting overwrites.
func (c Chunk) ID() string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(c.Source+"#"+strconv.Itoa(c.Index))).String()
}

// Result is a retrieved chunk and its cosine similarity to the query.
type Result struct {
	Chunk
	Similarity float32
}

// Store is a chromem-go backed vector index of reference notes.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedFunc  chromem.EmbeddingFunc
}

// NewStore creates an empty in-memory store.
func NewStore(embedder embeddings.Embedder) (*Store, error) {
	db := chromem.NewDB()
	ef := embeddings.ToChromemFunc(embedder)

	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &Store{db: db, collection: col, embedFunc: ef}, nil
}

// Add embeds and indexes chunks.
func (s *Store) Add(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:      c.ID(),
			Content: c.Content,
			Metadata: map[string]string{
				"source": c.Source,
				"index":  strconv.Itoa(c.Index),
				"hash":   c.Hash,
			},
		}
	}
	return s.collection.AddDocuments(ctx, docs, 1)
}

// DeleteSource drops every chunk of a note.
func (s *Store) DeleteSource(ctx context.Context, source string) error {
	return s.collection.Delete(ctx, map[string]string{"source": source}, nil)
}

// SourceHash returns the content hash recorded for source, or "" if the
// note is not indexed.
func (s *Store) SourceHash(ctx context.Context, source string) (string, error) {
	if s.collection.Count() == 0 {
		return "", nil
	}
	res, err := s.collection.Query(ctx, source, 1, map[string]string{"source": source}, nil)
	if err != nil || len(res) == 0 {
		// A failed lookup is treated as not indexed.
		return "", nil
	}
	return res[0].Metadata["hash"], nil
}

// Query returns the k chunks most similar to question.
func (s *Store) Query(ctx context.Context, question string, k int) ([]Result, error) {
	count := s.collection.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	// chromem-go requires nResults <= collection size.
	k = min(k, count)

	res, err := s.collection.Query(ctx, question, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("knowledge query: %w", err)
	}
	out := make([]Result, len(res))
	for i, r := range res {
		idx, _ := strconv.Atoi(r.Metadata["index"])
		out[i] = Result{
			Chunk: Chunk{
				Source:  r.Metadata["source"],
				Index:   idx,
				Hash:    r.Metadata["hash"],
				Content: r.Content,
			},
			Similarity: r.Similarity,
		}
	}
	return out, nil
}

// Context returns the k best chunks for question joined by blank lines,
// ready to hand to the tutor.
func (s *Store) Context(ctx context.Context, question string, k int) (string, error) {
	res, err := s.Query(ctx, question, k)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(res))
	for i, r := range res {
		parts[i] = r.Content
	}
	return strings.Join(parts, "\n\n"), nil
}

// Count returns the number of indexed chunks.
func (s *Store) Count() int {
	return s.collection.Count()
}

// Persist writes the index under dir.
func (s *Store) Persist(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return s.db.ExportToFile(filepath.Join(dir, indexFile), true, "")
}

// Load replaces the store contents with the index persisted under dir.
// A missing index is ErrNoIndex.
func (s *Store) Load(dir string) error {
	path := filepath.Join(dir, indexFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return ErrNoIndex
	}
	if err := s.db.ImportFromFile(path, ""); err != nil {
		return fmt.Errorf("import from file: %w", err)
	}

	// Re-acquire collection reference after import.
	col := s.db.GetCollection(collectionName, s.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	s.collection = col
	return nil
}

// ErrNoIndex means nothing has been ingested into the data directory yet.
var ErrNoIndex = errors.New("knowledge: no index; run osbuddy ingest")
