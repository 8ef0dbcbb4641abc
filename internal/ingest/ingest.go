package ingest

import (
	"context"
	"fmt"
	"log"

	"github.com/ziadkadry99/osbuddy/internal/knowledge"
	"github.com/ziadkadry99/osbuddy/internal/progress"
)

// Index is the part of the knowledge store ingestion writes to.
type Index interface {
	Add(ctx context.Context, chunks []knowledge.Chunk) error
	DeleteSource(ctx context.Context, source string) error
	SourceHash(ctx context.Context, source string) (string, error)
}

// Options control a single ingestion run.
type Options struct {
	Root         string
	Include      []string
	Exclude      []string
	ChunkSize    int
	ChunkOverlap int
	MaxFileSize  int64
	// Force re-embeds notes whose content hash has not changed.
	Force bool
}

// Stats summarize an ingestion run.
type Stats struct {
	Files   int
	Skipped int
	Chunks  int
}

// Run walks opts.Root, splits every changed note into chunks and replaces
// that note's chunks in idx.
func Run(ctx context.Context, idx Index, opts Options, reporter progress.Reporter) (Stats, error) {
	notes, err := Walk(opts.Root, opts.Include, opts.Exclude, opts.MaxFileSize)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	reporter.Start(len(notes))
	defer reporter.Finish()

	for i, note := range notes {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		reporter.Update(i+1, note.RelPath)

		if !opts.Force {
			if prev, _ := idx.SourceHash(ctx, note.RelPath); prev == note.Hash {
				stats.Skipped++
				continue
			}
		}

		if err := idx.DeleteSource(ctx, note.RelPath); err != nil {
			return stats, fmt.Errorf("clearing %s: %w", note.RelPath, err)
		}
		parts := Split(note.Content, opts.ChunkSize, opts.ChunkOverlap)
		chunks := make([]knowledge.Chunk, len(parts))
		for j, p := range parts {
			chunks[j] = knowledge.Chunk{Source: note.RelPath, Index: j, Hash: note.Hash, Content: p}
		}
		if err := idx.Add(ctx, chunks); err != nil {
			return stats, fmt.Errorf("indexing %s: %w", note.RelPath, err)
		}
		stats.Files++
		stats.Chunks += len(chunks)
	}

	log.Printf("ingest: %d notes indexed (%d chunks), %d unchanged", stats.Files, stats.Chunks, stats.Skipped)
	return stats, nil
}
