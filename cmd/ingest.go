package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/osbuddy/internal/ingest"
	"github.com/ziadkadry99/osbuddy/internal/knowledge"
	"github.com/ziadkadry99/osbuddy/internal/progress"
)

var ingestForce bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Index reference notes for the tutor",
	Long: `Walks dir (default: current directory), splits every note matching
knowledge.include into overlapping chunks and embeds them into the knowledge
index under data_dir. Notes whose content has not changed are skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		root := "."
		if len(args) == 1 {
			root = args[0]
		}

		store, _, err := openKnowledge(cfg)
		if store == nil {
			return fmt.Errorf("opening knowledge base: %w", err)
		}
		if err != nil && verbose {
			fmt.Fprintf(os.Stderr, "Starting a fresh index: %v\n", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		stats, err := ingest.Run(ctx, store, ingest.Options{
			Root:         root,
			Include:      cfg.Knowledge.Include,
			Exclude:      cfg.Knowledge.Exclude,
			ChunkSize:    cfg.Knowledge.ChunkSize,
			ChunkOverlap: cfg.Knowledge.ChunkOverlap,
			Force:        ingestForce,
		}, progress.NewReporter("Indexing notes"))
		if err != nil {
			return err
		}

		if err := store.Persist(knowledgeDir(cfg)); err != nil {
			return fmt.Errorf("saving knowledge index: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Indexed %d notes (%d chunks, %d unchanged); %d chunks total in %s\n",
			stats.Files, stats.Chunks, stats.Skipped, store.Count(), knowledgeDir(cfg))
		return nil
	},
}

var _ ingest.Index = (*knowledge.Store)(nil)

func init() {
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "Re-embed notes even if unchanged")
	rootCmd.AddCommand(ingestCmd)
}
