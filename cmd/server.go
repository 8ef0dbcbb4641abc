package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/osbuddy/internal/db"
	"github.com/ziadkadry99/osbuddy/internal/knowledge"
	"github.com/ziadkadry99/osbuddy/internal/server"
	"github.com/ziadkadry99/osbuddy/internal/sessions"
	"github.com/ziadkadry99/osbuddy/internal/tutor"
)

var (
	serverPort     int
	serverAllowAll bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the session service and tutor",
	Long: `Starts the OS Buddy session service: the REST API the chat client talks to,
backed by SQLite, with the LLM tutor answering /chat. Notes indexed with
` + "`osbuddy ingest`" + ` are used as reference material when present.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.ServerPort = serverPort
		}

		provider, err := createLLMProviderFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("creating LLM provider: %w", err)
		}

		opts := tutor.Options{
			Provider:     provider,
			Model:        cfg.Model,
			HistoryLimit: cfg.HistoryLimit,
			TopK:         cfg.Knowledge.TopK,
		}
		notes, ok, err := openKnowledge(cfg)
		switch {
		case ok:
			opts.Knowledge = notes
		case errors.Is(err, knowledge.ErrNoIndex):
			if verbose {
				fmt.Fprintln(os.Stderr, "No knowledge index found; answering without reference notes.")
			}
		case err != nil:
			fmt.Fprintf(os.Stderr, "Warning: knowledge base unavailable: %v\n", err)
		}

		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("creating data dir: %w", err)
		}
		dbPath := filepath.Join(cfg.DataDir, "osbuddy.db")
		database, err := db.Open(dbPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		srv := server.New(server.Config{
			Port:           cfg.ServerPort,
			AllowAll:       serverAllowAll,
			RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
		}, database)
		sessions.RegisterRoutes(srv.Router(), sessions.NewStore(database), tutor.New(opts), sessions.Options{
			RequireUserID: cfg.RequireUserID,
		})

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			srv.Shutdown(context.Background())
		}()

		fmt.Fprintf(os.Stderr, "osbuddy server %s starting on port %d\n", Version, cfg.ServerPort)
		fmt.Fprintf(os.Stderr, "  Database: %s\n", dbPath)
		fmt.Fprintf(os.Stderr, "  Tutor: %s (%s)\n", cfg.Model, provider.Name())
		if opts.Knowledge != nil {
			fmt.Fprintf(os.Stderr, "  Reference chunks: %d\n", notes.Count())
		}

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Port to listen on (overrides server_port)")
	serverCmd.Flags().BoolVar(&serverAllowAll, "cors-allow-all", false, "Allow requests from any origin")
	rootCmd.AddCommand(serverCmd)
}
