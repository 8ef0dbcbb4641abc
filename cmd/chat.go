package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/osbuddy/internal/chat"
	"github.com/ziadkadry99/osbuddy/internal/diagrams"
	"github.com/ziadkadry99/osbuddy/internal/liveview"
	"github.com/ziadkadry99/osbuddy/internal/render"
)

var chatPort int

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Serve the browser chat client",
	Long: `Serves the OS Buddy chat page. Each browser tab gets its own chat
controller that talks to the session service at service_url.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.ChatPort = chatPort
		}

		if !diagrams.Initialize(cfg.Diagram.Theme) && verbose {
			fmt.Fprintf(os.Stderr, "Diagram theme already set to %s\n", diagrams.Theme())
		}
		pipeline := &render.Pipeline{
			Converter: render.NewMarkdown(""),
			Diagrams:  diagrams.NewMermaid(),
			Timeout:   time.Duration(cfg.Diagram.TimeoutMS) * time.Millisecond,
		}

		lv := liveview.New(liveview.Options{
			NewService: func(userID func() string) chat.Service {
				return newServiceClient(cfg, userID)
			},
			Pipeline:      pipeline,
			Theme:         diagrams.Theme(),
			UserIsolation: cfg.UserIsolation,
		})

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.RealIP)
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		lv.RegisterRoutes(r)

		httpServer := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.ChatPort),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down chat client...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpServer.Shutdown(shutdownCtx)
		}()

		health, err := newServiceClient(cfg, nil).Health(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: session service at %s is not reachable: %v\n", cfg.ServiceURL, err)
		} else if verbose {
			fmt.Fprintf(os.Stderr, "Session service says: %s\n", health.Message)
		}

		fmt.Fprintf(os.Stderr, "OS Buddy chat on http://localhost:%d (service %s)\n", cfg.ChatPort, cfg.ServiceURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	chatCmd.Flags().IntVar(&chatPort, "port", 3000, "Port to listen on (overrides chat_port)")
	rootCmd.AddCommand(chatCmd)
}
