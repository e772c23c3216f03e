package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/embedder"
	"github.com/kozaktomas/face-attendance/internal/match"
	"github.com/kozaktomas/face-attendance/internal/session"
	"github.com/kozaktomas/face-attendance/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the attendance web server. The API covers enrollment, identity
listing, live observations and attendance reports.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (defaults to WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (defaults to WEB_HOST)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if port := mustGetInt(cmd, "port"); port != 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	st := openStore(cfg)
	led, err := openLedger(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()

	// Load validates and self-heals the corpus before serving traffic.
	corpus, err := st.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load identity store: %w", err)
	}
	fmt.Printf("Loaded %d identities from %s\n", len(corpus), cfg.Data.IdentitiesFile())

	coord := session.New(st, led, cfg.Matcher.Tolerance)
	if cfg.Matcher.UseIndex {
		ix, err := match.NewIndex(corpus)
		if err != nil {
			return fmt.Errorf("failed to build the search index: %w", err)
		}
		coord.UseMatcher(ix.MatchSnapshot)
		fmt.Printf("Using HNSW index with %d embeddings\n", ix.Len())
	}

	emb := embedder.New(cfg.Embedder.URL)
	server := web.NewServer(cfg, st, led, coord, emb)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Attendance on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
