package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/embedder"
	"github.com/kozaktomas/face-attendance/internal/match"
	"github.com/kozaktomas/face-attendance/internal/session"
	"github.com/spf13/cobra"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize [image...]",
	Short: "Recognize faces and record attendance",
	Long: `Recognize enrolled people in face images and record attendance for
first sightings. With image arguments the command processes them once
and exits. With --watch it keeps scanning the directory for new image
files until interrupted; every detected face in every image is matched.

Example:
  face-attendance recognize frame1.jpg frame2.jpg
  face-attendance recognize --watch ./captures --interval 2`,
	RunE: runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)

	recognizeCmd.Flags().String("watch", "", "Directory to scan for new images")
	recognizeCmd.Flags().Int("interval", 2, "Seconds between directory scans in watch mode")
}

func runRecognize(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	watchDir := mustGetString(cmd, "watch")
	if len(args) == 0 && watchDir == "" {
		return fmt.Errorf("provide image files or --watch <dir>")
	}

	st := openStore(cfg)
	led, err := openLedger(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if _, err := st.Load(ctx); err != nil {
		return fmt.Errorf("failed to load identity store: %w", err)
	}

	coord := session.New(st, led, cfg.Matcher.Tolerance)
	if cfg.Matcher.UseIndex {
		corpus, err := st.All(ctx)
		if err != nil {
			return err
		}
		ix, err := match.NewIndex(corpus)
		if err != nil {
			return fmt.Errorf("failed to build the search index: %w", err)
		}
		coord.UseMatcher(ix.MatchSnapshot)
		fmt.Printf("Using HNSW index with %d embeddings\n", ix.Len())
	}

	emb := embedder.New(cfg.Embedder.URL)

	for _, path := range args {
		if err := observeImage(ctx, coord, emb, path); err != nil {
			return err
		}
	}

	if watchDir == "" {
		return nil
	}
	return watchDirectory(ctx, coord, emb, watchDir, mustGetInt(cmd, "interval"), args)
}

// observeImage runs every detected face in the image through the
// session coordinator. Ledger write failures are reported and skipped
// so one bad observation does not stop the stream.
func observeImage(ctx context.Context, coord *session.Coordinator, emb *embedder.Client, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	faces, err := emb.DetectAndEmbed(ctx, data)
	if err != nil {
		return fmt.Errorf("embedding service failed for %s: %w", path, err)
	}
	if len(faces) == 0 {
		fmt.Printf("%s: no faces detected\n", path)
		return nil
	}

	for _, face := range faces {
		out, err := coord.Observe(ctx, face.Embedding, time.Now())
		switch {
		case err != nil && out.Recognized:
			fmt.Printf("%s: recognized %s but failed to record attendance: %v\n",
				path, out.Identity.DisplayName, err)
		case err != nil:
			return fmt.Errorf("observation failed for %s: %w", path, err)
		case !out.Recognized:
			fmt.Printf("%s: face %d not recognized\n", path, face.FaceIndex)
		case out.AttendanceWritten:
			fmt.Printf("%s: %s (confidence %.2f) - attendance recorded\n",
				path, out.Identity.DisplayName, out.Confidence)
		default:
			fmt.Printf("%s: %s (confidence %.2f) - already logged\n",
				path, out.Identity.DisplayName, out.Confidence)
		}
	}
	return nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".webp":
		return true
	}
	return false
}

// watchDirectory polls dir for image files and observes each file once.
// Runs until SIGINT or SIGTERM.
func watchDirectory(ctx context.Context, coord *session.Coordinator, emb *embedder.Client, dir string, intervalSec int, alreadyDone []string) error {
	if intervalSec < 1 {
		intervalSec = 1
	}

	processed := make(map[string]struct{}, len(alreadyDone))
	for _, p := range alreadyDone {
		processed[p] = struct{}{}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nStopping...")
		cancel()
	}()

	fmt.Printf("Watching %s every %ds, press Ctrl+C to stop\n", dir, intervalSec)

	ticker := time.NewTicker(time.Duration(intervalSec) * time.Second)
	defer ticker.Stop()

	for {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !isImageFile(entry.Name()) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if _, ok := processed[path]; ok {
				continue
			}
			processed[path] = struct{}{}

			if err := observeImage(ctx, coord, emb, path); err != nil {
				// Keep watching; the file might be mid-upload or the
				// service temporarily down.
				fmt.Printf("Warning: %v\n", err)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
