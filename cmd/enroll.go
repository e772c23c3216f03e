package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/embedder"
	"github.com/kozaktomas/face-attendance/internal/store"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <display-name>",
	Short: "Enroll a person from face images",
	Long: `Enroll a person into the identity store. Each --image file is sent
through the embedding service and must contain exactly one face; every
accepted image adds one embedding sample to the identity.

Example:
  face-attendance enroll "Jana Novakova" --id S-17 --attr class=3B --image jana1.jpg --image jana2.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("id", "", "External identifier, used to merge repeat enrollments")
	enrollCmd.Flags().StringSlice("attr", nil, "Additional attribute as key=value (repeatable)")
	enrollCmd.Flags().StringSlice("image", nil, "Face image file (repeatable)")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	displayName := args[0]

	images := mustGetStringSlice(cmd, "image")
	if len(images) == 0 {
		return fmt.Errorf("at least one --image is required")
	}

	attrs, err := parseAttrs(mustGetStringSlice(cmd, "attr"))
	if err != nil {
		return err
	}
	if id := mustGetString(cmd, "id"); id != "" {
		attrs[store.AttrExternalID] = id
	}

	emb := embedder.New(cfg.Embedder.URL)
	st := openStore(cfg)
	ctx := context.Background()

	bar := progressbar.NewOptions(len(images),
		progressbar.OptionSetDescription("Enrolling"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
	)

	var enrolled store.Identity
	accepted := 0
	for _, path := range images {
		bar.Add(1)

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		faces, err := emb.DetectAndEmbed(ctx, data)
		if err != nil {
			return fmt.Errorf("embedding service failed for %s: %w", path, err)
		}
		if len(faces) == 0 {
			fmt.Printf("\nSkipping %s: no face detected\n", path)
			continue
		}
		if len(faces) > 1 {
			fmt.Printf("\nSkipping %s: %d faces detected, want exactly one\n", path, len(faces))
			continue
		}

		enrolled, err = st.Enroll(ctx, displayName, attrs, faces[0].Embedding)
		if err != nil {
			return fmt.Errorf("failed to enroll from %s: %w", path, err)
		}
		accepted++
	}
	fmt.Println()

	if accepted == 0 {
		return fmt.Errorf("no usable face found in any of the %d images", len(images))
	}

	fmt.Printf("Enrolled %s (%s) with %d new samples, %d total\n",
		enrolled.DisplayName, enrolled.ID, accepted, len(enrolled.Embeddings))
	return nil
}
