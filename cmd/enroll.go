package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/scanin/scanin/internal/config"
	"github.com/scanin/scanin/internal/database"
	"github.com/scanin/scanin/internal/database/postgres"
	"github.com/scanin/scanin/internal/extractor"
	"github.com/scanin/scanin/internal/naming"
	"github.com/scanin/scanin/internal/recognizer"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll [image files...]",
	Short: "Enroll a trainee from image files",
	Long: `Enroll a trainee directly from face images on disk, bypassing the
kiosk. Each image is embedded by the extractor service and the embeddings
are averaged into a single reference template.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("name", "", "Trainee name (required)")
	enrollCmd.Flags().String("email", "", "Trainee email")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	name := naming.Normalize(mustGetString(cmd, "name"))
	if name == "" {
		return errors.New("--name is required")
	}

	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if cfg.Extractor.Dim != postgres.EmbeddingDim {
		return fmt.Errorf("EXTRACTOR_DIM is %d but the schema stores vector(%d) embeddings", cfg.Extractor.Dim, postgres.EmbeddingDim)
	}

	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	trainees := postgres.NewTraineeRepository(pool)
	ext := extractor.NewClient(cfg.Extractor.URL, cfg.Extractor.Dim,
		time.Duration(cfg.Extractor.TimeoutSeconds)*time.Second)

	bar := progressbar.NewOptions(len(args),
		progressbar.OptionSetDescription("Computing embeddings"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	ctx := context.Background()
	embeddings := make([][]float32, 0, len(args))
	for _, path := range args {
		frame, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		emb, err := ext.Extract(ctx, frame)
		if err != nil {
			return fmt.Errorf("embedding %s: %w", path, err)
		}
		embeddings = append(embeddings, emb)
		bar.Add(1)
	}
	fmt.Println()

	template := &database.FaceTemplate{
		Embedding: recognizer.Mean(embeddings),
		Source:    "upload",
		Dim:       cfg.Extractor.Dim,
	}
	trainee := &database.Trainee{
		UniqueName:   name,
		Email:        mustGetString(cmd, "email"),
		RegisteredBy: "admin",
	}

	if err := trainees.Create(ctx, trainee, template); err != nil {
		if errors.Is(err, database.ErrDuplicateName) {
			return fmt.Errorf("trainee %q is already enrolled", name)
		}
		return fmt.Errorf("enrolling trainee: %w", err)
	}

	fmt.Printf("Enrolled %s (id %d) from %d images\n", name, trainee.ID, len(args))
	return nil
}
