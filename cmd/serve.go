package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/scanin/scanin/internal/attendance"
	"github.com/scanin/scanin/internal/config"
	"github.com/scanin/scanin/internal/database"
	"github.com/scanin/scanin/internal/database/postgres"
	"github.com/scanin/scanin/internal/events"
	"github.com/scanin/scanin/internal/extractor"
	"github.com/scanin/scanin/internal/liveness"
	"github.com/scanin/scanin/internal/notify"
	"github.com/scanin/scanin/internal/scheduler"
	"github.com/scanin/scanin/internal/web"
	"github.com/scanin/scanin/internal/web/middleware"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance server",
	Long: `Start the Scanin attendance server.
The server exposes the kiosk scan endpoints, the admin API and the live
attendance event stream.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

// seedPolicy writes the default scan policy row if none exists yet. Live
// values survive restarts untouched.
func seedPolicy(ctx context.Context, policies *postgres.PolicyRepository, defaults config.PolicyDefaults) error {
	policy := &database.ScanPolicy{
		SimilarityThreshold:  defaults.SimilarityThreshold,
		WorkStartTime:        defaults.WorkStartTime,
		GracePeriodMinutes:   defaults.GracePeriodMinutes,
		LivenessCheckEnabled: defaults.LivenessCheckEnabled,
		LivenessFailClosed:   defaults.LivenessFailClosed,
	}
	if err := policies.Seed(ctx, policy); err != nil {
		return fmt.Errorf("seeding scan policy: %w", err)
	}
	return nil
}

// seedAdmin creates the initial admin account. Existing accounts are left
// alone, so a changed ADMIN_PASSWORD does not rotate the stored credential.
func seedAdmin(ctx context.Context, admins *postgres.AdminRepository, cfg config.AuthConfig) error {
	if cfg.AdminPassword == "" {
		fmt.Println("ADMIN_PASSWORD not set, skipping admin account seeding")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing admin password: %w", err)
	}
	admin := &database.Admin{Username: cfg.AdminUsername, PasswordHash: string(hash)}
	if err := admins.Create(ctx, admin); err != nil {
		return fmt.Errorf("seeding admin account: %w", err)
	}
	return nil
}

// buildOracle picks the configured liveness provider. A missing API key
// disables the oracle entirely; the gate treats a nil oracle as a pass.
func buildOracle(ctx context.Context, cfg *config.LivenessConfig) (liveness.Oracle, error) {
	switch cfg.Provider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			fmt.Println("GEMINI_API_KEY not set, liveness screening disabled")
			return nil, nil
		}
		return liveness.NewGeminiOracle(ctx, cfg.GeminiAPIKey)
	case "openai":
		if cfg.OpenAIToken == "" {
			fmt.Println("OPENAI_TOKEN not set, liveness screening disabled")
			return nil, nil
		}
		return liveness.NewOpenAIOracle(cfg.OpenAIToken), nil
	default:
		return nil, fmt.Errorf("unknown liveness provider %q", cfg.Provider)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	if cfg.Extractor.Dim != postgres.EmbeddingDim {
		return fmt.Errorf("EXTRACTOR_DIM is %d but the schema stores vector(%d) embeddings", cfg.Extractor.Dim, postgres.EmbeddingDim)
	}

	fmt.Printf("Connecting to PostgreSQL database...\n")
	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	trainees := postgres.NewTraineeRepository(pool)
	records := postgres.NewAttendanceRepository(pool)
	policies := postgres.NewPolicyRepository(pool)
	admins := postgres.NewAdminRepository(pool)

	ctx := context.Background()
	if err := seedPolicy(ctx, policies, cfg.Defaults.Policy); err != nil {
		return err
	}
	if err := seedAdmin(ctx, admins, cfg.Auth); err != nil {
		return err
	}

	broadcaster := events.NewBroadcaster()
	service := attendance.NewService(records, policies, broadcaster)

	ext := extractor.NewClient(cfg.Extractor.URL, cfg.Extractor.Dim,
		time.Duration(cfg.Extractor.TimeoutSeconds)*time.Second)

	oracle, err := buildOracle(ctx, &cfg.Liveness)
	if err != nil {
		return err
	}
	gate := liveness.NewGate(oracle, time.Duration(cfg.Liveness.TimeoutSeconds)*time.Second)

	issuer := middleware.NewTokenIssuer(cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenMinutes)*time.Minute)

	logger := log.New(os.Stdout, "", log.LstdFlags)
	mailer := notify.NewMailer(cfg.SMTP, logger)
	sweeper := scheduler.NewAbsenceSweeper(policies, service, mailer,
		time.Duration(cfg.Sweep.DelayMinutes)*time.Minute, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(web.Deps{
		Trainees:     trainees,
		Attendance:   records,
		Policies:     policies,
		Admins:       admins,
		Service:      service,
		Broadcaster:  broadcaster,
		Extractor:    ext,
		Gate:         gate,
		Issuer:       issuer,
		EmbeddingDim: cfg.Extractor.Dim,
	}, host, port)

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

	fmt.Printf("Starting Scanin on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
