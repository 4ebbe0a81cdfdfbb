package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/scanin/scanin/internal/attendance"
	"github.com/scanin/scanin/internal/config"
	"github.com/scanin/scanin/internal/database/postgres"
	"github.com/scanin/scanin/internal/events"
	"github.com/scanin/scanin/internal/notify"
	"github.com/scanin/scanin/internal/scheduler"
)

var absenceCmd = &cobra.Command{
	Use:   "absence",
	Short: "Run the absence sweep once and send the alert",
	Long: `Query trainees with no attendance for a day and send the absence
alert email. The server runs this sweep daily on its own; this command
exists for manual runs and for cron-style deployments without the server.`,
	RunE: runAbsence,
}

func init() {
	rootCmd.AddCommand(absenceCmd)

	absenceCmd.Flags().String("day", "", "Day to sweep as YYYY-MM-DD (defaults to today)")
}

func runAbsence(cmd *cobra.Command, args []string) error {
	day := time.Now()
	if s := mustGetString(cmd, "day"); s != "" {
		parsed, err := time.ParseInLocation("2006-01-02", s, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --day %q: %w", s, err)
		}
		day = parsed
	}

	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	records := postgres.NewAttendanceRepository(pool)
	policies := postgres.NewPolicyRepository(pool)
	service := attendance.NewService(records, policies, events.NewBroadcaster())

	logger := log.New(os.Stdout, "", log.LstdFlags)
	mailer := notify.NewMailer(cfg.SMTP, logger)

	sweeper := scheduler.NewAbsenceSweeper(policies, service, mailer,
		time.Duration(cfg.Sweep.DelayMinutes)*time.Minute, logger)
	sweeper.Sweep(context.Background(), day)
	return nil
}
