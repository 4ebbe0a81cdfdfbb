package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/scanin/scanin/internal/config"
	"github.com/scanin/scanin/internal/database/postgres"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect and edit the scan policy",
}

var policyGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current scan policy",
	RunE:  runPolicyGet,
}

var policySetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one scan policy value",
	Long: `Set one scan policy value. Keys: similarity_threshold,
work_start_time, grace_period_minutes, liveness_check_enabled,
liveness_fail_closed. Changes take effect on the next scan.`,
	Args: cobra.ExactArgs(2),
	RunE: runPolicySet,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyGetCmd)
	policyCmd.AddCommand(policySetCmd)
}

func openPolicyRepository() (*postgres.Pool, *postgres.PolicyRepository, error) {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return nil, nil, errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	return pool, postgres.NewPolicyRepository(pool), nil
}

func runPolicyGet(cmd *cobra.Command, args []string) error {
	pool, policies, err := openPolicyRepository()
	if err != nil {
		return err
	}
	defer pool.Close()

	policy, err := policies.Get(context.Background())
	if err != nil {
		return fmt.Errorf("reading scan policy: %w", err)
	}

	values := policy.Values()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s = %s\n", k, values[k])
	}
	return nil
}

func runPolicySet(cmd *cobra.Command, args []string) error {
	pool, policies, err := openPolicyRepository()
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx := context.Background()
	policy, err := policies.Get(ctx)
	if err != nil {
		return fmt.Errorf("reading scan policy: %w", err)
	}
	if err := policy.Set(args[0], args[1]); err != nil {
		return err
	}
	if err := policies.Put(ctx, policy); err != nil {
		return fmt.Errorf("writing scan policy: %w", err)
	}

	fmt.Printf("%s = %s\n", args[0], policy.Values()[args[0]])
	return nil
}
