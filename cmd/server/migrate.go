package main

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	casestore "kycreview/internal/cases/store"
	"kycreview/internal/platform/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the case, outbox and audit tables",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().Bool("seed", false, "also load the demo cases")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrate")
	}
	ctx := cmd.Context()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	cases := casestore.NewPostgres(pool)
	if err := migrate(ctx, pool, cases); err != nil {
		return err
	}
	cmd.Println("schema is up to date")

	if seed, _ := cmd.Flags().GetBool("seed"); seed {
		n, err := casestore.Seed(ctx, cases)
		if err != nil {
			return fmt.Errorf("seed cases: %w", err)
		}
		cmd.Printf("seeded %d cases\n", n)
	}
	return nil
}
