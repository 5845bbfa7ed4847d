package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/siteselect/internal/config"
	"github.com/sells-group/siteselect/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "siteselect",
	Short: "Geographically balanced retail site selection",
	Long:  "Scores proposed store locations against the existing network, deduplicates nearby proposals, suppresses drive-time conflicts, and allocates the final selection fairly across regions.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// initStore opens the configured run store and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	var err error
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		st, err = store.NewSQLite(cfg.Store.SQLitePath)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
