package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/rent-signals/internal/config"
	"github.com/sells-group/rent-signals/internal/warehouse"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "rent-signals",
	Short: "Rent and macro time-series warehouse pipeline",
	Long:  "Ingests rent indices and CPI series, historizes dimensions, derives period-over-period metrics, and rebuilds reporting marts behind a declarative quality gate.",
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

// initStore opens the configured warehouse backend and applies migrations.
func initStore(ctx context.Context) (warehouse.Store, error) {
	st, err := warehouse.New(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
