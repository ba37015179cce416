package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/madhavipuliraju/teams-outbound-handler/internal/store"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [file.yaml]",
		Short: "Load tenants, bindings and conversations into the configured store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			seed, err := store.LoadSeed(args[0])
			if err != nil {
				return err
			}

			ctx := context.Background()
			awsCfg, err := loadAWS(ctx, cfg)
			if err != nil {
				return err
			}
			st, err := openStore(cfg, awsCfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := seed.Apply(ctx, st)
			if err != nil {
				return fmt.Errorf("seed after %d records: %w", n, err)
			}
			logger.Info("seeded", "records", n, "driver", cfg.Store.Driver)
			return nil
		},
	}
}
