package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/HSouheill/partner_marketplace/config"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create collections and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := config.ConnectDB(cfg)
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = client.Disconnect(ctx)
			}()
			return config.SetupCollections(cmd.Context(), client.Database(cfg.DBName))
		},
	}
}
