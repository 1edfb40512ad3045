package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/HSouheill/partner_marketplace/config"
	"github.com/HSouheill/partner_marketplace/logger"
)

var (
	envFile string
	cfg     config.App
)

// Execute runs the partner-marketplace command tree.
func Execute() error {
	root := &cobra.Command{
		Use:          "partner-marketplace",
		Short:        "Partner booking marketplace backend",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil {
				logger.Log.Debugf("No env file loaded from %s", envFile)
			}
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			logger.Configure(cfg.Env, cfg.LogLevel)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	root.AddCommand(serveCmd(), migrateCmd(), tokenCmd())
	return root.Execute()
}
