package main

import (
	"github.com/spf13/cobra"

	"github.com/PocketPalCo/receipts-service/config"
)

type rootOptions struct {
	envFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "receiptctl",
		Short:        "Read shopping receipts from the command line",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "configuration file (defaults to SSV_ENV_FILE or .env)")

	cmd.AddCommand(newParseCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	return cmd
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if o.envFile != "" {
		cfg, err = config.ConfigFromFile(o.envFile)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration and print the pipeline settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), "yaml", cfg.GetPipelineConfig())
		},
	}
}
