package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	configx "github.com/tanpawarit/chative-bank-onboarding/pkg/config"
	logx "github.com/tanpawarit/chative-bank-onboarding/pkg/logger"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "bank-onboarding",
	Short: "Corporate account opening assistant",
	Long: `Corporate account opening assistant.

Reads a business license, verifies it, screens the company against the
blacklist and opens a corporate account through the bank gateway.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configx.SetEnvFile(envFile)
		logCfg, err := configx.New[logx.Config]("LOG")
		if err != nil {
			return err
		}
		logx.Init(*logCfg)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&envFile, "env", "e", "", "Path to an env file (defaults to ./.env)")

	rootCmd.AddCommand(ServeCmd)
	rootCmd.AddCommand(ChatCmd)
	rootCmd.AddCommand(BlacklistCmd)
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		return err
	}
	return nil
}
