package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	toolx "github.com/tanpawarit/chative-bank-onboarding/agent/tool"
	configx "github.com/tanpawarit/chative-bank-onboarding/pkg/config"
)

var (
	blacklistUSCC   string
	blacklistName   string
	blacklistReason string
)

var BlacklistCmd = &cobra.Command{
	Use:   "blacklist",
	Short: "Manage the Postgres blacklist",
}

var blacklistAddCmd = &cobra.Command{
	Use:     "add",
	Short:   "Add a company to the blacklist",
	Example: `  bank-onboarding blacklist add --uscc 91330200MA2XXXXX1X --name 某某贸易有限公司 --reason fraud`,
	RunE:    runBlacklistAdd,
}

func init() {
	blacklistAddCmd.Flags().StringVar(&blacklistUSCC, "uscc", "", "Unified social credit code")
	blacklistAddCmd.Flags().StringVar(&blacklistName, "name", "", "Registered company name")
	blacklistAddCmd.Flags().StringVar(&blacklistReason, "reason", "", "Why the company is listed")
	_ = blacklistAddCmd.MarkFlagRequired("uscc")
	_ = blacklistAddCmd.MarkFlagRequired("name")

	BlacklistCmd.AddCommand(blacklistAddCmd)
}

func runBlacklistAdd(cmd *cobra.Command, args []string) error {
	pgCfg, err := configx.New[toolx.PostgresConfig]("POSTGRES")
	if err != nil {
		return fmt.Errorf("load postgres config: %w", err)
	}

	pg, db, err := openPostgresBlacklist(cmd.Context(), *pgCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	entry := toolx.BlacklistEntry{
		USCC:        blacklistUSCC,
		CompanyName: blacklistName,
		Reason:      blacklistReason,
	}
	if err := pg.Add(cmd.Context(), entry); err != nil {
		return err
	}

	log.Info().Str("uscc", blacklistUSCC).Str("company", blacklistName).Msg("blacklist entry added")
	return nil
}
