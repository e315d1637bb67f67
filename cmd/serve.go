package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tanpawarit/chative-bank-onboarding/api"
	configx "github.com/tanpawarit/chative-bank-onboarding/pkg/config"
)

var listenAddr string

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Example: `  # Serve on the address from HTTP_ADDR
  bank-onboarding serve

  # Serve on a custom port with an explicit env file
  bank-onboarding serve --addr :9090 -e prod.env`,
	RunE: runServe,
}

func init() {
	ServeCmd.Flags().StringVar(&listenAddr, "addr", "", "Listen address, overrides HTTP_ADDR")
}

func runServe(cmd *cobra.Command, args []string) error {
	httpCfg, err := configx.New[api.Config]("HTTP")
	if err != nil {
		return fmt.Errorf("load http config: %w", err)
	}
	if listenAddr != "" {
		httpCfg.Addr = listenAddr
	}
	if !httpCfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("close resources")
		}
	}()

	router := api.NewRouter(a.orchestrator, a.metrics.Registry)
	if err := api.Serve(ctx, *httpCfg, router); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}
