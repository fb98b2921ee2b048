package cmd

import (
	"fmt"
	"os"

	"golang.org/x/exp/slog"

	"hotelsync/cmd/client/cmd/output"
	"hotelsync/internal/app/client"
	"hotelsync/internal/config"
	"hotelsync/internal/utils/logger"

	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	debug     bool
	agentAddr string
	token     string
	format    string
)

var rootCmd = &cobra.Command{
	Use:   "hotelsync",
	Short: "hotelsync - operator console for the offline sync agent",
	Long: `hotelsync inspects and drives a running sync agent: the queue of
mutations made while the backend was unreachable, sync passes, and the
conflicts that need a human decision.`,
	PersistentPreRunE: setupClient,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", output.Bad("error:"), err)
		os.Exit(1)
	}
}

func setupClient(cmd *cobra.Command, _ []string) error {
	if err := output.Valid(format); err != nil {
		return err
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if agentAddr == "" {
		agentAddr = cfg.Server.RunAddress
	}
	if token == "" {
		token = cfg.Server.APIToken
	}

	log := logger.Discard()
	if debug {
		log = logger.New(config.EnvDev)
	}
	log = log.With(slog.String("component", "cli"))

	c := client.New(agentAddr, token, cfg.Backend.Timeout, log)
	cmd.SetContext(client.NewContext(cmd.Context(), c))
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.hotelsync/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log HTTP traffic to the agent")
	rootCmd.PersistentFlags().StringVar(&agentAddr, "agent", "", "agent address (default server.run_address)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "operator API token (default server.api_token)")
	rootCmd.PersistentFlags().StringVarP(&format, "output", "o", output.FormatTable, "output format: table, json or yaml")
}
