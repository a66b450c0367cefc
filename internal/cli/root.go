package cli

import (
	"os"

	"luci-rpc/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonLog    bool
	baseURL    string
	sessionID  string

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "luci-rpc",
	Short: "Talk to the ubus JSON-RPC endpoint of an OpenWrt router",
	Long: `luci-rpc calls ubus procedures through the LuCI JSON-RPC proxy.

It can log in, invoke arbitrary object methods, list published objects and
show the firewall data LuCI works with. The serve command runs a local
endpoint with canned replies for development.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

		if !jsonLog {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		}

		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if baseURL != "" {
			loaded.BaseURL = baseURL
		}
		if sessionID != "" {
			loaded.SessionID = sessionID
		}
		cfg = loaded

		level, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil || cfg.LogLevel == "" {
			level = zerolog.InfoLevel
		}
		if verbose {
			level = zerolog.DebugLevel
		}
		zerolog.SetGlobalLevel(level)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("LUCI_RPC_CONFIG"), "YAML config file")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	RootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "Output logs in JSON format")
	RootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "ubus endpoint URL (overrides config)")
	RootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "ubus session id (overrides config)")
}
