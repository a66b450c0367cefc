package cli

import (
	"context"
	_ "embed"
	"os"
	"os/signal"
	"syscall"
	"time"

	"luci-rpc/client"
	"luci-rpc/registry"
	"luci-rpc/server"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

//go:embed fixture.yaml
var defaultFixture []byte

var (
	servePrefix    string
	serveAdvertise string
	serveListen    string
	serveFixture   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local ubus endpoint with canned replies",
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveListen != "" {
			cfg.Listen = serveListen
		}
		if serveFixture != "" {
			cfg.Fixture = serveFixture
		}

		fixture, err := loadServeFixture()
		if err != nil {
			return err
		}

		svr := server.NewServer(servePrefix, server.NewSessionStore(fixture.Users))
		fixture.Install(svr)

		var reg registry.Registry
		if len(cfg.Etcd) > 0 {
			etcd, err := registry.NewEtcdRegistry(cfg.Etcd)
			if err != nil {
				return err
			}
			defer etcd.Close()
			reg = etcd
		}
		advertise := serveAdvertise
		if advertise == "" {
			advertise = "http://" + cfg.Listen + servePrefix
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		// Handle graceful shutdown
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		go func() {
			select {
			case sig := <-sigChan:
				log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
				cancel()
			case <-ctx.Done():
			}
		}()

		serverErr := make(chan error, 1)
		go func() {
			serverErr <- svr.Serve(cfg.Listen, advertise, reg, cfg.Router)
		}()

		select {
		case <-ctx.Done():
			if err := svr.Shutdown(10 * time.Second); err != nil {
				log.Error().Err(err).Msg("Server forced to shutdown")
			}
			return nil
		case err := <-serverErr:
			return err
		}
	},
}

func loadServeFixture() (*server.Fixture, error) {
	if cfg.Fixture != "" {
		return server.LoadFixture(cfg.Fixture)
	}
	return server.ParseFixture(defaultFixture)
}

func init() {
	serveCmd.Flags().StringVar(&servePrefix, "prefix", client.DefaultBaseURL, "URL path the endpoint is mounted at")
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "Listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveFixture, "fixture", "", "YAML fixture with canned replies (default built in)")
	serveCmd.Flags().StringVar(&serveAdvertise, "advertise", "", "URL announced in the registry (default http://<listen><prefix>)")
	RootCmd.AddCommand(serveCmd)
}
