package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"luci-rpc/registry"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	registerWeight  int
	registerTTL     int64
	registerVersion string
)

var registerCmd = &cobra.Command{
	Use:   "register <url>",
	Short: "Announce a router endpoint in etcd until interrupted",
	Long: `register keeps <url> listed under the configured router name so that
clients using discovery can reach it. The entry is leased and disappears
shortly after the command stops.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.Etcd) == 0 {
			return errors.New("no etcd endpoints configured (set etcd in the config or LUCI_RPC_ETCD)")
		}

		reg, err := registry.NewEtcdRegistry(cfg.Etcd)
		if err != nil {
			return err
		}
		defer reg.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		inst := registry.Instance{URL: args[0], Weight: registerWeight, Version: registerVersion}
		if err := reg.Register(ctx, cfg.Router, inst, registerTTL); err != nil {
			return err
		}
		log.Info().Str("router", cfg.Router).Str("url", inst.URL).Int("weight", inst.Weight).Msg("endpoint registered")

		<-ctx.Done()

		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := reg.Deregister(dctx, cfg.Router, inst.URL); err != nil {
			return err
		}
		log.Info().Str("router", cfg.Router).Str("url", inst.URL).Msg("endpoint withdrawn")
		return nil
	},
}

func init() {
	registerCmd.Flags().IntVar(&registerWeight, "weight", 1, "Weight for weighted balancing")
	registerCmd.Flags().Int64Var(&registerTTL, "ttl", 10, "Lease TTL in seconds")
	registerCmd.Flags().StringVar(&registerVersion, "version", "", "Firmware version to publish")
	RootCmd.AddCommand(registerCmd)
}
