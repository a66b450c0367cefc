package cli

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"luci-rpc/luci"
	"luci-rpc/middleware"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	pollInterval    time.Duration
	pollMetricsAddr string
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Fetch the firewall overview periodically and export client metrics",
	Long: `poll issues the batched overview request every interval, follows
endpoint changes in the registry when etcd is configured, and serves the
client's request metrics at /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if pollInterval <= 0 {
			return fmt.Errorf("--interval must be positive, got %s", pollInterval)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		promReg := prometheus.NewRegistry()
		metrics := middleware.NewMetrics(promReg)

		cn, err := dial(ctx, metrics)
		if err != nil {
			return err
		}
		defer cn.close()
		if cn.registry != nil {
			cn.client.WatchEndpoints(ctx, cn.registry, cfg.Router, cn.balancer)
		}

		e := echo.New()
		e.HideBanner = true
		e.HidePort = true
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})))
		go func() {
			if err := e.Start(pollMetricsAddr); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("metrics listener failed")
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			e.Shutdown(sctx)
		}()

		api := luci.New(cn.client)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			pollOnce(ctx, api)
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	},
}

func pollOnce(ctx context.Context, api *luci.API) {
	ov, err := api.Overview(ctx)
	if err != nil {
		log.Warn().Err(err).Str("url", api.Client().BaseURL()).Msg("overview failed")
		return
	}

	up := 0
	for _, n := range ov.Networks {
		if n.Up {
			up++
		}
	}
	log.Info().
		Str("url", api.Client().BaseURL()).
		Int("hosts", len(ov.Hosts)).
		Int("zones", len(ov.Zones)).
		Int("networks", len(ov.Networks)).
		Int("networks_up", up).
		Msg("overview")
}

func init() {
	pollCmd.Flags().DurationVar(&pollInterval, "interval", 30*time.Second, "Time between requests")
	pollCmd.Flags().StringVar(&pollMetricsAddr, "metrics-addr", "127.0.0.1:9101", "Listen address for /metrics")
	RootCmd.AddCommand(pollCmd)
}
