// Main package for the coopsync peer binary. It runs the sync core either as
// a session host (WebSocket listener) or as a joining client, driven by a
// fixed-rate tick loop.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ambergale/coopsync/internal/config"
	"github.com/ambergale/coopsync/internal/metrics"
	"github.com/ambergale/coopsync/pkg/peer"
	"github.com/ambergale/coopsync/pkg/relay"
	"github.com/ambergale/coopsync/pkg/transport"
	"github.com/ambergale/coopsync/pkg/wire"
)

var (
	configPath string
	playerName string
)

func main() {
	logger := zap.Must(zap.NewProduction())
	if os.Getenv("APP_ENV") != "production" {
		logger = zap.Must(zap.NewDevelopment())
	}
	defer logger.Sync()

	root := &cobra.Command{
		Use:           "coopsync",
		Short:         "Host or join a co-op state sync session",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to a TOML config file")
	root.PersistentFlags().StringVar(&playerName, "name", "player", "Name announced to other peers")

	root.AddCommand(hostCommand(logger), joinCommand(logger))

	if err := root.Execute(); err != nil {
		logger.Error("Fatal", zap.Error(err))
		os.Exit(1)
	}
}

func peerOptions(cfg config.Config) peer.Options {
	return peer.Options{
		Name: playerName,
		Bounds: relay.Bounds{
			Min: wire.Vec2{X: cfg.World.MinX, Y: cfg.World.MinY},
			Max: wire.Vec2{X: cfg.World.MaxX, Y: cfg.World.MaxY},
		},
		EntityTimeout: cfg.Sync.EntityTimeout(),
		SmoothingRate: cfg.Sync.SmoothingRate,
		MoveEpsilon:   cfg.Sync.MoveEpsilon,
	}
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		server.Close()
	}()
	go func() {
		logger.Sugar().Infof("Serving metrics at %s/metrics", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics listener failed", zap.Error(err))
		}
	}()
}

// runTicks drives the manager at the configured rate until ctx is cancelled.
func runTicks(ctx context.Context, m *peer.Manager, tickRate int, logger *zap.Logger) {
	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()

	prev := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(prev).Seconds()
			prev = now

			m.Update(now, dt)
			for _, line := range m.DrainChat() {
				logger.Sugar().Infof("[chat] %s: %s", line.Name, line.Text)
			}
			for _, pickup := range m.DrainPickups() {
				logger.Sugar().Infof("[pickup] client %d took item %d", pickup.ClientId, pickup.ItemId)
			}
		}
	}
}

func hostCommand(logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "host",
		Short: "Host a session on a WebSocket listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			met := metrics.New(reg)
			if cfg.Net.MetricsAddress != "" {
				serveMetrics(ctx, cfg.Net.MetricsAddress, reg, logger)
			}

			ws := transport.CreateWebsocketHost(transport.WebsocketHostParams{
				ListenAddress:      cfg.Net.ListenAddress,
				ListenEndpoint:     cfg.Net.ListenEndpoint,
				MaxReadMessageSize: cfg.Net.MaxReadMessageSize,
				SendBufferLength:   cfg.Net.SendBufferLength,
				Logger:             logger,
			})
			go ws.Start(ctx)
			defer ws.Close()

			m := peer.NewManager(peerOptions(cfg), ws, met, logger)
			if err := m.StartHosting(); err != nil {
				return err
			}
			defer m.Leave()

			logger.Sugar().Infof("Hosting session at %s%s", cfg.Net.ListenAddress, cfg.Net.ListenEndpoint)
			runTicks(ctx, m, cfg.Sync.TickRate, logger)
			return nil
		},
	}
}

func joinCommand(logger *zap.Logger) *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a hosted session over WebSocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			met := metrics.New(prometheus.NewRegistry())

			wc, err := transport.DialWebsocket(ctx, url, cfg.Net.SendBufferLength, logger)
			if err != nil {
				return err
			}
			defer wc.Close()

			m := peer.NewManager(peerOptions(cfg), wc, met, logger)
			if err := m.Join(transport.HostPeerID, time.Now()); err != nil {
				return err
			}
			defer m.Leave()

			logger.Sugar().Infof("Joining session at %s", url)
			runTicks(ctx, m, cfg.Sync.TickRate, logger)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "ws://127.0.0.1:7770/coop", "WebSocket URL of the host")
	return cmd
}
