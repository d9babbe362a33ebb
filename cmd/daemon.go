package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lanceworks/autobid-cli/internal/daemon"
)

var (
	daemonInterval   time.Duration
	daemonMaxRuntime time.Duration
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run discovery cycles continuously on the configured interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		_, strategies, err := initRegistry()
		if err != nil {
			return err
		}

		b := initBrowser()
		defer b.Close()

		discovery := initDiscovery(ctx, b, st, strategies, true)

		interval := time.Duration(cfg.Daemon.IntervalSecs) * time.Second
		if daemonInterval > 0 {
			interval = daemonInterval
		}
		maxRuntime := time.Duration(cfg.Daemon.MaxRuntimeSecs) * time.Second
		if daemonMaxRuntime > 0 {
			maxRuntime = daemonMaxRuntime
		}

		var opts []daemon.Option
		if maxRuntime > 0 {
			opts = append(opts, daemon.WithMaxRuntime(maxRuntime))
		}
		d := daemon.New(discovery, interval, opts...)

		status := daemon.NewStatusServer(d, cfg.Daemon.StatusAddr)
		status.Start()

		if err := d.Start(ctx); err != nil {
			return err
		}

		d.Wait(ctx)
		zap.L().Info("shutting down")

		d.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := status.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("status server shutdown failed", zap.Error(err))
		}

		return nil
	},
}

func init() {
	daemonCmd.Flags().DurationVar(&daemonInterval, "interval", 0, "override the cycle interval (e.g. 5m)")
	daemonCmd.Flags().DurationVar(&daemonMaxRuntime, "max-runtime", 0, "exit cleanly after this total runtime (e.g. 8h)")
	rootCmd.AddCommand(daemonCmd)
}
