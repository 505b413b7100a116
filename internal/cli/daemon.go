package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// runDaemon generates traffic until SIGINT or SIGTERM.
func runDaemon(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.logger.WithFields(logrus.Fields{
		"url":         a.cfg.URL,
		"low_load":    a.cfg.Load.Low.String(),
		"high_load":   a.cfg.Load.High.String(),
		"burst_delay": a.cfg.Load.BurstDelay.String(),
		"config_file": a.cfg.File,
		"version":     version,
	}).Info("starting traffic generator")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.scheduler.Run(gctx)
	})

	if a.cfg.SummaryInterval > 0 {
		g.Go(func() error {
			a.engine.RunSummary(gctx, a.cfg.SummaryInterval, a.logger)
			return nil
		})
	}

	if a.cfg.MetricsAddr != "" {
		g.Go(func() error {
			return a.collectors.Serve(gctx, a.cfg.MetricsAddr, a.logger)
		})
	}

	err = g.Wait()
	a.engine.LogSummary(a.logger)
	if err != nil {
		return err
	}

	a.logger.Info("traffic generator stopped")
	return nil
}
