package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/trafficgen/internal/config"
	"github.com/wesleyorama2/trafficgen/internal/http"
	"github.com/wesleyorama2/trafficgen/internal/metrics"
	"github.com/wesleyorama2/trafficgen/internal/scheduler"
	"github.com/wesleyorama2/trafficgen/internal/traffic"
)

// app is everything a command needs, wired from one configuration.
type app struct {
	cfg        *config.Config
	logger     *logrus.Logger
	collectors *metrics.Collectors
	engine     *metrics.Engine
	client     *http.Client
	scheduler  *scheduler.Scheduler
}

func newApp(cmd *cobra.Command, options ...scheduler.Option) (*app, error) {
	configFile, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg, cmd.ErrOrStderr())
	for _, key := range cfg.Fallbacks {
		logger.WithField("key", key).Warn("invalid load value, using default")
	}
	for _, key := range cfg.Swapped {
		logger.WithField("key", key).Warn("load minimum above maximum, bounds swapped")
	}

	collectors := metrics.NewCollectors()
	engine := metrics.NewEngine(collectors)

	client := http.NewClient(
		http.WithBaseURL(cfg.URL),
		http.WithLogger(logger),
		http.WithObserver(engine),
	)

	options = append([]scheduler.Option{
		scheduler.WithLogger(logger),
		scheduler.WithObserver(engine),
	}, options...)
	sched := scheduler.New(client, options...)
	if err := sched.Register(traffic.Definitions(cfg.Load)...); err != nil {
		return nil, fmt.Errorf("failed to register tasks: %w", err)
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		collectors: collectors,
		engine:     engine,
		client:     client,
		scheduler:  sched,
	}, nil
}

func newLogger(cfg *config.Config, w io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)

	if cfg.LogFormat == config.FormatText {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	}
	logger.SetLevel(cfg.LogLevel)

	return logger
}
