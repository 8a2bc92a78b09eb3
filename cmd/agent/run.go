package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benmeehan/signal-agent/internal/lifecycle"
	"github.com/benmeehan/signal-agent/internal/metrics"
	"github.com/benmeehan/signal-agent/internal/metrics_collectors"
	"github.com/benmeehan/signal-agent/internal/presenter"
	"github.com/benmeehan/signal-agent/internal/service_registry"
	"github.com/benmeehan/signal-agent/internal/services"
	"github.com/benmeehan/signal-agent/internal/utils"
	"github.com/benmeehan/signal-agent/pkg/file"
	"github.com/benmeehan/signal-agent/pkg/jwt"
	"github.com/benmeehan/signal-agent/pkg/login"
	"github.com/benmeehan/signal-agent/pkg/mqtt"
	"github.com/benmeehan/signal-agent/pkg/ws"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "configs/config.yaml"

func runCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the dashboard server and mirror its signals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context(), configPath, logLevel)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to the configuration file")
	cmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "Override the configured log level")

	return cmd
}

func runAgent(ctx context.Context, configPath, logLevel string) error {
	fileClient := file.NewFileService()

	config, err := utils.LoadConfig(configPath, fileClient)
	if err != nil {
		return err
	}
	if logLevel != "" {
		config.Logging.Level = logLevel
	}

	logger, err := utils.NewLogger(config.Logging.Level, config.Logging.Format, os.Stdout)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if config.Status.HostMetrics {
		reg.MustRegister(metrics_collectors.NewHostRegistry(
			config.Status.DiskPath,
			2*time.Second,
			logger.With().Str("component", "host_metrics").Logger(),
		))
	}
	m := metrics.New(reg)

	observers := presenter.Fanout{presenter.NewLogPresenter(logger)}

	var bridge *services.BridgeService
	if config.Bridge.Enabled {
		options := mqtt.Options{
			Broker:         config.Bridge.Broker,
			ClientID:       config.Bridge.ClientID + "-" + uuid.New().String(),
			Username:       config.Bridge.Username,
			Password:       config.Bridge.Password,
			CACertPath:     config.Bridge.CACertificate,
			ConnectTimeout: config.Bridge.PublishTimeout,
		}
		logger.Info().Str("client_id", options.ClientID).Msg("Using MQTT client ID")

		bridge = services.NewBridgeService(
			options,
			config.Bridge.Workers,
			config.Bridge.Workers*64,
			mqtt.NewMqttService(fileClient),
			logger.With().Str("service", "bridge").Logger(),
		)
		observers = append(observers, presenter.NewMQTTPresenter(
			config.Bridge.Topic,
			config.Bridge.QOS,
			config.Bridge.PublishTimeout,
			bridge,
			bridge,
			m,
			logger,
		))
	}

	manager := lifecycle.NewManager(
		newDialer(config, logger),
		config.Server.HandoffGrace,
		observers,
		m,
		logger.With().Str("component", "lifecycle").Logger(),
	)

	deps := service_registry.Dependencies{
		Manager:    manager,
		Bridge:     bridge,
		JWTManager: jwt.NewJWTManager(),
		Metrics:    m,
		Gatherer:   reg,
	}
	if config.Auth.Enabled {
		deps.Authenticator = login.NewClient(config.Auth.LoginURL, config.Auth.Username, config.Auth.Password, config.Auth.Timeout)
	}

	serviceRegistry := service_registry.NewServiceRegistry(logger)
	if err := serviceRegistry.RegisterServices(config, deps); err != nil {
		return err
	}
	if err := serviceRegistry.StartServices(); err != nil {
		return err
	}
	logger.Info().Msg("All services started successfully")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info().Msg("Shutting down...")
	if err := serviceRegistry.StopServices(); err != nil {
		return err
	}
	logger.Info().Msg("Agent stopped")
	return nil
}

// newDialer binds the websocket transport to the lifecycle manager.
func newDialer(config *utils.Config, logger zerolog.Logger) lifecycle.Dialer {
	d := ws.NewDialer(
		config.Server.URL,
		config.Server.TokenParam,
		config.Server.HandshakeTimeout,
		config.Server.WriteTimeout,
		logger.With().Str("component", "ws").Logger(),
	)
	return lifecycle.DialerFunc(func(ctx context.Context, token string) (lifecycle.Channel, error) {
		conn, err := d.Dial(ctx, token)
		if err != nil {
			return nil, err
		}
		return conn, nil
	})
}
