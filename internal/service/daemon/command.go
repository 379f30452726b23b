package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	api "github.com/oshokin/step-alarm/internal/api/grpc/alarm"
	"github.com/oshokin/step-alarm/internal/config"
	"github.com/oshokin/step-alarm/internal/detection"
	"github.com/oshokin/step-alarm/internal/lifecycle"
	"github.com/oshokin/step-alarm/internal/logger"
	"github.com/oshokin/step-alarm/internal/mqtt"
	"github.com/oshokin/step-alarm/internal/notify"
	"github.com/oshokin/step-alarm/internal/repository/session"
	"github.com/oshokin/step-alarm/internal/version"
)

// Options controls the daemon process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// HistoryFile overrides the session history path from the settings.
	HistoryFile string
	// WatchConfig reloads detection tunables when the settings file changes.
	WatchConfig bool
}

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// Run starts the daemon and blocks until the context is canceled or the
// gRPC server stops. A session still counting at shutdown is stopped so it
// reaches the history.
//
//nolint:funlen // Wiring reads best top to bottom.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "stepalarm-daemon")
	log := logger.FromContext(ctx)

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	applyLogLevel(settings.LogLevel)

	historyFile := settings.HistoryFile
	if opts.HistoryFile != "" {
		historyFile = opts.HistoryFile
	}

	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	lock, err := acquireInstance(settings.PIDFile)
	if err != nil {
		return err
	}

	defer func() {
		if releaseErr := lock.release(); releaseErr != nil {
			logger.WarnKV(ctx, "Failed to release instance lock", "error", releaseErr)
		}
	}()

	params, err := settings.DetectionParams()
	if err != nil {
		return fmt.Errorf("detection settings: %w", err)
	}

	client, err := dialBroker(ctx, settings)
	if err != nil {
		return err
	}

	defer mqtt.Close(client)

	sensors, injector, err := buildSensors(settings, client, log.Named("sensor"))
	if err != nil {
		return fmt.Errorf("build sensor subsystem: %w", err)
	}

	engine := detection.NewEngine(sensors, params, log.Named("detection"))
	repo := session.NewFileRepository(historyFile, settings.HistoryLimit)

	notifiers := notify.Multi{
		notify.NewLog(log.Named("notify")),
		notify.NewHistory(repo, log.Named("history")),
	}

	if client != nil {
		notifiers = append(notifiers, notify.NewMQTTPublisher(client, settings.MQTT.EventTopic, log.Named("publisher")))
	}

	controller := lifecycle.New(engine, notifiers,
		lifecycle.WithLogger(log.Named("lifecycle")),
		lifecycle.WithDefaultTarget(settings.DefaultTargetSteps),
	)

	// Setup TCP listener for gRPC server.
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	// A nil injector must stay a nil interface.
	var sampleInjector api.SampleInjector
	if injector != nil {
		sampleInjector = injector
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(contextLogger(log)))
	api.RegisterAlarmServiceServer(grpcServer, api.NewServer(controller, sampleInjector))

	if opts.WatchConfig {
		go watchSettings(ctx, opts.ConfigPath, engine, controller)
	}

	logger.InfoKV(ctx, "Step alarm daemon listening", append([]any{
		"listen_address", listenAddress,
		"sensor_kind", settings.Sensor.Kind,
		"history_file", historyFile,
		"default_target_steps", settings.DefaultTargetSteps,
	}, version.KV()...)...)

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done

	if controller.ExternalStop(nil) {
		logger.Info(ctx, "Stopped the active session on shutdown")
	}

	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// dialBroker connects to MQTT when a broker is configured.
//
//nolint:ireturn // paho.Client is the library's public handle.
func dialBroker(ctx context.Context, settings *config.Config) (paho.Client, error) {
	if settings.MQTT.Broker == "" {
		return nil, nil //nolint:nilnil // No broker configured is not an error.
	}

	client, err := mqtt.Dial(mqtt.Options{
		Broker:         settings.MQTT.Broker,
		ClientID:       settings.MQTT.ClientID,
		ConnectTimeout: settings.Timeout,
		OnConnectionLost: func(err error) {
			logger.WarnKV(ctx, "MQTT connection lost", "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect to MQTT broker: %w", err)
	}

	logger.InfoKV(ctx, "Connected to MQTT broker", "broker", settings.MQTT.Broker)

	return client, nil
}

// watchSettings applies reloaded tunables to the next arm.
func watchSettings(ctx context.Context, path string, engine *detection.Engine, controller *lifecycle.Controller) {
	onChange := func(cfg *config.Config) {
		params, err := cfg.DetectionParams()
		if err != nil {
			logger.WarnKV(ctx, "Ignoring invalid detection settings", "error", err)

			return
		}

		engine.SetParams(params)
		controller.SetDefaultTarget(cfg.DefaultTargetSteps)
		applyLogLevel(cfg.LogLevel)

		logger.InfoKV(ctx, "Settings reloaded",
			"default_target_steps", cfg.DefaultTargetSteps,
			"sampling_rate", params.SamplingRate)
	}

	onError := func(err error) {
		logger.WarnKV(ctx, "Settings watcher error", "error", err)
	}

	if err := config.Watch(ctx, path, onChange, onError); err != nil {
		logger.ErrorKV(ctx, "Settings watcher stopped", "error", err)
	}
}

// applyLogLevel sets the global level from a validated settings value.
func applyLogLevel(level string) {
	if parsed, ok := logger.ParseLogLevel(level); ok {
		logger.SetLevel(parsed)
	}
}

// contextLogger stores the daemon logger on every request context.
func contextLogger(log *zap.SugaredLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx = logger.ToContext(ctx, log.With("method", info.FullMethod))

		return handler(ctx, req)
	}
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
func resolveListenAddress(configAddr, override string) (string, error) {
	// Use override address if provided (e.g., ":9090", "0.0.0.0:8080").
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	// Return port-only listen address to bind on all interfaces.
	return ":" + port, nil
}
