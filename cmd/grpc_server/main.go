package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/config"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/env"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/experience"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/grpc/puzzleserver"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/monitoring"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/events"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/events/subscribers"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/session"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/transport/websocket"
)

func main() {
	// Command line flags
	configPath := flag.String("config", "", "Path to config file")
	environment := flag.String("env", os.Getenv("APP_ENV"), "Environment overlay to merge (config.<env>.yaml)")
	port := flag.Int("port", -1, "The server port (-1 to use config default)")
	host := flag.String("host", "", "The server host (empty to use config default)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error) (empty to use config default)")
	maxEnvs := flag.Int("max-envs", -1, "Maximum concurrent environments (-1 to use config default)")
	enableReflection := flag.Bool("enable-reflection", false, "Enable gRPC reflection for debugging")
	wsPort := flag.Int("ws-port", -1, "Websocket event port, enables the endpoint (-1 to use config default)")
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize config")
	}
	if err := config.LoadEnvironmentConfig(*environment); err != nil {
		log.Fatal().Err(err).Str("env", *environment).Msg("Failed to load environment config")
	}

	cfg := config.Get()

	// Use config defaults if not overridden by flags
	if *port == -1 {
		*port = cfg.Server.GRPCServer.Port
	}
	if *host == "" {
		*host = cfg.Server.GRPCServer.Host
	}
	if *logLevel == "" {
		*logLevel = cfg.Server.GRPCServer.LogLevel
	}
	if *maxEnvs == -1 {
		*maxEnvs = cfg.Server.GRPCServer.MaxEnvs
	}
	if !*enableReflection {
		*enableReflection = cfg.Server.GRPCServer.EnableReflection
	}
	wsEnabled := cfg.Server.WebSocket.Enabled
	if *wsPort == -1 {
		*wsPort = cfg.Server.WebSocket.Port
	} else {
		wsEnabled = true
	}
	if cfg.Development.VerboseLogging {
		*logLevel = "debug"
	}

	setupLogging(*logLevel)

	log.Info().
		Int("port", *port).
		Str("host", *host).
		Int("max_envs", *maxEnvs).
		Int("idle_timeout_s", cfg.Server.GRPCServer.IdleTimeout).
		Msg("Starting gRPC puzzle server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Episode events fan out to the log and to websocket watchers
	bus := events.NewEventBus()
	eventLogger := subscribers.NewLoggerSubscriber("event_logger", log.Logger, zerolog.InfoLevel)
	if !cfg.Development.VerboseLogging {
		eventLogger.SetEventFilter([]string{events.TypeEpisodeReset, events.TypeEpisodeTerminated, events.TypeEpisodeTruncated})
	}
	eventLogger.SetDevMode(cfg.Development.VerboseLogging)
	bus.Subscribe(eventLogger)

	hub := websocket.NewHub(log.Logger)
	bus.Subscribe(hub)
	go hub.Run(ctx)

	collector, err := newCollector(cfg.Experience)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up experience collection")
	}

	manager := session.NewManager(session.Config{
		MaxEnvs:     *maxEnvs,
		IdleTimeout: time.Duration(cfg.Server.GRPCServer.IdleTimeout) * time.Second,
		Logger:      log.Logger,
		Publisher:   bus,
		Collector:   collector,
	})

	// Puzzle defaults follow hot reloads; envs created earlier keep theirs
	defaults := newDefaults(*cfg)
	config.WatchConfig(func() {
		defaults.set(*config.Get())
		log.Info().Str("file", config.ConfigFilePath()).Msg("Config reloaded")
	})

	var monitor *monitoring.Monitor
	if cfg.Development.MonitorGoroutines {
		monitor = monitoring.NewMonitor(log.Logger)
		monitor.RegisterGauge("active_envs", manager.Count)
		monitor.RegisterGauge("ws_clients", func() int { return hub.ClientCount("") })
		monitor.RegisterGauge("experience_buffered", collector.Buffer().Size)
		monitor.Start()
	}

	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", *host, *port))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to listen")
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			loggingInterceptor,
			recoveryInterceptor,
		),
	)

	puzzleserver.RegisterPuzzleServiceServer(grpcServer, puzzleserver.NewServer(manager, defaults.options, log.Logger))

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(puzzleserver.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	if *enableReflection {
		reflection.Register(grpcServer)
		log.Info().Msg("gRPC reflection enabled")
	}

	var httpServer *http.Server
	if wsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/ws", hub)
		httpServer = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.WebSocket.Host, *wsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info().Str("address", httpServer.Addr).Msg("Websocket event stream listening")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Websocket server failed")
			}
		}()
	}

	done := make(chan struct{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus(puzzleserver.ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

		// Give ongoing requests time to complete
		time.Sleep(time.Duration(cfg.Server.GRPCServer.GracefulShutdownDelay) * time.Second)

		log.Info().Msg("Gracefully stopping gRPC server")
		grpcServer.GracefulStop()

		if httpServer != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("Websocket server shutdown")
			}
			shutdownCancel()
		}

		manager.Stop()
		if monitor != nil {
			monitor.Stop()
		}
		if err := collector.Close(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to flush experiences")
		}
		cancel()
		close(done)
	}()

	log.Info().Str("address", lis.Addr().String()).Msg("gRPC server listening")

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatal().Err(err).Msg("Failed to serve")
		}
	}()

	<-done
	log.Info().Msg("Server shutdown complete")
}

// puzzleDefaults holds the configured puzzle options handed to new envs.
type puzzleDefaults struct {
	mu  sync.RWMutex
	cfg config.Config
}

func newDefaults(cfg config.Config) *puzzleDefaults {
	return &puzzleDefaults{cfg: cfg}
}

func (d *puzzleDefaults) set(cfg config.Config) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg = cfg
}

func (d *puzzleDefaults) options(name string) env.Options {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return env.OptionsFromConfig(&d.cfg, name)
}

func newCollector(c config.ExperienceConfig) (*experience.Collector, error) {
	persistence, err := experience.NewPersistenceLayer(experience.PersistenceConfig{
		Type:        experience.PersistenceType(c.Persistence.Type),
		BaseDir:     c.Persistence.BaseDir,
		MaxFileSize: c.Persistence.MaxFileSize,
		BatchSize:   c.Persistence.BatchSize,
	}, log.Logger)
	if err != nil {
		return nil, err
	}
	buffer := experience.NewBuffer(c.BufferCapacity, log.Logger)
	return experience.NewCollector(buffer, persistence, c.Persistence.BatchSize, log.Logger), nil
}

func setupLogging(level string) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if os.Getenv("APP_ENV") == "production" {
		// JSON output for production
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}
}

// loggingInterceptor logs all unary RPC calls
func loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()

	resp, err := handler(ctx, req)

	code := codes.OK
	if err != nil {
		if st, ok := status.FromError(err); ok {
			code = st.Code()
		}
	}

	log.Info().
		Str("method", info.FullMethod).
		Str("code", code.String()).
		Dur("duration", time.Since(start)).
		Err(err).
		Msg("gRPC call")

	return resp, err
}

// recoveryInterceptor catches panics and returns proper gRPC errors
func recoveryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("method", info.FullMethod).
				Interface("panic", r).
				Msg("Recovered from panic in gRPC handler")
			err = status.Errorf(codes.Internal, "internal server error")
		}
	}()

	return handler(ctx, req)
}
