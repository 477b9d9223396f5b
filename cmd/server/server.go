package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KirkDiggler/rpg-toolkit/dice"
	"github.com/KirkDiggler/rpg-toolkit/events"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpc_logging "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"

	"github.com/KirkDiggler/rpg-progression/internal/advancement"
	"github.com/KirkDiggler/rpg-progression/internal/clients/srd"
	"github.com/KirkDiggler/rpg-progression/internal/config"
	"github.com/KirkDiggler/rpg-progression/internal/handlers/progression/v1alpha1"
	progressionorch "github.com/KirkDiggler/rpg-progression/internal/orchestrators/progression"
	"github.com/KirkDiggler/rpg-progression/internal/pkg/idgen"
	redisclient "github.com/KirkDiggler/rpg-progression/internal/redis"
	characterrepo "github.com/KirkDiggler/rpg-progression/internal/repositories/character"
	"github.com/KirkDiggler/rpg-progression/internal/repositories/compendium"
	snapshotrepo "github.com/KirkDiggler/rpg-progression/internal/repositories/snapshot"
	"github.com/KirkDiggler/rpg-progression/internal/resolver"
)

var (
	grpcPort int
	debug    bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the gRPC server",
	Long:  `Start the progression gRPC server. Settings come from RPG_PROGRESSION_* environment variables.`,
	RunE:  runServer,
}

func init() {
	serverCmd.Flags().IntVar(&grpcPort, "port", 0, "gRPC server port (overrides RPG_PROGRESSION_PORT)")
	serverCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

func runServer(cmd *cobra.Command, _ []string) error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = grpcPort
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("received shutdown signal, gracefully stopping")
		cancel()
	}()

	handler, cleanup, err := buildHandler(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpc_logging.UnaryServerInterceptor(grpc_logging.LoggerFunc(logFunc)),
			grpc_recovery.UnaryServerInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			grpc_logging.StreamServerInterceptor(grpc_logging.LoggerFunc(logFunc)),
			grpc_recovery.StreamServerInterceptor(),
		),
	)

	v1alpha1.RegisterProgressionServiceServer(srv, handler)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, healthServer)

	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(v1alpha1.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	reflection.Register(srv)

	errChan := make(chan error, 1)
	go func() {
		slog.Info("gRPC server starting", "port", cfg.Port)
		if err := srv.Serve(lis); err != nil {
			errChan <- fmt.Errorf("failed to serve: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down gRPC server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		stopped := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(stopped)
		}()

		select {
		case <-shutdownCtx.Done():
			slog.Warn("graceful shutdown timeout exceeded, forcing stop")
			srv.Stop()
		case <-stopped:
			slog.Info("server stopped gracefully")
		}

		return nil
	case err := <-errChan:
		return err
	}
}

// buildHandler wires storage, content sources and the engine behind the
// gRPC handler. The returned cleanup closes what was opened.
func buildHandler(cfg *config.Config) (*v1alpha1.Handler, func(), error) {
	client, err := newRedisClient(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create redis client: %w", err)
	}

	characters, err := characterrepo.NewRedis(&characterrepo.RedisConfig{Client: client})
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to create character repository: %w", err)
	}

	snapshots, err := snapshotrepo.NewRedisRepository(&snapshotrepo.Config{
		Client: client,
		TTL:    cfg.SnapshotTTL,
	})
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to create snapshot repository: %w", err)
	}

	store, err := compendium.NewSQLite(&compendium.Config{Path: cfg.CompendiumPath})
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to open compendium: %w", err)
	}

	cleanup := func() {
		_ = store.Close()  // nolint:errcheck // safe to ignore on shutdown
		_ = client.Close() // nolint:errcheck // safe to ignore on shutdown
	}

	srdClient, err := srd.New(&srd.Config{
		BaseURL:  cfg.SRDBaseURL,
		CacheTTL: cfg.SRDCacheTTL,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create SRD client: %w", err)
	}

	sources := resolver.Chain{
		&resolver.Prefixed{Prefix: compendium.UUIDPrefix, Resolver: store},
		&resolver.Prefixed{Prefix: srd.UUIDPrefix, Resolver: srdClient},
	}

	ids := idgen.NewDocument()
	engine, err := advancement.New(&advancement.Config{
		Registry:        advancement.NewRegistry(),
		Resolver:        sources,
		Roller:          dice.DefaultRoller,
		IDGenerator:     ids,
		MaxLevel:        cfg.MaxLevel,
		HitPointAbility: cfg.HitPointAbility,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create advancement engine: %w", err)
	}

	orchestrator, err := progressionorch.New(&progressionorch.Config{
		CharacterRepo: characters,
		SnapshotRepo:  snapshots,
		Engine:        engine,
		Resolver:      sources,
		EventBus:      events.NewBus(),
		IDGenerator:   ids,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create progression orchestrator: %w", err)
	}

	handler, err := v1alpha1.NewHandler(&v1alpha1.HandlerConfig{Service: orchestrator})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create progression handler: %w", err)
	}
	return handler, cleanup, nil
}

// newRedisClient connects to a cluster when cluster endpoints are set
func newRedisClient(cfg *config.Config) (redisclient.Client, error) {
	opts := &redisclient.Options{
		Password: cfg.RedisPassword,
		UseTLS:   cfg.RedisTLS,
	}
	if len(cfg.RedisCluster) > 0 {
		return redisclient.NewClusterClient(cfg.RedisCluster, opts)
	}
	return redisclient.NewClient(cfg.RedisAddr, opts)
}

func logFunc(ctx context.Context, level grpc_logging.Level, msg string, fields ...any) {
	slog.Log(ctx, slog.Level(level), msg, fields...)
}
