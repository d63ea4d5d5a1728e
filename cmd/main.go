package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	kinesisService "github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marzanneub/stadia-map/internal/config"
	"github.com/marzanneub/stadia-map/internal/events"
	"github.com/marzanneub/stadia-map/internal/handlers"
	"github.com/marzanneub/stadia-map/internal/locate"
	"github.com/marzanneub/stadia-map/internal/routing"
	"github.com/marzanneub/stadia-map/internal/service"
	"github.com/marzanneub/stadia-map/internal/storage"
)

func main() {
	cfg := config.Load()

	// Setup structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if cfg.TileAPIKey == config.PlaceholderTileKey {
		slog.Warn("STADIA_MAPS_API_KEY not set, tiles will use a placeholder key")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize route history storage based on configuration
	var routeStorage storage.RouteStorage
	switch cfg.StorageType {
	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			slog.Error("Failed to load AWS config", "error", err)
			os.Exit(1)
		}

		dynamoClient := dynamodb.NewFromConfig(awsCfg)
		routeStorage = storage.NewDynamoDBRouteStorage(dynamoClient, cfg.RoutesTable)
		slog.Info("Using DynamoDB storage", "table_name", cfg.RoutesTable)
	case "postgres":
		if cfg.DatabaseURL == "" {
			slog.Error("DATABASE_URL is required for postgres storage")
			os.Exit(1)
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("Failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		pgStorage := storage.NewPostgresRouteStorage(pool)
		if err := pgStorage.EnsureSchema(ctx); err != nil {
			slog.Error("Failed to create route history table", "error", err)
			os.Exit(1)
		}
		routeStorage = pgStorage
		slog.Info("Using postgres storage")
	default:
		routeStorage = storage.NewMemoryRouteStorage()
		slog.Info("Using in-memory storage")
	}

	// Event sinks are optional; any combination may be enabled
	var sinks events.Multi
	if cfg.KinesisStream != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			slog.Warn("Failed to load AWS config for Kinesis", "error", err)
		} else {
			kinesisClient := kinesisService.NewFromConfig(awsCfg)
			sinks = append(sinks, events.NewKinesisStreamer(kinesisClient, cfg.KinesisStream))
			slog.Info("Kinesis map event streaming enabled", "stream", cfg.KinesisStream)
		}
	}
	if len(cfg.KafkaBrokers) > 0 {
		sinks = append(sinks, events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic))
		slog.Info("Kafka map event publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			slog.Warn("Failed to close event sinks", "error", err)
		}
	}()

	router := routing.NewOSRMRouter(cfg.OSRMServiceURL, cfg.OSRMProfile)
	geocoder := locate.NewNominatim(cfg.NominatimURL, cfg.UserAgent)

	mapService := service.NewMapService(router, geocoder, routeStorage, sinks)

	// Evict sessions whose browser went away
	sweeper := service.NewSweeper(mapService, cfg.SessionIdleTTL, cfg.SweepInterval)
	sweeper.Start()
	defer sweeper.Stop()

	httpHandler := handlers.NewHTTPHandler(mapService, cfg.TileURL())

	// Setup routes
	muxRouter := mux.NewRouter()

	// Use path prefix if running behind load balancer
	if cfg.PathPrefix != "" {
		httpHandler.RegisterRoutes(muxRouter.PathPrefix(cfg.PathPrefix).Subrouter())
	} else {
		httpHandler.RegisterRoutes(muxRouter)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.CORS(muxRouter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Map Service starting", "port", cfg.Port, "osrm_service_url", cfg.OSRMServiceURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Map Service failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	slog.Info("Map Service shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}
