package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/ipecgroup/budget-portal/internal/application/service"
	"github.com/ipecgroup/budget-portal/internal/config"
	persistence "github.com/ipecgroup/budget-portal/internal/infrastructure/persistence/repository"
	"github.com/ipecgroup/budget-portal/internal/infrastructure/persistence/sqlite"
	httpadapter "github.com/ipecgroup/budget-portal/internal/interfaces/http"
	"github.com/ipecgroup/budget-portal/pkg/utils"
)

func main() {
	_ = gotenv.Load()

	configPath := os.Getenv("PORTAL_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting budget portal",
		zap.Int("port", cfg.Server.Port),
		zap.String("db", cfg.Database.Path))

	db, err := sqlite.Open(sqlite.Options{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := sqlite.NewMigrator(db, logger)
	if err := migrator.Run(context.Background(), cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	txManager := sqlite.NewDB(db, logger)

	requestRepo := persistence.NewRequestRepository(db, logger)
	membershipRepo := persistence.NewMembershipRepository(db, logger)
	userRepo := persistence.NewUserRepository(db, logger)

	svcLogger := &zapLoggerAdapter{logger: logger}

	resolver := service.NewContextResolver(userRepo, membershipRepo, service.ObserverIdentity{
		Username: cfg.Auth.ObserverUsername,
		Email:    cfg.Auth.ObserverEmail,
	}, svcLogger)

	requestService := service.NewRequestService(requestRepo, resolver, txManager, svcLogger)
	exportService := service.NewExportService(requestService, svcLogger)

	authManager := httpadapter.NewAuthManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.SessionCookie,
		cfg.Auth.TokenTTL,
		cfg.Server.Debug,
	)

	server := httpadapter.NewServer(httpadapter.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Debug:        cfg.Server.Debug,
	}, requestService, exportService, userRepo, authManager, svcLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}

// zapLoggerAdapter adapts zap.Logger to the narrow service.Logger interface.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
