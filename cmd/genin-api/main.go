package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/genin-labs/genin-api/internal/api"
	"github.com/genin-labs/genin-api/internal/config"
	"github.com/genin-labs/genin-api/internal/database"
	"github.com/genin-labs/genin-api/internal/email"
	"github.com/genin-labs/genin-api/internal/services"
	"github.com/genin-labs/genin-api/internal/visma"
	"github.com/genin-labs/genin-api/internal/workflows"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// Cargar configuración
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	// Configurar logging
	logger := setupLogger(cfg)
	logger.Info("Starting Genin API...")
	for _, warning := range cfg.Validate() {
		logger.Warn(warning)
	}

	// Configurar modo de Gin
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Conectar a la base de datos; sin ella solo funcionan sesión y OAuth
	db, err := database.Connect(cfg)
	if err != nil {
		logger.Warnf("Error connecting to database, running without persistence: %v", err)
		db = nil
	} else {
		defer db.Close()
		if cfg.Database.AutoMigrate {
			if err := db.Migrate(context.Background(), logger); err != nil {
				logger.Fatalf("Error running migrations: %v", err)
			}
		}
	}

	// Conectar a Redis
	redis, err := database.ConnectRedis(cfg)
	if err != nil {
		logger.Warnf("Error connecting to Redis: %v", err)
		redis = nil
	} else {
		defer redis.Close()
	}

	tokenStore := setupTokenStore(cfg, db, redis, logger)
	authClient := visma.NewAuthClient(&cfg.Visma, tokenStore, logger)
	vismaClient := visma.NewClient(&cfg.Visma, authClient, logger)

	// Almacenamiento de PDFs: S3 si está configurado, disco local si no
	var objectStore services.ObjectStore
	if cfg.HasStorage() {
		s3Storage, err := database.NewS3Storage(context.Background(), &cfg.Storage, logger)
		if err != nil {
			logger.Warnf("Error initializing S3 storage, falling back to local disk: %v", err)
		} else {
			if err := s3Storage.HealthCheck(context.Background()); err != nil {
				logger.Warnf("S3 storage health check failed: %v", err)
			} else {
				logger.Info("S3 storage connection healthy")
			}
			objectStore = s3Storage
		}
	}
	if objectStore == nil {
		local, err := database.NewLocalStorage(cfg.Upload.Dir, logger)
		if err != nil {
			logger.Fatalf("Error initializing local storage: %v", err)
		}
		objectStore = local
	}
	pdfService := services.NewPDFService(objectStore, cfg.Upload.PDFMinSize, cfg.Upload.MaxFileSize, logger)

	// Inicializar servicio de Resend
	var notifier services.InvoiceNotifier
	if cfg.Email.ResendAPIKey != "" && cfg.Email.NotifyTo != "" {
		notifier = email.NewResendService(&cfg.Email, cfg.Server.BaseURL, logger)
		logger.Info("Resend service initialized successfully")
	} else {
		logger.Warn("Resend API key or EMAIL_NOTIFY_TO not provided, invoice notifications disabled")
	}

	// Inicializar cliente de Inngest
	var events services.EventPublisher
	if cfg.HasEvents() {
		inngestClient, err := workflows.NewInngestClient(&cfg.Inngest, logger)
		if err != nil {
			logger.Warnf("Error initializing Inngest client: %v", err)
		} else {
			events = inngestClient
		}
	} else {
		logger.Warn("Inngest event key not provided and INNGEST_DEV disabled, domain events will not be published")
	}

	deps := api.Dependencies{
		Auth:  authClient,
		Visma: vismaClient,
		PDFs:  pdfService,
	}
	if db != nil {
		importRepo := database.NewImportRepository(db, logger)
		pricingService := services.NewPricingService(database.NewPresetRepository(db, logger), logger)

		deps.Imports = services.NewImportService(importRepo, logger)
		deps.Pricing = pricingService
		deps.Invoices = services.NewInvoiceService(
			importRepo,
			database.NewInvoiceRepository(db, logger),
			database.NewCustomerRepository(db, logger),
			pricingService,
			vismaClient,
			events,
			notifier,
			logger,
		)
		deps.Database = db
	}
	if redis != nil {
		deps.Redis = redis
	}

	// Inicializar API
	apiHandler := api.NewAPI(cfg, deps, logger)
	router := apiHandler.SetupRouter()

	// Crear servidor HTTP
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Canal para señales de terminación
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Iniciar servidor en goroutine
	go func() {
		logger.Infof("Server starting on %s:%s", cfg.Server.Host, cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	// Esperar señal de terminación
	<-quit
	logger.Info("Shutting down server...")

	// Contexto con timeout para shutdown graceful
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// setupLogger configura el logger según la configuración
func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

// setupTokenStore elige dónde viven los tokens OAuth. TOKEN_STORE fuerza la
// elección; si no, Postgres, luego Redis y por último memoria.
func setupTokenStore(cfg *config.Config, db *database.DB, redis *database.Redis, logger *logrus.Logger) visma.TokenStore {
	choice := cfg.TokenStore
	if choice == "" {
		switch {
		case db != nil:
			choice = "postgres"
		case redis != nil:
			choice = "redis"
		default:
			choice = "memory"
		}
	}

	switch {
	case choice == "postgres" && db != nil:
		logger.Info("Using Postgres token store")
		return database.NewTokenRepository(db, logger)
	case choice == "redis" && redis != nil:
		logger.Info("Using Redis token store")
		return database.NewRedisTokenStore(redis.Client, cfg.Redis.TokenKey, logger)
	case choice != "memory":
		logger.Warnf("Token store %q unavailable, falling back to memory", choice)
	}

	logger.Info("Using in-memory token store, tokens are restored from the token cookie")
	return visma.NewMemoryTokenStore()
}
