package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/yoshapihoff/bricks/authenticator/internal/auth"
	"github.com/yoshapihoff/bricks/authenticator/internal/auth/oauth"
	"github.com/yoshapihoff/bricks/authenticator/internal/auth/oauth/providers"
	"github.com/yoshapihoff/bricks/authenticator/internal/config"
	"github.com/yoshapihoff/bricks/authenticator/internal/crypto"
	"github.com/yoshapihoff/bricks/authenticator/internal/db"
	"github.com/yoshapihoff/bricks/authenticator/internal/domain"
	"github.com/yoshapihoff/bricks/authenticator/internal/events"
	"github.com/yoshapihoff/bricks/authenticator/internal/flowstate"
	httpHandler "github.com/yoshapihoff/bricks/authenticator/internal/handler/http"
	"github.com/yoshapihoff/bricks/authenticator/internal/kafka/producers"
	"github.com/yoshapihoff/bricks/authenticator/internal/redis"
	"github.com/yoshapihoff/bricks/authenticator/internal/repository/memory"
	postgresRepo "github.com/yoshapihoff/bricks/authenticator/internal/repository/postgres"
	"github.com/yoshapihoff/bricks/authenticator/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create account store
	accountRepo, closeStore, err := newAccountRepository(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize account store: %v", err)
	}
	defer closeStore()

	// Create pending flow store
	flowStore, closeFlows, err := newFlowStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize flow store: %v", err)
	}
	defer closeFlows()

	// Initialize result token service
	jwtSvc := auth.NewJWTService(auth.JWTConfig{
		Secret:     cfg.ResultToken.Secret,
		Expiration: cfg.ResultToken.Expiration,
	})

	// Forward account events to Kafka when a broker is configured
	bus := events.NewBus(64)
	if cfg.Kafka.KafkaUrl != "" {
		accountEventProducer, err := producers.NewAccountEventProducer(
			cfg.Kafka.KafkaUrl,
			cfg.Kafka.SchemaRegistryUrl,
			cfg.Kafka.AccountEventsTopic,
		)
		if err != nil {
			log.Fatalf("Failed to initialize account event Kafka producer: %v", err)
		}
		defer accountEventProducer.Close()
		go accountEventProducer.Run(ctx, bus)
	} else {
		log.Printf("KAFKA_URL not set, account events stay in process")
	}

	// Initialize Facebook session service
	facebook := providers.NewFacebookProvider(providers.FacebookConfig{
		ClientID:     cfg.Facebook.ClientID,
		ClientSecret: cfg.Facebook.ClientSecret,
		RedirectURL:  cfg.Facebook.RedirectURL,
		GraphVersion: cfg.Facebook.GraphVersion,
		Scopes:       cfg.Facebook.Scopes,
		HTTPClient:   &http.Client{Timeout: cfg.HTTPClientTimeout},
	})
	oauthSvc := oauth.NewService(facebook)

	// Initialize services
	accountSvc := service.NewAccountService(accountRepo, jwtSvc, bus)
	coordinator := service.NewLoginCoordinator(oauthSvc, flowStore, accountSvc, service.CoordinatorOptions{
		FlowTTL:              cfg.Flow.TTL,
		MainScreenURL:        cfg.Flow.MainScreenURL,
		SurfaceSessionErrors: cfg.Flow.SurfaceSessionErrors,
		SurfaceOpenErrors:    cfg.Flow.SurfaceOpenErrors,
		ProfileFetchProgress: cfg.Flow.ProfileFetchProgress,
	})

	// Create HTTP server
	r := mux.NewRouter()

	// Create handler
	handler := httpHandler.NewAuthenticatorHandler(coordinator, accountSvc, jwtSvc)
	handler.RegisterRoutes(r)

	// Health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Run server in a goroutine
	go func() {
		log.Printf("Server is running on http://localhost%s\n", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not start server: %v\n", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	srv.SetKeepAlivesEnabled(false)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Could not gracefully shutdown the server: %v\n", err)
	}
	cancel()

	log.Println("Server stopped")
}

func newAccountRepository(ctx context.Context, cfg *config.Config) (domain.AccountRepository, func(), error) {
	if cfg.AccountStore == "memory" {
		log.Printf("Using in-memory account store")
		return memory.NewAccountRepository(), func() {}, nil
	}

	key, err := cfg.CredentialKeyBytes()
	if err != nil {
		return nil, nil, err
	}
	sealer, err := crypto.NewSealer(key)
	if err != nil {
		return nil, nil, err
	}

	dbConn, err := db.Init(cfg.DB)
	if err != nil {
		return nil, nil, err
	}

	accountRepo := postgresRepo.NewAccountRepository(dbConn, sealer)
	if err := accountRepo.CreateTables(ctx); err != nil {
		_ = dbConn.Close()
		return nil, nil, err
	}

	return accountRepo, closeDB(dbConn), nil
}

func closeDB(dbConn *sql.DB) func() {
	return func() {
		if err := dbConn.Close(); err != nil {
			log.Printf("Failed to close database: %v", err)
		}
	}
}

func newFlowStore(cfg *config.Config) (domain.FlowStore, func(), error) {
	if cfg.FlowStore == "memory" {
		log.Printf("Using in-memory flow store")
		return flowstate.NewMemoryStore(), func() {}, nil
	}

	client, err := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}

	return flowstate.NewRedisStore(client), func() { _ = client.Close() }, nil
}
