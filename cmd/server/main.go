package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/wifikids/backend/internal/access"
	"github.com/wifikids/backend/internal/analytics"
	"github.com/wifikids/backend/internal/auth"
	"github.com/wifikids/backend/internal/challenge"
	"github.com/wifikids/backend/internal/config"
	"github.com/wifikids/backend/internal/database"
	"github.com/wifikids/backend/internal/devices"
	"github.com/wifikids/backend/internal/middleware"
	"github.com/wifikids/backend/internal/provider"
	"github.com/wifikids/backend/internal/router"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg := config.Load()
	if cfg.JWTSecret != "" {
		auth.JWTSecret = []byte(cfg.JWTSecret)
	}

	// Initialize database
	db, err := database.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Completion clients are optional; the offline provider covers the
	// case where neither credential is configured.
	var clients router.ClientSet
	clients.OpenAIModel = cfg.OpenAIModel
	clients.AnthropicModel = cfg.AnthropicModel
	if cfg.OpenAIAPIKey != "" {
		clients.OpenAI = provider.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, float32(cfg.LLMTemperature), cfg.LLMMaxTokens)
		log.Printf("[router] OpenAI backend enabled (model %s)", cfg.OpenAIModel)
	}
	if cfg.AnthropicAPIKey != "" {
		clients.Anthropic = provider.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.LLMTemperature, int64(cfg.LLMMaxTokens))
		log.Printf("[router] Anthropic backend enabled (model %s)", cfg.AnthropicModel)
	}

	history := provider.NewHistoryCache()
	providerRouter, err := router.New(router.DefaultEntries(clients, history), router.Settings{
		Enabled:           cfg.RouterEnabled,
		PreferredBackend:  provider.Backend(cfg.PreferredBackend),
		FallbackToOffline: cfg.FallbackToOffline,
	})
	if err != nil {
		log.Fatalf("Failed to build provider router: %v", err)
	}

	// Stores and services
	sessionStore := challenge.NewPostgresStore(db)
	accessStore := access.NewStore(db)
	analyticsStore := analytics.NewStore(db)

	engine := challenge.NewEngine(sessionStore, providerRouter, accessStore, analyticsStore, challenge.Config{
		RequiredQuestions: cfg.RequiredQuestions,
		GrantMinutes:      cfg.GrantTTLSec / 60,
		AttemptsOverride:  cfg.AttemptsOverride,
	})
	engine.SetDeviceRegistry(devices.NewRegistry(db))

	// Handlers
	authHandler := auth.NewHandler(db)
	deviceHandler := devices.NewHandler(db)
	challengeHandler := challenge.NewHandler(engine, providerRouter)
	accessHandler := access.NewHandler(accessStore)
	analyticsHandler := analytics.NewHandler(analyticsStore)

	// Setup router
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Challenge routes are called by the captive portal on the child's
	// device, before any account exists, so they stay public.
	api.HandleFunc("/challenge", challengeHandler.CreateChallenge).Methods("POST")
	api.HandleFunc("/challenge/{id}/answer", challengeHandler.SubmitAnswers).Methods("POST")
	api.HandleFunc("/challenge/{id}", challengeHandler.GetSession).Methods("GET")
	api.HandleFunc("/providers", challengeHandler.ListProviders).Methods("GET")
	api.HandleFunc("/personas/{persona}", challengeHandler.GetPersonaPolicy).Methods("GET")

	// Gateway polling routes
	api.HandleFunc("/commands", accessHandler.GetCommands).Methods("GET")
	api.HandleFunc("/session-status", accessHandler.GetDeviceStatus).Methods("GET")

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware)
	protected.HandleFunc("/auth/me", authHandler.GetCurrentUser).Methods("GET")
	protected.HandleFunc("/devices", deviceHandler.Register).Methods("POST")
	protected.HandleFunc("/devices", deviceHandler.List).Methods("GET")
	protected.HandleFunc("/analytics/summary", analyticsHandler.GetSummary).Methods("GET")
	protected.HandleFunc("/analytics/devices/{device_id}", analyticsHandler.GetDeviceStats).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	go runSweeper(sessionStore, accessStore, cfg)

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	handler := c.Handler(r)

	log.Printf("Server starting on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, handler); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// runSweeper periodically expires abandoned open sessions and deletes
// grants whose window has passed.
func runSweeper(sessions *challenge.PostgresStore, grants *access.Store, cfg config.Config) {
	interval := time.Duration(cfg.SweepIntervalSec) * time.Second
	ttl := time.Duration(cfg.SessionTTLSec) * time.Second

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

		if n, err := sessions.ExpireStale(ctx, time.Now().Add(-ttl)); err != nil {
			log.Printf("WARN: session sweep failed: %v", err)
		} else if n > 0 {
			log.Printf("[sweep] expired %d stale sessions", n)
		}

		if n, err := grants.PurgeExpired(ctx, time.Now()); err != nil {
			log.Printf("WARN: grant sweep failed: %v", err)
		} else if n > 0 {
			log.Printf("[sweep] purged %d expired grants", n)
		}

		cancel()
	}
}
