package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stripe/stripe-go/v76"
	_ "modernc.org/sqlite"

	"nichescout/auth"
	"nichescout/billing"
	"nichescout/db"
	"nichescout/httputil"
	"nichescout/pipeline"
	"nichescout/provider"
	"nichescout/provider/tiktok"
	"nichescout/provider/youtube"
	"nichescout/ratelimit"
	"nichescout/search"
)

type Config struct {
	Port        string
	DBPath      string
	DatabaseURL string // Postgres; when set it wins over DBPath
	JWTSecret   string

	YouTubeAPIKey string
	EnableTikTok  bool

	StripeSecretKey     string
	StripeWebhookSecret string
	StripePriceID       string
	FrontendURL         string

	SearchRateLimit  int
	SearchRateWindow time.Duration
}

func loadConfig() Config {
	return Config{
		Port:                getEnv("PORT", "8080"),
		DBPath:              getEnv("DB_PATH", "/data/nichescout.db"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		JWTSecret:           getEnv("JWT_SECRET", "supersecretkey"),
		YouTubeAPIKey:       getEnv("YOUTUBE_API_KEY", ""),
		EnableTikTok:        getEnv("ENABLE_TIKTOK", "true") == "true",
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripePriceID:       getEnv("STRIPE_PRICE_ID", ""),
		FrontendURL:         getEnv("FRONTEND_URL", "http://localhost:5173"),
		SearchRateLimit:     getEnvInt("SEARCH_RATE_LIMIT", 10),
		SearchRateWindow:    time.Duration(getEnvInt("SEARCH_RATE_WINDOW_SECONDS", 60)) * time.Second,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// openDatabase opens Postgres when DATABASE_URL is set, otherwise a
// local SQLite file.
func openDatabase(cfg Config) (*sql.DB, db.Dialect, error) {
	if cfg.DatabaseURL != "" {
		raw, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, "", err
		}
		return raw, db.DialectPostgres, nil
	}

	raw, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, "", err
	}

	// Single connection: prevents concurrent write conflicts
	raw.SetMaxOpenConns(1)
	raw.SetMaxIdleConns(1)
	raw.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := raw.Exec(pragma); err != nil {
			return nil, "", err
		}
	}
	return raw, db.DialectSQLite, nil
}

func main() {
	cfg := loadConfig()

	rawDB, dialect, err := openDatabase(cfg)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer rawDB.Close()

	if err := db.RunMigrations(rawDB, dialect); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	cdb := db.New(rawDB, dialect)

	if cfg.YouTubeAPIKey == "" {
		log.Println("warning: YOUTUBE_API_KEY not set, YouTube searches will fail")
	}
	providers := []provider.Client{youtube.New(cfg.YouTubeAPIKey)}
	if cfg.EnableTikTok {
		providers = append(providers, tiktok.New())
	}
	orchestrator := pipeline.NewOrchestrator(providers...)

	stripe.Key = cfg.StripeSecretKey

	authHandler := &auth.Handler{DB: cdb, JWTSecret: cfg.JWTSecret}
	billingHandler := &billing.Handler{
		DB:            cdb,
		WebhookSecret: cfg.StripeWebhookSecret,
		PriceID:       cfg.StripePriceID,
		SuccessURL:    cfg.FrontendURL + "/subscription/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     cfg.FrontendURL + "/subscription/cancel",
	}
	searchHandler := &search.Handler{Pipeline: orchestrator, DB: cdb}

	searchLimiter := ratelimit.New(cfg.SearchRateLimit, cfg.SearchRateWindow)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Post("/api/auth/register", authHandler.HandleRegister)
	r.Post("/api/auth/login", authHandler.HandleLogin)
	r.Post("/api/payments/webhook", billingHandler.HandleWebhook)

	r.Group(func(r chi.Router) {
		r.Use(authHandler.AuthMiddleware)
		r.Get("/api/auth/me", authHandler.HandleMe)
		r.Get("/api/auth/check-subscription", authHandler.HandleCheckSubscription)
		r.Post("/api/payments/create-checkout-session", billingHandler.HandleCreateCheckoutSession)
		r.Get("/api/search/history", searchHandler.HandleHistory)
	})

	r.Group(func(r chi.Router) {
		r.Use(authHandler.AuthMiddleware)
		r.Use(authHandler.RequireSubscription)
		r.Use(ratelimit.Middleware(searchLimiter))
		r.Get("/api/search/viral-videos", searchHandler.HandleViralVideos)
		r.Get("/api/youtube/find_niches", searchHandler.HandleFindNiches)
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	go func() {
		log.Printf("NicheScout API listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	log.Println("server shut down")
}
