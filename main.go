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

	cfg "github.com/yash-tauon/crud-api-doc/internal/config"
	"github.com/gorilla/mux"
	_ "modernc.org/sqlite"
)

// App wires the user store, the token service and the configured
// authentication strategies into the HTTP layer.
type App struct {
	store       Store
	tokens      *TokenService
	gate        *AuthGate
	strategies  *StrategyRegistry
	rateLimiter *RateLimiter
	corsOrigins []string
}

// NewApp builds the application graph. Strategies are attached here, once,
// instead of being registered into process-wide state.
func NewApp(store Store, tokens *TokenService, rateLimitPerMinute int, corsOrigins []string) *App {
	gate := NewAuthGate(tokens, store)
	return &App{
		store:       store,
		tokens:      tokens,
		gate:        gate,
		strategies:  NewStrategyRegistry(NewLocalStrategy(store), NewBearerStrategy(gate)),
		rateLimiter: NewRateLimiter(rateLimitPerMinute),
		corsOrigins: corsOrigins,
	}
}

func newRouter(a *App) *mux.Router {
	r := mux.NewRouter()
	r.Use(SecurityHeaders)
	r.Use(a.Logging)
	r.Use(a.CORS)

	// Health check endpoints (no auth required)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")
	r.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if p, ok := a.store.(interface{ ping() bool }); ok {
			if !p.ping() {
				w.WriteHeader(503)
				w.Write([]byte(`{"ready":false}`))
				return
			}
		}
		w.WriteHeader(200)
		w.Write([]byte(`{"ready":true}`))
	}).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(a.RateLimit)

	api.HandleFunc("/users", a.HandleRegister).Methods("POST")
	api.HandleFunc("/users/login", a.HandleLogin).Methods("POST")
	api.HandleFunc("/users", a.HandleListUsers).Methods("GET")

	// /users/me must register before /users/{id} so mux does not swallow
	// "me" as an id.
	requireAuth := RequireAuth(a.strategies.Get("bearer"))
	api.Handle("/users/me", requireAuth(http.HandlerFunc(a.HandleMe))).Methods("GET")
	api.HandleFunc("/users/{id}", a.HandleGetUser).Methods("GET")
	api.HandleFunc("/users/{id}", a.HandleUpdateUser).Methods("PATCH")
	api.HandleFunc("/users/{id}", a.HandleDeleteUser).Methods("DELETE")

	return r
}

func main() {
	c, err := cfg.New()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var store Store
	switch c.DBAdapter {
	case "sqlite":
		s, err := NewSQLiteStore(c.SQLiteFile)
		if err != nil {
			log.Fatalf("sqlite init: %v", err)
		}
		store = s
	case "postgres":
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			log.Fatalf("postgres config error: %v", err)
		}
		log.Println("Applying database migrations...")
		if err := ApplyMigrations("./migrations", dsn); err != nil {
			log.Fatalf("migrations: %v", err)
		}
		p, err := NewPostgresStore(dsn)
		if err != nil {
			log.Fatalf("postgres init: %v", err)
		}
		store = p
		log.Println("Connected to PostgreSQL database")
	case "memory":
		log.Println("Using in-memory store (not recommended for production)")
		store = NewMemStore()
	default:
		log.Fatalf("unsupported DB_ADAPTER: %s (supported: postgres, sqlite, memory)", c.DBAdapter)
	}

	tokens := NewTokenService([]byte(c.JwtSecret), c.TokenTTL)
	app := NewApp(store, tokens, c.RateLimitPerMinute, c.CORSOrigins)

	srv := &http.Server{
		Handler:      newRouter(app),
		Addr:         ":" + c.Port,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		fmt.Println("Starting server on", c.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if closer, ok := app.store.(interface{ close() error }); ok {
		_ = closer.close()
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown failed:%+v", err)
	}
	fmt.Println("Server exited properly")
}
