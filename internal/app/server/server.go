package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"peopleops/internal/domain/auth"
	"peopleops/internal/domain/employees"
	"peopleops/internal/domain/rbac"
	"peopleops/internal/domain/tasks"
	"peopleops/internal/domain/timeclock"
	"peopleops/internal/platform/config"
	"peopleops/internal/platform/crypto"
	"peopleops/internal/platform/db"
	authhandler "peopleops/internal/transport/http/handlers/auth"
	employeeshandler "peopleops/internal/transport/http/handlers/employees"
	roleshandler "peopleops/internal/transport/http/handlers/roles"
	taskshandler "peopleops/internal/transport/http/handlers/tasks"
	timeclockhandler "peopleops/internal/transport/http/handlers/timeclock"
	"peopleops/internal/transport/http/middleware"
)

func Run() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, "migrations"); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
	}

	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			log.Fatalf("seed failed: %v", err)
		}
	}

	cryptoSvc, err := crypto.New(cfg.DataEncryptionKey)
	if err != nil {
		log.Fatalf("encryption key invalid: %v", err)
	}

	authStore := auth.NewStore(pool)
	roleStore := rbac.NewStore(pool)
	engine := rbac.NewEngine(roleStore)
	employeeStore := employees.NewStore(pool)
	timeStore := timeclock.NewStore(pool)
	taskStore := tasks.NewStore(pool)

	isProd := cfg.Environment == "production"

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(isProd))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.Auth(cfg.JWTSecret, authStore))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthRateLimit(10, time.Minute))
			authHandler := authhandler.NewHandler(authStore, engine, cryptoSvc, cfg.JWTSecret, cfg.TokenTTL, cfg.AllowSelfSignup)
			authHandler.RegisterRoutes(r)
		})

		rolesHandler := roleshandler.NewHandler(engine, authStore)
		rolesHandler.RegisterRoutes(r)

		employeesHandler := employeeshandler.NewHandler(employeeStore, engine)
		employeesHandler.RegisterRoutes(r)

		timeHandler := timeclockhandler.NewHandler(timeStore, engine)
		timeHandler.RegisterRoutes(r)

		tasksHandler := taskshandler.NewHandler(taskStore, engine)
		tasksHandler.RegisterRoutes(r)
	})

	log.Printf("peopleops server listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, router); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
