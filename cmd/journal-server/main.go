package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"littlejoys/internal/config"
	"littlejoys/internal/domain"
	"littlejoys/internal/feed"
	"littlejoys/internal/geo"
	"littlejoys/internal/handler"
	"littlejoys/internal/messaging"
	"littlejoys/internal/middleware"
	"littlejoys/internal/observability"
	"littlejoys/internal/repository/postgres"
	"littlejoys/internal/service"
	"littlejoys/internal/token"
	"littlejoys/internal/weather"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "json"
	}
	observability.InitLogger(logLevel, logFormat)

	slog.Info("starting journal server")

	connCtx, connCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer connCancel()

	db, err := config.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.PingContext(connCtx); err != nil {
		slog.Error("database ping failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("connected to postgresql")

	rmqCtx, rmqCancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer rmqCancel()

	rmq, err := messaging.NewRabbitMQWithRetry(rmqCtx, cfg.RabbitMQURL)
	if err != nil {
		slog.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer rmq.Close()

	userRepo := postgres.NewUserRepository(db)
	tokenRepo, err := postgres.NewRefreshTokenRepository(db)
	if err != nil {
		slog.Error("failed to prepare refresh token repository", slog.String("error", err.Error()))
		os.Exit(1)
	}
	postRepo := postgres.NewPostRepository(db)
	likeRepo := postgres.NewLikeRepository(db)
	commentRepo := postgres.NewCommentRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)

	issuer := token.NewIssuer(cfg.JWTSecret)

	authService := service.NewAuthService(userRepo, tokenRepo, issuer)
	postService := service.NewPostService(postRepo, likeRepo, commentRepo, rmq)
	userService := service.NewUserService(userRepo, notificationRepo)

	hub := feed.NewHub()

	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go func() {
		if err := hub.Run(hubCtx); err != nil && err != context.Canceled {
			slog.Error("feed hub error", slog.String("error", err.Error()))
		}
	}()
	slog.Info("feed hub started")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go startTokenCleanup(ctx, tokenRepo)
	slog.Info("refresh token cleanup task started")

	geocoder := geo.NewAMapClient(cfg.AmapAPIURL, cfg.AmapAPIKey)
	weatherClient := weather.NewOpenWeatherClient(cfg.OpenWeatherAPIURL, cfg.OpenWeatherAPIKey)

	authHandler := handler.NewAuthHandler(authService)
	postHandler := handler.NewPostHandler(postService, hub)
	userHandler := handler.NewUserHandler(userService)
	enrichmentHandler := handler.NewEnrichmentHandler(geocoder, weatherClient)
	feedHandler := handler.NewFeedHandler(hub)

	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.CORS(middleware.ParseOrigins(cfg.AllowedOrigins)))
	r.Use(middleware.Metrics())
	// r.Use(middleware.OpenAPIValidator(middleware.DefaultOpenAPIValidatorConfig()))

	r.Get("/health", handler.Health)
	r.Get("/health/ready", handler.Ready(db, rmq))
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	r.Route("/api/v1", func(r chi.Router) {
		authLimiter := middleware.NewRateLimiter(5, 10)
		apiLimiter := middleware.NewRateLimiter(20, 50)

		r.Group(func(r chi.Router) {
			r.Use(authLimiter.Middleware())
			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/refresh", authHandler.Refresh)
		})

		// Listings are public; a bearer token, when present, resolves
		// per-viewer fields like is_liked.
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(issuer))
			r.Use(apiLimiter.Middleware())

			r.Get("/posts", postHandler.List)
			r.Get("/posts/{id}", postHandler.Get)
			r.Get("/posts/{id}/comments", postHandler.ListComments)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(issuer))
			r.Use(apiLimiter.Middleware())

			r.Get("/auth/me", authHandler.Me)
			r.Post("/auth/logout", authHandler.Logout)

			r.Post("/posts", postHandler.Create)
			r.Delete("/posts/{id}", postHandler.Delete)
			r.Post("/posts/{id}/like", postHandler.ToggleLike)
			r.Post("/posts/{id}/comments", postHandler.AddComment)
			r.Post("/posts/{id}/reward", postHandler.Reward)

			r.Get("/users/profile", userHandler.GetProfile)
			r.Put("/users/profile", userHandler.UpdateProfile)
			r.Get("/users/stats", userHandler.GetStats)
			r.Get("/users/notifications", userHandler.ListNotifications)
			r.Put("/users/notifications/{id}/read", userHandler.MarkNotificationRead)

			r.Get("/location/reverse-geocode", enrichmentHandler.ReverseGeocode)
			r.Get("/weather/current", enrichmentHandler.CurrentWeather)

			r.Get("/feed", feedHandler.HandleConnection)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("journal server listening", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", slog.String("error", err.Error()))
	}

	cancel()
	hubCancel()

	time.Sleep(100 * time.Millisecond)

	slog.Info("server stopped gracefully")
}

// startTokenCleanup runs a background task to delete expired refresh tokens
func startTokenCleanup(ctx context.Context, repo domain.RefreshTokenRepository) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping refresh token cleanup task")
			return
		case <-ticker.C:
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			count, err := repo.DeleteExpired(cleanupCtx)
			if err != nil {
				slog.Error("refresh token cleanup failed", slog.String("error", err.Error()))
			} else {
				slog.Info("refresh token cleanup completed",
					slog.Int64("tokens_deleted", count))
			}
			cancel()
		}
	}
}
