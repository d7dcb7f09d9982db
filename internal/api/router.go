package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/quietfloor/readingroom/internal/api/handler"
	"github.com/quietfloor/readingroom/internal/api/middleware"
	"github.com/quietfloor/readingroom/internal/services/auth"
	"github.com/quietfloor/readingroom/internal/services/forecast"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger          *slog.Logger
	AuthService     *auth.Service
	ForecastService *forecast.Service
	// SocketHandler serves the WebSocket endpoint. It performs its own
	// token check so it sits outside the Auth middleware.
	SocketHandler http.Handler
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	accountHandler := handler.NewAccountHandler(cfg.AuthService)

	authMiddleware := middleware.Auth(cfg.AuthService)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Account routes (no auth required to register or log in)
	api.HandleFunc("/register", accountHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/login", accountHandler.Login).Methods(http.MethodPost)

	// Protected account routes
	protected := api.NewRoute().Subrouter()
	protected.Use(authMiddleware)
	protected.HandleFunc("/logout", accountHandler.Logout).Methods(http.MethodPost)
	protected.HandleFunc("/me", accountHandler.GetMe).Methods(http.MethodGet)

	// Snow prediction (no auth; the UI shows it pre-login)
	if cfg.ForecastService != nil {
		forecastHandler := handler.NewForecastHandler(cfg.ForecastService)
		api.HandleFunc("/snow-prediction", forecastHandler.SnowPrediction).Methods(http.MethodGet)
	}

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	if cfg.SocketHandler != nil {
		r.Handle("/ws", cfg.SocketHandler).Methods(http.MethodGet)
	}

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
