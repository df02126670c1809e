// The gateway is a thin reverse proxy in front of the users, books and loans
// services. It owns CORS and nothing else; auth and business rules live in
// the services behind it.
package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	transporthttp "github.com/thisismondev/PUBA/internal/transport/http"
)

const (
	defaultPort     = "3000"
	defaultUsersURL = "http://localhost:3003"
	defaultBooksURL = "http://localhost:3001"
	defaultLoansURL = "http://localhost:3002"
	shutdownTimeout = 10 * time.Second
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "gateway").Logger()
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg(".env not found, using process environment")
	}

	port := getEnv(logger, "PORT", defaultPort)
	usersURL := getEnv(logger, "USERS_SERVICE_URL", defaultUsersURL)
	booksURL := getEnv(logger, "BOOKS_SERVICE_URL", defaultBooksURL)
	loansURL := getEnv(logger, "LOANS_SERVICE_URL", defaultLoansURL)
	corsOrigins := getEnv(logger, "CORS_ORIGINS", "http://localhost:3005")

	usersProxy := newProxy(logger, usersURL)
	booksProxy := newProxy(logger, booksURL)
	loansProxy := newProxy(logger, loansURL)

	mux := http.NewServeMux()
	mux.Handle("/health", transporthttp.HealthHandler("gateway"))
	mux.HandleFunc("/", handleInfo(usersURL, booksURL, loansURL))
	mux.Handle("/users/", usersProxy)
	mux.Handle("/auth/", usersProxy)
	mux.Handle("/books", booksProxy)
	mux.Handle("/books/", booksProxy)
	mux.Handle("/api/book-items", booksProxy)
	mux.Handle("/api/book-items/", booksProxy)
	mux.Handle("/loans", loansProxy)
	mux.Handle("/loans/", loansProxy)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: splitCSV(corsOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	handler := transporthttp.RequestLogger(corsHandler.Handler(mux), logger)

	server := &http.Server{
		Addr:    ":" + port,
		Handler: handler,
	}

	logger.Info().Str("port", port).Msg("gateway listening")

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
		}
	case <-stopCtx.Done():
		logger.Info().Msg("shutdown signal received, stopping server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	logger.Info().Msg("server stopped")
}

func newProxy(logger zerolog.Logger, target string) *httputil.ReverseProxy {
	u, err := url.Parse(target)
	if err != nil {
		logger.Fatal().Err(err).Str("target", target).Msg("invalid service url")
	}
	proxy := httputil.NewSingleHostReverseProxy(u)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error().Err(err).Str("target", target).Str("path", r.URL.Path).Msg("proxy error")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream unavailable","code":"bad_gateway"}`))
	}
	return proxy
}

func handleInfo(usersURL, booksURL, loansURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found","code":"not_found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "name": "PUBA API Gateway",
  "routes": {
    "users": {"prefix": "/users", "target": "` + usersURL + `"},
    "books": {"prefix": "/books", "target": "` + booksURL + `"},
    "loans": {"prefix": "/loans", "target": "` + loansURL + `"}
  }
}`))
	}
}

func splitCSV(input string) []string {
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(logger zerolog.Logger, key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	logger.Warn().Str("key", key).Str("default", def).Msg("env not set, using default")
	return def
}
