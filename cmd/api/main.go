package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/healthhub/internal/api"
	"example.com/healthhub/internal/auth"
	"example.com/healthhub/internal/config"
	"example.com/healthhub/internal/insight"
	"example.com/healthhub/internal/provider"
	"example.com/healthhub/internal/token"
	httptransport "example.com/healthhub/internal/transport/http"
)

func main() {
	cfg := config.Load()

	store := token.NewStore()
	seedStore(store, token.ProviderStrava, cfg.Strava)
	seedStore(store, token.ProviderOura, cfg.Oura)

	outbound := &http.Client{Timeout: cfg.HTTPTimeout}

	strava := provider.Strava(provider.Credentials{ClientID: cfg.Strava.ClientID, ClientSecret: cfg.Strava.ClientSecret})
	oura := provider.Oura(provider.Credentials{ClientID: cfg.Oura.ClientID, ClientSecret: cfg.Oura.ClientSecret})

	exchanger := provider.NewExchanger(store, outbound)
	dataClient := provider.NewDataClient(store, outbound, nil)

	llm := insight.NewClient(insight.ClientConfig{APIKey: cfg.AnthropicKey, Model: cfg.Model}, outbound)
	insights := insight.NewService(llm)

	handler := api.NewHandler(store, exchanger, dataClient, insights, []provider.Adapter{strava, oura}, api.HandlerConfig{
		BaseURL: cfg.BaseURL,
		RedirectOverrides: map[token.Provider]string{
			token.ProviderStrava: cfg.Strava.RedirectURI,
			token.ProviderOura:   cfg.Oura.RedirectURI,
		},
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	// Simple CORS middleware for the local UI
	cors := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSOrigin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	// Request logger with a correlation id; never logs query strings,
	// which carry OAuth codes on the callback route.
	logger := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := uuid.NewString()
			w.Header().Set("X-Request-ID", id)
			log.Printf("%s %s %s", id, r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	authMiddleware := auth.NewMiddleware(
		auth.Config{Secret: cfg.AuthSecret, Issuer: cfg.AuthIssuer},
		func(r *http.Request) bool {
			return strings.HasPrefix(r.URL.Path, "/callback/") ||
				r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
		},
	)

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.HTTPTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}, authMiddleware.Wrap(logger(cors(mux))))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("healthhub listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

// seedStore bootstraps a provider's tokens from configuration so an
// operator can skip the interactive flow on restart.
func seedStore(store *token.Store, p token.Provider, cfg config.ProviderConfig) {
	if cfg.AccessToken == "" && cfg.RefreshToken == "" {
		return
	}
	store.Set(p, token.Pair{AccessToken: cfg.AccessToken, RefreshToken: cfg.RefreshToken})
	log.Printf("seeded %s tokens from environment", p)
}
