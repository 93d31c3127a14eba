// Package api exposes the HTTP handlers for the health insights backend.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"example.com/healthhub/internal/insight"
	"example.com/healthhub/internal/provider"
	"example.com/healthhub/internal/token"
)

// InsightService is the AI capability the handlers depend on; satisfied by
// *insight.Service and by test stubs.
type InsightService interface {
	Chat(ctx context.Context, message string, data insight.HealthData) (string, error)
	DailySummary(ctx context.Context, data insight.HealthData) (string, error)
	Trends(ctx context.Context, data insight.HealthData) (string, error)
}

// HandlerConfig carries redirect-URI resolution inputs.
type HandlerConfig struct {
	// BaseURL, when set, is preferred over any request-derived origin.
	BaseURL string
	// RedirectOverrides pin the full callback URI per provider.
	RedirectOverrides map[token.Provider]string
}

// Handler coordinates HTTP requests with the OAuth, provider-data and
// insight components.
type Handler struct {
	store     *token.Store
	exchanger *provider.Exchanger
	data      *provider.DataClient
	insights  InsightService
	adapters  map[token.Provider]provider.Adapter
	cfg       HandlerConfig
}

// NewHandler builds a Handler over the given provider adapters.
func NewHandler(store *token.Store, exchanger *provider.Exchanger, data *provider.DataClient, insights InsightService, adapters []provider.Adapter, cfg HandlerConfig) *Handler {
	byName := make(map[token.Provider]provider.Adapter, len(adapters))
	for _, a := range adapters {
		byName[a.Name] = a
	}
	return &Handler{
		store:     store,
		exchanger: exchanger,
		data:      data,
		insights:  insights,
		adapters:  byName,
		cfg:       cfg,
	}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/ai/chat", h.aiChat)
	mux.HandleFunc("/api/ai/daily-summary", h.aiDailySummary)
	mux.HandleFunc("/api/ai/trends", h.aiTrends)
	mux.HandleFunc("/api/strava/", h.providerRoute)
	mux.HandleFunc("/api/oura/", h.providerRoute)
	mux.HandleFunc("/callback/", h.callback)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// providerRoute dispatches /api/{provider}/{action} where action is
// auth-url, status, refresh, or a data resource name.
func (h *Handler) providerRoute(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/")
	name, action, ok := strings.Cut(rest, "/")
	adapter, known := h.adapters[token.Provider(name)]
	if !ok || !known || action == "" {
		writeError(w, http.StatusNotFound, "unknown route")
		return
	}

	if action == "refresh" {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "unsupported method")
			return
		}
		h.refresh(w, r, adapter)
		return
	}

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "unsupported method")
		return
	}

	switch action {
	case "auth-url":
		h.authURL(w, r, adapter)
	case "status":
		writeJSON(w, http.StatusOK, StatusResponse{Connected: h.store.Connected(adapter.Name)})
	default:
		h.fetchResource(w, r, adapter, action)
	}
}

// refresh runs the refresh-token grant on demand. Recovery is always
// caller-initiated; data fetches never refresh behind the scenes.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request, a provider.Adapter) {
	if _, err := h.exchanger.Refresh(r.Context(), a); err != nil {
		if errors.Is(err, provider.ErrNotAuthenticated) {
			writeAuthError(w, "no refresh token stored for "+string(a.Name))
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Connected: true})
}

func (h *Handler) authURL(w http.ResponseWriter, r *http.Request, a provider.Adapter) {
	redirectURI := h.resolveRedirectURI(r, a.Name)
	writeJSON(w, http.StatusOK, AuthURLResponse{URL: a.AuthorizeURL(redirectURI)})
}

func (h *Handler) fetchResource(w http.ResponseWriter, r *http.Request, a provider.Adapter, resource string) {
	body, err := h.data.Fetch(r.Context(), a, resource)
	if err != nil {
		switch {
		case errors.Is(err, provider.ErrNotAuthenticated):
			writeAuthError(w, "not connected to "+string(a.Name))
		case errors.Is(err, provider.ErrAuthorizationExpired):
			writeAuthError(w, string(a.Name)+" authorization expired, please reconnect")
		case errors.Is(err, provider.ErrUnknownResource):
			writeError(w, http.StatusNotFound, "unknown resource: "+resource)
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// callback handles the provider redirect at the end of the authorization
// flow and always sends the browser back to the UI root with an outcome
// flag.
func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/callback/"), "/")
	adapter, known := h.adapters[token.Provider(name)]
	if !known {
		writeError(w, http.StatusNotFound, "unknown provider")
		return
	}

	if reason := r.URL.Query().Get("error"); reason != "" {
		h.redirectHome(w, r, url.Values{"error": {name}, "reason": {reason}})
		return
	}

	code := r.URL.Query().Get("code")
	redirectURI := h.resolveRedirectURI(r, adapter.Name)
	if err := h.exchanger.ExchangeCode(r.Context(), adapter, code, redirectURI); err != nil {
		log.Printf("oauth exchange failed provider=%s: %v", name, err)
		h.redirectHome(w, r, url.Values{"error": {name}, "reason": {err.Error()}})
		return
	}

	log.Printf("oauth exchange succeeded provider=%s", name)
	h.redirectHome(w, r, url.Values{"connected": {name}})
}

func (h *Handler) redirectHome(w http.ResponseWriter, r *http.Request, flags url.Values) {
	http.Redirect(w, r, "/?"+flags.Encode(), http.StatusFound)
}

func (h *Handler) aiChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeAIRequest(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	text, err := h.insights.Chat(r.Context(), req.Message, req.HealthData)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{Response: text})
}

func (h *Handler) aiDailySummary(w http.ResponseWriter, r *http.Request) {
	var req HealthDataRequest
	if !decodeAIRequest(w, r, &req) {
		return
	}

	text, err := h.insights.DailySummary(r.Context(), req.HealthData)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, SummaryResponse{Summary: text})
}

func (h *Handler) aiTrends(w http.ResponseWriter, r *http.Request) {
	var req HealthDataRequest
	if !decodeAIRequest(w, r, &req) {
		return
	}

	text, err := h.insights.Trends(r.Context(), req.HealthData)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, TrendsResponse{Analysis: text})
}

func decodeAIRequest(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "unsupported method")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeError(w, http.StatusBadRequest, "unable to parse body")
		return false
	}
	return true
}

// ChatRequest is the payload for POST /api/ai/chat.
type ChatRequest struct {
	Message    string             `json:"message"`
	HealthData insight.HealthData `json:"healthData"`
}

// HealthDataRequest is the payload for the summary and trends endpoints.
type HealthDataRequest struct {
	HealthData insight.HealthData `json:"healthData"`
}

// AuthURLResponse carries the provider authorization URL.
type AuthURLResponse struct {
	URL string `json:"url"`
}

// StatusResponse reports whether a provider has a usable access token.
type StatusResponse struct {
	Connected bool `json:"connected"`
}

// ChatResponse is the body for POST /api/ai/chat.
type ChatResponse struct {
	Response string `json:"response"`
}

// SummaryResponse is the body for POST /api/ai/daily-summary.
type SummaryResponse struct {
	Summary string `json:"summary"`
}

// TrendsResponse is the body for POST /api/ai/trends.
type TrendsResponse struct {
	Analysis string `json:"analysis"`
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]interface{}{"error": detail})
}

// writeAuthError signals the UI to restart the OAuth flow rather than
// retry the request.
func writeAuthError(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
		"error":     detail,
		"needsAuth": true,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
