package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"example.com/healthhub/internal/insight"
	"example.com/healthhub/internal/provider"
	"example.com/healthhub/internal/token"
)

type stubInsights struct {
	reply       string
	err         error
	lastMessage string
	lastData    insight.HealthData
}

func (s *stubInsights) Chat(_ context.Context, message string, data insight.HealthData) (string, error) {
	s.lastMessage = message
	s.lastData = data
	return s.reply, s.err
}

func (s *stubInsights) DailySummary(_ context.Context, data insight.HealthData) (string, error) {
	s.lastData = data
	return s.reply, s.err
}

func (s *stubInsights) Trends(_ context.Context, data insight.HealthData) (string, error) {
	s.lastData = data
	return s.reply, s.err
}

type countingTransport struct {
	calls int
}

func (t *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	t.calls++
	return nil, errors.New("unexpected network call")
}

func newTestMux(store *token.Store, insights InsightService, adapters []provider.Adapter, cfg HandlerConfig, client *http.Client) *http.ServeMux {
	handler := NewHandler(
		store,
		provider.NewExchanger(store, client),
		provider.NewDataClient(store, client, nil),
		insights,
		adapters,
		cfg,
	)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	return mux
}

func TestStatusReflectsStoredToken(t *testing.T) {
	store := token.NewStore()
	mux := newTestMux(store, &stubInsights{}, []provider.Adapter{provider.Oura(provider.Credentials{})}, HandlerConfig{}, nil)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/oura/status", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp StatusResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Connected {
		t.Fatalf("expected connected=false with empty store")
	}

	store.Set(token.ProviderOura, token.Pair{AccessToken: "at"})

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/oura/status", nil))
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !resp.Connected {
		t.Fatalf("expected connected=true after storing a token")
	}
}

func TestAuthURLUsesBaseURL(t *testing.T) {
	store := token.NewStore()
	mux := newTestMux(store, &stubInsights{},
		[]provider.Adapter{provider.Oura(provider.Credentials{ClientID: "oura-id"})},
		HandlerConfig{BaseURL: "https://app.example.com"}, nil)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/oura/auth-url", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp AuthURLResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	parsed, err := url.Parse(resp.URL)
	if err != nil {
		t.Fatalf("auth url did not parse: %v", err)
	}
	if got := parsed.Query().Get("redirect_uri"); got != "https://app.example.com/callback/oura" {
		t.Fatalf("unexpected redirect_uri %q", got)
	}
	if got := parsed.Query().Get("client_id"); got != "oura-id" {
		t.Fatalf("unexpected client_id %q", got)
	}
}

func TestUnknownProviderIs404(t *testing.T) {
	mux := newTestMux(token.NewStore(), &stubInsights{}, []provider.Adapter{provider.Oura(provider.Credentials{})}, HandlerConfig{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/oura/", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for empty action, got %d", rr.Code)
	}
}

func TestCallbackSuccessRedirectsWithFlag(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt"}`))
	}))
	defer ts.Close()

	adapter := provider.Oura(provider.Credentials{ClientID: "id", ClientSecret: "secret"})
	adapter.TokenURL = ts.URL

	store := token.NewStore()
	mux := newTestMux(store, &stubInsights{}, []provider.Adapter{adapter}, HandlerConfig{BaseURL: "https://app.example.com"}, ts.Client())

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/callback/oura?code=good-code", nil))

	if rr.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rr.Code)
	}
	if got := rr.Header().Get("Location"); got != "/?connected=oura" {
		t.Fatalf("unexpected redirect %q", got)
	}
	if !store.Connected(token.ProviderOura) {
		t.Fatalf("expected tokens stored after callback")
	}
}

func TestCallbackProviderDenialSkipsExchange(t *testing.T) {
	transport := &countingTransport{}
	adapter := provider.Oura(provider.Credentials{})

	mux := newTestMux(token.NewStore(), &stubInsights{}, []provider.Adapter{adapter}, HandlerConfig{}, &http.Client{Transport: transport})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/callback/oura?error=access_denied", nil))

	if rr.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rr.Code)
	}
	loc := rr.Header().Get("Location")
	if !strings.Contains(loc, "error=oura") || !strings.Contains(loc, "reason=access_denied") {
		t.Fatalf("unexpected redirect %q", loc)
	}
	if transport.calls != 0 {
		t.Fatalf("denial must not hit the token endpoint, saw %d calls", transport.calls)
	}
}

func TestCallbackExchangeFailureRedirectsWithReason(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer ts.Close()

	adapter := provider.Strava(provider.Credentials{})
	adapter.TokenURL = ts.URL

	store := token.NewStore()
	mux := newTestMux(store, &stubInsights{}, []provider.Adapter{adapter}, HandlerConfig{}, ts.Client())

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/callback/strava?code=stale", nil))

	if rr.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rr.Code)
	}
	loc := rr.Header().Get("Location")
	if !strings.Contains(loc, "error=strava") {
		t.Fatalf("unexpected redirect %q", loc)
	}
	if store.Connected(token.ProviderStrava) {
		t.Fatalf("failed exchange must not store tokens")
	}
}

func TestDataRouteNotAuthenticated(t *testing.T) {
	transport := &countingTransport{}
	mux := newTestMux(token.NewStore(), &stubInsights{},
		[]provider.Adapter{provider.Oura(provider.Credentials{})},
		HandlerConfig{}, &http.Client{Transport: transport})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/oura/sleep", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp["needsAuth"] != true {
		t.Fatalf("expected needsAuth flag, got %+v", resp)
	}
	if transport.calls != 0 {
		t.Fatalf("unauthenticated fetch must not call the provider, saw %d calls", transport.calls)
	}
}

func TestDataRoute401ClearsTokenAndStatusFlips(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	adapter := provider.Strava(provider.Credentials{})
	adapter.APIBase = ts.URL

	store := token.NewStore()
	store.Set(token.ProviderStrava, token.Pair{AccessToken: "expired"})
	mux := newTestMux(store, &stubInsights{}, []provider.Adapter{adapter}, HandlerConfig{}, ts.Client())

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/strava/athlete", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/strava/status", nil))
	var resp StatusResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Connected {
		t.Fatalf("status must report disconnected after a provider 401")
	}
}

func TestDataRoutePassesThroughProviderJSON(t *testing.T) {
	const body = `{"data":[{"day":"2024-01-01","score":90}]}`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer ts.Close()

	adapter := provider.Oura(provider.Credentials{})
	adapter.APIBase = ts.URL

	store := token.NewStore()
	store.Set(token.ProviderOura, token.Pair{AccessToken: "at"})
	mux := newTestMux(store, &stubInsights{}, []provider.Adapter{adapter}, HandlerConfig{}, ts.Client())

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/oura/readiness", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != body {
		t.Fatalf("body not passed through: %s", rr.Body.String())
	}
}

func TestAIChatReturnsResponse(t *testing.T) {
	insights := &stubInsights{reply: "sleep more"}
	mux := newTestMux(token.NewStore(), insights, nil, HandlerConfig{}, nil)

	payload := `{"message":"how am I doing?","healthData":{"oura":{"sleep":{"data":[{"day":"2024-01-01","score":70}]}}}}`
	req := httptest.NewRequest(http.MethodPost, "/api/ai/chat", bytes.NewReader([]byte(payload)))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp ChatResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Response != "sleep more" {
		t.Fatalf("unexpected response %q", resp.Response)
	}
	if insights.lastMessage != "how am I doing?" {
		t.Fatalf("message not forwarded, got %q", insights.lastMessage)
	}
	if len(insights.lastData.Oura.Sleep.Data) != 1 {
		t.Fatalf("health data not forwarded: %+v", insights.lastData)
	}
}

func TestAIChatRequiresMessage(t *testing.T) {
	mux := newTestMux(token.NewStore(), &stubInsights{}, nil, HandlerConfig{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/ai/chat", strings.NewReader(`{"healthData":{}}`))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestAIDailySummaryShape(t *testing.T) {
	mux := newTestMux(token.NewStore(), &stubInsights{reply: "good day"}, nil, HandlerConfig{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/ai/daily-summary", strings.NewReader(`{"healthData":{}}`))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp SummaryResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Summary != "good day" {
		t.Fatalf("unexpected summary %q", resp.Summary)
	}
}

func TestAITrendsShape(t *testing.T) {
	mux := newTestMux(token.NewStore(), &stubInsights{reply: "upward"}, nil, HandlerConfig{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/ai/trends", strings.NewReader(`{"healthData":{}}`))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	var resp TrendsResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Analysis != "upward" {
		t.Fatalf("unexpected analysis %q", resp.Analysis)
	}
}

func TestAIMissingCredentialMakesNoNetworkCall(t *testing.T) {
	transport := &countingTransport{}
	insights := insight.NewService(insight.NewClient(insight.ClientConfig{}, &http.Client{Transport: transport}))
	mux := newTestMux(token.NewStore(), insights, nil, HandlerConfig{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/ai/chat", strings.NewReader(`{"message":"hi"}`))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !strings.Contains(resp["error"], "not configured") {
		t.Fatalf("unexpected error %q", resp["error"])
	}
	if transport.calls != 0 {
		t.Fatalf("missing credential must not hit the network, saw %d calls", transport.calls)
	}
}

func TestAIUpstreamErrorIs500(t *testing.T) {
	mux := newTestMux(token.NewStore(), &stubInsights{err: errors.New("model unavailable")}, nil, HandlerConfig{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/ai/trends", strings.NewReader(`{"healthData":{}}`))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestAIRejectsGet(t *testing.T) {
	mux := newTestMux(token.NewStore(), &stubInsights{}, nil, HandlerConfig{}, nil)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/ai/chat", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestRefreshReplacesTokens(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh","refresh_token":"fresh-rt"}`))
	}))
	defer ts.Close()

	adapter := provider.Oura(provider.Credentials{ClientID: "id", ClientSecret: "secret"})
	adapter.TokenURL = ts.URL

	store := token.NewStore()
	store.Set(token.ProviderOura, token.Pair{RefreshToken: "old-rt"})
	mux := newTestMux(store, &stubInsights{}, []provider.Adapter{adapter}, HandlerConfig{}, ts.Client())

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/oura/refresh", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := store.Get(token.ProviderOura).AccessToken; got != "fresh" {
		t.Fatalf("expected refreshed access token, got %q", got)
	}
}

func TestRefreshWithoutStoredToken(t *testing.T) {
	mux := newTestMux(token.NewStore(), &stubInsights{}, []provider.Adapter{provider.Oura(provider.Credentials{})}, HandlerConfig{}, nil)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/oura/refresh", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestRefreshRejectsGet(t *testing.T) {
	mux := newTestMux(token.NewStore(), &stubInsights{}, []provider.Adapter{provider.Oura(provider.Credentials{})}, HandlerConfig{}, nil)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/oura/refresh", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}
