package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"example.com/healthhub/internal/observability"
	"example.com/healthhub/internal/token"
)

const maxTokenResponseBytes = 1 << 20

// tokenResponse is the subset of the provider token payload we keep.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type oauthErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"message"`
}

// Exchanger runs the authorization-code and refresh-token grants against a
// provider's token endpoint and updates the token store on success.
type Exchanger struct {
	store  *token.Store
	client *http.Client
}

// NewExchanger builds an Exchanger around a shared HTTP client.
func NewExchanger(store *token.Store, client *http.Client) *Exchanger {
	if client == nil {
		client = http.DefaultClient
	}
	return &Exchanger{store: store, client: client}
}

// ExchangeCode swaps an authorization code for a token pair and stores it.
func (e *Exchanger) ExchangeCode(ctx context.Context, a Adapter, code, redirectURI string) error {
	if strings.TrimSpace(code) == "" {
		return errors.New("missing authorization code")
	}

	params := map[string]string{
		"client_id":     a.ClientID,
		"client_secret": a.ClientSecret,
		"code":          code,
		"grant_type":    "authorization_code",
		"redirect_uri":  redirectURI,
	}

	pair, err := e.postToken(ctx, a, params)
	if err != nil {
		observability.RecordOAuthExchange(string(a.Name), "authorization_code", "error")
		return err
	}

	e.store.Set(a.Name, pair)
	observability.RecordOAuthExchange(string(a.Name), "authorization_code", "ok")
	return nil
}

// Refresh exchanges the stored refresh token for a new pair. On success
// both tokens are replaced; on failure stored state is left untouched.
func (e *Exchanger) Refresh(ctx context.Context, a Adapter) (string, error) {
	current := e.store.Get(a.Name)
	if current.RefreshToken == "" {
		return "", ErrNotAuthenticated
	}

	params := map[string]string{
		"client_id":     a.ClientID,
		"client_secret": a.ClientSecret,
		"grant_type":    "refresh_token",
		"refresh_token": current.RefreshToken,
	}

	pair, err := e.postToken(ctx, a, params)
	if err != nil {
		observability.RecordOAuthExchange(string(a.Name), "refresh_token", "error")
		return "", err
	}

	// Some providers rotate the refresh token; keep the old one when the
	// response omits it.
	if pair.RefreshToken == "" {
		pair.RefreshToken = current.RefreshToken
	}
	e.store.Set(a.Name, pair)
	observability.RecordOAuthExchange(string(a.Name), "refresh_token", "ok")
	return pair.AccessToken, nil
}

// postToken issues the grant request with the adapter's body encoding.
// Strava expects a JSON body, Oura form-urlencoded.
func (e *Exchanger) postToken(ctx context.Context, a Adapter, params map[string]string) (token.Pair, error) {
	var (
		body        io.Reader
		contentType string
	)
	switch a.TokenEncoding {
	case EncodingForm:
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		body = strings.NewReader(values.Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		buf, err := json.Marshal(params)
		if err != nil {
			return token.Pair{}, fmt.Errorf("encode token request: %w", err)
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.TokenURL, body)
	if err != nil {
		return token.Pair{}, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := e.client.Do(req)
	if err != nil {
		return token.Pair{}, &UpstreamError{Provider: string(a.Name), Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return token.Pair{}, &UpstreamError{Provider: string(a.Name), Message: err.Error()}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return token.Pair{}, &UpstreamError{
			Provider: string(a.Name),
			Status:   resp.StatusCode,
			Message:  decodeOAuthError(raw),
		}
	}

	var payload tokenResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return token.Pair{}, &UpstreamError{Provider: string(a.Name), Message: "malformed token response"}
	}
	if payload.AccessToken == "" {
		return token.Pair{}, &UpstreamError{Provider: string(a.Name), Message: "token response missing access_token"}
	}

	return token.Pair{AccessToken: payload.AccessToken, RefreshToken: payload.RefreshToken}, nil
}

// decodeOAuthError extracts a readable message from a provider error
// payload, falling back to the raw body.
func decodeOAuthError(raw []byte) string {
	var payload oauthErrorResponse
	if err := json.Unmarshal(raw, &payload); err == nil {
		switch {
		case payload.ErrorDescription != "":
			return payload.ErrorDescription
		case payload.Error != "":
			return payload.Error
		case payload.Message != "":
			return payload.Message
		}
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		return "token endpoint rejected the request"
	}
	return msg
}
