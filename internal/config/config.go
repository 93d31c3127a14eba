// Package config loads runtime configuration from the environment.
package config

import (
	"os"
	"time"
)

// ProviderConfig holds one provider's OAuth client credentials plus
// optional bootstrap tokens and redirect override.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
	RedirectURI  string
}

// Config captures runtime configuration for the service.
type Config struct {
	HTTPAddress  string
	BaseURL      string
	HTTPTimeout  time.Duration
	Strava       ProviderConfig
	Oura         ProviderConfig
	AnthropicKey string
	Model        string
	AuthSecret   string
	AuthIssuer   string
	CORSOrigin   string
}

// Load reads environment variables and applies defaults.
func Load() Config {
	return Config{
		HTTPAddress: getEnv("HTTP_ADDRESS", ":8080"),
		BaseURL:     getEnv("BASE_URL", ""),
		HTTPTimeout: getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		Strava: ProviderConfig{
			ClientID:     getEnv("STRAVA_CLIENT_ID", ""),
			ClientSecret: getEnv("STRAVA_CLIENT_SECRET", ""),
			AccessToken:  getEnv("STRAVA_ACCESS_TOKEN", ""),
			RefreshToken: getEnv("STRAVA_REFRESH_TOKEN", ""),
			RedirectURI:  getEnv("STRAVA_REDIRECT_URI", ""),
		},
		Oura: ProviderConfig{
			ClientID:     getEnv("OURA_CLIENT_ID", ""),
			ClientSecret: getEnv("OURA_CLIENT_SECRET", ""),
			AccessToken:  getEnv("OURA_ACCESS_TOKEN", ""),
			RefreshToken: getEnv("OURA_REFRESH_TOKEN", ""),
			RedirectURI:  getEnv("OURA_REDIRECT_URI", ""),
		},
		AnthropicKey: getEnv("ANTHROPIC_API_KEY", ""),
		Model:        getEnv("ANTHROPIC_MODEL", ""),
		AuthSecret:   getEnv("API_AUTH_SECRET", ""),
		AuthIssuer:   getEnv("API_AUTH_ISSUER", "healthhub"),
		CORSOrigin:   getEnv("CORS_ORIGIN", "http://localhost:5173"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
