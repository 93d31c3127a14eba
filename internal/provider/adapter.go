// Package provider implements OAuth2 and data access against the external
// health providers (Strava, Oura) behind a common adapter capability set.
package provider

import (
	"net/url"
	"strings"

	"example.com/healthhub/internal/token"
)

// Encoding selects the body format a provider's token endpoint expects.
type Encoding string

// Token request body encodings.
const (
	EncodingJSON Encoding = "json"
	EncodingForm Encoding = "form"
)

// TimeParams selects the query-parameter style a windowed resource uses.
type TimeParams string

// Time window parameter styles.
const (
	TimeParamsNone     TimeParams = ""
	TimeParamsDate     TimeParams = "date"
	TimeParamsDateTime TimeParams = "datetime"
)

// Resource describes one read-only REST resource on a provider.
type Resource struct {
	// Path is relative to the adapter's APIBase.
	Path string
	// Query carries fixed query parameters, e.g. per_page for Strava.
	Query url.Values
	// WindowDays, when non-zero, bounds the request to a rolling window
	// ending at the current date.
	WindowDays int
	// TimeParams controls whether the window is expressed as start_date/
	// end_date or start_datetime/end_datetime.
	TimeParams TimeParams
}

// Adapter captures everything provider-specific: endpoints, scopes, token
// body encoding and the resources the API exposes. One generic OAuth and
// data-fetch implementation is parameterized by this struct.
type Adapter struct {
	Name           token.Provider
	AuthURL        string
	TokenURL       string
	APIBase        string
	Scopes         []string
	ScopeSeparator string
	TokenEncoding  Encoding
	ClientID       string
	ClientSecret   string
	Resources      map[string]Resource
}

// AuthorizeURL builds the provider authorization URL for the given
// redirect URI, with the adapter's fixed scopes.
func (a Adapter) AuthorizeURL(redirectURI string) string {
	q := url.Values{}
	q.Set("client_id", a.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("scope", strings.Join(a.Scopes, a.ScopeSeparator))
	if a.Name == token.ProviderStrava {
		q.Set("approval_prompt", "auto")
	}
	return a.AuthURL + "?" + q.Encode()
}

// Credentials describe the client id/secret pair for one provider.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Strava builds the Strava adapter.
func Strava(creds Credentials) Adapter {
	return Adapter{
		Name:           token.ProviderStrava,
		AuthURL:        "https://www.strava.com/oauth/authorize",
		TokenURL:       "https://www.strava.com/oauth/token",
		APIBase:        "https://www.strava.com/api/v3",
		Scopes:         []string{"read", "activity:read_all", "profile:read_all"},
		ScopeSeparator: ",",
		TokenEncoding:  EncodingJSON,
		ClientID:       creds.ClientID,
		ClientSecret:   creds.ClientSecret,
		Resources: map[string]Resource{
			"athlete": {Path: "/athlete"},
			"activities": {
				Path:  "/athlete/activities",
				Query: url.Values{"per_page": {"30"}},
			},
		},
	}
}

// Oura builds the Oura adapter.
func Oura(creds Credentials) Adapter {
	return Adapter{
		Name:           token.ProviderOura,
		AuthURL:        "https://cloud.ouraring.com/oauth/authorize",
		TokenURL:       "https://api.ouraring.com/oauth/token",
		APIBase:        "https://api.ouraring.com/v2",
		Scopes:         []string{"email", "personal", "daily", "heartrate", "workout"},
		ScopeSeparator: " ",
		TokenEncoding:  EncodingForm,
		ClientID:       creds.ClientID,
		ClientSecret:   creds.ClientSecret,
		Resources: map[string]Resource{
			"readiness": {
				Path:       "/usercollection/daily_readiness",
				WindowDays: 30,
				TimeParams: TimeParamsDate,
			},
			"sleep": {
				Path:       "/usercollection/daily_sleep",
				WindowDays: 30,
				TimeParams: TimeParamsDate,
			},
			"activity": {
				Path:       "/usercollection/daily_activity",
				WindowDays: 30,
				TimeParams: TimeParamsDate,
			},
			"heartrate": {
				Path:       "/usercollection/heartrate",
				WindowDays: 7,
				TimeParams: TimeParamsDateTime,
			},
			"sleep-detail": {
				Path:       "/usercollection/sleep",
				WindowDays: 30,
				TimeParams: TimeParamsDate,
			},
		},
	}
}
