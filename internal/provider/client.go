package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"example.com/healthhub/internal/observability"
	"example.com/healthhub/internal/token"
)

const maxDataResponseBytes = 8 << 20

// DataClient issues authenticated read-only requests against provider
// APIs using the stored access token. It never refreshes tokens on its
// own; a 401 clears the stored access token and surfaces
// ErrAuthorizationExpired so the caller can restart the OAuth flow.
type DataClient struct {
	store  *token.Store
	client *http.Client
	now    func() time.Time
}

// NewDataClient builds a DataClient. The now function may be nil, in which
// case time.Now is used; tests inject a fixed clock.
func NewDataClient(store *token.Store, client *http.Client, now func() time.Time) *DataClient {
	if client == nil {
		client = http.DefaultClient
	}
	if now == nil {
		now = time.Now
	}
	return &DataClient{store: store, client: client, now: now}
}

// Fetch retrieves one named resource from a provider and returns the raw
// JSON body unmodified.
func (c *DataClient) Fetch(ctx context.Context, a Adapter, resource string) (json.RawMessage, error) {
	res, ok := a.Resources[resource]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownResource, a.Name, resource)
	}

	access := c.store.Get(a.Name).AccessToken
	if access == "" {
		observability.RecordProviderFetch(string(a.Name), resource, "not_authenticated")
		return nil, ErrNotAuthenticated
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resourceURL(a, res), nil)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", resource, err)
	}
	req.Header.Set("Authorization", "Bearer "+access)

	resp, err := c.client.Do(req)
	if err != nil {
		observability.RecordProviderFetch(string(a.Name), resource, "error")
		return nil, &UpstreamError{Provider: string(a.Name), Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDataResponseBytes))
	if err != nil {
		observability.RecordProviderFetch(string(a.Name), resource, "error")
		return nil, &UpstreamError{Provider: string(a.Name), Message: err.Error()}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.store.ClearAccess(a.Name)
		observability.RecordProviderFetch(string(a.Name), resource, "auth_expired")
		return nil, ErrAuthorizationExpired
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		observability.RecordProviderFetch(string(a.Name), resource, "error")
		return nil, &UpstreamError{
			Provider: string(a.Name),
			Status:   resp.StatusCode,
			Message:  strings.TrimSpace(string(body)),
		}
	}

	observability.RecordProviderFetch(string(a.Name), resource, "ok")
	return json.RawMessage(body), nil
}

// resourceURL joins the adapter base with the resource path and appends
// fixed query parameters plus the rolling time window when one applies.
func (c *DataClient) resourceURL(a Adapter, res Resource) string {
	q := url.Values{}
	for k, v := range res.Query {
		q[k] = append([]string(nil), v...)
	}

	if res.WindowDays > 0 {
		end := c.now().UTC()
		start := end.AddDate(0, 0, -res.WindowDays)
		switch res.TimeParams {
		case TimeParamsDateTime:
			q.Set("start_datetime", start.Format(time.RFC3339))
			q.Set("end_datetime", end.Format(time.RFC3339))
		default:
			q.Set("start_date", start.Format("2006-01-02"))
			q.Set("end_date", end.Format("2006-01-02"))
		}
	}

	u := a.APIBase + res.Path
	if len(q) == 0 {
		return u
	}
	return u + "?" + q.Encode()
}
