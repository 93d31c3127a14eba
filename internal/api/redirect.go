package api

import (
	"net/http"
	"strings"

	"example.com/healthhub/internal/token"
)

// resolveRedirectURI computes the OAuth callback URI for a provider.
// Precedence: per-provider override, configured base URL, forwarded
// headers, direct connection. The forwarded-header path exists because the
// service may run behind a reverse proxy or PaaS ingress that rewrites
// scheme and host.
func (h *Handler) resolveRedirectURI(r *http.Request, p token.Provider) string {
	if override := h.cfg.RedirectOverrides[p]; override != "" {
		return override
	}
	return requestOrigin(r, h.cfg.BaseURL) + "/callback/" + string(p)
}

// requestOrigin returns scheme+host, preferring the configured base URL,
// then forwarded headers, then the connection itself.
func requestOrigin(r *http.Request, baseURL string) string {
	if baseURL != "" {
		return strings.TrimRight(baseURL, "/")
	}

	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme != "" {
		// Proxies may append to an existing list.
		scheme, _, _ = strings.Cut(scheme, ",")
		scheme = strings.TrimSpace(scheme)
	} else if r.TLS != nil {
		scheme = "https"
	} else {
		scheme = "http"
	}

	host := r.Header.Get("X-Forwarded-Host")
	if host != "" {
		host, _, _ = strings.Cut(host, ",")
		host = strings.TrimSpace(host)
	} else {
		host = r.Host
	}

	return scheme + "://" + host
}
