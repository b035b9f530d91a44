package api

import (
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// accessPolicy decides which browser origins and Host headers may reach the
// server. Requests without an Origin header (CLI, curl, MCP clients) pass the
// origin check; the Host check applies to every request.
type accessPolicy struct {
	origins map[string]bool
	hosts   map[string]bool
}

func newAccessPolicy(origins, hosts []string) accessPolicy {
	p := accessPolicy{origins: map[string]bool{}, hosts: map[string]bool{}}
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			p.origins[strings.ToLower(o)] = true
		}
	}
	for _, h := range hosts {
		if h = strings.TrimSpace(h); h != "" {
			p.hosts[strings.ToLower(h)] = true
		}
	}
	return p
}

// hostAllowed rejects Host headers that are not loopback or configured, so
// a rebound DNS name cannot reach the server from a browser.
func (p accessPolicy) hostAllowed(hostport string) bool {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return true
	}
	return p.hosts[host] || p.hosts[strings.ToLower(hostport)]
}

// originAllowed reports whether a request's Origin may use the API. The
// server's own origin (the embedded UI) is always allowed.
func (p accessPolicy) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if p.origins[strings.ToLower(strings.TrimRight(origin, "/"))] {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// middleware enforces the policy and sets CORS headers for allowed
// cross-origin callers. The allowed origin is echoed, never "*".
func (p accessPolicy) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !p.hostAllowed(r.Host) {
			http.Error(w, "host not allowed", http.StatusForbidden)
			return
		}
		if !p.originAllowed(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// isJSON reports whether the request declares a JSON body. Browsers cannot
// send application/json cross-origin without a preflight.
func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}
