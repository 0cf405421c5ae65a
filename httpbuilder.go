package fcrepo

import (
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPBuilder assembles the shared HTTP client used by the connector and the
// transaction manager. It can scope preemptive basic-auth credentials to a
// single host and wrap the transport with OpenTelemetry instrumentation.
// Connection pooling, TLS, and socket-level timeouts remain the transport's
// responsibility.
type HTTPBuilder struct {
	username string
	password string
	authHost string
	timeout  time.Duration
	traced   bool
}

// NewHTTPBuilder returns an empty builder.
func NewHTTPBuilder() *HTTPBuilder {
	return &HTTPBuilder{}
}

// Credentials sets the basic-auth username and password.
func (b *HTTPBuilder) Credentials(username, password string) *HTTPBuilder {
	if username != "" {
		b.username = username
	}
	if password != "" {
		b.password = password
	}
	return b
}

// AuthHost scopes the credentials to one host (optionally host:port).
// Credentials are only attached when both a username and a host are set.
func (b *HTTPBuilder) AuthHost(host string) *HTTPBuilder {
	if host != "" {
		b.authHost = host
	}
	return b
}

// Timeout sets the whole-request timeout on the built client. Zero leaves
// timeouts to the caller's context.
func (b *HTTPBuilder) Timeout(d time.Duration) *HTTPBuilder {
	b.timeout = d
	return b
}

// Traced wraps the transport with otelhttp instrumentation.
func (b *HTTPBuilder) Traced() *HTTPBuilder {
	b.traced = true
	return b
}

// Build constructs the HTTP client.
func (b *HTTPBuilder) Build() *http.Client {
	var rt http.RoundTripper
	if base, ok := http.DefaultTransport.(*http.Transport); ok {
		rt = base.Clone()
	} else {
		rt = http.DefaultTransport
	}
	if b.traced {
		rt = otelhttp.NewTransport(rt)
	}
	if b.username != "" && b.authHost != "" {
		rt = &basicAuthTransport{
			next:     rt,
			username: b.username,
			password: b.password,
			host:     b.authHost,
		}
	}
	return &http.Client{
		Timeout:   b.timeout,
		Transport: rt,
	}
}

// basicAuthTransport injects preemptive basic-auth credentials for requests
// addressed to a single configured host, leaving other hosts untouched.
type basicAuthTransport struct {
	next     http.RoundTripper
	username string
	password string
	host     string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Authorization") == "" && hostMatches(req.URL, t.host) {
		clone := req.Clone(req.Context())
		clone.SetBasicAuth(t.username, t.password)
		return t.next.RoundTrip(clone)
	}
	return t.next.RoundTrip(req)
}

// hostMatches compares the request target against the configured auth host,
// which may or may not carry a port.
func hostMatches(u *url.URL, authHost string) bool {
	if u == nil || authHost == "" {
		return false
	}
	return u.Host == authHost || u.Hostname() == authHost
}
