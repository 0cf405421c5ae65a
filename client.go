package fcrepo

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pkt.systems/fcrepo/api"
	"pkt.systems/pslog"
)

// DefaultContentType is the metadata media type negotiated on GET requests
// when neither the endpoint nor the request supplies an Accept value and the
// endpoint operates in metadata mode.
const DefaultContentType = api.ContentTypeRDFXML

// Client executes repository operations against a Fedora-style HTTP
// endpoint. It is a stateless translation layer: each Process call resolves
// method, content negotiation, and target URL from the request descriptor
// and the endpoint configuration, executes the call on the shared HTTP
// client, and normalizes the response. A Client is safe for concurrent use;
// all per-request state lives in locals.
type Client struct {
	baseURL    string
	httpClient *http.Client
	txn        *TransactionManager
	logger     pslog.Base

	contentType    string
	accept         string
	metadata       bool
	fixity         bool
	failOnError    bool
	preferInclude  []string
	preferOmit     []string
	spoolThreshold int64

	authUsername string
	authPassword string
	authHost     string
	timeout      time.Duration
	traced       bool
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient supplies a caller-owned HTTP client shared by all requests.
// It must be safe for concurrent use.
func WithHTTPClient(cli *http.Client) Option {
	return func(c *Client) {
		if cli != nil {
			c.httpClient = cli
		}
	}
}

// WithLogger attaches a structured logger. Defaults to a noop logger.
func WithLogger(logger pslog.Base) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTransactionManager wires the manager used for transacted requests.
func WithTransactionManager(tm *TransactionManager) Option {
	return func(c *Client) {
		c.txn = tm
	}
}

// WithContentType fixes the request entity media type for the endpoint. It
// takes precedence over per-request content types.
func WithContentType(contentType string) Option {
	return func(c *Client) {
		c.contentType = contentType
	}
}

// WithAccept fixes the Accept value for the endpoint. It takes precedence
// over per-request Accept values.
func WithAccept(accept string) Option {
	return func(c *Client) {
		c.accept = accept
	}
}

// WithMetadata switches between metadata mode (GETs resolve the describedby
// metadata URI, Accept defaults to application/rdf+xml) and binary mode
// (raw URLs, Accept defaults to */*). Metadata mode is the default.
func WithMetadata(enabled bool) Option {
	return func(c *Client) {
		c.metadata = enabled
	}
}

// WithFixityCheck makes GET requests target the resource's fixity-check
// path instead of its content.
func WithFixityCheck(enabled bool) Option {
	return func(c *Client) {
		c.fixity = enabled
	}
}

// WithFailOnError controls whether invalid responses and transport failures
// surface as errors (the default) or are suppressed: a non-2xx/3xx response
// is then normalized like a success, and a transport failure yields a nil
// Response with nil error. One flag covers both failure classes.
func WithFailOnError(enabled bool) Option {
	return func(c *Client) {
		c.failOnError = enabled
	}
}

// WithPreferInclude sets the include preference tokens used to synthesize a
// Prefer header on GET requests. Short names expand through the fixed table.
func WithPreferInclude(tokens ...string) Option {
	return func(c *Client) {
		c.preferInclude = tokens
	}
}

// WithPreferOmit sets the omit preference tokens used to synthesize a
// Prefer header on GET requests.
func WithPreferOmit(tokens ...string) Option {
	return func(c *Client) {
		c.preferOmit = tokens
	}
}

// WithSpoolThreshold sets the in-memory limit for cached response bodies
// before they spill to a temp file.
func WithSpoolThreshold(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.spoolThreshold = n
		}
	}
}

// WithAuth sets basic-auth credentials used when the Client builds its own
// HTTP client. Ignored when WithHTTPClient is supplied.
func WithAuth(username, password string) Option {
	return func(c *Client) {
		c.authUsername = username
		c.authPassword = password
	}
}

// WithAuthHost scopes the credentials to an explicit host. When unset, the
// host is derived from the base URL.
func WithAuthHost(host string) Option {
	return func(c *Client) {
		c.authHost = host
	}
}

// WithHTTPTimeout sets the whole-request timeout on the built-in HTTP
// client. Ignored when WithHTTPClient is supplied.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTracedTransport wraps the built-in transport with otelhttp
// instrumentation. Ignored when WithHTTPClient is supplied.
func WithTracedTransport() Option {
	return func(c *Client) {
		c.traced = true
	}
}

// New creates a Client for the repository at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("fcrepo: baseURL required")
	}
	c := &Client{
		baseURL:        trimmed,
		metadata:       true,
		failOnError:    true,
		spoolThreshold: DefaultSpoolThreshold,
		logger:         pslog.NoopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		builder := NewHTTPBuilder().Timeout(c.timeout)
		if c.authUsername != "" {
			builder.Credentials(c.authUsername, c.authPassword).AuthHost(c.resolveAuthHost())
		}
		if c.traced {
			builder.Traced()
		}
		c.httpClient = builder.Build()
	}
	c.logInfo("fcrepo.client.init", "base_url", c.baseURL, "metadata", c.metadata, "fixity", c.fixity)
	return c, nil
}

// BaseURL returns the endpoint base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) resolveAuthHost() string {
	if c.authHost != "" {
		return c.authHost
	}
	return authHostFromBaseURL(c.baseURL)
}

// Response carries the normalized outcome of one repository operation.
type Response struct {
	// StatusCode is the received HTTP status.
	StatusCode int
	// ContentType is the response Content-Type header, or "".
	ContentType string
	// Body is nil for HEAD requests and empty entities. When stream caching
	// is enabled (the default) it also implements io.Seeker and can be
	// replayed; the network connection has already been released. With
	// caching disabled it is the raw connection stream and must be closed
	// promptly.
	Body io.ReadCloser
}

// Close releases the response body, if any.
func (r *Response) Close() error {
	if r == nil || r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// Bytes reads the remaining body. A nil body yields nil bytes.
func (r *Response) Bytes() ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, nil
	}
	return io.ReadAll(r.Body)
}

// Process executes one repository request. Transacted requests run inside a
// transaction manager unit of work with the session id threaded into the
// URL; request failures inside the transaction roll it back and surface as
// *TransactionError.
//
// With failure suppression enabled (WithFailOnError(false)), a transport
// failure returns (nil, nil): the caller observes no response at all.
func (c *Client) Process(ctx context.Context, req api.Request) (*Response, error) {
	if !req.Transacted {
		return c.doRequest(ctx, req, "")
	}
	var out *Response
	err := c.InTransaction(ctx, func(ctx context.Context, tx *Transaction) error {
		resp, err := c.ProcessIn(ctx, tx, req)
		if err != nil {
			return &TransactionError{Op: "request", Err: err}
		}
		out = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// InTransaction runs fn as one unit of work against the client's
// transaction manager: begin, fn with the active Transaction, then commit,
// or rollback when fn returns an error. Requests dispatched inside fn with
// ProcessIn share the transaction's session.
func (c *Client) InTransaction(ctx context.Context, fn func(ctx context.Context, tx *Transaction) error) error {
	if c.txn == nil {
		return fmt.Errorf("fcrepo: transacted request requires a transaction manager")
	}
	return c.txn.InTransaction(ctx, fn)
}

// ProcessIn executes one request inside an already-active transaction,
// threading its session id into the request URL. The transaction's
// lifecycle stays with the caller; req.Transacted is ignored.
func (c *Client) ProcessIn(ctx context.Context, tx *Transaction, req api.Request) (*Response, error) {
	return c.doRequest(ctx, req, tx.SessionID())
}

func (c *Client) doRequest(ctx context.Context, req api.Request, session string) (*Response, error) {
	method := resolveMethod(req.Method)
	contentType := c.resolveContentType(req)
	rawURL := c.resolveURL(req, session)

	c.logDebugCtx(ctx, "fcrepo.request.start", "url", rawURL, "method", method)

	target := rawURL
	switch method {
	case http.MethodPatch:
		metadataURI, err := c.metadataURI(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		target = metadataURI
	case http.MethodPut, http.MethodPost, http.MethodDelete, http.MethodHead:
	default: // GET
		uri, err := c.retrievalURI(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		target = uri
	}

	var body io.Reader
	if enclosesEntity(method) && req.Body != nil {
		body = req.Body
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("fcrepo: build %s request for %s: %w", method, target, err)
	}
	if body != nil {
		switch {
		case contentType != "":
			httpReq.Header.Set("Content-Type", contentType)
		case method == http.MethodPatch:
			httpReq.Header.Set("Content-Type", api.ContentTypeSPARQLUpdate)
		}
	}
	if method == http.MethodGet {
		httpReq.Header.Set("Accept", c.resolveAccept(req))
		if prefer := c.resolvePrefer(req); prefer != "" {
			httpReq.Header.Set("Prefer", prefer)
		}
	}
	if cid := CorrelationIDFromContext(ctx); cid != "" {
		httpReq.Header.Set(headerCorrelationID, cid)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if c.failOnError {
			return nil, fmt.Errorf("fcrepo: %s %s: %w", method, target, err)
		}
		c.logWarnCtx(ctx, "fcrepo.request.suppressed_transport_error", "url", target, "method", method, "error", err)
		return nil, nil
	}

	if !validStatus(resp.StatusCode) && c.failOnError {
		text := readBodyText(resp.Body)
		_ = resp.Body.Close()
		c.logWarnCtx(ctx, "fcrepo.request.failed", "url", target, "method", method, "status", resp.StatusCode)
		return nil, &OperationFailedError{URL: target, StatusCode: resp.StatusCode, StatusText: text}
	}

	out := &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if method == http.MethodHead {
		drainAndClose(resp.Body)
		c.logDebugCtx(ctx, "fcrepo.request.done", "url", target, "status", resp.StatusCode)
		return out, nil
	}
	if req.DisableStreamCache {
		// Caller owns the connection; Body must be closed to release it.
		out.Body = resp.Body
		c.logDebugCtx(ctx, "fcrepo.request.done", "url", target, "status", resp.StatusCode, "cached", false)
		return out, nil
	}
	cached, err := spoolBody(resp.Body, c.spoolThreshold)
	_ = resp.Body.Close()
	if err != nil {
		c.logErrorCtx(ctx, "fcrepo.response.cache_error", "url", target, "error", err)
		return out, nil
	}
	if cached != nil {
		out.Body = cached
	}
	c.logDebugCtx(ctx, "fcrepo.request.done", "url", target, "status", resp.StatusCode, "cached", true)
	return out, nil
}

// validStatus reports whether a status code counts as a normal response.
func validStatus(code int) bool {
	return code > 0 && code < 300
}

// enclosesEntity reports whether the method carries a request entity.
func enclosesEntity(method string) bool {
	switch method {
	case http.MethodPatch, http.MethodPut, http.MethodPost:
		return true
	}
	return false
}

// resolveMethod uppercases the override and defaults to GET. Unrecognized
// methods are coerced to GET, on the wire as well as in dispatch.
func resolveMethod(method string) string {
	switch m := strings.ToUpper(method); m {
	case http.MethodGet, http.MethodHead, http.MethodPut,
		http.MethodPost, http.MethodPatch, http.MethodDelete:
		return m
	}
	return http.MethodGet
}

// resolveContentType prefers the endpoint-configured content type over the
// request's.
func (c *Client) resolveContentType(req api.Request) string {
	if c.contentType != "" {
		return c.contentType
	}
	return req.ContentType
}

// resolveAccept prefers the endpoint-configured accept value, then the
// request's, then */* for binary endpoints, then the metadata default.
func (c *Client) resolveAccept(req api.Request) string {
	switch {
	case c.accept != "":
		return c.accept
	case req.Accept != "":
		return req.Accept
	case !c.metadata:
		return api.ContentTypeWildcard
	default:
		return DefaultContentType
	}
}

// resolvePrefer prefers the request's verbatim Prefer directive over a
// header synthesized from endpoint include/omit preferences.
func (c *Client) resolvePrefer(req api.Request) string {
	if req.Prefer != "" {
		return req.Prefer
	}
	return BuildPreferHeader(c.preferInclude, c.preferOmit)
}

// resolveURL builds the request URL: an explicit URI wins; otherwise the
// (possibly overridden) base URL, the transaction session segment, and the
// identifier are concatenated.
func (c *Client) resolveURL(req api.Request, session string) string {
	if req.URI != "" {
		return req.URI
	}
	base := c.baseURL
	if req.BaseURL != "" {
		base = strings.TrimRight(req.BaseURL, "/")
	}
	var sb strings.Builder
	sb.WriteString(base)
	if session != "" {
		sb.WriteByte('/')
		sb.WriteString(session)
	}
	sb.WriteString(req.Identifier)
	return sb.String()
}

// retrievalURI resolves the target of a GET according to endpoint mode:
// fixity-check path, metadata URI, or the raw URL.
func (c *Client) retrievalURI(ctx context.Context, rawURL string) (string, error) {
	if c.fixity {
		return rawURL + api.FixityPath, nil
	}
	if c.metadata {
		return c.metadataURI(ctx, rawURL)
	}
	return rawURL, nil
}

// metadataURI discovers the metadata location for a resource by issuing a
// HEAD request: a Location header wins; otherwise a single describedby Link
// is used; otherwise the raw URL stands. A failed HEAD propagates — the
// operation must not complete silently against the wrong target.
func (c *Client) metadataURI(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("fcrepo: build HEAD request for %s: %w", rawURL, err)
	}
	if cid := CorrelationIDFromContext(ctx); cid != "" {
		req.Header.Set(headerCorrelationID, cid)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fcrepo: HEAD %s: %w", rawURL, err)
	}
	defer drainAndClose(resp.Body)
	if location := resp.Header.Get("Location"); location != "" {
		return location, nil
	}
	links, err := linkHeaders(resp.Header, "describedby")
	if err != nil {
		return "", err
	}
	if len(links) == 1 {
		return links[0], nil
	}
	return rawURL, nil
}

// linkHeaders collects the URIs of all Link headers whose rel matches,
// comparing case-insensitively.
func linkHeaders(h http.Header, rel string) ([]string, error) {
	var uris []string
	for _, raw := range h.Values("Link") {
		link, err := ParseLink(raw)
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(link.Rel(), rel) {
			uris = append(uris, link.URI().String())
		}
	}
	return uris, nil
}

// readBodyText captures a response body as newline-joined text, best
// effort: read errors yield whatever was collected so far.
func readBodyText(r io.Reader) string {
	if r == nil {
		return ""
	}
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return strings.Join(lines, "\n")
}

func enrichKeyvals(ctx context.Context, keyvals []any) []any {
	if ctx == nil {
		return keyvals
	}
	cid := CorrelationIDFromContext(ctx)
	if cid == "" {
		return keyvals
	}
	enriched := append([]any(nil), keyvals...)
	return append(enriched, "cid", cid)
}

func (c *Client) logDebugCtx(ctx context.Context, msg string, keyvals ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Debug(msg, enrichKeyvals(ctx, keyvals)...)
}

func (c *Client) logWarnCtx(ctx context.Context, msg string, keyvals ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Warn(msg, enrichKeyvals(ctx, keyvals)...)
}

func (c *Client) logErrorCtx(ctx context.Context, msg string, keyvals ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Error(msg, enrichKeyvals(ctx, keyvals)...)
}

func (c *Client) logInfo(msg string, keyvals ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Info(msg, keyvals...)
}
