package fcrepo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"pkt.systems/fcrepo/api"
	"pkt.systems/pslog"
)

// Transaction tracks one remote repository transaction session. The session
// id is non-empty exactly while the transaction is active; Commit and
// Rollback clear it unconditionally so the handle cannot be reused. A
// Transaction is driven by one unit of work at a time; it is not meant for
// concurrent mutation.
type Transaction struct {
	mu        sync.Mutex
	sessionID string
}

// SessionID returns the server-assigned session identifier, or "" when the
// transaction is not active.
func (t *Transaction) SessionID() string {
	if t == nil {
		return ""
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// Active reports whether the transaction currently holds a session.
func (t *Transaction) Active() bool {
	return t.SessionID() != ""
}

// TransactionManager drives the repository's transaction REST sub-protocol:
// POST <base>/fcr:tx to begin, POST <base>/<session>/fcr:tx/fcr:commit and
// .../fcr:rollback to complete. It is the only constructor of Transaction
// values. The manager itself is safe for concurrent use; individual
// Transactions are not.
type TransactionManager struct {
	baseURL      string
	httpClient   *http.Client
	logger       pslog.Base
	authUsername string
	authPassword string
	authHost     string
	timeout      time.Duration
	traced       bool
}

// TxnOption customizes a TransactionManager.
type TxnOption func(*TransactionManager)

// WithTxnHTTPClient supplies a caller-owned HTTP client. It must be safe for
// concurrent use; the manager stores no per-request state on it.
func WithTxnHTTPClient(cli *http.Client) TxnOption {
	return func(m *TransactionManager) {
		if cli != nil {
			m.httpClient = cli
		}
	}
}

// WithTxnLogger attaches a structured logger. Defaults to a noop logger.
func WithTxnLogger(logger pslog.Base) TxnOption {
	return func(m *TransactionManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTxnAuth sets basic-auth credentials for transaction calls.
func WithTxnAuth(username, password string) TxnOption {
	return func(m *TransactionManager) {
		m.authUsername = username
		m.authPassword = password
	}
}

// WithTxnAuthHost scopes the credentials to an explicit host. When unset,
// the host is derived from the base URL.
func WithTxnAuthHost(host string) TxnOption {
	return func(m *TransactionManager) {
		m.authHost = host
	}
}

// WithTxnHTTPTimeout sets the whole-request timeout on the built-in HTTP
// client. Ignored when a client is supplied via WithTxnHTTPClient.
func WithTxnHTTPTimeout(d time.Duration) TxnOption {
	return func(m *TransactionManager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithTxnTracedTransport wraps the built-in transport with otelhttp
// instrumentation. Ignored when a client is supplied via WithTxnHTTPClient.
func WithTxnTracedTransport() TxnOption {
	return func(m *TransactionManager) {
		m.traced = true
	}
}

// NewTransactionManager creates a manager for the repository at baseURL.
func NewTransactionManager(baseURL string, opts ...TxnOption) (*TransactionManager, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("fcrepo: transaction manager baseURL required")
	}
	m := &TransactionManager{
		baseURL: trimmed,
		logger:  pslog.NoopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.httpClient == nil {
		builder := NewHTTPBuilder().Timeout(m.timeout)
		if m.authUsername != "" {
			builder.Credentials(m.authUsername, m.authPassword).AuthHost(m.AuthHost())
		}
		if m.traced {
			builder.Traced()
		}
		m.httpClient = builder.Build()
	}
	return m, nil
}

// BaseURL returns the repository base URL the manager operates against.
func (m *TransactionManager) BaseURL() string {
	return m.baseURL
}

// AuthHost returns the configured auth host, falling back to the host
// derived from the base URL by stripping scheme and path segments.
func (m *TransactionManager) AuthHost() string {
	if m.authHost != "" {
		return m.authHost
	}
	return authHostFromBaseURL(m.baseURL)
}

func authHostFromBaseURL(baseURL string) string {
	noScheme := strings.TrimPrefix(strings.TrimPrefix(baseURL, "https://"), "http://")
	if idx := strings.Index(noScheme, "/"); idx != -1 {
		noScheme = noScheme[:idx]
	}
	return noScheme
}

// Begin opens a new transaction. Success is exactly a 201 response carrying
// a Location header; the session id is the Location value with the base URL
// prefix stripped. Any other outcome fails with ErrCannotCreateTransaction
// and the surrounding unit of work must not proceed untransacted.
func (m *TransactionManager) Begin(ctx context.Context) (*Transaction, error) {
	tx := &Transaction{}
	if err := m.begin(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// Resume wraps an existing remote session id in a Transaction handle, for
// callers that carry the id across process boundaries. No remote call is
// made; the session is trusted to exist.
func (m *TransactionManager) Resume(sessionID string) *Transaction {
	return &Transaction{sessionID: strings.TrimSpace(sessionID)}
}

func (m *TransactionManager) begin(ctx context.Context, tx *Transaction) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.sessionID != "" {
		// Nested transactions are disallowed; an active handle keeps its session.
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+api.TransactionPath, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCannotCreateTransaction, err)
	}
	m.applyCorrelationHeader(ctx, req)
	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.logWarnCtx(ctx, "fcrepo.tx.begin.transport_error", "error", err)
		return fmt.Errorf("%w: %v", ErrCannotCreateTransaction, err)
	}
	defer drainAndClose(resp.Body)
	location := resp.Header.Get("Location")
	if resp.StatusCode != http.StatusCreated || location == "" {
		m.logDebugCtx(ctx, "fcrepo.tx.begin.bad_response", "status", resp.StatusCode)
		return ErrCannotCreateTransaction
	}
	tx.sessionID = strings.TrimPrefix(strings.TrimPrefix(location, m.baseURL), "/")
	m.logDebugCtx(ctx, "fcrepo.tx.begin", "session", tx.sessionID)
	return nil
}

// Commit completes the transaction. Success is exactly a 204 response; any
// other status or a transport failure raises a *TransactionError with a
// status-derived diagnostic. The session id is cleared regardless of
// outcome so the Transaction cannot be reused.
func (m *TransactionManager) Commit(ctx context.Context, tx *Transaction) error {
	return m.complete(ctx, tx, "commit", api.CommitPath)
}

// Rollback aborts the transaction, with the same success and clearing
// semantics as Commit.
func (m *TransactionManager) Rollback(ctx context.Context, tx *Transaction) error {
	return m.complete(ctx, tx, "rollback", api.RollbackPath)
}

func (m *TransactionManager) complete(ctx context.Context, tx *Transaction, op, suffix string) error {
	if tx == nil {
		return &TransactionError{Op: op, Diagnostic: "no transaction"}
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	session := tx.sessionID
	// Terminal either way: the session must not survive a failed completion.
	defer func() { tx.sessionID = "" }()
	if session == "" {
		return &TransactionError{Op: op, Diagnostic: "transaction has no active session"}
	}
	target := m.baseURL + "/" + session + suffix
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return &TransactionError{Op: op, Err: err}
	}
	m.applyCorrelationHeader(ctx, req)
	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.logDebugCtx(ctx, "fcrepo.tx."+op+".transport_error", "session", session, "error", err)
		return &TransactionError{Op: op, Err: err}
	}
	defer drainAndClose(resp.Body)
	if resp.StatusCode != http.StatusNoContent {
		var body string
		if resp.StatusCode == http.StatusConflict {
			body = readBodyText(resp.Body)
		}
		diagnostic := txDiagnostic(resp.StatusCode, body)
		m.logDebugCtx(ctx, "fcrepo.tx."+op+".failed", "session", session, "status", resp.StatusCode, "diagnostic", diagnostic)
		return &TransactionError{Op: op, StatusCode: resp.StatusCode, Diagnostic: diagnostic}
	}
	m.logDebugCtx(ctx, "fcrepo.tx."+op, "session", session)
	return nil
}

// InTransaction runs fn as one unit of work: Begin, fn with the active
// Transaction, then Commit — or Rollback when fn returns an error. The fn
// error is returned to the caller; rollback failures are logged, not
// surfaced over it.
func (m *TransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx *Transaction) error) error {
	tx, err := m.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		if rbErr := m.Rollback(ctx, tx); rbErr != nil {
			m.logWarnCtx(ctx, "fcrepo.tx.rollback_error", "error", rbErr)
		}
		return err
	}
	return m.Commit(ctx, tx)
}

func (m *TransactionManager) applyCorrelationHeader(ctx context.Context, req *http.Request) {
	if cid := CorrelationIDFromContext(ctx); cid != "" {
		req.Header.Set(headerCorrelationID, cid)
	}
}

func (m *TransactionManager) logDebugCtx(ctx context.Context, msg string, keyvals ...any) {
	if m.logger == nil {
		return
	}
	m.logger.Debug(msg, enrichKeyvals(ctx, keyvals)...)
}

func (m *TransactionManager) logWarnCtx(ctx context.Context, msg string, keyvals ...any) {
	if m.logger == nil {
		return
	}
	m.logger.Warn(msg, enrichKeyvals(ctx, keyvals)...)
}

// drainAndClose consumes any remaining entity bytes so the connection can be
// reused, then closes the body.
func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
