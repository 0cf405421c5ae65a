package fcrepo

import (
	"errors"
	"fmt"
)

// ErrCannotCreateTransaction is returned (possibly wrapped) when the
// repository refuses to open a transaction: any status other than 201, a
// missing Location header, or a transport failure on the create call.
var ErrCannotCreateTransaction = errors.New("fcrepo: invalid response while creating transaction")

// OperationFailedError reports a repository response outside the (0, 300)
// status range when the endpoint is configured to fail on errors.
type OperationFailedError struct {
	// URL is the request target that produced the failure.
	URL string
	// StatusCode is the received HTTP status.
	StatusCode int
	// StatusText is the best-effort response body capture, newline-joined.
	// Empty when the body could not be read.
	StatusText string
}

func (e *OperationFailedError) Error() string {
	return fmt.Sprintf("fcrepo: http operation failed invoking %s with status %d: %s",
		e.URL, e.StatusCode, e.StatusText)
}

// TransactionError reports a failed transaction completion (commit or
// rollback) or a request failure inside a transactional unit of work.
type TransactionError struct {
	// Op is the failed operation: "commit", "rollback", or "request".
	Op string
	// StatusCode is the received HTTP status, or zero on transport failure.
	StatusCode int
	// Diagnostic is derived from the status code (not found, expired,
	// conflict body, or a generic unexpected-status note).
	Diagnostic string
	// Err is the underlying transport or operation error, when any.
	Err error
}

func (e *TransactionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fcrepo: could not %s transaction: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("fcrepo: could not %s transaction: %s", e.Op, e.Diagnostic)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// txDiagnostic maps a completion status code to a human-readable cause.
// body is only consulted for 409 responses, where the server explains the
// conflict in the response entity.
func txDiagnostic(status int, body string) string {
	switch status {
	case 404:
		return "no transaction found with the provided ID"
	case 410:
		return "the transaction had already expired"
	case 409:
		if body == "" {
			body = "<message unavailable>"
		}
		return "error completing your request: " + body
	default:
		return fmt.Sprintf("response code %d was completely unexpected", status)
	}
}
