package fcrepo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pkt.systems/fcrepo/api"
)

func TestTransactionBegin(t *testing.T) {
	var sawPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawPath = r.URL.Path
		w.Header().Set("Location", "http://"+r.Host+"/rest/tx:1234")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	tm, err := NewTransactionManager(srv.URL + "/rest")
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	tx, err := tm.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if sawPath != "/rest"+api.TransactionPath {
		t.Fatalf("begin hit %q, want %q", sawPath, "/rest"+api.TransactionPath)
	}
	if got := tx.SessionID(); got != "tx:1234" {
		t.Fatalf("session id %q, want tx:1234", got)
	}
	if !tx.Active() {
		t.Fatal("transaction should be active after begin")
	}
}

func TestTransactionBeginFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"wrong status", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Location", "http://"+r.Host+"/rest/tx:1234")
			w.WriteHeader(http.StatusOK)
		}},
		{"missing location", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			tm, err := NewTransactionManager(srv.URL + "/rest")
			if err != nil {
				t.Fatalf("new manager: %v", err)
			}
			if _, err := tm.Begin(context.Background()); !errors.Is(err, ErrCannotCreateTransaction) {
				t.Fatalf("begin error = %v, want ErrCannotCreateTransaction", err)
			}
		})
	}
}

func TestTransactionBeginTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	tm, err := NewTransactionManager(srv.URL + "/rest")
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := tm.Begin(context.Background()); !errors.Is(err, ErrCannotCreateTransaction) {
		t.Fatalf("begin error = %v, want ErrCannotCreateTransaction", err)
	}
}

func TestTransactionCommit(t *testing.T) {
	var sawPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rest"+api.TransactionPath {
			w.Header().Set("Location", "http://"+r.Host+"/rest/tx:99")
			w.WriteHeader(http.StatusCreated)
			return
		}
		sawPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tm, err := NewTransactionManager(srv.URL + "/rest")
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	tx, err := tm.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tm.Commit(context.Background(), tx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if want := "/rest/tx:99" + api.CommitPath; sawPath != want {
		t.Fatalf("commit hit %q, want %q", sawPath, want)
	}
	if tx.Active() {
		t.Fatal("session should be cleared after commit")
	}
}

func TestTransactionRollbackPath(t *testing.T) {
	var sawPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tm, err := NewTransactionManager(srv.URL + "/rest")
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	tx := tm.Resume("tx:55")
	if err := tm.Rollback(context.Background(), tx); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if want := "/rest/tx:55" + api.RollbackPath; sawPath != want {
		t.Fatalf("rollback hit %q, want %q", sawPath, want)
	}
	if tx.Active() {
		t.Fatal("session should be cleared after rollback")
	}
}

func TestTransactionCompleteDiagnostics(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   string
	}{
		{http.StatusNotFound, "", "no transaction found with the provided ID"},
		{http.StatusGone, "", "the transaction had already expired"},
		{http.StatusConflict, "tx holds pending writes", "error completing your request: tx holds pending writes"},
		{http.StatusConflict, "", "error completing your request: <message unavailable>"},
		{http.StatusInternalServerError, "", "response code 500 was completely unexpected"},
	}
	for _, tc := range cases {
		status, body := tc.status, tc.body
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			if body != "" {
				_, _ = w.Write([]byte(body))
			}
		}))
		tm, err := NewTransactionManager(srv.URL + "/rest")
		if err != nil {
			srv.Close()
			t.Fatalf("new manager: %v", err)
		}
		tx := tm.Resume("tx:1")
		err = tm.Commit(context.Background(), tx)
		srv.Close()
		var txErr *TransactionError
		if !errors.As(err, &txErr) {
			t.Fatalf("status %d: error = %v, want *TransactionError", status, err)
		}
		if txErr.StatusCode != status {
			t.Fatalf("status %d: recorded status %d", status, txErr.StatusCode)
		}
		if txErr.Diagnostic != tc.want {
			t.Fatalf("status %d: diagnostic %q, want %q", status, txErr.Diagnostic, tc.want)
		}
		if tx.Active() {
			t.Fatalf("status %d: session survived failed commit", status)
		}
	}
}

func TestTransactionCommitWithoutSession(t *testing.T) {
	tm, err := NewTransactionManager("http://127.0.0.1:0/rest")
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	err = tm.Commit(context.Background(), &Transaction{})
	var txErr *TransactionError
	if !errors.As(err, &txErr) {
		t.Fatalf("error = %v, want *TransactionError", err)
	}
	if !strings.Contains(txErr.Diagnostic, "no active session") {
		t.Fatalf("unexpected diagnostic %q", txErr.Diagnostic)
	}
}

func TestInTransactionRollsBackOnError(t *testing.T) {
	var rolledBack, committed bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/rest"+api.TransactionPath:
			w.Header().Set("Location", "http://"+r.Host+"/rest/tx:7")
			w.WriteHeader(http.StatusCreated)
		case strings.HasSuffix(r.URL.Path, api.RollbackPath):
			rolledBack = true
			w.WriteHeader(http.StatusNoContent)
		case strings.HasSuffix(r.URL.Path, api.CommitPath):
			committed = true
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	tm, err := NewTransactionManager(srv.URL + "/rest")
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	boom := errors.New("unit of work failed")
	err = tm.InTransaction(context.Background(), func(ctx context.Context, tx *Transaction) error {
		if tx.SessionID() != "tx:7" {
			t.Fatalf("unexpected session %q", tx.SessionID())
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want the unit-of-work error", err)
	}
	if !rolledBack || committed {
		t.Fatalf("rolledBack=%v committed=%v, want rollback only", rolledBack, committed)
	}
}

func TestAuthHostFromBaseURL(t *testing.T) {
	cases := []struct {
		baseURL string
		want    string
	}{
		{"http://localhost:8080/rest", "localhost:8080"},
		{"https://repo.example.com/fcrepo/rest", "repo.example.com"},
		{"http://repo.example.com", "repo.example.com"},
	}
	for _, tc := range cases {
		tm, err := NewTransactionManager(tc.baseURL)
		if err != nil {
			t.Fatalf("new manager for %q: %v", tc.baseURL, err)
		}
		if got := tm.AuthHost(); got != tc.want {
			t.Fatalf("AuthHost for %q = %q, want %q", tc.baseURL, got, tc.want)
		}
	}
}
