package fcrepo

import (
	"context"
	"strings"
	"testing"
)

func TestNormalizeCorrelationID(t *testing.T) {
	if got, ok := NormalizeCorrelationID("  cid-1  "); !ok || got != "cid-1" {
		t.Fatalf("normalize = %q, %v", got, ok)
	}
	if _, ok := NormalizeCorrelationID(""); ok {
		t.Fatal("empty id must be rejected")
	}
	if _, ok := NormalizeCorrelationID(strings.Repeat("a", MaxCorrelationIDLength+1)); ok {
		t.Fatal("oversize id must be rejected")
	}
	if _, ok := NormalizeCorrelationID("has\nnewline"); ok {
		t.Fatal("control characters must be rejected")
	}
}

func TestCorrelationContextRoundTrip(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "cid-42")
	if got := CorrelationIDFromContext(ctx); got != "cid-42" {
		t.Fatalf("context carried %q", got)
	}
	if got := CorrelationIDFromContext(context.Background()); got != "" {
		t.Fatalf("empty context carried %q", got)
	}
	// Invalid ids leave the context untouched.
	ctx2 := WithCorrelationID(context.Background(), "bad\x00id")
	if got := CorrelationIDFromContext(ctx2); got != "" {
		t.Fatalf("invalid id stored: %q", got)
	}
}

func TestGenerateCorrelationID(t *testing.T) {
	a := GenerateCorrelationID()
	b := GenerateCorrelationID()
	if a == "" || a == b {
		t.Fatalf("ids not unique: %q %q", a, b)
	}
	if _, ok := NormalizeCorrelationID(a); !ok {
		t.Fatalf("generated id fails validation: %q", a)
	}
}
