package fcrepo

import (
	"strings"
	"testing"
)

func TestParseLinkBasic(t *testing.T) {
	link, err := ParseLink(`<http://localhost:8080/rest/a/b/fcr:metadata>; rel="describedby"`)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	if got := link.URI().String(); got != "http://localhost:8080/rest/a/b/fcr:metadata" {
		t.Fatalf("unexpected URI %q", got)
	}
	if got := link.Rel(); got != "describedby" {
		t.Fatalf("unexpected rel %q", got)
	}
}

func TestParseLinkMultipleParams(t *testing.T) {
	link, err := ParseLink(`<http://www.w3.org/ns/ldp#Resource>; rel="type"; type="text/turtle"; title="a; b"`)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	if got := link.Rel(); got != "type" {
		t.Fatalf("unexpected rel %q", got)
	}
	if got := link.Type(); got != "text/turtle" {
		t.Fatalf("unexpected type %q", got)
	}
	if got := link.Param("title"); got != "a; b" {
		t.Fatalf("quoted separator not preserved, got %q", got)
	}
}

func TestParseLinkUnquotedParam(t *testing.T) {
	link, err := ParseLink(`<http://example.com/x>; rel=describedby`)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	if got := link.Rel(); got != "describedby" {
		t.Fatalf("unexpected rel %q", got)
	}
}

func TestParseLinkErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", "did not contain a URI"},
		{"whitespace", "   ", "did not contain a URI"},
		{"no brackets", `http://example.com/x; rel="type"`, "did not contain a URI"},
		{"unterminated quote", `<http://example.com/x>; rel="type`, "unterminated quotes"},
		{"comma outside quotes", `<http://example.com/x>; rel="a", <http://example.com/y>; rel="b"`, "unterminated quotes"},
		{"bare parameter", `<http://example.com/x>; describedby`, "improperly structured parameter"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseLink(tc.raw)
			if err == nil {
				t.Fatalf("expected error for %q", tc.raw)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLinkStringRoundTrip(t *testing.T) {
	raw := `<http://localhost:8080/rest/node>; rel="describedby"; type="text/turtle"`
	link, err := ParseLink(raw)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	again, err := ParseLink(link.String())
	if err != nil {
		t.Fatalf("reparse rendered link: %v", err)
	}
	if again.URI().String() != link.URI().String() {
		t.Fatalf("URI changed across round trip: %q vs %q", again.URI(), link.URI())
	}
	if again.Rel() != link.Rel() || again.Type() != link.Type() {
		t.Fatalf("params changed across round trip: %v vs %v", again.Params(), link.Params())
	}
}

func TestLinkBuilder(t *testing.T) {
	link, err := NewLinkBuilder().
		URI("http://example.com/resource").
		Rel(`"describedby"`).
		Type("text/turtle").
		Build()
	if err != nil {
		t.Fatalf("build link: %v", err)
	}
	if got := link.Rel(); got != "describedby" {
		t.Fatalf("builder did not strip quotes, got %q", got)
	}
	if got := link.String(); got != `<http://example.com/resource>; rel="describedby"; type="text/turtle"` {
		t.Fatalf("unexpected rendering %q", got)
	}
}

func TestLinkBuilderRequiresURI(t *testing.T) {
	if _, err := NewLinkBuilder().Rel("type").Build(); err == nil {
		t.Fatal("expected error for builder without URI")
	}
}
