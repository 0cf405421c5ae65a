package fcrepo

import (
	"testing"

	"pkt.systems/fcrepo/api"
)

func TestExpandPrefer(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"PreferContainment", api.NamespaceLDP + "PreferContainment"},
		{"PreferMembership", api.NamespaceLDP + "PreferMembership"},
		{"PreferMinimalContainer", api.NamespaceLDP + "PreferMinimalContainer"},
		{"ServerManaged", api.NamespaceRepository + "ServerManaged"},
		{"EmbedResources", api.NamespaceOA + "PreferContainedDescriptions"},
		{"InboundReferences", api.NamespaceFedoraAPI + "InboundReferences"},
	}
	for _, tc := range cases {
		if got := ExpandPrefer(tc.name); got != tc.want {
			t.Fatalf("ExpandPrefer(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestExpandPreferUnknownPassesThrough(t *testing.T) {
	const uri = "http://example.com/custom#Preference"
	if got := ExpandPrefer(uri); got != uri {
		t.Fatalf("unknown token mutated: %q", got)
	}
}

func TestBuildPreferHeader(t *testing.T) {
	got := BuildPreferHeader([]string{"PreferMinimalContainer"}, nil)
	want := `return=representation; include="` + api.NamespaceLDP + `PreferMinimalContainer"`
	if got != want {
		t.Fatalf("include-only header = %q, want %q", got, want)
	}

	got = BuildPreferHeader(nil, []string{"ServerManaged"})
	want = `return=representation; omit="` + api.NamespaceRepository + `ServerManaged"`
	if got != want {
		t.Fatalf("omit-only header = %q, want %q", got, want)
	}

	got = BuildPreferHeader([]string{"PreferContainment PreferMembership"}, []string{"ServerManaged"})
	want = `return=representation; include="` + api.NamespaceLDP + `PreferContainment ` +
		api.NamespaceLDP + `PreferMembership"; omit="` + api.NamespaceRepository + `ServerManaged"`
	if got != want {
		t.Fatalf("combined header = %q, want %q", got, want)
	}
}

func TestBuildPreferHeaderEmpty(t *testing.T) {
	if got := BuildPreferHeader(nil, nil); got != "" {
		t.Fatalf("expected empty header, got %q", got)
	}
	if got := BuildPreferHeader([]string{"  "}, []string{""}); got != "" {
		t.Fatalf("expected empty header for blank tokens, got %q", got)
	}
}
