package fcrepo

import (
	"strings"

	"pkt.systems/fcrepo/api"
)

// preferProperties maps documented short preference names to their fully
// namespaced URIs. Built once at init and never mutated.
var preferProperties = map[string]string{
	"PreferContainment":      api.NamespaceLDP + "PreferContainment",
	"PreferMembership":       api.NamespaceLDP + "PreferMembership",
	"PreferMinimalContainer": api.NamespaceLDP + "PreferMinimalContainer",
	"ServerManaged":          api.NamespaceRepository + "ServerManaged",
	"EmbedResources":         api.NamespaceOA + "PreferContainedDescriptions",
	"InboundReferences":      api.NamespaceFedoraAPI + "InboundReferences",
}

// ExpandPrefer resolves a short preference name to its namespaced URI.
// Unknown names pass through unchanged.
func ExpandPrefer(name string) string {
	if expanded, ok := preferProperties[name]; ok {
		return expanded
	}
	return name
}

// BuildPreferHeader renders a Prefer header value from include/omit
// preference tokens, expanding short names along the way. It returns ""
// when both lists are empty.
func BuildPreferHeader(include, omit []string) string {
	includeURIs := expandPreferTokens(include)
	omitURIs := expandPreferTokens(omit)
	if len(includeURIs) == 0 && len(omitURIs) == 0 {
		return ""
	}
	parts := []string{"return=representation"}
	if len(includeURIs) > 0 {
		parts = append(parts, `include="`+strings.Join(includeURIs, " ")+`"`)
	}
	if len(omitURIs) > 0 {
		parts = append(parts, `omit="`+strings.Join(omitURIs, " ")+`"`)
	}
	return strings.Join(parts, "; ")
}

func expandPreferTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		for _, field := range strings.Fields(token) {
			out = append(out, ExpandPrefer(field))
		}
	}
	return out
}
