package fcrepo

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

const (
	linkParamRel  = "rel"
	linkParamType = "type"
)

// Link is the immutable value of one RFC 5988 Link header: a target URI plus
// named parameters. Parameter values are stored unquoted; String re-adds the
// quoting. Use ParseLink to read a header and LinkBuilder to synthesize one.
type Link struct {
	uri    *url.URL
	params map[string]string
}

// ParseLink parses a raw Link header value. It fails when the value is
// empty, lacks an angle-bracketed URI, contains unterminated quoting, or
// carries a parameter without an "=".
func ParseLink(raw string) (Link, error) {
	if strings.TrimSpace(raw) == "" {
		return Link{}, fmt.Errorf("fcrepo: link header did not contain a URI")
	}
	uriPart := raw
	paramPart := ""
	if idx := strings.Index(raw, ";"); idx != -1 {
		uriPart = raw[:idx]
		paramPart = raw[idx+1:]
	}
	uri, err := parseLinkURI(uriPart)
	if err != nil {
		return Link{}, err
	}
	params := make(map[string]string)
	if paramPart != "" {
		if err := parseLinkParams(paramPart, params); err != nil {
			return Link{}, err
		}
	}
	return Link{uri: uri, params: params}, nil
}

// parseLinkURI strips < and > from around the URI token.
func parseLinkURI(part string) (*url.URL, error) {
	trimmed := strings.TrimSpace(part)
	if !strings.HasPrefix(trimmed, "<") || !strings.HasSuffix(trimmed, ">") {
		return nil, fmt.Errorf("fcrepo: link header did not contain a URI")
	}
	uri, err := url.Parse(trimmed[1 : len(trimmed)-1])
	if err != nil {
		return nil, fmt.Errorf("fcrepo: link header URI: %w", err)
	}
	return uri, nil
}

// parseLinkParams tokenizes the parameter section on ';', '"', and ','.
// A ',' outside quotes signals an illegally unescaped link separator inside
// what must be a single link-value and is rejected the same way unterminated
// quoting is.
func parseLinkParams(s string, params map[string]string) error {
	i := 0
	for i < len(s) {
		inQuotes := false
		var chunk strings.Builder
		for i < len(s) {
			c := s[i]
			if c == '"' {
				inQuotes = !inQuotes
				i++
				continue
			}
			if !inQuotes && c == ';' {
				i++
				break
			}
			if !inQuotes && c == ',' {
				return fmt.Errorf("fcrepo: cannot parse link, contains unterminated quotes")
			}
			chunk.WriteByte(c)
			i++
		}
		if inQuotes {
			return fmt.Errorf("fcrepo: cannot parse link, contains unterminated quotes")
		}
		name, value, ok := strings.Cut(chunk.String(), "=")
		if !ok {
			return fmt.Errorf("fcrepo: cannot parse link, improperly structured parameter: %q", chunk.String())
		}
		params[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return nil
}

// URI returns the link target.
func (l Link) URI() *url.URL {
	return l.uri
}

// Rel returns the "rel" parameter, or "".
func (l Link) Rel() string {
	return l.params[linkParamRel]
}

// Type returns the "type" parameter, or "".
func (l Link) Type() string {
	return l.params[linkParamType]
}

// Param returns the named parameter, or "".
func (l Link) Param(name string) string {
	return l.params[name]
}

// Params returns a copy of all parameters.
func (l Link) Params() map[string]string {
	out := make(map[string]string, len(l.params))
	for k, v := range l.params {
		out[k] = v
	}
	return out
}

// String rebuilds a Link header value. Output is not guaranteed to be
// byte-identical to the parsed input (parameter order and whitespace are
// normalized) but re-parses to an equal value set.
func (l Link) String() string {
	var sb strings.Builder
	sb.WriteByte('<')
	if l.uri != nil {
		sb.WriteString(l.uri.String())
	}
	sb.WriteByte('>')
	names := make([]string, 0, len(l.params))
	for name := range l.params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sb.WriteString("; ")
		sb.WriteString(name)
		sb.WriteString(`="`)
		sb.WriteString(l.params[name])
		sb.WriteByte('"')
	}
	return sb.String()
}

// stripQuotes removes one pair of surrounding quotation marks, if present.
func stripQuotes(value string) string {
	if strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) && len(value) >= 2 {
		return value[1 : len(value)-1]
	}
	return value
}

// LinkBuilder assembles a Link when a header must be synthesized rather than
// read. It is the constructive inverse of ParseLink.
type LinkBuilder struct {
	uri    *url.URL
	params map[string]string
	err    error
}

// NewLinkBuilder returns an empty builder.
func NewLinkBuilder() *LinkBuilder {
	return &LinkBuilder{params: make(map[string]string)}
}

// URI sets the link target.
func (b *LinkBuilder) URI(uri string) *LinkBuilder {
	parsed, err := url.Parse(uri)
	if err != nil {
		if b.err == nil {
			b.err = fmt.Errorf("fcrepo: link builder URI: %w", err)
		}
		return b
	}
	b.uri = parsed
	return b
}

// Rel sets the "rel" parameter.
func (b *LinkBuilder) Rel(rel string) *LinkBuilder {
	return b.Param(linkParamRel, rel)
}

// Type sets the "type" parameter.
func (b *LinkBuilder) Type(t string) *LinkBuilder {
	return b.Param(linkParamType, t)
}

// Param sets a parameter, stripping surrounding quotes from the value.
func (b *LinkBuilder) Param(name, value string) *LinkBuilder {
	b.params[name] = stripQuotes(value)
	return b
}

// Build returns the assembled Link.
func (b *LinkBuilder) Build() (Link, error) {
	if b.err != nil {
		return Link{}, b.err
	}
	if b.uri == nil {
		return Link{}, fmt.Errorf("fcrepo: link builder requires a URI")
	}
	params := make(map[string]string, len(b.params))
	for k, v := range b.params {
		params[k] = v
	}
	return Link{uri: b.uri, params: params}, nil
}
