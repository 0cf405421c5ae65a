// Package api holds the wire-level vocabulary of the Fedora-style
// repository REST protocol: request descriptors, media types, and the
// fixed path suffixes of the transaction sub-protocol.
package api

import "io"

// Media types negotiated with the repository.
const (
	// ContentTypeRDFXML is the default metadata media type for GET requests.
	ContentTypeRDFXML = "application/rdf+xml"
	// ContentTypeSPARQLUpdate is the default body media type for PATCH requests.
	ContentTypeSPARQLUpdate = "application/sparql-update"
	// ContentTypeWildcard is sent when an endpoint operates on binary content.
	ContentTypeWildcard = "*/*"
)

// Namespaces used when expanding Prefer short names.
const (
	// NamespaceLDP is the W3C Linked Data Platform namespace.
	NamespaceLDP = "http://www.w3.org/ns/ldp#"
	// NamespaceRepository is the repository-internal namespace.
	NamespaceRepository = "http://fedora.info/definitions/v4/repository#"
	// NamespaceFedoraAPI is the Fedora API specification namespace.
	NamespaceFedoraAPI = "http://fedora.info/definitions/fcrepo#"
	// NamespaceOA is the W3C Web Annotation namespace.
	NamespaceOA = "http://www.w3.org/ns/oa#"
)

// Request describes one repository operation. A fresh value is produced per
// invocation; the connector never retains it after Process returns.
type Request struct {
	// Method is the HTTP method to use. Empty defaults to GET; values are
	// uppercased before dispatch.
	Method string
	// Identifier is the resource path appended to the endpoint base URL.
	Identifier string
	// URI, when set, bypasses URL construction entirely and is used verbatim.
	URI string
	// BaseURL overrides the endpoint base URL for this request only.
	BaseURL string
	// ContentType overrides the request entity media type. An endpoint-level
	// content type still takes precedence.
	ContentType string
	// Accept overrides the Accept header. An endpoint-level accept value
	// still takes precedence.
	Accept string
	// Prefer is sent verbatim as the Prefer header on GET requests. When
	// empty, a header is synthesized from endpoint include/omit preferences.
	Prefer string
	// Transacted runs the request inside a repository transaction obtained
	// from the client's transaction manager.
	Transacted bool
	// DisableStreamCache exposes the raw network body on the response
	// instead of buffering it into a replayable spool.
	DisableStreamCache bool
	// Body is the request entity for PATCH, PUT, and POST. Ignored for
	// methods that do not enclose an entity.
	Body io.Reader
}
