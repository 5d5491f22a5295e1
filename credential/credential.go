// Package credential provides the authorization schemes the client can attach
// to outgoing requests: shared master keys (HMAC request signing), master
// keys loaded from a rotating file, and Azure Active Directory bearer tokens
// obtained via the OAuth2 client-credentials flow.
package credential

import "net/http"

// A Credential authorizes one outgoing request. Implementations set the
// Authorization header and any scheme-specific headers (the signing schemes
// also stamp x-ms-date, since the date is covered by the signature).
//
// verb is the HTTP method, resourceType the addressed resource kind ("dbs",
// "colls", "docs") and resourceLink the link the signature must cover: for
// name-based requests the name link, for rid-based requests the rid link.
type Credential interface {
	Authorize(req *http.Request, verb, resourceType, resourceLink string) error
}

const (
	headerAuthorization = "Authorization"
	headerDate          = "x-ms-date"
)
