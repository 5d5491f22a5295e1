// Package pipeline runs outgoing requests through an ordered policy chain
// before handing them to the HTTP transport. Each policy sees the request on
// the way out and the response on the way back, which is where the ambient
// concerns live: identifying headers, logging, retry with backoff,
// authorization signing and session-token plumbing.
package pipeline

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/elnormous/contenttype"
)

// Transport issues a single HTTP request. *http.Client satisfies it.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request decorates an http.Request with the resource coordinates policies
// need: what kind of resource is addressed and by which link. The link is
// covered by the authorization signature and keys session-token lookups.
type Request struct {
	*http.Request

	// Operation names the client operation, e.g. "create_item".
	Operation string
	// ResourceType is the addressed resource kind: "dbs", "colls" or "docs".
	ResourceType string
	// ResourceLink is the resource link the request addresses. For creates
	// and lists it is the parent's link.
	ResourceLink string
}

// Next invokes the remainder of the pipeline.
type Next func(*Request) (*http.Response, error)

// Policy processes a request/response pair.
type Policy interface {
	Do(req *Request, next Next) (*http.Response, error)
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(*Request, Next) (*http.Response, error)

func (f PolicyFunc) Do(req *Request, next Next) (*http.Response, error) { return f(req, next) }

// Pipeline is an immutable policy chain in front of a transport.
type Pipeline struct {
	policies  []Policy
	transport Transport
}

// New builds a pipeline. Policies run in the given order; a nil transport
// defaults to http.DefaultClient.
func New(transport Transport, policies ...Policy) Pipeline {
	if transport == nil {
		transport = http.DefaultClient
	}
	return Pipeline{policies: policies, transport: transport}
}

// Do runs req through the chain.
func (p Pipeline) Do(req *Request) (*http.Response, error) {
	next := func(r *Request) (*http.Response, error) {
		return p.transport.Do(r.Request)
	}
	for i := len(p.policies) - 1; i >= 0; i-- {
		policy := p.policies[i]
		inner := next
		next = func(r *Request) (*http.Response, error) {
			return policy.Do(r, inner)
		}
	}
	return next(req)
}

// ValidateJSONResponse fails when a response that carries a body is not JSON.
// A wrong media type from a proxy or gateway would otherwise surface as an
// opaque unmarshaling error much further from the cause.
func ValidateJSONResponse(resp *http.Response) error {
	ct := resp.Header.Get("Content-Type")
	if ct == "" || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	mt := contenttype.NewMediaType(ct)
	if mt.Type == "application" && (mt.Subtype == "json" || strings.HasSuffix(mt.Subtype, "+json")) {
		return nil
	}
	return fmt.Errorf("pipeline: unexpected response content type %q", ct)
}
