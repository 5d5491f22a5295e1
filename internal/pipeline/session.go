package pipeline

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/docstore/docstore-go/internal/resourceid"
	"github.com/docstore/docstore-go/session"
)

// SessionPolicy is the façade between the request pipeline and the session
// store. On the way out it attaches the collection's current token to
// document requests; on the way back it absorbs the response's token and, on
// a successful collection delete, forgets the collection's state.
//
// A response whose session metadata is malformed or incomplete is treated as
// carrying no information: that one request simply proceeds without a session
// guarantee, it never fails.
type SessionPolicy struct {
	Store  session.Store
	Logger *slog.Logger

	// AttachTokens is set when the client-wide consistency level is Session.
	// A request carrying its own x-ms-consistency-level header overrides it
	// either way. Absorption always runs so the store stays warm even when
	// the client temporarily operates at a different level.
	AttachTokens bool
}

// attachTo reports whether the request's effective consistency level calls
// for a stored session token.
func (p *SessionPolicy) attachTo(req *Request) bool {
	if req.ResourceType != resourceid.SegmentDocuments || req.Header.Get(HeaderSessionToken) != "" {
		return false
	}
	if level := req.Header.Get(HeaderConsistencyLevel); level != "" {
		return level == "Session"
	}
	return p.AttachTokens
}

func (p *SessionPolicy) Do(req *Request, next Next) (*http.Response, error) {
	if p.attachTo(req) {
		token, err := p.Store.Get(req.Context(), req.ResourceLink)
		switch {
		case err != nil:
			p.logger().LogAttrs(req.Context(), slog.LevelWarn, "session token lookup failed",
				slog.String("resource_link", req.ResourceLink),
				slog.String("error", err.Error()),
			)
		case token != "":
			req.Header.Set(HeaderSessionToken, token)
		}
	}

	resp, err := next(req)
	if err != nil || resp == nil {
		return resp, err
	}

	p.absorb(req, resp)

	if req.Method == http.MethodDelete &&
		req.ResourceType == resourceid.SegmentCollections &&
		resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := p.Store.Clear(req.Context(), req.ResourceLink); err != nil {
			p.logger().LogAttrs(req.Context(), slog.LevelWarn, "session state clear failed",
				slog.String("resource_link", req.ResourceLink),
				slog.String("error", err.Error()),
			)
		}
	}
	return resp, nil
}

func (p *SessionPolicy) absorb(req *Request, resp *http.Response) {
	header := resp.Header.Get(HeaderSessionToken)
	if header == "" {
		return
	}
	selfLink := bufferSelfLink(resp)
	if selfLink == "" {
		return
	}
	rid, err := resourceid.CollectionRid(selfLink)
	if err != nil {
		return
	}
	altPath := resourceid.CollectionPath(resp.Header.Get(HeaderAltContentPath))

	if err := p.Store.Merge(req.Context(), rid, altPath, header); err != nil {
		p.logger().LogAttrs(req.Context(), slog.LevelWarn, "session token merge failed",
			slog.String("collection_rid", rid),
			slog.String("error", err.Error()),
		)
	}
}

func (p *SessionPolicy) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// bufferSelfLink reads the response body to extract the resource's rid-based
// _self link, then restores the body for downstream consumers. Responses
// without a body (deletes) or without a _self carry no collection identity,
// so they contribute nothing to the session store.
func bufferSelfLink(resp *http.Response) string {
	if resp.Body == nil || resp.Body == http.NoBody {
		return ""
	}
	data, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil || len(data) == 0 {
		return ""
	}
	var meta struct {
		Self string `json:"_self"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return ""
	}
	return meta.Self
}
