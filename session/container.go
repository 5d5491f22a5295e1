package session

import (
	"sync"

	"github.com/docstore/docstore-go/internal/resourceid"
)

// Hooks receives cache-level notifications from a Container. All fields are
// optional. Hooks run while the container lock is held and must not block.
type Hooks struct {
	// OnHit fires when Get finds tokens for the requested collection.
	OnHit func()
	// OnMiss fires when Get has no state for the requested collection.
	OnMiss func()
	// OnEvict fires when a collection's tokens are purged, either because the
	// collection was recreated under the same name or because Clear observed
	// its deletion.
	OnEvict func()
}

// ContainerOption configures a Container.
type ContainerOption func(*Container)

// WithStrictHeaderParsing makes Merge fail on a header containing any
// malformed pair instead of dropping the bad pairs and keeping the rest.
func WithStrictHeaderParsing() ContainerOption {
	return func(c *Container) { c.strict = true }
}

// WithHooks installs cache notification callbacks.
func WithHooks(h Hooks) ContainerOption {
	return func(c *Container) { c.hooks = h }
}

// Container tracks, per collection, the highest session token observed for
// each of the collection's partition key ranges. It is owned by one client
// instance; there is no ambient global.
//
// Collections are keyed by rid, with a secondary name-path to rid map used
// both to resolve name-based request links and to detect collection
// recreation: when a known name shows up with a different rid, the tokens
// recorded under the old rid are stale by construction and are purged.
//
// A single mutex serializes all access. Every operation is purely in-memory,
// so the lock is never held across I/O.
type Container struct {
	mu sync.Mutex
	// collection rid -> partition key range id -> highest token seen
	ridTokens map[string]map[string]Token
	// collection name path -> current rid
	pathRid map[string]string

	strict bool
	hooks  Hooks
}

// NewContainer returns an empty container.
func NewContainer(opts ...ContainerOption) *Container {
	c := &Container{
		ridTokens: make(map[string]map[string]Token),
		pathRid:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get renders the session-token header value to attach to a request against
// resourcePath. The path may address the collection itself or a document
// under it, by name or by rid. An unknown collection returns "": that is a
// cache miss, not an error: a freshly created collection simply has no local
// watermark yet and the request proceeds without a session guarantee.
func (c *Container) Get(resourcePath string) string {
	collPath := resourceid.CollectionPath(resourcePath)
	if collPath == "" {
		return ""
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var rid string
	if resourceid.IsNameBased(resourcePath) {
		rid = c.pathRid[collPath]
	} else if r, err := resourceid.CollectionRid(resourcePath); err == nil {
		rid = r
	}
	tokens := c.ridTokens[rid]
	if rid == "" || len(tokens) == 0 {
		if c.hooks.OnMiss != nil {
			c.hooks.OnMiss()
		}
		return ""
	}
	if c.hooks.OnHit != nil {
		c.hooks.OnHit()
	}
	return FormatHeader(tokens)
}

// Merge absorbs a response's session-token header for the collection
// identified by rid and, when known, its name-based path. Tokens merge
// element-wise per partition key range and never overwrite a stored token
// with a lesser one, so responses arriving out of request-completion order
// cannot roll a watermark back.
//
// When path was previously bound to a different rid the collection has been
// deleted and recreated under the same name; the old rid's tokens are purged
// first so stale watermarks are never attached to the new incarnation.
//
// An empty header carries no information and is ignored. A malformed header
// returns an error only under WithStrictHeaderParsing; the default drops the
// malformed pairs.
func (c *Container) Merge(rid, path, header string) error {
	if rid == "" || header == "" {
		return nil
	}
	var incoming map[string]Token
	if c.strict {
		parsed, err := ParseHeader(header)
		if err != nil {
			return err
		}
		incoming = parsed
	} else {
		incoming = ParseHeaderBestEffort(header)
	}
	if len(incoming) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if path != "" {
		if old, ok := c.pathRid[path]; ok && old != rid {
			delete(c.ridTokens, old)
			if c.hooks.OnEvict != nil {
				c.hooks.OnEvict()
			}
		}
		c.pathRid[path] = rid
	}

	tokens := c.ridTokens[rid]
	if tokens == nil {
		tokens = make(map[string]Token, len(incoming))
		c.ridTokens[rid] = tokens
	}
	for rangeID, token := range incoming {
		tokens[rangeID] = tokens[rangeID].Merge(token)
	}
	return nil
}

// Clear drops all state for the collection at path. It is called when the
// client observes the collection's deletion; forgetting an unknown path is a
// no-op.
func (c *Container) Clear(path string) {
	collPath := resourceid.CollectionPath(path)
	if collPath == "" {
		collPath = path
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rid, ok := c.pathRid[collPath]
	if !ok {
		return
	}
	delete(c.pathRid, collPath)
	if _, had := c.ridTokens[rid]; had {
		delete(c.ridTokens, rid)
		if c.hooks.OnEvict != nil {
			c.hooks.OnEvict()
		}
	}
}
