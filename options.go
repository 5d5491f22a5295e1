package docstore

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/docstore/docstore-go/internal/pipeline"
	"github.com/docstore/docstore-go/session"
)

// ConsistencyLevel selects the consistency guarantee requested from the
// service.
type ConsistencyLevel string

const (
	ConsistencyStrong           ConsistencyLevel = "Strong"
	ConsistencyBoundedStaleness ConsistencyLevel = "BoundedStaleness"
	ConsistencySession          ConsistencyLevel = "Session"
	ConsistencyConsistentPrefix ConsistencyLevel = "ConsistentPrefix"
	ConsistencyEventual         ConsistencyLevel = "Eventual"
)

// RetryOptions bounds the client's retry behavior.
type RetryOptions = pipeline.RetryOptions

// ClientOptions configures a Client. The zero value is usable.
type ClientOptions struct {
	// HTTPClient issues the requests. Default http.DefaultClient.
	HTTPClient *http.Client
	// Logger receives the client's structured logs. Default slog.Default().
	Logger *slog.Logger
	// ConsistencyLevel is the client-wide default. Default Session.
	ConsistencyLevel ConsistencyLevel
	// SessionStore holds session-consistency state. Default: an in-memory
	// store owned by this client. Supply a redisstore.Store to share state
	// across processes; a supplied store is not closed by Client.Close.
	SessionStore session.Store
	// Retry bounds the retry policy.
	Retry RetryOptions
	// MetricsRegisterer, when set, registers the client's Prometheus
	// collectors with it.
	MetricsRegisterer prometheus.Registerer
	// ApplicationName is appended to the User-Agent.
	ApplicationName string
}

// DatabaseOptions carries per-request options for database operations.
type DatabaseOptions struct {
	// ActivityID overrides the generated request correlation id.
	ActivityID string
}

func (o *DatabaseOptions) apply(h http.Header) {
	if o == nil {
		return
	}
	if o.ActivityID != "" {
		h.Set(pipeline.HeaderActivityID, o.ActivityID)
	}
}

// ContainerOptions carries per-request options for container operations.
type ContainerOptions struct {
	ActivityID string
}

func (o *ContainerOptions) apply(h http.Header) {
	if o == nil {
		return
	}
	if o.ActivityID != "" {
		h.Set(pipeline.HeaderActivityID, o.ActivityID)
	}
}

// ItemOptions carries per-request options for item operations.
type ItemOptions struct {
	// SessionToken overrides the token the client would attach from its
	// session store, e.g. a token captured from another client's response.
	SessionToken string
	// ConsistencyLevel overrides the client-wide level for this request.
	// Session token attachment follows the effective level: raising a request
	// to Session attaches the stored token, lowering it skips the attach.
	ConsistencyLevel ConsistencyLevel
	// IfMatch makes the operation conditional on the item's current etag.
	IfMatch string
	// IfNoneMatch makes a read conditional; an unchanged item yields a 304.
	IfNoneMatch string
	// ActivityID overrides the generated request correlation id.
	ActivityID string
}

func (o *ItemOptions) apply(h http.Header) {
	if o == nil {
		return
	}
	if o.SessionToken != "" {
		h.Set(pipeline.HeaderSessionToken, o.SessionToken)
	}
	if o.ConsistencyLevel != "" {
		h.Set(pipeline.HeaderConsistencyLevel, string(o.ConsistencyLevel))
	}
	if o.IfMatch != "" {
		h.Set("If-Match", o.IfMatch)
	}
	if o.IfNoneMatch != "" {
		h.Set("If-None-Match", o.IfNoneMatch)
	}
	if o.ActivityID != "" {
		h.Set(pipeline.HeaderActivityID, o.ActivityID)
	}
}

// QueryParameter is a named parameter of a parameterized query.
type QueryParameter struct {
	// Name includes the @ prefix, e.g. "@category".
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// QueryOptions carries per-request options for queries and list operations.
type QueryOptions struct {
	// MaxItemCount caps the number of items per page. Zero lets the service
	// choose.
	MaxItemCount int
	// PartitionKey scopes the query to a single partition.
	PartitionKey any
	// EnableCrossPartition allows the service to fan the query out across
	// partitions when no partition key is given.
	EnableCrossPartition bool
	// SessionToken and ConsistencyLevel behave as in ItemOptions.
	SessionToken     string
	ConsistencyLevel ConsistencyLevel
}

func (o *QueryOptions) apply(h http.Header) error {
	if o == nil {
		return nil
	}
	if o.MaxItemCount > 0 {
		h.Set(pipeline.HeaderMaxItemCount, strconv.Itoa(o.MaxItemCount))
	}
	if o.EnableCrossPartition {
		h.Set(pipeline.HeaderQueryCrossPartition, "true")
	}
	if o.PartitionKey != nil {
		v, err := partitionKeyHeader(o.PartitionKey)
		if err != nil {
			return err
		}
		h.Set(pipeline.HeaderPartitionKey, v)
	}
	if o.SessionToken != "" {
		h.Set(pipeline.HeaderSessionToken, o.SessionToken)
	}
	if o.ConsistencyLevel != "" {
		h.Set(pipeline.HeaderConsistencyLevel, string(o.ConsistencyLevel))
	}
	return nil
}

// ListContainersOptions carries per-request options for container listing.
type ListContainersOptions struct {
	// MaxItemCount caps the number of containers per page.
	MaxItemCount int
}
