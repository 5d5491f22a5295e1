package pipeline

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/docstore/docstore-go/internal/logctx"
)

// APIVersion is the REST contract version sent on every request.
const APIVersion = "2018-12-31"

// Wire header names.
const (
	HeaderActivityID          = "x-ms-activity-id"
	HeaderAltContentPath      = "x-ms-alt-content-path"
	HeaderConsistencyLevel    = "x-ms-consistency-level"
	HeaderContinuation        = "x-ms-continuation"
	HeaderIsQuery             = "x-ms-documentdb-isquery"
	HeaderIsUpsert            = "x-ms-documentdb-is-upsert"
	HeaderItemCount           = "x-ms-item-count"
	HeaderMaxItemCount        = "x-ms-max-item-count"
	HeaderPartitionKey        = "x-ms-documentdb-partitionkey"
	HeaderQueryCrossPartition = "x-ms-documentdb-query-enablecrosspartition"
	HeaderRequestCharge       = "x-ms-request-charge"
	HeaderRetryAfterMS        = "x-ms-retry-after-ms"
	HeaderSessionToken        = "x-ms-session-token"
	HeaderVersion             = "x-ms-version"
)

// HeadersPolicy stamps the identifying headers every request carries: the
// API version, a fresh activity id for request correlation (unless the caller
// supplied one), the client-wide consistency level (unless the request
// overrides it) and the client's user agent.
type HeadersPolicy struct {
	UserAgent string
	// ConsistencyLevel is the client-wide level sent on every request that
	// does not carry its own. Empty leaves the header to the account default.
	ConsistencyLevel string
}

func (p HeadersPolicy) Do(req *Request, next Next) (*http.Response, error) {
	if req.Header.Get(HeaderActivityID) == "" {
		req.Header.Set(HeaderActivityID, uuid.NewString())
	}
	req.Header.Set(HeaderVersion, APIVersion)
	if p.ConsistencyLevel != "" && req.Header.Get(HeaderConsistencyLevel) == "" {
		req.Header.Set(HeaderConsistencyLevel, p.ConsistencyLevel)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if p.UserAgent != "" {
		req.Header.Set("User-Agent", p.UserAgent)
	}
	return next(req)
}

// LoggingPolicy emits one record per client operation and threads the
// request's identity through the context for logctx-aware handlers.
type LoggingPolicy struct {
	Logger *slog.Logger
}

func (p LoggingPolicy) Do(req *Request, next Next) (*http.Response, error) {
	ctx := logctx.WithRequestData(req.Context(), &logctx.RequestData{
		ActivityID:   req.Header.Get(HeaderActivityID),
		Operation:    req.Operation,
		Method:       req.Method,
		ResourceLink: req.ResourceLink,
	})
	req.Request = req.Request.WithContext(ctx)

	start := time.Now()
	resp, err := next(req)
	elapsed := time.Since(start)

	if err != nil {
		p.Logger.LogAttrs(ctx, slog.LevelWarn, "request failed",
			slog.String("operation", req.Operation),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return resp, err
	}
	p.Logger.LogAttrs(ctx, slog.LevelDebug, "request completed",
		slog.String("operation", req.Operation),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", elapsed),
	)
	return resp, nil
}
