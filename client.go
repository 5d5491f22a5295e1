package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/docstore/docstore-go/credential"
	"github.com/docstore/docstore-go/internal/pipeline"
	"github.com/docstore/docstore-go/internal/resourceid"
	"github.com/docstore/docstore-go/session"
)

// Client is the account-level handle. It is safe for concurrent use; one
// client per account per process is the intended shape, since the session
// consistency state lives on the client.
type Client struct {
	endpoint    *url.URL
	pl          pipeline.Pipeline
	store       session.Store
	ownsStore   bool
	logger      *slog.Logger
	consistency ConsistencyLevel
	metrics     *clientMetrics
}

// NewClient builds a client for the account at endpoint, authorizing requests
// with cred. opts may be nil.
func NewClient(endpoint string, cred credential.Credential, opts *ClientOptions) (*Client, error) {
	if cred == nil {
		return nil, fmt.Errorf("docstore: credential is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("docstore: invalid endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("docstore: endpoint %q must be an http(s) URL", endpoint)
	}
	if opts == nil {
		opts = &ClientOptions{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	consistency := opts.ConsistencyLevel
	if consistency == "" {
		consistency = ConsistencySession
	}

	metrics, err := newClientMetrics(opts.MetricsRegisterer)
	if err != nil {
		return nil, err
	}

	store := opts.SessionStore
	ownsStore := false
	if store == nil {
		store = session.NewMemoryStore(session.WithHooks(metrics.sessionHooks()))
		ownsStore = true
	}

	userAgent := "docstore-go/" + Version
	if opts.ApplicationName != "" {
		userAgent = opts.ApplicationName + " " + userAgent
	}

	policies := []pipeline.Policy{
		pipeline.HeadersPolicy{
			UserAgent:        userAgent,
			ConsistencyLevel: string(consistency),
		},
	}
	if p := metrics.policy(); p != nil {
		policies = append(policies, p)
	}
	policies = append(policies,
		pipeline.LoggingPolicy{Logger: logger},
		pipeline.NewRetryPolicy(opts.Retry, logger),
		&pipeline.SessionPolicy{
			Store:        store,
			Logger:       logger,
			AttachTokens: consistency == ConsistencySession,
		},
		pipeline.AuthPolicy{Cred: cred},
	)

	var transport pipeline.Transport = http.DefaultClient
	if opts.HTTPClient != nil {
		transport = opts.HTTPClient
	}

	return &Client{
		endpoint:    u,
		pl:          pipeline.New(transport, policies...),
		store:       store,
		ownsStore:   ownsStore,
		logger:      logger,
		consistency: consistency,
		metrics:     metrics,
	}, nil
}

// Endpoint returns the account endpoint the client talks to.
func (c *Client) Endpoint() string { return c.endpoint.String() }

// Close releases resources the client owns. A caller-supplied SessionStore is
// left open.
func (c *Client) Close() error {
	if c.ownsStore {
		return c.store.Close()
	}
	return nil
}

// NewDatabase returns a handle to the database with the given id. No request
// is issued.
func (c *Client) NewDatabase(id string) (*DatabaseClient, error) {
	if err := resourceid.ValidateID(id); err != nil {
		return nil, err
	}
	return &DatabaseClient{client: c, id: id, link: resourceid.DatabasePath(id)}, nil
}

// CreateDatabase creates a database with the given id.
func (c *Client) CreateDatabase(ctx context.Context, id string, opts *DatabaseOptions) (DatabaseResponse, error) {
	if err := resourceid.ValidateID(id); err != nil {
		return DatabaseResponse{}, err
	}
	req := requestSpec{
		operation:    "create_database",
		method:       http.MethodPost,
		path:         resourceid.SegmentDatabases,
		resourceType: resourceid.SegmentDatabases,
		resourceLink: "",
		body:         DatabaseProperties{ID: id},
		configure:    opts.apply,
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return DatabaseResponse{}, err
	}
	return newDatabaseResponse(resp)
}

// requestSpec describes one REST call.
type requestSpec struct {
	operation    string
	method       string
	path         string // URL path relative to the endpoint
	resourceType string
	resourceLink string // link covered by the signature and session lookup
	body         any
	contentType  string
	configure    func(h http.Header)
}

// do runs one request through the pipeline and maps non-2xx responses to
// *Error. The caller owns the returned response body.
func (c *Client) do(ctx context.Context, spec requestSpec) (*http.Response, error) {
	u := c.endpoint.JoinPath(strings.Split(spec.path, "/")...)

	var reader io.Reader
	if spec.body != nil {
		data, err := json.Marshal(spec.body)
		if err != nil {
			return nil, fmt.Errorf("docstore: marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	httpReq, err := http.NewRequestWithContext(ctx, spec.method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("docstore: build request: %w", err)
	}
	if reader != nil {
		contentType := spec.contentType
		if contentType == "" {
			contentType = "application/json"
		}
		httpReq.Header.Set("Content-Type", contentType)
	}
	if spec.configure != nil {
		spec.configure(httpReq.Header)
	}

	resp, err := c.pl.Do(&pipeline.Request{
		Request:      httpReq,
		Operation:    spec.operation,
		ResourceType: spec.resourceType,
		ResourceLink: spec.resourceLink,
	})
	if err != nil {
		return nil, fmt.Errorf("docstore: %s: %w", spec.operation, err)
	}
	if err := pipeline.ValidateJSONResponse(resp); err != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("docstore: %s: %w", spec.operation, err)
	}
	if resp.StatusCode >= 400 {
		return nil, newServiceError(resp)
	}
	return resp, nil
}

func partitionKeyHeader(pk any) (string, error) {
	data, err := json.Marshal([]any{pk})
	if err != nil {
		return "", fmt.Errorf("docstore: marshal partition key: %w", err)
	}
	return string(data), nil
}

func itemCount(resp *http.Response) int {
	if v := resp.Header.Get(pipeline.HeaderItemCount); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}
