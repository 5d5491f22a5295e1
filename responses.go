package docstore

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/docstore/docstore-go/internal/pipeline"
)

// ResponseMetadata carries the service headers common to every operation.
type ResponseMetadata struct {
	StatusCode int
	// ActivityID correlates the request with server-side diagnostics.
	ActivityID string
	// ETag of the affected resource, when the operation touched one.
	ETag string
	// SessionToken echoed by the service. Normally the client absorbs it
	// automatically; it is exposed for callers handing tokens across client
	// boundaries.
	SessionToken string
	// RequestCharge is the operation's cost in request units.
	RequestCharge float64
}

func metadataFrom(resp *http.Response) ResponseMetadata {
	md := ResponseMetadata{
		StatusCode:   resp.StatusCode,
		ActivityID:   resp.Header.Get(pipeline.HeaderActivityID),
		ETag:         resp.Header.Get("ETag"),
		SessionToken: resp.Header.Get(pipeline.HeaderSessionToken),
	}
	if v := resp.Header.Get(pipeline.HeaderRequestCharge); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			md.RequestCharge = f
		}
	}
	return md
}

// DatabaseProperties describes a database resource.
type DatabaseProperties struct {
	ID         string `json:"id"`
	ResourceID string `json:"_rid,omitempty"`
	SelfLink   string `json:"_self,omitempty"`
	ETag       string `json:"_etag,omitempty"`
}

// PartitionKeyDefinition declares the partition key of a container.
type PartitionKeyDefinition struct {
	// Paths holds the key's document paths, e.g. "/category". The service
	// currently accepts exactly one.
	Paths []string `json:"paths"`
	Kind  string   `json:"kind,omitempty"`
}

// ContainerProperties describes a container resource.
type ContainerProperties struct {
	ID           string                 `json:"id"`
	PartitionKey PartitionKeyDefinition `json:"partitionKey,omitempty"`
	ResourceID   string                 `json:"_rid,omitempty"`
	SelfLink     string                 `json:"_self,omitempty"`
	ETag         string                 `json:"_etag,omitempty"`
}

// DatabaseResponse is the result of a database operation.
type DatabaseResponse struct {
	ResponseMetadata
	Properties DatabaseProperties
}

// ContainerResponse is the result of a container operation.
type ContainerResponse struct {
	ResponseMetadata
	Properties ContainerProperties
}

// ItemResponse is the result of an item operation. Value holds the raw JSON
// document; unmarshal it into the caller's type. Delete responses have a nil
// Value.
type ItemResponse struct {
	ResponseMetadata
	Value json.RawMessage
}

// QueryPage is one page of query results. Items holds the raw JSON documents
// in service order.
type QueryPage struct {
	ResponseMetadata
	Items []json.RawMessage
	// Count is the item count reported by the service for this page.
	Count int
	// ContinuationToken resumes the query after this page. Empty on the last
	// page. The Pager follows it automatically; it is exposed for callers
	// resuming a query in another process.
	ContinuationToken string
}

// ContainersPage is one page of a container listing.
type ContainersPage struct {
	ResponseMetadata
	Containers        []ContainerProperties
	Count             int
	ContinuationToken string
}

func newDatabaseResponse(resp *http.Response) (DatabaseResponse, error) {
	out := DatabaseResponse{ResponseMetadata: metadataFrom(resp)}
	if err := decodeBody(resp, &out.Properties); err != nil {
		return DatabaseResponse{}, err
	}
	return out, nil
}

func newContainerResponse(resp *http.Response) (ContainerResponse, error) {
	out := ContainerResponse{ResponseMetadata: metadataFrom(resp)}
	if err := decodeBody(resp, &out.Properties); err != nil {
		return ContainerResponse{}, err
	}
	return out, nil
}

func newItemResponse(resp *http.Response) (ItemResponse, error) {
	out := ItemResponse{ResponseMetadata: metadataFrom(resp)}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return ItemResponse{}, fmt.Errorf("docstore: read response body: %w", err)
	}
	if len(data) > 0 {
		out.Value = json.RawMessage(data)
	}
	return out, nil
}

func discardBody(resp *http.Response) error {
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// decodeBody drains and closes the response body. A 204 leaves v untouched.
func decodeBody(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("docstore: decode response body: %w", err)
	}
	return nil
}
