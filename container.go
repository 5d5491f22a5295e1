package docstore

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/docstore/docstore-go/internal/pipeline"
	"github.com/docstore/docstore-go/internal/resourceid"
)

// ContainerClient is a handle to one container. Obtain one from
// DatabaseClient.NewContainer.
type ContainerClient struct {
	client   *Client
	database *DatabaseClient
	id       string
	link     string
}

// ID returns the container id the handle addresses.
func (c *ContainerClient) ID() string { return c.id }

// Read fetches the container's properties.
func (c *ContainerClient) Read(ctx context.Context, opts *ContainerOptions) (ContainerResponse, error) {
	resp, err := c.client.do(ctx, requestSpec{
		operation:    "read_container",
		method:       http.MethodGet,
		path:         c.link,
		resourceType: resourceid.SegmentCollections,
		resourceLink: c.link,
		configure:    opts.apply,
	})
	if err != nil {
		return ContainerResponse{}, err
	}
	return newContainerResponse(resp)
}

// Delete removes the container. The client's session state for the container
// is dropped with it.
func (c *ContainerClient) Delete(ctx context.Context, opts *ContainerOptions) (ContainerResponse, error) {
	resp, err := c.client.do(ctx, requestSpec{
		operation:    "delete_container",
		method:       http.MethodDelete,
		path:         c.link,
		resourceType: resourceid.SegmentCollections,
		resourceLink: c.link,
		configure:    opts.apply,
	})
	if err != nil {
		return ContainerResponse{}, err
	}
	out := ContainerResponse{ResponseMetadata: metadataFrom(resp)}
	return out, discardBody(resp)
}

// CreateItem creates a document. item must marshal to a JSON object carrying
// an "id" field and the container's partition key path.
func (c *ContainerClient) CreateItem(ctx context.Context, partitionKey any, item any, opts *ItemOptions) (ItemResponse, error) {
	return c.writeItem(ctx, "create_item", partitionKey, item, false, opts)
}

// UpsertItem creates the document or replaces an existing one with the same
// id.
func (c *ContainerClient) UpsertItem(ctx context.Context, partitionKey any, item any, opts *ItemOptions) (ItemResponse, error) {
	return c.writeItem(ctx, "upsert_item", partitionKey, item, true, opts)
}

func (c *ContainerClient) writeItem(ctx context.Context, operation string, partitionKey, item any, upsert bool, opts *ItemOptions) (ItemResponse, error) {
	pk, err := partitionKeyHeader(partitionKey)
	if err != nil {
		return ItemResponse{}, err
	}
	resp, err := c.client.do(ctx, requestSpec{
		operation:    operation,
		method:       http.MethodPost,
		path:         c.link + "/" + resourceid.SegmentDocuments,
		resourceType: resourceid.SegmentDocuments,
		resourceLink: c.link,
		body:         item,
		configure: func(h http.Header) {
			h.Set(pipeline.HeaderPartitionKey, pk)
			if upsert {
				h.Set(pipeline.HeaderIsUpsert, "true")
			}
			opts.apply(h)
		},
	})
	if err != nil {
		return ItemResponse{}, err
	}
	return newItemResponse(resp)
}

// ReadItem fetches the document with the given id.
func (c *ContainerClient) ReadItem(ctx context.Context, partitionKey any, id string, opts *ItemOptions) (ItemResponse, error) {
	return c.itemRequest(ctx, "read_item", http.MethodGet, partitionKey, id, nil, opts)
}

// ReplaceItem replaces the document with the given id. Set opts.IfMatch to
// make the replace conditional on the document's etag.
func (c *ContainerClient) ReplaceItem(ctx context.Context, partitionKey any, id string, item any, opts *ItemOptions) (ItemResponse, error) {
	return c.itemRequest(ctx, "replace_item", http.MethodPut, partitionKey, id, item, opts)
}

// DeleteItem removes the document with the given id.
func (c *ContainerClient) DeleteItem(ctx context.Context, partitionKey any, id string, opts *ItemOptions) (ItemResponse, error) {
	return c.itemRequest(ctx, "delete_item", http.MethodDelete, partitionKey, id, nil, opts)
}

func (c *ContainerClient) itemRequest(ctx context.Context, operation, method string, partitionKey any, id string, body any, opts *ItemOptions) (ItemResponse, error) {
	if err := resourceid.ValidateID(id); err != nil {
		return ItemResponse{}, err
	}
	pk, err := partitionKeyHeader(partitionKey)
	if err != nil {
		return ItemResponse{}, err
	}
	link := resourceid.DocumentLink(c.database.id, c.id, id)
	resp, err := c.client.do(ctx, requestSpec{
		operation:    operation,
		method:       method,
		path:         link,
		resourceType: resourceid.SegmentDocuments,
		resourceLink: link,
		body:         body,
		configure: func(h http.Header) {
			h.Set(pipeline.HeaderPartitionKey, pk)
			opts.apply(h)
		},
	})
	if err != nil {
		return ItemResponse{}, err
	}
	if method == http.MethodDelete {
		out := ItemResponse{ResponseMetadata: metadataFrom(resp)}
		return out, discardBody(resp)
	}
	return newItemResponse(resp)
}

// queryRequest is the body of a query POST.
type queryRequest struct {
	Query      string           `json:"query"`
	Parameters []QueryParameter `json:"parameters,omitempty"`
}

// QueryItems runs a SQL query against the container and pages through the
// results. Parameterize user input through params rather than interpolating
// it into the query text.
func (c *ContainerClient) QueryItems(query string, params []QueryParameter, opts *QueryOptions) *Pager[QueryPage] {
	return newPager(func(ctx context.Context, continuation string) (QueryPage, string, error) {
		extra := make(http.Header)
		if err := opts.apply(extra); err != nil {
			return QueryPage{}, "", err
		}
		resp, err := c.client.do(ctx, requestSpec{
			operation:    "query_items",
			method:       http.MethodPost,
			path:         c.link + "/" + resourceid.SegmentDocuments,
			resourceType: resourceid.SegmentDocuments,
			resourceLink: c.link,
			body:         queryRequest{Query: query, Parameters: params},
			contentType:  "application/query+json",
			configure: func(h http.Header) {
				h.Set(pipeline.HeaderIsQuery, "true")
				if continuation != "" {
					h.Set(pipeline.HeaderContinuation, continuation)
				}
				for k, vs := range extra {
					for _, v := range vs {
						h.Set(k, v)
					}
				}
			},
		})
		if err != nil {
			return QueryPage{}, "", err
		}
		page := QueryPage{ResponseMetadata: metadataFrom(resp)}
		var payload struct {
			Documents []json.RawMessage `json:"Documents"`
			Count     int               `json:"_count"`
		}
		if err := decodeBody(resp, &payload); err != nil {
			return QueryPage{}, "", err
		}
		page.Items = payload.Documents
		page.Count = payload.Count
		page.ContinuationToken = resp.Header.Get(pipeline.HeaderContinuation)
		return page, page.ContinuationToken, nil
	})
}
