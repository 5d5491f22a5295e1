package docstore

import (
	"context"
	"net/http"
	"strconv"

	"github.com/docstore/docstore-go/internal/pipeline"
	"github.com/docstore/docstore-go/internal/resourceid"
)

// DatabaseClient is a handle to one database. Obtain one from
// Client.NewDatabase.
type DatabaseClient struct {
	client *Client
	id     string
	link   string
}

// ID returns the database id the handle addresses.
func (d *DatabaseClient) ID() string { return d.id }

// Read fetches the database's properties.
func (d *DatabaseClient) Read(ctx context.Context, opts *DatabaseOptions) (DatabaseResponse, error) {
	resp, err := d.client.do(ctx, requestSpec{
		operation:    "read_database",
		method:       http.MethodGet,
		path:         d.link,
		resourceType: resourceid.SegmentDatabases,
		resourceLink: d.link,
		configure:    opts.apply,
	})
	if err != nil {
		return DatabaseResponse{}, err
	}
	return newDatabaseResponse(resp)
}

// Delete removes the database and everything under it.
func (d *DatabaseClient) Delete(ctx context.Context, opts *DatabaseOptions) (DatabaseResponse, error) {
	resp, err := d.client.do(ctx, requestSpec{
		operation:    "delete_database",
		method:       http.MethodDelete,
		path:         d.link,
		resourceType: resourceid.SegmentDatabases,
		resourceLink: d.link,
		configure:    opts.apply,
	})
	if err != nil {
		return DatabaseResponse{}, err
	}
	out := DatabaseResponse{ResponseMetadata: metadataFrom(resp)}
	return out, discardBody(resp)
}

// NewContainer returns a handle to the container with the given id. No request
// is issued.
func (d *DatabaseClient) NewContainer(id string) (*ContainerClient, error) {
	if err := resourceid.ValidateID(id); err != nil {
		return nil, err
	}
	return &ContainerClient{
		client:   d.client,
		database: d,
		id:       id,
		link:     resourceid.CollectionLink(d.id, id),
	}, nil
}

// CreateContainer creates a container from the given properties. The
// properties must carry at least an ID and a partition key definition.
func (d *DatabaseClient) CreateContainer(ctx context.Context, props ContainerProperties, opts *ContainerOptions) (ContainerResponse, error) {
	if err := resourceid.ValidateID(props.ID); err != nil {
		return ContainerResponse{}, err
	}
	resp, err := d.client.do(ctx, requestSpec{
		operation:    "create_container",
		method:       http.MethodPost,
		path:         d.link + "/" + resourceid.SegmentCollections,
		resourceType: resourceid.SegmentCollections,
		resourceLink: d.link,
		body:         props,
		configure:    opts.apply,
	})
	if err != nil {
		return ContainerResponse{}, err
	}
	return newContainerResponse(resp)
}

// ListContainers pages through the database's containers.
func (d *DatabaseClient) ListContainers(opts *ListContainersOptions) *Pager[ContainersPage] {
	return newPager(func(ctx context.Context, continuation string) (ContainersPage, string, error) {
		resp, err := d.client.do(ctx, requestSpec{
			operation:    "list_containers",
			method:       http.MethodGet,
			path:         d.link + "/" + resourceid.SegmentCollections,
			resourceType: resourceid.SegmentCollections,
			resourceLink: d.link,
			configure: func(h http.Header) {
				if opts != nil && opts.MaxItemCount > 0 {
					h.Set(pipeline.HeaderMaxItemCount, strconv.Itoa(opts.MaxItemCount))
				}
				if continuation != "" {
					h.Set(pipeline.HeaderContinuation, continuation)
				}
			},
		})
		if err != nil {
			return ContainersPage{}, "", err
		}
		page := ContainersPage{ResponseMetadata: metadataFrom(resp)}
		var payload struct {
			Collections []ContainerProperties `json:"DocumentCollections"`
			Count       int                   `json:"_count"`
		}
		if err := decodeBody(resp, &payload); err != nil {
			return ContainersPage{}, "", err
		}
		page.Containers = payload.Collections
		page.Count = payload.Count
		page.ContinuationToken = resp.Header.Get(pipeline.HeaderContinuation)
		return page, page.ContinuationToken, nil
	})
}
