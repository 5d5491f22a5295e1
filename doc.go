// Package docstore is a client for document database services speaking the
// Cosmos DB SQL API wire contract. It exposes a small, typed surface of
// Client, DatabaseClient and ContainerClient handles with explicit option
// structs over the service's REST endpoints, and takes care of the ambient
// concerns a correct client needs: request signing, retry with backoff,
// structured logging, optional Prometheus metrics and session consistency.
//
// # Session consistency
//
// With ClientOptions.ConsistencyLevel left at its Session default, the client
// tracks the highest write watermark it has observed per collection partition
// and attaches it to subsequent document requests, so reads observe at least
// the caller's own writes even against replicas that have not yet caught up.
// The tracking state is owned by the Client instance (see the session
// package); pass ClientOptions.SessionStore to share it between processes
// through Redis (see session/redisstore).
//
// # Handles
//
// Handles are cheap and do not perform I/O at construction:
//
//	client, err := docstore.NewClient(endpoint, cred, nil)
//	// ...
//	db, err := client.NewDatabase("mydb")
//	coll, err := db.NewContainer("mycoll")
//	res, err := coll.ReadItem(ctx, "pk-value", "doc1", nil)
//
// Operations return typed response wrappers carrying the service metadata
// callers tend to need (activity id, request charge, etag, session token)
// next to the payload. List and query operations return a Pager.
package docstore

// Version is reported in the User-Agent of every request.
const Version = "0.4.0"
