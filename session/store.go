package session

import "context"

// Store is the contract the request pipeline consumes. It mirrors the
// Container's operations behind a context-aware surface so that session state
// can also live in a shared backend when several client processes must honor
// each other's writes; see the redisstore subpackage.
//
// Semantics are identical across implementations and are pinned down by the
// sessionstoretest conformance suite:
//
//   - Get resolves resourcePath to its owning collection and renders that
//     collection's tokens in wire form; unknown collections yield "", never
//     an error.
//   - Merge joins the header's tokens into the collection's state
//     element-wise and detects recreation via the path-to-rid binding.
//   - Clear forgets a collection.
type Store interface {
	Get(ctx context.Context, resourcePath string) (string, error)
	Merge(ctx context.Context, rid, path, header string) error
	Clear(ctx context.Context, path string) error
	Close() error
}

// MemoryStore adapts a Container to the Store interface. It is the default
// store of a client: state scoped to the owning process, all operations
// purely in-memory and context-free.
type MemoryStore struct {
	c *Container
}

// NewMemoryStore returns a Store backed by a fresh Container.
func NewMemoryStore(opts ...ContainerOption) *MemoryStore {
	return &MemoryStore{c: NewContainer(opts...)}
}

// Container exposes the underlying tracker.
func (s *MemoryStore) Container() *Container { return s.c }

func (s *MemoryStore) Get(_ context.Context, resourcePath string) (string, error) {
	return s.c.Get(resourcePath), nil
}

func (s *MemoryStore) Merge(_ context.Context, rid, path, header string) error {
	return s.c.Merge(rid, path, header)
}

func (s *MemoryStore) Clear(_ context.Context, path string) error {
	s.c.Clear(path)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
