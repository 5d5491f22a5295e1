package docstore

import "context"

// Pager iterates the pages of a list or query operation, following the
// service's continuation tokens.
//
//	pager := coll.QueryItems("SELECT * FROM c", nil, nil)
//	for pager.More() {
//		page, err := pager.NextPage(ctx)
//		if err != nil {
//			return err
//		}
//		for _, item := range page.Items {
//			// ...
//		}
//	}
type Pager[T any] struct {
	fetch func(ctx context.Context, continuation string) (T, string, error)

	continuation string
	started      bool
	done         bool
}

func newPager[T any](fetch func(ctx context.Context, continuation string) (T, string, error)) *Pager[T] {
	return &Pager[T]{fetch: fetch}
}

// More reports whether another page may be available. It is true before the
// first fetch even when the result turns out to be empty.
func (p *Pager[T]) More() bool {
	return !p.started || !p.done
}

// NextPage fetches the next page. Calling it after the last page returns
// ErrNoMorePages. A failed fetch does not advance the pager, so the same page
// can be retried.
func (p *Pager[T]) NextPage(ctx context.Context) (T, error) {
	var zero T
	if !p.More() {
		return zero, ErrNoMorePages
	}
	page, continuation, err := p.fetch(ctx, p.continuation)
	if err != nil {
		return zero, err
	}
	p.started = true
	p.continuation = continuation
	p.done = continuation == ""
	return page, nil
}
