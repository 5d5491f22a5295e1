package docstore

import (
	"context"
	"errors"
	"testing"
)

func TestPagerWalksAllPages(t *testing.T) {
	pages := []struct {
		items        []string
		continuation string
	}{
		{[]string{"a", "b"}, "c1"},
		{[]string{"c"}, "c2"},
		{[]string{}, ""},
	}
	var fetches int
	pager := newPager(func(ctx context.Context, continuation string) ([]string, string, error) {
		want := ""
		if fetches > 0 {
			want = pages[fetches-1].continuation
		}
		if continuation != want {
			t.Errorf("fetch %d got continuation %q, want %q", fetches, continuation, want)
		}
		page := pages[fetches]
		fetches++
		return page.items, page.continuation, nil
	})

	var got []string
	for pager.More() {
		items, err := pager.NextPage(context.Background())
		if err != nil {
			t.Fatalf("NextPage: %v", err)
		}
		got = append(got, items...)
	}
	if fetches != 3 {
		t.Errorf("fetches = %d, want 3", fetches)
	}
	if len(got) != 3 {
		t.Errorf("items = %v, want 3 items", got)
	}
	if _, err := pager.NextPage(context.Background()); !errors.Is(err, ErrNoMorePages) {
		t.Errorf("NextPage after exhaustion = %v, want ErrNoMorePages", err)
	}
}

func TestPagerFailedFetchDoesNotAdvance(t *testing.T) {
	fail := true
	var fetches int
	pager := newPager(func(ctx context.Context, continuation string) (int, string, error) {
		fetches++
		if continuation != "" {
			t.Errorf("continuation = %q, want empty on every attempt", continuation)
		}
		if fail {
			return 0, "", errors.New("transient")
		}
		return 42, "", nil
	})

	if _, err := pager.NextPage(context.Background()); err == nil {
		t.Fatal("expected the first fetch to fail")
	}
	if !pager.More() {
		t.Fatal("More() should stay true after a failed fetch")
	}

	fail = false
	page, err := pager.NextPage(context.Background())
	if err != nil {
		t.Fatalf("NextPage retry: %v", err)
	}
	if page != 42 {
		t.Errorf("page = %d, want 42", page)
	}
	if fetches != 2 {
		t.Errorf("fetches = %d, want 2", fetches)
	}
	if pager.More() {
		t.Error("More() should be false after the final page")
	}
}

func TestPagerEmptyResultIsOnePage(t *testing.T) {
	pager := newPager(func(ctx context.Context, continuation string) ([]string, string, error) {
		return nil, "", nil
	})
	if !pager.More() {
		t.Fatal("More() should be true before the first fetch")
	}
	items, err := pager.NextPage(context.Background())
	if err != nil {
		t.Fatalf("NextPage: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %v, want none", items)
	}
	if pager.More() {
		t.Error("More() should be false after an empty final page")
	}
}
