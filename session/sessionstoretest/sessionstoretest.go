// Package sessionstoretest provides a reusable conformance suite for
// session.Store implementations. Both the in-memory container adapter and the
// Redis-backed store run the same suite, which pins down the semantics a
// store must honor: element-wise monotonic merging regardless of arrival
// order, stale-name eviction on collection recreation, cache-miss (not error)
// behavior for unknown collections, and clearing.
package sessionstoretest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docstore/docstore-go/session"
)

// StoreFactory creates a fresh, empty Store for a test. Cleanup should be
// registered on t.
type StoreFactory func(t *testing.T) session.Store

// Run executes the complete Store conformance suite against the factory.
func Run(t *testing.T, factory StoreFactory) {
	t.Run("UnknownCollectionIsAMiss", func(t *testing.T) { testUnknownCollection(t, factory) })
	t.Run("MergeThenGetRoundTrips", func(t *testing.T) { testMergeThenGet(t, factory) })
	t.Run("OutOfOrderMergeKeepsMaximum", func(t *testing.T) { testOutOfOrder(t, factory) })
	t.Run("MergeOrderIndependence", func(t *testing.T) { testOrderIndependence(t, factory) })
	t.Run("RecreationEvictsStaleTokens", func(t *testing.T) { testRecreation(t, factory) })
	t.Run("ClearForgetsCollection", func(t *testing.T) { testClear(t, factory) })
	t.Run("EmptyHeaderIsIgnored", func(t *testing.T) { testEmptyHeader(t, factory) })
	t.Run("CollectionsAreIsolated", func(t *testing.T) { testIsolation(t, factory) })
	t.Run("ConcurrentMerges", func(t *testing.T) { testConcurrentMerges(t, factory) })
}

const (
	collPath  = "dbs/mydb/colls/mycoll"
	docPath   = "dbs/mydb/colls/mycoll/docs/doc1"
	otherPath = "dbs/mydb/colls/other"
	otherDoc  = "dbs/mydb/colls/other/docs/doc1"
)

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func mustGet(t *testing.T, s session.Store, path string) string {
	t.Helper()
	got, err := s.Get(testCtx(t), path)
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", path, err)
	}
	return got
}

func mustMerge(t *testing.T, s session.Store, rid, path, header string) {
	t.Helper()
	if err := s.Merge(testCtx(t), rid, path, header); err != nil {
		t.Fatalf("Merge(%q, %q, %q) failed: %v", rid, path, header, err)
	}
}

func testUnknownCollection(t *testing.T, factory StoreFactory) {
	s := factory(t)
	if got := mustGet(t, s, docPath); got != "" {
		t.Fatalf("Get on empty store = %q, want \"\"", got)
	}
}

func testMergeThenGet(t *testing.T, factory StoreFactory) {
	s := factory(t)
	mustMerge(t, s, "abc", collPath, "0:1#5,1:1#3#1=2")
	if got := mustGet(t, s, docPath); got != "0:1#5,1:1#3#1=2" {
		t.Fatalf("Get = %q, want %q", got, "0:1#5,1:1#3#1=2")
	}
}

func testOutOfOrder(t *testing.T, factory StoreFactory) {
	s := factory(t)
	mustMerge(t, s, "abc", collPath, "0:1#5")
	mustMerge(t, s, "abc", collPath, "0:1#3")
	if got := mustGet(t, s, docPath); got != "0:1#5" {
		t.Fatalf("token after out-of-order merge = %q, want %q", got, "0:1#5")
	}
}

func testOrderIndependence(t *testing.T, factory StoreFactory) {
	headers := []string{"0:1#5,1:1#2", "0:1#3,1:1#9", "1:1#4#1=7"}
	want := ""
	permute(headers, func(perm []string) {
		s := factory(t)
		for _, h := range perm {
			mustMerge(t, s, "abc", collPath, h)
		}
		got := mustGet(t, s, docPath)
		if want == "" {
			want = got
		}
		if got != want {
			t.Fatalf("permutation %v produced %q, want %q", perm, got, want)
		}
	})
	if want != "0:1#5,1:1#9#1=7" {
		t.Fatalf("converged token = %q, want %q", want, "0:1#5,1:1#9#1=7")
	}
}

func testRecreation(t *testing.T, factory StoreFactory) {
	s := factory(t)
	mustMerge(t, s, "abc", collPath, "0:1#5")
	mustMerge(t, s, "xyz", collPath, "0:1#1")
	if got := mustGet(t, s, docPath); got != "0:1#1" {
		t.Fatalf("token after recreation = %q, want %q", got, "0:1#1")
	}
}

func testClear(t *testing.T, factory StoreFactory) {
	s := factory(t)
	mustMerge(t, s, "abc", collPath, "0:1#5")
	if err := s.Clear(testCtx(t), collPath); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if got := mustGet(t, s, docPath); got != "" {
		t.Fatalf("Get after Clear = %q, want \"\"", got)
	}
	// Clearing an unknown collection must not fail.
	if err := s.Clear(testCtx(t), otherPath); err != nil {
		t.Fatalf("Clear of unknown collection failed: %v", err)
	}
}

func testEmptyHeader(t *testing.T, factory StoreFactory) {
	s := factory(t)
	mustMerge(t, s, "abc", collPath, "")
	if got := mustGet(t, s, docPath); got != "" {
		t.Fatalf("Get after empty-header merge = %q, want \"\"", got)
	}
}

func testIsolation(t *testing.T, factory StoreFactory) {
	s := factory(t)
	mustMerge(t, s, "abc", collPath, "0:1#5")
	mustMerge(t, s, "def", otherPath, "0:2#9")
	if got := mustGet(t, s, docPath); got != "0:1#5" {
		t.Fatalf("first collection token = %q, want %q", got, "0:1#5")
	}
	if got := mustGet(t, s, otherDoc); got != "0:2#9" {
		t.Fatalf("second collection token = %q, want %q", got, "0:2#9")
	}
}

func testConcurrentMerges(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := testCtx(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for lsn := 1; lsn <= 25; lsn++ {
				header := fmt.Sprintf("%d:1#%d", worker%2, lsn)
				if err := s.Merge(ctx, "abc", collPath, header); err != nil {
					errs <- err
					return
				}
			}
		}(worker)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Merge failed: %v", err)
	}

	if got := mustGet(t, s, docPath); got != "0:1#25,1:1#25" {
		t.Fatalf("converged token = %q, want %q", got, "0:1#25,1:1#25")
	}
}

func permute(items []string, fn func([]string)) {
	var rec func(k int)
	rec = func(k int) {
		if k == len(items) {
			perm := make([]string, len(items))
			copy(perm, items)
			fn(perm)
			return
		}
		for i := k; i < len(items); i++ {
			items[k], items[i] = items[i], items[k]
			rec(k + 1)
			items[k], items[i] = items[i], items[k]
		}
	}
	rec(0)
}
