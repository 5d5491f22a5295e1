package docstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/docstore/docstore-go/credential"
)

const (
	testDatabaseRid   = "AQs3AA=="
	testCollectionRid = "YWJjZGVmZ2g="
	testAltPath       = "dbs/mydb/colls/mycoll"
)

func testCredential(t *testing.T) credential.Credential {
	t.Helper()
	mk, err := credential.NewMasterKey(base64.StdEncoding.EncodeToString([]byte("test-master-key")))
	if err != nil {
		t.Fatalf("NewMasterKey: %v", err)
	}
	return mk
}

func newTestClient(t *testing.T, handler http.Handler, opts *ClientOptions) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	if opts == nil {
		opts = &ClientOptions{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	client, err := NewClient(srv.URL, testCredential(t), opts)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// writeDoc renders a document response carrying the rid-based _self link the
// session layer keys its state on.
func writeDoc(w http.ResponseWriter, status int, id string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"id":%q,"_self":"dbs/%s/colls/%s/docs/%s/"}`, id, testDatabaseRid, testCollectionRid, id)
}

func testContainer(t *testing.T, client *Client) *ContainerClient {
	t.Helper()
	db, err := client.NewDatabase("mydb")
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	coll, err := db.NewContainer("mycoll")
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	return coll
}

func TestCreateItemThenReadAttachesSessionToken(t *testing.T) {
	var readToken string

	mux := http.NewServeMux()
	mux.HandleFunc("POST /dbs/mydb/colls/mycoll/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-ms-session-token", "0:1#5")
		w.Header().Set("x-ms-alt-content-path", testAltPath)
		writeDoc(w, http.StatusCreated, "doc1")
	})
	mux.HandleFunc("GET /dbs/mydb/colls/mycoll/docs/doc1", func(w http.ResponseWriter, r *http.Request) {
		readToken = r.Header.Get("x-ms-session-token")
		writeDoc(w, http.StatusOK, "doc1")
	})

	client := newTestClient(t, mux, nil)
	coll := testContainer(t, client)

	created, err := coll.CreateItem(context.Background(), "pk1", map[string]string{"id": "doc1"}, nil)
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if created.SessionToken != "0:1#5" {
		t.Errorf("create response session token = %q, want %q", created.SessionToken, "0:1#5")
	}

	read, err := coll.ReadItem(context.Background(), "pk1", "doc1", nil)
	if err != nil {
		t.Fatalf("ReadItem: %v", err)
	}
	if readToken != "0:1#5" {
		t.Errorf("read request session token = %q, want %q", readToken, "0:1#5")
	}
	var doc struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(read.Value, &doc); err != nil {
		t.Fatalf("unmarshal read value: %v", err)
	}
	if doc.ID != "doc1" {
		t.Errorf("read doc id = %q, want doc1", doc.ID)
	}
}

func TestReadItemNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /dbs/mydb/colls/mycoll/docs/missing", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("x-ms-activity-id", "act-1")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"code":"NotFound","message":"Resource Not Found"}`)
	})

	client := newTestClient(t, mux, nil)
	coll := testContainer(t, client)

	_, err := coll.ReadItem(context.Background(), "pk1", "missing", nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !IsNotFound(err) {
		t.Fatalf("IsNotFound(%v) = false", err)
	}
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("error %v is not *Error", err)
	}
	if se.Code != "NotFound" || se.ActivityID != "act-1" {
		t.Errorf("error = %+v, want code NotFound and activity act-1", se)
	}
	if IsConflict(err) {
		t.Error("IsConflict should be false for a 404")
	}
}

func TestQueryItemsPagination(t *testing.T) {
	var calls int

	mux := http.NewServeMux()
	mux.HandleFunc("POST /dbs/mydb/colls/mycoll/docs", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if got := r.Header.Get("x-ms-documentdb-isquery"); got != "true" {
			t.Errorf("isquery header = %q, want true", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/query+json" {
			t.Errorf("content type = %q, want application/query+json", got)
		}
		var body struct {
			Query      string           `json:"query"`
			Parameters []QueryParameter `json:"parameters"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode query body: %v", err)
		}
		if body.Query != "SELECT * FROM c WHERE c.cat = @cat" {
			t.Errorf("query text = %q", body.Query)
		}

		w.Header().Set("Content-Type", "application/json")
		switch calls {
		case 1:
			if got := r.Header.Get("x-ms-continuation"); got != "" {
				t.Errorf("first page sent continuation %q", got)
			}
			w.Header().Set("x-ms-continuation", "page-2")
			w.Header().Set("x-ms-item-count", "2")
			fmt.Fprint(w, `{"Documents":[{"id":"a"},{"id":"b"}],"_count":2}`)
		case 2:
			if got := r.Header.Get("x-ms-continuation"); got != "page-2" {
				t.Errorf("second page continuation = %q, want page-2", got)
			}
			fmt.Fprint(w, `{"Documents":[{"id":"c"}],"_count":1}`)
		default:
			t.Errorf("unexpected query call %d", calls)
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	client := newTestClient(t, mux, nil)
	coll := testContainer(t, client)

	pager := coll.QueryItems("SELECT * FROM c WHERE c.cat = @cat",
		[]QueryParameter{{Name: "@cat", Value: "books"}},
		&QueryOptions{PartitionKey: "pk1"})

	var ids []string
	for pager.More() {
		page, err := pager.NextPage(context.Background())
		if err != nil {
			t.Fatalf("NextPage: %v", err)
		}
		for _, raw := range page.Items {
			var doc struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(raw, &doc); err != nil {
				t.Fatalf("unmarshal item: %v", err)
			}
			ids = append(ids, doc.ID)
		}
	}
	if want := []string{"a", "b", "c"}; len(ids) != 3 || ids[0] != want[0] || ids[1] != want[1] || ids[2] != want[2] {
		t.Errorf("ids = %v, want %v", ids, want)
	}
	if calls != 2 {
		t.Errorf("server saw %d query calls, want 2", calls)
	}
	if _, err := pager.NextPage(context.Background()); !errors.Is(err, ErrNoMorePages) {
		t.Errorf("NextPage after last page = %v, want ErrNoMorePages", err)
	}
}

func TestDeleteContainerClearsSessionState(t *testing.T) {
	var readTokens []string

	mux := http.NewServeMux()
	mux.HandleFunc("POST /dbs/mydb/colls/mycoll/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-ms-session-token", "0:1#8")
		w.Header().Set("x-ms-alt-content-path", testAltPath)
		writeDoc(w, http.StatusCreated, "doc1")
	})
	mux.HandleFunc("GET /dbs/mydb/colls/mycoll/docs/doc1", func(w http.ResponseWriter, r *http.Request) {
		readTokens = append(readTokens, r.Header.Get("x-ms-session-token"))
		writeDoc(w, http.StatusOK, "doc1")
	})
	mux.HandleFunc("DELETE /dbs/mydb/colls/mycoll", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	client := newTestClient(t, mux, nil)
	coll := testContainer(t, client)
	ctx := context.Background()

	if _, err := coll.CreateItem(ctx, "pk1", map[string]string{"id": "doc1"}, nil); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if _, err := coll.ReadItem(ctx, "pk1", "doc1", nil); err != nil {
		t.Fatalf("ReadItem: %v", err)
	}
	if _, err := coll.Delete(ctx, nil); err != nil {
		t.Fatalf("Delete container: %v", err)
	}
	if _, err := coll.ReadItem(ctx, "pk1", "doc1", nil); err != nil {
		t.Fatalf("ReadItem after delete: %v", err)
	}

	if len(readTokens) != 2 {
		t.Fatalf("server saw %d reads, want 2", len(readTokens))
	}
	if readTokens[0] != "0:1#8" {
		t.Errorf("read before delete carried token %q, want 0:1#8", readTokens[0])
	}
	if readTokens[1] != "" {
		t.Errorf("read after container delete carried token %q, want none", readTokens[1])
	}
}

func TestClientConsistencyLevelIsSent(t *testing.T) {
	type seen struct {
		level string
		token string
	}
	var reads []seen

	mux := http.NewServeMux()
	mux.HandleFunc("POST /dbs/mydb/colls/mycoll/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-ms-session-token", "0:1#5")
		w.Header().Set("x-ms-alt-content-path", testAltPath)
		writeDoc(w, http.StatusCreated, "doc1")
	})
	mux.HandleFunc("GET /dbs/mydb/colls/mycoll/docs/doc1", func(w http.ResponseWriter, r *http.Request) {
		reads = append(reads, seen{
			level: r.Header.Get("x-ms-consistency-level"),
			token: r.Header.Get("x-ms-session-token"),
		})
		writeDoc(w, http.StatusOK, "doc1")
	})

	client := newTestClient(t, mux, &ClientOptions{ConsistencyLevel: ConsistencyStrong})
	coll := testContainer(t, client)
	ctx := context.Background()

	if _, err := coll.CreateItem(ctx, "pk1", map[string]string{"id": "doc1"}, nil); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if _, err := coll.ReadItem(ctx, "pk1", "doc1", nil); err != nil {
		t.Fatalf("ReadItem: %v", err)
	}
	if _, err := coll.ReadItem(ctx, "pk1", "doc1", &ItemOptions{ConsistencyLevel: ConsistencySession}); err != nil {
		t.Fatalf("ReadItem with Session override: %v", err)
	}

	if len(reads) != 2 {
		t.Fatalf("server saw %d reads, want 2", len(reads))
	}
	if reads[0].level != "Strong" {
		t.Errorf("client-wide level on the wire = %q, want Strong", reads[0].level)
	}
	if reads[0].token != "" {
		t.Errorf("Strong read carried session token %q, want none", reads[0].token)
	}
	if reads[1].level != "Session" {
		t.Errorf("per-request level on the wire = %q, want Session", reads[1].level)
	}
	if reads[1].token != "0:1#5" {
		t.Errorf("Session-override read carried token %q, want 0:1#5", reads[1].token)
	}
}

func TestRetryOnTooManyRequests(t *testing.T) {
	var attempts int

	mux := http.NewServeMux()
	mux.HandleFunc("GET /dbs/mydb/colls/mycoll/docs/doc1", func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.Header().Set("x-ms-retry-after-ms", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeDoc(w, http.StatusOK, "doc1")
	})

	client := newTestClient(t, mux, &ClientOptions{
		Retry: RetryOptions{
			MaxRetries:   5,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			MaxElapsed:   time.Second,
		},
	})
	coll := testContainer(t, client)

	if _, err := coll.ReadItem(context.Background(), "pk1", "doc1", nil); err != nil {
		t.Fatalf("ReadItem: %v", err)
	}
	if attempts != 3 {
		t.Errorf("server saw %d attempts, want 3", attempts)
	}
}

func TestUpsertItemHeaders(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /dbs/mydb/colls/mycoll/docs", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-ms-documentdb-is-upsert"); got != "true" {
			t.Errorf("upsert header = %q, want true", got)
		}
		if got := r.Header.Get("x-ms-documentdb-partitionkey"); got != `["pk1"]` {
			t.Errorf("partition key header = %q, want [\"pk1\"]", got)
		}
		if got := r.Header.Get("x-ms-version"); got != "2018-12-31" {
			t.Errorf("version header = %q", got)
		}
		if got := r.Header.Get("Authorization"); got == "" {
			t.Error("request was not signed")
		}
		writeDoc(w, http.StatusOK, "doc1")
	})

	client := newTestClient(t, mux, nil)
	coll := testContainer(t, client)

	if _, err := coll.UpsertItem(context.Background(), "pk1", map[string]string{"id": "doc1"}, nil); err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}
}

func TestDatabaseAndContainerLifecycle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /dbs", func(w http.ResponseWriter, r *http.Request) {
		var props DatabaseProperties
		if err := json.NewDecoder(r.Body).Decode(&props); err != nil || props.ID != "mydb" {
			t.Errorf("create database body: id=%q err=%v", props.ID, err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id":"mydb","_rid":%q,"_self":"dbs/%s/"}`, testDatabaseRid, testDatabaseRid)
	})
	mux.HandleFunc("POST /dbs/mydb/colls", func(w http.ResponseWriter, r *http.Request) {
		var props ContainerProperties
		if err := json.NewDecoder(r.Body).Decode(&props); err != nil {
			t.Errorf("decode create container body: %v", err)
		}
		if len(props.PartitionKey.Paths) != 1 || props.PartitionKey.Paths[0] != "/category" {
			t.Errorf("partition key paths = %v", props.PartitionKey.Paths)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id":%q,"_rid":%q}`, props.ID, testCollectionRid)
	})
	mux.HandleFunc("GET /dbs/mydb/colls", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-ms-max-item-count"); got != "10" {
			t.Errorf("max item count header = %q, want 10", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"DocumentCollections":[{"id":"mycoll"}],"_count":1}`)
	})

	client := newTestClient(t, mux, nil)
	ctx := context.Background()

	dbRes, err := client.CreateDatabase(ctx, "mydb", nil)
	if err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	if dbRes.Properties.ResourceID != testDatabaseRid {
		t.Errorf("database rid = %q, want %q", dbRes.Properties.ResourceID, testDatabaseRid)
	}

	db, err := client.NewDatabase("mydb")
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	collRes, err := db.CreateContainer(ctx, ContainerProperties{
		ID:           "mycoll",
		PartitionKey: PartitionKeyDefinition{Paths: []string{"/category"}},
	}, nil)
	if err != nil {
		t.Fatalf("CreateContainer: %v", err)
	}
	if collRes.Properties.ResourceID != testCollectionRid {
		t.Errorf("container rid = %q, want %q", collRes.Properties.ResourceID, testCollectionRid)
	}

	pager := db.ListContainers(&ListContainersOptions{MaxItemCount: 10})
	page, err := pager.NextPage(ctx)
	if err != nil {
		t.Fatalf("ListContainers NextPage: %v", err)
	}
	if len(page.Containers) != 1 || page.Containers[0].ID != "mycoll" {
		t.Errorf("containers = %+v", page.Containers)
	}
	if pager.More() {
		t.Error("More() should be false after the only page")
	}
}

func TestNewClientValidation(t *testing.T) {
	cred := testCredential(t)

	if _, err := NewClient("http://localhost:9999", nil, nil); err == nil {
		t.Error("nil credential should be rejected")
	}
	if _, err := NewClient("not a url\x00", cred, nil); err == nil {
		t.Error("unparseable endpoint should be rejected")
	}
	if _, err := NewClient("ftp://example.com", cred, nil); err == nil {
		t.Error("non-http endpoint should be rejected")
	}

	client, err := NewClient("https://example.documents.example:443/", cred, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	if _, err := client.NewDatabase("bad/id"); err == nil {
		t.Error("database id with a slash should be rejected")
	}
	db, err := client.NewDatabase("mydb")
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	if _, err := db.NewContainer("trailing "); err == nil {
		t.Error("container id with a trailing space should be rejected")
	}
}
