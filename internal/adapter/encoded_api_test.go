package adapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"jobharvest/internal/config"
)

func TestEncodedAPI_TokenRoundTrip(t *testing.T) {
	in := map[string]any{"from": float64(10), "size": float64(50), "query": "go"}
	token, err := encodeRequestToken(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := base64.RawURLEncoding.DecodeString(token); err != nil {
		t.Fatalf("not raw base64url: %v", err)
	}
	out, err := decodeRequestToken(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["query"] != "go" || out["from"] != float64(10) {
		t.Fatalf("round trip = %v", out)
	}
}

func TestEncodedAPI_DowngradeOn400(t *testing.T) {
	var requests int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/positions", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		token := r.URL.Query().Get("searchCriteria")
		req, err := decodeRequestToken(token)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		// This deployment rejects any request carrying a page size.
		if _, ok := req["size"]; ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"count": 2,
			"positions": []any{
				map[string]any{"id": "P1", "name": "One", "canonicalPositionUrl": "https://x.com/job/P1"},
				map[string]any{"id": "P2", "name": "Two", "canonicalPositionUrl": "https://x.com/job/P2"},
			},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	src := config.Source{
		ID:     "t",
		Vendor: "Acme",
		Pagination: config.Pagination{
			APIURL:   server.URL + "/api/positions",
			PageSize: 50,
		},
	}

	a := &EncodedAPI{}
	refs, err := a.ListJobs(context.Background(), testEnv(0), src)
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %d: %+v", len(refs), refs)
	}
	if refs[0].PostingID != "P1" || refs[1].PostingID != "P2" {
		t.Fatalf("refs = %+v", refs)
	}
	// First request carries the facet and is rejected, second drops it.
	if got := atomic.LoadInt32(&requests); got != 2 {
		t.Fatalf("expected 2 requests (reject + retry), got %d", got)
	}
}

func TestEncodedAPI_DowngradeMidFanOut(t *testing.T) {
	var rejected int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/positions", func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeRequestToken(r.URL.Query().Get("searchCriteria"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		from := int(req["from"].(float64))
		// Page zero tolerates the page-size facet; deeper pages reject it,
		// so the rejection lands while the workers are already running.
		if _, ok := req["size"]; ok && from > 0 {
			atomic.AddInt32(&rejected, 1)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		page := from / 10
		var positions []any
		for i := 0; i < 10; i++ {
			id := fmt.Sprintf("P%03d", page*10+i)
			positions = append(positions, map[string]any{
				"id":                   id,
				"name":                 "Job " + id,
				"canonicalPositionUrl": "https://x.com/job/" + id,
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"count": 50, "positions": positions})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	src := config.Source{
		ID:     "t",
		Vendor: "Acme",
		Pagination: config.Pagination{
			APIURL:      server.URL + "/api/positions",
			PageSize:    10,
			ListWorkers: 4,
		},
	}

	a := &EncodedAPI{}
	refs, err := a.ListJobs(context.Background(), testEnv(0), src)
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if atomic.LoadInt32(&rejected) == 0 {
		t.Fatal("server never rejected a facet-carrying page request")
	}
	// Every worker whose in-flight request was rejected retries against the
	// settled plan, so no page is lost.
	if len(refs) != 50 {
		t.Fatalf("expected 50 refs, got %d", len(refs))
	}
	for i, ref := range refs {
		want := fmt.Sprintf("P%03d", i)
		if ref.PostingID != want {
			t.Fatalf("ref %d = %q, want %q", i, ref.PostingID, want)
		}
	}
}

func TestEncodedAPI_RejectedAtMinimumFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/positions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	src := config.Source{
		ID:     "t",
		Vendor: "Acme",
		Pagination: config.Pagination{
			APIURL:   server.URL + "/api/positions",
			PageSize: minEncodedPageSize,
		},
	}

	a := &EncodedAPI{}
	if _, err := a.ListJobs(context.Background(), testEnv(0), src); err == nil {
		t.Fatal("expected error when every downgrade step is rejected")
	}
}

func TestEncodedAPI_ConcurrentPagesKeepOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/positions", func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeRequestToken(r.URL.Query().Get("searchCriteria"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		from := int(req["from"].(float64))
		page := from / 10
		var positions []any
		for i := 0; i < 10; i++ {
			id := fmt.Sprintf("P%03d", page*10+i)
			positions = append(positions, map[string]any{
				"id":                   id,
				"name":                 "Job " + id,
				"canonicalPositionUrl": "https://x.com/job/" + id,
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"count": 30, "positions": positions})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	useFacet := true
	src := config.Source{
		ID:     "t",
		Vendor: "Acme",
		Pagination: config.Pagination{
			APIURL:      server.URL + "/api/positions",
			PageSize:    10,
			ListWorkers: 3,
			UseFacet:    &useFacet,
		},
	}

	a := &EncodedAPI{}
	refs, err := a.ListJobs(context.Background(), testEnv(0), src)
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if len(refs) != 30 {
		t.Fatalf("expected 30 refs, got %d", len(refs))
	}
	for i, ref := range refs {
		want := fmt.Sprintf("P%03d", i)
		if ref.PostingID != want {
			t.Fatalf("ref %d = %q, want %q (order not stable)", i, ref.PostingID, want)
		}
	}
}
