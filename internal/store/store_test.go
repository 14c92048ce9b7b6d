package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"jobharvest/internal/canonical"
	"jobharvest/internal/database"
)

type fakeStoredRow struct {
	vendor    string
	key       string
	detailURL string
	title     string
	updates   int
}

type fakeDB struct {
	mu      sync.Mutex
	created bool
	rows    map[string]*fakeStoredRow
}

func newFakeDB() *fakeDB {
	return &fakeDB{rows: map[string]*fakeStoredRow{}}
}

func (db *fakeDB) Ping(ctx context.Context) error { return nil }
func (db *fakeDB) Close() error                   { return nil }

func (db *fakeDB) Begin(ctx context.Context) (database.Tx, error) {
	return &fakeTx{db: db}, nil
}

func (db *fakeDB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return db.exec(query, args...)
}

func (db *fakeDB) exec(query string, args ...any) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	q := strings.ToLower(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(q, "create table"):
		db.created = true
		return 0, nil

	case strings.HasPrefix(q, "insert into"):
		if !db.created {
			return 0, fmt.Errorf(`relation does not exist`)
		}
		vendor := args[0].(string)
		key := args[1].(string)
		// Insert column order puts title and URL right after the key pair.
		title := args[2].(string)
		url := args[3].(string)
		mapKey := vendor + "|" + key
		if row, ok := db.rows[mapKey]; ok {
			row.title = title
			row.detailURL = url
			row.updates++
			return 1, nil
		}
		db.rows[mapKey] = &fakeStoredRow{vendor: vendor, key: key, detailURL: url, title: title}
		return 1, nil
	}
	return 0, nil
}

func (db *fakeDB) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if !db.created {
		return nil, fmt.Errorf(`relation "job_postings" does not exist`)
	}
	vendor := args[0].(string)
	vals := args[1].([]string)
	wanted := map[string]struct{}{}
	for _, v := range vals {
		wanted[v] = struct{}{}
	}

	byURL := strings.Contains(query, `"Detail URL"`)
	var out []string
	for _, row := range db.rows {
		if row.vendor != vendor {
			continue
		}
		probe := row.key
		if byURL {
			probe = row.detailURL
		}
		if _, ok := wanted[probe]; ok {
			out = append(out, probe)
		}
	}
	return &fakeRows{vals: out}, nil
}

func (db *fakeDB) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return fakeRow{err: fmt.Errorf("unsupported")}
}

type fakeTx struct {
	db *fakeDB
}

func (t *fakeTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return t.db.exec(query, args...)
}

func (t *fakeTx) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	return t.db.Query(ctx, query, args...)
}

func (t *fakeTx) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return t.db.QueryRow(ctx, query, args...)
}

func (t *fakeTx) Commit(ctx context.Context) error   { return nil }
func (t *fakeTx) Rollback(ctx context.Context) error { return nil }

type fakeRows struct {
	vals []string
	idx  int
}

func (r *fakeRows) Close()     {}
func (r *fakeRows) Err() error { return nil }
func (r *fakeRows) Next() bool {
	return r.idx < len(r.vals)
}
func (r *fakeRows) Scan(dest ...any) error {
	if len(dest) != 1 {
		return fmt.Errorf("scan dest mismatch")
	}
	p, ok := dest[0].(*string)
	if !ok {
		return fmt.Errorf("scan type mismatch")
	}
	*p = r.vals[r.idx]
	r.idx++
	return nil
}

type fakeRow struct {
	err error
}

func (r fakeRow) Scan(dest ...any) error { return r.err }

func testRecord(id, title, url string) canonical.Record {
	return canonical.Record{
		Vendor:        "Acme",
		PostingID:     id,
		PositionTitle: title,
		DetailURL:     url,
	}
}

func TestDedupeKey_Precedence(t *testing.T) {
	rec := testRecord("R1", "Engineer", "https://x.com/job/1")
	if got := DedupeKey(rec); got != "R1" {
		t.Fatalf("got %q", got)
	}
	rec.PostingID = ""
	if got := DedupeKey(rec); got != "https://x.com/job/1" {
		t.Fatalf("got %q", got)
	}
	rec.DetailURL = ""
	if got := DedupeKey(rec); got != "Engineer" {
		t.Fatalf("got %q", got)
	}
}

func TestDedupeRecords_KeepFirst(t *testing.T) {
	recs := []canonical.Record{
		testRecord("R1", "First", "https://x.com/job/1"),
		testRecord("R1", "Duplicate", "https://x.com/job/1b"),
		testRecord("R2", "Second", "https://x.com/job/2"),
	}
	got := DedupeRecords(recs)
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].PositionTitle != "First" {
		t.Fatalf("kept wrong duplicate: %q", got[0].PositionTitle)
	}
}

func TestJobStore_UpsertIdempotent(t *testing.T) {
	db := newFakeDB()
	s := NewJobStore(db, "job_postings")
	ctx := context.Background()

	recs := []canonical.Record{
		testRecord("R1", "Engineer", "https://x.com/job/1"),
		testRecord("R2", "Analyst", "https://x.com/job/2"),
	}
	if _, err := s.Upsert(ctx, recs); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if len(db.rows) != 2 {
		t.Fatalf("rows = %d", len(db.rows))
	}

	recs[0].PositionTitle = "Senior Engineer"
	if _, err := s.Upsert(ctx, recs); err != nil {
		t.Fatalf("upsert (2nd): %v", err)
	}
	if len(db.rows) != 2 {
		t.Fatalf("rerun added rows: %d", len(db.rows))
	}
	row := db.rows["Acme|R1"]
	if row == nil || row.title != "Senior Engineer" {
		t.Fatalf("conflict update did not apply: %+v", row)
	}
	if row.updates != 1 {
		t.Fatalf("updates = %d", row.updates)
	}
}

func TestJobStore_ExistingKeysMissingTable(t *testing.T) {
	db := newFakeDB()
	s := NewJobStore(db, "job_postings")

	got, err := s.ExistingKeys(context.Background(), "Acme", []string{"R1", "R2"})
	if err != nil {
		t.Fatalf("missing table should not error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
}

func TestJobStore_ExistingKeysAndURLs(t *testing.T) {
	db := newFakeDB()
	s := NewJobStore(db, "job_postings")
	ctx := context.Background()

	if _, err := s.Upsert(ctx, []canonical.Record{
		testRecord("R1", "Engineer", "https://x.com/job/1"),
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	keys, err := s.ExistingKeys(ctx, "Acme", []string{"R1", "R9"})
	if err != nil {
		t.Fatalf("existing keys: %v", err)
	}
	if _, ok := keys["R1"]; !ok || len(keys) != 1 {
		t.Fatalf("keys = %v", keys)
	}

	urls, err := s.ExistingURLs(ctx, "Acme", []string{"https://x.com/job/1", "https://x.com/job/9"})
	if err != nil {
		t.Fatalf("existing urls: %v", err)
	}
	if _, ok := urls["https://x.com/job/1"]; !ok || len(urls) != 1 {
		t.Fatalf("urls = %v", urls)
	}

	other, err := s.ExistingKeys(ctx, "OtherVendor", []string{"R1"})
	if err != nil {
		t.Fatalf("existing keys other vendor: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("vendor isolation broken: %v", other)
	}
}
