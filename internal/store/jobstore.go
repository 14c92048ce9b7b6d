package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"jobharvest/internal/canonical"
	"jobharvest/internal/database"
)

const keyChunkSize = 500

// JobStore writes canonical records to one postgres table keyed by
// (Vendor, Dedupe Key). The table is created on demand; a missing table
// means nothing has been stored yet, never an error.
type JobStore struct {
	db    database.DB
	table string
}

func NewJobStore(db database.DB, table string) *JobStore {
	table = strings.TrimSpace(table)
	if table == "" {
		table = "job_postings"
	}
	return &JobStore{db: db, table: table}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *JobStore) ensureSchema(ctx context.Context, tx database.Tx) error {
	var cols []string
	cols = append(cols, quoteIdent("Vendor")+" TEXT NOT NULL")
	cols = append(cols, quoteIdent("Dedupe Key")+" TEXT NOT NULL")
	for _, c := range canonical.Columns()[1:] {
		cols = append(cols, quoteIdent(c)+" TEXT")
	}
	cols = append(cols,
		quoteIdent("_extra")+" JSONB",
		quoteIdent("first_seen")+" TIMESTAMPTZ NOT NULL DEFAULT now()",
		quoteIdent("_updated_at")+" TIMESTAMPTZ NOT NULL DEFAULT now()",
		"PRIMARY KEY ("+quoteIdent("Vendor")+", "+quoteIdent("Dedupe Key")+")",
	)
	query := "CREATE TABLE IF NOT EXISTS " + quoteIdent(s.table) + " (\n\t" +
		strings.Join(cols, ",\n\t") + "\n)"
	_, err := tx.Exec(ctx, query)
	return err
}

// Upsert writes records in one transaction. Conflicting rows get their
// non-key columns replaced and _updated_at refreshed; first_seen keeps the
// value from the first time the posting appeared.
func (s *JobStore) Upsert(ctx context.Context, recs []canonical.Record) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("nil store")
	}
	if len(recs) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := s.ensureSchema(ctx, tx); err != nil {
		return 0, err
	}

	query := s.upsertQuery()
	var written int64
	for _, rec := range recs {
		args, err := upsertArgs(rec)
		if err != nil {
			return written, err
		}
		n, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return written, fmt.Errorf("upsert %q: %w", DedupeKey(rec), err)
		}
		written += n
	}

	if err := tx.Commit(ctx); err != nil {
		return written, err
	}
	return written, nil
}

func (s *JobStore) upsertQuery() string {
	insertCols := []string{quoteIdent("Vendor"), quoteIdent("Dedupe Key")}
	for _, c := range canonical.Columns()[1:] {
		insertCols = append(insertCols, quoteIdent(c))
	}
	insertCols = append(insertCols, quoteIdent("_extra"))

	placeholders := make([]string, len(insertCols))
	for i := range insertCols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	var updates []string
	for _, c := range insertCols[2:] {
		updates = append(updates, c+" = EXCLUDED."+c)
	}
	updates = append(updates, quoteIdent("_updated_at")+" = now()")

	return "INSERT INTO " + quoteIdent(s.table) + " (" + strings.Join(insertCols, ", ") + ")" +
		" VALUES (" + strings.Join(placeholders, ", ") + ")" +
		" ON CONFLICT (" + quoteIdent("Vendor") + ", " + quoteIdent("Dedupe Key") + ")" +
		" DO UPDATE SET " + strings.Join(updates, ", ")
}

func upsertArgs(rec canonical.Record) ([]any, error) {
	row := rec.Row()
	args := make([]any, 0, len(row)+2)
	args = append(args, rec.Vendor, DedupeKey(rec))
	for _, v := range row[1:] {
		args = append(args, v)
	}

	extra := rec.Extra
	if extra == nil {
		extra = map[string]string{}
	}
	extraJSON, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("marshal extra: %w", err)
	}
	args = append(args, string(extraJSON))
	return args, nil
}

// ExistingKeys reports which dedupe keys are already stored for a vendor.
// Lookups run in chunks to keep parameter lists bounded.
func (s *JobStore) ExistingKeys(ctx context.Context, vendor string, keys []string) (map[string]struct{}, error) {
	return s.existing(ctx, "Dedupe Key", vendor, keys)
}

// ExistingURLs is the URL-match variant for sources whose listings carry no
// posting IDs.
func (s *JobStore) ExistingURLs(ctx context.Context, vendor string, urls []string) (map[string]struct{}, error) {
	return s.existing(ctx, "Detail URL", vendor, urls)
}

func (s *JobStore) existing(ctx context.Context, column, vendor string, vals []string) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	if s == nil || s.db == nil || len(vals) == 0 {
		return out, nil
	}
	query := "SELECT " + quoteIdent(column) + " FROM " + quoteIdent(s.table) +
		" WHERE " + quoteIdent("Vendor") + " = $1 AND " + quoteIdent(column) + " = ANY($2)"

	for start := 0; start < len(vals); start += keyChunkSize {
		end := start + keyChunkSize
		if end > len(vals) {
			end = len(vals)
		}
		rows, err := s.db.Query(ctx, query, vendor, vals[start:end])
		if err != nil {
			if isUndefinedTable(err) {
				return map[string]struct{}{}, nil
			}
			return nil, err
		}
		for rows.Next() {
			var v string
			if err := rows.Scan(&v); err != nil {
				rows.Close()
				return nil, err
			}
			out[v] = struct{}{}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42P01"
	}
	return strings.Contains(err.Error(), "does not exist")
}
