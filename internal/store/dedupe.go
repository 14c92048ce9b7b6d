package store

import (
	"strings"

	"jobharvest/internal/canonical"
)

// DedupeKey is a posting's natural identity within one vendor: the posting
// ID when the source exposes one, the detail URL otherwise, the title as a
// last resort.
func DedupeKey(rec canonical.Record) string {
	if k := strings.TrimSpace(rec.PostingID); k != "" {
		return k
	}
	if k := strings.TrimSpace(rec.DetailURL); k != "" {
		return k
	}
	return strings.TrimSpace(rec.PositionTitle)
}

// DedupeRecords collapses records sharing a dedupe key, keeping the first in
// input order. Input order is the adapter's listing order, so reruns of the
// same listing pick the same survivor.
func DedupeRecords(recs []canonical.Record) []canonical.Record {
	seen := make(map[string]struct{}, len(recs))
	out := make([]canonical.Record, 0, len(recs))
	for _, rec := range recs {
		key := DedupeKey(rec)
		if key == "" {
			out = append(out, rec)
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}
	return out
}
