package fetch

import (
	"context"

	"jobharvest/internal/artifact"
)

// FetchArtifacts is the single detail-page boundary: one GET per posting,
// then structured-artifact extraction. A bundle may come back partial
// alongside a non-nil error when the page carried a broken vendor payload.
func FetchArtifacts(ctx context.Context, sess *Session, detailURL string) (artifact.Bundle, error) {
	body, err := sess.Get(ctx, detailURL)
	if err != nil {
		return artifact.Bundle{DetailURL: detailURL}, err
	}
	return artifact.Extract(string(body), detailURL)
}
