package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"marketgen/internal/domain"
	"marketgen/internal/infra"
	"marketgen/internal/sqlinline"
)

// ArtifactRepositoryPG implements domain.ArtifactStore on PostgreSQL.
type ArtifactRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewArtifactRepository creates a new artifact repository.
func NewArtifactRepository(sql infra.SQLExecutor) *ArtifactRepositoryPG {
	return &ArtifactRepositoryPG{sql: sql}
}

// SaveArtifacts inserts one row per payload under the given kind. The write
// is the fatal persist step of every pipeline, so a failure here propagates.
func (r *ArtifactRepositoryPG) SaveArtifacts(ctx context.Context, jobID, projectID, kind string, payloads []json.RawMessage) error {
	for _, payload := range payloads {
		if _, err := r.sql.Exec(ctx, sqlinline.QInsertArtifact,
			uuid.NewString(), jobID, projectID, kind, payload); err != nil {
			return fmt.Errorf("insert %s artifact: %w", kind, err)
		}
	}
	return nil
}

var _ domain.ArtifactStore = (*ArtifactRepositoryPG)(nil)
