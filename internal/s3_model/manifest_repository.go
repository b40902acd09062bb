package s3_model

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
)

// ManifestRepository mirrors the active model pointer in model_manifest
type ManifestRepository struct {
	pool *pgxpool.Pool
}

// NewManifestRepository creates a new manifest repository
func NewManifestRepository(pool *pgxpool.Pool) *ManifestRepository {
	return &ManifestRepository{pool: pool}
}

// SetActive records version as the active model
func (r *ManifestRepository) SetActive(ctx context.Context, version string) error {
	query := `
		INSERT INTO model_manifest (id, active_version, activated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE
		SET active_version = EXCLUDED.active_version,
		    activated_at = EXCLUDED.activated_at
	`
	if _, err := r.pool.Exec(ctx, query, version); err != nil {
		return fmt.Errorf("set active model: %w: %w", contracts.ErrDatabaseWrite, err)
	}
	return nil
}

// ActiveVersion returns the recorded active model version
func (r *ManifestRepository) ActiveVersion(ctx context.Context) (string, error) {
	var version string
	err := r.pool.QueryRow(ctx, `SELECT active_version FROM model_manifest WHERE id = 1`).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", contracts.ErrModelUnavailable
	}
	if err != nil {
		return "", fmt.Errorf("query active model: %w", err)
	}
	return version, nil
}
