package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrAssetNotFound signals an unknown ticker in the asset registry.
var ErrAssetNotFound = errors.New("asset not found")

// Asset is one tracked instrument with its target portfolio weight.
type Asset struct {
	Ticker    string    `json:"ticker"`
	Name      string    `json:"name"`
	Weight    float64   `json:"weight"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UpsertAsset inserts or updates an asset by ticker.
func (db *DB) UpsertAsset(ctx context.Context, asset *Asset) error {
	defer observe("upsert_asset", time.Now())

	query := `
		INSERT INTO assets (ticker, name, weight, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (ticker)
		DO UPDATE SET name = EXCLUDED.name, weight = EXCLUDED.weight, updated_at = EXCLUDED.updated_at
	`

	now := time.Now()
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = now
	}
	asset.UpdatedAt = now

	_, err := db.pool.Exec(ctx, query,
		asset.Ticker,
		asset.Name,
		asset.Weight,
		asset.CreatedAt,
		asset.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert asset: %w", err)
	}
	return nil
}

// GetAsset retrieves one asset by ticker.
func (db *DB) GetAsset(ctx context.Context, ticker string) (*Asset, error) {
	defer observe("get_asset", time.Now())

	query := `
		SELECT ticker, name, weight, created_at, updated_at
		FROM assets
		WHERE ticker = $1
	`

	var asset Asset
	err := db.pool.QueryRow(ctx, query, ticker).Scan(
		&asset.Ticker,
		&asset.Name,
		&asset.Weight,
		&asset.CreatedAt,
		&asset.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, ticker)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query asset: %w", err)
	}
	return &asset, nil
}

// ListAssets returns all registered assets ordered by ticker.
func (db *DB) ListAssets(ctx context.Context) ([]Asset, error) {
	defer observe("list_assets", time.Now())

	query := `
		SELECT ticker, name, weight, created_at, updated_at
		FROM assets
		ORDER BY ticker
	`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		var asset Asset
		if err := rows.Scan(
			&asset.Ticker,
			&asset.Name,
			&asset.Weight,
			&asset.CreatedAt,
			&asset.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan asset row: %w", err)
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("asset rows iteration failed: %w", err)
	}
	return assets, nil
}

// DeleteAsset removes an asset and reports whether it existed.
func (db *DB) DeleteAsset(ctx context.Context, ticker string) error {
	defer observe("delete_asset", time.Now())

	tag, err := db.pool.Exec(ctx, `DELETE FROM assets WHERE ticker = $1`, ticker)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrAssetNotFound, ticker)
	}
	return nil
}
