package tenant

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// querier is the subset of pgxpool.Pool used by the Postgres source.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource loads tenant entries from the tenants table.
type PostgresSource struct {
	db querier
}

// NewPostgresSource wraps a pgx pool (or any compatible querier).
func NewPostgresSource(db querier) *PostgresSource {
	if db == nil {
		panic("tenant: pgx pool required")
	}
	return &PostgresSource{db: db}
}

const selectTenants = `
	SELECT slug, display_name, list_id, credential, allowed_regions, allowed_cities,
	       branding, pixel_id, gtm_id, variant, notify_email
	FROM tenants
	WHERE active
	ORDER BY slug
`

// Load reads every active tenant and builds a registry.
func (s *PostgresSource) Load(ctx context.Context) (*Registry, error) {
	rows, err := s.db.Query(ctx, selectTenants)
	if err != nil {
		return nil, fmt.Errorf("tenant: query tenants: %w", err)
	}
	defer rows.Close()

	var entries []Config
	for rows.Next() {
		var (
			cfg      Config
			regions  []byte
			cities   []byte
			branding []byte
		)
		if err := rows.Scan(
			&cfg.Slug,
			&cfg.DisplayName,
			&cfg.Destination.ListID,
			&cfg.Destination.Credential,
			&regions,
			&cities,
			&branding,
			&cfg.AnalyticsPixelID,
			&cfg.TagManagerID,
			&cfg.Variant,
			&cfg.NotifyEmail,
		); err != nil {
			return nil, fmt.Errorf("tenant: scan tenant: %w", err)
		}
		if err := decodeJSONColumn(regions, &cfg.AllowedRegions); err != nil {
			return nil, fmt.Errorf("tenant: %s allowed_regions: %w", cfg.Slug, err)
		}
		if err := decodeJSONColumn(cities, &cfg.AllowedCitiesByRegion); err != nil {
			return nil, fmt.Errorf("tenant: %s allowed_cities: %w", cfg.Slug, err)
		}
		if err := decodeJSONColumn(branding, &cfg.Branding); err != nil {
			return nil, fmt.Errorf("tenant: %s branding: %w", cfg.Slug, err)
		}
		// An empty list or map in a row means no restriction, same as NULL.
		if len(cfg.AllowedRegions) == 0 {
			cfg.AllowedRegions = nil
		}
		if len(cfg.AllowedCitiesByRegion) == 0 {
			cfg.AllowedCitiesByRegion = nil
		}
		entries = append(entries, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tenant: iterate tenants: %w", err)
	}
	return NewRegistry(entries...)
}

// decodeJSONColumn treats an empty column like JSON null.
func decodeJSONColumn(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
