package store

import (
	"context"
	"database/sql"
	"fmt"

	"heatpulse/api/models"
)

// SiteStore persists tracked sites and their owners.
type SiteStore interface {
	CreateSite(ctx context.Context, site models.Site) error
	ListSitesByOwner(ctx context.Context, ownerID int64) ([]models.Site, error)
}

type PostgresSiteStore struct {
	db *sql.DB
}

func NewPostgresSiteStore(db *sql.DB) *PostgresSiteStore {
	return &PostgresSiteStore{db: db}
}

func (s *PostgresSiteStore) CreateSite(ctx context.Context, site models.Site) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sites (site_id, name, domain, owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, site.SiteID, site.Name, site.Domain, site.OwnerID, site.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("site %s: %w", site.Domain, ErrDuplicate)
		}
		return fmt.Errorf("failed to create site: %w", err)
	}
	return nil
}

func (s *PostgresSiteStore) ListSitesByOwner(ctx context.Context, ownerID int64) ([]models.Site, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT site_id, name, domain, owner_id, created_at
		FROM sites
		WHERE owner_id = $1
		ORDER BY created_at ASC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	defer rows.Close()

	sites := []models.Site{}
	for rows.Next() {
		var site models.Site
		if err := rows.Scan(&site.SiteID, &site.Name, &site.Domain, &site.OwnerID, &site.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan site row: %w", err)
		}
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for sites: %w", err)
	}
	return sites, nil
}
