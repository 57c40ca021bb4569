package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/promoworks/voucher-redemption-service/internal/models"
)

// ProviderRepo is the read-only view onto the provider directory table that
// the admin tooling maintains.
type ProviderRepo struct {
	db *sql.DB
}

func NewProviderRepo(db *sql.DB) *ProviderRepo {
	return &ProviderRepo{db: db}
}

func (r *ProviderRepo) Provider(ctx context.Context, id uuid.UUID) (*models.Provider, error) {
	query := `SELECT id, name, address, lat, lng FROM providers WHERE id = $1`

	var (
		p        models.Provider
		address  sql.NullString
		lat, lng sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &address, &lat, &lng)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("provider by id: %w", err)
	}
	p.Address = address.String
	if lat.Valid && lng.Valid {
		p.Location = &models.GeoPoint{Lat: lat.Float64, Lng: lng.Float64}
	}
	return &p, nil
}
