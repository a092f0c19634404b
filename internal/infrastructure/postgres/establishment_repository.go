package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/sri-facturacion/internal/domain"
	"github.com/jhoicas/sri-facturacion/internal/domain/entity"
	"github.com/jhoicas/sri-facturacion/internal/domain/repository"
)

var _ repository.EstablishmentRepository = (*EstablishmentRepo)(nil)

// EstablishmentRepo lectura de establecimientos y puntos de emisión.
type EstablishmentRepo struct {
	q Querier
}

// NewEstablishmentRepository construye el adaptador.
func NewEstablishmentRepository(q Querier) *EstablishmentRepo {
	return &EstablishmentRepo{q: q}
}

// GetEstablishment obtiene un establecimiento por ID.
func (r *EstablishmentRepo) GetEstablishment(ctx context.Context, id string) (*entity.Establishment, error) {
	sql, args, err := builder.Select("id", "company_id", "code", "name", "COALESCE(address, '') AS address").
		From("establishments").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var est entity.Establishment
	if err := pgxscan.Get(ctx, r.q, &est, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get establishment: %w", err)
	}
	return &est, nil
}

// GetEmissionPoint obtiene un punto de emisión por ID.
func (r *EstablishmentRepo) GetEmissionPoint(ctx context.Context, id string) (*entity.EmissionPoint, error) {
	sql, args, err := builder.Select("id", "establishment_id", "code").
		From("emission_points").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var point entity.EmissionPoint
	if err := pgxscan.Get(ctx, r.q, &point, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get emission point: %w", err)
	}
	return &point, nil
}
