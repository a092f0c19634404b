package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/sri-facturacion/internal/domain"
	"github.com/jhoicas/sri-facturacion/internal/domain/entity"
	"github.com/jhoicas/sri-facturacion/internal/domain/repository"
)

var _ repository.CustomerRepository = (*CustomerRepo)(nil)

type customerRow struct {
	ID                 string    `db:"id"`
	CompanyID          string    `db:"company_id"`
	Name               string    `db:"name"`
	TaxID              string    `db:"tax_id"`
	IdentificationType *string   `db:"identification_type"`
	Email              *string   `db:"email"`
	Phone              *string   `db:"phone"`
	Mobile             *string   `db:"mobile"`
	Address            *string   `db:"address"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

// CustomerRepo implementación de CustomerRepository (clientes y proveedores).
type CustomerRepo struct {
	q Querier
}

// NewCustomerRepository construye el adaptador. Pasar pool, conexión o tx (Querier).
func NewCustomerRepository(q Querier) *CustomerRepo {
	return &CustomerRepo{q: q}
}

// GetByID obtiene la contraparte por ID.
func (r *CustomerRepo) GetByID(ctx context.Context, id string) (*entity.Customer, error) {
	sql, args, err := builder.Select(
		"id", "company_id", "name", "tax_id", "identification_type",
		"email", "phone", "mobile", "address", "created_at", "updated_at",
	).From("customers").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var row customerRow
	if err := pgxscan.Get(ctx, r.q, &row, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &entity.Customer{
		ID:                 row.ID,
		CompanyID:          row.CompanyID,
		Name:               row.Name,
		TaxID:              row.TaxID,
		IdentificationType: deref(row.IdentificationType),
		Email:              deref(row.Email),
		Phone:              deref(row.Phone),
		Mobile:             deref(row.Mobile),
		Address:            deref(row.Address),
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}, nil
}
