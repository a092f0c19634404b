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

var _ repository.CompanyRepository = (*CompanyRepo)(nil)

type companyRow struct {
	ID                 string    `db:"id"`
	LegalName          string    `db:"legal_name"`
	TradeName          *string   `db:"trade_name"`
	RUC                string    `db:"ruc"`
	MatrixAddress      string    `db:"matrix_address"`
	SpecialContributor *string   `db:"special_contributor"`
	KeepsAccounting    bool      `db:"keeps_accounting"`
	RimpeTaxpayer      bool      `db:"rimpe_taxpayer"`
	Email              *string   `db:"email"`
	Phone              *string   `db:"phone"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

// CompanyRepo implementación de CompanyRepository.
type CompanyRepo struct {
	q Querier
}

// NewCompanyRepository construye el adaptador. Pasar pool, conexión o tx (Querier).
func NewCompanyRepository(q Querier) *CompanyRepo {
	return &CompanyRepo{q: q}
}

// GetByID obtiene el emisor por ID.
func (r *CompanyRepo) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	sql, args, err := builder.Select(
		"id", "legal_name", "trade_name", "ruc", "matrix_address", "special_contributor",
		"keeps_accounting", "rimpe_taxpayer", "email", "phone", "created_at", "updated_at",
	).From("companies").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var row companyRow
	if err := pgxscan.Get(ctx, r.q, &row, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get company: %w", err)
	}
	return &entity.Company{
		ID:                 row.ID,
		LegalName:          row.LegalName,
		TradeName:          deref(row.TradeName),
		RUC:                row.RUC,
		MatrixAddress:      row.MatrixAddress,
		SpecialContributor: deref(row.SpecialContributor),
		KeepsAccounting:    row.KeepsAccounting,
		RimpeTaxpayer:      row.RimpeTaxpayer,
		Email:              deref(row.Email),
		Phone:              deref(row.Phone),
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}, nil
}
