package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/sri-facturacion/internal/application/billing"
	"github.com/jhoicas/sri-facturacion/internal/domain/repository"
)

var (
	_ billing.SessionOpener = (*SessionOpener)(nil)
	_ billing.Session       = (*Session)(nil)
)

// SessionOpener abre sesiones de conciliación sobre el pool.
type SessionOpener struct {
	pool *pgxpool.Pool
}

// NewSessionOpener construye el opener con el pool.
func NewSessionOpener(pool *pgxpool.Pool) *SessionOpener {
	return &SessionOpener{pool: pool}
}

// Open reserva una conexión del pool para todo el ciclo.
func (o *SessionOpener) Open(ctx context.Context) (billing.Session, error) {
	conn, err := o.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &Session{
		conn:           conn,
		documents:      NewDocumentRepository(conn),
		companies:      NewCompanyRepository(conn),
		customers:      NewCustomerRepository(conn),
		establishments: NewEstablishmentRepository(conn),
	}, nil
}

// Session repositorios atados a una conexión reservada.
type Session struct {
	conn           *pgxpool.Conn
	documents      *DocumentRepo
	companies      *CompanyRepo
	customers      *CustomerRepo
	establishments *EstablishmentRepo
}

func (s *Session) Documents() repository.DocumentRepository           { return s.documents }
func (s *Session) Companies() repository.CompanyRepository            { return s.companies }
func (s *Session) Customers() repository.CustomerRepository           { return s.customers }
func (s *Session) Establishments() repository.EstablishmentRepository { return s.establishments }

// Close devuelve la conexión al pool.
func (s *Session) Close() {
	s.conn.Release()
}
