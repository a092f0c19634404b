package billing

import (
	"context"

	"github.com/jhoicas/sri-facturacion/internal/domain/entity"
	"github.com/jhoicas/sri-facturacion/internal/domain/repository"
	infrasri "github.com/jhoicas/sri-facturacion/internal/infrastructure/sri"
)

// Session unidad de trabajo de un ciclo de conciliación. Los repositorios comparten
// la misma conexión; Close la devuelve al pool.
type Session interface {
	Documents() repository.DocumentRepository
	Companies() repository.CompanyRepository
	Customers() repository.CustomerRepository
	Establishments() repository.EstablishmentRepository
	Close()
}

// SessionOpener abre una sesión nueva por ciclo.
type SessionOpener interface {
	Open(ctx context.Context) (Session, error)
}

// Receiver puerto del servicio de recepción del SRI.
type Receiver interface {
	Receive(ctx context.Context, signedXML []byte, env entity.Environment) *infrasri.ReceptionResult
}

// Authorizer puerto del servicio de autorización del SRI.
type Authorizer interface {
	Authorize(ctx context.Context, accessKey string, env entity.Environment) *infrasri.AuthorizationResult
}

// XMLBuilder construye el XML sin firma del comprobante.
type XMLBuilder interface {
	Build(ctx *infrasri.DocumentBuildContext) ([]byte, error)
}

var (
	_ Receiver   = (*infrasri.SOAPClient)(nil)
	_ Authorizer = (*infrasri.SOAPClient)(nil)
	_ XMLBuilder = (*infrasri.XMLBuilderService)(nil)
)
