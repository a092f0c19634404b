package billing

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/jhoicas/sri-facturacion/internal/domain"
	"github.com/jhoicas/sri-facturacion/internal/domain/entity"
	domsri "github.com/jhoicas/sri-facturacion/internal/domain/sri"
	infrasri "github.com/jhoicas/sri-facturacion/internal/infrastructure/sri"
	pkgsri "github.com/jhoicas/sri-facturacion/pkg/sri"
)

// EmissionService prepara un comprobante para envío:
//
//	clave de acceso (una sola vez) → XML 1.1.0 → firma XAdES-BES
//
// No persiste: el llamador guarda el documento al final del ciclo.
type EmissionService struct {
	keys     *domsri.AccessKeyGenerator
	builder  XMLBuilder
	signer   pkgsri.Signer
	cert     tls.Certificate
	location *time.Location
}

// NewEmissionService construye el servicio. location es la zona del emisor (America/Guayaquil).
func NewEmissionService(
	keys *domsri.AccessKeyGenerator,
	builder XMLBuilder,
	signer pkgsri.Signer,
	cert tls.Certificate,
	location *time.Location,
) *EmissionService {
	if keys == nil {
		keys = domsri.NewAccessKeyGenerator()
	}
	if location == nil {
		location = time.UTC
	}
	return &EmissionService{keys: keys, builder: builder, signer: signer, cert: cert, location: location}
}

// Prepare deja doc.AccessKey y doc.XMLSigned listos. Si falla, el documento puede
// conservar la clave ya asignada; el estado no se modifica.
func (e *EmissionService) Prepare(ctx context.Context, s Session, doc *entity.Document) error {
	if !doc.IsElectronic {
		return fmt.Errorf("documento %s: %w", doc.ID, domain.ErrNotElectronic)
	}
	bctx, err := e.loadContext(ctx, s, doc)
	if err != nil {
		return err
	}

	if doc.AccessKey == "" {
		doc.AccessKey = e.keys.Generate(domsri.AccessKeyParams{
			IssueDate:       doc.IssueDate.In(e.location),
			DocumentType:    doc.DocumentType,
			IssuerRUC:       bctx.Issuer.RUC,
			EnvironmentCode: doc.Environment.Code(),
			Establishment:   bctx.Establishment.Code,
			EmissionPoint:   bctx.EmissionPoint.Code,
			Sequential:      doc.Sequential,
			Seed:            doc.ID,
		})
	}

	xmlBytes, err := e.builder.Build(bctx)
	if err != nil {
		return fmt.Errorf("construir XML: %w", err)
	}

	if len(e.cert.Certificate) == 0 || e.cert.PrivateKey == nil {
		return fmt.Errorf("certificado de firma no configurado: verifica SRI_CERT_PATH y SRI_CERT_PASSWORD")
	}
	signed, err := e.signer.Sign(xmlBytes, e.cert)
	if err != nil {
		return fmt.Errorf("firmar XML: %w", err)
	}
	doc.XMLSigned = string(signed)
	return nil
}

// loadContext reúne emisor, establecimiento, punto de emisión y contraparte.
func (e *EmissionService) loadContext(ctx context.Context, s Session, doc *entity.Document) (*infrasri.DocumentBuildContext, error) {
	issuer, err := s.Companies().GetByID(ctx, doc.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("emisor %s: %w", doc.CompanyID, err)
	}
	est, err := s.Establishments().GetEstablishment(ctx, doc.EstablishmentID)
	if err != nil {
		return nil, fmt.Errorf("establecimiento %s: %w", doc.EstablishmentID, err)
	}
	point, err := s.Establishments().GetEmissionPoint(ctx, doc.EmissionPointID)
	if err != nil {
		return nil, fmt.Errorf("punto de emisión %s: %w", doc.EmissionPointID, err)
	}
	counterparty, err := s.Customers().GetByID(ctx, doc.CounterpartyID)
	if err != nil {
		return nil, fmt.Errorf("contraparte %s: %w", doc.CounterpartyID, err)
	}
	return &infrasri.DocumentBuildContext{
		Document:      doc,
		Issuer:        issuer,
		Establishment: est,
		EmissionPoint: point,
		Counterparty:  counterparty,
		Location:      e.location,
	}, nil
}
