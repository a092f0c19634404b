package billing

import (
	"context"
	"fmt"

	"github.com/jhoicas/sri-facturacion/internal/application/dto"
	"github.com/jhoicas/sri-facturacion/internal/domain"
	"github.com/jhoicas/sri-facturacion/internal/domain/entity"
)

// DocumentQueryService consulta el estado SRI de un comprobante para la API.
type DocumentQueryService struct {
	opener SessionOpener
}

// NewDocumentQueryService construye el servicio.
func NewDocumentQueryService(opener SessionOpener) *DocumentQueryService {
	return &DocumentQueryService{opener: opener}
}

// GetStatus devuelve el estado del documento si pertenece a la empresa del token.
func (q *DocumentQueryService) GetStatus(ctx context.Context, companyID, id string) (*dto.DocumentStatusResponse, error) {
	doc, err := q.load(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	out := &dto.DocumentStatusResponse{
		ID:                doc.ID,
		DocumentType:      doc.DocumentType,
		Sequential:        doc.Sequential,
		AccessKey:         doc.AccessKey,
		Environment:       string(doc.Environment),
		Status:            doc.Status,
		SRIMessage:        doc.SRIMessage,
		AuthorizationDate: doc.AuthorizationDate,
		Terminal:          doc.IsTerminal(),
		UpdatedAt:         doc.UpdatedAt,
	}
	if doc.AuthorizationNumber != nil {
		out.AuthorizationNumber = *doc.AuthorizationNumber
	}
	return out, nil
}

// GetSignedXML devuelve el XML firmado; ErrNotFound si aún no se ha firmado.
func (q *DocumentQueryService) GetSignedXML(ctx context.Context, companyID, id string) (string, error) {
	doc, err := q.load(ctx, companyID, id)
	if err != nil {
		return "", err
	}
	if doc.XMLSigned == "" {
		return "", fmt.Errorf("documento %s sin XML firmado: %w", id, domain.ErrNotFound)
	}
	return doc.XMLSigned, nil
}

func (q *DocumentQueryService) load(ctx context.Context, companyID, id string) (*entity.Document, error) {
	s, err := q.opener.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	doc, err := s.Documents().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	return doc, nil
}
