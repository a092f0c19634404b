package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/jhoicas/sri-facturacion/internal/application/dto"
	"github.com/jhoicas/sri-facturacion/internal/domain"
)

// documentQuerier lo implementa *billing.DocumentQueryService.
type documentQuerier interface {
	GetStatus(ctx context.Context, companyID, id string) (*dto.DocumentStatusResponse, error)
	GetSignedXML(ctx context.Context, companyID, id string) (string, error)
}

// DocumentHandler expone el estado SRI de los comprobantes (protegido).
type DocumentHandler struct {
	q documentQuerier
}

// NewDocumentHandler construye el handler.
func NewDocumentHandler(q documentQuerier) *DocumentHandler {
	return &DocumentHandler{q: q}
}

// GetStatus estado, mensaje y autorización del comprobante.
// GET /api/documents/:id/status
func (h *DocumentHandler) GetStatus(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	out, err := h.q.GetStatus(c.UserContext(), companyID, c.Params("id"))
	if err != nil {
		return writeError(c, err, "comprobante no encontrado")
	}
	return c.JSON(out)
}

// GetXML XML firmado tal como se envió al SRI.
// GET /api/documents/:id/xml
func (h *DocumentHandler) GetXML(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	xml, err := h.q.GetSignedXML(c.UserContext(), companyID, c.Params("id"))
	if err != nil {
		return writeError(c, err, "comprobante no encontrado o sin firmar")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationXMLCharsetUTF8)
	return c.SendString(xml)
}

func writeError(c *fiber.Ctx, err error, notFound string) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: notFound})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado"})
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("error consultando comprobante")
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
	}
}
