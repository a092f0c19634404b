package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound      = errors.New("recurso no encontrado")
	ErrForbidden     = errors.New("acceso denegado")
	ErrMissingEntity = errors.New("faltan datos obligatorios del comprobante")
	ErrNotElectronic = errors.New("el documento no es electrónico")
)

// MissingDetailsError el comprobante no tiene líneas de detalle.
type MissingDetailsError struct {
	DocumentID string
}

func (e *MissingDetailsError) Error() string {
	return fmt.Sprintf("documento %s: el comprobante debe tener al menos un detalle", e.DocumentID)
}

// MissingTaxConfigurationError una línea de detalle no tiene clase de impuesto asociada.
type MissingTaxConfigurationError struct {
	DocumentID string
	Line       int // número de línea (base 1)
	ProductID  string
}

func (e *MissingTaxConfigurationError) Error() string {
	return fmt.Sprintf("documento %s: la línea %d (producto %s) no tiene impuesto configurado",
		e.DocumentID, e.Line, e.ProductID)
}
