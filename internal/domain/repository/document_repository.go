package repository

import (
	"context"

	"github.com/jhoicas/sri-facturacion/internal/domain/entity"
)

// DocumentRepository define el puerto de persistencia de comprobantes electrónicos.
type DocumentRepository interface {
	// GetByID devuelve el documento con sus detalles (y clase de impuesto por línea).
	GetByID(ctx context.Context, id string) (*entity.Document, error)

	// ListElectronicByStatus devuelve hasta limit documentos electrónicos en alguno de los
	// estados dados, con detalles, del más antiguo al más reciente.
	ListElectronicByStatus(ctx context.Context, statuses []string, limit int) ([]*entity.Document, error)

	// SaveSRIState persiste en un solo lote los campos de conciliación (clave de acceso,
	// XML firmado, estado, mensaje, autorización). Cada fila se actualiza solo si su versión
	// no cambió; los IDs omitidos por versión obsoleta se devuelven en stale.
	SaveSRIState(ctx context.Context, docs []*entity.Document) (stale []string, err error)
}
