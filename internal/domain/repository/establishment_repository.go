package repository

import (
	"context"

	"github.com/jhoicas/sri-facturacion/internal/domain/entity"
)

// EstablishmentRepository puerto de lectura de establecimientos y puntos de emisión.
type EstablishmentRepository interface {
	GetEstablishment(ctx context.Context, id string) (*entity.Establishment, error)
	GetEmissionPoint(ctx context.Context, id string) (*entity.EmissionPoint, error)
}
