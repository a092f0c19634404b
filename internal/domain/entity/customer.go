package entity

import "time"

// Customer contraparte del comprobante: cliente en facturas, proveedor en liquidaciones de compra.
type Customer struct {
	ID                 string
	CompanyID          string
	Name               string
	TaxID              string // RUC, cédula o pasaporte
	IdentificationType string // Tabla 6 SRI; vacío = se deduce del TaxID
	Email              string
	Phone              string
	Mobile             string
	Address            string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
