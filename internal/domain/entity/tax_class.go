package entity

import "github.com/shopspring/decimal"

// TaxClass clase de impuesto SRI: código de impuesto, código de porcentaje y tarifa.
// Es la clave de agrupación de totalConImpuestos en el XML.
type TaxClass struct {
	ID             string
	Code           string          // 2 = IVA, 3 = ICE, 5 = IRBPNR
	PercentageCode string          // 0, 2, 3, 4, 5, 6, 7, 8, 10 (tabla 17)
	Rate           decimal.Decimal // Tarifa en porcentaje (ej: 15)
}

// Key devuelve la clave de agrupación "codigo/codigoPorcentaje".
func (t *TaxClass) Key() string {
	return t.Code + "/" + t.PercentageCode
}
