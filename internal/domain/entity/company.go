package entity

import "time"

// Company representa al emisor (contribuyente) registrado en el SRI.
type Company struct {
	ID                 string
	LegalName          string // razonSocial
	TradeName          string // nombreComercial (opcional)
	RUC                string // 13 dígitos
	MatrixAddress      string // dirMatriz
	SpecialContributor string // Número de resolución de contribuyente especial (vacío si no aplica)
	KeepsAccounting    bool   // obligadoContabilidad
	RimpeTaxpayer      bool   // contribuyenteRimpe
	Email              string
	Phone              string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
