package entity

// Establishment establecimiento del emisor (estab, 3 dígitos).
type Establishment struct {
	ID        string
	CompanyID string
	Code      string
	Name      string
	Address   string // dirEstablecimiento
}

// EmissionPoint punto de emisión de un establecimiento (ptoEmi, 3 dígitos).
type EmissionPoint struct {
	ID              string
	EstablishmentID string
	Code            string
}
