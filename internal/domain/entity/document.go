package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados del comprobante electrónico frente al SRI.
const (
	DocumentStatusPending        = "PENDING"         // Listo para envío (o reintento) a recepción
	DocumentStatusSRIReceived    = "SRI_RECEIVED"    // RECIBIDA por el SRI, pendiente de autorización
	DocumentStatusSRIRejected    = "SRI_REJECTED"    // DEVUELTA o NO AUTORIZADO (terminal)
	DocumentStatusSRITimeout     = "SRI_TIMEOUT"     // Sin respuesta dentro del plazo; se reintenta
	DocumentStatusSRIUnavailable = "SRI_UNAVAILABLE" // Servicio caído o en mantenimiento; se reintenta
	DocumentStatusSRIAuthorized  = "SRI_AUTHORIZED"  // AUTORIZADO (terminal)
)

// Tipos de comprobante soportados por el pipeline (tabla 3 de la ficha técnica SRI).
const (
	DocumentTypeInvoice            = "01" // Factura
	DocumentTypePurchaseSettlement = "03" // Liquidación de compra de bienes y prestación de servicios
)

// Environment ambiente del SRI en el que se emite el comprobante.
type Environment string

const (
	EnvironmentTest       Environment = "TEST"
	EnvironmentProduction Environment = "PRODUCTION"
)

// Code devuelve el código de ambiente usado en la clave de acceso y en el XML (1 = pruebas, 2 = producción).
func (e Environment) Code() string {
	if e == EnvironmentProduction {
		return "2"
	}
	return "1"
}

// Document representa una factura o liquidación de compra electrónica.
type Document struct {
	ID                  string
	CompanyID           string
	EstablishmentID     string
	EmissionPointID     string
	CounterpartyID      string // Cliente (factura) o proveedor (liquidación de compra)
	DocumentType        string
	Sequential          int64
	IssueDate           time.Time
	AccessKey           string // 49 dígitos; no cambia una vez asignada
	Status              string
	Environment         Environment
	IsElectronic        bool
	XMLSigned           string
	SRIMessage          string // Último mensaje legible devuelto por el SRI
	AuthorizationNumber *string
	AuthorizationDate   *time.Time
	PaymentMethodCode   string // Tabla 24 SRI (01, 16, 19, 20...)
	CreditDays          int    // Plazo de crédito en días; 0 = contado
	Notes               string // Texto libre "Etiqueta: valor;..." para infoAdicional
	Details             []*DocumentDetail
	Version             int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsTerminal indica si el SRI ya emitió un veredicto final sobre el documento.
func (d *Document) IsTerminal() bool {
	return d.Status == DocumentStatusSRIAuthorized || d.Status == DocumentStatusSRIRejected
}

// AwaitsSubmission indica si el documento debe enviarse (o reenviarse) a recepción.
func (d *Document) AwaitsSubmission() bool {
	switch d.Status {
	case DocumentStatusPending, DocumentStatusSRITimeout, DocumentStatusSRIUnavailable:
		return d.IsElectronic
	}
	return false
}

// DocumentDetail línea de detalle de un comprobante.
type DocumentDetail struct {
	ID            string
	DocumentID    string
	ProductID     string
	ProductCode   string // codigoPrincipal
	AuxCode       string // codigoAuxiliar (opcional)
	ProductName   string
	Description   string // descripción extendida del producto (detAdicional)
	WarehouseName string
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	Discount      decimal.Decimal
	TaxClass      *TaxClass
	TaxRate       decimal.Decimal
	TaxAmount     decimal.Decimal
}

// Subtotal devuelve el precio total sin impuestos de la línea (cantidad × precio − descuento).
func (d *DocumentDetail) Subtotal() decimal.Decimal {
	return d.Quantity.Mul(d.UnitPrice).Sub(d.Discount)
}
