// Package sri contiene catálogos y puertos alineados a la Ficha Técnica de
// Comprobantes Electrónicos del SRI (Ecuador), esquema offline.
package sri

// =============================================================================
// Tabla 2 - Tipo de emisión
// =============================================================================

const (
	EmissionTypeNormal = "1" // Emisión normal (único valor vigente en esquema offline)
)

// =============================================================================
// Tabla 6 - Tipo de identificación del comprador / proveedor
// =============================================================================

const (
	IdentificationTypeRUC           = "04"
	IdentificationTypeCedula        = "05"
	IdentificationTypePassport      = "06"
	IdentificationTypeFinalConsumer = "07" // Consumidor final (9999999999999)
	IdentificationTypeForeign       = "08" // Identificación del exterior
)

// FinalConsumerID identificación fija del consumidor final.
const FinalConsumerID = "9999999999999"

// =============================================================================
// Tabla 16 - Impuestos
// =============================================================================

const (
	TaxCodeIVA    = "2"
	TaxCodeICE    = "3"
	TaxCodeIRBPNR = "5"
)

// =============================================================================
// Tabla 17 - Códigos de porcentaje de IVA
// =============================================================================

const (
	IVAPercentageZero     = "0"  // 0%
	IVAPercentage12       = "2"  // 12%
	IVAPercentage14       = "3"  // 14%
	IVAPercentage15       = "4"  // 15%
	IVAPercentage5        = "5"  // 5%
	IVAPercentageNotTaxed = "6"  // No objeto de impuesto
	IVAPercentageExempt   = "7"  // Exento de IVA
	IVAPercentage8        = "8"  // IVA diferenciado 8%
	IVAPercentage13       = "10" // 13%
)

// =============================================================================
// Tabla 24 - Formas de pago
// =============================================================================

const (
	PaymentMethodCash            = "01" // Sin utilización del sistema financiero
	PaymentMethodDebitCard       = "16"
	PaymentMethodElectronic      = "17" // Dinero electrónico
	PaymentMethodPrepaidCard     = "18"
	PaymentMethodCreditCard      = "19"
	PaymentMethodFinancialOther  = "20" // Otros con utilización del sistema financiero
	PaymentMethodDebtEndorsement = "21"
)

// TimeUnitDays unidad de tiempo del plazo en pagos/pago.
const TimeUnitDays = "dias"

// Estados literales devueltos por los servicios web offline.
const (
	ReceptionStateReceived          = "RECIBIDA"
	ReceptionStateReturned          = "DEVUELTA"
	AuthorizationStateAuthorized    = "AUTORIZADO"
	AuthorizationStateNotAuthorized = "NO AUTORIZADO"
	AuthorizationStateInProcess     = "EN PROCESO"
)

// Identificadores de mensajes de recepción que indican que el SRI ya tiene el comprobante.
const (
	MessageAccessKeyRegistered   = "43" // CLAVE ACCESO REGISTRADA
	MessageAccessKeyInProcessing = "70" // CLAVE DE ACCESO EN PROCESAMIENTO
)
