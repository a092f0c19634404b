// Package sri implementa la generación del XML de comprobantes electrónicos (esquema offline SRI,
// versión 1.1.0) y los clientes SOAP de recepción y autorización.
package sri

import (
	"time"

	"github.com/jhoicas/sri-facturacion/internal/domain/entity"
)

// XMLVersion versión de los esquemas factura/liquidacionCompra generados.
const XMLVersion = "1.1.0"

// RootElementID valor del atributo id del elemento raíz (Reference URI="#comprobante" en la firma).
const RootElementID = "comprobante"

// DocumentBuildContext contexto con todos los datos necesarios para construir el XML del comprobante.
type DocumentBuildContext struct {
	Document      *entity.Document
	Issuer        *entity.Company
	Establishment *entity.Establishment
	EmissionPoint *entity.EmissionPoint
	Counterparty  *entity.Customer // comprador (factura) o proveedor (liquidación)

	// Location zona horaria del país emisor para fechaEmision; nil = la de IssueDate.
	Location *time.Location
}
