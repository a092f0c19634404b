package sri

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/sri-facturacion/internal/domain"
	"github.com/jhoicas/sri-facturacion/internal/domain/entity"
	domsri "github.com/jhoicas/sri-facturacion/internal/domain/sri"
	pkgsri "github.com/jhoicas/sri-facturacion/pkg/sri"
)

const (
	moneyPlaces    = 2
	quantityPlaces = 6
	maxTextLength  = 300
	maxDetailExtra = 3 // detAdicional por detalle (XSD)
	currency       = "DOLAR"
)

// XMLBuilderService construye el XML del comprobante (sin firma).
type XMLBuilderService struct{}

// NewXMLBuilderService crea el servicio.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{}
}

// taxGroup acumulado de totalImpuesto por clase de impuesto.
type taxGroup struct {
	class *entity.TaxClass
	base  decimal.Decimal
	value decimal.Decimal
}

// documentTotals totales derivados de las líneas de detalle.
type documentTotals struct {
	subtotal decimal.Decimal
	discount decimal.Decimal
	taxes    []*taxGroup // en orden de primera aparición
	grand    decimal.Decimal
}

// Build genera el XML UTF-8 de la factura o liquidación de compra.
// No persiste, no firma y no envía.
func (s *XMLBuilderService) Build(ctx *DocumentBuildContext) ([]byte, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	totals, err := summarize(ctx.Document)
	if err != nil {
		return nil, err
	}
	if !domsri.ValidAccessKey(ctx.Document.AccessKey) {
		return nil, fmt.Errorf("%w: clave de acceso inválida o sin asignar", domain.ErrMissingEntity)
	}

	rootTag, infoTag := "factura", "infoFactura"
	if ctx.Document.DocumentType == entity.DocumentTypePurchaseSettlement {
		rootTag, infoTag = "liquidacionCompra", "infoLiquidacionCompra"
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement(rootTag)
	root.CreateAttr("id", RootElementID)
	root.CreateAttr("version", XMLVersion)

	s.writeInfoTributaria(root, ctx)
	if rootTag == "factura" {
		s.writeInfoFactura(root.CreateElement(infoTag), ctx, totals)
	} else {
		s.writeInfoLiquidacion(root.CreateElement(infoTag), ctx, totals)
	}
	s.writeDetalles(root, ctx.Document)
	s.writeInfoAdicional(root, ctx)

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("sri: serializar XML: %w", err)
	}
	return out, nil
}

func validateContext(ctx *DocumentBuildContext) error {
	if ctx == nil || ctx.Document == nil {
		return fmt.Errorf("%w: documento", domain.ErrMissingEntity)
	}
	var missing []string
	if ctx.Issuer == nil {
		missing = append(missing, "emisor")
	}
	if ctx.Establishment == nil {
		missing = append(missing, "establecimiento")
	}
	if ctx.EmissionPoint == nil {
		missing = append(missing, "punto de emisión")
	}
	if ctx.Counterparty == nil {
		missing = append(missing, "contraparte")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrMissingEntity, strings.Join(missing, ", "))
	}
	if !ctx.Document.IsElectronic {
		return fmt.Errorf("documento %s: %w", ctx.Document.ID, domain.ErrNotElectronic)
	}
	return nil
}

// lineAmounts subtotal, descuento e impuesto de la línea ya redondeados a 2 decimales.
// Los totales suman estos valores para que coincidan con lo que muestra cada detalle.
func lineAmounts(d *entity.DocumentDetail) (subtotal, discount, tax decimal.Decimal) {
	return d.Subtotal().Round(moneyPlaces), d.Discount.Round(moneyPlaces), d.TaxAmount.Round(moneyPlaces)
}

// summarize valida las líneas y acumula subtotal, descuento e impuestos por clase.
func summarize(doc *entity.Document) (*documentTotals, error) {
	if len(doc.Details) == 0 {
		return nil, &domain.MissingDetailsError{DocumentID: doc.ID}
	}
	t := &documentTotals{}
	byKey := make(map[string]*taxGroup)
	for i, d := range doc.Details {
		if d.TaxClass == nil {
			return nil, &domain.MissingTaxConfigurationError{DocumentID: doc.ID, Line: i + 1, ProductID: d.ProductID}
		}
		sub, discount, tax := lineAmounts(d)
		t.subtotal = t.subtotal.Add(sub)
		t.discount = t.discount.Add(discount)

		g, ok := byKey[d.TaxClass.Key()]
		if !ok {
			g = &taxGroup{class: d.TaxClass}
			byKey[d.TaxClass.Key()] = g
			t.taxes = append(t.taxes, g)
		}
		g.base = g.base.Add(sub)
		g.value = g.value.Add(tax)
	}
	t.grand = t.subtotal
	for _, g := range t.taxes {
		t.grand = t.grand.Add(g.value)
	}
	return t, nil
}

func (s *XMLBuilderService) writeInfoTributaria(root *etree.Element, ctx *DocumentBuildContext) {
	doc, issuer := ctx.Document, ctx.Issuer
	info := root.CreateElement("infoTributaria")
	addText(info, "ambiente", doc.Environment.Code())
	addText(info, "tipoEmision", pkgsri.EmissionTypeNormal)
	addText(info, "razonSocial", truncate(issuer.LegalName))
	if issuer.TradeName != "" {
		addText(info, "nombreComercial", truncate(issuer.TradeName))
	}
	addText(info, "ruc", issuer.RUC)
	addText(info, "claveAcceso", doc.AccessKey)
	addText(info, "codDoc", doc.DocumentType)
	addText(info, "estab", ctx.Establishment.Code)
	addText(info, "ptoEmi", ctx.EmissionPoint.Code)
	addText(info, "secuencial", fmt.Sprintf("%09d", doc.Sequential))
	addText(info, "dirMatriz", truncate(issuer.MatrixAddress))
	if issuer.RimpeTaxpayer {
		addText(info, "contribuyenteRimpe", "CONTRIBUYENTE RÉGIMEN RIMPE")
	}
}

// writeIssuerHeader campos comunes al inicio de infoFactura / infoLiquidacionCompra.
func (s *XMLBuilderService) writeIssuerHeader(info *etree.Element, ctx *DocumentBuildContext) {
	issue := ctx.Document.IssueDate
	if ctx.Location != nil {
		issue = issue.In(ctx.Location)
	}
	addText(info, "fechaEmision", issue.Format("02/01/2006"))
	if ctx.Establishment.Address != "" {
		addText(info, "dirEstablecimiento", truncate(ctx.Establishment.Address))
	}
	if ctx.Issuer.SpecialContributor != "" {
		addText(info, "contribuyenteEspecial", ctx.Issuer.SpecialContributor)
	}
	addText(info, "obligadoContabilidad", yesNo(ctx.Issuer.KeepsAccounting))
}

func (s *XMLBuilderService) writeInfoFactura(info *etree.Element, ctx *DocumentBuildContext, t *documentTotals) {
	cp := ctx.Counterparty
	s.writeIssuerHeader(info, ctx)
	addText(info, "tipoIdentificacionComprador", IdentificationTypeCode(cp))
	addText(info, "razonSocialComprador", truncate(cp.Name))
	addText(info, "identificacionComprador", cp.TaxID)
	if cp.Address != "" {
		addText(info, "direccionComprador", truncate(cp.Address))
	}
	addText(info, "totalSinImpuestos", formatMoney(t.subtotal))
	addText(info, "totalDescuento", formatMoney(t.discount))
	s.writeTotalConImpuestos(info, t)
	addText(info, "propina", formatMoney(decimal.Zero))
	addText(info, "importeTotal", formatMoney(t.grand))
	addText(info, "moneda", currency)
	s.writePagos(info, ctx.Document, t)
}

func (s *XMLBuilderService) writeInfoLiquidacion(info *etree.Element, ctx *DocumentBuildContext, t *documentTotals) {
	cp := ctx.Counterparty
	s.writeIssuerHeader(info, ctx)
	addText(info, "tipoIdentificacionProveedor", IdentificationTypeCode(cp))
	addText(info, "razonSocialProveedor", truncate(cp.Name))
	addText(info, "identificacionProveedor", cp.TaxID)
	if cp.Address != "" {
		addText(info, "direccionProveedor", truncate(cp.Address))
	}
	addText(info, "totalSinImpuestos", formatMoney(t.subtotal))
	addText(info, "totalDescuento", formatMoney(t.discount))
	s.writeTotalConImpuestos(info, t)
	addText(info, "importeTotal", formatMoney(t.grand))
	addText(info, "moneda", currency)
	s.writePagos(info, ctx.Document, t)
}

func (s *XMLBuilderService) writeTotalConImpuestos(info *etree.Element, t *documentTotals) {
	totals := info.CreateElement("totalConImpuestos")
	for _, g := range t.taxes {
		ti := totals.CreateElement("totalImpuesto")
		addText(ti, "codigo", g.class.Code)
		addText(ti, "codigoPorcentaje", g.class.PercentageCode)
		addText(ti, "baseImponible", formatMoney(g.base))
		addText(ti, "tarifa", formatMoney(g.class.Rate))
		addText(ti, "valor", formatMoney(g.value))
	}
}

func (s *XMLBuilderService) writePagos(info *etree.Element, doc *entity.Document, t *documentTotals) {
	method := doc.PaymentMethodCode
	if method == "" {
		method = pkgsri.PaymentMethodCash
	}
	pago := info.CreateElement("pagos").CreateElement("pago")
	addText(pago, "formaPago", method)
	addText(pago, "total", formatMoney(t.grand))
	if doc.CreditDays > 0 {
		addText(pago, "plazo", strconv.Itoa(doc.CreditDays))
		addText(pago, "unidadTiempo", pkgsri.TimeUnitDays)
	}
}

func (s *XMLBuilderService) writeDetalles(root *etree.Element, doc *entity.Document) {
	detalles := root.CreateElement("detalles")
	for i, d := range doc.Details {
		det := detalles.CreateElement("detalle")
		code := d.ProductCode
		if code == "" {
			code = d.ProductID
		}
		addText(det, "codigoPrincipal", truncateTo(code, 25))
		if d.AuxCode != "" {
			addText(det, "codigoAuxiliar", truncateTo(d.AuxCode, 25))
		}
		desc := d.ProductName
		if desc == "" {
			desc = "Item " + strconv.Itoa(i+1)
		}
		addText(det, "descripcion", truncate(desc))
		addText(det, "cantidad", formatQuantity(d.Quantity))
		sub, discount, tax := lineAmounts(d)
		addText(det, "precioUnitario", formatUnitPrice(d.UnitPrice))
		addText(det, "descuento", formatMoney(discount))
		addText(det, "precioTotalSinImpuesto", formatMoney(sub))

		if extras := detailExtras(d); len(extras) > 0 {
			adicionales := det.CreateElement("detallesAdicionales")
			for _, f := range extras {
				da := adicionales.CreateElement("detAdicional")
				da.CreateAttr("nombre", f.Name)
				da.CreateAttr("valor", truncate(f.Value))
			}
		}

		rate := d.TaxRate
		if rate.IsZero() {
			rate = d.TaxClass.Rate
		}
		imp := det.CreateElement("impuestos").CreateElement("impuesto")
		addText(imp, "codigo", d.TaxClass.Code)
		addText(imp, "codigoPorcentaje", d.TaxClass.PercentageCode)
		addText(imp, "tarifa", formatMoney(rate))
		addText(imp, "baseImponible", formatMoney(sub))
		addText(imp, "valor", formatMoney(tax))
	}
}

func detailExtras(d *entity.DocumentDetail) []domsri.AdditionalField {
	var extras []domsri.AdditionalField
	if d.Description != "" && d.Description != d.ProductName {
		extras = append(extras, domsri.AdditionalField{Name: "Descripcion", Value: d.Description})
	}
	if d.WarehouseName != "" {
		extras = append(extras, domsri.AdditionalField{Name: "Bodega", Value: d.WarehouseName})
	}
	if len(extras) > maxDetailExtra {
		extras = extras[:maxDetailExtra]
	}
	return extras
}

func (s *XMLBuilderService) writeInfoAdicional(root *etree.Element, ctx *DocumentBuildContext) {
	fields := AdditionalFields(ctx.Counterparty, ctx.Document.Notes)
	if len(fields) == 0 {
		return
	}
	info := root.CreateElement("infoAdicional")
	for _, f := range fields {
		campo := info.CreateElement("campoAdicional")
		campo.CreateAttr("nombre", truncate(f.Name))
		campo.SetText(truncate(f.Value))
	}
}

// AdditionalFields campos de infoAdicional: contacto de la contraparte seguido de las notas.
func AdditionalFields(cp *entity.Customer, notes string) []domsri.AdditionalField {
	var fields []domsri.AdditionalField
	if cp != nil {
		if cp.Email != "" {
			fields = append(fields, domsri.AdditionalField{Name: "Email", Value: cp.Email})
		}
		if cp.Mobile != "" {
			fields = append(fields, domsri.AdditionalField{Name: "Celular", Value: cp.Mobile})
		}
		if cp.Phone != "" {
			fields = append(fields, domsri.AdditionalField{Name: "Teléfono", Value: cp.Phone})
		}
	}
	fields = append(fields, domsri.ParseAdditionalInfo(notes)...)
	if len(fields) > domsri.MaxAdditionalFields {
		fields = fields[:domsri.MaxAdditionalFields]
	}
	return fields
}

// IdentificationTypeCode devuelve el tipo de identificación (tabla 6) de la contraparte.
// Si no está configurado se deduce del largo del TaxID.
func IdentificationTypeCode(cp *entity.Customer) string {
	if cp.IdentificationType != "" {
		return cp.IdentificationType
	}
	switch {
	case cp.TaxID == pkgsri.FinalConsumerID:
		return pkgsri.IdentificationTypeFinalConsumer
	case len(cp.TaxID) == 13 && isDigits(cp.TaxID):
		return pkgsri.IdentificationTypeRUC
	case len(cp.TaxID) == 10 && isDigits(cp.TaxID):
		return pkgsri.IdentificationTypeCedula
	}
	return pkgsri.IdentificationTypePassport
}

func addText(parent *etree.Element, tag, value string) {
	parent.CreateElement(tag).SetText(value)
}

// formatMoney redondea mitad alejándose de cero a 2 decimales con ancho fijo.
func formatMoney(d decimal.Decimal) string {
	return d.Round(moneyPlaces).StringFixed(moneyPlaces)
}

// formatUnitPrice precio unitario con 2 a 6 decimales (XSD 1.1.0), sin ceros sobrantes
// más allá del segundo decimal.
func formatUnitPrice(d decimal.Decimal) string {
	p := d.Round(quantityPlaces)
	places := int32(quantityPlaces)
	for places > moneyPlaces && p.Equal(p.Round(places-1)) {
		places--
	}
	return p.StringFixed(places)
}

// formatQuantity redondea mitad alejándose de cero a 6 decimales con ancho fijo.
func formatQuantity(d decimal.Decimal) string {
	return d.Round(quantityPlaces).StringFixed(quantityPlaces)
}

func yesNo(b bool) string {
	if b {
		return "SI"
	}
	return "NO"
}

func truncate(s string) string {
	return truncateTo(s, maxTextLength)
}

func truncateTo(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
