// Package sri: clave de acceso de 49 dígitos de los comprobantes electrónicos (Ficha Técnica SRI,
// esquema offline). Algoritmo del dígito verificador: módulo 11 con pesos 2..7 de derecha a izquierda.
package sri

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"
	"time"

	pkgsri "github.com/jhoicas/sri-facturacion/pkg/sri"
)

// Longitudes fijas de la clave de acceso.
const (
	AccessKeyLength    = 49
	preKeyLength       = 48
	numericCodeLength  = 8
	sequentialLength   = 9
	issuerIDLength     = 13
	establishmentWidth = 3
)

// AccessKeyParams datos que componen la clave de acceso, en el orden exigido por el SRI.
type AccessKeyParams struct {
	IssueDate       time.Time
	DocumentType    string // 2 dígitos (01 factura, 03 liquidación de compra...)
	IssuerRUC       string // se completa con ceros a la izquierda hasta 13
	EnvironmentCode string // 1 = pruebas, 2 = producción
	Establishment   string // 3 dígitos
	EmissionPoint   string // 3 dígitos
	Sequential      int64  // se completa a 9 dígitos
	NumericCode     string // 8 dígitos; vacío = derivado de Seed, o aleatorio sin Seed
	Seed            string // identificador estable del documento (ej. su ID)
	EmissionType    string // vacío = emisión normal
}

// AccessKeyGenerator genera claves de acceso. NumericCode permite fijar el código numérico en tests.
type AccessKeyGenerator struct {
	NumericCode func() string
}

// NewAccessKeyGenerator crea el generador: código derivado de Seed, o aleatorio si no hay Seed.
func NewAccessKeyGenerator() *AccessKeyGenerator {
	return &AccessKeyGenerator{}
}

// Generate arma la pre-clave de 48 dígitos y le añade el dígito verificador.
// Los campos deben ser numéricos y del ancho indicado: es responsabilidad del llamador.
func (g *AccessKeyGenerator) Generate(p AccessKeyParams) string {
	code := p.NumericCode
	switch {
	case code != "":
	case g.NumericCode != nil:
		code = g.NumericCode()
	case p.Seed != "":
		code = SeededNumericCode(p.Seed)
	default:
		code = RandomNumericCode()
	}
	emissionType := p.EmissionType
	if emissionType == "" {
		emissionType = pkgsri.EmissionTypeNormal
	}

	var b strings.Builder
	b.Grow(AccessKeyLength)
	b.WriteString(p.IssueDate.Format("02012006"))
	b.WriteString(p.DocumentType)
	b.WriteString(leftPad(onlyDigits(p.IssuerRUC), issuerIDLength))
	b.WriteString(p.EnvironmentCode)
	b.WriteString(leftPad(p.Establishment, establishmentWidth))
	b.WriteString(leftPad(p.EmissionPoint, establishmentWidth))
	b.WriteString(leftPad(fmt.Sprintf("%d", p.Sequential), sequentialLength))
	b.WriteString(leftPad(code, numericCodeLength))
	b.WriteString(emissionType)

	preKey := b.String()
	return preKey + fmt.Sprintf("%d", CheckDigit(preKey))
}

// GenerateAccessKey genera la clave con el generador por defecto.
func GenerateAccessKey(p AccessKeyParams) string {
	return NewAccessKeyGenerator().Generate(p)
}

// CheckDigit calcula el dígito verificador módulo 11 de la pre-clave.
// Recorre de derecha a izquierda con pesos 2,3,4,5,6,7 cíclicos; 11 - (suma mod 11),
// con 10 → 1 y 11 → 0.
func CheckDigit(preKey string) int {
	sum := 0
	weight := 2
	for i := len(preKey) - 1; i >= 0; i-- {
		sum += int(preKey[i]-'0') * weight
		weight++
		if weight > 7 {
			weight = 2
		}
	}
	digit := 11 - sum%11
	switch digit {
	case 10:
		return 1
	case 11:
		return 0
	}
	return digit
}

// ValidAccessKey verifica longitud, que sea numérica y que el último dígito coincida con el recalculado.
func ValidAccessKey(key string) bool {
	if len(key) != AccessKeyLength || onlyDigits(key) != key {
		return false
	}
	return int(key[preKeyLength]-'0') == CheckDigit(key[:preKeyLength])
}

// SeededNumericCode código numérico de 8 dígitos estable para un mismo seed: volver a
// preparar el documento reproduce la misma clave de acceso.
func SeededNumericCode(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return fmt.Sprintf("%08d", binary.BigEndian.Uint64(sum[:8])%100_000_000)
}

// RandomNumericCode devuelve un código numérico de 8 dígitos.
func RandomNumericCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(100_000_000))
	if err != nil {
		return fmt.Sprintf("%08d", time.Now().UnixNano()%100_000_000)
	}
	return fmt.Sprintf("%08d", n.Int64())
}

func leftPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
