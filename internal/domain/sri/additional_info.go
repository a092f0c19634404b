package sri

import (
	"strconv"
	"strings"
)

// MaxAdditionalFields máximo de campoAdicional que admite el XSD de infoAdicional.
const MaxAdditionalFields = 15

// autoLabelPrefix etiqueta genérica para segmentos sin "Etiqueta:".
const autoLabelPrefix = "Adicional"

// AdditionalField par nombre/valor de <campoAdicional nombre="...">valor</campoAdicional>.
type AdditionalField struct {
	Name  string
	Value string
}

// ParseAdditionalInfo convierte notas libres en campos adicionales.
// Separa por ";" o salto de línea; cada segmento se divide en el primer ":" en etiqueta y valor.
// Los segmentos sin ":" reciben la etiqueta Adicional1, Adicional2, ...
func ParseAdditionalInfo(notes string) []AdditionalField {
	segments := strings.FieldsFunc(notes, func(r rune) bool {
		return r == ';' || r == '\n' || r == '\r'
	})
	var fields []AdditionalField
	auto := 0
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		name, value, found := strings.Cut(seg, ":")
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if !found || name == "" {
			if !found {
				value = seg
			}
			if value == "" {
				continue
			}
			auto++
			name = autoLabelPrefix + strconv.Itoa(auto)
		}
		if value == "" {
			continue
		}
		fields = append(fields, AdditionalField{Name: name, Value: value})
	}
	return fields
}
