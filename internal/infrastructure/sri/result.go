package sri

import (
	"strings"
	"time"
)

// Outcome clasificación de una llamada a los servicios web del SRI.
// Los clientes nunca devuelven error: todo resultado de transporte o protocolo es un Outcome.
type Outcome string

const (
	OutcomeReceived           Outcome = "RECEIVED"
	OutcomeRejected           Outcome = "REJECTED"
	OutcomeAuthorized         Outcome = "AUTHORIZED"
	OutcomeNotAuthorized      Outcome = "NOT_AUTHORIZED"
	OutcomeInProcess          Outcome = "IN_PROCESS"
	OutcomeTimeout            Outcome = "TIMEOUT"
	OutcomeServiceUnavailable Outcome = "SERVICE_UNAVAILABLE"
	OutcomeMalformedResponse  Outcome = "MALFORMED_RESPONSE"
	OutcomeUnknownError       Outcome = "UNKNOWN_ERROR"
	OutcomeUnexpectedState    Outcome = "UNEXPECTED_STATE"
)

// IsTransportFailure indica si el resultado no trae un veredicto del SRI.
func (o Outcome) IsTransportFailure() bool {
	switch o {
	case OutcomeTimeout, OutcomeServiceUnavailable, OutcomeMalformedResponse, OutcomeUnknownError:
		return true
	}
	return false
}

// Message mensaje devuelto por el SRI dentro de comprobantes/mensajes o autorizaciones/mensajes.
type Message struct {
	Identifier     string
	Text           string
	AdditionalInfo string
	Type           string // ERROR, ADVERTENCIA, INFORMATIVO
}

// Line formato "identificador: mensaje informacionAdicional".
func (m Message) Line() string {
	line := m.Identifier + ": " + m.Text
	if m.AdditionalInfo != "" {
		line += " " + m.AdditionalInfo
	}
	return line
}

// JoinMessages une los mensajes, uno por línea.
func JoinMessages(msgs []Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, m.Line())
	}
	return strings.Join(lines, "\n")
}

// ReceptionResult resultado de validarComprobante.
type ReceptionResult struct {
	Outcome  Outcome
	State    string // literal del SRI (RECIBIDA, DEVUELTA u otro)
	Message  string
	Messages []Message
}

// AuthorizationResult resultado de autorizacionComprobante.
type AuthorizationResult struct {
	Outcome             Outcome
	State               string
	AuthorizationNumber string
	AuthorizationDate   string // fechaAutorizacion tal como la devuelve el SRI
	Message             string
	Messages            []Message
}

var authorizationDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"02/01/2006 15:04:05",
}

// AuthorizedAt interpreta fechaAutorizacion y la expresa en loc.
// Las fechas sin zona se asumen en loc.
func (r *AuthorizationResult) AuthorizedAt(loc *time.Location) (time.Time, bool) {
	raw := strings.TrimSpace(r.AuthorizationDate)
	if raw == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range authorizationDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}
