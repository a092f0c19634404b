package sri

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/beevik/etree"
	"golang.org/x/text/encoding/charmap"

	"github.com/jhoicas/sri-facturacion/internal/domain/entity"
	pkgsri "github.com/jhoicas/sri-facturacion/pkg/sri"
)

// ── Endpoints ────────────────────────────────────────────────────────────────

const (
	hostTest       = "https://celcer.sri.gob.ec"
	hostProduction = "https://cel.sri.gob.ec"
	receptionPath  = "/comprobantes-electronicos-ws/RecepcionComprobantesOffline"
	authPath       = "/comprobantes-electronicos-ws/AutorizacionComprobantesOffline"

	soapNS          = "http://schemas.xmlsoap.org/soap/envelope/"
	receptionNS     = "http://ec.gob.sri.ws.recepcion"
	authorizationNS = "http://ec.gob.sri.ws.autorizacion"

	// DefaultRequestTimeout límite por llamada al SRI.
	DefaultRequestTimeout = 25 * time.Second

	maxResponseBytes = 4 << 20
)

// Endpoints URLs de los servicios offline por ambiente.
type Endpoints struct {
	ReceptionTest           string
	ReceptionProduction     string
	AuthorizationTest       string
	AuthorizationProduction string
}

// DefaultEndpoints URLs oficiales de pruebas (celcer) y producción (cel).
func DefaultEndpoints() Endpoints {
	return Endpoints{
		ReceptionTest:           hostTest + receptionPath,
		ReceptionProduction:     hostProduction + receptionPath,
		AuthorizationTest:       hostTest + authPath,
		AuthorizationProduction: hostProduction + authPath,
	}
}

func (e Endpoints) reception(env entity.Environment) string {
	if env == entity.EnvironmentProduction {
		return e.ReceptionProduction
	}
	return e.ReceptionTest
}

func (e Endpoints) authorization(env entity.Environment) string {
	if env == entity.EnvironmentProduction {
		return e.AuthorizationProduction
	}
	return e.AuthorizationTest
}

// ── Cliente ──────────────────────────────────────────────────────────────────

// SOAPClient cliente de los servicios web offline de recepción y autorización del SRI.
type SOAPClient struct {
	httpClient *http.Client
	endpoints  Endpoints
	timeout    time.Duration
}

// NewSOAPClient construye el cliente; timeout <= 0 usa DefaultRequestTimeout.
func NewSOAPClient(timeout time.Duration) *SOAPClient {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &SOAPClient{
		httpClient: &http.Client{},
		endpoints:  DefaultEndpoints(),
		timeout:    timeout,
	}
}

// WithEndpoints reemplaza las URLs (tests, proxies).
func (c *SOAPClient) WithEndpoints(e Endpoints) *SOAPClient {
	c.endpoints = e
	return c
}

// ── Estructuras SOAP ─────────────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	XmlnsS  string   `xml:"xmlns:soapenv,attr"`
	XmlnsEc string   `xml:"xmlns:ec,attr"`
	Header  struct{} `xml:"soapenv:Header"`
	Body    soapBody `xml:"soapenv:Body"`
}

type soapBody struct {
	Validar      *validarComprobante      `xml:"ec:validarComprobante,omitempty"`
	Autorizacion *autorizacionComprobante `xml:"ec:autorizacionComprobante,omitempty"`
}

type validarComprobante struct {
	XML cdata `xml:"xml"`
}

type cdata struct {
	Value string `xml:",cdata"`
}

type autorizacionComprobante struct {
	ClaveAcceso string `xml:"claveAccesoComprobante"`
}

// ── Recepción ────────────────────────────────────────────────────────────────

// Receive envía el comprobante firmado a validarComprobante.
func (c *SOAPClient) Receive(ctx context.Context, signedXML []byte, env entity.Environment) *ReceptionResult {
	envelope := soapEnvelope{
		XmlnsS:  soapNS,
		XmlnsEc: receptionNS,
		Body:    soapBody{Validar: &validarComprobante{XML: cdata{Value: string(signedXML)}}},
	}
	root, failure, msg := c.call(ctx, c.endpoints.reception(env), receptionNS+"/validarComprobante", envelope)
	if failure != "" {
		return &ReceptionResult{Outcome: failure, Message: msg}
	}
	return parseReception(root)
}

func parseReception(root *etree.Element) *ReceptionResult {
	resp := findLocal(root, "RespuestaRecepcionComprobante")
	if resp == nil {
		return &ReceptionResult{Outcome: OutcomeMalformedResponse, Message: "respuesta de recepción sin RespuestaRecepcionComprobante"}
	}
	state := strings.TrimSpace(childText(resp, "estado"))
	msgs := collectMessages(resp)
	res := &ReceptionResult{State: state, Messages: msgs, Message: JoinMessages(msgs)}

	switch state {
	case pkgsri.ReceptionStateReceived:
		res.Outcome = OutcomeReceived
	case pkgsri.ReceptionStateReturned:
		res.Outcome = OutcomeRejected
		if alreadyHeld(msgs) {
			res.Outcome = OutcomeReceived
		}
	default:
		res.Outcome = OutcomeUnexpectedState
		if res.Message == "" {
			res.Message = "estado de recepción inesperado: " + state
		}
	}
	return res
}

// alreadyHeld devuelve true si los únicos errores indican que el SRI ya tiene la clave.
func alreadyHeld(msgs []Message) bool {
	errorsFound := 0
	for _, m := range msgs {
		if strings.EqualFold(m.Type, "ADVERTENCIA") || strings.EqualFold(m.Type, "INFORMATIVO") {
			continue
		}
		errorsFound++
		if m.Identifier != pkgsri.MessageAccessKeyRegistered && m.Identifier != pkgsri.MessageAccessKeyInProcessing {
			return false
		}
	}
	return errorsFound > 0
}

// ── Autorización ─────────────────────────────────────────────────────────────

// Authorize consulta autorizacionComprobante para la clave de acceso.
func (c *SOAPClient) Authorize(ctx context.Context, accessKey string, env entity.Environment) *AuthorizationResult {
	envelope := soapEnvelope{
		XmlnsS:  soapNS,
		XmlnsEc: authorizationNS,
		Body:    soapBody{Autorizacion: &autorizacionComprobante{ClaveAcceso: accessKey}},
	}
	root, failure, msg := c.call(ctx, c.endpoints.authorization(env), authorizationNS+"/autorizacionComprobante", envelope)
	if failure != "" {
		return &AuthorizationResult{Outcome: failure, Message: msg}
	}
	return parseAuthorization(root)
}

func parseAuthorization(root *etree.Element) *AuthorizationResult {
	resp := findLocal(root, "RespuestaAutorizacionComprobante")
	if resp == nil {
		return &AuthorizationResult{Outcome: OutcomeMalformedResponse, Message: "respuesta de autorización sin RespuestaAutorizacionComprobante"}
	}

	var auths []*etree.Element
	if list := findLocal(resp, "autorizaciones"); list != nil {
		auths = childrenLocal(list, "autorizacion")
	}
	if len(auths) == 0 {
		return &AuthorizationResult{Outcome: OutcomeInProcess, Message: "el SRI aún no registra autorizaciones para la clave"}
	}

	// Un AUTORIZADO en el historial prevalece sobre intentos anteriores.
	auth := auths[0]
	for _, a := range auths {
		if strings.TrimSpace(childText(a, "estado")) == pkgsri.AuthorizationStateAuthorized {
			auth = a
			break
		}
	}

	state := strings.TrimSpace(childText(auth, "estado"))
	msgs := collectMessages(auth)
	res := &AuthorizationResult{
		State:               state,
		AuthorizationNumber: strings.TrimSpace(childText(auth, "numeroAutorizacion")),
		AuthorizationDate:   strings.TrimSpace(childText(auth, "fechaAutorizacion")),
		Messages:            msgs,
		Message:             JoinMessages(msgs),
	}
	switch state {
	case pkgsri.AuthorizationStateAuthorized:
		res.Outcome = OutcomeAuthorized
		if res.Message == "" {
			res.Message = "AUTORIZADO " + res.AuthorizationNumber
		}
	case pkgsri.AuthorizationStateNotAuthorized:
		res.Outcome = OutcomeNotAuthorized
	case pkgsri.AuthorizationStateInProcess:
		res.Outcome = OutcomeInProcess
		if res.Message == "" {
			res.Message = pkgsri.AuthorizationStateInProcess
		}
	default:
		res.Outcome = OutcomeUnexpectedState
		if res.Message == "" {
			res.Message = "estado de autorización inesperado: " + state
		}
	}
	return res
}

// ── Transporte ───────────────────────────────────────────────────────────────

// call envía el envelope y devuelve el elemento raíz de la respuesta.
// Si failure no es vacío, la llamada no produjo una respuesta SOAP utilizable.
func (c *SOAPClient) call(ctx context.Context, url, action string, envelope soapEnvelope) (root *etree.Element, failure Outcome, msg string) {
	payload, err := xml.Marshal(envelope)
	if err != nil {
		return nil, OutcomeUnknownError, fmt.Sprintf("soap: serializar envelope: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, OutcomeUnknownError, fmt.Sprintf("soap: crear request: %v", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", `"`+action+`"`)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err), fmt.Sprintf("soap: llamada HTTP fallida: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransportError(ctx, err), fmt.Sprintf("soap: leer respuesta: %v", err)
	}

	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charsetReader
	if err := doc.ReadFromBytes(raw); err != nil || doc.Root() == nil || strings.EqualFold(doc.Root().Tag, "html") {
		if resp.StatusCode == http.StatusBadGateway || resp.StatusCode == http.StatusServiceUnavailable ||
			resp.StatusCode == http.StatusGatewayTimeout {
			return nil, OutcomeServiceUnavailable, fmt.Sprintf("soap: servicio no disponible (HTTP %d)", resp.StatusCode)
		}
		return nil, OutcomeMalformedResponse, fmt.Sprintf("soap: respuesta no es XML válido (HTTP %d): %s", resp.StatusCode, snippet(raw))
	}

	if fault := findLocal(doc.Root(), "Fault"); fault != nil {
		return nil, OutcomeUnknownError, fmt.Sprintf("SOAP Fault [%s]: %s",
			strings.TrimSpace(childText(fault, "faultcode")), strings.TrimSpace(childText(fault, "faultstring")))
	}
	return doc.Root(), "", ""
}

func classifyTransportError(ctx context.Context, err error) Outcome {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return OutcomeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OutcomeTimeout
	}
	if errors.Is(err, context.Canceled) {
		return OutcomeUnknownError
	}
	return OutcomeServiceUnavailable
}

// charsetReader acepta respuestas declaradas en ISO-8859-1 / windows-1252.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "utf-8", "utf8":
		return input, nil
	case "iso-8859-1", "iso8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	}
	return nil, fmt.Errorf("charset no soportado: %s", label)
}

// ── Helpers etree (por nombre local, sin depender del prefijo) ───────────────

func findLocal(el *etree.Element, tag string) *etree.Element {
	if el == nil {
		return nil
	}
	if el.Tag == tag {
		return el
	}
	for _, c := range el.ChildElements() {
		if found := findLocal(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func childrenLocal(el *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	for _, c := range el.ChildElements() {
		if c.Tag == tag {
			out = append(out, c)
		}
	}
	return out
}

func childText(el *etree.Element, tag string) string {
	for _, c := range el.ChildElements() {
		if c.Tag == tag {
			return c.Text()
		}
	}
	return ""
}

// collectMessages recorre todos los bloques mensajes/mensaje bajo el elemento.
func collectMessages(el *etree.Element) []Message {
	var out []Message
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		for _, c := range e.ChildElements() {
			if c.Tag == "mensajes" {
				for _, m := range childrenLocal(c, "mensaje") {
					out = append(out, Message{
						Identifier:     strings.TrimSpace(childText(m, "identificador")),
						Text:           strings.TrimSpace(childText(m, "mensaje")),
						AdditionalInfo: strings.TrimSpace(childText(m, "informacionAdicional")),
						Type:           strings.TrimSpace(childText(m, "tipo")),
					})
				}
				continue
			}
			walk(c)
		}
	}
	walk(el)
	return out
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
