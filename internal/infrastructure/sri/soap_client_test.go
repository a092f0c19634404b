package sri_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/sri-facturacion/internal/domain/entity"
	"github.com/jhoicas/sri-facturacion/internal/infrastructure/sri"
)

const (
	receptionReceived = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>
<ns2:validarComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.recepcion">
<RespuestaRecepcionComprobante><estado>RECIBIDA</estado><comprobantes/></RespuestaRecepcionComprobante>
</ns2:validarComprobanteResponse></soap:Body></soap:Envelope>`

	receptionReturned = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>
<ns2:validarComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.recepcion">
<RespuestaRecepcionComprobante><estado>DEVUELTA</estado><comprobantes><comprobante>
<claveAcceso>1503202401099001234500110010020000000421234567811</claveAcceso>
<mensajes>
<mensaje><identificador>35</identificador><mensaje>ARCHIVO NO CUMPLE ESTRUCTURA XML</mensaje><informacionAdicional>Se encontró [totalDescuento]</informacionAdicional><tipo>ERROR</tipo></mensaje>
<mensaje><identificador>39</identificador><mensaje>FIRMA INVALIDA</mensaje><tipo>ERROR</tipo></mensaje>
</mensajes></comprobante></comprobantes></RespuestaRecepcionComprobante>
</ns2:validarComprobanteResponse></soap:Body></soap:Envelope>`

	receptionAlreadyRegistered = `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>
<ns2:validarComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.recepcion">
<RespuestaRecepcionComprobante><estado>DEVUELTA</estado><comprobantes><comprobante><mensajes>
<mensaje><identificador>43</identificador><mensaje>CLAVE ACCESO REGISTRADA</mensaje><tipo>ERROR</tipo></mensaje>
</mensajes></comprobante></comprobantes></RespuestaRecepcionComprobante>
</ns2:validarComprobanteResponse></soap:Body></soap:Envelope>`

	receptionOddState = `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>
<ns2:validarComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.recepcion">
<RespuestaRecepcionComprobante><estado>EN REVISION</estado></RespuestaRecepcionComprobante>
</ns2:validarComprobanteResponse></soap:Body></soap:Envelope>`

	soapFault = `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>
<soap:Fault><faultcode>soap:Server</faultcode><faultstring>Error interno</faultstring></soap:Fault>
</soap:Body></soap:Envelope>`

	maintenancePage = `<html><head><title>SRI</title></head><body><h1>Servicio en mantenimiento</h1></body></html>`

	authorizationAuthorized = `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>
<ns2:autorizacionComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.autorizacion">
<RespuestaAutorizacionComprobante><claveAccesoConsultada>123</claveAccesoConsultada><numeroComprobantes>1</numeroComprobantes>
<autorizaciones><autorizacion><estado>AUTORIZADO</estado><numeroAutorizacion>123456</numeroAutorizacion>
<fechaAutorizacion>2024-03-15T10:20:30-05:00</fechaAutorizacion><ambiente>PRUEBAS</ambiente>
<comprobante><![CDATA[<factura id="comprobante"></factura>]]></comprobante><mensajes/></autorizacion></autorizaciones>
</RespuestaAutorizacionComprobante></ns2:autorizacionComprobanteResponse></soap:Body></soap:Envelope>`

	authorizationRejected = `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>
<ns2:autorizacionComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.autorizacion">
<RespuestaAutorizacionComprobante><autorizaciones><autorizacion><estado>NO AUTORIZADO</estado>
<mensajes><mensaje><identificador>56</identificador><mensaje>ERROR ESTABLECIMIENTO CERRADO</mensaje><tipo>ERROR</tipo></mensaje></mensajes>
</autorizacion></autorizaciones></RespuestaAutorizacionComprobante>
</ns2:autorizacionComprobanteResponse></soap:Body></soap:Envelope>`

	authorizationEmpty = `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>
<ns2:autorizacionComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.autorizacion">
<RespuestaAutorizacionComprobante><claveAccesoConsultada>123</claveAccesoConsultada><numeroComprobantes>0</numeroComprobantes><autorizaciones/></RespuestaAutorizacionComprobante>
</ns2:autorizacionComprobanteResponse></soap:Body></soap:Envelope>`

	authorizationInProcess = `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>
<ns2:autorizacionComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.autorizacion">
<RespuestaAutorizacionComprobante><autorizaciones><autorizacion><estado>EN PROCESO</estado></autorizacion></autorizaciones></RespuestaAutorizacionComprobante>
</ns2:autorizacionComprobanteResponse></soap:Body></soap:Envelope>`
)

// fakeSRI servidor SOAP falso que registra la última petición.
type fakeSRI struct {
	server     *httptest.Server
	lastBody   string
	lastAction string
}

func newFakeSRI(t *testing.T, status int, body string) *fakeSRI {
	t.Helper()
	f := &fakeSRI{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		f.lastBody = string(raw)
		f.lastAction = r.Header.Get("SOAPAction")
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func clientFor(url string, timeout time.Duration) *sri.SOAPClient {
	return sri.NewSOAPClient(timeout).WithEndpoints(sri.Endpoints{
		ReceptionTest:           url,
		ReceptionProduction:     url,
		AuthorizationTest:       url,
		AuthorizationProduction: url,
	})
}

func TestReceive_Recibida(t *testing.T) {
	fake := newFakeSRI(t, http.StatusOK, receptionReceived)
	signed := []byte(`<?xml version="1.0" encoding="UTF-8"?><factura id="comprobante" version="1.1.0"></factura>`)

	res := clientFor(fake.server.URL, time.Second).Receive(context.Background(), signed, entity.EnvironmentTest)

	assert.Equal(t, sri.OutcomeReceived, res.Outcome)
	assert.Equal(t, "RECIBIDA", res.State)
	assert.Contains(t, fake.lastBody, "validarComprobante")
	assert.Contains(t, fake.lastBody, "<![CDATA[", "el XML firmado viaja en CDATA")
	assert.Contains(t, fake.lastBody, `<factura id="comprobante" version="1.1.0">`)
	assert.Contains(t, fake.lastAction, "validarComprobante")
}

func TestReceive_DevueltaFormateaUnaLineaPorError(t *testing.T) {
	fake := newFakeSRI(t, http.StatusOK, receptionReturned)

	res := clientFor(fake.server.URL, time.Second).Receive(context.Background(), []byte("<factura/>"), entity.EnvironmentTest)

	require.Equal(t, sri.OutcomeRejected, res.Outcome)
	lines := strings.Split(res.Message, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "35: ARCHIVO NO CUMPLE ESTRUCTURA XML Se encontró [totalDescuento]", lines[0])
	assert.Equal(t, "39: FIRMA INVALIDA", lines[1])
}

func TestReceive_ClaveYaRegistradaCuentaComoRecibida(t *testing.T) {
	fake := newFakeSRI(t, http.StatusOK, receptionAlreadyRegistered)

	res := clientFor(fake.server.URL, time.Second).Receive(context.Background(), []byte("<factura/>"), entity.EnvironmentTest)

	assert.Equal(t, sri.OutcomeReceived, res.Outcome)
	assert.Equal(t, "DEVUELTA", res.State)
	assert.Contains(t, res.Message, "43: CLAVE ACCESO REGISTRADA")
}

func TestReceive_EstadoInesperado(t *testing.T) {
	fake := newFakeSRI(t, http.StatusOK, receptionOddState)

	res := clientFor(fake.server.URL, time.Second).Receive(context.Background(), []byte("<factura/>"), entity.EnvironmentTest)

	assert.Equal(t, sri.OutcomeUnexpectedState, res.Outcome)
	assert.Equal(t, "EN REVISION", res.State, "el literal se conserva tal cual")
}

func TestReceive_Fault(t *testing.T) {
	fake := newFakeSRI(t, http.StatusInternalServerError, soapFault)

	res := clientFor(fake.server.URL, time.Second).Receive(context.Background(), []byte("<factura/>"), entity.EnvironmentTest)

	assert.Equal(t, sri.OutcomeUnknownError, res.Outcome)
	assert.Contains(t, res.Message, "Error interno")
}

func TestReceive_PaginaDeMantenimiento(t *testing.T) {
	fake := newFakeSRI(t, http.StatusOK, maintenancePage)

	res := clientFor(fake.server.URL, time.Second).Receive(context.Background(), []byte("<factura/>"), entity.EnvironmentTest)

	assert.Equal(t, sri.OutcomeMalformedResponse, res.Outcome)
}

func TestReceive_TextoPlano503(t *testing.T) {
	fake := newFakeSRI(t, http.StatusServiceUnavailable, "Service Unavailable")

	res := clientFor(fake.server.URL, time.Second).Receive(context.Background(), []byte("<factura/>"), entity.EnvironmentTest)

	assert.Equal(t, sri.OutcomeServiceUnavailable, res.Outcome)
}

func TestReceive_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	res := clientFor(srv.URL, 50*time.Millisecond).Receive(context.Background(), []byte("<factura/>"), entity.EnvironmentTest)

	assert.Equal(t, sri.OutcomeTimeout, res.Outcome)
	assert.NotEmpty(t, res.Message)
}

func TestReceive_ServicioNoDisponible(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := clientFor(url, time.Second).Receive(context.Background(), []byte("<factura/>"), entity.EnvironmentTest)

	assert.Equal(t, sri.OutcomeServiceUnavailable, res.Outcome)
}

func TestReceive_RespuestaISO88591(t *testing.T) {
	body := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>" +
		`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>` +
		`<RespuestaRecepcionComprobante><estado>DEVUELTA</estado><comprobantes><comprobante><mensajes>` +
		"<mensaje><identificador>26</identificador><mensaje>TAMA\xd1O M\xc1XIMO SUPERADO</mensaje><tipo>ERROR</tipo></mensaje>" +
		`</mensajes></comprobante></comprobantes></RespuestaRecepcionComprobante></soap:Body></soap:Envelope>`
	fake := newFakeSRI(t, http.StatusOK, body)

	res := clientFor(fake.server.URL, time.Second).Receive(context.Background(), []byte("<factura/>"), entity.EnvironmentTest)

	assert.Equal(t, sri.OutcomeRejected, res.Outcome)
	assert.Equal(t, "26: TAMAÑO MÁXIMO SUPERADO", res.Message)
}

func TestReceive_SeleccionDeEndpointPorAmbiente(t *testing.T) {
	test := newFakeSRI(t, http.StatusOK, receptionReceived)
	prod := newFakeSRI(t, http.StatusOK, receptionReceived)
	client := sri.NewSOAPClient(time.Second).WithEndpoints(sri.Endpoints{
		ReceptionTest:       test.server.URL,
		ReceptionProduction: prod.server.URL,
	})

	client.Receive(context.Background(), []byte("<factura/>"), entity.EnvironmentProduction)
	assert.Empty(t, test.lastBody)
	assert.NotEmpty(t, prod.lastBody)

	client.Receive(context.Background(), []byte("<factura/>"), entity.EnvironmentTest)
	assert.NotEmpty(t, test.lastBody)
}

func TestDefaultEndpoints(t *testing.T) {
	e := sri.DefaultEndpoints()
	assert.Equal(t, "https://celcer.sri.gob.ec/comprobantes-electronicos-ws/RecepcionComprobantesOffline", e.ReceptionTest)
	assert.Equal(t, "https://cel.sri.gob.ec/comprobantes-electronicos-ws/RecepcionComprobantesOffline", e.ReceptionProduction)
	assert.Equal(t, "https://celcer.sri.gob.ec/comprobantes-electronicos-ws/AutorizacionComprobantesOffline", e.AuthorizationTest)
	assert.Equal(t, "https://cel.sri.gob.ec/comprobantes-electronicos-ws/AutorizacionComprobantesOffline", e.AuthorizationProduction)
}

func TestAuthorize_Autorizado(t *testing.T) {
	fake := newFakeSRI(t, http.StatusOK, authorizationAuthorized)

	res := clientFor(fake.server.URL, time.Second).Authorize(context.Background(), "123", entity.EnvironmentTest)

	require.Equal(t, sri.OutcomeAuthorized, res.Outcome)
	assert.Equal(t, "123456", res.AuthorizationNumber)
	assert.Contains(t, fake.lastBody, "<claveAccesoComprobante>123</claveAccesoComprobante>")
	assert.Contains(t, fake.lastAction, "autorizacionComprobante")

	loc := time.FixedZone("ECT", -5*60*60)
	at, ok := res.AuthorizedAt(loc)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 15, 10, 20, 30, 0, loc).Unix(), at.Unix())
	assert.Equal(t, loc, at.Location())
}

func TestAuthorize_NoAutorizado(t *testing.T) {
	fake := newFakeSRI(t, http.StatusOK, authorizationRejected)

	res := clientFor(fake.server.URL, time.Second).Authorize(context.Background(), "123", entity.EnvironmentTest)

	assert.Equal(t, sri.OutcomeNotAuthorized, res.Outcome)
	assert.Equal(t, "56: ERROR ESTABLECIMIENTO CERRADO", res.Message)
}

func TestAuthorize_SinAutorizacionesEsEnProceso(t *testing.T) {
	for name, body := range map[string]string{"vacío": authorizationEmpty, "en proceso": authorizationInProcess} {
		t.Run(name, func(t *testing.T) {
			fake := newFakeSRI(t, http.StatusOK, body)
			res := clientFor(fake.server.URL, time.Second).Authorize(context.Background(), "123", entity.EnvironmentTest)
			assert.Equal(t, sri.OutcomeInProcess, res.Outcome)
		})
	}
}

func TestAuthorize_Transporte(t *testing.T) {
	fake := newFakeSRI(t, http.StatusOK, maintenancePage)
	res := clientFor(fake.server.URL, time.Second).Authorize(context.Background(), "123", entity.EnvironmentTest)
	assert.Equal(t, sri.OutcomeMalformedResponse, res.Outcome)
	assert.True(t, res.Outcome.IsTransportFailure())
}

func TestAuthorizedAt_SinZona(t *testing.T) {
	loc := time.FixedZone("ECT", -5*60*60)
	r := &sri.AuthorizationResult{AuthorizationDate: "15/03/2024 10:20:30"}
	at, ok := r.AuthorizedAt(loc)
	require.True(t, ok)
	assert.Equal(t, 10, at.Hour())

	_, ok = (&sri.AuthorizationResult{AuthorizationDate: "ayer"}).AuthorizedAt(loc)
	assert.False(t, ok)
}
