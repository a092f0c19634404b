package billing_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/sri-facturacion/internal/application/billing"
	"github.com/jhoicas/sri-facturacion/internal/domain/entity"
	domsri "github.com/jhoicas/sri-facturacion/internal/domain/sri"
	infrasri "github.com/jhoicas/sri-facturacion/internal/infrastructure/sri"
)

func claveAcceso(t *testing.T, signedXML string) string {
	t.Helper()
	_, rest, ok := strings.Cut(signedXML, "<claveAcceso>")
	require.True(t, ok, "el XML debe contener claveAcceso")
	key, _, ok := strings.Cut(rest, "</claveAcceso>")
	require.True(t, ok)
	return key
}

// Si el lote no se guarda, el siguiente ciclo vuelve a preparar el documento con la misma clave.
func TestSubmission_LoteFallidoConservaClave(t *testing.T) {
	store := seededStore(t)
	store.saveErr = errors.New("conexión perdida")
	receiver := &fakeReceiver{result: &infrasri.ReceptionResult{Outcome: infrasri.OutcomeReceived, State: "RECIBIDA"}}
	emission := billing.NewEmissionService(nil, infrasri.NewXMLBuilderService(), &fakeSigner{}, dummyCert(), ect)
	job := billing.NewSubmissionJob(emission, receiver)

	report := runner(&memOpener{m: store}, job).RunCycle(context.Background())
	require.Error(t, report.Err)
	assert.Empty(t, store.get("doc-1").AccessKey, "la clave no llegó a guardarse")

	store.saveErr = nil
	report = runner(&memOpener{m: store}, job).RunCycle(context.Background())
	require.NoError(t, report.Err)

	require.Len(t, receiver.received, 2)
	first, second := claveAcceso(t, receiver.received[0]), claveAcceso(t, receiver.received[1])
	assert.Equal(t, first, second, "el reenvío usa la misma clave de acceso")
	assert.True(t, domsri.ValidAccessKey(first))

	doc := store.get("doc-1")
	assert.Equal(t, first, doc.AccessKey)
	assert.Equal(t, entity.DocumentStatusSRIReceived, doc.Status)
}

func TestSubmissionJob_RechazaEstadosSinEnvio(t *testing.T) {
	store := seededStore(t)
	receiver := &fakeReceiver{result: &infrasri.ReceptionResult{Outcome: infrasri.OutcomeReceived}}
	job := billing.NewSubmissionJob(newEmission(&fakeSigner{}), receiver)
	closed := 0
	session := memSession{m: store, closed: &closed}

	for _, status := range []string{entity.DocumentStatusSRIReceived, entity.DocumentStatusSRIAuthorized, entity.DocumentStatusSRIRejected} {
		doc := store.get("doc-1")
		doc.Status = status
		assert.Error(t, job.Action(context.Background(), session, &doc), status)
		assert.Equal(t, status, doc.Status)
	}

	doc := store.get("doc-1")
	doc.IsElectronic = false
	assert.Error(t, job.Action(context.Background(), session, &doc), "no electrónico")
	assert.Empty(t, receiver.received)
}
