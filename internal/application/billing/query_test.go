package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/sri-facturacion/internal/application/billing"
	"github.com/jhoicas/sri-facturacion/internal/domain"
	"github.com/jhoicas/sri-facturacion/internal/domain/entity"
)

func TestDocumentQuery_GetStatus(t *testing.T) {
	m := seededStore(t)
	doc := newDocument("doc-9", time.Date(2024, 3, 15, 9, 0, 0, 0, ect))
	num := "1503202401099001234500110010020000000071234567815"
	at := time.Date(2024, 3, 15, 10, 5, 0, 0, ect)
	doc.Status = entity.DocumentStatusSRIAuthorized
	doc.AccessKey = num
	doc.AuthorizationNumber = &num
	doc.AuthorizationDate = &at
	doc.SRIMessage = "AUTORIZADO"
	m.put(doc)

	opener := &memOpener{m: m}
	q := billing.NewDocumentQueryService(opener)

	out, err := q.GetStatus(context.Background(), "co-1", "doc-9")
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentStatusSRIAuthorized, out.Status)
	assert.Equal(t, num, out.AuthorizationNumber)
	assert.Equal(t, "TEST", out.Environment)
	assert.True(t, out.Terminal)
	require.NotNil(t, out.AuthorizationDate)
	assert.True(t, at.Equal(*out.AuthorizationDate))
	assert.Equal(t, opener.opened, opener.closed, "la sesión debe cerrarse")
}

func TestDocumentQuery_OtraEmpresaEsForbidden(t *testing.T) {
	q := billing.NewDocumentQueryService(&memOpener{m: seededStore(t)})

	_, err := q.GetStatus(context.Background(), "co-otra", "doc-1")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = q.GetStatus(context.Background(), "co-1", "no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentQuery_GetSignedXML(t *testing.T) {
	m := seededStore(t)
	q := billing.NewDocumentQueryService(&memOpener{m: m})

	_, err := q.GetSignedXML(context.Background(), "co-1", "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound, "PENDING sin firmar no tiene XML")

	doc := m.get("doc-1")
	doc.XMLSigned = "<factura id=\"comprobante\"/>"
	m.put(&doc)

	xml, err := q.GetSignedXML(context.Background(), "co-1", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "<factura id=\"comprobante\"/>", xml)
}
