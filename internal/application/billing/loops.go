package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/sri-facturacion/internal/domain/entity"
	infrasri "github.com/jhoicas/sri-facturacion/internal/infrastructure/sri"
)

// Nombres de los trabajos de conciliación.
const (
	SubmissionJobName    = "sri-submission"
	AuthorizationJobName = "sri-authorization"
)

// SubmissionStatuses estados que el trabajo de envío recoge.
var SubmissionStatuses = []string{
	entity.DocumentStatusPending,
	entity.DocumentStatusSRITimeout,
	entity.DocumentStatusSRIUnavailable,
}

// AuthorizationStatuses estados que el trabajo de autorización recoge.
var AuthorizationStatuses = []string{entity.DocumentStatusSRIReceived}

// NewSubmissionJob trabajo de envío a recepción. Los documentos sin XML firmado se
// preparan primero; si la preparación falla el error queda en SRIMessage y el estado no cambia.
func NewSubmissionJob(emission *EmissionService, receiver Receiver) BatchJob {
	return BatchJob{
		Name:     SubmissionJobName,
		Statuses: SubmissionStatuses,
		Action: func(ctx context.Context, s Session, doc *entity.Document) error {
			if !doc.AwaitsSubmission() {
				return fmt.Errorf("documento %s en estado %s: no corresponde envío", doc.ID, doc.Status)
			}
			if doc.XMLSigned == "" {
				if err := emission.Prepare(ctx, s, doc); err != nil {
					doc.SRIMessage = "Error preparando comprobante: " + err.Error()
					return nil
				}
			}
			ApplyReception(doc, receiver.Receive(ctx, []byte(doc.XMLSigned), doc.Environment))
			return nil
		},
	}
}

// NewAuthorizationJob trabajo de consulta de autorización. now se usa cuando el SRI
// no devuelve una fecha interpretable.
func NewAuthorizationJob(authorizer Authorizer, location *time.Location, now func() time.Time) BatchJob {
	if now == nil {
		now = time.Now
	}
	return BatchJob{
		Name:     AuthorizationJobName,
		Statuses: AuthorizationStatuses,
		Action: func(ctx context.Context, s Session, doc *entity.Document) error {
			ApplyAuthorization(doc, authorizer.Authorize(ctx, doc.AccessKey, doc.Environment), location, now())
			return nil
		},
	}
}

// ApplyReception aplica el resultado de recepción a la máquina de estados.
func ApplyReception(doc *entity.Document, res *infrasri.ReceptionResult) {
	switch res.Outcome {
	case infrasri.OutcomeReceived:
		doc.Status = entity.DocumentStatusSRIReceived
	case infrasri.OutcomeRejected:
		doc.Status = entity.DocumentStatusSRIRejected
	case infrasri.OutcomeTimeout:
		doc.Status = entity.DocumentStatusSRITimeout
	case infrasri.OutcomeServiceUnavailable, infrasri.OutcomeMalformedResponse:
		doc.Status = entity.DocumentStatusSRIUnavailable
	}
	doc.SRIMessage = outcomeMessage(string(res.Outcome), res.State, res.Message)
}

// ApplyAuthorization aplica el resultado de autorización. Solo AUTORIZADO y
// NO AUTORIZADO son terminales; el resto deja el documento en SRI_RECEIVED.
func ApplyAuthorization(doc *entity.Document, res *infrasri.AuthorizationResult, location *time.Location, now time.Time) {
	if location == nil {
		location = time.UTC
	}
	switch res.Outcome {
	case infrasri.OutcomeAuthorized:
		doc.Status = entity.DocumentStatusSRIAuthorized
		number := res.AuthorizationNumber
		if number == "" {
			number = doc.AccessKey
		}
		at, ok := res.AuthorizedAt(location)
		if !ok {
			at = now.In(location)
		}
		doc.AuthorizationNumber = &number
		doc.AuthorizationDate = &at
	case infrasri.OutcomeNotAuthorized:
		doc.Status = entity.DocumentStatusSRIRejected
	default:
		doc.Status = entity.DocumentStatusSRIReceived
	}
	doc.SRIMessage = outcomeMessage(string(res.Outcome), res.State, res.Message)
}

// outcomeMessage mensaje legible del SRI; si no hay, la clasificación y el literal.
func outcomeMessage(outcome, state, msg string) string {
	if msg != "" {
		return msg
	}
	if state != "" && state != outcome {
		return outcome + " (" + state + ")"
	}
	return outcome
}
