package billing_test

import (
	"context"
	"crypto/tls"
	"sort"
	"sync"

	"github.com/jhoicas/sri-facturacion/internal/application/billing"
	"github.com/jhoicas/sri-facturacion/internal/domain"
	"github.com/jhoicas/sri-facturacion/internal/domain/entity"
	"github.com/jhoicas/sri-facturacion/internal/domain/repository"
	infrasri "github.com/jhoicas/sri-facturacion/internal/infrastructure/sri"
)

// memStore persistencia en memoria con control de versión, equivalente al repositorio Postgres.
type memStore struct {
	mu             sync.Mutex
	docs           map[string]*entity.Document
	companies      map[string]*entity.Company
	customers      map[string]*entity.Customer
	establishments map[string]*entity.Establishment
	points         map[string]*entity.EmissionPoint
	saves          int
	listErr        error
	saveErr        error
}

func newMemStore() *memStore {
	return &memStore{
		docs:           map[string]*entity.Document{},
		companies:      map[string]*entity.Company{},
		customers:      map[string]*entity.Customer{},
		establishments: map[string]*entity.Establishment{},
		points:         map[string]*entity.EmissionPoint{},
	}
}

func (m *memStore) put(doc *entity.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *doc
	m.docs[doc.ID] = &c
}

func (m *memStore) get(id string) entity.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.docs[id]
}

func (m *memStore) GetByID(_ context.Context, id string) (*entity.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *d
	return &c, nil
}

func (m *memStore) ListElectronicByStatus(_ context.Context, statuses []string, limit int) ([]*entity.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	wanted := map[string]bool{}
	for _, s := range statuses {
		wanted[s] = true
	}
	var out []*entity.Document
	for _, d := range m.docs {
		if d.IsElectronic && wanted[d.Status] {
			c := *d
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) SaveSRIState(_ context.Context, docs []*entity.Document) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	var stale []string
	for _, d := range docs {
		stored, ok := m.docs[d.ID]
		if !ok || stored.Version != d.Version {
			stale = append(stale, d.ID)
			continue
		}
		d.Version++
		c := *d
		m.docs[d.ID] = &c
	}
	return stale, nil
}

type memCompanies struct{ m *memStore }

func (r memCompanies) GetByID(_ context.Context, id string) (*entity.Company, error) {
	if c, ok := r.m.companies[id]; ok {
		return c, nil
	}
	return nil, domain.ErrNotFound
}

type memCustomers struct{ m *memStore }

func (r memCustomers) GetByID(_ context.Context, id string) (*entity.Customer, error) {
	if c, ok := r.m.customers[id]; ok {
		return c, nil
	}
	return nil, domain.ErrNotFound
}

type memEstablishments struct{ m *memStore }

func (r memEstablishments) GetEstablishment(_ context.Context, id string) (*entity.Establishment, error) {
	if e, ok := r.m.establishments[id]; ok {
		return e, nil
	}
	return nil, domain.ErrNotFound
}

func (r memEstablishments) GetEmissionPoint(_ context.Context, id string) (*entity.EmissionPoint, error) {
	if p, ok := r.m.points[id]; ok {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

type memSession struct {
	m      *memStore
	closed *int
}

func (s memSession) Documents() repository.DocumentRepository { return s.m }
func (s memSession) Companies() repository.CompanyRepository  { return memCompanies{s.m} }
func (s memSession) Customers() repository.CustomerRepository { return memCustomers{s.m} }
func (s memSession) Establishments() repository.EstablishmentRepository {
	return memEstablishments{s.m}
}
func (s memSession) Close() { *s.closed++ }

type memOpener struct {
	m       *memStore
	err     error
	opened  int
	closed  int
	openMux sync.Mutex
}

func (o *memOpener) Open(context.Context) (billing.Session, error) {
	o.openMux.Lock()
	defer o.openMux.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	o.opened++
	return memSession{m: o.m, closed: &o.closed}, nil
}

// fakeSigner agrega un nodo de firma ficticio antes del cierre de la raíz.
type fakeSigner struct{ calls int }

func (f *fakeSigner) Sign(xmlBytes []byte, _ tls.Certificate) ([]byte, error) {
	f.calls++
	return append(append([]byte{}, xmlBytes...), []byte("<!-- firmado -->")...), nil
}

type fakeReceiver struct {
	result   *infrasri.ReceptionResult
	received []string
}

func (f *fakeReceiver) Receive(_ context.Context, signedXML []byte, _ entity.Environment) *infrasri.ReceptionResult {
	f.received = append(f.received, string(signedXML))
	return f.result
}

type fakeAuthorizer struct {
	result *infrasri.AuthorizationResult
	keys   []string
}

func (f *fakeAuthorizer) Authorize(_ context.Context, accessKey string, _ entity.Environment) *infrasri.AuthorizationResult {
	f.keys = append(f.keys, accessKey)
	return f.result
}
