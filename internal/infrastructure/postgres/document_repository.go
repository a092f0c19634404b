package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/sri-facturacion/internal/domain"
	"github.com/jhoicas/sri-facturacion/internal/domain/entity"
	"github.com/jhoicas/sri-facturacion/internal/domain/repository"
)

const (
	documentsTable       = "documents"
	documentDetailsTable = "document_details"
)

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

var documentColumns = []string{
	"id", "company_id", "establishment_id", "emission_point_id", "counterparty_id",
	"document_type", "sequential", "issue_date", "access_key", "status", "environment",
	"is_electronic", "xml_signed", "sri_message", "authorization_number", "authorization_date",
	"payment_method_code", "credit_days", "notes", "version", "created_at", "updated_at",
}

// documentRow fila de documents tal como la devuelve pgxscan.
type documentRow struct {
	ID                  string     `db:"id"`
	CompanyID           string     `db:"company_id"`
	EstablishmentID     string     `db:"establishment_id"`
	EmissionPointID     string     `db:"emission_point_id"`
	CounterpartyID      string     `db:"counterparty_id"`
	DocumentType        string     `db:"document_type"`
	Sequential          int64      `db:"sequential"`
	IssueDate           time.Time  `db:"issue_date"`
	AccessKey           *string    `db:"access_key"`
	Status              string     `db:"status"`
	Environment         string     `db:"environment"`
	IsElectronic        bool       `db:"is_electronic"`
	XMLSigned           *string    `db:"xml_signed"`
	SRIMessage          *string    `db:"sri_message"`
	AuthorizationNumber *string    `db:"authorization_number"`
	AuthorizationDate   *time.Time `db:"authorization_date"`
	PaymentMethodCode   *string    `db:"payment_method_code"`
	CreditDays          int        `db:"credit_days"`
	Notes               *string    `db:"notes"`
	Version             int        `db:"version"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

func (r documentRow) toEntity() *entity.Document {
	return &entity.Document{
		ID:                  r.ID,
		CompanyID:           r.CompanyID,
		EstablishmentID:     r.EstablishmentID,
		EmissionPointID:     r.EmissionPointID,
		CounterpartyID:      r.CounterpartyID,
		DocumentType:        r.DocumentType,
		Sequential:          r.Sequential,
		IssueDate:           r.IssueDate,
		AccessKey:           deref(r.AccessKey),
		Status:              r.Status,
		Environment:         entity.Environment(r.Environment),
		IsElectronic:        r.IsElectronic,
		XMLSigned:           deref(r.XMLSigned),
		SRIMessage:          deref(r.SRIMessage),
		AuthorizationNumber: r.AuthorizationNumber,
		AuthorizationDate:   r.AuthorizationDate,
		PaymentMethodCode:   deref(r.PaymentMethodCode),
		CreditDays:          r.CreditDays,
		Notes:               deref(r.Notes),
		Version:             r.Version,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

// detailRow línea con producto, bodega y clase de impuesto resueltos.
type detailRow struct {
	ID             string              `db:"id"`
	DocumentID     string              `db:"document_id"`
	ProductID      string              `db:"product_id"`
	ProductCode    *string             `db:"product_code"`
	AuxCode        *string             `db:"aux_code"`
	ProductName    *string             `db:"product_name"`
	Description    *string             `db:"description"`
	WarehouseName  *string             `db:"warehouse_name"`
	Quantity       decimal.Decimal     `db:"quantity"`
	UnitPrice      decimal.Decimal     `db:"unit_price"`
	Discount       decimal.Decimal     `db:"discount"`
	TaxClassID     *string             `db:"tax_class_id"`
	TaxCode        *string             `db:"tax_code"`
	PercentageCode *string             `db:"percentage_code"`
	TaxClassRate   decimal.NullDecimal `db:"tax_class_rate"`
	TaxRate        decimal.Decimal     `db:"tax_rate"`
	TaxAmount      decimal.Decimal     `db:"tax_amount"`
}

func (r detailRow) toEntity() *entity.DocumentDetail {
	d := &entity.DocumentDetail{
		ID:            r.ID,
		DocumentID:    r.DocumentID,
		ProductID:     r.ProductID,
		ProductCode:   deref(r.ProductCode),
		AuxCode:       deref(r.AuxCode),
		ProductName:   deref(r.ProductName),
		Description:   deref(r.Description),
		WarehouseName: deref(r.WarehouseName),
		Quantity:      r.Quantity,
		UnitPrice:     r.UnitPrice,
		Discount:      r.Discount,
		TaxRate:       r.TaxRate,
		TaxAmount:     r.TaxAmount,
	}
	if r.TaxClassID != nil && r.TaxCode != nil {
		d.TaxClass = &entity.TaxClass{
			ID:             *r.TaxClassID,
			Code:           *r.TaxCode,
			PercentageCode: deref(r.PercentageCode),
			Rate:           r.TaxClassRate.Decimal,
		}
	}
	return d
}

// DocumentRepo implementación de DocumentRepository (pool, conexión o tx).
type DocumentRepo struct {
	q   TxQuerier
	now func() time.Time
}

// NewDocumentRepository construye el adaptador.
func NewDocumentRepository(q TxQuerier) *DocumentRepo {
	return &DocumentRepo{q: q, now: time.Now}
}

// GetByID obtiene un documento con sus detalles.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	sql, args, err := builder.Select(documentColumns...).From(documentsTable).
		Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var row documentRow
	if err := pgxscan.Get(ctx, r.q, &row, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidTextRepresentation(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	doc := row.toEntity()
	if err := r.attachDetails(ctx, []*entity.Document{doc}); err != nil {
		return nil, err
	}
	return doc, nil
}

// listByStatusQuery SELECT de documentos electrónicos por estado, del más antiguo al más reciente.
func listByStatusQuery(statuses []string, limit int) (string, []any, error) {
	return builder.Select(documentColumns...).From(documentsTable).
		Where(sq.Eq{"is_electronic": true, "status": statuses}).
		OrderBy("created_at", "id").
		Limit(uint64(limit)).
		ToSql()
}

// ListElectronicByStatus implementa repository.DocumentRepository.
func (r *DocumentRepo) ListElectronicByStatus(ctx context.Context, statuses []string, limit int) ([]*entity.Document, error) {
	if len(statuses) == 0 || limit <= 0 {
		return nil, nil
	}
	sql, args, err := listByStatusQuery(statuses, limit)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []documentRow
	if err := pgxscan.Select(ctx, r.q, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	docs := make([]*entity.Document, len(rows))
	for i, row := range rows {
		docs[i] = row.toEntity()
	}
	if err := r.attachDetails(ctx, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// detailsQuery líneas de varios documentos en una sola consulta.
func detailsQuery(documentIDs []string) (string, []any, error) {
	return builder.Select(
		"dd.id", "dd.document_id", "dd.product_id",
		"p.code AS product_code", "p.aux_code", "p.name AS product_name", "p.description",
		"w.name AS warehouse_name",
		"dd.quantity", "dd.unit_price", "dd.discount",
		"tc.id AS tax_class_id", "tc.code AS tax_code", "tc.percentage_code", "tc.rate AS tax_class_rate",
		"dd.tax_rate", "dd.tax_amount",
	).
		From(documentDetailsTable+" dd").
		LeftJoin("products p ON p.id = dd.product_id").
		LeftJoin("warehouses w ON w.id = dd.warehouse_id").
		LeftJoin("tax_classes tc ON tc.id = dd.tax_class_id").
		Where(sq.Eq{"dd.document_id": documentIDs}).
		OrderBy("dd.document_id", "dd.line_no").
		ToSql()
}

func (r *DocumentRepo) attachDetails(ctx context.Context, docs []*entity.Document) error {
	if len(docs) == 0 {
		return nil
	}
	byID := make(map[string]*entity.Document, len(docs))
	ids := make([]string, len(docs))
	for i, d := range docs {
		byID[d.ID] = d
		ids[i] = d.ID
	}
	sql, args, err := detailsQuery(ids)
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	var rows []detailRow
	if err := pgxscan.Select(ctx, r.q, &rows, sql, args...); err != nil {
		return fmt.Errorf("list document details: %w", err)
	}
	for _, row := range rows {
		if d := byID[row.DocumentID]; d != nil {
			d.Details = append(d.Details, row.toEntity())
		}
	}
	return nil
}

// saveStateQuery UPDATE guardado por versión de los campos de conciliación.
func saveStateQuery(d *entity.Document, now time.Time) (string, []any, error) {
	return builder.Update(documentsTable).
		Set("access_key", nullIfEmpty(d.AccessKey)).
		Set("xml_signed", nullIfEmpty(d.XMLSigned)).
		Set("status", d.Status).
		Set("sri_message", nullIfEmpty(d.SRIMessage)).
		Set("authorization_number", d.AuthorizationNumber).
		Set("authorization_date", d.AuthorizationDate).
		Set("version", sq.Expr("version + 1")).
		Set("updated_at", now).
		Where(sq.Eq{"id": d.ID, "version": d.Version}).
		ToSql()
}

// SaveSRIState envía todas las actualizaciones en un pgx.Batch dentro de una transacción.
// Una fila sin coincidencia de versión no aborta el resto. Si alguna fila falla en el
// servidor (ej. clave de acceso duplicada) el lote se repite fila por fila con un savepoint
// cada una, y la fila rechazada se devuelve en stale junto a las de versión obsoleta.
func (r *DocumentRepo) SaveSRIState(ctx context.Context, docs []*entity.Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	now := r.now()
	updates := make([]pendingUpdate, len(docs))
	for i, d := range docs {
		sql, args, err := saveStateQuery(d, now)
		if err != nil {
			return nil, fmt.Errorf("build update: %w", err)
		}
		updates[i] = pendingUpdate{doc: d, sql: sql, args: args}
	}

	stale, updated, err := r.saveBatch(ctx, updates)
	if err != nil && isRowError(err) {
		stale, updated, err = r.saveRowByRow(ctx, updates)
	}
	if err != nil {
		return nil, err
	}

	for _, d := range updated {
		d.Version++
		d.UpdatedAt = now
	}
	return stale, nil
}

type pendingUpdate struct {
	doc  *entity.Document
	sql  string
	args []any
}

func (r *DocumentRepo) saveBatch(ctx context.Context, updates []pendingUpdate) (stale []string, updated []*entity.Document, err error) {
	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(u.sql, u.args...)
	}

	tx, err := r.q.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	results := tx.SendBatch(ctx, batch)
	for _, u := range updates {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			return nil, nil, fmt.Errorf("update document %s: %w", u.doc.ID, err)
		}
		if tag.RowsAffected() == 0 {
			stale = append(stale, u.doc.ID)
			continue
		}
		updated = append(updated, u.doc)
	}
	if err := results.Close(); err != nil {
		return nil, nil, fmt.Errorf("close batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit transaction: %w", err)
	}
	return stale, updated, nil
}

func (r *DocumentRepo) saveRowByRow(ctx context.Context, updates []pendingUpdate) (stale []string, updated []*entity.Document, err error) {
	tx, err := r.q.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, u := range updates {
		sp, err := tx.Begin(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("savepoint: %w", err)
		}
		tag, err := sp.Exec(ctx, u.sql, u.args...)
		if err != nil {
			_ = sp.Rollback(ctx)
			if isRowError(err) {
				stale = append(stale, u.doc.ID)
				continue
			}
			return nil, nil, fmt.Errorf("update document %s: %w", u.doc.ID, err)
		}
		if err := sp.Commit(ctx); err != nil {
			return nil, nil, fmt.Errorf("release savepoint: %w", err)
		}
		if tag.RowsAffected() == 0 {
			stale = append(stale, u.doc.ID)
			continue
		}
		updated = append(updated, u.doc)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit transaction: %w", err)
	}
	return stale, updated, nil
}
