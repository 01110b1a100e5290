package repositories

import (
	"context"
	"strings"
	"time"

	"invoice-dashboard-backend/apperrors"
	"invoice-dashboard-backend/database"
	"invoice-dashboard-backend/models"
	"invoice-dashboard-backend/utils"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultCurrency = "PEN"

	relationalDefaultLimit = 50
	relationalMaxLimit     = 200
)

// RelationalStore reads and writes the tenant's invoice rows in Postgres. It is the system of
// record for approvals; only this store exposes mutations.
type RelationalStore struct {
	db               *gorm.DB
	queryTimeout     time.Duration
	approvedPageSize int
	now              func() time.Time
}

func NewRelationalStore(db *gorm.DB, queryTimeout time.Duration, approvedPageSize int) *RelationalStore {
	if approvedPageSize <= 0 {
		approvedPageSize = 100
	}
	return &RelationalStore{
		db:               db,
		queryTimeout:     queryTimeout,
		approvedPageSize: approvedPageSize,
		now:              time.Now,
	}
}

// session returns a tenant-scoped handle bounded by the query timeout, so an exhausted pool fails
// the request instead of blocking it.
func (s *RelationalStore) session(ctx context.Context, tenantID string) (*gorm.DB, context.CancelFunc, error) {
	if s.db == nil {
		return nil, nil, apperrors.Configuration("relational database is not configured")
	}
	cancel := context.CancelFunc(func() {})
	if s.queryTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
	}
	return s.db.WithContext(ctx).Scopes(database.TenantScope(tenantID)), cancel, nil
}

// List returns the tenant's invoices newest first, paginated with an offset cursor.
func (s *RelationalStore) List(ctx context.Context, tenantID string, opts ListOptions) (Page, error) {
	db, cancel, err := s.session(ctx, tenantID)
	if err != nil {
		return Page{}, err
	}
	defer cancel()

	limit := utils.ClampLimit(opts.Limit, relationalDefaultLimit, relationalMaxLimit)
	offset := 0
	if key := utils.DecodeCursor(opts.Cursor); key != nil {
		if v, ok := key["offset"].(float64); ok && v > 0 {
			offset = int(v)
		}
	}

	q := db.Model(&models.Invoice{})
	if term := strings.TrimSpace(opts.Search); term != "" {
		like := "%" + escapeLike(term) + "%"
		q = q.Where("(numero_factura LIKE ? OR razon_social_emisor LIKE ? OR ruc_emisor LIKE ?)", like, like, like)
	}

	var rows []map[string]any
	if err := q.Order("fecha_emision DESC NULLS LAST").Order("created_at DESC").
		Limit(limit + 1).Offset(offset).Find(&rows).Error; err != nil {
		return Page{}, apperrors.BackendUnavailable("list invoices", err)
	}

	page := Page{Records: toRaw(rows)}
	if len(page.Records) > limit {
		page.Records = page.Records[:limit]
		page.NextCursor = utils.EncodeCursor(map[string]any{"offset": float64(offset + limit)})
	}
	return page, nil
}

// ListPending returns every invoice whose approval status is unset.
func (s *RelationalStore) ListPending(ctx context.Context, tenantID string) ([]models.RawRecord, error) {
	db, cancel, err := s.session(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var rows []map[string]any
	if err := db.Model(&models.Invoice{}).
		Where("aprobado IS NULL").
		Order("fecha_vencimiento ASC NULLS LAST").Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, apperrors.BackendUnavailable("list pending invoices", err)
	}
	return toRaw(rows), nil
}

// ListApproved returns one bounded page of approved invoices, newest issue date first.
func (s *RelationalStore) ListApproved(ctx context.Context, tenantID string) ([]models.RawRecord, error) {
	db, cancel, err := s.session(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var rows []map[string]any
	if err := db.Model(&models.Invoice{}).
		Where("aprobado = ?", true).
		Order("fecha_emision DESC NULLS LAST").
		Limit(s.approvedPageSize).
		Find(&rows).Error; err != nil {
		return nil, apperrors.BackendUnavailable("list approved invoices", err)
	}
	return toRaw(rows), nil
}

// GetByID matches the business id, or the internal id when id is a UUID.
func (s *RelationalStore) GetByID(ctx context.Context, tenantID, id string) (models.RawRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	db, cancel, err := s.session(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer cancel()

	q := db.Model(&models.Invoice{})
	if _, perr := uuid.Parse(id); perr == nil {
		q = q.Where("(id = ? OR numero_factura = ?)", id, id)
	} else {
		q = q.Where("numero_factura = ?", id)
	}

	var rows []map[string]any
	if err := q.Limit(1).Find(&rows).Error; err != nil {
		return nil, apperrors.BackendUnavailable("get invoice", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return models.RawRecord(rows[0]), nil
}

// LineItems returns the detail lines of one invoice (internal id) in line order.
func (s *RelationalStore) LineItems(ctx context.Context, tenantID, invoiceID string) ([]models.RawRecord, error) {
	if _, err := uuid.Parse(invoiceID); err != nil {
		return nil, nil
	}
	db, cancel, err := s.session(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var rows []map[string]any
	if err := db.Model(&models.InvoiceItem{}).
		Where("invoice_id = ?", invoiceID).
		Order("numero_linea ASC").
		Find(&rows).Error; err != nil {
		return nil, apperrors.BackendUnavailable("list invoice items", err)
	}
	return toRaw(rows), nil
}

type statsRow struct {
	StatsCurrency string
	PendingCount  int64
	PendingAmount decimal.Decimal
	ApprovedToday int64
	Overdue       int64
}

// Stats computes the dashboard counters with conditional aggregation in a single round trip.
func (s *RelationalStore) Stats(ctx context.Context, tenantID string) (models.AggregateStats, error) {
	db, cancel, err := s.session(ctx, tenantID)
	if err != nil {
		return models.AggregateStats{}, err
	}
	defer cancel()

	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var rows []statsRow
	if err := db.Model(&models.Invoice{}).
		Select(`COALESCE(NULLIF(moneda, ''), ?) AS stats_currency,
			COUNT(*) FILTER (WHERE aprobado IS NULL) AS pending_count,
			COALESCE(SUM(monto_total) FILTER (WHERE aprobado IS NULL), 0) AS pending_amount,
			COUNT(*) FILTER (WHERE aprobado = true AND fecha_aprobacion >= ?) AS approved_today,
			COUNT(*) FILTER (WHERE aprobado IS NULL AND fecha_vencimiento < ?) AS overdue`,
			DefaultCurrency, startOfDay, startOfDay).
		Group("stats_currency").
		Find(&rows).Error; err != nil {
		return models.AggregateStats{}, apperrors.BackendUnavailable("invoice stats", err)
	}

	return reduceStats(rows), nil
}

func reduceStats(rows []statsRow) models.AggregateStats {
	stats := models.AggregateStats{
		PendingCount:            int(lo.SumBy(rows, func(r statsRow) int64 { return r.PendingCount })),
		ApprovedTodayCount:      int(lo.SumBy(rows, func(r statsRow) int64 { return r.ApprovedToday })),
		OverdueCount:            int(lo.SumBy(rows, func(r statsRow) int64 { return r.Overdue })),
		PendingAmountByCurrency: map[string]float64{},
	}
	for _, r := range rows {
		if r.PendingCount == 0 {
			continue
		}
		cur := strings.ToUpper(strings.TrimSpace(r.StatsCurrency))
		if cur == "" {
			cur = DefaultCurrency
		}
		prev := decimal.NewFromFloat(stats.PendingAmountByCurrency[cur])
		stats.PendingAmountByCurrency[cur] = utils.MoneyFloat(prev.Add(r.PendingAmount))
	}
	return stats
}

// Approve marks the given business ids approved in one statement and returns the ids it matched.
func (s *RelationalStore) Approve(ctx context.Context, tenantID string, ids []string, actor, comment string) ([]string, error) {
	return s.setApproval(ctx, tenantID, ids, true, actor, comment)
}

// Reject marks the given business ids rejected in one statement and returns the ids it matched.
func (s *RelationalStore) Reject(ctx context.Context, tenantID string, ids []string, actor, comment string) ([]string, error) {
	return s.setApproval(ctx, tenantID, ids, false, actor, comment)
}

// setApproval only stamps time, actor and comment on rows whose state actually changes, so
// repeating a batch leaves rows untouched while still reporting them as matched.
func (s *RelationalStore) setApproval(ctx context.Context, tenantID string, ids []string, approved bool, actor, comment string) ([]string, error) {
	if len(ids) == 0 {
		return nil, apperrors.InvalidArgument("invoiceIds must not be empty")
	}
	db, cancel, err := s.session(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var updated []models.Invoice
	unchanged := "aprobado IS NOT DISTINCT FROM ?"
	if err := db.Model(&updated).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "numero_factura"}}}).
		Where("numero_factura IN ?", ids).
		Updates(map[string]any{
			"aprobado":              approved,
			"fecha_aprobacion":      gorm.Expr("CASE WHEN "+unchanged+" THEN fecha_aprobacion ELSE ? END", approved, s.now().UTC()),
			"aprobado_por":          gorm.Expr("CASE WHEN "+unchanged+" THEN aprobado_por ELSE ? END", approved, actor),
			"comentario_aprobacion": gorm.Expr("CASE WHEN "+unchanged+" THEN comentario_aprobacion ELSE ? END", approved, comment),
		}).Error; err != nil {
		return nil, apperrors.BackendUnavailable("update approval status", err)
	}

	matched := lo.SliceToMap(updated, func(inv models.Invoice) (string, struct{}) {
		return inv.NumeroFactura, struct{}{}
	})
	return lo.Filter(ids, func(id string, _ int) bool {
		_, ok := matched[id]
		return ok
	}), nil
}

func toRaw(rows []map[string]any) []models.RawRecord {
	out := make([]models.RawRecord, len(rows))
	for i, r := range rows {
		out[i] = models.RawRecord(r)
	}
	return out
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
