package services

import (
	"context"
	"strings"
	"time"

	"invoice-dashboard-backend/apperrors"
	"invoice-dashboard-backend/models"
	"invoice-dashboard-backend/repositories"
)

// RelationalReader is the read side of the relational store.
type RelationalReader interface {
	repositories.InvoiceStore
	ListPending(ctx context.Context, tenantID string) ([]models.RawRecord, error)
	ListApproved(ctx context.Context, tenantID string) ([]models.RawRecord, error)
	LineItems(ctx context.Context, tenantID, invoiceID string) ([]models.RawRecord, error)
	Stats(ctx context.Context, tenantID string) (models.AggregateStats, error)
}

// InvoicePage is a normalized page from either backend.
type InvoicePage struct {
	Invoices   []models.CanonicalInvoice `json:"invoices"`
	Count      int                       `json:"count"`
	NextCursor *string                   `json:"nextCursor"`
	Summary    *models.AggregateStats    `json:"summary,omitempty"`
}

// InvoiceService routes tenant-scoped reads to a backend and normalizes what comes back.
type InvoiceService struct {
	relational RelationalReader
	keyValue   repositories.InvoiceStore
	now        func() time.Time
}

func NewInvoiceService(relational RelationalReader, keyValue repositories.InvoiceStore) *InvoiceService {
	return &InvoiceService{relational: relational, keyValue: keyValue, now: time.Now}
}

func (s *InvoiceService) Pending(ctx context.Context, tenantID string) (InvoicePage, error) {
	rows, err := s.relational.ListPending(ctx, tenantID)
	if err != nil {
		return InvoicePage{}, err
	}
	return s.page(tenantID, rows, models.SourceRelational, nil), nil
}

func (s *InvoiceService) Approved(ctx context.Context, tenantID string) (InvoicePage, error) {
	rows, err := s.relational.ListApproved(ctx, tenantID)
	if err != nil {
		return InvoicePage{}, err
	}
	return s.page(tenantID, rows, models.SourceRelational, nil), nil
}

func (s *InvoiceService) List(ctx context.Context, tenantID string, opts repositories.ListOptions) (InvoicePage, error) {
	p, err := s.relational.List(ctx, tenantID, opts)
	if err != nil {
		return InvoicePage{}, err
	}
	return s.page(tenantID, p.Records, models.SourceRelational, p.NextCursor), nil
}

// ListKeyValue returns one page from the key-value store plus counters for that page.
func (s *InvoiceService) ListKeyValue(ctx context.Context, tenantID string, opts repositories.ListOptions) (InvoicePage, error) {
	if s.keyValue == nil {
		return InvoicePage{}, apperrors.Configuration("key-value invoice table is not configured")
	}
	p, err := s.keyValue.List(ctx, tenantID, opts)
	if err != nil {
		return InvoicePage{}, err
	}
	out := s.page(tenantID, p.Records, models.SourceKeyValue, p.NextCursor)
	summary := Summarize(out.Invoices, s.now())
	out.Summary = &summary
	return out, nil
}

// Detail looks the invoice up in the relational store first and falls back to the key-value store.
func (s *InvoiceService) Detail(ctx context.Context, tenantID, id string) (models.CanonicalInvoice, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.CanonicalInvoice{}, apperrors.InvalidArgument("id is required")
	}

	// An unconfigured relational store counts as no match so the key-value table is still consulted.
	raw, relErr := s.relational.GetByID(ctx, tenantID, id)
	if relErr != nil && apperrors.KindOf(relErr) != apperrors.KindConfiguration {
		return models.CanonicalInvoice{}, relErr
	}
	if relErr == nil && raw != nil {
		inv := Normalize(raw, models.SourceRelational)
		items, err := s.relational.LineItems(ctx, tenantID, inv.ID)
		if err != nil {
			return models.CanonicalInvoice{}, err
		}
		return s.scoped(tenantID, NormalizeDetail(raw, models.SourceRelational, items)), nil
	}

	kvConfigured := false
	if s.keyValue != nil {
		raw, err := s.keyValue.GetByID(ctx, tenantID, id)
		if err != nil && apperrors.KindOf(err) != apperrors.KindConfiguration {
			return models.CanonicalInvoice{}, err
		}
		kvConfigured = err == nil
		if raw != nil {
			return s.scoped(tenantID, NormalizeDetail(raw, models.SourceKeyValue, nil)), nil
		}
	}
	if relErr != nil && !kvConfigured {
		return models.CanonicalInvoice{}, relErr
	}
	return models.CanonicalInvoice{}, apperrors.NotFound("invoice not found")
}

func (s *InvoiceService) Stats(ctx context.Context, tenantID string) (models.AggregateStats, error) {
	return s.relational.Stats(ctx, tenantID)
}

func (s *InvoiceService) page(tenantID string, rows []models.RawRecord, kind models.SourceKind, next *string) InvoicePage {
	invoices := make([]models.CanonicalInvoice, 0, len(rows))
	for _, r := range rows {
		invoices = append(invoices, s.scoped(tenantID, Normalize(r, kind)))
	}
	return InvoicePage{Invoices: invoices, Count: len(invoices), NextCursor: next}
}

// scoped fills the owning tenant for rows that do not repeat it. Rows were already selected by
// the tenant predicate.
func (s *InvoiceService) scoped(tenantID string, inv models.CanonicalInvoice) models.CanonicalInvoice {
	if inv.TenantID == "" {
		inv.TenantID = tenantID
	}
	return inv
}
