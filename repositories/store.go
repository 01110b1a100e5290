package repositories

import (
	"context"

	"invoice-dashboard-backend/models"
)

// ListOptions are caller-supplied; every adapter clamps Limit to its own hard maximum.
type ListOptions struct {
	Limit  int
	Search string
	Cursor string
}

// Page is one slice of a tenant's invoices. NextCursor is nil on the last page.
type Page struct {
	Records    []models.RawRecord
	NextCursor *string
}

// InvoiceStore is the read capability both backends share. Implementations must scope every
// query to tenantID inside the backend request itself.
type InvoiceStore interface {
	List(ctx context.Context, tenantID string, opts ListOptions) (Page, error)
	// GetByID returns nil, nil when the tenant has no such invoice.
	GetByID(ctx context.Context, tenantID, id string) (models.RawRecord, error)
}
