package services

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"invoice-dashboard-backend/apperrors"
	"invoice-dashboard-backend/models"
	"invoice-dashboard-backend/repositories"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Presigner is the subset of s3.PresignClient used to mint download links.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type PreviewConfig struct {
	InvoiceTTL    time.Duration
	LocatorTTL    time.Duration
	DefaultBucket string
	// AllowCrossTenant disables the tenant prefix check. It exists for controlled storage
	// migrations only and is off unless PREVIEW_ALLOW_CROSS_TENANT is set.
	AllowCrossTenant bool
}

// PreviewLink is a time-boxed download URL.
type PreviewLink struct {
	URL       string    `json:"url"`
	Filename  string    `json:"filename"`
	ExpiresIn int       `json:"expiresIn"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// PreviewIssuer mints signed links for invoice source files. Both entry points go through
// authorize, so the tenant prefix rule is enforced in exactly one place.
type PreviewIssuer struct {
	invoices  repositories.InvoiceStore
	presigner Presigner
	cfg       PreviewConfig
	now       func() time.Time
}

func NewPreviewIssuer(invoices repositories.InvoiceStore, presigner Presigner, cfg PreviewConfig) *PreviewIssuer {
	if cfg.InvoiceTTL <= 0 {
		cfg.InvoiceTTL = 5 * time.Minute
	}
	if cfg.LocatorTTL <= 0 {
		cfg.LocatorTTL = time.Hour
	}
	return &PreviewIssuer{invoices: invoices, presigner: presigner, cfg: cfg, now: time.Now}
}

// ForInvoice resolves the invoice's stored locator and issues a short-lived inline preview link.
func (p *PreviewIssuer) ForInvoice(ctx context.Context, tenantID, invoiceID string) (PreviewLink, error) {
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return PreviewLink{}, apperrors.InvalidArgument("invoiceId is required")
	}
	if p.invoices == nil {
		return PreviewLink{}, apperrors.Configuration("key-value invoice table is not configured")
	}

	raw, err := p.invoices.GetByID(ctx, tenantID, invoiceID)
	if err != nil {
		return PreviewLink{}, err
	}
	if raw == nil {
		return PreviewLink{}, apperrors.NotFound("invoice not found")
	}

	loc := Normalize(raw, models.SourceKeyValue).Storage
	if loc.Bucket == "" || loc.Key == "" {
		return PreviewLink{}, apperrors.NotFound("invoice has no stored file")
	}
	return p.issue(ctx, tenantID, loc, p.cfg.InvoiceTTL)
}

// ForLocator issues a link for a raw "s3://bucket/key" locator, or a bare key in the default bucket.
// The tenant check runs before the bucket is resolved.
func (p *PreviewIssuer) ForLocator(ctx context.Context, tenantID, locator string) (PreviewLink, error) {
	loc, err := parseLocator(locator)
	if err != nil {
		return PreviewLink{}, err
	}
	if err := p.authorize(tenantID, loc.Key); err != nil {
		return PreviewLink{}, err
	}
	if loc.Bucket == "" {
		if p.cfg.DefaultBucket == "" {
			return PreviewLink{}, apperrors.Configuration("default storage bucket is not configured")
		}
		loc.Bucket = p.cfg.DefaultBucket
	}
	return p.issue(ctx, tenantID, loc, p.cfg.LocatorTTL)
}

func (p *PreviewIssuer) issue(ctx context.Context, tenantID string, loc models.ObjectLocator, ttl time.Duration) (PreviewLink, error) {
	if err := p.authorize(tenantID, loc.Key); err != nil {
		return PreviewLink{}, err
	}
	if p.presigner == nil {
		return PreviewLink{}, apperrors.Configuration("object storage is not configured")
	}

	filename := loc.Filename
	if filename == "" {
		filename = path.Base(loc.Key)
	}

	req, err := p.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(loc.Bucket),
		Key:                        aws.String(loc.Key),
		ResponseContentDisposition: aws.String(fmt.Sprintf("inline; filename=%q", filename)),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return PreviewLink{}, apperrors.BackendUnavailable("presign object", err)
	}

	return PreviewLink{
		URL:       req.URL,
		Filename:  filename,
		ExpiresIn: int(ttl.Seconds()),
		ExpiresAt: p.now().Add(ttl).UTC(),
	}, nil
}

// authorize requires the object key to live under the caller's tenant segment.
func (p *PreviewIssuer) authorize(tenantID, key string) error {
	segment, _, _ := strings.Cut(strings.TrimPrefix(key, "/"), "/")
	if tenantID != "" && segment == tenantID {
		return nil
	}
	if p.cfg.AllowCrossTenant {
		slog.Warn("cross-tenant preview allowed by configuration", "tenant", tenantID, "key", key)
		return nil
	}
	return apperrors.Forbidden("file does not belong to this tenant")
}

// parseLocator splits a locator into bucket and key. A bare key leaves Bucket empty.
func parseLocator(locator string) (models.ObjectLocator, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return models.ObjectLocator{}, apperrors.InvalidArgument("objectLocator is required")
	}

	var loc models.ObjectLocator
	if rest, ok := strings.CutPrefix(locator, "s3://"); ok {
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return models.ObjectLocator{}, apperrors.NotFound("object locator is incomplete")
		}
		loc = models.ObjectLocator{Bucket: bucket, Key: key}
	} else {
		loc = models.ObjectLocator{Key: locator}
	}

	loc.Key = strings.TrimPrefix(loc.Key, "/")
	if loc.Key == "" {
		return models.ObjectLocator{}, apperrors.NotFound("object locator is incomplete")
	}
	return loc, nil
}
