package repositories

import (
	"context"
	"errors"
	"time"

	"invoice-dashboard-backend/apperrors"
	"invoice-dashboard-backend/database"
	"invoice-dashboard-backend/models"

	"gorm.io/gorm"
)

// IdempotencyRepository keeps Idempotency-Key records in Postgres, one namespace per tenant.
type IdempotencyRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewIdempotencyRepository(db *gorm.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db, now: time.Now}
}

func (r *IdempotencyRepository) scoped(ctx context.Context, tenantID string) *gorm.DB {
	return r.db.WithContext(ctx).Scopes(database.TenantScope(tenantID))
}

func (r *IdempotencyRepository) Lookup(ctx context.Context, tenantID, key string) (*models.IdempotencyKey, error) {
	var rec models.IdempotencyKey
	err := r.scoped(ctx, tenantID).Where("key = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.BackendUnavailable("lookup idempotency key", err)
	}
	return &rec, nil
}

func (r *IdempotencyRepository) Reserve(ctx context.Context, rec *models.IdempotencyKey) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return apperrors.BackendUnavailable("reserve idempotency key", err)
	}
	return nil
}

func (r *IdempotencyRepository) Complete(ctx context.Context, tenantID, key string, status int, body []byte) error {
	now := r.now().UTC()
	err := r.scoped(ctx, tenantID).Model(&models.IdempotencyKey{}).
		Where("key = ?", key).
		Updates(map[string]any{
			"response_status": status,
			"response_body":   body,
			"completed_at":    &now,
		}).Error
	if err != nil {
		return apperrors.BackendUnavailable("complete idempotency key", err)
	}
	return nil
}
