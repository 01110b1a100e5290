package middlewares

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"

	"invoice-dashboard-backend/models"

	"github.com/gofiber/fiber/v2"
)

// IdempotencyStore persists Idempotency-Key records. Every call is scoped to one tenant.
type IdempotencyStore interface {
	// Lookup returns nil, nil when the tenant has not used key yet.
	Lookup(ctx context.Context, tenantID, key string) (*models.IdempotencyKey, error)
	// Reserve inserts a pending record; it fails if the tenant already holds the key.
	Reserve(ctx context.Context, rec *models.IdempotencyKey) error
	Complete(ctx context.Context, tenantID, key string, status int, body []byte) error
}

// Idempotency replays the stored response when a mutating request repeats its Idempotency-Key.
// Keys are scoped to the caller's tenant, so it must run after RequireTenant. A nil store disables it.
// Attach it per route, after body validation, so rejected input never reaches the store.
func Idempotency(store IdempotencyStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		method := strings.ToUpper(c.Method())
		if store == nil || (method != fiber.MethodPost && method != fiber.MethodPut && method != fiber.MethodPatch && method != fiber.MethodDelete) {
			return c.Next()
		}

		key := strings.TrimSpace(c.Get("Idempotency-Key"))
		if key == "" {
			return c.Next()
		}
		if len(key) > 128 {
			return fiber.NewError(fiber.StatusBadRequest, "Idempotency-Key too long")
		}

		tenant, err := TenantFrom(c)
		if err != nil {
			return err
		}

		ctx := c.UserContext()
		path := c.OriginalURL()
		reqHash := requestHash(method, path, c.Body(), tenant.TenantID)

		// ---- Phase 1: find or create the "pending" record
		existing, err := store.Lookup(ctx, tenant.TenantID, key)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency lookup failed")
		}
		if existing == nil {
			rec := &models.IdempotencyKey{
				TenantID:    tenant.TenantID,
				Key:         key,
				RequestHash: reqHash,
				Method:      method,
				Path:        path,
			}
			if err := store.Reserve(ctx, rec); err != nil {
				// Could be a unique race: read again
				existing, err = store.Lookup(ctx, tenant.TenantID, key)
				if err != nil || existing == nil {
					return fiber.NewError(fiber.StatusInternalServerError, "idempotency create failed")
				}
			} else {
				existing = rec
			}
		}

		if existing.RequestHash != reqHash {
			return fiber.NewError(fiber.StatusConflict, "Idempotency-Key reuse with different request")
		}
		if existing.ResponseStatus != 0 && existing.ResponseBody != nil {
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Status(existing.ResponseStatus).Send(existing.ResponseBody)
		}

		if err := c.Next(); err != nil {
			return err
		}

		// ---- Phase 2: store successful responses only, so failed attempts can be retried
		status := c.Response().StatusCode()
		if status >= fiber.StatusBadRequest {
			return nil
		}
		body := append([]byte(nil), c.Response().Body()...)
		if err := store.Complete(ctx, tenant.TenantID, key, status, body); err != nil {
			slog.Warn("idempotency response not stored", "tenant", tenant.TenantID, "error", err)
		}
		return nil
	}
}

// requestHash is sha256 of method|path|body|tenant.
func requestHash(method, path string, body []byte, tenantID string) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{'\n'})
	h.Write([]byte(path))
	h.Write([]byte{'\n'})
	h.Write(body)
	h.Write([]byte{'\n'})
	h.Write([]byte(tenantID))
	return hex.EncodeToString(h.Sum(nil))
}
