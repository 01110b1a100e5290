package database

import (
	"strings"

	"gorm.io/gorm"
)

// TenantScope pins a query to one tenant's rows. Every relational read and write goes through it so
// isolation is part of the WHERE clause, never a filter applied after fetching.
// An empty tenant id matches nothing.
func TenantScope(tenantID string) func(*gorm.DB) *gorm.DB {
	id := strings.TrimSpace(tenantID)
	return func(db *gorm.DB) *gorm.DB {
		if id == "" {
			return db.Where("1 = 0")
		}
		return db.Where("tenant_id = ?", id)
	}
}
