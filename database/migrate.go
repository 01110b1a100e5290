package database

import (
	"fmt"

	"invoice-dashboard-backend/models"

	"gorm.io/gorm"
)

// Migrate applies idempotent migrations for the tables this service reads and writes:
// - AutoMigrate (tables/columns/index tags)
// - Money column types
// - Composite indexes used by the tenant-scoped queries
// - Basic CHECK constraints
// It is only run when AUTO_MIGRATE is set; production schemas are owned by the ingestion pipeline.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&models.Invoice{},
			&models.InvoiceItem{},
			&models.IdempotencyKey{},
		); err != nil {
			return fmt.Errorf("automigrate failed: %w", err)
		}

		alters := []string{
			`ALTER TABLE invoices      ALTER COLUMN subtotal    TYPE numeric(14,2)`,
			`ALTER TABLE invoices      ALTER COLUMN igv         TYPE numeric(14,2)`,
			`ALTER TABLE invoices      ALTER COLUMN monto_total TYPE numeric(14,2)`,
			`ALTER TABLE invoice_items ALTER COLUMN total       TYPE numeric(14,2)`,
		}
		for _, stmt := range alters {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("money type migration failed on: %s - %w", stmt, err)
			}
		}

		indexes := []string{
			`CREATE INDEX IF NOT EXISTS idx_invoices_tenant_pending ON invoices (tenant_id) WHERE aprobado IS NULL`,
			`CREATE INDEX IF NOT EXISTS idx_invoices_tenant_approved ON invoices (tenant_id, fecha_emision DESC) WHERE aprobado = true`,
		}
		for _, stmt := range indexes {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("index migration failed on: %s - %w", stmt, err)
			}
		}

		checks := []string{
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'invoices'::regclass
					  AND conname  = 'chk_invoices_amounts_nonneg'
				) THEN
					ALTER TABLE invoices
					ADD CONSTRAINT chk_invoices_amounts_nonneg
					CHECK (coalesce(subtotal, 0) >= 0 AND coalesce(igv, 0) >= 0 AND coalesce(monto_total, 0) >= 0);
				END IF;
			END $$;`,
		}
		for _, stmt := range checks {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("check constraint migration failed: %w", err)
			}
		}

		return nil
	})
}
