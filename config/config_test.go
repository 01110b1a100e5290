package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"DATABASE_URL", "DB_NAME", "INVOICES_TABLE", "JWT_SECRET", "PREVIEW_ALLOW_CROSS_TENANT", "KV_MAX_LIMIT", "BODY_LIMIT_BYTES", "BODY_LIMIT_MB"} {
		t.Setenv(k, "")
	}
	cfg := Load()

	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
	if cfg.KVDefaultLimit != 50 || cfg.KVMaxLimit != 200 {
		t.Errorf("kv limits = %d/%d", cfg.KVDefaultLimit, cfg.KVMaxLimit)
	}
	if cfg.PreviewURLTTL != 5*time.Minute || cfg.RawPreviewURLTTL != time.Hour {
		t.Errorf("ttls = %v/%v", cfg.PreviewURLTTL, cfg.RawPreviewURLTTL)
	}
	if cfg.AllowCrossTenantPreview {
		t.Error("cross-tenant preview must be off by default")
	}
	if cfg.AuthCookieName != "idToken" || cfg.TenantClaim != "custom:tenant_id" {
		t.Errorf("auth = %q/%q", cfg.AuthCookieName, cfg.TenantClaim)
	}
	if cfg.BodyLimitBytes != 4*1024*1024 {
		t.Errorf("BodyLimitBytes = %d", cfg.BodyLimitBytes)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_NAME", "invoices")
	t.Setenv("DB_USER", "svc")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_HOST", "pg")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_SSLMODE", "")
	t.Setenv("DB_QUERY_TIMEOUT", "2s")
	t.Setenv("KV_MAX_LIMIT", "100")
	t.Setenv("PREVIEW_ALLOW_CROSS_TENANT", "true")
	t.Setenv("DEV_MODE", "not-a-bool")

	cfg := Load()
	want := "host=pg user=svc password=pw dbname=invoices port=5432 sslmode=disable"
	if cfg.DatabaseURL != want {
		t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, want)
	}
	if cfg.DBQueryTimeout != 2*time.Second || cfg.KVMaxLimit != 100 || !cfg.AllowCrossTenantPreview {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.DevMode {
		t.Error("unparsable DEV_MODE should fall back to false")
	}
}
