package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"invoice-dashboard-backend/apperrors"
	"invoice-dashboard-backend/controllers"
	"invoice-dashboard-backend/middlewares"
	"invoice-dashboard-backend/models"
	"invoice-dashboard-backend/repositories"
	"invoice-dashboard-backend/services"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

// stubStore serves both backends from one in-memory table and records which tenant asked.
type stubStore struct {
	rows      map[string][]models.RawRecord
	tenants   []string
	mutations int
	err       error
}

func (s *stubStore) seen(tenantID string) { s.tenants = append(s.tenants, tenantID) }

func (s *stubStore) List(_ context.Context, tenantID string, _ repositories.ListOptions) (repositories.Page, error) {
	s.seen(tenantID)
	return repositories.Page{Records: s.rows[tenantID]}, s.err
}

func (s *stubStore) GetByID(_ context.Context, tenantID, id string) (models.RawRecord, error) {
	s.seen(tenantID)
	if s.err != nil {
		return nil, s.err
	}
	for _, r := range s.rows[tenantID] {
		if r["invoiceId"] == id {
			return r, nil
		}
	}
	return nil, nil
}

func (s *stubStore) ListPending(_ context.Context, tenantID string) ([]models.RawRecord, error) {
	s.seen(tenantID)
	return s.rows[tenantID], s.err
}

func (s *stubStore) ListApproved(_ context.Context, tenantID string) ([]models.RawRecord, error) {
	s.seen(tenantID)
	return nil, s.err
}

func (s *stubStore) LineItems(context.Context, string, string) ([]models.RawRecord, error) {
	return nil, nil
}

func (s *stubStore) Stats(_ context.Context, tenantID string) (models.AggregateStats, error) {
	s.seen(tenantID)
	return models.AggregateStats{PendingCount: len(s.rows[tenantID]), PendingAmountByCurrency: map[string]float64{}}, s.err
}

func (s *stubStore) Approve(_ context.Context, tenantID string, ids []string, _, _ string) ([]string, error) {
	s.seen(tenantID)
	s.mutations++
	return ids[:1], s.err
}

func (s *stubStore) Reject(_ context.Context, tenantID string, ids []string, _, _ string) ([]string, error) {
	s.seen(tenantID)
	s.mutations++
	return ids, s.err
}

type stubPresigner struct{ calls int }

func (p *stubPresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	p.calls++
	return &v4.PresignedHTTPRequest{URL: "https://storage.example/" + *in.Bucket + "/" + *in.Key}, nil
}

// countingKeys is an in-memory idempotency store that counts every call.
type countingKeys struct {
	records map[string]*models.IdempotencyKey
	calls   int
}

func (k *countingKeys) Lookup(_ context.Context, tenantID, key string) (*models.IdempotencyKey, error) {
	k.calls++
	return k.records[tenantID+"/"+key], nil
}

func (k *countingKeys) Reserve(_ context.Context, rec *models.IdempotencyKey) error {
	k.calls++
	k.records[rec.TenantID+"/"+rec.Key] = rec
	return nil
}

func (k *countingKeys) Complete(_ context.Context, tenantID, key string, status int, body []byte) error {
	k.calls++
	rec := k.records[tenantID+"/"+key]
	rec.ResponseStatus, rec.ResponseBody = status, body
	return nil
}

func newTestApp(store *stubStore, presigner *stubPresigner) *fiber.App {
	return newKeyedTestApp(store, presigner, nil)
}

func newKeyedTestApp(store *stubStore, presigner *stubPresigner, keys middlewares.IdempotencyStore) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middlewares.ErrorHandler(false)})
	previews := services.NewPreviewIssuer(store, presigner, services.PreviewConfig{DefaultBucket: "invoices-raw"})
	Register(app, Deps{
		Invoices: controllers.NewInvoiceController(
			services.NewInvoiceService(store, store),
			services.NewApprover(store),
			previews,
		),
		Files:       controllers.NewFileController(previews),
		Resolver:    middlewares.NewTenantResolver("custom:tenant_id", ""),
		CookieName:  "idToken",
		Idempotency: keys,
	})
	return app
}

func fixtureStore() *stubStore {
	return &stubStore{rows: map[string][]models.RawRecord{
		"acme": {{
			"invoiceId": "F001-1",
			"archivo":   map[string]any{"s3Bucket": "invoices-raw", "s3Key": "other-tenant/2024/invoice.pdf"},
		}},
		"globex": {{"invoiceId": "G001-1"}},
	}}
}

func token(t *testing.T, tenant string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"custom:tenant_id": tenant, "email": "ana@" + tenant + ".pe"}).SignedString([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func do(t *testing.T, app *fiber.App, method, target, body, tenant string) (int, map[string]any) {
	t.Helper()
	return doKeyed(t, app, method, target, body, tenant, "")
}

func doKeyed(t *testing.T, app *fiber.App, method, target, body, tenant, key string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if tenant != "" {
		req.AddCookie(&http.Cookie{Name: "idToken", Value: token(t, tenant)})
	}
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, target, raw, err)
	}
	return resp.StatusCode, out
}

func TestHealthIsPublic(t *testing.T) {
	app := newTestApp(fixtureStore(), &stubPresigner{})
	status, body := do(t, app, http.MethodGet, "/api/health", "", "")
	if status != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", status, body)
	}
}

func TestProtectedRoutesRequireCredential(t *testing.T) {
	store := fixtureStore()
	app := newTestApp(store, &stubPresigner{})

	for _, target := range []string{"/api/session", "/api/invoices", "/api/invoices/pending", "/api/invoices/stats", "/api/invoices/kv"} {
		status, body := do(t, app, http.MethodGet, target, "", "")
		if status != http.StatusUnauthorized || body["code"] != "UNAUTHENTICATED" || body["success"] != false {
			t.Errorf("GET %s = %d %v, want 401", target, status, body)
		}
	}
	if len(store.tenants) != 0 {
		t.Errorf("backend reached without a credential: %v", store.tenants)
	}
}

func TestSession(t *testing.T) {
	app := newTestApp(fixtureStore(), &stubPresigner{})
	status, body := do(t, app, http.MethodGet, "/api/session", "", "acme")
	if status != http.StatusOK || body["tenantId"] != "acme" || body["email"] != "ana@acme.pe" {
		t.Errorf("session = %d %v", status, body)
	}
}

func TestPendingIsTenantScoped(t *testing.T) {
	store := fixtureStore()
	app := newTestApp(store, &stubPresigner{})

	status, body := do(t, app, http.MethodGet, "/api/invoices/pending", "", "acme")
	if status != http.StatusOK || body["success"] != true || body["count"] != float64(1) {
		t.Fatalf("pending = %d %v", status, body)
	}
	inv := body["invoices"].([]any)[0].(map[string]any)
	if inv["invoiceId"] != "F001-1" || inv["tenantId"] != "acme" || inv["currency"] != "PEN" {
		t.Errorf("invoice = %v", inv)
	}
	if len(store.tenants) != 1 || store.tenants[0] != "acme" {
		t.Errorf("backend tenants = %v", store.tenants)
	}
}

func TestApproveValidation(t *testing.T) {
	store := fixtureStore()
	app := newTestApp(store, &stubPresigner{})

	for _, body := range []string{"", "{", `{}`, `{"invoiceIds":[]}`, `{"invoiceIds":["", " "]}`} {
		status, resp := do(t, app, http.MethodPost, "/api/invoices/approve", body, "acme")
		if status != http.StatusBadRequest || resp["success"] != false {
			t.Errorf("approve %q = %d %v, want 400", body, status, resp)
		}
	}
	if store.mutations != 0 {
		t.Errorf("mutations = %d for invalid bodies", store.mutations)
	}

	status, resp := do(t, app, http.MethodPost, "/api/invoices/approve", `{"invoiceIds":["F001-1","F001-1","X"],"comment":"ok"}`, "acme")
	if status != http.StatusOK || resp["count"] != float64(1) {
		t.Fatalf("approve = %d %v", status, resp)
	}
	if ids := resp["approvedIds"].([]any); len(ids) != 1 || ids[0] != "F001-1" {
		t.Errorf("approvedIds = %v", ids)
	}

	status, resp = do(t, app, http.MethodPost, "/api/invoices/reject", `{"invoiceIds":["F001-1"]}`, "acme")
	if status != http.StatusOK || resp["count"] != float64(1) {
		t.Errorf("reject = %d %v", status, resp)
	}
}

func TestApprovalValidatedBeforeIdempotency(t *testing.T) {
	store := fixtureStore()
	keys := &countingKeys{records: map[string]*models.IdempotencyKey{}}
	app := newKeyedTestApp(store, &stubPresigner{}, keys)

	for _, target := range []string{"/api/invoices/approve", "/api/invoices/reject"} {
		for _, body := range []string{`{"invoiceIds":[]}`, `{"invoiceIds":[" "]}`, "{"} {
			status, resp := doKeyed(t, app, http.MethodPost, target, body, "acme", "retry-1")
			if status != http.StatusBadRequest {
				t.Errorf("%s %q = %d %v, want 400", target, body, status, resp)
			}
		}
	}
	if keys.calls != 0 || store.mutations != 0 {
		t.Errorf("invalid batches reached the stores: %d idempotency calls, %d mutations", keys.calls, store.mutations)
	}
}

func TestApprovalReplaysIdempotencyKey(t *testing.T) {
	store := fixtureStore()
	keys := &countingKeys{records: map[string]*models.IdempotencyKey{}}
	app := newKeyedTestApp(store, &stubPresigner{}, keys)
	body := `{"invoiceIds":["F001-1"]}`

	for i := 0; i < 2; i++ {
		status, resp := doKeyed(t, app, http.MethodPost, "/api/invoices/approve", body, "acme", "retry-1")
		if status != http.StatusOK || resp["count"] != float64(1) {
			t.Fatalf("approve #%d = %d %v", i+1, status, resp)
		}
	}
	if store.mutations != 1 {
		t.Errorf("mutations = %d, want 1", store.mutations)
	}
}

func TestPreviewURLIgnoresIdempotencyKey(t *testing.T) {
	presigner := &stubPresigner{}
	keys := &countingKeys{records: map[string]*models.IdempotencyKey{}}
	app := newKeyedTestApp(fixtureStore(), presigner, keys)
	body := `{"objectLocator":"acme/2024/invoice.pdf"}`

	for i := 0; i < 2; i++ {
		status, resp := doKeyed(t, app, http.MethodPost, "/api/files/preview-url", body, "acme", "retry-1")
		if status != http.StatusOK {
			t.Fatalf("preview-url #%d = %d %v", i+1, status, resp)
		}
	}
	if presigner.calls != 2 || keys.calls != 0 {
		t.Errorf("presigner calls = %d, idempotency calls = %d; want 2 fresh links and no bookkeeping", presigner.calls, keys.calls)
	}
}

func TestDetailNotFound(t *testing.T) {
	app := newTestApp(fixtureStore(), &stubPresigner{})
	status, body := do(t, app, http.MethodGet, "/api/invoices/detail?id=G001-1", "", "acme")
	if status != http.StatusNotFound || body["code"] != "NOT_FOUND" {
		t.Errorf("detail = %d %v", status, body)
	}
}

func TestPreviewForeignKeyForbidden(t *testing.T) {
	presigner := &stubPresigner{}
	app := newTestApp(fixtureStore(), presigner)

	status, body := do(t, app, http.MethodGet, "/api/invoices/kv/preview?invoiceId=F001-1", "", "acme")
	if status != http.StatusForbidden || body["code"] != "FORBIDDEN" {
		t.Errorf("kv preview = %d %v", status, body)
	}

	status, body = do(t, app, http.MethodPost, "/api/files/preview-url", `{"objectLocator":"s3://invoices-raw/other-tenant/2024/invoice.pdf"}`, "acme")
	if status != http.StatusForbidden {
		t.Errorf("preview-url = %d %v", status, body)
	}
	if presigner.calls != 0 {
		t.Errorf("presigner called %d times for forbidden keys", presigner.calls)
	}

	status, body = do(t, app, http.MethodPost, "/api/files/preview-url", `{"objectLocator":"acme/2024/invoice.pdf"}`, "acme")
	if status != http.StatusOK || body["url"] != "https://storage.example/invoices-raw/acme/2024/invoice.pdf" || body["expiresIn"] != float64(3600) {
		t.Errorf("preview-url = %d %v", status, body)
	}
}

func TestBackendFailureIsSanitized(t *testing.T) {
	store := fixtureStore()
	store.err = apperrors.BackendUnavailable("list pending invoices", io.ErrUnexpectedEOF)
	app := newTestApp(store, &stubPresigner{})

	status, body := do(t, app, http.MethodGet, "/api/invoices/pending", "", "acme")
	if status != http.StatusInternalServerError || body["code"] != "BACKEND_UNAVAILABLE" {
		t.Fatalf("pending = %d %v", status, body)
	}
	if strings.Contains(body["error"].(string), "EOF") {
		t.Errorf("driver error leaked: %v", body["error"])
	}
	if _, ok := body["detail"]; ok {
		t.Error("detail present outside dev mode")
	}
}
