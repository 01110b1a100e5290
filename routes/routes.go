package routes

import (
	"github.com/gofiber/fiber/v2"

	"invoice-dashboard-backend/controllers"
	"invoice-dashboard-backend/middlewares"
)

// Deps are the constructed handlers and guards the routes are wired to.
type Deps struct {
	Invoices   *controllers.InvoiceController
	Files      *controllers.FileController
	Resolver   *middlewares.TenantResolver
	CookieName string
	// Idempotency backs Idempotency-Key replay on the approval routes; nil disables it.
	Idempotency middlewares.IdempotencyStore
}

// Register wires all HTTP routes.
func Register(app *fiber.App, d Deps) {
	api := app.Group("/api")

	// Public
	api.Get("/health", controllers.Health)

	// Protected endpoints (tenant credential)
	protected := api.Group("")
	protected.Use(middlewares.RequireTenant(d.Resolver, d.CookieName))

	protected.Get("/session", controllers.GetSession)

	// Relational invoices
	protected.Get("/invoices", d.Invoices.GetInvoices)
	protected.Get("/invoices/pending", d.Invoices.GetPending)
	protected.Get("/invoices/approved", d.Invoices.GetApproved)
	protected.Get("/invoices/detail", d.Invoices.GetDetail)
	protected.Get("/invoices/stats", d.Invoices.GetStats)

	// Approval mutations (relational only), validated first, then replayable with Idempotency-Key
	idempotent := middlewares.Idempotency(d.Idempotency)
	protected.Post("/invoices/approve", d.Invoices.BindApproval, idempotent, d.Invoices.ApproveInvoices)
	protected.Post("/invoices/reject", d.Invoices.BindApproval, idempotent, d.Invoices.RejectInvoices)

	// Key-value invoices
	protected.Get("/invoices/kv", d.Invoices.GetKeyValueInvoices)
	protected.Get("/invoices/kv/preview", d.Invoices.GetKeyValuePreview)

	// Files
	protected.Post("/files/preview-url", d.Files.CreatePreviewURL)
}
