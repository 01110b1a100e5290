package controllers

import (
	"invoice-dashboard-backend/middlewares"
	"invoice-dashboard-backend/repositories"
	"invoice-dashboard-backend/services"
	"invoice-dashboard-backend/utils"

	"github.com/gofiber/fiber/v2"
)

// InvoiceController serves the tenant-scoped invoice routes.
type InvoiceController struct {
	invoices *services.InvoiceService
	approver *services.Approver
	previews *services.PreviewIssuer
}

func NewInvoiceController(invoices *services.InvoiceService, approver *services.Approver, previews *services.PreviewIssuer) *InvoiceController {
	return &InvoiceController{invoices: invoices, approver: approver, previews: previews}
}

type ApprovalInput struct {
	InvoiceIDs []string `json:"invoiceIds" validate:"required,min=1,dive,required,max=64"`
	Comment    string   `json:"comment" validate:"max=500"`
}

const approvalLocal = "approvalInput"

// BindApproval parses and validates the approval body ahead of the handler, so malformed batches
// are rejected before any Idempotency-Key bookkeeping.
func (ic *InvoiceController) BindApproval(c *fiber.Ctx) error {
	var input ApprovalInput
	if err := middlewares.BindAndValidate(c, &input); err != nil {
		return err
	}
	c.Locals(approvalLocal, input)
	return c.Next()
}

func approvalInput(c *fiber.Ctx) (ApprovalInput, error) {
	if input, ok := c.Locals(approvalLocal).(ApprovalInput); ok {
		return input, nil
	}
	var input ApprovalInput
	err := middlewares.BindAndValidate(c, &input)
	return input, err
}

func (ic *InvoiceController) GetInvoices(c *fiber.Ctx) error {
	tenant, err := middlewares.TenantFrom(c)
	if err != nil {
		return err
	}
	page, err := ic.invoices.List(c.UserContext(), tenant.TenantID, listOptions(c))
	if err != nil {
		return err
	}
	return c.JSON(success(fiber.Map{"invoices": page.Invoices, "count": page.Count, "nextCursor": page.NextCursor}))
}

func (ic *InvoiceController) GetPending(c *fiber.Ctx) error {
	tenant, err := middlewares.TenantFrom(c)
	if err != nil {
		return err
	}
	page, err := ic.invoices.Pending(c.UserContext(), tenant.TenantID)
	if err != nil {
		return err
	}
	return c.JSON(success(fiber.Map{"invoices": page.Invoices, "count": page.Count}))
}

func (ic *InvoiceController) GetApproved(c *fiber.Ctx) error {
	tenant, err := middlewares.TenantFrom(c)
	if err != nil {
		return err
	}
	page, err := ic.invoices.Approved(c.UserContext(), tenant.TenantID)
	if err != nil {
		return err
	}
	return c.JSON(success(fiber.Map{"invoices": page.Invoices, "count": page.Count}))
}

func (ic *InvoiceController) ApproveInvoices(c *fiber.Ctx) error {
	tenant, err := middlewares.TenantFrom(c)
	if err != nil {
		return err
	}
	input, err := approvalInput(c)
	if err != nil {
		return err
	}
	result, err := ic.approver.Approve(c.UserContext(), tenant, input.InvoiceIDs, input.Comment)
	if err != nil {
		return err
	}
	return c.JSON(success(fiber.Map{"approvedIds": result.ApprovedIDs, "count": result.Count}))
}

func (ic *InvoiceController) RejectInvoices(c *fiber.Ctx) error {
	tenant, err := middlewares.TenantFrom(c)
	if err != nil {
		return err
	}
	input, err := approvalInput(c)
	if err != nil {
		return err
	}
	result, err := ic.approver.Reject(c.UserContext(), tenant, input.InvoiceIDs, input.Comment)
	if err != nil {
		return err
	}
	return c.JSON(success(fiber.Map{"rejectedIds": result.RejectedIDs, "count": result.Count}))
}

func (ic *InvoiceController) GetDetail(c *fiber.Ctx) error {
	tenant, err := middlewares.TenantFrom(c)
	if err != nil {
		return err
	}
	invoice, err := ic.invoices.Detail(c.UserContext(), tenant.TenantID, c.Query("id"))
	if err != nil {
		return err
	}
	return c.JSON(success(fiber.Map{"invoice": invoice}))
}

func (ic *InvoiceController) GetStats(c *fiber.Ctx) error {
	tenant, err := middlewares.TenantFrom(c)
	if err != nil {
		return err
	}
	stats, err := ic.invoices.Stats(c.UserContext(), tenant.TenantID)
	if err != nil {
		return err
	}
	return c.JSON(success(fiber.Map{"stats": stats}))
}

func (ic *InvoiceController) GetKeyValueInvoices(c *fiber.Ctx) error {
	tenant, err := middlewares.TenantFrom(c)
	if err != nil {
		return err
	}
	page, err := ic.invoices.ListKeyValue(c.UserContext(), tenant.TenantID, listOptions(c))
	if err != nil {
		return err
	}
	return c.JSON(success(fiber.Map{
		"invoices":   page.Invoices,
		"count":      page.Count,
		"nextCursor": page.NextCursor,
		"summary":    page.Summary,
	}))
}

func (ic *InvoiceController) GetKeyValuePreview(c *fiber.Ctx) error {
	tenant, err := middlewares.TenantFrom(c)
	if err != nil {
		return err
	}
	link, err := ic.previews.ForInvoice(c.UserContext(), tenant.TenantID, c.Query("invoiceId"))
	if err != nil {
		return err
	}
	return c.JSON(success(fiber.Map{"url": link.URL, "filename": link.Filename, "expiresIn": link.ExpiresIn, "expiresAt": link.ExpiresAt}))
}

// listOptions reads limit/search/cursor. The cursor is passed through untouched.
func listOptions(c *fiber.Ctx) repositories.ListOptions {
	return repositories.ListOptions{
		Limit:  utils.ParseIntDefault(c.Query("limit"), 0),
		Search: c.Query("search"),
		Cursor: c.Query("cursor"),
	}
}

func success(body fiber.Map) fiber.Map {
	body["success"] = true
	return body
}
