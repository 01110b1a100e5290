package controllers

import (
	"invoice-dashboard-backend/middlewares"
	"invoice-dashboard-backend/services"

	"github.com/gofiber/fiber/v2"
)

type FileController struct {
	previews *services.PreviewIssuer
}

func NewFileController(previews *services.PreviewIssuer) *FileController {
	return &FileController{previews: previews}
}

type PreviewInput struct {
	ObjectLocator string `json:"objectLocator" validate:"required,max=1024"`
}

// CreatePreviewURL signs a raw object locator; the tenant prefix rule still applies.
func (fc *FileController) CreatePreviewURL(c *fiber.Ctx) error {
	tenant, err := middlewares.TenantFrom(c)
	if err != nil {
		return err
	}
	var input PreviewInput
	if err := middlewares.BindAndValidate(c, &input); err != nil {
		return err
	}
	link, err := fc.previews.ForLocator(c.UserContext(), tenant.TenantID, input.ObjectLocator)
	if err != nil {
		return err
	}
	return c.JSON(success(fiber.Map{"url": link.URL, "filename": link.Filename, "expiresIn": link.ExpiresIn, "expiresAt": link.ExpiresAt}))
}
