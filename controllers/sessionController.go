package controllers

import (
	"invoice-dashboard-backend/middlewares"

	"github.com/gofiber/fiber/v2"
)

func GetSession(c *fiber.Ctx) error {
	tenant, err := middlewares.TenantFrom(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"tenantId": tenant.TenantID,
		"email":    tenant.Email,
		"username": tenant.Username,
	})
}

func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "status": "ok"})
}
