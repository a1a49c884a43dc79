package handler

import (
	"github.com/gofiber/fiber/v2"

	"budgetme-notifications/internal/domain"
)

// Response is the success form of the envelope every API route returns.
// Failures are rendered by middleware.ErrorHandler in the same shape.
type Response struct {
	Success    bool               `json:"success"`
	Data       any                `json:"data,omitempty"`
	Message    string             `json:"message,omitempty"`
	Pagination *domain.Pagination `json:"pagination,omitempty"`
}

func respond(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(Response{Success: true, Data: data})
}

func respondMessage(c *fiber.Ctx, message string, data any) error {
	return c.Status(fiber.StatusOK).JSON(Response{Success: true, Data: data, Message: message})
}

func respondPage[T any](c *fiber.Ctx, page domain.PaginatedResponse[T]) error {
	return c.Status(fiber.StatusOK).JSON(Response{
		Success:    true,
		Data:       page.Data,
		Pagination: &page.Pagination,
	})
}
