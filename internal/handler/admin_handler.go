package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"budgetme-notifications/internal/middleware"
	"budgetme-notifications/internal/service/detector"
	"budgetme-notifications/internal/service/manager"
)

// AdminHandler exposes manual triggers for backend callers holding a service
// token.
type AdminHandler struct {
	manager manager.Manager
	goals   detector.GoalDetector
}

func NewAdminHandler(mgr manager.Manager, goals detector.GoalDetector) *AdminHandler {
	return &AdminHandler{manager: mgr, goals: goals}
}

func (h *AdminHandler) RunScheduledTasks(c *fiber.Ctx) error {
	results := h.manager.RunScheduledTasks(c.Context())
	return respond(c, fiber.StatusOK, results)
}

func (h *AdminHandler) RunCleanupTasks(c *fiber.Ctx) error {
	results := h.manager.RunCleanupTasks(c.Context())
	return respond(c, fiber.StatusOK, results)
}

func (h *AdminHandler) ResetDeadlineWarning(c *fiber.Ctx) error {
	goalID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return middleware.BadRequest("Invalid goal ID")
	}

	if err := h.goals.ResetDeadlineWarning(c.Context(), goalID); err != nil {
		return err
	}
	return respondMessage(c, "Deadline warning reset", nil)
}
