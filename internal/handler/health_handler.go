package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"budgetme-notifications/internal/service/manager"
)

const healthTimeout = 2 * time.Second

// Pinger is satisfied by *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db      Pinger
	manager manager.Manager
}

func NewHealthHandler(db Pinger, mgr manager.Manager) *HealthHandler {
	return &HealthHandler{db: db, manager: mgr}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), healthTimeout)
	defer cancel()

	code, status, database := fiber.StatusOK, "ok", "ok"
	if err := h.db.PingContext(ctx); err != nil {
		code, status, database = fiber.StatusServiceUnavailable, "degraded", "unreachable"
	}

	return c.Status(code).JSON(fiber.Map{
		"status":   status,
		"database": database,
		"manager":  h.manager.State(),
	})
}
