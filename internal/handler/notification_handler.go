package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"budgetme-notifications/internal/domain"
	"budgetme-notifications/internal/logging"
	"budgetme-notifications/internal/middleware"
	"budgetme-notifications/internal/realtime"
	"budgetme-notifications/internal/service/auth"
	"budgetme-notifications/internal/service/filter"
	"budgetme-notifications/internal/service/notification"
)

const (
	streamHeartbeat = 25 * time.Second
	streamBuffer    = 16
)

type NotificationHandler struct {
	notifService notification.Service
	engine       filter.Engine
	maxLimit     int
}

func NewNotificationHandler(notifService notification.Service, engine filter.Engine, maxLimit int) *NotificationHandler {
	return &NotificationHandler{
		notifService: notifService,
		engine:       engine,
		maxLimit:     maxLimit,
	}
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	q, err := parseQuery(c)
	if err != nil {
		return err
	}

	page, err := h.notifService.GetNotifications(c.Context(), userID, q)
	if err != nil {
		return err
	}
	return respondPage(c, page)
}

// Smart returns the user's notifications after consolidation, filtering,
// quiet hours, the hourly cap and ranking, optionally grouped.
func (h *NotificationHandler) Smart(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	q, err := parseQuery(c)
	if err != nil {
		return err
	}
	groupBy := domain.GroupBy(c.Query("group_by"))
	if !groupBy.IsValid() {
		return &domain.ValidationError{Field: "group_by", Message: "must be one of type, priority, read_status, date"}
	}

	criteria := filter.Criteria{
		NotificationType: q.NotificationType,
		EventType:        q.EventType,
		Priority:         q.Priority,
		IsRead:           q.IsRead,
		CreatedAfter:     q.CreatedAfter,
		CreatedBefore:    q.CreatedBefore,
	}
	if v := c.Query("severity"); v != "" {
		sev := domain.Severity(v)
		if !sev.IsValid() {
			return &domain.ValidationError{Field: "severity", Message: "unknown severity"}
		}
		criteria.Severity = &sev
	}

	// The engine does its own filtering; load the newest page unfiltered so
	// duplicates of read or older rows can still be consolidated.
	page, err := h.notifService.GetNotifications(c.Context(), userID, domain.NotificationQuery{
		Limit:     h.maxLimit,
		SortBy:    domain.SortByCreatedAt,
		SortOrder: domain.SortDesc,
	})
	if err != nil {
		return err
	}

	result, err := h.engine.Process(c.Context(), userID, page.Data, filter.Options{
		Criteria: criteria,
		GroupBy:  groupBy,
	})
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, result)
}

func (h *NotificationHandler) GetUnreadCount(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	count, err := h.notifService.GetUnreadCount(c.Context(), userID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, fiber.Map{"count": count})
}

func (h *NotificationHandler) GetCounts(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	counts, err := h.notifService.GetNotificationCounts(c.Context(), userID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, counts)
}

func (h *NotificationHandler) Get(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}
	id, err := notificationID(c)
	if err != nil {
		return err
	}

	n, err := h.notifService.GetNotification(c.Context(), id, userID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, n)
}

func (h *NotificationHandler) ListDeliveries(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}
	id, err := notificationID(c)
	if err != nil {
		return err
	}

	logs, err := h.notifService.ListDeliveryLogs(c.Context(), id, userID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, logs)
}

// Create lets users notify themselves and service callers notify anyone.
func (h *NotificationHandler) Create(c *fiber.Ctx) error {
	claims := middleware.GetClaims(c)
	if claims == nil {
		return middleware.Unauthorized("User not authenticated")
	}

	var input domain.CreateNotificationInput
	if err := c.BodyParser(&input); err != nil {
		return middleware.BadRequest("Invalid request body")
	}
	if claims.Role != auth.RoleService {
		input.UserID = claims.UserID
	}

	n, err := h.notifService.CreateNotification(c.Context(), input)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, n)
}

func (h *NotificationHandler) MarkAsRead(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}
	id, err := notificationID(c)
	if err != nil {
		return err
	}

	if err := h.notifService.MarkAsRead(c.Context(), id, userID); err != nil {
		return err
	}
	return respondMessage(c, "Notification marked as read", nil)
}

func (h *NotificationHandler) MarkAsClicked(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}
	id, err := notificationID(c)
	if err != nil {
		return err
	}

	if err := h.notifService.MarkAsClicked(c.Context(), id, userID); err != nil {
		return err
	}
	// Clicks feed the action rate used in scoring.
	h.engine.InvalidateAnalytics(c.Context(), userID)
	return respondMessage(c, "Notification marked as clicked", nil)
}

func (h *NotificationHandler) MarkAllAsRead(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	updated, err := h.notifService.MarkAllAsRead(c.Context(), userID)
	if err != nil {
		return err
	}
	return respondMessage(c, "All notifications marked as read", fiber.Map{"updated": updated})
}

type markReadRequest struct {
	NotificationIDs []uuid.UUID `json:"notification_ids"`
}

func (h *NotificationHandler) MarkMultipleAsRead(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	var req markReadRequest
	if err := c.BodyParser(&req); err != nil {
		return middleware.BadRequest("Invalid request body")
	}

	updated, err := h.notifService.MarkMultipleAsRead(c.Context(), req.NotificationIDs, userID)
	if err != nil {
		return err
	}
	return respondMessage(c, "Notifications marked as read", fiber.Map{"updated": updated})
}

func (h *NotificationHandler) Delete(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}
	id, err := notificationID(c)
	if err != nil {
		return err
	}

	if err := h.notifService.DeleteNotification(c.Context(), id, userID); err != nil {
		return err
	}
	return respondMessage(c, "Notification deleted", nil)
}

func (h *NotificationHandler) DeleteExpired(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	deleted, err := h.notifService.DeleteExpiredNotifications(c.Context(), userID)
	if err != nil {
		return err
	}
	return respondMessage(c, "Expired notifications deleted", fiber.Map{"deleted": deleted})
}

func (h *NotificationHandler) GetPreferences(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	prefs, err := h.notifService.GetNotificationPreferences(c.Context(), userID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, prefs)
}

func (h *NotificationHandler) UpdatePreferences(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	var input domain.UpdatePreferencesInput
	if err := c.BodyParser(&input); err != nil {
		return middleware.BadRequest("Invalid request body")
	}

	prefs, err := h.notifService.UpdateNotificationPreferences(c.Context(), userID, input)
	if err != nil {
		return err
	}
	return respondMessage(c, "Preferences updated", prefs)
}

// Stream pushes the user's notification changes as server-sent events until
// the client goes away.
func (h *NotificationHandler) Stream(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan notification.Change, streamBuffer)
	unsubscribe, err := h.notifService.SubscribeToNotifications(ctx, userID, func(ctx context.Context, ch notification.Change) {
		select {
		case events <- ch:
		case <-ctx.Done():
		}
	})
	if err != nil {
		cancel()
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	log := logging.Component("notification_stream")
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer unsubscribe()

		if err := writeComment(w, "ok"); err != nil {
			return
		}

		heartbeat := time.NewTicker(streamHeartbeat)
		defer heartbeat.Stop()

		for {
			select {
			case <-heartbeat.C:
				if err := writeComment(w, "ping"); err != nil {
					return
				}
			case ch := <-events:
				if err := writeEvent(w, ch); err != nil {
					log.Debug().Err(err).Str("user_id", userID.String()).Msg("stream closed")
					return
				}
			}
		}
	})
	return nil
}

func writeComment(w *bufio.Writer, text string) error {
	if _, err := fmt.Fprintf(w, ": %s\n\n", text); err != nil {
		return err
	}
	return w.Flush()
}

func writeEvent(w *bufio.Writer, ch notification.Change) error {
	data, err := json.Marshal(ch.Notification)
	if err != nil {
		return err
	}
	name := "notification." + changeName(ch)
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	return w.Flush()
}

func changeName(ch notification.Change) string {
	switch ch.Type {
	case realtime.Insert:
		return "created"
	case realtime.Delete:
		return "deleted"
	default:
		return "updated"
	}
}

func notificationID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, middleware.BadRequest("Invalid notification ID")
	}
	return id, nil
}
