package handler

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"budgetme-notifications/internal/domain"
)

// parseQuery reads listing options from the query string. Limits are clamped
// later by the service; malformed values are rejected.
func parseQuery(c *fiber.Ctx) (domain.NotificationQuery, error) {
	q := domain.NotificationQuery{
		Limit:     c.QueryInt("limit", domain.DefaultQueryLimit),
		Offset:    c.QueryInt("offset", 0),
		SortBy:    domain.SortField(c.Query("sort_by", string(domain.SortByCreatedAt))),
		SortOrder: domain.SortOrder(c.Query("sort_order", string(domain.SortDesc))),
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	var errs domain.ValidationErrors

	if v := c.Query("notification_type"); v != "" {
		t := domain.NotificationType(v)
		if t.IsValid() {
			q.NotificationType = &t
		} else {
			errs = append(errs, &domain.ValidationError{Field: "notification_type", Message: "unknown notification type"})
		}
	}
	if v := c.Query("event_type"); v != "" {
		e := domain.EventType(v)
		if e.IsValid() {
			q.EventType = &e
		} else {
			errs = append(errs, &domain.ValidationError{Field: "event_type", Message: "unknown event type"})
		}
	}
	if v := c.Query("priority"); v != "" {
		p := domain.Priority(v)
		if p.IsValid() {
			q.Priority = &p
		} else {
			errs = append(errs, &domain.ValidationError{Field: "priority", Message: "unknown priority"})
		}
	}
	if v := c.Query("is_read"); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			q.IsRead = &b
		} else {
			errs = append(errs, &domain.ValidationError{Field: "is_read", Message: "must be true or false"})
		}
	}
	for field, dst := range map[string]**time.Time{
		"created_after":  &q.CreatedAfter,
		"created_before": &q.CreatedBefore,
	} {
		v := c.Query(field)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			errs = append(errs, &domain.ValidationError{Field: field, Message: "must be an RFC 3339 timestamp"})
			continue
		}
		*dst = &t
	}

	switch q.SortBy {
	case domain.SortByCreatedAt, domain.SortByPriority, domain.SortByIsRead:
	default:
		errs = append(errs, &domain.ValidationError{Field: "sort_by", Message: "must be one of created_at, priority, is_read"})
	}
	switch q.SortOrder {
	case domain.SortAsc, domain.SortDesc:
	default:
		errs = append(errs, &domain.ValidationError{Field: "sort_order", Message: "must be asc or desc"})
	}

	if len(errs) > 0 {
		return q, errs
	}
	return q, nil
}
