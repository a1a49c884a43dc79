package filter

import (
	"sort"
	"strings"
	"time"

	"budgetme-notifications/internal/domain"
)

var priorityOrder = []domain.Priority{
	domain.PriorityUrgent,
	domain.PriorityHigh,
	domain.PriorityMedium,
	domain.PriorityLow,
}

// Group buckets notifications, keeping their input order inside each group.
// Dates are calendar days in loc; date groups are newest first.
func Group(notifications []*domain.Notification, by domain.GroupBy, now time.Time, loc *time.Location) []domain.NotificationGroup {
	if loc == nil {
		loc = time.UTC
	}

	buckets := make(map[string]*domain.NotificationGroup)
	var order []string
	for _, n := range notifications {
		key, label := groupKey(n, by, now, loc)
		g, ok := buckets[key]
		if !ok {
			g = &domain.NotificationGroup{Key: key, Label: label}
			buckets[key] = g
			order = append(order, key)
		}
		g.Notifications = append(g.Notifications, n)
		g.Count++
	}

	sort.SliceStable(order, func(i, j int) bool {
		if by == domain.GroupByDate {
			return order[i] > order[j]
		}
		return groupRank(order[i], by) < groupRank(order[j], by)
	})

	out := make([]domain.NotificationGroup, len(order))
	for i, key := range order {
		out[i] = *buckets[key]
	}
	return out
}

func groupKey(n *domain.Notification, by domain.GroupBy, now time.Time, loc *time.Location) (string, string) {
	switch by {
	case domain.GroupByType:
		return string(n.NotificationType), titleCase(string(n.NotificationType))
	case domain.GroupByPriority:
		return string(n.Priority), titleCase(string(n.Priority))
	case domain.GroupByReadStatus:
		if n.IsRead {
			return "read", "Read"
		}
		return "unread", "Unread"
	case domain.GroupByDate:
		day := n.CreatedAt.In(loc)
		key := day.Format("2006-01-02")
		today := now.In(loc)
		switch key {
		case today.Format("2006-01-02"):
			return key, "Today"
		case today.AddDate(0, 0, -1).Format("2006-01-02"):
			return key, "Yesterday"
		}
		return key, day.Format("Jan 2, 2006")
	}
	return "all", "All"
}

// groupRank orders the fixed vocabularies.
func groupRank(key string, by domain.GroupBy) int {
	switch by {
	case domain.GroupByType:
		for i, t := range domain.NotificationTypes {
			if string(t) == key {
				return i
			}
		}
		return len(domain.NotificationTypes)
	case domain.GroupByPriority:
		for i, p := range priorityOrder {
			if string(p) == key {
				return i
			}
		}
		return len(priorityOrder)
	case domain.GroupByReadStatus:
		if key == "unread" {
			return 0
		}
		return 1
	}
	return 0
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
