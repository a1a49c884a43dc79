package filter

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"budgetme-notifications/internal/domain"
)

const duplicateWindow = time.Hour

// Metadata keys written on a consolidated representative.
const (
	MetaDuplicateCount  = "duplicate_count"
	MetaConsolidatedIDs = "consolidated_ids"
	MetaOriginalTitle   = "original_title"
)

type dupKey struct {
	typ     domain.NotificationType
	event   domain.EventType
	related domain.RelatedEntity
}

// Consolidate collapses unread duplicates, those sharing type, event and related
// entity and created within an hour of the group's newest member, into the
// newest one. Absorbed notifications are marked read and the representative's
// rewritten title and metadata are saved. Notifications a representative
// already absorbed are dropped, so running it again changes nothing.
func (e *engine) Consolidate(ctx context.Context, userID uuid.UUID, notifications []*domain.Notification) ([]*domain.Notification, error) {
	absorbed := make(map[uuid.UUID]bool)
	for _, n := range notifications {
		for _, id := range n.Metadata.Strings(MetaConsolidatedIDs) {
			if parsed, err := uuid.Parse(id); err == nil {
				absorbed[parsed] = true
			}
		}
	}

	candidates := make([]*domain.Notification, 0, len(notifications))
	for _, n := range notifications {
		if !absorbed[n.ID] {
			candidates = append(candidates, n)
		}
	}

	groups := duplicateGroups(candidates)
	var toMark []uuid.UUID
	for _, g := range groups {
		rep := g[0]
		merge(rep, g[1:])
		if err := e.store.SaveContent(ctx, rep); err != nil {
			return nil, fmt.Errorf("failed to save consolidated notification: %w", err)
		}
		for _, n := range g[1:] {
			n.MarkRead(e.now().UTC())
			absorbed[n.ID] = true
			toMark = append(toMark, n.ID)
		}
	}
	if err := e.markRead(ctx, userID, toMark); err != nil {
		return nil, err
	}

	out := make([]*domain.Notification, 0, len(candidates))
	for _, n := range candidates {
		if !absorbed[n.ID] {
			out = append(out, n)
		}
	}
	return track("duplicates", notifications, out), nil
}

// duplicateGroups returns every group of two or more duplicates, newest first
// within a group. Notifications without a related entity never merge.
func duplicateGroups(notifications []*domain.Notification) [][]*domain.Notification {
	byKey := make(map[dupKey][]*domain.Notification)
	var keys []dupKey
	for _, n := range notifications {
		if n.IsRead || n.Related.IsZero() {
			continue
		}
		k := dupKey{typ: n.NotificationType, event: n.EventType, related: n.Related}
		if _, ok := byKey[k]; !ok {
			keys = append(keys, k)
		}
		byKey[k] = append(byKey[k], n)
	}

	var groups [][]*domain.Notification
	for _, k := range keys {
		members := byKey[k]
		sort.SliceStable(members, func(i, j int) bool {
			return members[i].CreatedAt.After(members[j].CreatedAt)
		})

		current := []*domain.Notification{members[0]}
		for _, n := range members[1:] {
			if current[0].CreatedAt.Sub(n.CreatedAt) <= duplicateWindow {
				current = append(current, n)
				continue
			}
			if len(current) > 1 {
				groups = append(groups, current)
			}
			current = []*domain.Notification{n}
		}
		if len(current) > 1 {
			groups = append(groups, current)
		}
	}
	return groups
}

// merge folds the absorbed notifications into rep, carrying over anything they
// had absorbed themselves.
func merge(rep *domain.Notification, others []*domain.Notification) {
	meta := rep.Metadata.Clone()

	original := meta.String(MetaOriginalTitle)
	if original == "" {
		original = rep.Title
	}

	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if id == rep.ID.String() || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}
	for _, id := range meta.Strings(MetaConsolidatedIDs) {
		add(id)
	}
	for _, n := range others {
		add(n.ID.String())
		for _, id := range n.Metadata.Strings(MetaConsolidatedIDs) {
			add(id)
		}
	}

	count := len(ids) + 1
	meta[MetaConsolidatedIDs] = ids
	meta[MetaDuplicateCount] = count
	meta[MetaOriginalTitle] = original
	rep.Metadata = meta
	rep.Title = fmt.Sprintf("%s (%d)", original, count)
}

// markRead persists read state in batches the store accepts.
func (e *engine) markRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	for start := 0; start < len(ids); start += domain.MaxBatchMarkRead {
		end := min(start+domain.MaxBatchMarkRead, len(ids))
		if _, err := e.store.MarkMultipleAsRead(ctx, ids[start:end], userID); err != nil {
			return fmt.Errorf("failed to mark duplicates as read: %w", err)
		}
	}
	return nil
}
