package notification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"budgetme-notifications/internal/config"
	"budgetme-notifications/internal/domain"
	"budgetme-notifications/internal/logging"
	"budgetme-notifications/internal/metrics"
	"budgetme-notifications/internal/pkg/catalog"
	"budgetme-notifications/internal/pkg/validation"
	"budgetme-notifications/internal/realtime"
	"budgetme-notifications/internal/repository"
	"budgetme-notifications/internal/service/email"
)

const unreadCacheTTL = 60 * time.Second

type Service interface {
	CreateNotification(ctx context.Context, in domain.CreateNotificationInput) (*domain.Notification, error)
	GetNotifications(ctx context.Context, userID uuid.UUID, q domain.NotificationQuery) (domain.PaginatedResponse[*domain.Notification], error)
	GetNotification(ctx context.Context, id, userID uuid.UUID) (*domain.Notification, error)
	ListUnreadSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*domain.Notification, error)

	MarkAsRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkMultipleAsRead(ctx context.Context, ids []uuid.UUID, userID uuid.UUID) (int64, error)
	MarkAsClicked(ctx context.Context, id, userID uuid.UUID) error
	SaveContent(ctx context.Context, n *domain.Notification) error

	DeleteNotification(ctx context.Context, id, userID uuid.UUID) error
	DeleteExpiredNotifications(ctx context.Context, userID uuid.UUID) (int64, error)
	CleanupExpired(ctx context.Context) (int64, error)

	GetUnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	GetNotificationCounts(ctx context.Context, userID uuid.UUID) (*domain.NotificationCounts, error)

	GetNotificationPreferences(ctx context.Context, userID uuid.UUID) (*domain.NotificationPreferences, error)
	UpdateNotificationPreferences(ctx context.Context, userID uuid.UUID, in domain.UpdatePreferencesInput) (*domain.NotificationPreferences, error)

	RenderTemplate(ctx context.Context, typ domain.NotificationType, event domain.EventType, data map[string]any) (*domain.RenderedTemplate, error)
	SubscribeToNotifications(ctx context.Context, userID uuid.UUID, fn func(context.Context, Change)) (func(), error)
	ListDeliveryLogs(ctx context.Context, notificationID, userID uuid.UUID) ([]domain.DeliveryLog, error)
}

// Change is a notification row change delivered to subscribers. For deletes
// Notification holds the last stored state.
type Change struct {
	Type         realtime.ChangeType  `json:"type"`
	Notification *domain.Notification `json:"notification"`
}

// Deps groups the collaborators of the service.
type Deps struct {
	Notifications repository.NotificationRepository
	Preferences   repository.PreferencesRepository
	Templates     repository.TemplateRepository
	DeliveryLogs  repository.DeliveryLogRepository
	Profiles      repository.ProfileRepository
	Catalog       *catalog.Catalog
	Email         email.Service
	Redis         *redis.Client
	Hub           *realtime.Hub
	Config        config.NotificationConfig
}

type service struct {
	notifRepo    repository.NotificationRepository
	prefsRepo    repository.PreferencesRepository
	templateRepo repository.TemplateRepository
	deliveryRepo repository.DeliveryLogRepository
	profileRepo  repository.ProfileRepository
	catalog      *catalog.Catalog
	emailSvc     email.Service
	redis        *redis.Client
	hub          *realtime.Hub
	cfg          config.NotificationConfig
	log          zerolog.Logger

	now   func() time.Time
	async func(fn func())
}

func NewService(d Deps) Service {
	return newService(d)
}

func newService(d Deps) *service {
	return &service{
		notifRepo:    d.Notifications,
		prefsRepo:    d.Preferences,
		templateRepo: d.Templates,
		deliveryRepo: d.DeliveryLogs,
		profileRepo:  d.Profiles,
		catalog:      d.Catalog,
		emailSvc:     d.Email,
		redis:        d.Redis,
		hub:          d.Hub,
		cfg:          d.Config,
		log:          logging.Component("notification_service"),
		now:          time.Now,
		async:        func(fn func()) { go fn() },
	}
}

func (s *service) CreateNotification(ctx context.Context, in domain.CreateNotificationInput) (*domain.Notification, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	category, ok := in.EventType.Category()
	if !ok {
		return nil, &domain.ValidationError{Field: "event_type", Message: "unknown event type"}
	}
	if category != in.NotificationType {
		return nil, &domain.ValidationError{
			Field:   "event_type",
			Message: fmt.Sprintf("%s does not belong to %s notifications", in.EventType, in.NotificationType),
		}
	}

	now := s.now().UTC()
	n := &domain.Notification{
		ID:               uuid.New(),
		UserID:           in.UserID,
		NotificationType: in.NotificationType,
		EventType:        in.EventType,
		Title:            in.Title,
		Message:          in.Message,
		Priority:         in.Priority,
		Severity:         in.Severity,
		IsActionable:     in.IsActionable,
		ActionURL:        in.ActionURL,
		ActionText:       in.ActionText,
		Related:          in.Related,
		Metadata:         in.Metadata.Clone(),
		CreatedAt:        now,
	}

	if n.Title == "" || n.Message == "" {
		if in.TemplateData == nil {
			return nil, &domain.ValidationError{Field: "title", Message: "title and message are required without template_data"}
		}
		rendered, err := s.RenderTemplate(ctx, in.NotificationType, in.EventType, in.TemplateData)
		if err != nil {
			return nil, err
		}
		applyRendered(n, rendered)
	}
	if !n.Priority.IsValid() {
		n.Priority = domain.PriorityMedium
	}
	if !n.Severity.IsValid() {
		n.Severity = domain.SeverityInfo
	}
	if in.ExpiresInHours != nil {
		expires := now.Add(time.Duration(*in.ExpiresInHours) * time.Hour)
		n.ExpiresAt = &expires
	}

	if err := s.notifRepo.Create(ctx, n); err != nil {
		return nil, domain.NewStoreError("failed to create notification", err)
	}
	metrics.NotificationsCreated.WithLabelValues(string(n.NotificationType), string(n.EventType)).Inc()

	s.recordInAppDelivery(ctx, n)
	s.invalidateUnread(ctx, n.UserID)

	if n.Priority == domain.PriorityHigh || n.Priority == domain.PriorityUrgent {
		s.deliverEmail(ctx, n)
	}

	return n, nil
}

// applyRendered fills the fields the caller left empty.
func applyRendered(n *domain.Notification, r *domain.RenderedTemplate) {
	if n.Title == "" {
		n.Title = r.Title
	}
	if n.Message == "" {
		n.Message = r.Message
	}
	if n.Priority == "" {
		n.Priority = r.Priority
	}
	if n.Severity == "" {
		n.Severity = r.Severity
	}
	if r.IsActionable {
		n.IsActionable = true
	}
	if n.ActionURL == nil {
		n.ActionURL = r.ActionURL
	}
	if n.ActionText == nil {
		n.ActionText = r.ActionText
	}
}

func (s *service) recordInAppDelivery(ctx context.Context, n *domain.Notification) {
	now := s.now().UTC()
	entry := &domain.DeliveryLog{
		ID:             uuid.New(),
		NotificationID: n.ID,
		UserID:         n.UserID,
		Method:         domain.DeliveryInApp,
		Status:         domain.DeliveryDelivered,
		AttemptedAt:    now,
		DeliveredAt:    &now,
	}
	if err := s.deliveryRepo.Create(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("notification_id", n.ID.String()).Msg("failed to record in-app delivery")
		return
	}
	if err := s.notifRepo.MarkDelivered(ctx, n.ID, now); err != nil {
		s.log.Warn().Err(err).Str("notification_id", n.ID.String()).Msg("failed to mark notification delivered")
		return
	}
	n.DeliveredAt = &now
}

func (s *service) deliverEmail(ctx context.Context, n *domain.Notification) {
	if s.emailSvc == nil || s.profileRepo == nil {
		return
	}
	prefs, err := s.GetNotificationPreferences(ctx, n.UserID)
	if err != nil || !prefs.EmailEnabled {
		return
	}
	profile, err := s.profileRepo.GetByID(ctx, n.UserID)
	if err != nil || profile == nil || profile.Email == "" {
		return
	}

	snapshot := *n
	s.async(func() {
		ctx := context.Background()
		attempted := s.now().UTC()
		entry := &domain.DeliveryLog{
			ID:             uuid.New(),
			NotificationID: snapshot.ID,
			UserID:         snapshot.UserID,
			Method:         domain.DeliveryEmail,
			AttemptedAt:    attempted,
		}
		if err := s.emailSvc.SendNotificationEmail(ctx, profile.Email, profile.DisplayName(), &snapshot); err != nil {
			msg := err.Error()
			entry.Status = domain.DeliveryFailed
			entry.ErrorMessage = &msg
			s.log.Warn().Err(err).Str("notification_id", snapshot.ID.String()).Msg("email delivery failed")
		} else {
			sent := s.now().UTC()
			entry.Status = domain.DeliverySent
			entry.DeliveredAt = &sent
		}
		if err := s.deliveryRepo.Create(ctx, entry); err != nil {
			s.log.Warn().Err(err).Str("notification_id", snapshot.ID.String()).Msg("failed to record email delivery")
		}
	})
}

func (s *service) GetNotifications(ctx context.Context, userID uuid.UUID, q domain.NotificationQuery) (domain.PaginatedResponse[*domain.Notification], error) {
	q.Normalize(s.cfg.MaxListLimit)
	items, total, err := s.notifRepo.List(ctx, userID, q)
	if err != nil {
		return domain.PaginatedResponse[*domain.Notification]{}, domain.NewStoreError("failed to list notifications", err)
	}
	return domain.NewPaginatedResponse(items, q.Limit, q.Offset, total), nil
}

func (s *service) GetNotification(ctx context.Context, id, userID uuid.UUID) (*domain.Notification, error) {
	n, err := s.notifRepo.GetByID(ctx, id, userID)
	if err != nil {
		return nil, domain.NewStoreError("failed to get notification", err)
	}
	if n == nil {
		return nil, &domain.NotFoundError{Entity: "notification", ID: id.String()}
	}
	return n, nil
}

func (s *service) ListUnreadSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*domain.Notification, error) {
	items, err := s.notifRepo.ListUnreadSince(ctx, userID, since)
	if err != nil {
		return nil, domain.NewStoreError("failed to list unread notifications", err)
	}
	return items, nil
}

func (s *service) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	found, err := s.notifRepo.MarkAsRead(ctx, id, userID)
	if err != nil {
		return domain.NewStoreError("failed to mark notification as read", err)
	}
	if !found {
		return &domain.NotFoundError{Entity: "notification", ID: id.String()}
	}
	s.invalidateUnread(ctx, userID)
	return nil
}

func (s *service) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.notifRepo.MarkAllAsRead(ctx, userID)
	if err != nil {
		return 0, domain.NewStoreError("failed to mark notifications as read", err)
	}
	s.invalidateUnread(ctx, userID)
	return n, nil
}

func (s *service) MarkMultipleAsRead(ctx context.Context, ids []uuid.UUID, userID uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if len(ids) > domain.MaxBatchMarkRead {
		return 0, &domain.ValidationError{
			Field:   "notification_ids",
			Message: fmt.Sprintf("at most %d ids per request", domain.MaxBatchMarkRead),
		}
	}
	n, err := s.notifRepo.MarkManyAsRead(ctx, dedupeIDs(ids), userID)
	if err != nil {
		return 0, domain.NewStoreError("failed to mark notifications as read", err)
	}
	if n > 0 {
		s.invalidateUnread(ctx, userID)
	}
	return n, nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (s *service) MarkAsClicked(ctx context.Context, id, userID uuid.UUID) error {
	found, err := s.notifRepo.MarkClicked(ctx, id, userID)
	if err != nil {
		return domain.NewStoreError("failed to mark notification as clicked", err)
	}
	if !found {
		return &domain.NotFoundError{Entity: "notification", ID: id.String()}
	}
	s.invalidateUnread(ctx, userID)
	return nil
}

// SaveContent persists a rewritten title, message, metadata and read state.
func (s *service) SaveContent(ctx context.Context, n *domain.Notification) error {
	if err := s.notifRepo.UpdateContent(ctx, n); err != nil {
		return domain.NewStoreError("failed to update notification", err)
	}
	s.invalidateUnread(ctx, n.UserID)
	return nil
}

func (s *service) DeleteNotification(ctx context.Context, id, userID uuid.UUID) error {
	found, err := s.notifRepo.Delete(ctx, id, userID)
	if err != nil {
		return domain.NewStoreError("failed to delete notification", err)
	}
	if !found {
		return &domain.NotFoundError{Entity: "notification", ID: id.String()}
	}
	s.invalidateUnread(ctx, userID)
	return nil
}

func (s *service) DeleteExpiredNotifications(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.notifRepo.DeleteExpiredByUser(ctx, userID)
	if err != nil {
		return 0, domain.NewStoreError("failed to delete expired notifications", err)
	}
	if n > 0 {
		s.invalidateUnread(ctx, userID)
	}
	return n, nil
}

func (s *service) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.notifRepo.DeleteExpiredRead(ctx)
	if err != nil {
		return 0, domain.NewStoreError("failed to clean up expired notifications", err)
	}
	return n, nil
}

func unreadCacheKey(userID uuid.UUID) string {
	return "notifications:unread:" + userID.String()
}

func (s *service) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	key := unreadCacheKey(userID)
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, key).Result(); err == nil {
			if count, perr := strconv.ParseInt(cached, 10, 64); perr == nil {
				metrics.CacheHits.WithLabelValues("unread_count").Inc()
				return count, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("unread_count").Inc()
	}

	count, err := s.notifRepo.CountUnread(ctx, userID)
	if err != nil {
		return 0, domain.NewStoreError("failed to count unread notifications", err)
	}
	if s.redis != nil {
		_ = s.redis.Set(ctx, key, count, unreadCacheTTL).Err()
	}
	return count, nil
}

func (s *service) invalidateUnread(ctx context.Context, userID uuid.UUID) {
	if s.redis != nil {
		_ = s.redis.Del(ctx, unreadCacheKey(userID)).Err()
	}
}

func (s *service) GetNotificationCounts(ctx context.Context, userID uuid.UUID) (*domain.NotificationCounts, error) {
	counts, err := s.notifRepo.Counts(ctx, userID)
	if err != nil {
		return nil, domain.NewStoreError("failed to count notifications", err)
	}
	return counts, nil
}

func (s *service) GetNotificationPreferences(ctx context.Context, userID uuid.UUID) (*domain.NotificationPreferences, error) {
	prefs, err := s.prefsRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, domain.NewStoreError("failed to get notification preferences", err)
	}
	if prefs != nil {
		return prefs, nil
	}

	defaults := domain.DefaultPreferences(userID, domain.PreferenceDefaults{
		LargeTransactionThreshold: s.cfg.LargeTransactionThreshold,
		QuietHoursStart:           s.cfg.QuietHoursStart,
		QuietHoursEnd:             s.cfg.QuietHoursEnd,
		QuietHoursTimezone:        s.cfg.QuietHoursTimezone,
		MaxNotificationsPerHour:   s.cfg.MaxNotificationsPerHour,
	})
	stored, err := s.prefsRepo.Create(ctx, defaults)
	if err != nil {
		return nil, domain.NewStoreError("failed to create notification preferences", err)
	}
	return stored, nil
}

func (s *service) UpdateNotificationPreferences(ctx context.Context, userID uuid.UUID, in domain.UpdatePreferencesInput) (*domain.NotificationPreferences, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	prefs, err := s.GetNotificationPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	in.Apply(prefs)
	prefs.UpdatedAt = s.now().UTC()

	if err := s.prefsRepo.Update(ctx, prefs); err != nil {
		return nil, domain.NewStoreError("failed to update notification preferences", err)
	}
	return prefs, nil
}

// RenderTemplate resolves the stored template for the pair, falling back to the
// built-in catalogue.
func (s *service) RenderTemplate(ctx context.Context, typ domain.NotificationType, event domain.EventType, data map[string]any) (*domain.RenderedTemplate, error) {
	tmpl, err := s.templateRepo.GetActive(ctx, typ, event)
	if err != nil {
		s.log.Warn().Err(err).Str("event_type", string(event)).Msg("stored template lookup failed, using catalogue")
		tmpl = nil
	}
	if tmpl == nil && s.catalog != nil {
		if builtin, ok := s.catalog.Lookup(typ, event); ok {
			tmpl = builtin
		}
	}
	if tmpl == nil {
		return nil, &domain.TemplateNotFoundError{NotificationType: typ, EventType: event}
	}
	return catalog.Render(tmpl, data)
}

// notificationImage is the notifications row as published by the change feed.
type notificationImage struct {
	domain.Notification
	RelatedBudgetID      *uuid.UUID `json:"related_budget_id"`
	RelatedGoalID        *uuid.UUID `json:"related_goal_id"`
	RelatedFamilyID      *uuid.UUID `json:"related_family_id"`
	RelatedTransactionID *uuid.UUID `json:"related_transaction_id"`
}

func (img *notificationImage) toDomain() *domain.Notification {
	n := img.Notification
	n.Related = domain.RelatedFromColumns(img.RelatedBudgetID, img.RelatedGoalID, img.RelatedFamilyID, img.RelatedTransactionID)
	return &n
}

func decodeChange(ev realtime.ChangeEvent) (*domain.Notification, error) {
	var img notificationImage
	var err error
	if ev.Type == realtime.Delete {
		err = ev.DecodeOld(&img)
	} else {
		err = ev.Decode(&img)
	}
	if err != nil {
		return nil, err
	}
	return img.toDomain(), nil
}

// SubscribeToNotifications streams changes to the user's notifications until
// the returned func is called or ctx ends.
func (s *service) SubscribeToNotifications(ctx context.Context, userID uuid.UUID, fn func(context.Context, Change)) (func(), error) {
	if s.hub == nil {
		return nil, errors.New("change feed is not configured")
	}
	if fn == nil {
		return nil, &domain.ValidationError{Field: "callback", Message: "is required"}
	}

	sub := s.hub.Subscribe("notifications", nil, realtime.Filter{"user_id": userID.String()})
	go sub.Run(ctx, func(ctx context.Context, ev realtime.ChangeEvent) {
		n, err := decodeChange(ev)
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("undecodable notification change")
			return
		}
		fn(ctx, Change{Type: ev.Type, Notification: n})
	})
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.Done():
		}
	}()
	return sub.Close, nil
}

func (s *service) ListDeliveryLogs(ctx context.Context, notificationID, userID uuid.UUID) ([]domain.DeliveryLog, error) {
	if _, err := s.GetNotification(ctx, notificationID, userID); err != nil {
		return nil, err
	}
	logs, err := s.deliveryRepo.ListByNotification(ctx, notificationID, userID)
	if err != nil {
		return nil, domain.NewStoreError("failed to list delivery logs", err)
	}
	if logs == nil {
		logs = []domain.DeliveryLog{}
	}
	return logs, nil
}
