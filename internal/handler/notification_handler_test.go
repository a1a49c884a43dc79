package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"budgetme-notifications/internal/domain"
	"budgetme-notifications/internal/middleware"
	"budgetme-notifications/internal/service/auth"
	"budgetme-notifications/internal/service/filter"
	"budgetme-notifications/internal/service/notification"
)

// notificationService mocks the calls the handler makes; the embedded
// interface is nil, so an unexpected method panics.
type notificationService struct {
	notification.Service
	mock.Mock
}

func (m *notificationService) GetNotifications(ctx context.Context, userID uuid.UUID, q domain.NotificationQuery) (domain.PaginatedResponse[*domain.Notification], error) {
	args := m.Called(ctx, userID, q)
	return args.Get(0).(domain.PaginatedResponse[*domain.Notification]), args.Error(1)
}

func (m *notificationService) GetNotification(ctx context.Context, id, userID uuid.UUID) (*domain.Notification, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *notificationService) CreateNotification(ctx context.Context, in domain.CreateNotificationInput) (*domain.Notification, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *notificationService) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	return m.Called(ctx, id, userID).Error(0)
}

func (m *notificationService) MarkAsClicked(ctx context.Context, id, userID uuid.UUID) error {
	return m.Called(ctx, id, userID).Error(0)
}

func (m *notificationService) MarkMultipleAsRead(ctx context.Context, ids []uuid.UUID, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, ids, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *notificationService) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *notificationService) UpdateNotificationPreferences(ctx context.Context, userID uuid.UUID, in domain.UpdatePreferencesInput) (*domain.NotificationPreferences, error) {
	args := m.Called(ctx, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NotificationPreferences), args.Error(1)
}

type engine struct {
	filter.Engine
	mock.Mock
}

func (m *engine) Process(ctx context.Context, userID uuid.UUID, ns []*domain.Notification, opts filter.Options) (*filter.Result, error) {
	args := m.Called(ctx, userID, ns, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*filter.Result), args.Error(1)
}

func (m *engine) InvalidateAnalytics(ctx context.Context, userID uuid.UUID) {
	m.Called(ctx, userID)
}

type tokens map[string]*auth.Claims

func (t tokens) ValidateAccessToken(token string) (*auth.Claims, error) {
	if c, ok := t[token]; ok {
		return c, nil
	}
	return nil, auth.ErrInvalidToken
}

type fixture struct {
	app    *fiber.App
	notifs *notificationService
	engine *engine
	userID uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{
		notifs: new(notificationService),
		engine: new(engine),
		userID: uuid.New(),
	}
	authService := tokens{
		"user-token":    {UserID: f.userID, Role: "authenticated"},
		"service-token": {Role: auth.RoleService},
	}

	h := NewNotificationHandler(f.notifs, f.engine, 100)
	f.app = fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	api := f.app.Group("/api", middleware.AuthRequired(authService))
	n := api.Group("/notifications")
	n.Get("/", h.List)
	n.Get("/smart", h.Smart)
	n.Get("/unread-count", h.GetUnreadCount)
	n.Post("/", h.Create)
	n.Put("/read", h.MarkMultipleAsRead)
	n.Put("/preferences", h.UpdatePreferences)
	n.Get("/:id", h.Get)
	n.Put("/:id/read", h.MarkAsRead)
	n.Put("/:id/click", h.MarkAsClicked)
	return f
}

func (f *fixture) assertExpectations(t *testing.T) {
	f.notifs.AssertExpectations(t)
	f.engine.AssertExpectations(t)
}

func (f *fixture) do(t *testing.T, method, target, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestAuthRequired(t *testing.T) {
	f := newFixture()

	status, body := f.do(t, http.MethodGet, "/api/notifications/unread-count", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "UNAUTHORIZED", body["error"])

	status, _ = f.do(t, http.MethodGet, "/api/notifications/unread-count", "bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	// Service tokens carry no user, so user-scoped routes refuse them.
	status, _ = f.do(t, http.MethodGet, "/api/notifications/unread-count", "service-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestList(t *testing.T) {
	f := newFixture()
	n := &domain.Notification{ID: uuid.New(), UserID: f.userID, Title: "Budget exceeded"}

	budget := domain.NotificationTypeBudget
	unread := false
	f.notifs.On("GetNotifications", mock.Anything, f.userID, domain.NotificationQuery{
		Limit:            5,
		Offset:           10,
		NotificationType: &budget,
		IsRead:           &unread,
		SortBy:           domain.SortByPriority,
		SortOrder:        domain.SortDesc,
	}).Return(domain.NewPaginatedResponse([]*domain.Notification{n}, 5, 10, 11), nil).Once()

	status, body := f.do(t, http.MethodGet,
		"/api/notifications?limit=5&offset=10&notification_type=budget&is_read=false&sort_by=priority", "user-token", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["data"], 1)
	pagination := body["pagination"].(map[string]any)
	assert.EqualValues(t, 11, pagination["total"])
	assert.Equal(t, false, pagination["has_more"])
	f.assertExpectations(t)
}

func TestList_RejectsMalformedOptions(t *testing.T) {
	f := newFixture()

	status, body := f.do(t, http.MethodGet,
		"/api/notifications?priority=extreme&created_after=yesterday&sort_order=up", "user-token", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", body["error"])
	fields := body["fields"].(map[string]any)
	assert.Contains(t, fields, "priority")
	assert.Contains(t, fields, "created_after")
	assert.Contains(t, fields, "sort_order")
	f.assertExpectations(t)
}

func TestSmart(t *testing.T) {
	f := newFixture()
	n := &domain.Notification{ID: uuid.New(), UserID: f.userID, Priority: domain.PriorityHigh}
	page := domain.NewPaginatedResponse([]*domain.Notification{n}, 100, 0, 1)

	f.notifs.On("GetNotifications", mock.Anything, f.userID, domain.NotificationQuery{
		Limit: 100, SortBy: domain.SortByCreatedAt, SortOrder: domain.SortDesc,
	}).Return(page, nil).Once()
	f.engine.On("Process", mock.Anything, f.userID, page.Data, mock.MatchedBy(func(o filter.Options) bool {
		return o.GroupBy == domain.GroupByPriority &&
			o.Criteria.Severity != nil && *o.Criteria.Severity == domain.SeverityWarning &&
			o.Criteria.NotificationType == nil
	})).Return(&filter.Result{
		Notifications: []filter.Ranked{{Notification: n, Score: 3, SmartPriority: domain.PriorityHigh}},
		Total:         1,
	}, nil).Once()

	status, body := f.do(t, http.MethodGet, "/api/notifications/smart?group_by=priority&severity=warning", "user-token", nil)
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	ranked := data["notifications"].([]any)
	require.Len(t, ranked, 1)
	assert.EqualValues(t, 3, ranked[0].(map[string]any)["smart_score"])
	f.assertExpectations(t)
}

func TestSmart_UnknownGrouping(t *testing.T) {
	f := newFixture()
	status, body := f.do(t, http.MethodGet, "/api/notifications/smart?group_by=colour", "user-token", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", body["error"])
	f.assertExpectations(t)
}

func TestCreate(t *testing.T) {
	t.Run("users can only notify themselves", func(t *testing.T) {
		f := newFixture()
		other := uuid.New()
		created := &domain.Notification{ID: uuid.New(), UserID: f.userID}
		f.notifs.On("CreateNotification", mock.Anything, mock.MatchedBy(func(in domain.CreateNotificationInput) bool {
			return in.UserID == f.userID && in.EventType == domain.EventSystemAnnouncement
		})).Return(created, nil).Once()

		status, body := f.do(t, http.MethodPost, "/api/notifications", "user-token", map[string]any{
			"user_id":           other,
			"notification_type": "system",
			"event_type":        "system_announcement",
			"title":             "Hello",
			"message":           "World",
		})
		assert.Equal(t, http.StatusCreated, status)
		assert.Equal(t, true, body["success"])
		f.assertExpectations(t)
	})

	t.Run("service callers pick the recipient", func(t *testing.T) {
		f := newFixture()
		recipient := uuid.New()
		f.notifs.On("CreateNotification", mock.Anything, mock.MatchedBy(func(in domain.CreateNotificationInput) bool {
			return in.UserID == recipient
		})).Return(&domain.Notification{ID: uuid.New(), UserID: recipient}, nil).Once()

		status, _ := f.do(t, http.MethodPost, "/api/notifications", "service-token", map[string]any{
			"user_id":           recipient,
			"notification_type": "system",
			"event_type":        "system_maintenance",
			"template_data":     map[string]any{"window": "tonight"},
		})
		assert.Equal(t, http.StatusCreated, status)
		f.assertExpectations(t)
	})

	t.Run("missing template", func(t *testing.T) {
		f := newFixture()
		f.notifs.On("CreateNotification", mock.Anything, mock.Anything).Return(nil, &domain.TemplateNotFoundError{
			NotificationType: domain.NotificationTypeSystem, EventType: domain.EventSystemMaintenance,
		}).Once()

		status, body := f.do(t, http.MethodPost, "/api/notifications", "user-token", map[string]any{
			"notification_type": "system",
			"event_type":        "system_maintenance",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Equal(t, "TEMPLATE_NOT_FOUND", body["error"])
		f.assertExpectations(t)
	})
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	f.notifs.On("GetNotification", mock.Anything, id, f.userID).
		Return(nil, &domain.NotFoundError{Entity: "notification", ID: id.String()}).Once()

	status, body := f.do(t, http.MethodGet, "/api/notifications/"+id.String(), "user-token", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["error"])
	f.assertExpectations(t)
}

func TestMarkAsRead(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	f.notifs.On("MarkAsRead", mock.Anything, id, f.userID).Return(nil).Once()

	status, body := f.do(t, http.MethodPut, "/api/notifications/"+id.String()+"/read", "user-token", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Notification marked as read", body["message"])

	status, _ = f.do(t, http.MethodPut, "/api/notifications/not-a-uuid/read", "user-token", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	f.assertExpectations(t)
}

func TestMarkAsClicked_RefreshesAnalytics(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	f.notifs.On("MarkAsClicked", mock.Anything, id, f.userID).Return(nil).Once()
	f.engine.On("InvalidateAnalytics", mock.Anything, f.userID).Once()

	status, _ := f.do(t, http.MethodPut, "/api/notifications/"+id.String()+"/click", "user-token", nil)
	assert.Equal(t, http.StatusOK, status)
	f.assertExpectations(t)
}

func TestMarkMultipleAsRead(t *testing.T) {
	f := newFixture()
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	f.notifs.On("MarkMultipleAsRead", mock.Anything, ids, f.userID).Return(int64(1), nil).Once()

	status, body := f.do(t, http.MethodPut, "/api/notifications/read", "user-token", map[string]any{"notification_ids": ids})
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["data"].(map[string]any)["updated"])
	f.assertExpectations(t)
}

func TestUpdatePreferences_ValidationError(t *testing.T) {
	f := newFixture()
	f.notifs.On("UpdateNotificationPreferences", mock.Anything, f.userID, mock.Anything).Return(nil, domain.ValidationErrors{
		{Field: "quiet_hours_start", Message: "must be HH:MM"},
	}).Once()

	status, body := f.do(t, http.MethodPut, "/api/notifications/preferences", "user-token", map[string]any{
		"quiet_hours_start": "25:99",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "must be HH:MM", body["fields"].(map[string]any)["quiet_hours_start"])
	f.assertExpectations(t)
}

func TestInternalErrorsDoNotLeak(t *testing.T) {
	f := newFixture()
	f.notifs.On("GetUnreadCount", mock.Anything, f.userID).
		Return(int64(0), domain.NewStoreError("failed to count", assert.AnError)).Once()

	status, body := f.do(t, http.MethodGet, "/api/notifications/unread-count", "user-token", nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal server error", body["message"])
	assert.NotEmpty(t, body["trace_id"])
	f.assertExpectations(t)
}

func TestChangeName(t *testing.T) {
	assert.Equal(t, "created", changeName(notification.Change{Type: "INSERT"}))
	assert.Equal(t, "updated", changeName(notification.Change{Type: "UPDATE"}))
	assert.Equal(t, "deleted", changeName(notification.Change{Type: "DELETE"}))
}
