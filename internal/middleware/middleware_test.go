package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetme-notifications/internal/domain"
	"budgetme-notifications/internal/service/auth"
)

type staticAuth map[string]*auth.Claims

func (s staticAuth) ValidateAccessToken(token string) (*auth.Claims, error) {
	if c, ok := s[token]; ok {
		return c, nil
	}
	return nil, auth.ErrInvalidToken
}

func decode(t *testing.T, resp *http.Response) ErrorResponse {
	t.Helper()
	defer resp.Body.Close()
	var out ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestAuthRequiredAndRoles(t *testing.T) {
	userID := uuid.New()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	api := app.Group("/api", AuthRequired(staticAuth{
		"user":    {UserID: userID, Role: "authenticated"},
		"service": {Role: auth.RoleService},
	}))
	api.Get("/me", func(c *fiber.Ctx) error {
		id, err := GetUserID(c)
		if err != nil {
			return err
		}
		return c.SendString(id.String())
	})
	api.Post("/admin", RequireRole(auth.RoleService), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	tests := []struct {
		name   string
		method string
		target string
		header string
		want   int
	}{
		{"bearer header", http.MethodGet, "/api/me", "Bearer user", http.StatusOK},
		{"lowercase scheme", http.MethodGet, "/api/me", "bearer user", http.StatusOK},
		{"query token for event streams", http.MethodGet, "/api/me?access_token=user", "", http.StatusOK},
		{"missing token", http.MethodGet, "/api/me", "", http.StatusUnauthorized},
		{"wrong scheme", http.MethodGet, "/api/me", "Basic user", http.StatusUnauthorized},
		{"unknown token", http.MethodGet, "/api/me", "Bearer nope", http.StatusUnauthorized},
		{"service token has no user", http.MethodGet, "/api/me", "Bearer service", http.StatusUnauthorized},
		{"admin with service token", http.MethodPost, "/api/admin", "Bearer service", http.StatusNoContent},
		{"admin with user token", http.MethodPost, "/api/admin", "Bearer user", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &domain.ValidationError{Field: "title", Message: "required"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"wrapped validation list", fmt.Errorf("create: %w", domain.ValidationErrors{{Field: "a", Message: "b"}}), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not found", &domain.NotFoundError{Entity: "notification", ID: "1"}, http.StatusNotFound, "NOT_FOUND"},
		{"template", &domain.TemplateNotFoundError{NotificationType: "goal", EventType: "goal_completed"}, http.StatusUnprocessableEntity, "TEMPLATE_NOT_FOUND"},
		{"fiber error", Forbidden("no"), http.StatusForbidden, "FORBIDDEN"},
		{"store error", domain.NewStoreError("boom", assert.AnError), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
			app.Get("/", func(*fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			body := decode(t, resp)
			assert.False(t, body.Success)
			assert.Equal(t, tt.code, body.Error)
			if tt.status >= http.StatusInternalServerError {
				assert.Equal(t, "Internal server error", body.Message)
				assert.NotEmpty(t, body.TraceID)
			} else {
				assert.Empty(t, body.TraceID)
			}
		})
	}
}
