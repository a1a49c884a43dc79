package email

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/resend/resend-go/v3"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"budgetme-notifications/internal/config"
	"budgetme-notifications/internal/domain"
	"budgetme-notifications/internal/logging"
	"budgetme-notifications/internal/metrics"
)

//go:embed templates/*.html
var templateFS embed.FS

type Service interface {
	SendNotificationEmail(ctx context.Context, toEmail, recipientName string, n *domain.Notification) error
}

// sender is the part of the Resend client used here.
type sender interface {
	Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type service struct {
	sender  sender
	config  *config.Config
	tmpl    *template.Template
	breaker *gobreaker.CircuitBreaker[*resend.SendEmailResponse]
	log     zerolog.Logger
}

const breakerName = "resend-email"

func NewService(cfg *config.Config) (Service, error) {
	client := resend.NewClient(cfg.ResendAPIKey)
	return newService(cfg, client.Emails)
}

func newService(cfg *config.Config, s sender) (*service, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/notification.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	log := logging.Component("email")
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	breaker := gobreaker.NewCircuitBreaker[*resend.SendEmailResponse](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("email circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	return &service{
		sender:  s,
		config:  cfg,
		tmpl:    tmpl,
		breaker: breaker,
		log:     log,
	}, nil
}

func (s *service) SendNotificationEmail(ctx context.Context, toEmail, recipientName string, n *domain.Notification) error {
	if toEmail == "" {
		return &domain.ValidationError{Field: "email", Message: "recipient has no email address"}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	link := fmt.Sprintf("https://%s/notifications", s.config.Domain)
	if n.ActionURL != nil && *n.ActionURL != "" {
		link = fmt.Sprintf("https://%s%s", s.config.Domain, *n.ActionURL)
	}
	actionText := "Open BudgetMe"
	if n.ActionText != nil && *n.ActionText != "" {
		actionText = *n.ActionText
	}

	data := struct {
		Title      string
		Name       string
		Message    string
		Priority   domain.Priority
		Link       string
		ActionText string
	}{
		Title:      n.Title,
		Name:       recipientName,
		Message:    n.Message,
		Priority:   n.Priority,
		Link:       link,
		ActionText: actionText,
	}

	var body bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&body, "layout", data); err != nil {
		return domain.NewTemplateError("failed to execute email template", err)
	}

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("BudgetMe <%s>", s.config.FromEmail),
		To:      []string{toEmail},
		Html:    body.String(),
		Subject: n.Title,
	}

	_, err := s.breaker.Execute(func() (*resend.SendEmailResponse, error) {
		return s.sender.Send(params)
	})
	switch {
	case err == nil:
		metrics.EmailDeliveries.WithLabelValues("sent").Inc()
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.EmailDeliveries.WithLabelValues("rejected").Inc()
		return domain.NewDeliveryError("email circuit open", err)
	default:
		metrics.EmailDeliveries.WithLabelValues("failed").Inc()
		return domain.NewDeliveryError("failed to send email", err)
	}
}
