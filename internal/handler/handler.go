package handler

import "budgetme-notifications/internal/service"

type Handlers struct {
	Notification *NotificationHandler
	Admin        *AdminHandler
	Health       *HealthHandler
}

func NewHandlers(services *service.Services, db Pinger, maxLimit int) *Handlers {
	return &Handlers{
		Notification: NewNotificationHandler(services.Notification, services.Filter, maxLimit),
		Admin:        NewAdminHandler(services.Manager, services.Detectors.Goal),
		Health:       NewHealthHandler(db, services.Manager),
	}
}
