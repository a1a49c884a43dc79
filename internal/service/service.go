package service

import (
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"

	"budgetme-notifications/internal/config"
	"budgetme-notifications/internal/pkg/catalog"
	"budgetme-notifications/internal/realtime"
	"budgetme-notifications/internal/repository"
	"budgetme-notifications/internal/service/auth"
	"budgetme-notifications/internal/service/detector"
	"budgetme-notifications/internal/service/email"
	"budgetme-notifications/internal/service/filter"
	"budgetme-notifications/internal/service/manager"
	"budgetme-notifications/internal/service/notification"
	"budgetme-notifications/internal/service/report"
)

type Services struct {
	Auth         auth.Service
	Email        email.Service
	Report       report.Service
	Notification notification.Service
	Filter       filter.Engine
	Detectors    *detector.Detectors
	Manager      manager.Manager
}

func NewServices(repos *repository.Repositories, redis *redis.Client, minioClient *minio.Client, hub *realtime.Hub, cfg *config.Config) (*Services, error) {
	emailService, err := email.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("email service: %w", err)
	}
	templates, err := catalog.Default()
	if err != nil {
		return nil, fmt.Errorf("template catalogue: %w", err)
	}

	authService := auth.NewService(cfg)
	reportService := report.NewService(minioClient, cfg)

	notificationService := notification.NewService(notification.Deps{
		Notifications: repos.Notification,
		Preferences:   repos.Preferences,
		Templates:     repos.Template,
		DeliveryLogs:  repos.DeliveryLog,
		Profiles:      repos.Profile,
		Catalog:       templates,
		Email:         emailService,
		Redis:         redis,
		Hub:           hub,
		Config:        cfg.Notifications,
	})

	filterEngine := filter.NewEngine(filter.Deps{
		Store:         notificationService,
		Notifications: repos.Notification,
		Redis:         redis,
		Config:        cfg.Notifications,
	})

	detectors := detector.New(detector.Deps{
		Notifier:     notificationService,
		Budgets:      repos.Budget,
		Goals:        repos.Goal,
		Families:     repos.Family,
		Transactions: repos.Transaction,
		Profiles:     repos.Profile,
		Ledger:       repos.Ledger,
		Reports:      reportService,
		Config:       cfg.Notifications,
	})

	notificationManager := manager.NewManager(manager.Deps{
		Notifications: notificationService,
		Detectors:     detectors,
		Ledger:        repos.Ledger,
		Hub:           hub,
		Config:        cfg.Notifications,
	})

	return &Services{
		Auth:         authService,
		Email:        emailService,
		Report:       reportService,
		Notification: notificationService,
		Filter:       filterEngine,
		Detectors:    detectors,
		Manager:      notificationManager,
	}, nil
}
