package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"

	"budgetme-notifications/internal/config"
	"budgetme-notifications/internal/domain"
)

type Service interface {
	// ArchiveSummary stores the summary as JSON and returns the object path.
	ArchiveSummary(ctx context.Context, summary *domain.MonthlySummary) (string, error)
}

// objectStore is the part of *minio.Client the archive needs.
type objectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type service struct {
	store  objectStore
	bucket string
}

func NewService(minioClient *minio.Client, cfg *config.Config) Service {
	if minioClient == nil {
		return &service{bucket: cfg.MinIOBucket}
	}
	return &service{store: minioClient, bucket: cfg.MinIOBucket}
}

func ObjectPath(summary *domain.MonthlySummary) string {
	return fmt.Sprintf("summaries/%s/%s/%s.json", summary.UserID, summary.Month, summary.Kind)
}

func (s *service) ArchiveSummary(ctx context.Context, summary *domain.MonthlySummary) (string, error) {
	if s.store == nil {
		return "", nil
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode summary: %w", err)
	}

	path := ObjectPath(summary)
	_, err = s.store.PutObject(ctx, s.bucket, path, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload summary: %w", err)
	}
	return path, nil
}
