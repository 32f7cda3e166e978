// Package service contains the business logic layer.
package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/companyintel/companyintel-api/internal/config"
)

// StorageService archives raw page HTML to S3-compatible object storage
// (Tigris, MinIO, R2). The database keeps raw_html for extraction; the
// archive preserves an immutable copy per crawl for later reprocessing.
type StorageService struct {
	client  *s3.Client
	bucket  string
	enabled bool
	logger  *slog.Logger
}

// NewStorageService creates a new storage service.
func NewStorageService(cfg *appconfig.Config, logger *slog.Logger) (*StorageService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.ArchiveEnabled {
		logger.Info("page archive disabled - no bucket configured")
		return &StorageService{
			enabled: false,
			logger:  logger,
		}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.ArchiveRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.ArchiveAccessKey,
			cfg.ArchiveSecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Custom endpoint with path style for S3-compatible services
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.ArchiveEndpoint)
		o.UsePathStyle = true
	})

	logger.Info("page archive initialized",
		"bucket", cfg.ArchiveBucket,
		"endpoint", cfg.ArchiveEndpoint,
	)

	return &StorageService{
		client:  client,
		bucket:  cfg.ArchiveBucket,
		enabled: true,
		logger:  logger,
	}, nil
}

// IsEnabled returns whether the archive is configured and available.
func (s *StorageService) IsEnabled() bool {
	return s.enabled
}

// Bucket returns the configured bucket name.
func (s *StorageService) Bucket() string {
	return s.bucket
}

func pageKey(companyID, pageID int64) string {
	return fmt.Sprintf("companies/%d/pages/%d.html", companyID, pageID)
}

// ArchivePage stores the raw HTML of one crawled page.
func (s *StorageService) ArchivePage(ctx context.Context, companyID, pageID int64, html string) error {
	if !s.enabled {
		return nil // Silently skip if the archive is disabled
	}

	key := pageKey(companyID, pageID)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader([]byte(html)),
		ContentType: aws.String("text/html; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive page: %w", err)
	}

	s.logger.Debug("archived page html",
		"company_id", companyID,
		"page_id", pageID,
		"key", key,
		"size_bytes", len(html),
	)
	return nil
}

// GetArchivedPage retrieves the archived HTML for one page.
func (s *StorageService) GetArchivedPage(ctx context.Context, companyID, pageID int64) (string, error) {
	if !s.enabled {
		return "", fmt.Errorf("archive is not enabled")
	}

	key := pageKey(companyID, pageID)

	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get archived page: %w", err)
	}
	defer func() { _ = output.Body.Close() }()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read archived page: %w", err)
	}
	return string(data), nil
}

// DeleteCompanyArchive removes all archived pages for a company.
// Returns the number of deleted objects.
func (s *StorageService) DeleteCompanyArchive(ctx context.Context, companyID int64) (int, error) {
	if !s.enabled {
		return 0, nil
	}

	prefix := fmt.Sprintf("companies/%d/pages/", companyID)
	deleted := 0

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return deleted, fmt.Errorf("failed to list archived pages: %w", err)
		}

		for _, obj := range page.Contents {
			_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    obj.Key,
			})
			if err != nil {
				s.logger.Warn("failed to delete archived page",
					"key", aws.ToString(obj.Key),
					"error", err,
				)
				continue
			}
			deleted++
		}
	}

	s.logger.Info("company archive cleared",
		"company_id", companyID,
		"deleted_count", deleted,
	)
	return deleted, nil
}
