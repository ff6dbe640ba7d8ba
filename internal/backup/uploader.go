// Package backup provides S3-compatible upload of database backup files.
// When S3 is not configured (empty bucket), the NoopUploader is used and all
// S3 operations are skipped, keeping the system in local-only mode.
package backup

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sethvargo/go-retry"

	"github.com/hyperengineering/daybook/internal/config"
)

// Uploader uploads backup files to remote storage.
type Uploader interface {
	// Upload uploads the backup file at filePath.
	Upload(ctx context.Context, filePath string) error
}

// s3Client defines the minimal minio.Client operations used by S3Uploader.
// This interface enables testing with mock implementations.
type s3Client interface {
	FPutObject(ctx context.Context, bucket, objectName, filePath string) error
}

// minioClientWrapper wraps *minio.Client to satisfy the s3Client interface.
type minioClientWrapper struct {
	client *minio.Client
}

func (w *minioClientWrapper) FPutObject(ctx context.Context, bucket, objectName, filePath string) error {
	putOpts := minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	}
	_, err := w.client.FPutObject(ctx, bucket, objectName, filePath, putOpts)
	return err
}

// S3Uploader uploads backup files to S3-compatible storage. Transient upload
// failures are retried with exponential backoff before giving up.
type S3Uploader struct {
	client  s3Client
	bucket  string
	retries uint64
}

// Upload uploads the backup file at filePath under a backups/ prefix.
func (u *S3Uploader) Upload(ctx context.Context, filePath string) error {
	key := objectKey(filePath)

	backoff := retry.WithMaxRetries(u.retries, retry.NewExponential(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := u.client.FPutObject(ctx, u.bucket, key, filePath); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upload backup to S3: %w", err)
	}
	return nil
}

// NoopUploader is used when S3 storage is not configured.
type NoopUploader struct{}

// Upload is a no-op when S3 is not configured.
func (u *NoopUploader) Upload(ctx context.Context, filePath string) error {
	return nil
}

// NewUploader creates the appropriate Uploader based on configuration.
// Returns NoopUploader when bucket is empty, S3Uploader otherwise.
func NewUploader(cfg config.BackupConfig) (Uploader, error) {
	if cfg.Bucket == "" {
		return &NoopUploader{}, nil
	}

	useSSL := true
	if cfg.UseSSL != nil {
		useSSL = *cfg.UseSSL
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	return &S3Uploader{
		client:  &minioClientWrapper{client: client},
		bucket:  cfg.Bucket,
		retries: 3,
	}, nil
}

// objectKey returns the S3 object key for a backup file.
// Convention: backups/{filename}
func objectKey(filePath string) string {
	return "backups/" + filepath.Base(filePath)
}
