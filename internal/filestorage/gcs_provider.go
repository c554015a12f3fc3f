package filestorage

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"satriarisk/backend/pkg/config"
	srlog "satriarisk/backend/pkg/log"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GCSStorageProvider implements Provider using Google Cloud Storage.
type GCSStorageProvider struct {
	client     *storage.Client
	bucketName string
}

// InitializeGCSProvider initializes the GCS client. Credentials come from
// GOOGLE_APPLICATION_CREDENTIALS or the ambient service account; returns
// (nil, nil) when GCS is not configured.
func InitializeGCSProvider() (*GCSStorageProvider, error) {
	ctx := context.Background()

	projectID := config.Cfg.GCSProjectID
	bucketName := config.Cfg.GCSBucketName
	if projectID == "" || bucketName == "" {
		srlog.L.Warn("GCS_PROJECT_ID or GCS_BUCKET_NAME not set, GCS evidence storage disabled")
		return nil, nil
	}

	var opts []option.ClientOption
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Cloud Storage client: %w", err)
	}

	srlog.L.Info("Google Cloud Storage provider initialized",
		zap.String("projectID", projectID), zap.String("bucket", bucketName))
	return &GCSStorageProvider{client: client, bucketName: bucketName}, nil
}

// UploadFile writes an object to GCS. Objects are private; access goes
// through GetSignedURL.
func (g *GCSStorageProvider) UploadFile(ctx context.Context, objectKey string, content io.Reader) (string, error) {
	if g.client == nil || g.bucketName == "" {
		return "", fmt.Errorf("GCS provider not initialized")
	}

	wc := g.client.Bucket(g.bucketName).Object(objectKey).NewWriter(ctx)
	if _, err := io.Copy(wc, content); err != nil {
		return "", fmt.Errorf("failed to copy content to GCS object writer: %w", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS object writer: %w", err)
	}

	srlog.L.Info("Evidence uploaded to GCS", zap.String("bucket", g.bucketName), zap.String("key", objectKey))
	return objectKey, nil
}

func (g *GCSStorageProvider) DeleteFile(ctx context.Context, objectKey string) error {
	if g.client == nil || g.bucketName == "" {
		return fmt.Errorf("GCS provider not initialized")
	}
	if objectKey == "" {
		return fmt.Errorf("object key cannot be empty")
	}

	err := g.client.Bucket(g.bucketName).Object(objectKey).Delete(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			// Deleting an absent object is treated as success.
			return nil
		}
		return fmt.Errorf("failed to delete object %q from GCS bucket %q: %w", objectKey, g.bucketName, err)
	}
	return nil
}

// GetSignedURL generates a V4 signed URL for an object.
func (g *GCSStorageProvider) GetSignedURL(ctx context.Context, objectKey string, durationMinutes int) (string, error) {
	if g.client == nil || g.bucketName == "" {
		return "", fmt.Errorf("GCS provider not initialized")
	}
	if objectKey == "" {
		return "", fmt.Errorf("object key cannot be empty")
	}

	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(time.Duration(durationMinutes) * time.Minute),
	}

	signedURL, err := g.client.Bucket(g.bucketName).SignedURL(objectKey, opts)
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL for GCS object %q: %w", objectKey, err)
	}
	return signedURL, nil
}
