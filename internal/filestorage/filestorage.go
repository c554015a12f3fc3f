package filestorage

import (
	"context"
	"io"

	"satriarisk/backend/pkg/config"
	srlog "satriarisk/backend/pkg/log"

	"go.uber.org/zap"
)

// Provider is the interface evidence storage backends implement.
type Provider interface {
	// UploadFile stores an object and returns the object key it was stored under.
	UploadFile(ctx context.Context, objectKey string, content io.Reader) (string, error)
	DeleteFile(ctx context.Context, objectKey string) error
	GetSignedURL(ctx context.Context, objectKey string, durationMinutes int) (string, error)
}

// DefaultProvider holds the initialized storage provider, nil when evidence
// storage is not configured.
var DefaultProvider Provider

// InitFileStorage initializes the default provider from configuration.
// A missing or unknown provider disables evidence uploads without blocking
// application startup.
func InitFileStorage() {
	providerType := config.Cfg.StorageProvider

	var err error
	switch providerType {
	case "s3":
		DefaultProvider, err = InitializeS3Provider()
	case "gcs":
		DefaultProvider, err = InitializeGCSProvider()
	case "":
		srlog.L.Info("No STORAGE_PROVIDER configured, evidence uploads disabled")
		return
	default:
		srlog.L.Warn("Unsupported STORAGE_PROVIDER, evidence uploads disabled", zap.String("provider", providerType))
		return
	}

	if err != nil {
		srlog.L.Error("Failed to initialize storage provider, evidence uploads disabled",
			zap.String("provider", providerType), zap.Error(err))
		DefaultProvider = nil
		return
	}
	if DefaultProvider == nil {
		srlog.L.Warn("Storage provider not fully configured, evidence uploads disabled",
			zap.String("provider", providerType))
		return
	}
	srlog.L.Info("Evidence storage provider initialized", zap.String("provider", providerType))
}
