package filestorage

import (
	"context"
	"fmt"
	"io"
	"time"

	"satriarisk/backend/pkg/config"
	srlog "satriarisk/backend/pkg/log"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsGoConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// S3StorageProvider implements Provider using Amazon S3.
type S3StorageProvider struct {
	client     *s3.Client
	uploader   *manager.Uploader
	presigner  *s3.PresignClient
	bucketName string
}

// InitializeS3Provider initializes the S3 client. Returns (nil, nil) when S3
// is not configured so startup is not blocked.
func InitializeS3Provider() (*S3StorageProvider, error) {
	bucket := config.Cfg.S3BucketName
	region := config.Cfg.AWSRegion

	if bucket == "" || region == "" {
		srlog.L.Warn("S3_BUCKET_NAME or AWS_REGION not set, S3 evidence storage disabled")
		return nil, nil
	}

	sdkConfig, err := awsGoConfig.LoadDefaultConfig(context.TODO(), awsGoConfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config for S3: %w", err)
	}

	s3Client := s3.NewFromConfig(sdkConfig)
	return &S3StorageProvider{
		client:     s3Client,
		uploader:   manager.NewUploader(s3Client),
		presigner:  s3.NewPresignClient(s3Client),
		bucketName: bucket,
	}, nil
}

// UploadFile uploads an object to S3. The upload manager handles multipart
// uploads for large bodies.
func (s *S3StorageProvider) UploadFile(ctx context.Context, objectKey string, content io.Reader) (string, error) {
	if s.client == nil || s.bucketName == "" {
		return "", fmt.Errorf("S3 provider not initialized")
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectKey),
		Body:   content,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object to S3 (bucket %s, key %s): %w", s.bucketName, objectKey, err)
	}

	srlog.L.Info("Evidence uploaded to S3", zap.String("bucket", s.bucketName), zap.String("key", objectKey))
	return objectKey, nil
}

func (s *S3StorageProvider) DeleteFile(ctx context.Context, objectKey string) error {
	if s.client == nil || s.bucketName == "" {
		return fmt.Errorf("S3 provider not initialized")
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %q from S3 bucket %q: %w", objectKey, s.bucketName, err)
	}
	return nil
}

// GetSignedURL generates a presigned GET URL for an object.
func (s *S3StorageProvider) GetSignedURL(ctx context.Context, objectKey string, durationMinutes int) (string, error) {
	if s.presigner == nil {
		return "", fmt.Errorf("S3 provider not initialized")
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(time.Duration(durationMinutes)*time.Minute))
	if err != nil {
		return "", fmt.Errorf("failed to presign S3 object %q: %w", objectKey, err)
	}
	return req.URL, nil
}
