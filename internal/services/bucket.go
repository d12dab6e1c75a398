package services

import (
  "bytes"
  "context"
  "errors"
  "fmt"
  "io"
  "os"
  "time"

  "cloud.google.com/go/storage"
  "google.golang.org/api/option"

  "github.com/omniteacher/omniteacher-backend/internal/apperr"
  "github.com/omniteacher/omniteacher-backend/internal/logger"
)

// BucketService stores generated audio clips and hands back public URLs.
type BucketService interface {
  EnsureBucket(ctx context.Context) error
  StoreAudio(ctx context.Context, objectName string, audio []byte, contentType string) (string, error)
  GetPublicURL(key string) string
}

type bucketService struct {
  log           *logger.Logger
  storageClient *storage.Client
  bucketName    string
  projectID     string
  cdnDomain     string
}

func NewBucketService(log *logger.Logger) (BucketService, error) {
  serviceLog := log.With("service", "BucketService")
  bucket := os.Getenv("GCS_BUCKET_NAME")
  if bucket == "" {
    return nil, fmt.Errorf("missing env var GCS_BUCKET_NAME")
  }
  projectID := os.Getenv("GCP_PROJECT_ID")
  cdnDomain := os.Getenv("CDN_DOMAIN")
  saPath := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON")
  if saPath == "" {
    serviceLog.Warn("GOOGLE_APPLICATION_CREDENTIALS_JSON not set, relying on ambient ADC")
  }
  ctx := context.Background()
  var stClient *storage.Client
  var err error
  if saPath != "" {
    stClient, err = storage.NewClient(ctx, option.WithCredentialsFile(saPath), option.WithScopes(storage.ScopeReadWrite))
  } else {
    stClient, err = storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
  }
  if err != nil {
    return nil, fmt.Errorf("failed to create storage client: %w", err)
  }
  return &bucketService{
    log:           serviceLog,
    storageClient: stClient,
    bucketName:    bucket,
    projectID:     projectID,
    cdnDomain:     cdnDomain,
  }, nil
}

// EnsureBucket creates the audio bucket when it does not already exist.
// Safe to call repeatedly.
func (bs *bucketService) EnsureBucket(ctx context.Context) error {
  ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
  defer cancel()

  _, err := bs.storageClient.Bucket(bs.bucketName).Attrs(ctx)
  if err == nil {
    return nil
  }
  if !errors.Is(err, storage.ErrBucketNotExist) {
    return apperr.Collaborator("audio_storage", 0, fmt.Errorf("failed to probe bucket %q: %w", bs.bucketName, err))
  }

  if createErr := bs.storageClient.Bucket(bs.bucketName).Create(ctx, bs.projectID, nil); createErr != nil {
    return apperr.Collaborator("audio_storage", 0, fmt.Errorf("failed to create bucket %q: %w", bs.bucketName, createErr))
  }
  bs.log.Info("Created audio bucket", "bucket", bs.bucketName)
  return nil
}

func (bs *bucketService) StoreAudio(ctx context.Context, objectName string, audio []byte, contentType string) (string, error) {
  if contentType == "" {
    contentType = "audio/mpeg"
  }

  ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
  defer cancel()

  w := bs.storageClient.Bucket(bs.bucketName).Object(objectName).NewWriter(ctx)
  w.ContentType = contentType
  if _, err := io.Copy(w, bytes.NewReader(audio)); err != nil {
    _ = w.Close()
    return "", apperr.Collaborator("audio_storage", 0, fmt.Errorf("failed to write audio to GCS: %w", err))
  }
  if err := w.Close(); err != nil {
    return "", apperr.Collaborator("audio_storage", 0, fmt.Errorf("failed to close GCS writer: %w", err))
  }
  return bs.GetPublicURL(objectName), nil
}

func (bs *bucketService) GetPublicURL(key string) string {
  if bs.cdnDomain != "" {
    return fmt.Sprintf("https://%s/%s", bs.cdnDomain, key)
  }
  return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bs.bucketName, key)
}
