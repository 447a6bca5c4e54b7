package tier

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"path"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/harborview/dms-storage-api/pkg/config"
)

// MinioAdapter serves the cloud primary tier from an S3-compatible store.
type MinioAdapter struct {
	client *minio.Client
	bucket string
	region string
	name   string
	urlTTL time.Duration
}

// NewMinioClient dials the configured S3-compatible endpoint.
func NewMinioClient(cfg config.TiersConfig) (*minio.Client, error) {
	if cfg.CloudEndpoint == "" {
		return nil, fmt.Errorf("cloud endpoint is not configured")
	}
	client, err := minio.New(cfg.CloudEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.CloudAccessKey, cfg.CloudSecretKey, ""),
		Secure: cfg.CloudUseSSL,
		Region: cfg.CloudRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	return client, nil
}

// NewMinioAdapter builds an adapter bound to one bucket.
func NewMinioAdapter(client *minio.Client, bucket, region, name string, urlTTL time.Duration) *MinioAdapter {
	if urlTTL <= 0 {
		urlTTL = time.Hour
	}
	return &MinioAdapter{client: client, bucket: bucket, region: region, name: name, urlTTL: urlTTL}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (a *MinioAdapter) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: a.region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", a.bucket, err)
	}
	return nil
}

// Name identifies the backend in Location rows.
func (a *MinioAdapter) Name() string {
	return a.name
}

// Upload stores the local file under folder/filename as the object key.
func (a *MinioAdapter) Upload(ctx context.Context, localPath string, in UploadInput) (*UploadResult, error) {
	key := objectKey(in.Folder, in.Filename)
	contentType := mime.TypeByExtension(filepath.Ext(in.Filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if _, err := a.client.FPutObject(ctx, a.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return nil, fmt.Errorf("put object %s/%s: %w", a.bucket, key, err)
	}

	result := &UploadResult{
		ProviderFileID: key,
		Path:           key,
	}
	if signed, err := a.GetURL(ctx, key, URLOptions{}); err == nil {
		result.URL = signed
	}
	return result, nil
}

// Download fetches the object to dest and returns the local path.
func (a *MinioAdapter) Download(ctx context.Context, providerFileID, dest string) (string, error) {
	if dest == "" {
		dest = filepath.Join(".", "downloads", filepath.Base(providerFileID))
	}
	if err := a.client.FGetObject(ctx, a.bucket, providerFileID, dest, minio.GetObjectOptions{}); err != nil {
		return "", fmt.Errorf("get object %s/%s: %w", a.bucket, providerFileID, err)
	}
	return dest, nil
}

// Delete removes the object from the bucket.
func (a *MinioAdapter) Delete(ctx context.Context, providerFileID string) error {
	if err := a.client.RemoveObject(ctx, a.bucket, providerFileID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s/%s: %w", a.bucket, providerFileID, err)
	}
	return nil
}

// GetURL returns a presigned temporary URL for the object.
func (a *MinioAdapter) GetURL(ctx context.Context, providerFileID string, opts URLOptions) (string, error) {
	expires := opts.Expires
	if expires <= 0 {
		expires = a.urlTTL
	}
	params := url.Values{}
	if opts.Download {
		params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", path.Base(providerFileID)))
	}
	u, err := a.client.PresignedGetObject(ctx, a.bucket, providerFileID, expires, params)
	if err != nil {
		return "", fmt.Errorf("presign object %s/%s: %w", a.bucket, providerFileID, err)
	}
	return u.String(), nil
}

// GetMetadata stats the object.
func (a *MinioAdapter) GetMetadata(ctx context.Context, providerFileID string) (*Metadata, error) {
	info, err := a.client.StatObject(ctx, a.bucket, providerFileID, minio.StatObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("stat object %s/%s: %w", a.bucket, providerFileID, err)
	}
	return &Metadata{
		Size:         info.Size,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}, nil
}

func objectKey(folder, filename string) string {
	if folder == "" {
		return filename
	}
	return path.Join(folder, filename)
}
