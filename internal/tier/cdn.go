package tier

import (
	"context"
	"fmt"
	"strings"
)

// CDNAdapter fronts a public-read bucket with a CDN. Writes go through the
// inner object-store adapter; serving URLs are stable CDN paths rather than
// presigned links.
type CDNAdapter struct {
	inner   *MinioAdapter
	baseURL string
}

// NewCDNAdapter wraps a bucket adapter with a CDN base URL. An empty base
// URL falls back to presigned links from the inner adapter.
func NewCDNAdapter(inner *MinioAdapter, baseURL string) *CDNAdapter {
	return &CDNAdapter{inner: inner, baseURL: strings.TrimRight(baseURL, "/")}
}

// EnsureBucket creates the backing bucket when missing.
func (a *CDNAdapter) EnsureBucket(ctx context.Context) error {
	return a.inner.EnsureBucket(ctx)
}

// Name identifies the backend in Location rows.
func (a *CDNAdapter) Name() string {
	return a.inner.Name()
}

// Upload stores the object and attaches its public CDN URL.
func (a *CDNAdapter) Upload(ctx context.Context, localPath string, in UploadInput) (*UploadResult, error) {
	result, err := a.inner.Upload(ctx, localPath, in)
	if err != nil {
		return nil, err
	}
	if a.baseURL != "" {
		result.CDNURL = fmt.Sprintf("%s/%s", a.baseURL, result.ProviderFileID)
		result.URL = result.CDNURL
	}
	return result, nil
}

// Download fetches the object through the backing store.
func (a *CDNAdapter) Download(ctx context.Context, providerFileID, dest string) (string, error) {
	return a.inner.Download(ctx, providerFileID, dest)
}

// Delete removes the object from the backing store. CDN edge caches drain
// on their own TTL.
func (a *CDNAdapter) Delete(ctx context.Context, providerFileID string) error {
	return a.inner.Delete(ctx, providerFileID)
}

// GetURL returns the stable CDN URL when configured.
func (a *CDNAdapter) GetURL(ctx context.Context, providerFileID string, opts URLOptions) (string, error) {
	if a.baseURL != "" {
		return fmt.Sprintf("%s/%s", a.baseURL, providerFileID), nil
	}
	return a.inner.GetURL(ctx, providerFileID, opts)
}

// GetMetadata stats the object in the backing store.
func (a *CDNAdapter) GetMetadata(ctx context.Context, providerFileID string) (*Metadata, error) {
	return a.inner.GetMetadata(ctx, providerFileID)
}
