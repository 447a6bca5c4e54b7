package tier

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/harborview/dms-storage-api/pkg/storage"
)

// LocalAdapter persists tier content on disk under a base directory. It
// backs both the cache tier and the local-backup tier, each with its own
// base directory. Serving URLs are HMAC-signed download tokens.
type LocalAdapter struct {
	baseDir   string
	name      string
	signer    *storage.SignedURLSigner
	urlPrefix string
}

// NewLocalAdapter ensures the base directory exists and returns a handle.
func NewLocalAdapter(baseDir, name string, signer *storage.SignedURLSigner, urlPrefix string) (*LocalAdapter, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s directory: %w", name, err)
	}
	return &LocalAdapter{baseDir: baseDir, name: name, signer: signer, urlPrefix: urlPrefix}, nil
}

// Name identifies the backend in Location rows.
func (a *LocalAdapter) Name() string {
	return a.name
}

// Upload copies the local file under folder/filename relative to baseDir.
func (a *LocalAdapter) Upload(ctx context.Context, localPath string, in UploadInput) (*UploadResult, error) {
	rel := filepath.Join(in.Folder, in.Filename)
	dest := a.resolve(rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("prepare %s directory: %w", a.name, err)
	}
	if err := copyFile(ctx, localPath, dest); err != nil {
		return nil, fmt.Errorf("store %s copy: %w", a.name, err)
	}
	result := &UploadResult{ProviderFileID: rel, Path: dest}
	if url, err := a.GetURL(ctx, rel, URLOptions{}); err == nil {
		result.URL = url
	}
	return result, nil
}

// Download copies the stored file to dest and returns the local path.
// An empty dest returns the stored path itself without copying.
func (a *LocalAdapter) Download(ctx context.Context, providerFileID, dest string) (string, error) {
	src := a.resolve(providerFileID)
	if _, err := os.Stat(src); err != nil {
		return "", fmt.Errorf("%s copy missing: %w", a.name, err)
	}
	if dest == "" {
		return src, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("prepare destination: %w", err)
	}
	if err := copyFile(ctx, src, dest); err != nil {
		return "", fmt.Errorf("copy out of %s: %w", a.name, err)
	}
	return dest, nil
}

// Delete removes a stored file if present.
func (a *LocalAdapter) Delete(ctx context.Context, providerFileID string) error {
	if err := os.Remove(a.resolve(providerFileID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s copy: %w", a.name, err)
	}
	return nil
}

// GetURL returns a signed download URL for the stored file.
func (a *LocalAdapter) GetURL(ctx context.Context, providerFileID string, opts URLOptions) (string, error) {
	if a.signer == nil {
		return "", fmt.Errorf("%s tier has no URL signer", a.name)
	}
	token, _, err := a.signer.Generate(a.name, providerFileID, opts.Expires)
	if err != nil {
		return "", fmt.Errorf("sign %s url: %w", a.name, err)
	}
	return fmt.Sprintf("%s?token=%s", a.urlPrefix, token), nil
}

// GetMetadata stats the stored file.
func (a *LocalAdapter) GetMetadata(ctx context.Context, providerFileID string) (*Metadata, error) {
	info, err := os.Stat(a.resolve(providerFileID))
	if err != nil {
		return nil, fmt.Errorf("stat %s copy: %w", a.name, err)
	}
	return &Metadata{
		Size:         info.Size(),
		ContentType:  mime.TypeByExtension(filepath.Ext(providerFileID)),
		LastModified: info.ModTime(),
	}, nil
}

// Resolve exposes the absolute path of a stored file for token serving.
func (a *LocalAdapter) Resolve(providerFileID string) string {
	return a.resolve(providerFileID)
}

func (a *LocalAdapter) resolve(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(a.baseDir, rel)
}

func copyFile(ctx context.Context, src, dest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close() //nolint:errcheck
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
