package tier

import (
	"context"
	"time"
)

// UploadInput describes where an object lands inside a backend.
type UploadInput struct {
	Folder   string
	Filename string
	Public   bool
}

// UploadResult reports a confirmed placement.
type UploadResult struct {
	ProviderFileID string
	Path           string
	URL            string
	CDNURL         string
}

// URLOptions tune serving URL generation.
type URLOptions struct {
	Expires  time.Duration
	Download bool
}

// Metadata is the backend's view of a stored object.
type Metadata struct {
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Adapter is the uniform contract against one physical storage backend.
// All methods perform blocking I/O; callers bound them with a context
// deadline via Registry.OperationContext.
type Adapter interface {
	Name() string
	Upload(ctx context.Context, localPath string, in UploadInput) (*UploadResult, error)
	Download(ctx context.Context, providerFileID, dest string) (string, error)
	Delete(ctx context.Context, providerFileID string) error
	GetURL(ctx context.Context, providerFileID string, opts URLOptions) (string, error)
	GetMetadata(ctx context.Context, providerFileID string) (*Metadata, error)
}
