package form

import (
	"context"

	"troc-marketplace/services/listing/internal/entity"
)

// File is one photo picked by the user.
type File struct {
	Name        string
	ContentType string
	Content     []byte
}

// PhotoStorage uploads objects and resolves their public URL.
type PhotoStorage interface {
	Upload(ctx context.Context, bucket, key string, content []byte, contentType string) (path string, err error)
	PublicURL(bucket, path string) string
}

type RecordStore interface {
	Insert(ctx context.Context, collection string, record *entity.ListingRecord) error
}

// PreviewStore hands out local preview handles for picked files.
type PreviewStore interface {
	Create(ctx context.Context, file File) (handle string, err error)
	Release(ctx context.Context, handle string) error
}

type Notifier interface {
	Notify(n entity.Notification)
}

type Navigator interface {
	Navigate(route string)
}

// Deps are the collaborators of a Controller. Storage and Records are
// required; without Previews no preview handles are kept, and Notifier and
// Navigator are optional.
type Deps struct {
	Storage   PhotoStorage
	Records   RecordStore
	Previews  PreviewStore
	Notifier  Notifier
	Navigator Navigator
}
