package service

import (
	"context"
	"io"
	"time"

	"filevault/server/common/infra/object"
	"filevault/server/fileman/domain"
	"filevault/server/fileman/query"
)

// ObjectStore is the binary side. Keys are generated by the caller.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (object.ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	PublicURL(key string) string
}

// MetadataStore is the authoritative record store. Get, Update and Delete
// return domain.ErrNotFound for an unknown id.
type MetadataStore interface {
	Create(ctx context.Context, item domain.FileRecord) (domain.FileRecord, error)
	Get(ctx context.Context, id string) (domain.FileRecord, error)
	Update(ctx context.Context, id string, patch domain.FilePatch) (domain.FileRecord, error)
	Delete(ctx context.Context, id string) error
	Query(ctx context.Context, plan query.Plan) ([]domain.FileRecord, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.FileRecord, error)
}

type UserStore interface {
	CreateIfAbsent(ctx context.Context, user domain.User) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event domain.FileEvent) error
}

// OrphanLedger remembers object keys that lost their record but could not be
// deleted.
type OrphanLedger interface {
	Add(ctx context.Context, key string) error
	List(ctx context.Context, max int64) ([]string, error)
	Remove(ctx context.Context, key string) error
}
