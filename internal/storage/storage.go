package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/weatherkeep/apiserver/config"
)

const (
	snapshotPrefix      = "snapshots"
	snapshotContentType = "application/json"
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Storage wraps an ObjectStorage backend with a stable API.
type Storage struct {
	backend ObjectStorage
}

// NewStorage constructs a Storage wrapper for the provided backend.
func NewStorage(backend ObjectStorage) *Storage {
	return &Storage{backend: backend}
}

// Open connects the backend selected by cfg.Backend and ensures its bucket
// exists. It returns nil, nil when no backend is configured.
func Open(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch cfg.Backend {
	case "":
		return nil, nil
	case config.StorageBackendMinio:
		backend, err = NewMinioClient(cfg.Minio)
	case config.StorageBackendGCS:
		backend, err = NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Backend, err)
	}

	s := NewStorage(backend)
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", backend.Bucket(), err)
	}
	return s, nil
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put uploads an object to the configured bucket.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.backend.Put(ctx, key, r, size, contentType)
}

// Get opens a reader for an object in the configured bucket.
func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// List returns objects under prefix.
func (s *Storage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	return s.backend.List(ctx, prefix)
}

// Delete removes an object from the configured bucket.
func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

// ArchiveSnapshot stores a raw provider payload under the user's snapshot
// prefix and returns the object key.
func (s *Storage) ArchiveSnapshot(ctx context.Context, userID int, payload []byte) (string, error) {
	key := SnapshotKey(userID, uuid.NewString())
	if err := s.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), snapshotContentType); err != nil {
		return "", err
	}
	return key, nil
}

// ListSnapshots returns the user's archived snapshots, oldest first.
func (s *Storage) ListSnapshots(ctx context.Context, userID int) ([]ObjectInfo, error) {
	objects, err := s.List(ctx, snapshotUserPrefix(userID))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].LastModified.Before(objects[j].LastModified)
	})
	return objects, nil
}

// SnapshotKey returns snapshots/<userID>/<id>.json.
func SnapshotKey(userID int, id string) string {
	return path.Join(snapshotPrefix, strconv.Itoa(userID), id+".json")
}

func snapshotUserPrefix(userID int) string {
	return path.Join(snapshotPrefix, strconv.Itoa(userID)) + "/"
}
