package services

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"docarchive/internal/domain"
	"docarchive/internal/hierarchy"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BlobStore owns the physical side of the archive. EnsureDirectory has
// mkdir -p semantics for a materialized full path.
type BlobStore interface {
	EnsureDirectory(ctx context.Context, fullPath string) error
	Ping(ctx context.Context) error
}

type minioBlobStore struct {
	client *minio.Client
	bucket string
}

// NewMinioBlobStore connects to MinIO and creates the archive bucket when it
// does not exist yet.
func NewMinioBlobStore(ctx context.Context, endpoint, accessKey, secretKey string, useSSL bool, bucket string) (BlobStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}
	store := &minioBlobStore{client: client, bucket: bucket}
	if err := store.ensureBucketExists(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", bucket, err)
	}
	return store, nil
}

func (m *minioBlobStore) ensureBucketExists(ctx context.Context) error {
	found, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !found {
		return m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
	}
	return nil
}

// EnsureDirectory writes a zero-byte "<prefix>/" marker object. Rewriting an
// existing marker is harmless.
func (m *minioBlobStore) EnsureDirectory(ctx context.Context, fullPath string) error {
	key := hierarchy.ToObjectKey(fullPath)
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(nil), 0, minio.PutObjectOptions{
		ContentType: "application/x-directory",
	})
	if err != nil {
		return domain.Wrap(domain.CodeFolderCreationFailed, err, "failed to create storage directory %q", fullPath)
	}
	return nil
}

func (m *minioBlobStore) Ping(ctx context.Context) error {
	found, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("bucket %s does not exist", m.bucket)
	}
	return nil
}

type localBlobStore struct {
	basePath string
}

// NewLocalBlobStore mirrors the hierarchy as directories under basePath.
func NewLocalBlobStore(basePath string) (BlobStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create archive base path: %w", err)
	}
	return &localBlobStore{basePath: basePath}, nil
}

func (l *localBlobStore) EnsureDirectory(ctx context.Context, fullPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(hierarchy.ToFsPath(l.basePath, fullPath), 0o755); err != nil {
		return domain.Wrap(domain.CodeFolderCreationFailed, err, "failed to create storage directory %q", fullPath)
	}
	return nil
}

func (l *localBlobStore) Ping(ctx context.Context) error {
	info, err := os.Stat(l.basePath)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", l.basePath)
	}
	return nil
}
