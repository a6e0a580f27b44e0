package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
)

// Backup is the exported snapshot format: the owning tenant and every
// collection as an array of documents.
type Backup struct {
	OwnerUID string                      `json:"ownerUid"`
	Tables   map[string][]map[string]any `json:"tables"`
}

// objectGetter defines the minimal object storage read used by BackupSource.
type objectGetter interface {
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// minioClientWrapper wraps *minio.Client to satisfy objectGetter.
type minioClientWrapper struct {
	client *minio.Client
}

func (w *minioClientWrapper) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return w.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
}

// BackupSource serves a backup as a read-only remote store. The backup is
// read once on first use and cached for the life of the source.
type BackupSource struct {
	location string
	open     func(ctx context.Context) (io.ReadCloser, error)

	mu     sync.Mutex
	backup *Backup
}

// NewFileBackupSource reads the backup from a local file.
func NewFileBackupSource(path string) *BackupSource {
	return &BackupSource{
		location: path,
		open: func(context.Context) (io.ReadCloser, error) {
			f, err := os.Open(path)
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
			}
			if errors.Is(err, os.ErrPermission) {
				return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
			}
			return f, err
		},
	}
}

// NewS3BackupSource reads the backup from an object in S3-compatible storage.
func NewS3BackupSource(client *minio.Client, bucket, key string) *BackupSource {
	return newObjectBackupSource(&minioClientWrapper{client: client}, bucket, key)
}

func newObjectBackupSource(client objectGetter, bucket, key string) *BackupSource {
	return &BackupSource{
		location: "s3://" + bucket + "/" + key,
		open: func(ctx context.Context) (io.ReadCloser, error) {
			return client.GetObject(ctx, bucket, key)
		},
	}
}

// ParseS3URL splits s3://bucket/key. ok is false for anything else.
func ParseS3URL(s string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(s, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

func (s *BackupSource) load(ctx context.Context) (*Backup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backup != nil {
		return s.backup, nil
	}

	rc, err := s.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open backup %s: %w", s.location, mapObjectError(err))
	}
	defer rc.Close()

	// minio reports a missing or forbidden object on first read.
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read backup %s: %w", s.location, mapObjectError(err))
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var b Backup
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("decode backup %s: %w", s.location, err)
	}
	if b.Tables == nil {
		b.Tables = map[string][]map[string]any{}
	}
	s.backup = &b
	return s.backup, nil
}

func (s *BackupSource) tenantTable(ctx context.Context, tenantID, collection string) ([]map[string]any, error) {
	b, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if b.OwnerUID != "" && b.OwnerUID != tenantID {
		return nil, fmt.Errorf("%w: backup belongs to a different tenant", ErrPermissionDenied)
	}
	return b.Tables[collection], nil
}

// FetchAll returns the documents of one backed-up table. A table absent from
// the backup is empty.
func (s *BackupSource) FetchAll(ctx context.Context, tenantID, collection string) ([]Document, error) {
	rows, err := s.tenantTable(ctx, tenantID, collection)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", collection, err)
	}
	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, Document{ID: documentID(row["id"]), Fields: copyFields(row)})
	}
	return docs, nil
}

// Count returns the number of rows in one backed-up table.
func (s *BackupSource) Count(ctx context.Context, tenantID, collection string) (int64, error) {
	rows, err := s.tenantTable(ctx, tenantID, collection)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return int64(len(rows)), nil
}

// Upsert always fails: backups are never written.
func (s *BackupSource) Upsert(_ context.Context, _, collection, id string, _ map[string]any) error {
	return fmt.Errorf("upsert %s/%s: %w", collection, id, ErrReadOnly)
}

func documentID(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func mapObjectError(err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrPermissionDenied) {
		return err
	}
	switch minio.ToErrorResponse(err).Code {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
