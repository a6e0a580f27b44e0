package remote

import (
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the remote store selected by cfg.Driver. The closer releases
// any connections the adapter holds.
func Open(cfg config.RemoteConfig) (Store, io.Closer, error) {
	switch cfg.Driver {
	case config.DriverHTTP:
		c, err := NewHTTPClient(cfg.HTTP, time.Duration(cfg.Timeout))
		if err != nil {
			return nil, nil, err
		}
		return c, nopCloser{}, nil

	case config.DriverPostgres:
		s, err := NewPostgresStore(cfg.Postgres.DSN, cfg.Postgres.Table)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil

	case config.DriverBackup:
		src, err := newBackupSource(cfg.Backup)
		if err != nil {
			return nil, nil, err
		}
		return src, nopCloser{}, nil

	case config.DriverMemory, "":
		return NewMemoryStore(), nopCloser{}, nil

	default:
		return nil, nil, fmt.Errorf("unknown remote driver %q", cfg.Driver)
	}
}

func newBackupSource(cfg config.RemoteBackupConfig) (*BackupSource, error) {
	bucket, key, isS3 := ParseS3URL(cfg.Path)
	if !isS3 {
		return NewFileBackupSource(cfg.Path), nil
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
	}
	useSSL := true
	if cfg.UseSSL != nil {
		useSSL = *cfg.UseSSL
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}
	return NewS3BackupSource(client, bucket, key), nil
}
