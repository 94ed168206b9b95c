// Package storage mirrors in-process index snapshots to S3-compatible
// object storage so a tenant's index survives host loss.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/loreworks/mwassist/internal/vectorstore"
)

// SnapshotMirrorConfig holds configuration for SnapshotMirror
type SnapshotMirrorConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UsePathStyle    bool
}

// SnapshotMirror copies tenant index snapshot files to and from a bucket.
// Keys are laid out as <tenant>/<filename>, mirroring the on-disk layout.
type SnapshotMirror struct {
	client *s3.Client
	bucket string
}

// snapshotFiles are the files that make up one tenant snapshot.
var snapshotFiles = []string{vectorstore.IndexFileName, vectorstore.MetaFileName}

// NewSnapshotMirror creates a mirror against the configured bucket.
func NewSnapshotMirror(ctx context.Context, cfg SnapshotMirrorConfig) (*SnapshotMirror, error) {
	// Custom resolver for S3-compatible endpoints (e.g., RustFS, MinIO)
	customResolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			if cfg.Endpoint != "" {
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					HostnameImmutable: true,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		},
	)

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
		config.WithEndpointResolverWithOptions(customResolver),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &SnapshotMirror{client: client, bucket: cfg.Bucket}, nil
}

// Upload pushes the tenant's snapshot files from its data directory. A
// missing file is skipped: a tenant that has never flushed has nothing to
// mirror yet.
func (m *SnapshotMirror) Upload(ctx context.Context, tenantID, dataDir string) error {
	for _, name := range snapshotFiles {
		path := filepath.Join(dataDir, name)
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to open snapshot file %s: %w", path, err)
		}

		_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(m.bucket),
			Key:    aws.String(tenantID + "/" + name),
			Body:   f,
		})
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to upload snapshot %s/%s: %w", tenantID, name, err)
		}
	}
	return nil
}

// Download restores the tenant's snapshot files into its data directory.
// Returns false when the bucket holds no snapshot for the tenant.
func (m *SnapshotMirror) Download(ctx context.Context, tenantID, dataDir string) (bool, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return false, fmt.Errorf("failed to create data dir: %w", err)
	}

	restored := false
	for _, name := range snapshotFiles {
		out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(m.bucket),
			Key:    aws.String(tenantID + "/" + name),
		})
		if err != nil {
			var notFound *types.NoSuchKey
			if errors.As(err, &notFound) {
				continue
			}
			return restored, fmt.Errorf("failed to fetch snapshot %s/%s: %w", tenantID, name, err)
		}

		path := filepath.Join(dataDir, name)
		f, err := os.Create(path)
		if err != nil {
			out.Body.Close()
			return restored, fmt.Errorf("failed to create snapshot file %s: %w", path, err)
		}
		_, err = io.Copy(f, out.Body)
		out.Body.Close()
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return restored, fmt.Errorf("failed to write snapshot file %s: %w", path, err)
		}
		restored = true
	}
	return restored, nil
}

// EnsureLocalSnapshot downloads the tenant's snapshot when no local copy
// exists yet. A local index always wins over the mirror: it is at least as
// fresh as the last upload.
func (m *SnapshotMirror) EnsureLocalSnapshot(ctx context.Context, tenantID, dataDir string) (bool, error) {
	_, err := os.Stat(filepath.Join(dataDir, vectorstore.IndexFileName))
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("failed to stat local snapshot: %w", err)
	}
	return m.Download(ctx, tenantID, dataDir)
}

// Delete removes the tenant's mirrored snapshot.
func (m *SnapshotMirror) Delete(ctx context.Context, tenantID string) error {
	for _, name := range snapshotFiles {
		_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.bucket),
			Key:    aws.String(tenantID + "/" + name),
		})
		if err != nil {
			return fmt.Errorf("failed to delete snapshot %s/%s: %w", tenantID, name, err)
		}
	}
	return nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (m *SnapshotMirror) EnsureBucket(ctx context.Context) error {
	_, err := m.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(m.bucket),
	})
	if err == nil {
		return nil
	}

	_, err = m.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(m.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}
