package miniostore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/devanshpatel/filevault/internal/config"
	"github.com/devanshpatel/filevault/internal/objectstore"
	"github.com/devanshpatel/filevault/internal/types"
)

// Store is the hot tier, backed by MinIO. Uploads land here first and are
// mirrored to the cold tier by the sync worker.
type Store struct {
	client *minio.Client
	bucket string
}

// NewStore creates the MinIO client and ensures the bucket exists.
func NewStore(cfg *config.Config) (*Store, error) {
	client, err := minio.New(cfg.MinIO.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKeyID, cfg.MinIO.SecretAccessKey, ""),
		Secure: cfg.MinIO.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	store := &Store{
		client: client,
		bucket: cfg.MinIO.Bucket,
	}

	if err := store.ensureBucket(); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return store, nil
}

// ensureBucket creates the bucket if it doesn't exist
func (s *Store) ensureBucket() error {
	ctx := context.Background()

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

func (s *Store) Put(ctx context.Context, ownerID, filename string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = types.ContentTypeForFilename(filename)
	}

	_, err := s.client.PutObject(ctx, s.bucket, types.ObjectKey(ownerID, filename),
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return fmt.Errorf("failed to upload object to MinIO: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, ownerID, filename string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, types.ObjectKey(ownerID, filename), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from MinIO: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		// minio-go reports missing keys on first read, not on GetObject
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil, objectstore.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read object from MinIO: %w", err)
	}
	return data, nil
}

func (s *Store) Delete(ctx context.Context, ownerID, filename string) error {
	err := s.client.RemoveObject(ctx, s.bucket, types.ObjectKey(ownerID, filename), minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete object from MinIO: %w", err)
	}
	return nil
}

// PresignedURLs generates a 24h inline preview link and an attachment
// download link for the object.
func (s *Store) PresignedURLs(ctx context.Context, ownerID, filename string) (*objectstore.URLs, error) {
	key := types.ObjectKey(ownerID, filename)

	previewParams := url.Values{}
	previewParams.Set("response-content-type", types.ContentTypeForFilename(filename))
	previewParams.Set("response-content-disposition", fmt.Sprintf("inline; filename=%q", filename))

	preview, err := s.client.PresignedGetObject(ctx, s.bucket, key, objectstore.PresignedURLTTL, previewParams)
	if err != nil {
		return nil, fmt.Errorf("failed to generate preview URL: %w", err)
	}

	downloadParams := url.Values{}
	downloadParams.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", filename))

	download, err := s.client.PresignedGetObject(ctx, s.bucket, key, objectstore.PresignedURLTTL, downloadParams)
	if err != nil {
		return nil, fmt.Errorf("failed to generate download URL: %w", err)
	}

	return &objectstore.URLs{
		Preview:  preview.String(),
		Download: download.String(),
	}, nil
}

// Available is always true once the client constructed; the hot tier is a
// hard dependency of the service.
func (s *Store) Available() bool {
	return s.client != nil
}
