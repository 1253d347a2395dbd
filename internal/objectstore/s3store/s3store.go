package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/devanshpatel/filevault/internal/config"
	"github.com/devanshpatel/filevault/internal/objectstore"
	"github.com/devanshpatel/filevault/internal/types"
)

// Store is the cold tier, backed by AWS S3. Objects land here only through
// the sync worker; the request path never writes to it.
//
// Missing configuration produces a disabled store rather than an error, so
// deployments without AWS credentials simply run without cold-tier sync.
type Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	available bool
}

// NewStore builds the S3 client and probes the bucket. A store without
// credentials or bucket config is returned disabled, not as an error.
func NewStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if cfg.S3.Bucket == "" || cfg.S3.AccessKey == "" || cfg.S3.SecretKey == "" {
		logger.Info("S3 configuration missing, cold tier disabled")
		return &Store{available: false}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3.AccessKey, cfg.S3.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
			o.UsePathStyle = true // localstack/dev friendliness
		}
	})

	store := &Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.S3.Bucket,
	}

	// Probe connectivity once; a failed probe disables the tier instead of
	// failing boot. The sync worker re-checks availability every pass.
	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(store.bucket)})
	if err != nil {
		logger.Warn("S3 bucket not reachable, cold tier disabled",
			slog.String("bucket", store.bucket),
			slog.String("error", err.Error()))
		return &Store{available: false}, nil
	}

	store.available = true
	logger.Info("Connected to S3 bucket", slog.String("bucket", store.bucket))
	return store, nil
}

func (s *Store) Put(ctx context.Context, ownerID, filename string, data []byte, contentType string) error {
	if !s.available {
		return errors.New("S3 cold tier is not available")
	}

	if contentType == "" {
		contentType = types.ContentTypeForFilename(filename)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(types.ObjectKey(ownerID, filename)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"user_id":           ownerID,
			"original_filename": filename,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload object to S3: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, ownerID, filename string) ([]byte, error) {
	if !s.available {
		return nil, errors.New("S3 cold tier is not available")
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(types.ObjectKey(ownerID, filename)),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, objectstore.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object from S3: %w", err)
	}
	return data, nil
}

func (s *Store) Delete(ctx context.Context, ownerID, filename string) error {
	if !s.available {
		return errors.New("S3 cold tier is not available")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(types.ObjectKey(ownerID, filename)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}
	return nil
}

// PresignedURLs generates the 24h preview and download links for a synced
// object.
func (s *Store) PresignedURLs(ctx context.Context, ownerID, filename string) (*objectstore.URLs, error) {
	if !s.available {
		return nil, errors.New("S3 cold tier is not available")
	}

	key := types.ObjectKey(ownerID, filename)
	expires := func(o *s3.PresignOptions) { o.Expires = objectstore.PresignedURLTTL }

	preview, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(s.bucket),
		Key:                        aws.String(key),
		ResponseContentType:        aws.String(types.ContentTypeForFilename(filename)),
		ResponseContentDisposition: aws.String(fmt.Sprintf("inline; filename=%q", filename)),
	}, expires)
	if err != nil {
		return nil, fmt.Errorf("failed to presign preview URL: %w", err)
	}

	download, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(s.bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", filename)),
	}, expires)
	if err != nil {
		return nil, fmt.Errorf("failed to presign download URL: %w", err)
	}

	return &objectstore.URLs{
		Preview:  preview.URL,
		Download: download.URL,
	}, nil
}

func (s *Store) Available() bool {
	return s.available
}
