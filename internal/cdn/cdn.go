// Package cdn stores user-uploaded assets in S3-compatible object storage.
//
// Uploaded objects are served by a separate CDN frontend straight from the
// bucket, so keys double as the public URL path.
package cdn

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"concord/api/internal/snowflake"
)

// Config holds the connection settings for the object store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Service uploads and removes assets.
type Service struct {
	client *minio.Client
	bucket string
}

// NewService connects to the object store and ensures the bucket exists.
func NewService(ctx context.Context, cfg Config) (*Service, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("cdn: connect to %s: %w", cfg.Endpoint, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("cdn: check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("cdn: create bucket %s: %w", cfg.Bucket, err)
		}
		log.Printf("cdn: created bucket %s", cfg.Bucket)
	}

	return &Service{client: client, bucket: cfg.Bucket}, nil
}

// ProfileImageKey builds the object key for a user's profile image.
// The image ID is part of the key so stale CDN caches never serve an
// old image after a change.
func ProfileImageKey(userID, imageID snowflake.ID) string {
	return fmt.Sprintf("users/%d/pfp/%d.png", int64(userID), int64(imageID))
}

// UploadProfileImage stores a new profile image and returns its object key.
func (s *Service) UploadProfileImage(ctx context.Context, userID, imageID snowflake.ID, r io.Reader, size int64) (string, error) {
	key := ProfileImageKey(userID, imageID)
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: "image/png",
	})
	if err != nil {
		return "", fmt.Errorf("cdn: upload %s: %w", key, err)
	}
	return key, nil
}

// RemoveProfileImage deletes a previously uploaded profile image.
// Missing objects are not an error.
func (s *Service) RemoveProfileImage(ctx context.Context, userID, imageID snowflake.ID) error {
	key := ProfileImageKey(userID, imageID)
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("cdn: remove %s: %w", key, err)
	}
	return nil
}
