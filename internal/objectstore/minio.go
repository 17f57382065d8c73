package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioBucket stores objects in an S3-compatible bucket
type MinioBucket struct {
	client     *minio.Client
	bucketName string
	publicURL  string
}

// NewMinioBucket connects to endpoint and creates the bucket if it does not
// exist. publicURL, when set, replaces the endpoint in returned object URLs.
func NewMinioBucket(ctx context.Context, endpoint, accessKey, secretKey, bucketName, region string, useSSL bool, publicURL string) (*MinioBucket, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	if publicURL == "" {
		publicURL = client.EndpointURL().String() + "/" + bucketName
	}

	return &MinioBucket{
		client:     client,
		bucketName: bucketName,
		publicURL:  strings.TrimRight(publicURL, "/"),
	}, nil
}

func (b *MinioBucket) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := b.client.PutObject(ctx, b.bucketName, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to save object: %w", err)
	}
	return nil
}

func (b *MinioBucket) URL(key string) string {
	return b.publicURL + "/" + key
}
