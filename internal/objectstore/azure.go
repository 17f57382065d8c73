package objectstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureBucket stores objects in an Azure Blob Storage container
type AzureBucket struct {
	client    *azblob.Client
	container string
}

// NewAzureBucket creates the client and makes sure the container exists
func NewAzureBucket(ctx context.Context, connectionString, container string) (*AzureBucket, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	if _, err := client.CreateContainer(ctx, container, nil); err != nil {
		if !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return nil, fmt.Errorf("create container %s: %w", container, err)
		}
	}
	slog.Debug("Storage container ready", "container", container)

	return &AzureBucket{client: client, container: container}, nil
}

func (a *AzureBucket) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	opts := &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: &contentType,
		},
	}

	if _, err := a.client.UploadStream(ctx, a.container, key, r, opts); err != nil {
		return fmt.Errorf("upload blob %s: %w", key, err)
	}
	return nil
}

func (a *AzureBucket) URL(key string) string {
	return strings.TrimRight(a.client.URL(), "/") + "/" + a.container + "/" + key
}
