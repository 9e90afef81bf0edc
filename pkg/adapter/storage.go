package adapter

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/option"
)

// Storage keeps uploaded image payloads outside of history documents
type Storage interface {
	// Put returns a writer that stores an object under key
	Put(ctx context.Context, key, contentType string) (io.WriteCloser, error)
	// Get opens the object stored under key
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases the underlying client
	Close() error
}

// storageClient implements Storage interface using Cloud Storage
type storageClient struct {
	bucketName string
	client     *storage.Client
}

// NewStorage creates a new Cloud Storage client
func NewStorage(ctx context.Context, bucketName string, opts ...option.ClientOption) (Storage, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &storageClient{
		bucketName: bucketName,
		client:     client,
	}, nil
}

func (s *storageClient) Put(ctx context.Context, key, contentType string) (io.WriteCloser, error) {
	writer := s.client.Bucket(s.bucketName).Object(key).NewWriter(ctx)
	writer.ContentType = contentType
	return writer, nil
}

func (s *storageClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := s.client.Bucket(s.bucketName).Object(key).NewReader(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read from storage", goerr.V("bucket", s.bucketName), goerr.V("key", key))
	}

	return reader, nil
}

func (s *storageClient) Delete(ctx context.Context, key string) error {
	if err := s.client.Bucket(s.bucketName).Object(key).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return goerr.Wrap(err, "failed to delete from storage", goerr.V("bucket", s.bucketName), goerr.V("key", key))
	}
	return nil
}

func (s *storageClient) Close() error {
	if err := s.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close storage client", goerr.V("bucket", s.bucketName))
	}
	return nil
}
