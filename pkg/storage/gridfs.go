package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFSStorage keeps blobs in a MongoDB GridFS bucket, using the key as the file name.
type GridFSStorage struct {
	bucket *gridfs.Bucket
}

// NewGridFSStorage opens (lazily creating) the named bucket in db.
func NewGridFSStorage(db *mongo.Database, bucketName string) (*GridFSStorage, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, fmt.Errorf("failed to open gridfs bucket: %w", err)
	}
	return &GridFSStorage{bucket: bucket}, nil
}

func (s *GridFSStorage) Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	// A re-upload replaces the previous revision.
	if err := s.Delete(ctx, key); err != nil {
		return err
	}
	opts := options.GridFSUpload().SetMetadata(bson.M{"content_type": contentType})
	stream, err := s.bucket.OpenUploadStream(key, opts)
	if err != nil {
		return fmt.Errorf("failed to open upload stream: %w", err)
	}
	if err := stream.SetWriteDeadline(deadline(ctx)); err != nil {
		stream.Close()
		return err
	}
	if _, err := io.Copy(stream, r); err != nil {
		stream.Abort()
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return stream.Close()
}

func (s *GridFSStorage) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	stream, err := s.bucket.OpenDownloadStreamByName(key)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	if err := stream.SetReadDeadline(deadline(ctx)); err != nil {
		stream.Close()
		return nil, err
	}
	return stream, nil
}

func (s *GridFSStorage) Delete(ctx context.Context, key string) error {
	cursor, err := s.bucket.FindContext(ctx, bson.M{"filename": key})
	if err != nil {
		return fmt.Errorf("failed to look up %s: %w", key, err)
	}
	defer cursor.Close(ctx)

	var files []struct {
		ID interface{} `bson:"_id"`
	}
	if err := cursor.All(ctx, &files); err != nil {
		return err
	}
	for _, f := range files {
		if err := s.bucket.DeleteContext(ctx, f.ID); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}
	return nil
}

// deadline returns the context deadline, or the zero time (no deadline).
func deadline(ctx context.Context) time.Time {
	d, _ := ctx.Deadline()
	return d
}

var _ Storage = (*GridFSStorage)(nil)
