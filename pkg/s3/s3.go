package s3

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// PresignExpiry is how long returned object URLs stay valid.
const PresignExpiry = time.Hour * 24 * 7

// ObjectStorageClient uploads objects and hands out presigned URLs.
type ObjectStorageClient interface {
	Connect(ctx context.Context, endpoint, accessKeyID, secretAccessKey string, useSSL bool) error
	UploadObject(ctx context.Context, bucketName, objectName string, data []byte, contentType string) (*UploadResult, error)
}

// UploadResult describes a stored object.
type UploadResult struct {
	URL        string
	ObjectName string
	Size       int64
}

// ObjectStorage implements ObjectStorageClient on MinIO/S3.
type ObjectStorage struct {
	Conn   *minio.Client
	Region string
}

// NewObjectStorage initialization
func NewObjectStorage(region string) *ObjectStorage {
	return &ObjectStorage{Region: region}
}

// Connect establishes the object storage connection using client
func (o *ObjectStorage) Connect(ctx context.Context, endpoint, accessKeyID, secretAccessKey string, useSSL bool) error {
	var err error
	o.Conn, err = minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
		Region: o.Region,
	})
	if err != nil {
		return fmt.Errorf("failed to create minio client: %w", err)
	}

	// Check connection by listing buckets
	if _, err = o.Conn.ListBuckets(ctx); err != nil {
		return fmt.Errorf("failed to establish minio connection: %w", err)
	}
	return nil
}

// ensureBucket creates the bucket unless it already exists.
func (o *ObjectStorage) ensureBucket(ctx context.Context, bucketName string) error {
	err := o.Conn.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: o.Region})
	if err == nil {
		return nil
	}
	exists, errBucketExists := o.Conn.BucketExists(ctx, bucketName)
	if errBucketExists == nil && exists {
		return nil
	}
	return fmt.Errorf("failed to create bucket %s: %w", bucketName, err)
}

// UploadObject stores data and returns a presigned GET URL for it.
// Objects with the same name are overwritten.
func (o *ObjectStorage) UploadObject(ctx context.Context, bucketName, objectName string, data []byte, contentType string) (*UploadResult, error) {
	if o.Conn == nil {
		return nil, fmt.Errorf("object storage is not connected")
	}
	if err := o.ensureBucket(ctx, bucketName); err != nil {
		return nil, err
	}

	info, err := o.Conn.PutObject(ctx, bucketName, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", objectName, err)
	}

	presignedURL, err := o.Conn.PresignedGetObject(ctx, bucketName, objectName, PresignExpiry, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to presign %s: %w", objectName, err)
	}

	return &UploadResult{
		URL:        presignedURL.String(),
		ObjectName: objectName,
		Size:       info.Size,
	}, nil
}
