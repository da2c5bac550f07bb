package opener

import (
	"context"
	"fmt"
	"io"

	"finance_tracker/internal/ports"

	"github.com/minio/minio-go/v7"
	"github.com/sirupsen/logrus"
)

type S3Client interface {
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
}

type S3Opener struct {
	Client S3Client
	Logger *logrus.Logger
}

func NewS3Opener(cli S3Client, logger *logrus.Logger) *S3Opener {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &S3Opener{Client: cli, Logger: logger}
}

func (s *S3Opener) Open(ctx context.Context, bucket, key string) (io.ReadCloser, ports.Meta, error) {
	s.Logger.Printf("[OPENER][S3][START] bucket=%q key=%q", bucket, key)
	st, err := s.Client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		s.Logger.Printf("[OPENER][S3][ERR] stat: %v", err)
		return nil, ports.Meta{}, fmt.Errorf("s3 stat: %w", err)
	}
	obj, err := s.Client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		s.Logger.Printf("[OPENER][S3][ERR] get: %v", err)
		return nil, ports.Meta{}, fmt.Errorf("s3 get: %w", err)
	}
	s.Logger.Printf("[OPENER][S3][OK] content_type=%q size=%d etag=%q", st.ContentType, st.Size, st.ETag)
	return obj, ports.Meta{
		Source:      "s3",
		ContentType: st.ContentType,
		Size:        st.Size,
		Bucket:      bucket,
		Key:         key,
	}, nil
}
