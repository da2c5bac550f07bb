package ports

import (
	"context"
	"io"
)

// Meta describes an opened import source.
type Meta struct {
	Source      string
	ContentType string
	Size        int64
	Bucket      string
	Key         string
}

// Location is the s3:// path of the source, or "" for non-bucket sources.
func (m Meta) Location() string {
	if m.Bucket == "" || m.Key == "" {
		return ""
	}
	return "s3://" + m.Bucket + "/" + m.Key
}

type FileOpener interface {
	Open(ctx context.Context, filePath string) (io.ReadCloser, Meta, error)
}
