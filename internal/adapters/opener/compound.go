package opener

import (
	"context"
	"errors"
	"io"
	"net/url"
	"path"
	"strings"

	"finance_tracker/internal/ports"
)

// CompoundOpener dispatches on the location form: http(s) URLs, s3://bucket/key
// paths, or bare keys in the default bucket.
type CompoundOpener struct {
	HTTP *HTTPOpener
	S3   *S3Opener

	DefaultBucket string
}

func NewCompoundOpener(httpOp *HTTPOpener, s3Op *S3Opener, defaultBucket string) *CompoundOpener {
	return &CompoundOpener{
		HTTP:          httpOp,
		S3:            s3Op,
		DefaultBucket: defaultBucket,
	}
}

func (c *CompoundOpener) Open(ctx context.Context, filePath string) (io.ReadCloser, ports.Meta, error) {
	loc, err := ParseLocation(filePath, c.DefaultBucket)
	if err != nil {
		return nil, ports.Meta{}, err
	}

	if loc.URL != "" {
		if c.HTTP == nil {
			return nil, ports.Meta{}, errors.New("http opener not configured")
		}
		return c.HTTP.Open(ctx, loc.URL)
	}
	if c.S3 == nil {
		return nil, ports.Meta{}, errors.New("s3 opener not configured")
	}
	return c.S3.Open(ctx, loc.Bucket, loc.Key)
}

// Location is either an http(s) URL or an object in a bucket.
type Location struct {
	URL    string
	Bucket string
	Key    string
}

func ParseLocation(filePath, defaultBucket string) (Location, error) {
	fp := strings.TrimSpace(filePath)
	switch {
	case fp == "":
		return Location{}, errors.New("empty file path")
	case strings.HasPrefix(fp, "http://") || strings.HasPrefix(fp, "https://"):
		return Location{URL: fp}, nil
	case strings.HasPrefix(fp, "s3://"):
		bkt, key, err := parseS3URL(fp)
		if err != nil {
			return Location{}, err
		}
		return Location{Bucket: bkt, Key: key}, nil
	}
	if defaultBucket == "" {
		return Location{}, errors.New("missing bucket: pass s3://bucket/key or https url")
	}
	return Location{Bucket: defaultBucket, Key: strings.TrimPrefix(path.Clean(fp), "/")}, nil
}

func parseS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" {
		return "", "", errors.New("scheme must be s3")
	}
	bucket = u.Host
	key = path.Clean(strings.TrimPrefix(u.Path, "/"))
	if bucket == "" || key == "" || key == "." || key == "/" {
		return "", "", errors.New("empty bucket or key")
	}
	return bucket, key, nil
}
