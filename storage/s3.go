package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// FileStore is the private bucket holding verification documents.
type FileStore interface {
	Upload(ctx context.Context, key string, body io.ReadSeeker, contentType string) error
	Delete(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type S3Options struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type S3FileStore struct {
	client *s3.S3
	bucket string
}

func NewS3FileStore(opts S3Options) (*S3FileStore, error) {
	cfg := &aws.Config{
		Region:           aws.String(opts.Region),
		DisableSSL:       aws.Bool(!opts.UseSSL),
		S3ForcePathStyle: aws.Bool(true),
	}
	if opts.AccessKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(opts.AccessKey, opts.SecretKey, "")
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = aws.String(opts.Endpoint)
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("s3 session: %w", err)
	}

	return &S3FileStore{
		client: s3.New(sess),
		bucket: opts.Bucket,
	}, nil
}

func (s *S3FileStore) Upload(ctx context.Context, key string, body io.ReadSeeker, contentType string) error {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func (s *S3FileStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// SignedURL returns a time-limited GET link for key.
func (s *S3FileStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, _ := s.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	req.SetContext(ctx)
	url, err := req.Presign(ttl)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return url, nil
}
