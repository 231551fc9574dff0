package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/yourorg/dm-service/internal/errs"
)

// Uploader stores raw attachment bytes under a key and returns a
// retrievable URL. Any transport or storage error is reported as
// errs.ErrUploadFailed so the enclosing send can fail atomically.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

type S3Store struct {
	client     *s3.Client
	uploader   *manager.Uploader
	bucket     string
	region     string
	publicRead bool
	presignTTL time.Duration
}

func NewS3Store(ctx context.Context, region, bucket string, publicRead bool) (*S3Store, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg)
	return &S3Store{
		client:     client,
		uploader:   manager.NewUploader(client),
		bucket:     bucket,
		region:     region,
		publicRead: publicRead,
		presignTTL: 24 * time.Hour,
	}, nil
}

func (s *S3Store) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", errors.Join(errs.ErrUploadFailed, err)
	}

	if s.publicRead {
		escaped := url.PathEscape(key)
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, escaped), nil
	}
	return s.presignURL(ctx, key)
}

func (s *S3Store) presignURL(ctx context.Context, key string) (string, error) {
	p := s3.NewPresignClient(s.client)
	req, err := p.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", errors.Join(errs.ErrUploadFailed, err)
	}
	return req.URL, nil
}
