package storage

import (
	"context"
	"errors"
	"time"

	"gym-booking-service/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const uploadURLTTL = 15 * time.Minute

var ErrBucketNotConfigured = errors.New("S3 bucket is not configured")

type putObjectPresigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// FilePresigner issues presigned PUT URLs for class images.
type FilePresigner struct {
	client     putObjectPresigner
	bucketName string
}

func NewFilePresigner(ctx context.Context, cfg config.S3Config) (*FilePresigner, error) {
	if cfg.Bucket == "" {
		return nil, ErrBucketNotConfigured
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &FilePresigner{
		client:     s3.NewPresignClient(s3Client),
		bucketName: cfg.Bucket,
	}, nil
}

func (p *FilePresigner) PresignUpload(ctx context.Context, key, contentType string) (string, error) {
	request, err := p.client.PresignPutObject(
		ctx,
		&s3.PutObjectInput{
			Bucket:      aws.String(p.bucketName),
			Key:         aws.String(key),
			ContentType: aws.String(contentType),
		},
		func(opts *s3.PresignOptions) {
			opts.Expires = uploadURLTTL
		},
	)
	if err != nil {
		return "", err
	}

	return request.URL, nil
}
