package storage

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"gym-booking-service/internal/config"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFilePresigner_RequiresBucket(t *testing.T) {
	_, err := NewFilePresigner(context.Background(), config.S3Config{Region: "us-east-1"})
	assert.ErrorIs(t, err, ErrBucketNotConfigured)
}

func TestFilePresigner_PresignUpload(t *testing.T) {
	p, err := NewFilePresigner(context.Background(), config.S3Config{
		Endpoint:     "http://localhost:9000",
		Region:       "us-east-1",
		Bucket:       "class-images",
		AccessKey:    "minio",
		SecretKey:    "minio-secret",
		UsePathStyle: true,
	})
	require.NoError(t, err)

	raw, err := p.PresignUpload(context.Background(), "classes/abc/1.png", "image/png")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/class-images/classes/abc/1.png", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
}

type failingPresignClient struct{}

func (failingPresignClient) PresignPutObject(context.Context, *s3.PutObjectInput, ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return nil, errors.New("signing failed")
}

func TestFilePresigner_PropagatesError(t *testing.T) {
	p := &FilePresigner{client: failingPresignClient{}, bucketName: "class-images"}

	_, err := p.PresignUpload(context.Background(), "classes/abc/1.png", "image/png")
	assert.EqualError(t, err, "signing failed")
}
