package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/OFFIS-RIT/lexgraph/internal/util"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

var (
	ErrObjectNotFound     = errors.New("object not found")
	ErrPreconditionFailed = errors.New("object precondition failed")
)

// S3Config holds the connection settings for an S3 compatible endpoint.
type S3Config struct {
	Region    string `validate:"required"`
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string `validate:"required"`
}

// S3ConfigFromEnv reads AWS_REGION, AWS_ENDPOINT, AWS_ACCESS_KEY,
// AWS_SECRET_KEY and AWS_BUCKET.
func S3ConfigFromEnv() S3Config {
	return S3Config{
		Region:    util.GetEnvString("AWS_REGION", "us-east-1"),
		Endpoint:  util.GetEnvString("AWS_ENDPOINT", ""),
		AccessKey: util.GetEnvString("AWS_ACCESS_KEY", ""),
		SecretKey: util.GetEnvString("AWS_SECRET_KEY", ""),
		Bucket:    util.GetEnvString("AWS_BUCKET", ""),
	}
}

func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	if err := util.ValidateStruct(cfg); err != nil {
		return nil, fmt.Errorf("invalid s3 config: %w", err)
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(cfg.Endpoint))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return client, nil
}

// GetObject reads a whole object and returns its content and ETag.
// A missing object yields ErrObjectNotFound.
func GetObject(ctx context.Context, client *s3.Client, bucket, key string) ([]byte, string, error) {
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, "", fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, "", fmt.Errorf("failed to get %s from S3: %w", key, err)
	}
	defer result.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, result.Body); err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", key, err)
	}

	return buf.Bytes(), aws.ToString(result.ETag), nil
}

// PutObject uploads body under key. When ifMatch is set the write only
// succeeds if the stored object still carries that ETag; otherwise
// ErrPreconditionFailed is returned.
func PutObject(ctx context.Context, client *s3.Client, bucket, key string, body []byte, contentType string, ifMatch string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if ifMatch != "" {
		input.IfMatch = aws.String(ifMatch)
	}

	result, err := client.PutObject(ctx, input)
	if err != nil {
		var responseErr *smithyhttp.ResponseError
		if errors.As(err, &responseErr) && responseErr.HTTPStatusCode() == http.StatusPreconditionFailed {
			return "", fmt.Errorf("%w: %s", ErrPreconditionFailed, key)
		}
		return "", fmt.Errorf("failed to upload %s to S3: %w", key, err)
	}

	return aws.ToString(result.ETag), nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var responseErr *smithyhttp.ResponseError
	return errors.As(err, &responseErr) && responseErr.HTTPStatusCode() == http.StatusNotFound
}
