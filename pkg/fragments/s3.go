package fragments

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/OFFIS-RIT/lexgraph/internal/storage"
	"github.com/OFFIS-RIT/lexgraph/pkg/common"
	"github.com/OFFIS-RIT/lexgraph/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store keeps the fragment sequence as a single object in an S3 bucket.
// The object's ETag is the store version.
//
// With Optimistic set, Save sends If-Match with the version from the last
// Load or Save and fails with ErrVersionMismatch when another writer got in
// between.
type S3Store struct {
	Client     *s3.Client
	Bucket     string
	Key        string
	Optimistic bool

	mu      sync.Mutex
	version string
}

func NewS3Store(client *s3.Client, bucket, key string) *S3Store {
	return &S3Store{
		Client: client,
		Bucket: bucket,
		Key:    key,
	}
}

func (s *S3Store) Load(ctx context.Context) ([]common.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, etag, err := storage.GetObject(ctx, s.Client, s.Bucket, s.Key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			s.setVersion("")
			return []common.Fragment{}, nil
		}
		return nil, fmt.Errorf("load fragment store s3://%s/%s: %w", s.Bucket, s.Key, err)
	}
	s.setVersion(etag)

	frags, err := decode(data)
	if err != nil {
		return []common.Fragment{}, fmt.Errorf("%w: s3://%s/%s: %v", ErrStoreCorrupt, s.Bucket, s.Key, err)
	}
	return frags, nil
}

func (s *S3Store) Save(ctx context.Context, frags []common.Fragment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encode(frags)
	if err != nil {
		return fmt.Errorf("encode fragments: %w", err)
	}

	ifMatch := ""
	if s.Optimistic {
		ifMatch = s.Version()
	}

	etag, err := storage.PutObject(ctx, s.Client, s.Bucket, s.Key, data, "application/json", ifMatch)
	if err != nil {
		if errors.Is(err, storage.ErrPreconditionFailed) {
			return fmt.Errorf("%w: s3://%s/%s", ErrVersionMismatch, s.Bucket, s.Key)
		}
		return fmt.Errorf("save fragment store s3://%s/%s: %w", s.Bucket, s.Key, err)
	}

	s.setVersion(etag)
	logger.Debug("[Fragments] saved", "bucket", s.Bucket, "key", s.Key, "fragments", len(frags))
	return nil
}

func (s *S3Store) Version() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

func (s *S3Store) setVersion(v string) {
	s.mu.Lock()
	s.version = v
	s.mu.Unlock()
}
