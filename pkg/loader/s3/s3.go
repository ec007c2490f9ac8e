package s3

import (
	"context"
	"sync"

	"github.com/OFFIS-RIT/lexgraph/internal/storage"
	"github.com/OFFIS-RIT/lexgraph/pkg/loader"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/singleflight"
)

// S3Source reads a record collection from an S3 object. The content is
// cached after the first successful read.
type S3Source struct {
	Bucket string
	Key    string
	client *s3.Client

	cache   []byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

var _ loader.Source = (*S3Source)(nil)

// NewS3SourceWithClient reuses a configured client, for example one built
// by storage.NewS3Client.
func NewS3SourceWithClient(client *s3.Client, bucket, key string) *S3Source {
	return &S3Source{Bucket: bucket, Key: key, client: client}
}

// NewS3Source builds its own client from cfg.
func NewS3Source(ctx context.Context, cfg storage.S3Config, key string) (*S3Source, error) {
	client, err := storage.NewS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewS3SourceWithClient(client, cfg.Bucket, key), nil
}

func (s *S3Source) Name() string {
	return "s3://" + s.Bucket + "/" + s.Key
}

func (s *S3Source) Read(ctx context.Context) ([]byte, error) {
	s.cacheMu.RLock()
	if s.cache != nil {
		defer s.cacheMu.RUnlock()
		return s.cache, nil
	}
	s.cacheMu.RUnlock()

	result, err, _ := s.group.Do(s.Key, func() (any, error) {
		data, _, err := storage.GetObject(ctx, s.client, s.Bucket, s.Key)
		if err != nil {
			return nil, err
		}

		s.cacheMu.Lock()
		s.cache = data
		s.cacheMu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}
