package io

import (
	"context"
	"os"
	"sync"

	"github.com/OFFIS-RIT/lexgraph/pkg/loader"

	"golang.org/x/sync/singleflight"
)

// FileSource reads a record collection from the local filesystem. The
// content is cached after the first successful read.
type FileSource struct {
	Path string

	cache   []byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

var _ loader.Source = (*FileSource)(nil)

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Name() string {
	return s.Path
}

func (s *FileSource) Read(ctx context.Context) ([]byte, error) {
	s.cacheMu.RLock()
	if s.cache != nil {
		defer s.cacheMu.RUnlock()
		return s.cache, nil
	}
	s.cacheMu.RUnlock()

	result, err, _ := s.group.Do(s.Path, func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(s.Path)
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
