package fragments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/OFFIS-RIT/lexgraph/pkg/common"
	"github.com/OFFIS-RIT/lexgraph/pkg/logger"
)

// FileStore keeps the fragment sequence in a single JSON file on the local
// filesystem. Saves go through a temp file in the same directory followed by
// a rename, so readers never observe a half-written document.
type FileStore struct {
	Path string

	mu      sync.Mutex
	version string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (f *FileStore) Load(ctx context.Context) ([]common.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			f.setVersion("")
			return []common.Fragment{}, nil
		}
		return nil, fmt.Errorf("read fragment store %s: %w", f.Path, err)
	}
	f.setVersion(contentSHA256(data))

	frags, err := decode(data)
	if err != nil {
		return []common.Fragment{}, fmt.Errorf("%w: %s: %v", ErrStoreCorrupt, f.Path, err)
	}
	return frags, nil
}

func (f *FileStore) Save(ctx context.Context, frags []common.Fragment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encode(frags)
	if err != nil {
		return fmt.Errorf("encode fragments: %w", err)
	}

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create fragment store dir: %w", err)
	}

	if err := writeFileAtomic(dir, f.Path, data); err != nil {
		return fmt.Errorf("save fragment store %s: %w", f.Path, err)
	}

	f.setVersion(contentSHA256(data))
	logger.Debug("[Fragments] saved", "path", f.Path, "fragments", len(frags))
	return nil
}

func (f *FileStore) Version() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version
}

func (f *FileStore) setVersion(v string) {
	f.mu.Lock()
	f.version = v
	f.mu.Unlock()
}

func writeFileAtomic(dir, dest string, data []byte) error {
	tmp, err := os.CreateTemp(dir, filepath.Base(dest)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, dest)
}

func contentSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
