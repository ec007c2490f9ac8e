package queue

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

var (
	// ErrRejected marks a message that cannot succeed on any retry. Handle
	// sends it straight to the DLQ.
	ErrRejected = errors.New("message rejected")

	ErrKeyNotAllowed = errors.New("fragments key not allowed")
)

// KeyPolicy decides which fragment stores an ingest message may name.
// Default is always allowed. When Prefix is set, keys below it are allowed
// too, as long as they do not climb out of it.
type KeyPolicy struct {
	Default string
	Prefix  string
}

func (p KeyPolicy) Check(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrKeyNotAllowed)
	}
	if key == p.Default {
		return nil
	}
	if p.Prefix == "" {
		return fmt.Errorf("%w: %q", ErrKeyNotAllowed, key)
	}
	if strings.ContainsRune(key, '\\') {
		return fmt.Errorf("%w: %q", ErrKeyNotAllowed, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return fmt.Errorf("%w: %q", ErrKeyNotAllowed, key)
		}
	}

	prefix := strings.TrimSuffix(path.Clean(p.Prefix), "/") + "/"
	if !strings.HasPrefix(path.Clean(key), prefix) {
		return fmt.Errorf("%w: %q is outside %q", ErrKeyNotAllowed, key, p.Prefix)
	}
	return nil
}
