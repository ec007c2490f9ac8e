// Package fragments persists the ordered sequence of extracted graph
// fragments. The whole sequence is one document that is rewritten in full on
// every save, so a run is durable at fragment granularity.
package fragments

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/OFFIS-RIT/lexgraph/pkg/common"
)

var (
	// ErrStoreCorrupt is returned by Load together with an empty sequence
	// when the stored document cannot be decoded. Callers warn and continue.
	ErrStoreCorrupt = errors.New("fragment store is corrupt")

	// ErrVersionMismatch is returned by Save when another writer changed the
	// document since it was loaded.
	ErrVersionMismatch = errors.New("fragment store version mismatch")
)

// Store is a durable, versioned collection of graph fragments.
type Store interface {
	// Load returns the stored sequence. A missing document is an empty
	// sequence; a corrupt one is an empty sequence plus ErrStoreCorrupt.
	Load(ctx context.Context) ([]common.Fragment, error)
	// Save atomically replaces the stored sequence with frags.
	Save(ctx context.Context, frags []common.Fragment) error
	// Version identifies the content last loaded or saved.
	Version() string
}

func decode(data []byte) ([]common.Fragment, error) {
	var frags []common.Fragment
	if err := json.Unmarshal(data, &frags); err != nil {
		return nil, err
	}
	if frags == nil {
		frags = []common.Fragment{}
	}
	return frags, nil
}

func encode(frags []common.Fragment) ([]byte, error) {
	if frags == nil {
		frags = []common.Fragment{}
	}
	return json.MarshalIndent(frags, "", "  ")
}
