// Package errlog is the operator-facing record of per-record extraction
// failures. It is append-only and never read back by the pipeline.
package errlog

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/OFFIS-RIT/lexgraph/internal/util"
	"github.com/OFFIS-RIT/lexgraph/pkg/common"
)

type Log interface {
	Append(ctx context.Context, entry common.ErrorEntry) error
}

// Format renders entry as the human-readable block appended to the log.
//
// JSON errors carry the raw response so prompt drift can be diagnosed:
//
//	JSON ERROR for Article 21A:
//	<detail>
//	Raw Content:
//	<raw>
//
// Everything else is a single line followed by a blank line.
func Format(entry common.ErrorEntry) string {
	subject := displayID(entry.RecordID)
	kind := entry.Kind
	if kind == "" {
		kind = common.ErrorKindGeneral
	}

	if kind == common.ErrorKindJSON {
		return fmt.Sprintf("%s for %s:\n%s\nRaw Content:\n%s\n\n", kind, subject, entry.Detail, entry.Raw)
	}
	return fmt.Sprintf("%s for %s: %s\n\n", kind, subject, entry.Detail)
}

// displayID turns "Article:21A" into "Article 21A".
func displayID(id string) string {
	kind, identifier, ok := util.SplitNamespacedID(id)
	if !ok {
		return id
	}
	return kind + " " + identifier
}

// FileLog appends entries to a text file, creating it on first use.
type FileLog struct {
	Path string

	mu sync.Mutex
}

func NewFileLog(path string) *FileLog {
	return &FileLog{Path: path}
}

func (l *FileLog) Append(ctx context.Context, entry common.ErrorEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open error log %s: %w", l.Path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(Format(entry)); err != nil {
		return fmt.Errorf("append error log %s: %w", l.Path, err)
	}
	return nil
}

// MemoryLog keeps entries in memory.
type MemoryLog struct {
	mu      sync.Mutex
	entries []common.ErrorEntry
}

func (l *MemoryLog) Append(ctx context.Context, entry common.ErrorEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

func (l *MemoryLog) Entries() []common.ErrorEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]common.ErrorEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// String renders all entries the way FileLog would write them.
func (l *MemoryLog) String() string {
	var b strings.Builder
	for _, e := range l.Entries() {
		b.WriteString(Format(e))
	}
	return b.String()
}
