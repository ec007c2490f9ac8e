// Package loader reads the input record collection: a JSON array of objects
// whose identifier, title and body live under configurable keys.
package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/lexgraph/internal/util"
	"github.com/OFFIS-RIT/lexgraph/pkg/common"
	"github.com/OFFIS-RIT/lexgraph/pkg/logger"
)

// Source yields the raw bytes of a record collection. Implementations live
// in the io and s3 subpackages.
type Source interface {
	Read(ctx context.Context) ([]byte, error)
	// Name identifies the source in logs.
	Name() string
}

// FieldMap names the object keys holding each record field.
type FieldMap struct {
	ID    string
	Title string
	Body  string
}

func DefaultFieldMap() FieldMap {
	return FieldMap{ID: "article", Title: "title", Body: "description"}
}

func (f FieldMap) withDefaults() FieldMap {
	d := DefaultFieldMap()
	if f.ID == "" {
		f.ID = d.ID
	}
	if f.Title == "" {
		f.Title = d.Title
	}
	if f.Body == "" {
		f.Body = d.Body
	}
	return f
}

// LoadRecords reads src and maps it to records. A limit above zero keeps
// only the first limit records. Any read or decode error is returned as is;
// callers treat it as fatal.
func LoadRecords(ctx context.Context, src Source, fields FieldMap, limit int) ([]common.Record, error) {
	data, err := src.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src.Name(), err)
	}

	records, err := ParseRecords(data, fields, limit)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", src.Name(), err)
	}

	logger.Info("[Loader] records loaded", "source", src.Name(), "count", len(records))
	return records, nil
}

// ParseRecords decodes a JSON array of objects into records.
func ParseRecords(data []byte, fields FieldMap, limit int) ([]common.Record, error) {
	fields = fields.withDefaults()

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode record collection: %w", err)
	}

	if limit > 0 && limit < len(raw) {
		raw = raw[:limit]
	}

	records := make([]common.Record, 0, len(raw))
	for i, obj := range raw {
		id, err := scalarString(obj[fields.ID])
		if err != nil {
			return nil, fmt.Errorf("record %d: field %q: %w", i, fields.ID, err)
		}
		title, err := scalarString(obj[fields.Title])
		if err != nil {
			return nil, fmt.Errorf("record %d: field %q: %w", i, fields.Title, err)
		}
		body, err := scalarString(obj[fields.Body])
		if err != nil {
			return nil, fmt.Errorf("record %d: field %q: %w", i, fields.Body, err)
		}

		rec := common.Record{
			Identifier: strings.TrimSpace(id),
			Title:      title,
			Body:       body,
		}
		if err := util.ValidateStruct(rec); err != nil {
			return nil, fmt.Errorf("record %d: missing identifier field %q: %w", i, fields.ID, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func scalarString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		return fmt.Sprint(t), nil
	default:
		return "", fmt.Errorf("unsupported value of type %T", v)
	}
}
