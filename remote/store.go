// Package remote defines the entity-store contract the core writes
// through. The production implementation speaks JSON over HTTP; tests
// and the offline facade provide their own.
package remote

import (
	"context"
	"encoding/json"

	"bitbucket.org/agemsdev/fiscaliza_backend/models"
)

// Record is one entity document as it crosses the store boundary.
// Typed structs are used on either side; Encode/Decode round-trip
// through JSON at the edge.
type Record = map[string]any

// Store is the generic entity store contract: the same five operations
// whether the far side is the remote datastore or the offline facade.
type Store interface {
	Create(ctx context.Context, entity models.EntityName, data Record) (Record, error)
	Update(ctx context.Context, entity models.EntityName, id string, data Record) (Record, error)
	Delete(ctx context.Context, entity models.EntityName, id string) error
	// Filter returns records matching the field/value pairs, ordered by
	// sort ("field" ascending, "-field" descending), at most limit rows.
	Filter(ctx context.Context, entity models.EntityName, filter Record, sort string, limit int) ([]Record, error)
	BulkCreate(ctx context.Context, entity models.EntityName, data []Record) ([]Record, error)
}

func Encode(v any) (Record, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func Decode(rec Record, out any) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func DecodeSlice[T any](recs []Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		var v T
		if err := Decode(rec, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// RecordID extracts the "id" field of a record.
func RecordID(rec Record) string {
	if v, ok := rec["id"].(string); ok {
		return v
	}
	return ""
}
