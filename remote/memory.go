package remote

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"bitbucket.org/agemsdev/fiscaliza_backend/models"
	"bitbucket.org/agemsdev/fiscaliza_backend/utils"
	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests. It assigns its own ids
// on create (like the real remote does) and keeps insertion order so
// sorts on created_date are stable.
type MemoryStore struct {
	mu   sync.Mutex
	data map[models.EntityName][]Record
	seq  int

	// FailOn, when set, is consulted before every write; a non-nil
	// error rejects the operation. Used to simulate remote failures.
	FailOn func(op string, entity models.EntityName) error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[models.EntityName][]Record{}}
}

// Seed inserts a record as-is (keeping a caller-chosen id).
func (s *MemoryStore) Seed(entity models.EntityName, recs ...Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		cp := cloneRecord(rec)
		if RecordID(cp) == "" {
			cp["id"] = uuid.NewString()
		}
		s.seq++
		cp["_seq"] = s.seq
		s.data[entity] = append(s.data[entity], cp)
	}
}

// SeedValue marshals a struct and seeds it.
func (s *MemoryStore) SeedValue(entity models.EntityName, v any) Record {
	rec, err := Encode(v)
	if err != nil {
		panic(err)
	}
	s.Seed(entity, rec)
	return rec
}

func (s *MemoryStore) Create(ctx context.Context, entity models.EntityName, data Record) (Record, error) {
	if err := s.failCheck("create", entity); err != nil {
		return nil, &utils.RemoteWriteError{Entity: string(entity), Op: "create", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := cloneRecord(data)
	rec["id"] = uuid.NewString()
	s.seq++
	rec["_seq"] = s.seq
	s.data[entity] = append(s.data[entity], rec)
	return cloneRecord(rec), nil
}

func (s *MemoryStore) Update(ctx context.Context, entity models.EntityName, id string, data Record) (Record, error) {
	if err := s.failCheck("update", entity); err != nil {
		return nil, &utils.RemoteWriteError{Entity: string(entity), Op: "update", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, rec := range s.data[entity] {
		if RecordID(rec) == id {
			merged := cloneRecord(rec)
			for k, v := range data {
				if k == "id" {
					continue
				}
				merged[k] = v
			}
			s.data[entity][i] = merged
			return cloneRecord(merged), nil
		}
	}
	return nil, utils.ErrorRecordNotFound
}

func (s *MemoryStore) Delete(ctx context.Context, entity models.EntityName, id string) error {
	if err := s.failCheck("delete", entity); err != nil {
		return &utils.RemoteWriteError{Entity: string(entity), Op: "delete", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.data[entity]
	for i, rec := range recs {
		if RecordID(rec) == id {
			s.data[entity] = append(recs[:i:i], recs[i+1:]...)
			return nil
		}
	}
	return utils.ErrorRecordNotFound
}

func (s *MemoryStore) Filter(ctx context.Context, entity models.EntityName, filter Record, sortKey string, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, rec := range s.data[entity] {
		if matches(rec, filter) {
			out = append(out, cloneRecord(rec))
		}
	}
	sortRecords(out, sortKey)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for _, rec := range out {
		delete(rec, "_seq")
	}
	return out, nil
}

func (s *MemoryStore) BulkCreate(ctx context.Context, entity models.EntityName, data []Record) ([]Record, error) {
	if err := s.failCheck("bulkCreate", entity); err != nil {
		return nil, &utils.RemoteWriteError{Entity: string(entity), Op: "bulkCreate", Err: err}
	}
	out := make([]Record, 0, len(data))
	for _, rec := range data {
		created, err := s.Create(ctx, entity, rec)
		if err != nil {
			return out, err
		}
		out = append(out, created)
	}
	return out, nil
}

// Count is a test helper.
func (s *MemoryStore) Count(entity models.EntityName) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data[entity])
}

func (s *MemoryStore) failCheck(op string, entity models.EntityName) error {
	if s.FailOn == nil {
		return nil
	}
	return s.FailOn(op, entity)
}

func cloneRecord(rec Record) Record {
	cp := make(Record, len(rec))
	for k, v := range rec {
		cp[k] = v
	}
	return cp
}

func matches(rec Record, filter Record) bool {
	for k, want := range filter {
		if fmt.Sprint(rec[k]) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func sortRecords(recs []Record, key string) {
	if key == "" {
		key = "created_date"
	}
	desc := strings.HasPrefix(key, "-")
	key = strings.TrimPrefix(key, "-")
	less := func(i, j int) bool {
		// created_date ordering falls back to insertion order, which
		// is what the remote guarantees for same-timestamp rows.
		if key == "created_date" || key == "created_at" {
			return toInt(recs[i]["_seq"]) < toInt(recs[j]["_seq"])
		}
		a, b := fmt.Sprint(recs[i][key]), fmt.Sprint(recs[j][key])
		if a == b {
			return toInt(recs[i]["_seq"]) < toInt(recs[j]["_seq"])
		}
		ai, aerr := parseNum(a)
		bi, berr := parseNum(b)
		if aerr == nil && berr == nil {
			return ai < bi
		}
		return a < b
	}
	if desc {
		sort.SliceStable(recs, func(i, j int) bool { return less(j, i) })
	} else {
		sort.SliceStable(recs, less)
	}
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

func parseNum(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(s, "%g", &f)
	return f, err
}
