// Package datastore is the offline-first entity store: reference data
// is read online-first with a local cache fallback, transactional data
// lives local-first with every write paired to a sync-queue entry.
package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"bitbucket.org/agemsdev/fiscaliza_backend/config"
	"bitbucket.org/agemsdev/fiscaliza_backend/connectivity"
	"bitbucket.org/agemsdev/fiscaliza_backend/models"
	"bitbucket.org/agemsdev/fiscaliza_backend/remote"
	"bitbucket.org/agemsdev/fiscaliza_backend/syncqueue"
	"bitbucket.org/agemsdev/fiscaliza_backend/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const moduleName = "datastore"

// Facade implements remote.Store over the local sqlite cache, so the
// cascade layer runs identically online and offline. Transactional
// writes land locally under a temporary uuid and are queued; the sync
// manager later replays them and re-keys the rows.
type Facade struct {
	DB     *gorm.DB
	Remote remote.Store
	Conn   *connectivity.Monitor
	Logger *logrus.Logger
}

func NewFacade(db *gorm.DB, rem remote.Store, conn *connectivity.Monitor, logger *logrus.Logger) *Facade {
	return &Facade{DB: db, Remote: rem, Conn: conn, Logger: logger}
}

var columnPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func (f *Facade) Create(ctx context.Context, entity models.EntityName, data remote.Record) (remote.Record, error) {
	info, err := entity.Info()
	if err != nil {
		return nil, err
	}
	if info.Reference {
		return nil, fmt.Errorf("entidade de referência %s é somente leitura", entity)
	}

	rec := cloneRecord(data)
	if remote.RecordID(rec) == "" {
		rec["id"] = uuid.NewString()
	}
	model := info.New()
	if err := remote.Decode(rec, model); err != nil {
		return nil, err
	}

	err = f.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		if err := tx.Table(info.Table).Where("id = ?", rec["id"]).
			Update("sync_status", string(models.SyncStatusPending)).Error; err != nil {
			return err
		}
		return syncqueue.Enqueue(tx, models.SyncOpCreate, entity, remote.RecordID(rec), rec)
	})
	if err != nil {
		config.LogError(f.Logger, moduleName, "Create", string(entity), rec, err)
		return nil, err
	}
	return rec, nil
}

func (f *Facade) Update(ctx context.Context, entity models.EntityName, id string, data remote.Record) (remote.Record, error) {
	info, err := entity.Info()
	if err != nil {
		return nil, err
	}
	if info.Reference {
		return nil, fmt.Errorf("entidade de referência %s é somente leitura", entity)
	}

	// id never changes through an update, and the timestamps belong to
	// the store: callers re-encoding a whole struct carry zero values
	// that would flatten created_at here and on the remote.
	updates := map[string]any{}
	for k, v := range data {
		if serverManagedColumn(k) || !columnPattern.MatchString(k) {
			continue
		}
		updates[k] = v
	}
	updates["sync_status"] = string(models.SyncStatusPending)

	err = f.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Table(info.Table).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ErrorRecordNotFound
		}
		payload := remote.Record{}
		for k, v := range data {
			if serverManagedColumn(k) {
				continue
			}
			payload[k] = v
		}
		payload["id"] = id
		return syncqueue.Enqueue(tx, models.SyncOpUpdate, entity, id, payload)
	})
	if err != nil {
		return nil, err
	}

	recs, err := f.localFilter(entity, remote.Record{"id": id}, "", 1)
	if err != nil || len(recs) == 0 {
		return cloneRecord(data), nil
	}
	return recs[0], nil
}

func (f *Facade) Delete(ctx context.Context, entity models.EntityName, id string) error {
	info, err := entity.Info()
	if err != nil {
		return err
	}
	if info.Reference {
		return fmt.Errorf("entidade de referência %s é somente leitura", entity)
	}
	return f.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(info.Table).Where("id = ?", id).Delete(info.New()).Error; err != nil {
			return err
		}
		// A row that never synced has nothing to delete remotely; its
		// pending create is withdrawn instead of queueing a delete.
		var pendingCreate int64
		if err := tx.Model(&models.SyncOperation{}).
			Where("local_id = ? AND operation = ? AND status IN ?",
				id, models.SyncOpCreate,
				[]models.SyncOperationStatus{models.SyncStatusPending, models.SyncStatusFailed}).
			Count(&pendingCreate).Error; err != nil {
			return err
		}
		if pendingCreate > 0 {
			return tx.Where("local_id = ?", id).Delete(&models.SyncOperation{}).Error
		}
		return syncqueue.Enqueue(tx, models.SyncOpDelete, entity, id, nil)
	})
}

// Filter serves reference entities online-first (refreshing the cache
// on every successful remote read) and transactional entities straight
// from the local store.
func (f *Facade) Filter(ctx context.Context, entity models.EntityName, filter remote.Record, sort string, limit int) ([]remote.Record, error) {
	info, err := entity.Info()
	if err != nil {
		return nil, err
	}
	if !info.Reference {
		return f.localFilter(entity, filter, sort, limit)
	}

	if f.Conn.Online() {
		recs, err := f.Remote.Filter(ctx, entity, filter, sort, limit)
		if err == nil {
			if cacheErr := f.replaceCache(entity, filter, recs); cacheErr != nil {
				config.LogError(f.Logger, moduleName, "Filter", "atualizar cache de "+string(entity), nil, cacheErr)
			}
			return recs, nil
		}
		config.LogError(f.Logger, moduleName, "Filter", "remoto indisponível, usando cache de "+string(entity), filter, err)
	}
	return f.localFilter(entity, filter, sort, limit)
}

// BulkCreate is local rows plus one queued create per record; the real
// bulk round-trip only happens when the queue drains online. Callers
// get their temporary ids back immediately.
func (f *Facade) BulkCreate(ctx context.Context, entity models.EntityName, data []remote.Record) ([]remote.Record, error) {
	info, err := entity.Info()
	if err != nil {
		return nil, err
	}
	if info.Reference {
		return nil, fmt.Errorf("entidade de referência %s é somente leitura", entity)
	}

	out := make([]remote.Record, 0, len(data))
	err = f.DB.Transaction(func(tx *gorm.DB) error {
		for _, item := range data {
			rec := cloneRecord(item)
			if remote.RecordID(rec) == "" {
				rec["id"] = uuid.NewString()
			}
			model := info.New()
			if err := remote.Decode(rec, model); err != nil {
				return err
			}
			if err := tx.Create(model).Error; err != nil {
				return err
			}
			if err := tx.Table(info.Table).Where("id = ?", rec["id"]).
				Update("sync_status", string(models.SyncStatusPending)).Error; err != nil {
				return err
			}
			if err := syncqueue.Enqueue(tx, models.SyncOpCreate, entity, remote.RecordID(rec), rec); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DownloadResult is the per-entity outcome of a prepare-offline run.
type DownloadResult struct {
	Entity models.EntityName `json:"entity"`
	Rows   int               `json:"rows"`
	Err    string            `json:"error,omitempty"`
}

// DownloadAllReferenceData refreshes the whole reference cache ahead of
// field work. Requires connectivity; there is no local-only fallback
// for a forced download.
func (f *Facade) DownloadAllReferenceData(ctx context.Context) ([]DownloadResult, error) {
	if !f.Conn.Online() {
		return nil, utils.ErrOffline
	}
	results := make([]DownloadResult, 0, len(models.ReferenceEntities()))
	for _, entity := range models.ReferenceEntities() {
		recs, err := f.Remote.Filter(ctx, entity, remote.Record{}, "", 0)
		if err != nil {
			config.LogError(f.Logger, moduleName, "DownloadAllReferenceData", string(entity), nil, err)
			results = append(results, DownloadResult{Entity: entity, Err: err.Error()})
			continue
		}
		if err := f.replaceCache(entity, remote.Record{}, recs); err != nil {
			results = append(results, DownloadResult{Entity: entity, Err: err.Error()})
			continue
		}
		results = append(results, DownloadResult{Entity: entity, Rows: len(recs)})
	}
	return results, nil
}

// ClearReferenceCache drops every cached reference row. Transactional
// data and the queue are untouched.
func (f *Facade) ClearReferenceCache() error {
	return f.DB.Transaction(func(tx *gorm.DB) error {
		for _, entity := range models.ReferenceEntities() {
			info, err := entity.Info()
			if err != nil {
				return err
			}
			if err := tx.Table(info.Table).Where("1 = 1").Delete(info.New()).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// replaceCache swaps the cached rows matching the filter for the fresh
// remote result set.
func (f *Facade) replaceCache(entity models.EntityName, filter remote.Record, recs []remote.Record) error {
	info, err := entity.Info()
	if err != nil {
		return err
	}
	return f.DB.Transaction(func(tx *gorm.DB) error {
		q := tx.Table(info.Table)
		for k, v := range filter {
			if !columnPattern.MatchString(k) {
				return fmt.Errorf("filtro inválido: %q", k)
			}
			q = q.Where(fmt.Sprintf("%s = ?", k), v)
		}
		if len(filter) == 0 {
			q = q.Where("1 = 1")
		}
		if err := q.Delete(info.New()).Error; err != nil {
			return err
		}
		for _, rec := range recs {
			model := info.New()
			if err := remote.Decode(rec, model); err != nil {
				return err
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (f *Facade) localFilter(entity models.EntityName, filter remote.Record, sort string, limit int) ([]remote.Record, error) {
	info, err := entity.Info()
	if err != nil {
		return nil, err
	}
	q := f.DB.Table(info.Table)
	for k, v := range filter {
		if !columnPattern.MatchString(k) {
			return nil, fmt.Errorf("filtro inválido: %q", k)
		}
		q = q.Where(fmt.Sprintf("%s = ?", k), v)
	}
	q = q.Order(orderClause(sort))
	if limit > 0 {
		q = q.Limit(limit)
	}

	slicePtr := info.NewSlice()
	if err := q.Find(slicePtr).Error; err != nil {
		return nil, err
	}
	b, err := json.Marshal(slicePtr)
	if err != nil {
		return nil, err
	}
	var recs []remote.Record
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// orderClause maps the store's sort key convention ("field" ascending,
// "-field" descending) to SQL, defaulting to insertion order.
func orderClause(sort string) string {
	key := strings.TrimSpace(sort)
	desc := strings.HasPrefix(key, "-")
	key = strings.TrimPrefix(key, "-")
	if key == "" || key == "created_date" {
		key = "created_at"
	}
	if !columnPattern.MatchString(key) {
		key = "created_at"
	}
	if desc {
		return key + " DESC"
	}
	return key + " ASC"
}

func serverManagedColumn(k string) bool {
	return k == "id" || k == "created_at" || k == "updated_at"
}

func cloneRecord(rec remote.Record) remote.Record {
	cp := make(remote.Record, len(rec))
	for k, v := range rec {
		cp[k] = v
	}
	return cp
}
