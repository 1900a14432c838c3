// Package syncqueue persists deferred remote writes in the local store
// and drains them against the remote when connectivity allows.
package syncqueue

import (
	"encoding/json"
	"fmt"

	"bitbucket.org/agemsdev/fiscaliza_backend/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Enqueue appends one operation inside the caller's transaction, so the
// local record write and its queue entry commit or fail together.
// Creates carry the entity's priority (parents drain first); updates
// and deletes ride at priority zero behind all pending creates.
func Enqueue(tx *gorm.DB, op models.SyncOperationType, entity models.EntityName, localID string, payload any) error {
	if !op.Valid() {
		return fmt.Errorf("unknown sync operation %q", string(op))
	}
	info, err := entity.Info()
	if err != nil {
		return err
	}

	var raw []byte
	if payload != nil {
		raw, err = json.Marshal(payload)
		if err != nil {
			return err
		}
	}

	priority := 0
	if op == models.SyncOpCreate {
		priority = info.CreatePriority
	}

	row := models.SyncOperation{
		ID:         uuid.NewString(),
		Operation:  op,
		EntityName: entity,
		LocalID:    localID,
		Payload:    raw,
		Status:     models.SyncStatusPending,
		Priority:   priority,
	}
	return tx.Create(&row).Error
}

// PendingCount and FailedCount feed the sync status badge.
func PendingCount(db *gorm.DB) (int64, error) {
	var n int64
	err := db.Model(&models.SyncOperation{}).
		Where("status IN ?", []models.SyncOperationStatus{models.SyncStatusPending, models.SyncStatusProcessing}).
		Count(&n).Error
	return n, err
}

func FailedCount(db *gorm.DB) (int64, error) {
	var n int64
	err := db.Model(&models.SyncOperation{}).
		Where("status = ?", models.SyncStatusFailed).
		Count(&n).Error
	return n, err
}

// RetryFailed requeues every failed operation, keeping its attempt
// count so the history stays honest.
func RetryFailed(db *gorm.DB) (int64, error) {
	res := db.Model(&models.SyncOperation{}).
		Where("status = ?", models.SyncStatusFailed).
		Updates(map[string]any{
			"status":     models.SyncStatusPending,
			"last_error": "",
		})
	return res.RowsAffected, res.Error
}

// Clear discards every queued operation, pending and failed alike.
// Destructive: anything not yet synced is gone for good. Only the
// deliberate queue-reset path calls this.
func Clear(db *gorm.DB) (int64, error) {
	res := db.Where("1 = 1").Delete(&models.SyncOperation{})
	return res.RowsAffected, res.Error
}

// nextBatch returns pending operations in drain order: priority
// descending, then FIFO. FIFO within a priority is what keeps an NC's
// create ahead of its determination's create when both share a tier.
func nextBatch(db *gorm.DB, limit int) ([]models.SyncOperation, error) {
	var ops []models.SyncOperation
	q := db.Where("status = ?", models.SyncStatusPending).
		Order("priority DESC, created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return ops, q.Find(&ops).Error
}
