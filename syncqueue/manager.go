package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"bitbucket.org/agemsdev/fiscaliza_backend/config"
	"bitbucket.org/agemsdev/fiscaliza_backend/connectivity"
	"bitbucket.org/agemsdev/fiscaliza_backend/models"
	"bitbucket.org/agemsdev/fiscaliza_backend/remote"
	"bitbucket.org/agemsdev/fiscaliza_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const moduleName = "syncqueue"

const drainBatchSize = 50

// Manager drains the local operation queue against the remote store: a
// fixed-interval tick while online, plus an immediate drain on every
// offline→online transition. Operations go out one at a time, priority
// descending then FIFO; a failure marks that operation and moves on.
type Manager struct {
	Local    *gorm.DB
	Remote   remote.Store
	Conn     *connectivity.Monitor
	Logger   *logrus.Logger
	Interval time.Duration

	mu sync.Mutex
}

func NewManager(local *gorm.DB, rem remote.Store, conn *connectivity.Monitor, logger *logrus.Logger, interval time.Duration) *Manager {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Manager{Local: local, Remote: rem, Conn: conn, Logger: logger, Interval: interval}
}

// SyncStatus is the queue summary the UI badge renders.
type SyncStatus struct {
	Online  bool  `json:"online"`
	Pending int64 `json:"pending"`
	Failed  int64 `json:"failed"`
}

func (m *Manager) Status() (SyncStatus, error) {
	pending, err := PendingCount(m.Local)
	if err != nil {
		return SyncStatus{}, err
	}
	failed, err := FailedCount(m.Local)
	if err != nil {
		return SyncStatus{}, err
	}
	return SyncStatus{Online: m.Conn.Online(), Pending: pending, Failed: failed}, nil
}

// Run blocks until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.Conn.Online() {
				m.drainLogged(ctx)
			}
		case online := <-m.Conn.Changes():
			if online {
				m.drainLogged(ctx)
			}
		}
	}
}

func (m *Manager) drainLogged(ctx context.Context) {
	if _, err := m.Drain(ctx); err != nil {
		config.LogError(m.Logger, moduleName, "Run", "drenar fila", nil, err)
	}
}

// Drain processes pending operations until the queue is empty or every
// remaining operation has failed this pass. Returns how many synced.
// Serialized: concurrent calls queue up behind the mutex rather than
// interleave, to keep parent-before-child ordering intact.
func (m *Manager) Drain(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	synced := 0
	for {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		batch, err := nextBatch(m.Local, drainBatchSize)
		if err != nil {
			return synced, err
		}
		if len(batch) == 0 {
			break
		}
		progressed := false
		for i := range batch {
			op := &batch[i]
			if err := m.processOne(ctx, op); err != nil {
				m.markFailed(op, err)
				continue
			}
			synced++
			progressed = true
		}
		// Every operation of the pass failed: stop instead of spinning
		// on the same rows.
		if !progressed {
			break
		}
	}

	if pending, err := PendingCount(m.Local); err == nil {
		pendingGauge.Set(float64(pending))
	}
	return synced, nil
}

func (m *Manager) processOne(ctx context.Context, op *models.SyncOperation) error {
	if err := m.Local.Model(op).Updates(map[string]any{
		"status":   models.SyncStatusProcessing,
		"attempts": op.Attempts + 1,
	}).Error; err != nil {
		return err
	}
	op.Attempts++

	payload, err := remapPayload(m.Local, op.Payload)
	if err != nil {
		return err
	}

	switch op.Operation {
	case models.SyncOpCreate:
		return m.applyCreate(ctx, op, payload)
	case models.SyncOpUpdate:
		return m.applyUpdate(ctx, op, payload)
	case models.SyncOpDelete:
		return m.applyDelete(ctx, op)
	}
	return errors.New("operação de sincronização desconhecida: " + string(op.Operation))
}

// applyCreate sends the payload and, on success, swaps the local row
// from its temporary id to the remote-assigned one, records the id
// mapping and drops the queue row — all in one local transaction.
func (m *Manager) applyCreate(ctx context.Context, op *models.SyncOperation, payload []byte) error {
	var rec remote.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return err
	}
	// The remote assigns its own id; the temporary one never leaves the
	// device.
	delete(rec, "id")

	created, err := m.Remote.Create(ctx, op.EntityName, rec)
	if err != nil {
		return err
	}
	remoteID := remote.RecordID(created)

	info, err := op.EntityName.Info()
	if err != nil {
		return err
	}

	err = m.Local.Transaction(func(tx *gorm.DB) error {
		if remoteID != "" && remoteID != op.LocalID {
			if err := recordMapping(tx, op.EntityName, op.LocalID, remoteID); err != nil {
				return err
			}
			// Re-key the cached row under the remote id.
			if err := tx.Table(info.Table).Where("id = ?", op.LocalID).
				Update("id", remoteID).Error; err != nil {
				return err
			}
			// Children written in the same offline session reference the
			// temporary id; their foreign-key columns follow the re-key,
			// or later local lookups against the new id find nothing.
			for _, fk := range info.ReferencedBy {
				refInfo, err := fk.Entity.Info()
				if err != nil {
					return err
				}
				if err := tx.Table(refInfo.Table).Where(fk.Column+" = ?", op.LocalID).
					Update(fk.Column, remoteID).Error; err != nil {
					return err
				}
			}
		}
		target := remoteID
		if target == "" {
			target = op.LocalID
		}
		if err := tx.Table(info.Table).Where("id = ?", target).
			Update("sync_status", string(models.SyncStatusSynced)).Error; err != nil {
			return err
		}
		return tx.Delete(&models.SyncOperation{}, "id = ?", op.ID).Error
	})
	if err != nil {
		return err
	}
	opsSyncedTotal.WithLabelValues(string(op.EntityName), string(op.Operation)).Inc()
	return nil
}

func (m *Manager) applyUpdate(ctx context.Context, op *models.SyncOperation, payload []byte) error {
	var rec remote.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return err
	}
	targetID, err := m.targetID(op)
	if err != nil {
		return err
	}
	if _, err := m.Remote.Update(ctx, op.EntityName, targetID, rec); err != nil {
		return err
	}
	info, err := op.EntityName.Info()
	if err != nil {
		return err
	}
	err = m.Local.Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(info.Table).Where("id = ?", targetID).
			Update("sync_status", string(models.SyncStatusSynced)).Error; err != nil {
			return err
		}
		return tx.Delete(&models.SyncOperation{}, "id = ?", op.ID).Error
	})
	if err != nil {
		return err
	}
	opsSyncedTotal.WithLabelValues(string(op.EntityName), string(op.Operation)).Inc()
	return nil
}

func (m *Manager) applyDelete(ctx context.Context, op *models.SyncOperation) error {
	targetID, err := m.targetID(op)
	if err != nil {
		return err
	}
	err = m.Remote.Delete(ctx, op.EntityName, targetID)
	// A row the remote never saw, or that someone else already removed,
	// counts as deleted.
	if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
		return err
	}
	if err := m.Local.Delete(&models.SyncOperation{}, "id = ?", op.ID).Error; err != nil {
		return err
	}
	opsSyncedTotal.WithLabelValues(string(op.EntityName), string(op.Operation)).Inc()
	return nil
}

func (m *Manager) targetID(op *models.SyncOperation) (string, error) {
	if op.RemoteID != "" {
		return op.RemoteID, nil
	}
	id, err := resolveID(m.Local, op.LocalID)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (m *Manager) markFailed(op *models.SyncOperation, cause error) {
	opsFailedTotal.WithLabelValues(string(op.EntityName), string(op.Operation)).Inc()
	config.LogError(m.Logger, moduleName, "Drain", "operação falhou", map[string]any{
		"operation": op.Operation,
		"entity":    op.EntityName,
		"local_id":  op.LocalID,
		"attempts":  op.Attempts,
	}, cause)
	if err := m.Local.Model(op).Updates(map[string]any{
		"status":     models.SyncStatusFailed,
		"last_error": cause.Error(),
	}).Error; err != nil {
		config.LogError(m.Logger, moduleName, "Drain", "registrar falha", nil, err)
	}
}
