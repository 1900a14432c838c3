package models

import "time"

// SyncOperation is one deferred remote write. Rows live only in the
// local store and are removed once the remote accepted the write.
type SyncOperation struct {
	ID         string              `gorm:"primaryKey;size:36" json:"id"`
	Operation  SyncOperationType   `gorm:"size:10;not null" json:"operation"`
	EntityName EntityName          `gorm:"size:40;not null" json:"entity_name"`
	LocalID    string              `gorm:"size:36;index;not null" json:"local_id"`
	RemoteID   string              `gorm:"size:36" json:"remote_id"`
	Payload    []byte              `gorm:"type:blob" json:"payload"`
	Status     SyncOperationStatus `gorm:"size:15;index;not null;default:pending" json:"status"`
	Attempts   int                 `gorm:"not null;default:0" json:"attempts"`
	Priority   int                 `gorm:"not null;default:0" json:"priority"`
	LastError  string              `gorm:"type:text" json:"last_error"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SyncOperation) TableName() string { return "sync_operations" }

// IDMapping records the remote id a temporary local id resolved to when
// its create operation synced. Later queued operations that still
// reference the temporary id are rewritten through this table before
// being applied.
type IDMapping struct {
	LocalID    string     `gorm:"primaryKey;size:36" json:"local_id"`
	RemoteID   string     `gorm:"size:36;not null" json:"remote_id"`
	EntityName EntityName `gorm:"size:40;not null" json:"entity_name"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (IDMapping) TableName() string { return "id_mappings" }
