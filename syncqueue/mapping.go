package syncqueue

import (
	"encoding/json"
	"strings"

	"bitbucket.org/agemsdev/fiscaliza_backend/models"
	"bitbucket.org/agemsdev/fiscaliza_backend/remote"
	"gorm.io/gorm"
)

// recordMapping persists the temp-id → remote-id pair a successful
// create produced.
func recordMapping(tx *gorm.DB, entity models.EntityName, localID, remoteID string) error {
	m := models.IDMapping{LocalID: localID, RemoteID: remoteID, EntityName: entity}
	return tx.Save(&m).Error
}

// resolveID looks a possibly-temporary id up in the mapping table and
// returns the remote id, or the input unchanged when no mapping exists
// (either the id is already remote, or its create has not synced yet).
func resolveID(db *gorm.DB, id string) (string, error) {
	if id == "" {
		return "", nil
	}
	var m models.IDMapping
	err := db.Where("local_id = ?", id).First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return id, nil
		}
		return "", err
	}
	return m.RemoteID, nil
}

// remapPayload rewrites every id-bearing field of a queued payload
// ("id" itself and every "*_id" foreign key) through the mapping table,
// so a child queued against its parent's temporary id goes out with the
// parent's remote id.
func remapPayload(db *gorm.DB, payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return payload, nil
	}
	var rec remote.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, err
	}
	changed := false
	for key, val := range rec {
		if key != "id" && !strings.HasSuffix(key, "_id") {
			continue
		}
		s, ok := val.(string)
		if !ok || s == "" {
			continue
		}
		mapped, err := resolveID(db, s)
		if err != nil {
			return nil, err
		}
		if mapped != s {
			rec[key] = mapped
			changed = true
		}
	}
	if !changed {
		return payload, nil
	}
	return json.Marshal(rec)
}
