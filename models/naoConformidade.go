package models

import "time"

// NaoConformidade is a numbered non-conformity. Exactly one of
// RespostaChecklistID and ConstatacaoManualID is set: the answer or the
// manual finding that spawned it.
type NaoConformidade struct {
	ID                   string  `gorm:"primaryKey;size:36" json:"id"`
	UnidadeFiscalizadaID string  `gorm:"size:36;index;not null" json:"unidade_fiscalizada_id"`
	RespostaChecklistID  *string `gorm:"size:36;index" json:"resposta_checklist_id"`
	ConstatacaoManualID  *string `gorm:"size:36;index" json:"constatacao_manual_id"`
	NumeroNC             string  `gorm:"column:numero_nc;size:20;not null" json:"numero_nc"`
	ArtigoPortaria       string  `gorm:"size:200" json:"artigo_portaria"`
	Descricao            string  `gorm:"type:text;not null" json:"descricao"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	SyncStatus string `gorm:"size:20;index" json:"-"`
}

func (NaoConformidade) TableName() string { return "nao_conformidades" }
