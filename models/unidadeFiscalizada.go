package models

import "time"

// UnidadeFiscalizada is one physical facility inspected within a
// Fiscalizacao. CreatedAt orders sibling units and fixes each unit's
// position in the continuous C/NC/D/R numbering of the inspection.
//
// TotalConstatacoes and TotalNCs are written exactly once, at finalize,
// and exist so later units can compute their numbering offset without
// re-reading this unit's answers. They are a cached read optimization,
// never a source of truth.
type UnidadeFiscalizada struct {
	ID             string        `gorm:"primaryKey;size:36" json:"id"`
	FiscalizacaoID string        `gorm:"size:36;index;not null" json:"fiscalizacao_id"`
	TipoUnidadeID  string        `gorm:"size:36;index;not null" json:"tipo_unidade_id"`
	Nome           string        `gorm:"size:200" json:"nome"`
	Status         StatusUnidade `gorm:"size:30;not null;default:em_andamento" json:"status"`

	TotalConstatacoes int `gorm:"not null;default:0" json:"total_constatacoes"`
	TotalNCs          int `gorm:"column:total_ncs;not null;default:0" json:"total_ncs"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	SyncStatus string `gorm:"size:20;index" json:"-"`
}

func (UnidadeFiscalizada) TableName() string { return "unidades_fiscalizadas" }

func (u *UnidadeFiscalizada) Finalizada() bool {
	return u != nil && u.Status == UnidadeFinalizada
}
