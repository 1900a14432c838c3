package models

import "time"

// Fiscalizacao is one inspection campaign; units hang off it. Once its
// status is finalizada every mutation underneath is locked unless the
// caller is in explicit edit mode.
type Fiscalizacao struct {
	ID                 string             `gorm:"primaryKey;size:36" json:"id"`
	MunicipioID        string             `gorm:"size:36;index" json:"municipio_id"`
	PrestadorServicoID string             `gorm:"size:36;index" json:"prestador_servico_id"`
	FiscalEmail        string             `gorm:"size:200" json:"fiscal_email"`
	Status             StatusFiscalizacao `gorm:"size:30;not null;default:em_andamento" json:"status"`
	CreatedAt          time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"autoUpdateTime" json:"updated_at"`

	SyncStatus string `gorm:"size:20;index" json:"-"`
}

func (Fiscalizacao) TableName() string { return "fiscalizacoes" }

func (f *Fiscalizacao) Finalizada() bool {
	return f != nil && f.Status == FiscalizacaoFinalizada
}
