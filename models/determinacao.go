package models

import "time"

// Determinacao is a numbered corrective order owned by exactly one
// NaoConformidade. It exists only while its NC exists; deletions always
// remove the determination first.
type Determinacao struct {
	ID                   string             `gorm:"primaryKey;size:36" json:"id"`
	UnidadeFiscalizadaID string             `gorm:"size:36;index;not null" json:"unidade_fiscalizada_id"`
	NaoConformidadeID    string             `gorm:"size:36;index;not null" json:"nao_conformidade_id"`
	NumeroDeterminacao   string             `gorm:"size:20;not null" json:"numero_determinacao"`
	Descricao            string             `gorm:"type:text;not null" json:"descricao"`
	PrazoDias            int                `gorm:"not null;default:30" json:"prazo_dias"`
	DataLimite           string             `gorm:"size:10" json:"data_limite"`
	Status               StatusDeterminacao `gorm:"size:30;not null;default:pendente" json:"status"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	SyncStatus string `gorm:"size:20;index" json:"-"`
}

func (Determinacao) TableName() string { return "determinacoes" }
