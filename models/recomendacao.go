package models

import "time"

// Recomendacao is a numbered non-binding suggestion. Unlike a
// Determinacao it may exist without any NC lineage.
type Recomendacao struct {
	ID                   string             `gorm:"primaryKey;size:36" json:"id"`
	UnidadeFiscalizadaID string             `gorm:"size:36;index;not null" json:"unidade_fiscalizada_id"`
	NumeroRecomendacao   string             `gorm:"size:20;not null" json:"numero_recomendacao"`
	Descricao            string             `gorm:"type:text;not null" json:"descricao"`
	Origem               OrigemRecomendacao `gorm:"size:20;not null" json:"origem"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	SyncStatus string `gorm:"size:20;index" json:"-"`
}

func (Recomendacao) TableName() string { return "recomendacoes" }
