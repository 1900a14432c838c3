package models

import "time"

// ConstatacaoManual is a free-form finding the inspector records
// outside the checklist. Ordem is a creation-time monotonic value used
// only for stable ordering; the sequential C number is assigned by the
// numbering layer.
type ConstatacaoManual struct {
	ID                   string `gorm:"primaryKey;size:36" json:"id"`
	UnidadeFiscalizadaID string `gorm:"size:36;index;not null" json:"unidade_fiscalizada_id"`
	Descricao            string `gorm:"type:text;not null" json:"descricao"`
	GeraNC               bool   `gorm:"not null;default:false" json:"gera_nc"`
	ArtigoPortaria       string `gorm:"size:200" json:"artigo_portaria"`
	TextoDeterminacao    string `gorm:"type:text" json:"texto_determinacao"`
	TextoRecomendacao    string `gorm:"type:text" json:"texto_recomendacao"`
	Ordem                int64  `gorm:"not null" json:"ordem"`

	NumeroConstatacao *string `gorm:"size:20" json:"numero_constatacao"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	SyncStatus string `gorm:"size:20;index" json:"-"`
}

func (ConstatacaoManual) TableName() string { return "constatacoes_manuais" }
