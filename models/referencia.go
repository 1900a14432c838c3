package models

import "time"

// Reference entities are owned by the back office and read-only to the
// core: the facade mirrors them into the local cache so the tablet can
// work offline. CRUD for these lives outside this repository.

type Municipio struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Nome      string    `gorm:"size:200;not null" json:"nome"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type PrestadorServico struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Nome      string    `gorm:"size:200;not null" json:"nome"`
	Ativo     bool      `gorm:"not null;default:true" json:"ativo"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type TipoUnidade struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Nome      string    `gorm:"size:200;not null" json:"nome"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Municipio) TableName() string        { return "municipios" }
func (PrestadorServico) TableName() string { return "prestadores_servico" }
func (TipoUnidade) TableName() string      { return "tipos_unidade" }
