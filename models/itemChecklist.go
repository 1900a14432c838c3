package models

import (
	"strings"
	"time"
)

// ItemChecklist is one question of a unit-type's checklist, together
// with the templates the cascade engine composes record texts from.
// Immutable during an inspection.
type ItemChecklist struct {
	ID            string `gorm:"primaryKey;size:36" json:"id"`
	TipoUnidadeID string `gorm:"size:36;index;not null" json:"tipo_unidade_id"`
	Ordem         int    `gorm:"not null" json:"ordem"`
	Pergunta      string `gorm:"type:text;not null" json:"pergunta"`

	// Per-answer constatação templates.
	TextoConstatacaoSim string `gorm:"type:text" json:"texto_constatacao_sim"`
	TextoConstatacaoNao string `gorm:"type:text" json:"texto_constatacao_nao"`

	// A NAO answer on this item opens a non-conformity when GeraNC is
	// set and TextoNC is non-empty.
	GeraNC            bool   `gorm:"not null;default:false" json:"gera_nc"`
	ArtigoPortaria    string `gorm:"size:200" json:"artigo_portaria"`
	TextoNC           string `gorm:"type:text" json:"texto_nc"`
	TextoDeterminacao string `gorm:"type:text" json:"texto_determinacao"`
	TextoRecomendacao string `gorm:"type:text" json:"texto_recomendacao"`
	PrazoDias         int    `gorm:"not null;default:30" json:"prazo_dias"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ItemChecklist) TableName() string { return "itens_checklist" }

// HasTextoNC reports whether the item carries a usable non-conformity
// template; a NAO answer without one never opens an NC.
func (i *ItemChecklist) HasTextoNC() bool {
	return strings.TrimSpace(i.TextoNC) != ""
}

func (i *ItemChecklist) HasTextoDeterminacao() bool {
	return strings.TrimSpace(i.TextoDeterminacao) != ""
}

func (i *ItemChecklist) HasTextoRecomendacao() bool {
	return strings.TrimSpace(i.TextoRecomendacao) != ""
}
