package models

import (
	"strings"
	"time"
)

// RespostaChecklist is the inspector's answer to one checklist item in
// one unit. One answer per (unit, item); re-answering updates in place.
//
// Pergunta holds the constatação text snapshot composed at answer time,
// and GeraNC copies the item's flag at answer time -- neither is
// re-derived later, so edits to the checklist never rewrite history.
type RespostaChecklist struct {
	ID                   string        `gorm:"primaryKey;size:36" json:"id"`
	UnidadeFiscalizadaID string        `gorm:"size:36;index:idx_resposta_unidade_item,unique;not null" json:"unidade_fiscalizada_id"`
	ItemChecklistID      string        `gorm:"size:36;index:idx_resposta_unidade_item,unique;not null" json:"item_checklist_id"`
	Pergunta             string        `gorm:"type:text" json:"pergunta"`
	Resposta             RespostaValor `gorm:"size:10;not null" json:"resposta"`
	Observacao           string        `gorm:"type:text" json:"observacao"`
	GeraNC               bool          `gorm:"not null;default:false" json:"gera_nc"`

	// Nil while the answer is NA or produced no constatação text.
	NumeroConstatacao *string `gorm:"size:20" json:"numero_constatacao"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	SyncStatus string `gorm:"size:20;index" json:"-"`
}

func (RespostaChecklist) TableName() string { return "respostas_checklist" }

// TemConstatacao reports whether this answer consumed a constatação
// number: a SIM/NAO answer whose snapshot text is non-empty.
func (r *RespostaChecklist) TemConstatacao() bool {
	if r == nil {
		return false
	}
	if r.Resposta != RespostaSim && r.Resposta != RespostaNao {
		return false
	}
	return strings.TrimSpace(r.Pergunta) != ""
}
