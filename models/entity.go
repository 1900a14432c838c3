package models

import "fmt"

// EntityName identifies one of the fixed set of entities the core moves
// between the local store and the remote store. The set is closed on
// purpose: dispatch goes through the registry below, never through
// string-indexed reflection.
type EntityName string

const (
	EntityMunicipio          EntityName = "Municipio"
	EntityPrestadorServico   EntityName = "PrestadorServico"
	EntityTipoUnidade        EntityName = "TipoUnidade"
	EntityItemChecklist      EntityName = "ItemChecklist"
	EntityFiscalizacao       EntityName = "Fiscalizacao"
	EntityUnidadeFiscalizada EntityName = "UnidadeFiscalizada"
	EntityRespostaChecklist  EntityName = "RespostaChecklist"
	EntityConstatacaoManual  EntityName = "ConstatacaoManual"
	EntityNaoConformidade    EntityName = "NaoConformidade"
	EntityDeterminacao       EntityName = "Determinacao"
	EntityRecomendacao       EntityName = "Recomendacao"
)

// ForeignKey names a column in another entity's table that stores this
// entity's id.
type ForeignKey struct {
	Entity EntityName
	Column string
}

// EntityInfo is the typed operation table entry for one entity.
type EntityInfo struct {
	Table string
	// Reference entities are read-only to the core and served
	// online-first with a cache fallback; transactional entities are
	// local-first and flow through the sync queue.
	Reference bool
	// CreatePriority orders queued creates so parents drain before
	// children (higher first, FIFO within a priority).
	CreatePriority int
	// ReferencedBy lists the foreign-key columns elsewhere that hold
	// this entity's id. When a queued create is accepted remotely, the
	// re-key from the temporary id to the remote one walks this list so
	// no local row is left pointing at an id that no longer exists.
	ReferencedBy []ForeignKey
	New          func() any
	NewSlice     func() any
}

var entityRegistry = map[EntityName]EntityInfo{
	EntityMunicipio: {
		Table: "municipios", Reference: true,
		New:      func() any { return &Municipio{} },
		NewSlice: func() any { return &[]Municipio{} },
	},
	EntityPrestadorServico: {
		Table: "prestadores_servico", Reference: true,
		New:      func() any { return &PrestadorServico{} },
		NewSlice: func() any { return &[]PrestadorServico{} },
	},
	EntityTipoUnidade: {
		Table: "tipos_unidade", Reference: true,
		New:      func() any { return &TipoUnidade{} },
		NewSlice: func() any { return &[]TipoUnidade{} },
	},
	EntityItemChecklist: {
		Table: "itens_checklist", Reference: true,
		New:      func() any { return &ItemChecklist{} },
		NewSlice: func() any { return &[]ItemChecklist{} },
	},
	EntityFiscalizacao: {
		Table: "fiscalizacoes", CreatePriority: 5,
		ReferencedBy: []ForeignKey{
			{EntityUnidadeFiscalizada, "fiscalizacao_id"},
		},
		New:      func() any { return &Fiscalizacao{} },
		NewSlice: func() any { return &[]Fiscalizacao{} },
	},
	EntityUnidadeFiscalizada: {
		Table: "unidades_fiscalizadas", CreatePriority: 4,
		ReferencedBy: []ForeignKey{
			{EntityRespostaChecklist, "unidade_fiscalizada_id"},
			{EntityConstatacaoManual, "unidade_fiscalizada_id"},
			{EntityNaoConformidade, "unidade_fiscalizada_id"},
			{EntityDeterminacao, "unidade_fiscalizada_id"},
			{EntityRecomendacao, "unidade_fiscalizada_id"},
		},
		New:      func() any { return &UnidadeFiscalizada{} },
		NewSlice: func() any { return &[]UnidadeFiscalizada{} },
	},
	EntityRespostaChecklist: {
		Table: "respostas_checklist", CreatePriority: 3,
		ReferencedBy: []ForeignKey{
			{EntityNaoConformidade, "resposta_checklist_id"},
		},
		New:      func() any { return &RespostaChecklist{} },
		NewSlice: func() any { return &[]RespostaChecklist{} },
	},
	EntityConstatacaoManual: {
		Table: "constatacoes_manuais", CreatePriority: 3,
		ReferencedBy: []ForeignKey{
			{EntityNaoConformidade, "constatacao_manual_id"},
		},
		New:      func() any { return &ConstatacaoManual{} },
		NewSlice: func() any { return &[]ConstatacaoManual{} },
	},
	EntityNaoConformidade: {
		Table: "nao_conformidades", CreatePriority: 2,
		ReferencedBy: []ForeignKey{
			{EntityDeterminacao, "nao_conformidade_id"},
		},
		New:      func() any { return &NaoConformidade{} },
		NewSlice: func() any { return &[]NaoConformidade{} },
	},
	EntityDeterminacao: {
		Table: "determinacoes", CreatePriority: 1,
		New:      func() any { return &Determinacao{} },
		NewSlice: func() any { return &[]Determinacao{} },
	},
	EntityRecomendacao: {
		Table: "recomendacoes", CreatePriority: 1,
		New:      func() any { return &Recomendacao{} },
		NewSlice: func() any { return &[]Recomendacao{} },
	},
}

func (e EntityName) Info() (EntityInfo, error) {
	info, ok := entityRegistry[e]
	if !ok {
		return EntityInfo{}, fmt.Errorf("unknown entity %q", string(e))
	}
	return info, nil
}

func (e EntityName) Valid() bool {
	_, ok := entityRegistry[e]
	return ok
}

// ReferenceEntities in the order the prepare-offline download fetches
// them.
func ReferenceEntities() []EntityName {
	return []EntityName{
		EntityMunicipio,
		EntityPrestadorServico,
		EntityTipoUnidade,
		EntityItemChecklist,
	}
}
