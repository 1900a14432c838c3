package models

import "errors"

// RespostaValor is the answer an inspector gives to one checklist item.
type RespostaValor string

const (
	RespostaSim RespostaValor = "SIM"
	RespostaNao RespostaValor = "NAO"
	RespostaNA  RespostaValor = "NA"
)

func (r RespostaValor) Valid() bool {
	switch r {
	case RespostaSim, RespostaNao, RespostaNA:
		return true
	}
	return false
}

// StatusUnidade is the lifecycle state of an inspected unit.
type StatusUnidade string

const (
	UnidadeEmAndamento StatusUnidade = "em_andamento"
	UnidadeFinalizada  StatusUnidade = "finalizada"
)

// StatusFiscalizacao mirrors StatusUnidade at the inspection level; a
// finalized inspection locks every mutation underneath it.
type StatusFiscalizacao string

const (
	FiscalizacaoEmAndamento StatusFiscalizacao = "em_andamento"
	FiscalizacaoFinalizada  StatusFiscalizacao = "finalizada"
)

// StatusDeterminacao: the core only ever creates determinations as
// pending; later transitions belong to the follow-up module.
type StatusDeterminacao string

const (
	DeterminacaoPendente StatusDeterminacao = "pendente"
)

// OrigemRecomendacao says whether a recommendation came from a checklist
// item template or from a manual finding.
type OrigemRecomendacao string

const (
	OrigemChecklist OrigemRecomendacao = "checklist"
	OrigemManual    OrigemRecomendacao = "manual"
)

// SyncOperationType is the remote action a queued operation performs.
type SyncOperationType string

const (
	SyncOpCreate SyncOperationType = "create"
	SyncOpUpdate SyncOperationType = "update"
	SyncOpDelete SyncOperationType = "delete"
)

func (t SyncOperationType) Valid() bool {
	switch t {
	case SyncOpCreate, SyncOpUpdate, SyncOpDelete:
		return true
	}
	return false
}

// SyncOperationStatus is the queue state machine:
// pending -> processing -> removed on success, or -> failed;
// failed may be requeued to pending with the attempt count kept.
type SyncOperationStatus string

const (
	SyncStatusPending    SyncOperationStatus = "pending"
	SyncStatusProcessing SyncOperationStatus = "processing"
	SyncStatusFailed     SyncOperationStatus = "failed"
	SyncStatusSynced     SyncOperationStatus = "synced"
)

var ErrInvalidResposta = errors.New("invalid resposta value")
