package cascade

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/agemsdev/fiscaliza_backend/config"
	"bitbucket.org/agemsdev/fiscaliza_backend/models"
	"bitbucket.org/agemsdev/fiscaliza_backend/numbering"
	"bitbucket.org/agemsdev/fiscaliza_backend/remote"
	"bitbucket.org/agemsdev/fiscaliza_backend/utils"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

const moduleName = "cascade"

// PartialCascadeError reports a multi-step cascade that stopped midway.
// Completed steps are NOT rolled back; recovery is idempotent
// regeneration at finalize, never automatic compensation.
type PartialCascadeError struct {
	Completed []string
	Failed    string
	Err       error
}

func (e *PartialCascadeError) Error() string {
	return fmt.Sprintf("cascata parcial: %s falhou após [%s]: %v",
		e.Failed, strings.Join(e.Completed, ", "), e.Err)
}

func (e *PartialCascadeError) Unwrap() error { return e.Err }

// Applier executes answer and manual-finding mutations against a store,
// running the lock check, number allocation and NC/D/R cascade around
// each write. The store may be the live remote or the offline facade;
// the cascade does not care which.
type Applier struct {
	Store   remote.Store
	Logger  *logrus.Logger
	Offsets *numbering.OffsetAggregator

	// EditMode lifts the finalized-inspection lock. Off by default;
	// the caller opts in deliberately per session.
	EditMode bool

	validate *validator.Validate
	now      func() time.Time
}

func NewApplier(store remote.Store, logger *logrus.Logger) *Applier {
	return &Applier{
		Store:    store,
		Logger:   logger,
		Offsets:  numbering.NewOffsetAggregator(store, logger),
		validate: validator.New(),
		now:      time.Now,
	}
}

// AnswerInput is one checklist answer submission.
type AnswerInput struct {
	UnidadeFiscalizadaID string               `json:"unidade_fiscalizada_id" validate:"required"`
	ItemChecklistID      string               `json:"item_checklist_id" validate:"required"`
	Resposta             models.RespostaValor `json:"resposta" validate:"required"`
	Observacao           string               `json:"observacao"`
}

// ManualFindingInput is one free-form finding submission.
type ManualFindingInput struct {
	UnidadeFiscalizadaID string `json:"unidade_fiscalizada_id" validate:"required"`
	Descricao            string `json:"descricao" validate:"required"`
	GeraNC               bool   `json:"gera_nc"`
	ArtigoPortaria       string `json:"artigo_portaria"`
	TextoDeterminacao    string `json:"texto_determinacao"`
	TextoRecomendacao    string `json:"texto_recomendacao"`
}

// AnswerItem upserts the answer for (unit, item) and applies whatever
// the cascade engine decides. Every read here is fresh; cached query
// results are never trusted across the decision/write boundary.
func (a *Applier) AnswerItem(ctx context.Context, in AnswerInput) (*models.RespostaChecklist, error) {
	if err := a.validate.Struct(in); err != nil {
		return nil, err
	}
	if !in.Resposta.Valid() {
		return nil, models.ErrInvalidResposta
	}

	unidade, err := a.checkLock(ctx, in.UnidadeFiscalizadaID)
	if err != nil {
		return nil, err
	}

	item, err := a.loadItem(ctx, in.ItemChecklistID)
	if err != nil {
		return nil, err
	}

	existing, err := a.findAnswer(ctx, in.UnidadeFiscalizadaID, in.ItemChecklistID)
	if err != nil {
		return nil, err
	}

	texto := ConstatacaoText(item, in.Resposta)
	numero, err := a.resolveNumero(ctx, unidade, existing, texto)
	if err != nil {
		return nil, err
	}

	resposta := models.RespostaChecklist{
		UnidadeFiscalizadaID: in.UnidadeFiscalizadaID,
		ItemChecklistID:      in.ItemChecklistID,
		Pergunta:             texto,
		Resposta:             in.Resposta,
		Observacao:           in.Observacao,
		GeraNC:               item.GeraNC,
		NumeroConstatacao:    numero,
	}
	saved, err := a.upsertAnswer(ctx, existing, &resposta)
	if err != nil {
		return nil, err
	}

	nc, err := a.findAnswerNC(ctx, saved.ID)
	if err != nil {
		return saved, err
	}

	switch Decide(item, in.Resposta, nc != nil) {
	case ActionCreateNC:
		numStr := ""
		if saved.NumeroConstatacao != nil {
			numStr = *saved.NumeroConstatacao
		}
		err = a.createCascade(ctx, unidade, cascadeSource{
			respostaID:        saved.ID,
			numeroConstatacao: numStr,
			artigo:            item.ArtigoPortaria,
			textoNC:           item.TextoNC,
			textoDeterminacao: item.TextoDeterminacao,
			textoRecomendacao: item.TextoRecomendacao,
			prazoDias:         item.PrazoDias,
			origem:            models.OrigemChecklist,
		})
	case ActionDeleteNC:
		err = a.deleteCascade(ctx, nc)
	}
	if err != nil {
		return saved, err
	}
	return saved, nil
}

// CreateManualFinding records a free-form finding, numbering it in the
// same C sequence as checklist answers, and runs the NC cascade when
// the gera_nc flag is set. Manual findings need no NC template: the
// finding's own text is the description source.
func (a *Applier) CreateManualFinding(ctx context.Context, in ManualFindingInput) (*models.ConstatacaoManual, error) {
	if err := a.validate.Struct(in); err != nil {
		return nil, err
	}
	unidade, err := a.checkLock(ctx, in.UnidadeFiscalizadaID)
	if err != nil {
		return nil, err
	}

	numero, err := a.allocateNumero(ctx, unidade)
	if err != nil {
		return nil, err
	}

	manual := models.ConstatacaoManual{
		UnidadeFiscalizadaID: in.UnidadeFiscalizadaID,
		Descricao:            in.Descricao,
		GeraNC:               in.GeraNC,
		ArtigoPortaria:       in.ArtigoPortaria,
		TextoDeterminacao:    in.TextoDeterminacao,
		TextoRecomendacao:    in.TextoRecomendacao,
		Ordem:                a.now().UnixMilli(),
		NumeroConstatacao:    &numero,
	}
	rec, err := remote.Encode(&manual)
	if err != nil {
		return nil, err
	}
	created, err := a.Store.Create(ctx, models.EntityConstatacaoManual, rec)
	if err != nil {
		return nil, err
	}
	if err := remote.Decode(created, &manual); err != nil {
		return nil, err
	}

	if in.GeraNC {
		err = a.createCascade(ctx, unidade, cascadeSource{
			manualID:          manual.ID,
			numeroConstatacao: numero,
			artigo:            in.ArtigoPortaria,
			textoNC:           in.Descricao,
			textoDeterminacao: in.TextoDeterminacao,
			textoRecomendacao: in.TextoRecomendacao,
			origem:            models.OrigemManual,
		})
		if err != nil {
			return &manual, err
		}
	}
	return &manual, nil
}

// DeleteManualFinding removes a finding and its NC lineage, children
// first. Prior numbers are left untouched; gaps are tolerated until an
// explicit renumber.
func (a *Applier) DeleteManualFinding(ctx context.Context, manualID string) error {
	var manual models.ConstatacaoManual
	if err := a.loadByID(ctx, models.EntityConstatacaoManual, manualID, &manual); err != nil {
		return err
	}
	if _, err := a.checkLock(ctx, manual.UnidadeFiscalizadaID); err != nil {
		return err
	}

	nc, err := a.findManualNC(ctx, manual.ID)
	if err != nil {
		return err
	}
	if nc != nil {
		if err := a.deleteCascade(ctx, nc); err != nil {
			return err
		}
	}
	return a.Store.Delete(ctx, models.EntityConstatacaoManual, manualID)
}

type cascadeSource struct {
	respostaID        string
	manualID          string
	numeroConstatacao string
	artigo            string
	textoNC           string
	textoDeterminacao string
	textoRecomendacao string
	prazoDias         int
	origem            models.OrigemRecomendacao
}

// createCascade writes NC then, mutually exclusive, the Determination
// or the Recommendation (parents first). A failure mid-chain surfaces
// as PartialCascadeError naming what already landed.
func (a *Applier) createCascade(ctx context.Context, unidade *models.UnidadeFiscalizada, src cascadeSource) error {
	offsets, err := a.Offsets.ComputeOffsets(ctx, unidade.FiscalizacaoID, unidade.ID)
	if err != nil {
		return err
	}

	ncNum, err := a.nextInUnit(ctx, models.EntityNaoConformidade, unidade.ID, "numero_nc", "NC", offsets.NC)
	if err != nil {
		return err
	}

	nc := models.NaoConformidade{
		UnidadeFiscalizadaID: unidade.ID,
		NumeroNC:             ncNum,
		ArtigoPortaria:       src.artigo,
		Descricao:            ComposeNonConformityText(src.numeroConstatacao, src.artigo, src.textoNC),
	}
	if src.respostaID != "" {
		nc.RespostaChecklistID = &src.respostaID
	}
	if src.manualID != "" {
		nc.ConstatacaoManualID = &src.manualID
	}
	rec, err := remote.Encode(&nc)
	if err != nil {
		return err
	}
	createdNC, err := a.Store.Create(ctx, models.EntityNaoConformidade, rec)
	if err != nil {
		config.LogError(a.Logger, moduleName, "createCascade", "criar não-conformidade", rec, err)
		return err
	}
	completed := []string{"não-conformidade " + ncNum}

	switch {
	case strings.TrimSpace(src.textoDeterminacao) != "":
		dNum, err := a.nextInUnit(ctx, models.EntityDeterminacao, unidade.ID, "numero_determinacao", "D", offsets.D)
		if err != nil {
			return &PartialCascadeError{Completed: completed, Failed: "numerar determinação", Err: err}
		}
		det := models.Determinacao{
			UnidadeFiscalizadaID: unidade.ID,
			NaoConformidadeID:    remote.RecordID(createdNC),
			NumeroDeterminacao:   dNum,
			Descricao:            ComposeDeterminationText(ncNum, src.textoDeterminacao),
			PrazoDias:            normalizePrazo(src.prazoDias),
			DataLimite:           DueDate(a.now(), src.prazoDias),
			Status:               models.DeterminacaoPendente,
		}
		drec, err := remote.Encode(&det)
		if err != nil {
			return &PartialCascadeError{Completed: completed, Failed: "codificar determinação", Err: err}
		}
		if _, err := a.Store.Create(ctx, models.EntityDeterminacao, drec); err != nil {
			config.LogError(a.Logger, moduleName, "createCascade", "criar determinação", drec, err)
			return &PartialCascadeError{Completed: completed, Failed: "criar determinação " + dNum, Err: err}
		}
	case strings.TrimSpace(src.textoRecomendacao) != "":
		rNum, err := a.nextInUnit(ctx, models.EntityRecomendacao, unidade.ID, "numero_recomendacao", "R", offsets.R)
		if err != nil {
			return &PartialCascadeError{Completed: completed, Failed: "numerar recomendação", Err: err}
		}
		reco := models.Recomendacao{
			UnidadeFiscalizadaID: unidade.ID,
			NumeroRecomendacao:   rNum,
			Descricao:            strings.TrimSpace(src.textoRecomendacao),
			Origem:               src.origem,
		}
		rrec, err := remote.Encode(&reco)
		if err != nil {
			return &PartialCascadeError{Completed: completed, Failed: "codificar recomendação", Err: err}
		}
		if _, err := a.Store.Create(ctx, models.EntityRecomendacao, rrec); err != nil {
			config.LogError(a.Logger, moduleName, "createCascade", "criar recomendação", rrec, err)
			return &PartialCascadeError{Completed: completed, Failed: "criar recomendação " + rNum, Err: err}
		}
	}
	return nil
}

// deleteCascade removes an NC and its determinations, children first.
func (a *Applier) deleteCascade(ctx context.Context, nc *models.NaoConformidade) error {
	dets, err := a.Store.Filter(ctx, models.EntityDeterminacao,
		remote.Record{"nao_conformidade_id": nc.ID}, "", 0)
	if err != nil {
		return err
	}
	var completed []string
	for _, d := range dets {
		if err := a.Store.Delete(ctx, models.EntityDeterminacao, remote.RecordID(d)); err != nil {
			return &PartialCascadeError{Completed: completed, Failed: "excluir determinação", Err: err}
		}
		completed = append(completed, "determinação excluída")
	}
	if err := a.Store.Delete(ctx, models.EntityNaoConformidade, nc.ID); err != nil {
		return &PartialCascadeError{Completed: completed, Failed: "excluir não-conformidade " + nc.NumeroNC, Err: err}
	}
	return nil
}

// checkLock loads the unit and its inspection fresh and rejects the
// mutation when the inspection is finalized, unless edit mode is on.
// Runs before any write, always.
func (a *Applier) checkLock(ctx context.Context, unidadeID string) (*models.UnidadeFiscalizada, error) {
	var unidade models.UnidadeFiscalizada
	if err := a.loadByID(ctx, models.EntityUnidadeFiscalizada, unidadeID, &unidade); err != nil {
		return nil, err
	}
	var fisc models.Fiscalizacao
	if err := a.loadByID(ctx, models.EntityFiscalizacao, unidade.FiscalizacaoID, &fisc); err != nil {
		return nil, err
	}
	if fisc.Finalizada() && !a.EditMode {
		return nil, utils.ErrLockedResource
	}
	return &unidade, nil
}

func (a *Applier) loadItem(ctx context.Context, itemID string) (*models.ItemChecklist, error) {
	var item models.ItemChecklist
	if err := a.loadByID(ctx, models.EntityItemChecklist, itemID, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (a *Applier) loadByID(ctx context.Context, entity models.EntityName, id string, out any) error {
	recs, err := a.Store.Filter(ctx, entity, remote.Record{"id": id}, "", 1)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return utils.ErrorRecordNotFound
	}
	return remote.Decode(recs[0], out)
}

func (a *Applier) findAnswer(ctx context.Context, unidadeID, itemID string) (*models.RespostaChecklist, error) {
	recs, err := a.Store.Filter(ctx, models.EntityRespostaChecklist, remote.Record{
		"unidade_fiscalizada_id": unidadeID,
		"item_checklist_id":      itemID,
	}, "", 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	var r models.RespostaChecklist
	if err := remote.Decode(recs[0], &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (a *Applier) findAnswerNC(ctx context.Context, respostaID string) (*models.NaoConformidade, error) {
	recs, err := a.Store.Filter(ctx, models.EntityNaoConformidade,
		remote.Record{"resposta_checklist_id": respostaID}, "", 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	var nc models.NaoConformidade
	if err := remote.Decode(recs[0], &nc); err != nil {
		return nil, err
	}
	return &nc, nil
}

// findManualNC locates the NC a manual finding spawned through its
// back-reference. The description is display text and can be edited;
// lineage never depends on it.
func (a *Applier) findManualNC(ctx context.Context, manualID string) (*models.NaoConformidade, error) {
	recs, err := a.Store.Filter(ctx, models.EntityNaoConformidade,
		remote.Record{"constatacao_manual_id": manualID}, "", 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	var nc models.NaoConformidade
	if err := remote.Decode(recs[0], &nc); err != nil {
		return nil, err
	}
	return &nc, nil
}

// resolveNumero keeps an already-assigned number across re-answers and
// allocates a fresh one only when the answer first earns text. A
// retraction to NA (or to empty text) releases the number; the gap it
// leaves is tolerated.
func (a *Applier) resolveNumero(ctx context.Context, unidade *models.UnidadeFiscalizada, existing *models.RespostaChecklist, texto string) (*string, error) {
	if texto == "" {
		return nil, nil
	}
	if existing != nil && existing.NumeroConstatacao != nil && *existing.NumeroConstatacao != "" {
		return existing.NumeroConstatacao, nil
	}
	n, err := a.allocateNumero(ctx, unidade)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// allocateNumero re-reads the unit's answers and manual findings and
// returns the next C number, floored by the cross-unit offset.
//
// The fresh fetch narrows, but does not close, the window where two
// concurrent inspectors allocate the same number. Closing it needs an
// atomic counter or version token on the remote side; until then a
// uniqueness rejection there surfaces as a RemoteWriteError and the
// caller retries, which re-runs this allocation past the collision.
func (a *Applier) allocateNumero(ctx context.Context, unidade *models.UnidadeFiscalizada) (string, error) {
	var numbers []string
	respRecs, err := a.Store.Filter(ctx, models.EntityRespostaChecklist,
		remote.Record{"unidade_fiscalizada_id": unidade.ID}, "", 0)
	if err != nil {
		return "", err
	}
	for _, rec := range respRecs {
		if v, ok := rec["numero_constatacao"].(string); ok {
			numbers = append(numbers, v)
		}
	}
	manRecs, err := a.Store.Filter(ctx, models.EntityConstatacaoManual,
		remote.Record{"unidade_fiscalizada_id": unidade.ID}, "", 0)
	if err != nil {
		return "", err
	}
	for _, rec := range manRecs {
		if v, ok := rec["numero_constatacao"].(string); ok {
			numbers = append(numbers, v)
		}
	}

	offsets, err := a.Offsets.ComputeOffsets(ctx, unidade.FiscalizacaoID, unidade.ID)
	if err != nil {
		return "", err
	}
	n := numbering.NextNumber(numbers, "C")
	if n <= offsets.C {
		n = offsets.C + 1
	}
	return numbering.Format("C", n), nil
}

// nextInUnit allocates the next NC/D/R number from a fresh fetch of the
// unit's records, floored by the cross-unit offset.
func (a *Applier) nextInUnit(ctx context.Context, entity models.EntityName, unidadeID, field, prefix string, offset int) (string, error) {
	recs, err := a.Store.Filter(ctx, entity,
		remote.Record{"unidade_fiscalizada_id": unidadeID}, "", 0)
	if err != nil {
		return "", err
	}
	numbers := make([]string, 0, len(recs))
	for _, rec := range recs {
		if v, ok := rec[field].(string); ok {
			numbers = append(numbers, v)
		}
	}
	n := numbering.NextNumber(numbers, prefix)
	if n <= offset {
		n = offset + 1
	}
	return numbering.Format(prefix, n), nil
}

func (a *Applier) upsertAnswer(ctx context.Context, existing *models.RespostaChecklist, resposta *models.RespostaChecklist) (*models.RespostaChecklist, error) {
	rec, err := remote.Encode(resposta)
	if err != nil {
		return nil, err
	}
	var saved remote.Record
	if existing != nil {
		rec["id"] = existing.ID
		// The store owns the timestamps; the zero values the fresh
		// struct encoded must not overwrite them.
		delete(rec, "created_at")
		delete(rec, "updated_at")
		saved, err = a.Store.Update(ctx, models.EntityRespostaChecklist, existing.ID, rec)
	} else {
		saved, err = a.Store.Create(ctx, models.EntityRespostaChecklist, rec)
	}
	if err != nil {
		return nil, err
	}
	var out models.RespostaChecklist
	if err := remote.Decode(saved, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func normalizePrazo(prazo int) int {
	if prazo <= 0 {
		return 30
	}
	return prazo
}
