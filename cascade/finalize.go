package cascade

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"bitbucket.org/agemsdev/fiscaliza_backend/models"
	"bitbucket.org/agemsdev/fiscaliza_backend/numbering"
	"bitbucket.org/agemsdev/fiscaliza_backend/remote"
)

// FinalizeResult is what a finalize run produced, for the caller's
// summary screen.
type FinalizeResult struct {
	TotalConstatacoes int
	TotalNCs          int
	TotalDets         int
	TotalRecs         int
}

// FinalizeUnit re-derives the whole unit from scratch: every derived
// NC/D/R is deleted and regenerated in one deterministic pass, the
// constatação numbers are made contiguous from the cross-unit offset,
// and the unit's totals are snapshotted with its status set to
// finalizada.
//
// The clean-slate start is what makes a re-run after a partial failure
// safe: no record survives from the previous attempt, so nothing can
// be duplicated.
func (a *Applier) FinalizeUnit(ctx context.Context, unidadeID string) (*FinalizeResult, error) {
	unidade, err := a.checkLock(ctx, unidadeID)
	if err != nil {
		return nil, err
	}

	offsets, err := a.Offsets.ComputeOffsets(ctx, unidade.FiscalizacaoID, unidade.ID)
	if err != nil {
		return nil, err
	}

	rows, err := a.loadUnitRows(ctx, unidade)
	if err != nil {
		return nil, err
	}

	if err := a.clearDerived(ctx, unidade.ID); err != nil {
		return nil, err
	}

	cCount, err := a.renumberFindings(ctx, rows, offsets.C)
	if err != nil {
		return nil, err
	}

	ncRecs, detSources, recRecs := a.deriveBulk(rows, unidade.ID, offsets)

	createdNCs, err := a.Store.BulkCreate(ctx, models.EntityNaoConformidade, ncRecs)
	if err != nil {
		return nil, fmt.Errorf("gerar não-conformidades: %w", err)
	}
	ncIDByNumero := map[string]string{}
	for _, rec := range createdNCs {
		if num, ok := rec["numero_nc"].(string); ok {
			ncIDByNumero[num] = remote.RecordID(rec)
		}
	}

	detRecs := make([]remote.Record, 0, len(detSources))
	for _, d := range detSources {
		d.rec["nao_conformidade_id"] = ncIDByNumero[d.numeroNC]
		detRecs = append(detRecs, d.rec)
	}
	if len(detRecs) > 0 {
		if _, err := a.Store.BulkCreate(ctx, models.EntityDeterminacao, detRecs); err != nil {
			return nil, &PartialCascadeError{
				Completed: []string{fmt.Sprintf("%d não-conformidades", len(createdNCs))},
				Failed:    "gerar determinações",
				Err:       err,
			}
		}
	}
	if len(recRecs) > 0 {
		if _, err := a.Store.BulkCreate(ctx, models.EntityRecomendacao, recRecs); err != nil {
			return nil, &PartialCascadeError{
				Completed: []string{
					fmt.Sprintf("%d não-conformidades", len(createdNCs)),
					fmt.Sprintf("%d determinações", len(detRecs)),
				},
				Failed: "gerar recomendações",
				Err:    err,
			}
		}
	}

	update := remote.Record{
		"total_constatacoes": cCount,
		"total_ncs":          len(ncRecs),
		"status":             string(models.UnidadeFinalizada),
	}
	if _, err := a.Store.Update(ctx, models.EntityUnidadeFiscalizada, unidade.ID, update); err != nil {
		return nil, fmt.Errorf("gravar totais da unidade: %w", err)
	}

	return &FinalizeResult{
		TotalConstatacoes: cCount,
		TotalNCs:          len(ncRecs),
		TotalDets:         len(detRecs),
		TotalRecs:         len(recRecs),
	}, nil
}

// answerRow pairs an answer with its item config so derivation can read
// templates without another round of fetches.
type answerRow struct {
	resposta models.RespostaChecklist
	item     *models.ItemChecklist
}

type unitRows struct {
	answers []answerRow
	manuais []models.ConstatacaoManual
}

// loadUnitRows fetches the unit's answers (in checklist-item order) and
// manual findings (by ordering key). The deterministic order here is
// the deterministic numbering order: checklist answers first, manuals
// after.
func (a *Applier) loadUnitRows(ctx context.Context, unidade *models.UnidadeFiscalizada) (*unitRows, error) {
	itemRecs, err := a.Store.Filter(ctx, models.EntityItemChecklist,
		remote.Record{"tipo_unidade_id": unidade.TipoUnidadeID}, "ordem", 0)
	if err != nil {
		return nil, err
	}
	items, err := remote.DecodeSlice[models.ItemChecklist](itemRecs)
	if err != nil {
		return nil, err
	}
	itemByID := map[string]*models.ItemChecklist{}
	for i := range items {
		itemByID[items[i].ID] = &items[i]
	}

	respRecs, err := a.Store.Filter(ctx, models.EntityRespostaChecklist,
		remote.Record{"unidade_fiscalizada_id": unidade.ID}, "", 0)
	if err != nil {
		return nil, err
	}
	respostas, err := remote.DecodeSlice[models.RespostaChecklist](respRecs)
	if err != nil {
		return nil, err
	}
	byItem := map[string]*models.RespostaChecklist{}
	for i := range respostas {
		byItem[respostas[i].ItemChecklistID] = &respostas[i]
	}

	rows := &unitRows{}
	for i := range items {
		item := &items[i]
		if r, ok := byItem[item.ID]; ok {
			rows.answers = append(rows.answers, answerRow{resposta: *r, item: item})
		}
	}

	manRecs, err := a.Store.Filter(ctx, models.EntityConstatacaoManual,
		remote.Record{"unidade_fiscalizada_id": unidade.ID}, "ordem", 0)
	if err != nil {
		return nil, err
	}
	rows.manuais, err = remote.DecodeSlice[models.ConstatacaoManual](manRecs)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows.manuais, func(i, j int) bool {
		return rows.manuais[i].Ordem < rows.manuais[j].Ordem
	})
	return rows, nil
}

// clearDerived deletes all of the unit's NC/D/R records, children
// before parents. Both checklist- and manual-derived rows go; both are
// regenerated by the same pass.
func (a *Applier) clearDerived(ctx context.Context, unidadeID string) error {
	filter := remote.Record{"unidade_fiscalizada_id": unidadeID}

	dets, err := a.Store.Filter(ctx, models.EntityDeterminacao, filter, "", 0)
	if err != nil {
		return err
	}
	for _, d := range dets {
		if err := a.Store.Delete(ctx, models.EntityDeterminacao, remote.RecordID(d)); err != nil {
			return fmt.Errorf("limpar determinações: %w", err)
		}
	}

	ncs, err := a.Store.Filter(ctx, models.EntityNaoConformidade, filter, "", 0)
	if err != nil {
		return err
	}
	for _, nc := range ncs {
		if err := a.Store.Delete(ctx, models.EntityNaoConformidade, remote.RecordID(nc)); err != nil {
			return fmt.Errorf("limpar não-conformidades: %w", err)
		}
	}

	recs, err := a.Store.Filter(ctx, models.EntityRecomendacao, filter, "", 0)
	if err != nil {
		return err
	}
	for _, r := range recs {
		if err := a.Store.Delete(ctx, models.EntityRecomendacao, remote.RecordID(r)); err != nil {
			return fmt.Errorf("limpar recomendações: %w", err)
		}
	}
	return nil
}

// renumberFindings assigns contiguous C numbers starting at offsetC+1,
// answers in item order then manuals by ordering key, writing back only
// the rows whose number actually changed. Returns how many numbers the
// unit consumed.
func (a *Applier) renumberFindings(ctx context.Context, rows *unitRows, offsetC int) (int, error) {
	n := offsetC
	for i := range rows.answers {
		row := &rows.answers[i]
		if !row.resposta.TemConstatacao() {
			if row.resposta.NumeroConstatacao != nil {
				row.resposta.NumeroConstatacao = nil
				if _, err := a.Store.Update(ctx, models.EntityRespostaChecklist, row.resposta.ID,
					remote.Record{"numero_constatacao": nil}); err != nil {
					return 0, err
				}
			}
			continue
		}
		n++
		numero := numbering.Format("C", n)
		if row.resposta.NumeroConstatacao == nil || *row.resposta.NumeroConstatacao != numero {
			row.resposta.NumeroConstatacao = &numero
			if _, err := a.Store.Update(ctx, models.EntityRespostaChecklist, row.resposta.ID,
				remote.Record{"numero_constatacao": numero}); err != nil {
				return 0, err
			}
		}
	}
	for i := range rows.manuais {
		m := &rows.manuais[i]
		n++
		numero := numbering.Format("C", n)
		if m.NumeroConstatacao == nil || *m.NumeroConstatacao != numero {
			m.NumeroConstatacao = &numero
			if _, err := a.Store.Update(ctx, models.EntityConstatacaoManual, m.ID,
				remote.Record{"numero_constatacao": numero}); err != nil {
				return 0, err
			}
		}
	}
	return n - offsetC, nil
}

type detSource struct {
	numeroNC string
	rec      remote.Record
}

// deriveBulk walks the renumbered rows in order and builds the complete
// NC/D/R record sets, numbering each family from its offset. Pure over
// the in-memory rows; no I/O.
func (a *Applier) deriveBulk(rows *unitRows, unidadeID string, offsets numbering.Offsets) ([]remote.Record, []detSource, []remote.Record) {
	var (
		ncRecs  []remote.Record
		dets    []detSource
		recRecs []remote.Record
		ncN     = offsets.NC
		dN      = offsets.D
		rN      = offsets.R
	)

	emit := func(src cascadeSource) {
		ncN++
		numeroNC := numbering.Format("NC", ncN)
		nc := remote.Record{
			"unidade_fiscalizada_id": unidadeID,
			"numero_nc":              numeroNC,
			"artigo_portaria":        src.artigo,
			"descricao":              ComposeNonConformityText(src.numeroConstatacao, src.artigo, src.textoNC),
		}
		if src.respostaID != "" {
			nc["resposta_checklist_id"] = src.respostaID
		}
		if src.manualID != "" {
			nc["constatacao_manual_id"] = src.manualID
		}
		ncRecs = append(ncRecs, nc)

		switch {
		case strings.TrimSpace(src.textoDeterminacao) != "":
			dN++
			dets = append(dets, detSource{
				numeroNC: numeroNC,
				rec: remote.Record{
					"unidade_fiscalizada_id": unidadeID,
					"numero_determinacao":    numbering.Format("D", dN),
					"descricao":              ComposeDeterminationText(numeroNC, src.textoDeterminacao),
					"prazo_dias":             normalizePrazo(src.prazoDias),
					"data_limite":            DueDate(a.now(), src.prazoDias),
					"status":                 string(models.DeterminacaoPendente),
				},
			})
		case strings.TrimSpace(src.textoRecomendacao) != "":
			rN++
			recRecs = append(recRecs, remote.Record{
				"unidade_fiscalizada_id": unidadeID,
				"numero_recomendacao":    numbering.Format("R", rN),
				"descricao":              strings.TrimSpace(src.textoRecomendacao),
				"origem":                 string(src.origem),
			})
		}
	}

	for i := range rows.answers {
		row := &rows.answers[i]
		r := &row.resposta
		if r.Resposta != models.RespostaNao || !r.GeraNC || !row.item.HasTextoNC() {
			continue
		}
		numero := ""
		if r.NumeroConstatacao != nil {
			numero = *r.NumeroConstatacao
		}
		emit(cascadeSource{
			respostaID:        r.ID,
			numeroConstatacao: numero,
			artigo:            row.item.ArtigoPortaria,
			textoNC:           row.item.TextoNC,
			textoDeterminacao: row.item.TextoDeterminacao,
			textoRecomendacao: row.item.TextoRecomendacao,
			prazoDias:         row.item.PrazoDias,
			origem:            models.OrigemChecklist,
		})
	}
	for i := range rows.manuais {
		m := &rows.manuais[i]
		if !m.GeraNC {
			continue
		}
		numero := ""
		if m.NumeroConstatacao != nil {
			numero = *m.NumeroConstatacao
		}
		emit(cascadeSource{
			manualID:          m.ID,
			numeroConstatacao: numero,
			artigo:            m.ArtigoPortaria,
			textoNC:           m.Descricao,
			textoDeterminacao: m.TextoDeterminacao,
			textoRecomendacao: m.TextoRecomendacao,
			origem:            models.OrigemManual,
		})
	}
	return ncRecs, dets, recRecs
}
