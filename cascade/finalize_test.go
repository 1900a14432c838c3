package cascade_test

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"bitbucket.org/agemsdev/fiscaliza_backend/cascade"
	"bitbucket.org/agemsdev/fiscaliza_backend/models"
	"bitbucket.org/agemsdev/fiscaliza_backend/remote"
)

func seedFinalizeFixture(t *testing.T) (*remote.MemoryStore, *cascade.Applier) {
	t.Helper()
	store := remote.NewMemoryStore()
	_, unidadeID := newInspection(store, models.FiscalizacaoEmAndamento)
	seedItem(store, "i1", 1, models.ItemChecklist{
		Pergunta: "Item 1?", TextoConstatacaoSim: "Conforme.",
	})
	seedItem(store, "i2", 2, models.ItemChecklist{
		Pergunta: "Item 2?", TextoConstatacaoNao: "Não conforme.",
		GeraNC: true, TextoNC: "Violação A.", TextoDeterminacao: "Corrigir A.",
	})
	seedItem(store, "i3", 3, models.ItemChecklist{
		Pergunta: "Item 3?", TextoConstatacaoNao: "Não conforme.",
		GeraNC: true, TextoNC: "Violação B.", TextoRecomendacao: "Avaliar B.",
	})
	app := cascade.NewApplier(store, nil)

	answer(t, app, unidadeID, "i1", models.RespostaSim)
	answer(t, app, unidadeID, "i2", models.RespostaNao)
	answer(t, app, unidadeID, "i3", models.RespostaNao)

	if _, err := app.CreateManualFinding(context.Background(), cascade.ManualFindingInput{
		UnidadeFiscalizadaID: unidadeID,
		Descricao:            "Hidrômetro inoperante.",
		GeraNC:               true,
		TextoDeterminacao:    "Substituir o hidrômetro.",
	}); err != nil {
		t.Fatalf("CreateManualFinding: %v", err)
	}
	return store, app
}

func collectNumbers(t *testing.T, store *remote.MemoryStore, entity models.EntityName, field string) []string {
	t.Helper()
	recs, err := store.Filter(context.Background(), entity, remote.Record{"unidade_fiscalizada_id": "u1"}, "", 0)
	if err != nil {
		t.Fatalf("filter %s: %v", entity, err)
	}
	var nums []string
	for _, rec := range recs {
		if v, ok := rec[field].(string); ok {
			nums = append(nums, v)
		}
	}
	sort.Strings(nums)
	return nums
}

func TestFinalizeUnit_RegeneratesAndSnapshotsTotals(t *testing.T) {
	store, app := seedFinalizeFixture(t)

	result, err := app.FinalizeUnit(context.Background(), "u1")
	if err != nil {
		t.Fatalf("FinalizeUnit: %v", err)
	}
	if result.TotalConstatacoes != 4 {
		t.Fatalf("total constatações = %d, want 4", result.TotalConstatacoes)
	}
	if result.TotalNCs != 3 {
		t.Fatalf("total NCs = %d, want 3", result.TotalNCs)
	}
	if result.TotalDets != 2 || result.TotalRecs != 1 {
		t.Fatalf("D=%d R=%d, want 2/1", result.TotalDets, result.TotalRecs)
	}

	got := collectNumbers(t, store, models.EntityNaoConformidade, "numero_nc")
	want := []string{"NC1", "NC2", "NC3"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("NC numbers = %v, want %v", got, want)
	}

	recs, _ := store.Filter(context.Background(), models.EntityUnidadeFiscalizada, remote.Record{"id": "u1"}, "", 1)
	var unidade models.UnidadeFiscalizada
	if err := remote.Decode(recs[0], &unidade); err != nil {
		t.Fatalf("decode unidade: %v", err)
	}
	if !unidade.Finalizada() {
		t.Fatalf("status = %s, want finalizada", unidade.Status)
	}
	if unidade.TotalConstatacoes != 4 || unidade.TotalNCs != 3 {
		t.Fatalf("snapshot = C:%d NC:%d", unidade.TotalConstatacoes, unidade.TotalNCs)
	}
}

func TestFinalizeUnit_RerunIsIdempotent(t *testing.T) {
	store, app := seedFinalizeFixture(t)

	first, err := app.FinalizeUnit(context.Background(), "u1")
	if err != nil {
		t.Fatalf("first finalize: %v", err)
	}
	// Simulating a retry after partial failure: re-run on top of the
	// records the first run created. Edit mode because the inspection
	// may meanwhile be marked finalized by other flows; here the unit
	// alone was finalized so the lock does not trip, but the re-run
	// must still not duplicate anything.
	second, err := app.FinalizeUnit(context.Background(), "u1")
	if err != nil {
		t.Fatalf("second finalize: %v", err)
	}
	if *first != *second {
		t.Fatalf("results differ: %+v vs %+v", first, second)
	}
	if n := store.Count(models.EntityNaoConformidade); n != first.TotalNCs {
		t.Fatalf("NC count after re-run = %d, want %d", n, first.TotalNCs)
	}
	if n := store.Count(models.EntityDeterminacao); n != first.TotalDets {
		t.Fatalf("D count after re-run = %d, want %d", n, first.TotalDets)
	}
	if n := store.Count(models.EntityRecomendacao); n != first.TotalRecs {
		t.Fatalf("R count after re-run = %d, want %d", n, first.TotalRecs)
	}
}

func TestFinalizeUnit_DeterminationsReferenceBulkAssignedNCIDs(t *testing.T) {
	store, app := seedFinalizeFixture(t)

	if _, err := app.FinalizeUnit(context.Background(), "u1"); err != nil {
		t.Fatalf("FinalizeUnit: %v", err)
	}

	ncRecs, _ := store.Filter(context.Background(), models.EntityNaoConformidade, remote.Record{"unidade_fiscalizada_id": "u1"}, "", 0)
	ncIDs := map[string]bool{}
	for _, rec := range ncRecs {
		ncIDs[remote.RecordID(rec)] = true
	}

	detRecs, _ := store.Filter(context.Background(), models.EntityDeterminacao, remote.Record{"unidade_fiscalizada_id": "u1"}, "", 0)
	for _, rec := range detRecs {
		var det models.Determinacao
		if err := remote.Decode(rec, &det); err != nil {
			t.Fatalf("decode determinação: %v", err)
		}
		if !ncIDs[det.NaoConformidadeID] {
			t.Fatalf("determinação %s references unknown NC id %q", det.NumeroDeterminacao, det.NaoConformidadeID)
		}
	}
}

func TestRenumberUnit_CompactsGaps(t *testing.T) {
	store := remote.NewMemoryStore()
	_, unidadeID := newInspection(store, models.FiscalizacaoEmAndamento)
	seedItem(store, "i1", 1, models.ItemChecklist{Pergunta: "Item 1?", TextoConstatacaoSim: "Ok."})
	seedItem(store, "i2", 2, models.ItemChecklist{Pergunta: "Item 2?", TextoConstatacaoSim: "Ok."})
	app := cascade.NewApplier(store, nil)

	answer(t, app, unidadeID, "i1", models.RespostaSim)
	answer(t, app, unidadeID, "i2", models.RespostaSim)
	manual, err := app.CreateManualFinding(context.Background(), cascade.ManualFindingInput{
		UnidadeFiscalizadaID: unidadeID,
		Descricao:            "Achado avulso.",
	})
	if err != nil {
		t.Fatalf("CreateManualFinding: %v", err)
	}

	// Retract the first answer to NA, opening a gap at C1.
	answer(t, app, unidadeID, "i1", models.RespostaNA)

	n, err := app.RenumberUnit(context.Background(), unidadeID)
	if err != nil {
		t.Fatalf("RenumberUnit: %v", err)
	}
	if n != 2 {
		t.Fatalf("renumber count = %d, want 2", n)
	}

	nums := collectNumbers(t, store, models.EntityRespostaChecklist, "numero_constatacao")
	if fmt.Sprint(nums) != fmt.Sprint([]string{"C1"}) {
		t.Fatalf("answer numbers = %v, want [C1]", nums)
	}
	recs, _ := store.Filter(context.Background(), models.EntityConstatacaoManual, remote.Record{"id": manual.ID}, "", 1)
	var m models.ConstatacaoManual
	if err := remote.Decode(recs[0], &m); err != nil {
		t.Fatalf("decode manual: %v", err)
	}
	if m.NumeroConstatacao == nil || *m.NumeroConstatacao != "C2" {
		t.Fatalf("manual renumbered to %v, want C2", m.NumeroConstatacao)
	}
}
