package numbering_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bitbucket.org/agemsdev/fiscaliza_backend/models"
	"bitbucket.org/agemsdev/fiscaliza_backend/numbering"
	"bitbucket.org/agemsdev/fiscaliza_backend/remote"
)

func seedUnit(store *remote.MemoryStore, id, fiscalizacaoID string, status models.StatusUnidade, totalC, totalNC int) {
	store.Seed(models.EntityUnidadeFiscalizada, remote.Record{
		"id":                 id,
		"fiscalizacao_id":    fiscalizacaoID,
		"status":             string(status),
		"total_constatacoes": totalC,
		"total_ncs":          totalNC,
	})
}

func TestComputeOffsets_SumsEarlierFinalizedUnits(t *testing.T) {
	store := remote.NewMemoryStore()
	seedUnit(store, "u1", "f1", models.UnidadeFinalizada, 5, 2)
	seedUnit(store, "u2", "f1", models.UnidadeFinalizada, 3, 1)
	seedUnit(store, "u3", "f1", models.UnidadeEmAndamento, 0, 0)

	store.Seed(models.EntityDeterminacao, remote.Record{"unidade_fiscalizada_id": "u1", "numero_determinacao": "D1"})
	store.Seed(models.EntityDeterminacao, remote.Record{"unidade_fiscalizada_id": "u2", "numero_determinacao": "D2"})
	store.Seed(models.EntityRecomendacao, remote.Record{"unidade_fiscalizada_id": "u2", "numero_recomendacao": "R1"})

	agg := numbering.NewOffsetAggregator(store, nil)
	got, err := agg.ComputeOffsets(context.Background(), "f1", "u3")
	if err != nil {
		t.Fatalf("ComputeOffsets: %v", err)
	}
	want := numbering.Offsets{C: 8, NC: 3, D: 2, R: 1}
	if got != want {
		t.Fatalf("offsets = %+v, want %+v", got, want)
	}
}

func TestComputeOffsets_InProgressUnitsContributeNothing(t *testing.T) {
	store := remote.NewMemoryStore()
	seedUnit(store, "u1", "f1", models.UnidadeEmAndamento, 5, 2)
	seedUnit(store, "u2", "f1", models.UnidadeFinalizada, 3, 1)
	seedUnit(store, "u3", "f1", models.UnidadeEmAndamento, 0, 0)

	// Partial content of the in-progress unit must stay invisible.
	store.Seed(models.EntityDeterminacao, remote.Record{"unidade_fiscalizada_id": "u1", "numero_determinacao": "D1"})
	store.Seed(models.EntityRecomendacao, remote.Record{"unidade_fiscalizada_id": "u2", "numero_recomendacao": "R1"})

	agg := numbering.NewOffsetAggregator(store, nil)
	got, err := agg.ComputeOffsets(context.Background(), "f1", "u3")
	if err != nil {
		t.Fatalf("ComputeOffsets: %v", err)
	}
	want := numbering.Offsets{C: 3, NC: 1, D: 0, R: 1}
	if got != want {
		t.Fatalf("offsets = %+v, want %+v", got, want)
	}
}

func TestComputeOffsets_OnlyStrictPrefixCounts(t *testing.T) {
	store := remote.NewMemoryStore()
	seedUnit(store, "u1", "f1", models.UnidadeFinalizada, 2, 1)
	seedUnit(store, "u2", "f1", models.UnidadeEmAndamento, 0, 0)
	// Created after u2; must not contribute to u2's offsets even though
	// it is finalized.
	seedUnit(store, "u3", "f1", models.UnidadeFinalizada, 9, 9)

	agg := numbering.NewOffsetAggregator(store, nil)
	got, err := agg.ComputeOffsets(context.Background(), "f1", "u2")
	if err != nil {
		t.Fatalf("ComputeOffsets: %v", err)
	}
	if got.C != 2 || got.NC != 1 {
		t.Fatalf("offsets = %+v, want C:2 NC:1", got)
	}
}

func TestComputeOffsets_UnknownUnitIsAnError(t *testing.T) {
	store := remote.NewMemoryStore()
	seedUnit(store, "u1", "f1", models.UnidadeFinalizada, 5, 2)

	// A unit missing from the listing has no position in the ordering;
	// summing everything would let later siblings inflate its offsets.
	agg := numbering.NewOffsetAggregator(store, nil)
	if _, err := agg.ComputeOffsets(context.Background(), "f1", "inexistente"); err == nil {
		t.Fatal("ComputeOffsets must reject a unit outside the inspection")
	}
}

func TestComputeOffsets_RetriesTransientFailures(t *testing.T) {
	store := remote.NewMemoryStore()
	seedUnit(store, "u1", "f1", models.UnidadeFinalizada, 1, 1)
	seedUnit(store, "u2", "f1", models.UnidadeEmAndamento, 0, 0)

	transient := errors.New("rate limited")
	failures := 2
	// MemoryStore only injects write failures, so wrap reads here.
	flaky := &flakyStore{Store: store, failures: &failures, err: transient}

	agg := numbering.NewOffsetAggregator(flaky, nil)
	agg.BaseDelay = time.Millisecond
	agg.MaxAttempts = 3
	got, err := agg.ComputeOffsets(context.Background(), "f1", "u2")
	if err != nil {
		t.Fatalf("ComputeOffsets after retries: %v", err)
	}
	if got.C != 1 {
		t.Fatalf("offsets = %+v, want C:1", got)
	}
}

type flakyStore struct {
	remote.Store
	failures *int
	err      error
}

func (f *flakyStore) Filter(ctx context.Context, entity models.EntityName, filter remote.Record, sort string, limit int) ([]remote.Record, error) {
	if *f.failures > 0 {
		*f.failures--
		return nil, f.err
	}
	return f.Store.Filter(ctx, entity, filter, sort, limit)
}
