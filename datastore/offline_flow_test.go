package datastore_test

import (
	"context"
	"testing"
	"time"

	"bitbucket.org/agemsdev/fiscaliza_backend/cascade"
	"bitbucket.org/agemsdev/fiscaliza_backend/models"
	"bitbucket.org/agemsdev/fiscaliza_backend/remote"
	"bitbucket.org/agemsdev/fiscaliza_backend/syncqueue"
	"gorm.io/gorm"
)

// seedLocal writes inspection scaffolding straight into the device
// cache, bypassing the queue, as a prior online session would have.
func seedLocal(t *testing.T, db *gorm.DB, entity models.EntityName, rec remote.Record) {
	t.Helper()
	info, err := entity.Info()
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	model := info.New()
	if err := remote.Decode(rec, model); err != nil {
		t.Fatalf("decode seed: %v", err)
	}
	if err := db.Create(model).Error; err != nil {
		t.Fatalf("seed %s: %v", entity, err)
	}
}

// Whole offline round trip: the inspector answers while disconnected,
// the cascade lands in the local store under temporary ids, and the
// drain after reconnection replays it parent-first with the
// determination re-pointed at the NC's remote id.
func TestOfflineAnswer_DrainReplaysCascade(t *testing.T) {
	f, store, db, conn := newFacade(t, false)
	ctx := context.Background()

	// Inspection scaffolding cached on the device before going out.
	seedLocal(t, db, models.EntityFiscalizacao, remote.Record{"id": "f1", "status": "em_andamento"})
	seedLocal(t, db, models.EntityUnidadeFiscalizada, remote.Record{
		"id": "u1", "fiscalizacao_id": "f1", "tipo_unidade_id": "eta", "status": "em_andamento",
	})
	seedLocal(t, db, models.EntityItemChecklist, remote.Record{
		"id": "i1", "tipo_unidade_id": "eta", "ordem": 1,
		"pergunta":              "Possui outorga?",
		"texto_constatacao_nao": "Não possui outorga.",
		"gera_nc":               true,
		"texto_nc":              "Operação sem outorga.",
		"texto_determinacao":    "Providenciar a outorga.",
		"prazo_dias":            30,
	})
	// The unit and inspection already exist remotely; only the new
	// cascade records are pending.
	store.Seed(models.EntityFiscalizacao, remote.Record{"id": "f1", "status": "em_andamento"})
	store.Seed(models.EntityUnidadeFiscalizada, remote.Record{
		"id": "u1", "fiscalizacao_id": "f1", "tipo_unidade_id": "eta", "status": "em_andamento",
	})

	app := cascade.NewApplier(f, nil)
	saved, err := app.AnswerItem(ctx, cascade.AnswerInput{
		UnidadeFiscalizadaID: "u1",
		ItemChecklistID:      "i1",
		Resposta:             models.RespostaNao,
	})
	if err != nil {
		t.Fatalf("offline AnswerItem: %v", err)
	}
	if saved.NumeroConstatacao == nil || *saved.NumeroConstatacao != "C1" {
		t.Fatalf("numero = %v", saved.NumeroConstatacao)
	}
	if store.Count(models.EntityNaoConformidade) != 0 {
		t.Fatal("nothing must reach the remote while offline")
	}
	pending, err := syncqueue.PendingCount(db)
	if err != nil || pending != 3 {
		t.Fatalf("pending = %d err=%v, want answer+NC+determinação", pending, err)
	}

	conn.SetOnline(true)
	mgr := syncqueue.NewManager(db, store, conn, nil, time.Second)
	synced, err := mgr.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if synced != 3 {
		t.Fatalf("synced = %d, want 3", synced)
	}

	ncRecs, _ := store.Filter(ctx, models.EntityNaoConformidade, remote.Record{"numero_nc": "NC1"}, "", 0)
	if len(ncRecs) != 1 {
		t.Fatalf("remote NC count = %d", len(ncRecs))
	}
	detRecs, _ := store.Filter(ctx, models.EntityDeterminacao, remote.Record{"numero_determinacao": "D1"}, "", 0)
	if len(detRecs) != 1 {
		t.Fatalf("remote determinação count = %d", len(detRecs))
	}
	if detRecs[0]["nao_conformidade_id"] != remote.RecordID(ncRecs[0]) {
		t.Fatalf("determinação references %v, want the NC's remote id %s",
			detRecs[0]["nao_conformidade_id"], remote.RecordID(ncRecs[0]))
	}
}

// A cascade created offline survives the drain's re-keying: retracting
// the answer afterwards must still find the NC through the answer's new
// remote id and tear the lineage down on both sides.
func TestOfflineCascade_RetractionAfterDrain(t *testing.T) {
	f, store, db, conn := newFacade(t, false)
	ctx := context.Background()

	item := remote.Record{
		"id": "i1", "tipo_unidade_id": "eta", "ordem": 1,
		"pergunta":              "Possui outorga?",
		"texto_constatacao_sim": "Possui outorga.",
		"texto_constatacao_nao": "Não possui outorga.",
		"gera_nc":               true,
		"texto_nc":              "Operação sem outorga.",
		"texto_determinacao":    "Providenciar a outorga.",
	}
	seedLocal(t, db, models.EntityFiscalizacao, remote.Record{"id": "f1", "status": "em_andamento"})
	seedLocal(t, db, models.EntityUnidadeFiscalizada, remote.Record{
		"id": "u1", "fiscalizacao_id": "f1", "tipo_unidade_id": "eta", "status": "em_andamento",
	})
	seedLocal(t, db, models.EntityItemChecklist, item)
	store.Seed(models.EntityFiscalizacao, remote.Record{"id": "f1", "status": "em_andamento"})
	store.Seed(models.EntityUnidadeFiscalizada, remote.Record{
		"id": "u1", "fiscalizacao_id": "f1", "tipo_unidade_id": "eta", "status": "em_andamento",
	})
	store.Seed(models.EntityItemChecklist, item)

	app := cascade.NewApplier(f, nil)
	if _, err := app.AnswerItem(ctx, cascade.AnswerInput{
		UnidadeFiscalizadaID: "u1", ItemChecklistID: "i1", Resposta: models.RespostaNao,
	}); err != nil {
		t.Fatalf("offline AnswerItem: %v", err)
	}

	conn.SetOnline(true)
	mgr := syncqueue.NewManager(db, store, conn, nil, time.Second)
	if _, err := mgr.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	if _, err := app.AnswerItem(ctx, cascade.AnswerInput{
		UnidadeFiscalizadaID: "u1", ItemChecklistID: "i1", Resposta: models.RespostaSim,
	}); err != nil {
		t.Fatalf("retraction AnswerItem: %v", err)
	}

	var ncs, dets int64
	db.Model(&models.NaoConformidade{}).Count(&ncs)
	db.Model(&models.Determinacao{}).Count(&dets)
	if ncs != 0 || dets != 0 {
		t.Fatalf("retraction left local lineage behind: NCs=%d Dets=%d", ncs, dets)
	}

	// The queued deletes reach the remote on the next drain.
	if _, err := mgr.Drain(ctx); err != nil {
		t.Fatalf("second Drain: %v", err)
	}
	if store.Count(models.EntityNaoConformidade) != 0 || store.Count(models.EntityDeterminacao) != 0 {
		t.Fatalf("remote lineage survived: NCs=%d Dets=%d",
			store.Count(models.EntityNaoConformidade), store.Count(models.EntityDeterminacao))
	}
}
