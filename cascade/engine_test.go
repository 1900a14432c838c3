package cascade_test

import (
	"strings"
	"testing"
	"time"

	"bitbucket.org/agemsdev/fiscaliza_backend/cascade"
	"bitbucket.org/agemsdev/fiscaliza_backend/models"
)

func TestDecide(t *testing.T) {
	itemComNC := &models.ItemChecklist{GeraNC: true, TextoNC: "Falta de outorga."}
	itemSemTemplate := &models.ItemChecklist{GeraNC: true}
	itemSemFlag := &models.ItemChecklist{GeraNC: false, TextoNC: "Falta de outorga."}

	cases := []struct {
		name     string
		item     *models.ItemChecklist
		resposta models.RespostaValor
		ncExists bool
		want     cascade.Action
	}{
		{"nao with flag and template creates", itemComNC, models.RespostaNao, false, cascade.ActionCreateNC},
		{"nao with nc already persisted is noop", itemComNC, models.RespostaNao, true, cascade.ActionNone},
		{"sim retracts persisted nc", itemComNC, models.RespostaSim, true, cascade.ActionDeleteNC},
		{"na retracts persisted nc", itemComNC, models.RespostaNA, true, cascade.ActionDeleteNC},
		{"sim without nc is noop", itemComNC, models.RespostaSim, false, cascade.ActionNone},
		{"nao without template never creates", itemSemTemplate, models.RespostaNao, false, cascade.ActionNone},
		{"nao without flag never creates", itemSemFlag, models.RespostaNao, false, cascade.ActionNone},
		{"flag removed retracts", itemSemFlag, models.RespostaNao, true, cascade.ActionDeleteNC},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := cascade.Decide(tc.item, tc.resposta, tc.ncExists)
			if got != tc.want {
				t.Fatalf("Decide = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestConstatacaoText(t *testing.T) {
	item := &models.ItemChecklist{
		Pergunta:            "Possui outorga vigente?",
		TextoConstatacaoSim: "A unidade possui outorga vigente.",
		TextoConstatacaoNao: "A unidade não possui outorga vigente.",
	}
	if got := cascade.ConstatacaoText(item, models.RespostaSim); got != "A unidade possui outorga vigente." {
		t.Fatalf("SIM text = %q", got)
	}
	if got := cascade.ConstatacaoText(item, models.RespostaNao); got != "A unidade não possui outorga vigente." {
		t.Fatalf("NAO text = %q", got)
	}
	if got := cascade.ConstatacaoText(item, models.RespostaNA); got != "" {
		t.Fatalf("NA must produce no text, got %q", got)
	}

	// Without a per-answer template the question itself stands in,
	// minus the trailing question mark.
	semTemplate := &models.ItemChecklist{Pergunta: "Possui outorga vigente?"}
	if got := cascade.ConstatacaoText(semTemplate, models.RespostaNao); got != "Possui outorga vigente" {
		t.Fatalf("fallback text = %q", got)
	}
}

func TestComposeNonConformityText(t *testing.T) {
	got := cascade.ComposeNonConformityText("C7", "art. 12 da Portaria 45/2020", "Sistema opera sem outorga.")
	want := "A Constatação C7 não cumpre o disposto no art. 12 da Portaria 45/2020. Sistema opera sem outorga."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	semTemplate := cascade.ComposeNonConformityText("C7", "art. 12", "")
	if semTemplate != "A Constatação C7 não cumpre o disposto no art. 12." {
		t.Fatalf("without template = %q", semTemplate)
	}

	semArtigo := cascade.ComposeNonConformityText("C7", "", "")
	if !strings.Contains(semArtigo, "regulamento aplicável") {
		t.Fatalf("missing article placeholder: %q", semArtigo)
	}
	if !strings.Contains(semArtigo, "C7") {
		t.Fatalf("description must embed the constatação number: %q", semArtigo)
	}
}

func TestComposeDeterminationText(t *testing.T) {
	got := cascade.ComposeDeterminationText("NC3", "Providenciar a outorga junto ao órgão gestor.")
	want := "Para sanar NC3, providenciar a outorga junto ao órgão gestor."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	// First rune lower-cased even when it is accented.
	acentuado := cascade.ComposeDeterminationText("NC3", "Órgão gestor deve ser notificado.")
	if !strings.HasPrefix(acentuado, "Para sanar NC3, órgão") {
		t.Fatalf("got %q", acentuado)
	}

	fallback := cascade.ComposeDeterminationText("NC3", "")
	if fallback != "Para sanar NC3, regularizar a situação identificada" {
		t.Fatalf("fallback = %q", fallback)
	}
}

func TestDueDate(t *testing.T) {
	base := time.Date(2026, 3, 10, 15, 4, 5, 0, time.UTC)
	if got := cascade.DueDate(base, 30); got != "2026-04-09" {
		t.Fatalf("30 dias = %q", got)
	}
	// Calendar days, no business-day logic: lands on whatever weekday.
	if got := cascade.DueDate(base, 5); got != "2026-03-15" {
		t.Fatalf("5 dias = %q", got)
	}
	if got := cascade.DueDate(base, 0); got != "2026-04-09" {
		t.Fatalf("default prazo = %q", got)
	}
}
