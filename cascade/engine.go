// Package cascade derives non-conformities, determinations and
// recommendations from inspection answers, both incrementally (one
// answer at a time) and in bulk at unit finalize.
package cascade

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"bitbucket.org/agemsdev/fiscaliza_backend/models"
)

// Action is what one answer state transition requires of the NC layer.
type Action int

const (
	ActionNone Action = iota
	ActionCreateNC
	ActionDeleteNC
)

// Decide maps the (answer, item config, current NC existence) triple to
// the cascade action. Creating requires a NAO answer on an item flagged
// gera_nc with a usable NC template; anything else while an NC exists
// retracts it.
func Decide(item *models.ItemChecklist, resposta models.RespostaValor, ncExists bool) Action {
	wantsNC := resposta == models.RespostaNao && item.GeraNC && item.HasTextoNC()
	switch {
	case wantsNC && !ncExists:
		return ActionCreateNC
	case !wantsNC && ncExists:
		return ActionDeleteNC
	}
	return ActionNone
}

// ConstatacaoText composes the finding text snapshot for an answer.
// SIM and NAO use the item's per-answer template; with no template the
// question itself, minus a trailing question mark, stands in. NA never
// produces text (and therefore never consumes a number).
func ConstatacaoText(item *models.ItemChecklist, resposta models.RespostaValor) string {
	var template string
	switch resposta {
	case models.RespostaSim:
		template = item.TextoConstatacaoSim
	case models.RespostaNao:
		template = item.TextoConstatacaoNao
	default:
		return ""
	}
	if t := strings.TrimSpace(template); t != "" {
		return t
	}
	return strings.TrimSuffix(strings.TrimSpace(item.Pergunta), "?")
}

// ComposeNonConformityText builds an NC description that always embeds
// the originating constatação number.
func ComposeNonConformityText(numeroConstatacao, artigo, template string) string {
	if strings.TrimSpace(artigo) == "" {
		artigo = "regulamento aplicável"
	}
	base := fmt.Sprintf("A Constatação %s não cumpre o disposto no %s.", numeroConstatacao, artigo)
	if t := strings.TrimSpace(template); t != "" {
		return base + " " + t
	}
	return base
}

// ComposeDeterminationText builds a determination description that
// embeds the NC number it sanitizes. The template's first letter is
// lower-cased so it reads as a continuation of the sentence.
func ComposeDeterminationText(numeroNC, template string) string {
	t := strings.TrimSpace(template)
	if t == "" {
		t = "regularizar a situação identificada"
	} else {
		r, size := utf8.DecodeRuneInString(t)
		t = string(unicode.ToLower(r)) + t[size:]
	}
	return fmt.Sprintf("Para sanar %s, %s", numeroNC, t)
}

// DueDate is today + prazoDias calendar days, date only. Zero or
// negative prazo falls back to the 30-day default.
func DueDate(now time.Time, prazoDias int) string {
	if prazoDias <= 0 {
		prazoDias = 30
	}
	return now.AddDate(0, 0, prazoDias).Format("2006-01-02")
}
