package cascade

import "context"

// RenumberUnit compacts the unit's constatação numbers back into a
// contiguous run from the cross-unit offset, answers in item order then
// manual findings by ordering key. Gaps left by deletions are tolerated
// during normal operation; this is the explicit opt-in compaction, it
// never runs automatically.
//
// Derived NC/D/R records are NOT touched here: their descriptions keep
// the numbers they were composed with. A finalize run regenerates them
// against the fresh numbers.
func (a *Applier) RenumberUnit(ctx context.Context, unidadeID string) (int, error) {
	unidade, err := a.checkLock(ctx, unidadeID)
	if err != nil {
		return 0, err
	}
	offsets, err := a.Offsets.ComputeOffsets(ctx, unidade.FiscalizacaoID, unidade.ID)
	if err != nil {
		return 0, err
	}
	rows, err := a.loadUnitRows(ctx, unidade)
	if err != nil {
		return 0, err
	}
	return a.renumberFindings(ctx, rows, offsets.C)
}
