package numbering

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/agemsdev/fiscaliza_backend/config"
	"bitbucket.org/agemsdev/fiscaliza_backend/models"
	"bitbucket.org/agemsdev/fiscaliza_backend/remote"
	"github.com/sirupsen/logrus"
)

const moduleName = "numbering"

// Offsets holds, per record family, how many numbers earlier units of
// the same inspection already consumed. A unit starting at Offsets{C: 8}
// issues C9 first.
type Offsets struct {
	C  int
	NC int
	D  int
	R  int
}

// OffsetAggregator computes a unit's starting offsets from its earlier
// siblings. C and NC come from the totals each unit snapshots when it
// is finalized; D and R have no snapshot and are counted per unit.
type OffsetAggregator struct {
	Store       remote.Store
	Logger      *logrus.Logger
	MaxAttempts int
	BaseDelay   time.Duration
}

func NewOffsetAggregator(store remote.Store, logger *logrus.Logger) *OffsetAggregator {
	return &OffsetAggregator{
		Store:       store,
		Logger:      logger,
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
	}
}

// ComputeOffsets sums the contribution of every finalized unit created
// before unidadeID within the inspection. In-progress siblings count
// zero regardless of their partial content; their numbers only become
// visible to later units once they are finalized.
func (a *OffsetAggregator) ComputeOffsets(ctx context.Context, fiscalizacaoID, unidadeID string) (Offsets, error) {
	recs, err := a.filterRetry(ctx, models.EntityUnidadeFiscalizada,
		remote.Record{"fiscalizacao_id": fiscalizacaoID}, "created_at", 0)
	if err != nil {
		return Offsets{}, fmt.Errorf("listar unidades da fiscalização: %w", err)
	}
	unidades, err := remote.DecodeSlice[models.UnidadeFiscalizada](recs)
	if err != nil {
		return Offsets{}, err
	}

	var offsets Offsets
	found := false
	for i := range unidades {
		u := &unidades[i]
		if u.ID == unidadeID {
			found = true
			break
		}
		if !u.Finalizada() {
			continue
		}
		offsets.C += u.TotalConstatacoes
		offsets.NC += u.TotalNCs

		d, err := a.countRetry(ctx, models.EntityDeterminacao, u.ID)
		if err != nil {
			return Offsets{}, fmt.Errorf("contar determinações da unidade %s: %w", u.ID, err)
		}
		r, err := a.countRetry(ctx, models.EntityRecomendacao, u.ID)
		if err != nil {
			return Offsets{}, fmt.Errorf("contar recomendações da unidade %s: %w", u.ID, err)
		}
		offsets.D += d
		offsets.R += r
	}
	// Only units strictly before unidadeID may contribute. If the unit
	// is not in the listing at all, the sum would silently cover every
	// sibling, later ones included.
	if !found {
		return Offsets{}, fmt.Errorf("unidade %s não encontrada na fiscalização %s", unidadeID, fiscalizacaoID)
	}
	return offsets, nil
}

func (a *OffsetAggregator) countRetry(ctx context.Context, entity models.EntityName, unidadeID string) (int, error) {
	recs, err := a.filterRetry(ctx, entity, remote.Record{"unidade_fiscalizada_id": unidadeID}, "", 0)
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

func (a *OffsetAggregator) filterRetry(ctx context.Context, entity models.EntityName, filter remote.Record, sort string, limit int) ([]remote.Record, error) {
	attempts := a.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := a.BaseDelay * (1 << uint(attempt-1))
			if delay > 10*time.Second {
				delay = 10 * time.Second
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		recs, err := a.Store.Filter(ctx, entity, filter, sort, limit)
		if err == nil {
			return recs, nil
		}
		lastErr = err
		if a.Logger != nil {
			config.LogError(a.Logger, moduleName, "filterRetry",
				fmt.Sprintf("attempt %d/%d for %s", attempt+1, attempts, entity),
				filter, err)
		}
	}
	return nil, lastErr
}
