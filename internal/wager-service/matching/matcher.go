package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/radieske/wager-platform/internal/wager-service/domain"
	"github.com/radieske/wager-platform/internal/wager-service/repo"
)

// DefaultScanLimit é quantas candidatas são avaliadas por criação
const DefaultScanLimit = 20

// Matcher pareia uma aposta recém-criada com a PENDING compatível mais antiga (FIFO).
type Matcher struct {
	scanLimit int
}

func New(scanLimit int) *Matcher {
	if scanLimit <= 0 {
		scanLimit = DefaultScanLimit
	}
	return &Matcher{scanLimit: scanLimit}
}

// Match é o par resultante: Offer é a aposta mais antiga, Taker a recém-criada.
type Match struct {
	Offer *domain.Wager
	Taker *domain.Wager
}

// TryMatch procura uma contraparte para w (já inserida como PENDING na mesma transação).
// Sem candidata válida devolve (nil, nil) e w continua PENDING.
func (m *Matcher) TryMatch(ctx context.Context, tx repo.Tx, w *domain.Wager, now time.Time) (*Match, error) {
	candidates, err := tx.FindPendingForMatch(ctx, repo.PendingQuery{
		GameType:         w.GameType,
		Points:           w.Points,
		ExcludeCreatorID: w.CreatorID,
		Now:              now,
		Limit:            m.scanLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("find pending wagers: %w", err)
	}

	for _, c := range candidates {
		// nunca parear com a própria conta, mesmo que o store devolva
		if c.ID == w.ID || c.CreatorID == w.CreatorID {
			continue
		}
		if c.Status != domain.StatusPending || c.IsPaired() || c.IsExpired(now) {
			continue
		}

		offer, taker := c.Clone(), w.Clone()
		if err := Link(offer, taker, now); err != nil {
			return nil, err
		}
		if err := tx.UpdateWager(ctx, offer, domain.StatusPending); err != nil {
			// perdeu a corrida para outra transação: tenta a próxima
			if errors.Is(err, domain.ErrStaleWager) {
				continue
			}
			return nil, fmt.Errorf("link offer %s: %w", offer.ID, err)
		}
		if err := tx.UpdateWager(ctx, taker, domain.StatusPending); err != nil {
			return nil, fmt.Errorf("link taker %s: %w", taker.ID, err)
		}
		return &Match{Offer: offer, Taker: taker}, nil
	}
	return nil, nil
}

// Link liga as duas apostas (counterpart simétrico) e move ambas para ACCEPTED.
func Link(offer, taker *domain.Wager, now time.Time) error {
	if offer.CreatorID == taker.CreatorID {
		return fmt.Errorf("%w: cannot pair wagers of the same account", domain.ErrWagerUnavailable)
	}
	if offer.Points != taker.Points || offer.GameType != taker.GameType {
		return fmt.Errorf("%w: stake or game type differ", domain.ErrWagerUnavailable)
	}
	for _, w := range []*domain.Wager{offer, taker} {
		if err := w.Transition(domain.StatusAccepted); err != nil {
			return err
		}
		w.UpdatedAt = now
	}
	offer.Side = domain.SideCreator
	taker.Side = domain.SideAcceptor
	offer.CounterpartID = domain.Ptr(taker.ID)
	taker.CounterpartID = domain.Ptr(offer.ID)
	return nil
}
