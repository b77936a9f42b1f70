package engine

import (
	"context"
	"fmt"

	"github.com/radieske/wager-platform/internal/wager-service/domain"
	"github.com/radieske/wager-platform/internal/wager-service/repo"
)

// lockPair trava a aposta e sua contraparte. hint é a contraparte lida antes da
// transação; com ela as duas linhas são travadas juntas, em ordem de id.
func lockPair(ctx context.Context, tx repo.Tx, wagerID, hint string) (*domain.Wager, *domain.Wager, error) {
	ids := []string{wagerID}
	if hint != "" && hint != wagerID {
		ids = append(ids, hint)
	}
	ws, err := tx.LockWagers(ctx, ids...)
	if err != nil {
		return nil, nil, err
	}
	self := ws[0]
	if !self.IsPaired() {
		return self, nil, nil
	}

	var other *domain.Wager
	if len(ws) > 1 && ws[1].ID == self.Counterpart() {
		other = ws[1]
	} else {
		// pareada depois da leitura do hint
		more, err := tx.LockWagers(ctx, self.Counterpart())
		if err != nil {
			return nil, nil, fmt.Errorf("counterpart of %s: %w", self.ID, err)
		}
		other = more[0]
	}
	if other.Counterpart() != self.ID {
		return nil, nil, fmt.Errorf("wager %s and %s are not linked to each other", self.ID, other.ID)
	}
	return self, other, nil
}

// requirePair confere o status dos dois lados e devolve o par (um elemento se
// a aposta ainda não foi pareada). Só PENDING pode estar sem contraparte.
func requirePair(op string, self, other *domain.Wager, allowed ...domain.Status) ([]*domain.Wager, error) {
	if err := domain.RequireStatus(op, self, allowed...); err != nil {
		return nil, err
	}
	if other == nil {
		if self.Status != domain.StatusPending {
			return nil, fmt.Errorf("%w: wager %s has no counterpart", domain.ErrInvalidWagerState, self.ID)
		}
		return []*domain.Wager{self}, nil
	}
	if other.Status != self.Status {
		return nil, &domain.StateError{Op: op, WagerID: other.ID, Status: other.Status, Allowed: []domain.Status{self.Status}}
	}
	return []*domain.Wager{self, other}, nil
}
