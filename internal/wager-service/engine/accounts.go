package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/radieske/wager-platform/internal/wager-service/domain"
	"github.com/radieske/wager-platform/internal/wager-service/repo"
)

const (
	maxAccountIDLen    = 64
	defaultEntriesPage = 50
	maxEntriesPage     = 500
)

// OpenAccount cria uma conta com saldo zero. Sem id, gera um.
func (e *Engine) OpenAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		accountID = e.opts.NewID()
	}
	if len(accountID) > maxAccountIDLen {
		return nil, e.fail("open_account", fmt.Errorf("%w: account id too long", domain.ErrInvalidInput))
	}

	var out *domain.Account
	err := e.run(ctx, "open_account", func(tx repo.Tx, rec *recorder) error {
		a := &domain.Account{ID: accountID, CreatedAt: rec.at, UpdatedAt: rec.at}
		if err := tx.CreateAccount(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AdjustAccount credita (delta > 0) ou debita pontos manualmente.
func (e *Engine) AdjustAccount(ctx context.Context, accountID string, delta int64, description string) (*domain.Account, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		description = "manual adjustment"
	}
	if len(description) > maxReasonLen {
		return nil, e.fail("adjust", fmt.Errorf("%w: description too long", domain.ErrInvalidInput))
	}

	err := e.run(ctx, "adjust", func(tx repo.Tx, rec *recorder) error {
		if _, err := e.ledger.Adjust(ctx, tx, accountID, delta, description); err != nil {
			return err
		}
		moved := delta
		if moved < 0 {
			moved = -moved
		}
		rec.points(domain.EntryManualAdjustment, moved)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e.store.GetAccount(ctx, accountID)
}

func (e *Engine) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return e.store.GetAccount(ctx, id)
}

// ListEntries devolve o extrato da conta, mais recentes primeiro.
func (e *Engine) ListEntries(ctx context.Context, accountID string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = defaultEntriesPage
	}
	if limit > maxEntriesPage {
		limit = maxEntriesPage
	}
	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return e.store.ListEntries(ctx, accountID, limit)
}
