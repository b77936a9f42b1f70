package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/wager-platform/internal/wager-service/domain"
	"github.com/radieske/wager-platform/internal/wager-service/repo"
)

// Ledger é o único caminho de escrita de saldo.
// Toda mudança de saldo grava exatamente uma LedgerEntry na mesma transação.
type Ledger struct {
	now   func() time.Time
	newID func() string
}

// New cria um Ledger sem estado próprio além do relógio e gerador de ids
func New() *Ledger {
	return &Ledger{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// WithClock troca o relógio (usado em testes e pelo engine)
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	return &Ledger{now: now, newID: l.newID}
}

// Reserve debita o stake do saldo disponível (escrow por débito direto)
func (l *Ledger) Reserve(ctx context.Context, tx repo.Tx, accountID string, amount int64, wagerID string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: reserve amount must be positive", domain.ErrInvalidInput)
	}
	accs, err := tx.LockAccounts(ctx, accountID)
	if err != nil {
		return err
	}
	if accs[0].AvailablePoints < amount {
		return fmt.Errorf("%w: need %d, have %d", domain.ErrInsufficientFunds, amount, accs[0].AvailablePoints)
	}
	if _, err := tx.AddPoints(ctx, accountID, -amount); err != nil {
		return fmt.Errorf("reserve: %w", err)
	}
	return l.append(ctx, tx, &domain.LedgerEntry{
		FromAccountID: domain.Ptr(accountID),
		Points:        amount,
		Type:          domain.EntryCreation,
		WagerID:       domain.Ptr(wagerID),
		Description:   "stake reserved",
	})
}

// Release devolve um stake (cancelamento ou reembolso)
func (l *Ledger) Release(ctx context.Context, tx repo.Tx, accountID string, amount int64, wagerID string) error {
	return l.credit(ctx, tx, accountID, amount, domain.EntryRefund, wagerID, "stake refunded")
}

// Award credita o prêmio (o chamador passa 2 x stake)
func (l *Ledger) Award(ctx context.Context, tx repo.Tx, winnerID string, amount int64, wagerID string) error {
	return l.credit(ctx, tx, winnerID, amount, domain.EntryWin, wagerID, "wager won")
}

// Adjust é o ajuste manual do admin (depósito de pontos ou estorno)
func (l *Ledger) Adjust(ctx context.Context, tx repo.Tx, accountID string, delta int64, description string) (int64, error) {
	if delta == 0 {
		return 0, fmt.Errorf("%w: adjustment must be non-zero", domain.ErrInvalidInput)
	}
	accs, err := tx.LockAccounts(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if accs[0].AvailablePoints+delta < 0 {
		return 0, fmt.Errorf("%w: balance %d, delta %d", domain.ErrNegativeAdjustment, accs[0].AvailablePoints, delta)
	}
	balance, err := tx.AddPoints(ctx, accountID, delta)
	if err != nil {
		return 0, fmt.Errorf("adjust: %w", err)
	}

	e := &domain.LedgerEntry{Type: domain.EntryManualAdjustment, Description: description}
	if delta > 0 {
		e.ToAccountID, e.Points = domain.Ptr(accountID), delta
	} else {
		e.FromAccountID, e.Points = domain.Ptr(accountID), -delta
	}
	if err := l.append(ctx, tx, e); err != nil {
		return 0, err
	}
	return balance, nil
}

// RecordOutcome atualiza os contadores de vitórias/derrotas
func (l *Ledger) RecordOutcome(ctx context.Context, tx repo.Tx, winnerID, loserID string) error {
	if err := tx.IncrementRecord(ctx, winnerID, 1, 0); err != nil {
		return err
	}
	return tx.IncrementRecord(ctx, loserID, 0, 1)
}

func (l *Ledger) credit(ctx context.Context, tx repo.Tx, accountID string, amount int64, typ domain.EntryType, wagerID, desc string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: credit amount must be positive", domain.ErrInvalidInput)
	}
	if _, err := tx.AddPoints(ctx, accountID, amount); err != nil {
		return fmt.Errorf("%s: %w", typ, err)
	}
	return l.append(ctx, tx, &domain.LedgerEntry{
		ToAccountID: domain.Ptr(accountID),
		Points:      amount,
		Type:        typ,
		WagerID:     domain.Ptr(wagerID),
		Description: desc,
	})
}

func (l *Ledger) append(ctx context.Context, tx repo.Tx, e *domain.LedgerEntry) error {
	e.ID = l.newID()
	e.CreatedAt = l.now()
	if err := tx.AppendEntry(ctx, e); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}
