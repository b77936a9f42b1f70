package repo

import (
	"context"
	"time"

	"github.com/radieske/wager-platform/internal/wager-service/domain"
)

// Store é a persistência de contas, ledger e apostas.
// Toda transição do motor roda dentro de um único InTx.
type Store interface {
	// InTx executa fn numa transação; qualquer erro desfaz tudo.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	GetWager(ctx context.Context, id string) (*domain.Wager, error)
	ListActiveForAccount(ctx context.Context, accountID string) ([]*domain.Wager, error)
	ListEntries(ctx context.Context, accountID string, limit int) ([]domain.LedgerEntry, error)
	// ListExpired retorna apostas do lado CREATOR em PENDING/ACCEPTED com ExpiresAt <= now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Wager, error)
	Ping(ctx context.Context) error
}

// PendingQuery filtra candidatas ao pareamento automático.
type PendingQuery struct {
	GameType         string
	Points           int64
	ExcludeCreatorID string
	Now              time.Time
	Limit            int
}

// Tx é a visão transacional usada por ledger, matching, resolution e engine.
type Tx interface {
	CreateAccount(ctx context.Context, a *domain.Account) error
	// LockAccounts trava as contas em ordem crescente de id e devolve na ordem pedida.
	LockAccounts(ctx context.Context, ids ...string) ([]*domain.Account, error)
	// AddPoints aplica delta em AvailablePoints e devolve o novo saldo.
	AddPoints(ctx context.Context, accountID string, delta int64) (int64, error)
	IncrementRecord(ctx context.Context, accountID string, wins, losses int) error
	AppendEntry(ctx context.Context, e *domain.LedgerEntry) error

	InsertWager(ctx context.Context, w *domain.Wager) error
	// LockWagers trava as apostas em ordem crescente de id e devolve na ordem pedida.
	LockWagers(ctx context.Context, ids ...string) ([]*domain.Wager, error)
	// FindPendingForMatch devolve candidatas PENDING mais antigas primeiro, já travadas.
	FindPendingForMatch(ctx context.Context, q PendingQuery) ([]*domain.Wager, error)
	// UpdateWager grava w somente se o status salvo ainda for expected (CAS).
	UpdateWager(ctx context.Context, w *domain.Wager, expected domain.Status) error
}
