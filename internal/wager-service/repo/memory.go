package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/radieske/wager-platform/internal/wager-service/domain"
)

// Memory é um Store em memória para ambiente local e testes.
// Um único escritor por vez; cada InTx grava num overlay descartado em caso de erro.
type Memory struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
	wagers   map[string]*domain.Wager
	entries  []domain.LedgerEntry
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]*domain.Account),
		wagers:   make(map[string]*domain.Wager),
	}
}

// InTx serializa as transações e só aplica o overlay se fn retornar nil.
func (m *Memory) InTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		m:        m,
		accounts: make(map[string]*domain.Account),
		wagers:   make(map[string]*domain.Wager),
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (m *Memory) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *Memory) GetWager(_ context.Context, id string) (*domain.Wager, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.wagers[id]
	if !ok {
		return nil, domain.ErrWagerNotFound
	}
	return w.Clone(), nil
}

func (m *Memory) ListActiveForAccount(_ context.Context, accountID string) ([]*domain.Wager, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Wager
	for _, w := range m.wagers {
		if w.CreatorID == accountID && w.Status.IsActive() {
			out = append(out, w.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i], out[j]) })
	return out, nil
}

func (m *Memory) ListEntries(_ context.Context, accountID string, limit int) ([]domain.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.LedgerEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if (e.FromAccountID != nil && *e.FromAccountID == accountID) ||
			(e.ToAccountID != nil && *e.ToAccountID == accountID) {
			out = append(out, e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) ListExpired(_ context.Context, now time.Time, limit int) ([]*domain.Wager, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Wager
	for _, w := range m.wagers {
		if w.Side != domain.SideCreator {
			continue
		}
		if w.Status != domain.StatusPending && w.Status != domain.StatusAccepted {
			continue
		}
		if w.IsExpired(now) {
			out = append(out, w.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return olderFirst(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// memTx guarda cópias das linhas tocadas; nada chega ao Memory antes do commit.
type memTx struct {
	m        *Memory
	accounts map[string]*domain.Account
	wagers   map[string]*domain.Wager
	entries  []domain.LedgerEntry
}

func (t *memTx) account(id string) (*domain.Account, error) {
	if a, ok := t.accounts[id]; ok {
		return a, nil
	}
	a, ok := t.m.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}
	cp := *a
	t.accounts[id] = &cp
	return &cp, nil
}

func (t *memTx) wager(id string) (*domain.Wager, error) {
	if w, ok := t.wagers[id]; ok {
		return w, nil
	}
	w, ok := t.m.wagers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrWagerNotFound, id)
	}
	cp := w.Clone()
	t.wagers[id] = cp
	return cp, nil
}

func (t *memTx) CreateAccount(_ context.Context, a *domain.Account) error {
	if _, ok := t.accounts[a.ID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrAccountExists, a.ID)
	}
	if _, ok := t.m.accounts[a.ID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrAccountExists, a.ID)
	}
	cp := *a
	t.accounts[a.ID] = &cp
	return nil
}

func (t *memTx) LockAccounts(_ context.Context, ids ...string) ([]*domain.Account, error) {
	out := make([]*domain.Account, len(ids))
	for i, id := range ids {
		a, err := t.account(id)
		if err != nil {
			return nil, err
		}
		cp := *a
		out[i] = &cp
	}
	return out, nil
}

func (t *memTx) AddPoints(_ context.Context, accountID string, delta int64) (int64, error) {
	a, err := t.account(accountID)
	if err != nil {
		return 0, err
	}
	// equivalente ao CHECK (available_points >= 0) do Postgres
	if a.AvailablePoints+delta < 0 {
		return 0, fmt.Errorf("%w: account %s", domain.ErrInsufficientFunds, accountID)
	}
	a.AvailablePoints += delta
	a.UpdatedAt = time.Now().UTC()
	return a.AvailablePoints, nil
}

func (t *memTx) IncrementRecord(_ context.Context, accountID string, wins, losses int) error {
	a, err := t.account(accountID)
	if err != nil {
		return err
	}
	a.Wins += wins
	a.Losses += losses
	return nil
}

func (t *memTx) AppendEntry(_ context.Context, e *domain.LedgerEntry) error {
	t.entries = append(t.entries, *e)
	return nil
}

func (t *memTx) InsertWager(_ context.Context, w *domain.Wager) error {
	if _, ok := t.wagers[w.ID]; ok {
		return fmt.Errorf("wager %s already exists", w.ID)
	}
	if _, ok := t.m.wagers[w.ID]; ok {
		return fmt.Errorf("wager %s already exists", w.ID)
	}
	t.wagers[w.ID] = w.Clone()
	return nil
}

func (t *memTx) LockWagers(_ context.Context, ids ...string) ([]*domain.Wager, error) {
	out := make([]*domain.Wager, len(ids))
	for i, id := range ids {
		w, err := t.wager(id)
		if err != nil {
			return nil, err
		}
		out[i] = w.Clone()
	}
	return out, nil
}

func (t *memTx) FindPendingForMatch(_ context.Context, q PendingQuery) ([]*domain.Wager, error) {
	seen := make(map[string]bool)
	var out []*domain.Wager
	consider := func(w *domain.Wager) {
		if seen[w.ID] {
			return
		}
		seen[w.ID] = true
		if w.Status != domain.StatusPending || w.IsPaired() {
			return
		}
		if w.GameType != q.GameType || w.Points != q.Points || w.CreatorID == q.ExcludeCreatorID {
			return
		}
		if w.IsExpired(q.Now) {
			return
		}
		out = append(out, w.Clone())
	}
	for _, w := range t.wagers {
		consider(w)
	}
	for _, w := range t.m.wagers {
		consider(w)
	}
	sort.Slice(out, func(i, j int) bool { return olderFirst(out[i], out[j]) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (t *memTx) UpdateWager(_ context.Context, w *domain.Wager, expected domain.Status) error {
	cur, err := t.wager(w.ID)
	if err != nil {
		return err
	}
	if cur.Status != expected {
		return fmt.Errorf("%w: %s is %s, expected %s", domain.ErrStaleWager, w.ID, cur.Status, expected)
	}
	t.wagers[w.ID] = w.Clone()
	return nil
}

func (t *memTx) commit() {
	for id, a := range t.accounts {
		t.m.accounts[id] = a
	}
	for id, w := range t.wagers {
		t.m.wagers[id] = w
	}
	t.m.entries = append(t.m.entries, t.entries...)
}

func olderFirst(a, b *domain.Wager) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func newerFirst(a, b *domain.Wager) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
