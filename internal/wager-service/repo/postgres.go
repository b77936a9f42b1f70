package repo

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq"

	"github.com/radieske/wager-platform/internal/wager-service/domain"
)

//go:embed schema.sql
var schemaSQL string

// Códigos Postgres tratados explicitamente
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgCheckViolation       = "23514"
)

const wagerColumns = `id, creator_id, points, game_type, title, description, status, side, counterpart_id,
	shared_code, self_result, self_submitted, evidence_ref, winner_id, dispute_reason, cancel_reason,
	resolution_notes, created_at, expires_at, code_shared_at, completed_at, updated_at`

const accountColumns = `id, available_points, held_points, wins, losses, created_at, updated_at`

// Postgres implementa o Store em banco Postgres
// Linhas são travadas com SELECT ... FOR UPDATE sempre em ordem crescente de id
type Postgres struct {
	db         *sql.DB
	maxRetries int
}

// NewPostgres retorna o store; deadlocks e falhas de serialização são repetidos até 3 vezes
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db, maxRetries: 3} }

// Migrate aplica o schema (idempotente)
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// InTx abre a transação, executa fn e faz commit; repete em 40001/40P01
func (p *Postgres) InTx(ctx context.Context, fn func(tx Tx) error) error {
	var err error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		err = p.runTx(ctx, fn)
		if !isRetryable(err) {
			return err
		}
	}
	return err
}

func (p *Postgres) runTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&pgTx{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgSerializationFailure || pqErr.Code == pgDeadlockDetected
	}
	return false
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	a, err := scanAccount(p.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	return a, err
}

func (p *Postgres) GetWager(ctx context.Context, id string) (*domain.Wager, error) {
	w, err := scanWager(p.db.QueryRowContext(ctx, `SELECT `+wagerColumns+` FROM wagers WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrWagerNotFound
	}
	return w, err
}

// ListActiveForAccount retorna as apostas ainda abertas criadas pela conta
func (p *Postgres) ListActiveForAccount(ctx context.Context, accountID string) ([]*domain.Wager, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+wagerColumns+`
		FROM wagers
		WHERE creator_id=$1 AND status IN ('PENDING','ACCEPTED','CODE_SHARED','DISPUTED')
		ORDER BY created_at DESC, id DESC`, accountID)
	if err != nil {
		return nil, err
	}
	return collectWagers(rows)
}

func (p *Postgres) ListEntries(ctx context.Context, accountID string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, from_account_id, to_account_id, points, entry_type, wager_id, description, created_at
		FROM ledger_entries
		WHERE from_account_id=$1 OR to_account_id=$1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var from, to, wagerID sql.NullString
		var typ string
		if err := rows.Scan(&e.ID, &from, &to, &e.Points, &typ, &wagerID, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.FromAccountID, e.ToAccountID, e.WagerID = strPtr(from), strPtr(to), strPtr(wagerID)
		e.Type = domain.EntryType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Wager, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+wagerColumns+`
		FROM wagers
		WHERE side='CREATOR' AND status IN ('PENDING','ACCEPTED') AND expires_at <= $1
		ORDER BY created_at, id
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	return collectWagers(rows)
}

// pgTx é a visão transacional do Store
type pgTx struct{ tx *sql.Tx }

func (t *pgTx) CreateAccount(ctx context.Context, a *domain.Account) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO accounts (id, available_points, held_points, wins, losses, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO NOTHING`,
		a.ID, a.AvailablePoints, a.HeldPoints, a.Wins, a.Losses, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrAccountExists, a.ID)
	}
	return nil
}

func (t *pgTx) LockAccounts(ctx context.Context, ids ...string) ([]*domain.Account, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`, pq.Array(sortedUnique(ids)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]*domain.Account, len(ids))
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		byID[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*domain.Account, len(ids))
	for i, id := range ids {
		a, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
		}
		cp := *a
		out[i] = &cp
	}
	return out, nil
}

// AddPoints depende do CHECK (available_points >= 0) para nunca ficar negativo
func (t *pgTx) AddPoints(ctx context.Context, accountID string, delta int64) (int64, error) {
	var balance int64
	err := t.tx.QueryRowContext(ctx, `
		UPDATE accounts
		SET available_points = available_points + $1, updated_at = NOW()
		WHERE id=$2
		RETURNING available_points`, delta, accountID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, accountID)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgCheckViolation {
		return 0, fmt.Errorf("%w: account %s", domain.ErrInsufficientFunds, accountID)
	}
	return balance, err
}

func (t *pgTx) IncrementRecord(ctx context.Context, accountID string, wins, losses int) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE accounts SET wins = wins + $1, losses = losses + $2, updated_at = NOW() WHERE id=$3`,
		wins, losses, accountID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, accountID)
	}
	return nil
}

func (t *pgTx) AppendEntry(ctx context.Context, e *domain.LedgerEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, from_account_id, to_account_id, points, entry_type, wager_id, description, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		e.ID, nullStr(e.FromAccountID), nullStr(e.ToAccountID), e.Points, string(e.Type),
		nullStr(e.WagerID), e.Description, e.CreatedAt)
	return err
}

func (t *pgTx) InsertWager(ctx context.Context, w *domain.Wager) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO wagers (`+wagerColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
		w.ID, w.CreatorID, w.Points, w.GameType, nullStr(w.Title), nullStr(w.Description),
		string(w.Status), string(w.Side), nullStr(w.CounterpartID), nullStr(w.SharedCode),
		string(w.SelfResult), w.SelfSubmitted, nullStr(w.EvidenceRef), nullStr(w.WinnerID),
		nullStr(w.DisputeReason), nullStr(w.CancelReason), nullStr(w.ResolutionNotes),
		w.CreatedAt, w.ExpiresAt, nullTime(w.CodeSharedAt), nullTime(w.CompletedAt), w.UpdatedAt)
	return err
}

func (t *pgTx) LockWagers(ctx context.Context, ids ...string) ([]*domain.Wager, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+wagerColumns+`
		FROM wagers
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`, pq.Array(sortedUnique(ids)))
	if err != nil {
		return nil, err
	}
	list, err := collectWagers(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.Wager, len(list))
	for _, w := range list {
		byID[w.ID] = w
	}
	out := make([]*domain.Wager, len(ids))
	for i, id := range ids {
		w, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrWagerNotFound, id)
		}
		out[i] = w.Clone()
	}
	return out, nil
}

// FindPendingForMatch usa SKIP LOCKED: candidatas travadas por outra transação são ignoradas
func (t *pgTx) FindPendingForMatch(ctx context.Context, q PendingQuery) ([]*domain.Wager, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+wagerColumns+`
		FROM wagers
		WHERE status='PENDING' AND counterpart_id IS NULL
		  AND game_type=$1 AND points=$2 AND creator_id <> $3 AND expires_at > $4
		ORDER BY created_at, id
		LIMIT $5
		FOR UPDATE SKIP LOCKED`, q.GameType, q.Points, q.ExcludeCreatorID, q.Now, limit)
	if err != nil {
		return nil, err
	}
	return collectWagers(rows)
}

// UpdateWager só grava se o status salvo ainda for o esperado
func (t *pgTx) UpdateWager(ctx context.Context, w *domain.Wager, expected domain.Status) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE wagers SET
		  status=$2, counterpart_id=$3, shared_code=$4, self_result=$5, self_submitted=$6,
		  evidence_ref=$7, winner_id=$8, dispute_reason=$9, cancel_reason=$10, resolution_notes=$11,
		  code_shared_at=$12, completed_at=$13, updated_at=$14
		WHERE id=$1 AND status=$15`,
		w.ID, string(w.Status), nullStr(w.CounterpartID), nullStr(w.SharedCode), string(w.SelfResult),
		w.SelfSubmitted, nullStr(w.EvidenceRef), nullStr(w.WinnerID), nullStr(w.DisputeReason),
		nullStr(w.CancelReason), nullStr(w.ResolutionNotes), nullTime(w.CodeSharedAt),
		nullTime(w.CompletedAt), w.UpdatedAt, string(expected))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s expected %s", domain.ErrStaleWager, w.ID, expected)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(r rowScanner) (*domain.Account, error) {
	var a domain.Account
	if err := r.Scan(&a.ID, &a.AvailablePoints, &a.HeldPoints, &a.Wins, &a.Losses, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func scanWager(r rowScanner) (*domain.Wager, error) {
	var w domain.Wager
	var title, desc, counterpart, code, evidence, winner, dispute, cancel, notes sql.NullString
	var status, side, result string
	var codeAt, completedAt sql.NullTime

	err := r.Scan(&w.ID, &w.CreatorID, &w.Points, &w.GameType, &title, &desc, &status, &side,
		&counterpart, &code, &result, &w.SelfSubmitted, &evidence, &winner, &dispute, &cancel,
		&notes, &w.CreatedAt, &w.ExpiresAt, &codeAt, &completedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}

	w.Status = domain.Status(status)
	if !w.Status.Valid() {
		return nil, fmt.Errorf("wager %s: unknown status %q", w.ID, status)
	}
	w.Side = domain.Side(side)
	w.SelfResult = domain.Result(result)
	w.Title, w.Description = strPtr(title), strPtr(desc)
	w.CounterpartID, w.SharedCode, w.EvidenceRef = strPtr(counterpart), strPtr(code), strPtr(evidence)
	w.WinnerID, w.DisputeReason, w.CancelReason = strPtr(winner), strPtr(dispute), strPtr(cancel)
	w.ResolutionNotes = strPtr(notes)
	w.CodeSharedAt, w.CompletedAt = timePtr(codeAt), timePtr(completedAt)
	return &w, nil
}

func collectWagers(rows *sql.Rows) ([]*domain.Wager, error) {
	defer rows.Close()
	var out []*domain.Wager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func sortedUnique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	v := nt.Time
	return &v
}
