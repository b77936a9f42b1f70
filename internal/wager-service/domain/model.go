package domain

import "time"

// Account é o saldo de pontos de um usuário.
// AvailablePoints já exclui os stakes de apostas em aberto (débito direto na criação).
type Account struct {
	ID              string
	AvailablePoints int64
	HeldPoints      int64 // reservado para saques; o fluxo de apostas não usa
	Wins            int
	Losses          int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Side indica qual lado do par a aposta representa.
type Side string

const (
	SideCreator  Side = "CREATOR"  // oferta original
	SideAcceptor Side = "ACCEPTOR" // quem aceitou a oferta (ou foi pareado nela)
)

// Result é o resultado declarado por um lado do par.
type Result string

const (
	ResultNone Result = ""
	ResultWin  Result = "WIN"
	ResultLose Result = "LOSE"
)

// ParseResult valida um resultado vindo do cliente.
func ParseResult(s string) (Result, bool) {
	switch Result(s) {
	case ResultWin, ResultLose:
		return Result(s), true
	}
	return ResultNone, false
}

// Wager é um lado de uma aposta 1v1. O par é ligado por CounterpartID (simétrico).
type Wager struct {
	ID              string
	CreatorID       string
	Points          int64
	GameType        string
	Title           *string
	Description     *string
	Status          Status
	Side            Side
	CounterpartID   *string
	SharedCode      *string
	SelfResult      Result
	SelfSubmitted   bool
	EvidenceRef     *string
	WinnerID        *string
	DisputeReason   *string
	CancelReason    *string
	ResolutionNotes *string
	CreatedAt       time.Time
	ExpiresAt       time.Time
	CodeSharedAt    *time.Time
	CompletedAt     *time.Time
	UpdatedAt       time.Time
}

// Clone devolve uma cópia independente (ponteiros inclusos).
func (w *Wager) Clone() *Wager {
	c := *w
	c.Title = clonePtr(w.Title)
	c.Description = clonePtr(w.Description)
	c.CounterpartID = clonePtr(w.CounterpartID)
	c.SharedCode = clonePtr(w.SharedCode)
	c.EvidenceRef = clonePtr(w.EvidenceRef)
	c.WinnerID = clonePtr(w.WinnerID)
	c.DisputeReason = clonePtr(w.DisputeReason)
	c.CancelReason = clonePtr(w.CancelReason)
	c.ResolutionNotes = clonePtr(w.ResolutionNotes)
	c.CodeSharedAt = clonePtr(w.CodeSharedAt)
	c.CompletedAt = clonePtr(w.CompletedAt)
	return &c
}

// IsPaired indica se a aposta já tem contraparte.
func (w *Wager) IsPaired() bool { return w.CounterpartID != nil && *w.CounterpartID != "" }

// Counterpart retorna o id da contraparte ou "".
func (w *Wager) Counterpart() string {
	if w.CounterpartID == nil {
		return ""
	}
	return *w.CounterpartID
}

// IsExpired considera expirada a aposta cujo ExpiresAt já passou.
func (w *Wager) IsExpired(now time.Time) bool {
	return !w.ExpiresAt.IsZero() && !now.Before(w.ExpiresAt)
}

// EntryType classifica uma linha do ledger.
type EntryType string

const (
	EntryCreation         EntryType = "CREATION"
	EntryWin              EntryType = "WIN"
	EntryRefund           EntryType = "REFUND"
	EntryManualAdjustment EntryType = "MANUAL_ADJUSTMENT"
)

// LedgerEntry é um registro de auditoria append-only. Exatamente um entre
// FromAccountID e ToAccountID é preenchido.
type LedgerEntry struct {
	ID            string
	FromAccountID *string
	ToAccountID   *string
	Points        int64
	Type          EntryType
	WagerID       *string
	Description   string
	CreatedAt     time.Time
}

// Ptr é um helper para campos opcionais.
func Ptr[T any](v T) *T { return &v }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
