package dto

import (
	"time"

	"github.com/radieske/wager-platform/internal/wager-service/domain"
)

type AccountResponse struct {
	AccountID       string    `json:"accountId"`
	AvailablePoints int64     `json:"availablePoints"`
	HeldPoints      int64     `json:"heldPoints"`
	Wins            int       `json:"wins"`
	Losses          int       `json:"losses"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func NewAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		AccountID:       a.ID,
		AvailablePoints: a.AvailablePoints,
		HeldPoints:      a.HeldPoints,
		Wins:            a.Wins,
		Losses:          a.Losses,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

type WagerResponse struct {
	WagerID         string     `json:"wagerId"`
	CreatorID       string     `json:"creatorId"`
	Points          int64      `json:"points"`
	GameType        string     `json:"gameType"`
	Title           *string    `json:"title,omitempty"`
	Description     *string    `json:"description,omitempty"`
	Status          string     `json:"status"`
	Side            string     `json:"side"`
	CounterpartID   *string    `json:"counterpartId,omitempty"`
	SharedCode      *string    `json:"sharedCode,omitempty"`
	Result          string     `json:"result,omitempty"`
	ResultSubmitted bool       `json:"resultSubmitted"`
	EvidenceRef     *string    `json:"evidenceRef,omitempty"`
	WinnerID        *string    `json:"winnerId,omitempty"`
	DisputeReason   *string    `json:"disputeReason,omitempty"`
	CancelReason    *string    `json:"cancelReason,omitempty"`
	ResolutionNotes *string    `json:"resolutionNotes,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	ExpiresAt       time.Time  `json:"expiresAt"`
	CodeSharedAt    *time.Time `json:"codeSharedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

func NewWagerResponse(w *domain.Wager) WagerResponse {
	return WagerResponse{
		WagerID:         w.ID,
		CreatorID:       w.CreatorID,
		Points:          w.Points,
		GameType:        w.GameType,
		Title:           w.Title,
		Description:     w.Description,
		Status:          string(w.Status),
		Side:            string(w.Side),
		CounterpartID:   w.CounterpartID,
		SharedCode:      w.SharedCode,
		Result:          string(w.SelfResult),
		ResultSubmitted: w.SelfSubmitted,
		EvidenceRef:     w.EvidenceRef,
		WinnerID:        w.WinnerID,
		DisputeReason:   w.DisputeReason,
		CancelReason:    w.CancelReason,
		ResolutionNotes: w.ResolutionNotes,
		CreatedAt:       w.CreatedAt,
		ExpiresAt:       w.ExpiresAt,
		CodeSharedAt:    w.CodeSharedAt,
		CompletedAt:     w.CompletedAt,
	}
}

func NewWagerList(ws []*domain.Wager) []WagerResponse {
	out := make([]WagerResponse, 0, len(ws))
	for _, w := range ws {
		out = append(out, NewWagerResponse(w))
	}
	return out
}

type LedgerEntryResponse struct {
	EntryID       string    `json:"entryId"`
	FromAccountID *string   `json:"fromAccountId,omitempty"`
	ToAccountID   *string   `json:"toAccountId,omitempty"`
	Points        int64     `json:"points"`
	Type          string    `json:"type"`
	WagerID       *string   `json:"wagerId,omitempty"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"createdAt"`
}

func NewEntryList(es []domain.LedgerEntry) []LedgerEntryResponse {
	out := make([]LedgerEntryResponse, 0, len(es))
	for _, e := range es {
		out = append(out, LedgerEntryResponse{
			EntryID:       e.ID,
			FromAccountID: e.FromAccountID,
			ToAccountID:   e.ToAccountID,
			Points:        e.Points,
			Type:          string(e.Type),
			WagerID:       e.WagerID,
			Description:   e.Description,
			CreatedAt:     e.CreatedAt,
		})
	}
	return out
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
