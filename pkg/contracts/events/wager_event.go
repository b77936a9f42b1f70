package events

import "time"

// Tipos de evento emitidos pelo motor de apostas após o commit de cada transição.
const (
	TypeWagerCreated    = "WAGER_CREATED"
	TypeWagerMatched    = "WAGER_MATCHED"
	TypeCodeShared      = "CODE_SHARED"
	TypeResultSubmitted = "RESULT_SUBMITTED"
	TypeWagerCompleted  = "WAGER_COMPLETED"
	TypeWagerCancelled  = "WAGER_CANCELLED"
	TypeWagerDisputed   = "WAGER_DISPUTED"
)

// WagerEvent é o envelope publicado no tópico "wager_events".
// Apenas os campos relevantes ao Type são preenchidos.
type WagerEvent struct {
	Type          string    `json:"type"`
	WagerID       string    `json:"wager_id"`
	CounterpartID string    `json:"counterpart_id,omitempty"`
	CreatorID     string    `json:"creator_id,omitempty"`
	AccountID     string    `json:"account_id,omitempty"`
	WinnerID      string    `json:"winner_id,omitempty"`
	GameType      string    `json:"game_type,omitempty"`
	Stake         int64     `json:"stake,omitempty"`
	Code          string    `json:"code,omitempty"`
	Result        string    `json:"result,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Participants  []string  `json:"participants,omitempty"` // contas que devem ser notificadas
	Ts            time.Time `json:"ts"`
}
