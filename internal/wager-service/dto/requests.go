package dto

import "github.com/go-playground/validator/v10"

var validate = validator.New()

type OpenAccountRequest struct {
	AccountID string `json:"accountId" validate:"omitempty,max=64"` // vazio = gerado pelo servidor
}

type CreateWagerRequest struct {
	CreatorID   string  `json:"creatorId" validate:"required"`
	Points      int64   `json:"points" validate:"required,gt=0"`
	GameType    string  `json:"gameType" validate:"required,max=64"`
	Title       *string `json:"title,omitempty" validate:"omitempty,max=120"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
}

type AcceptWagerRequest struct {
	AcceptorID string `json:"acceptorId" validate:"required"`
}

type ShareCodeRequest struct {
	RequesterID string `json:"requesterId" validate:"required"`
	Code        string `json:"code" validate:"required,max=64"`
}

type SubmitResultRequest struct {
	RequesterID string  `json:"requesterId" validate:"required"`
	Result      string  `json:"result" validate:"required,oneof=WIN LOSE"`
	EvidenceRef *string `json:"evidenceRef,omitempty" validate:"omitempty,max=512"`
}

type CancelWagerRequest struct {
	RequesterID string `json:"requesterId" validate:"required"`
}

// admin

type ResolveDisputeRequest struct {
	WinnerID string `json:"winnerId" validate:"required"`
	Notes    string `json:"notes" validate:"max=1000"`
}

type AdminCancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type AdjustAccountRequest struct {
	Points      int64  `json:"points" validate:"ne=0"` // pode ser negativo
	Description string `json:"description" validate:"required,max=500"`
}

// Validate aplica as tags `validate` de qualquer request deste pacote
func Validate(req any) error {
	return validate.Struct(req)
}
