package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Erros de negócio. Todos são recuperáveis e retornados ao chamador.
var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidWagerState  = errors.New("invalid wager state")
	ErrWagerNotFound      = errors.New("wager not found")
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountExists      = errors.New("account already exists")
	ErrAlreadySubmitted   = errors.New("result already submitted")
	ErrNotCreator         = errors.New("requester is not the wager creator")
	ErrNotParticipant     = errors.New("requester is not a wager participant")
	ErrWagerUnavailable   = errors.New("wager unavailable")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidTransition  = errors.New("illegal status transition")
	ErrStaleWager         = errors.New("wager status changed concurrently")
	ErrNegativeAdjustment = errors.New("adjustment would make balance negative")
)

// StateError descreve uma operação tentada a partir de um status inválido.
// errors.Is(err, ErrInvalidWagerState) é verdadeiro.
type StateError struct {
	Op      string
	WagerID string
	Status  Status
	Allowed []Status
}

func (e *StateError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("%s: wager %s is %s: %v", e.Op, e.WagerID, e.Status, ErrInvalidWagerState)
	}
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	return fmt.Sprintf("%s: wager %s is %s, want %s: %v",
		e.Op, e.WagerID, e.Status, strings.Join(allowed, "|"), ErrInvalidWagerState)
}

func (e *StateError) Is(target error) bool { return target == ErrInvalidWagerState }

// RequireStatus devolve um *StateError se w.Status não estiver em allowed.
func RequireStatus(op string, w *Wager, allowed ...Status) error {
	for _, s := range allowed {
		if w.Status == s {
			return nil
		}
	}
	return &StateError{Op: op, WagerID: w.ID, Status: w.Status, Allowed: allowed}
}

// Transition aplica a mudança de status validando a tabela de transições.
func (w *Wager) Transition(to Status) error {
	if !CanTransition(w.Status, to) {
		return fmt.Errorf("%w: %s -> %s (wager %s)", ErrInvalidTransition, w.Status, to, w.ID)
	}
	w.Status = to
	return nil
}

// Kind devolve um rótulo curto do erro, usado em métricas e logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrWagerUnavailable):
		return "wager_unavailable"
	case errors.Is(err, ErrInvalidWagerState), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrStaleWager):
		return "invalid_state"
	case errors.Is(err, ErrWagerNotFound):
		return "wager_not_found"
	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, ErrAccountExists):
		return "account_exists"
	case errors.Is(err, ErrAlreadySubmitted):
		return "already_submitted"
	case errors.Is(err, ErrNotCreator):
		return "not_creator"
	case errors.Is(err, ErrNotParticipant):
		return "not_participant"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNegativeAdjustment):
		return "negative_adjustment"
	}
	return "internal"
}
