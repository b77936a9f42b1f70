package resolution

import (
	"context"
	"fmt"
	"time"

	"github.com/radieske/wager-platform/internal/wager-service/domain"
	"github.com/radieske/wager-platform/internal/wager-service/ledger"
	"github.com/radieske/wager-platform/internal/wager-service/repo"
)

// Outcome é o resultado da leitura das duas declarações.
type Outcome string

const (
	OutcomeCreatorWins  Outcome = "CREATOR_WINS"
	OutcomeAcceptorWins Outcome = "ACCEPTOR_WINS"
	OutcomeDispute      Outcome = "DISPUTE"
	OutcomeMutualCancel Outcome = "MUTUAL_CANCEL"
)

// Motivos gravados em dispute_reason / cancel_reason
const (
	ReasonBothClaimedVictory = "both claimed victory"
	ReasonBothReportedLoss   = "both sides reported a loss"
)

// Decide aplica a matriz de resultados (lado criador, lado aceitante).
func Decide(creator, acceptor domain.Result) (Outcome, string) {
	switch {
	case creator == domain.ResultWin && acceptor == domain.ResultLose:
		return OutcomeCreatorWins, ""
	case creator == domain.ResultLose && acceptor == domain.ResultWin:
		return OutcomeAcceptorWins, ""
	case creator == domain.ResultWin && acceptor == domain.ResultWin:
		return OutcomeDispute, ReasonBothClaimedVictory
	case creator == domain.ResultLose && acceptor == domain.ResultLose:
		return OutcomeMutualCancel, ReasonBothReportedLoss
	}
	return OutcomeDispute, fmt.Sprintf("invalid result combination: creator=%q acceptor=%q", creator, acceptor)
}

// Resolution descreve o que foi aplicado ao par.
type Resolution struct {
	Outcome  Outcome
	WinnerID string
	LoserID  string
	Reason   string
	Creator  *domain.Wager
	Acceptor *domain.Wager
	From     domain.Status
}

// Resolver aplica os efeitos da resolução. Não guarda estado.
type Resolver struct {
	ledger *ledger.Ledger
}

func New(l *ledger.Ledger) *Resolver { return &Resolver{ledger: l} }

// BySide devolve (lado criador, lado aceitante) de um par.
func BySide(a, b *domain.Wager) (*domain.Wager, *domain.Wager, error) {
	switch {
	case a.Side == domain.SideCreator && b.Side == domain.SideAcceptor:
		return a, b, nil
	case a.Side == domain.SideAcceptor && b.Side == domain.SideCreator:
		return b, a, nil
	}
	return nil, nil, fmt.Errorf("wagers %s/%s do not form a creator/acceptor pair", a.ID, b.ID)
}

// Resolve é chamado uma única vez por par, na transação que grava a segunda declaração.
func (r *Resolver) Resolve(ctx context.Context, tx repo.Tx, a, b *domain.Wager, now time.Time) (*Resolution, error) {
	creator, acceptor, err := BySide(a, b)
	if err != nil {
		return nil, err
	}
	for _, w := range []*domain.Wager{creator, acceptor} {
		if err := domain.RequireStatus("resolve", w, domain.StatusCodeShared); err != nil {
			return nil, err
		}
		if !w.SelfSubmitted {
			return nil, &domain.StateError{Op: "resolve", WagerID: w.ID, Status: w.Status}
		}
	}

	outcome, reason := Decide(creator.SelfResult, acceptor.SelfResult)
	switch outcome {
	case OutcomeCreatorWins:
		return r.Payout(ctx, tx, creator, acceptor, creator.CreatorID, nil, now)
	case OutcomeAcceptorWins:
		return r.Payout(ctx, tx, creator, acceptor, acceptor.CreatorID, nil, now)
	case OutcomeMutualCancel:
		return r.mutualCancel(ctx, tx, creator, acceptor, reason, now)
	default:
		return r.dispute(ctx, tx, creator, acceptor, reason, now)
	}
}

// Payout paga 2 x stake ao vencedor e conclui o par. Usado na resolução automática
// e no override administrativo; o CAS de status impede pagamento duplo.
func (r *Resolver) Payout(ctx context.Context, tx repo.Tx, creator, acceptor *domain.Wager, winnerID string, notes *string, now time.Time) (*Resolution, error) {
	var winner, loser *domain.Wager
	switch winnerID {
	case creator.CreatorID:
		winner, loser = creator, acceptor
	case acceptor.CreatorID:
		winner, loser = acceptor, creator
	default:
		return nil, fmt.Errorf("%w: %s is not part of wager %s", domain.ErrNotParticipant, winnerID, creator.ID)
	}

	from := creator.Status
	for _, w := range []*domain.Wager{creator, acceptor} {
		prev := w.Status
		if err := w.Transition(domain.StatusCompleted); err != nil {
			return nil, &domain.StateError{Op: "payout", WagerID: w.ID, Status: prev}
		}
		w.WinnerID = domain.Ptr(winnerID)
		w.ResolutionNotes = notes
		w.CompletedAt = domain.Ptr(now)
		w.UpdatedAt = now
		if err := tx.UpdateWager(ctx, w, prev); err != nil {
			return nil, err
		}
	}

	// trava as duas contas em ordem antes de mexer em saldo e contadores
	if _, err := tx.LockAccounts(ctx, winner.CreatorID, loser.CreatorID); err != nil {
		return nil, err
	}
	if err := r.ledger.Award(ctx, tx, winner.CreatorID, 2*winner.Points, winner.ID); err != nil {
		return nil, err
	}
	if err := r.ledger.RecordOutcome(ctx, tx, winner.CreatorID, loser.CreatorID); err != nil {
		return nil, err
	}

	out := OutcomeCreatorWins
	if winner == acceptor {
		out = OutcomeAcceptorWins
	}
	return &Resolution{
		Outcome:  out,
		WinnerID: winner.CreatorID,
		LoserID:  loser.CreatorID,
		Creator:  creator,
		Acceptor: acceptor,
		From:     from,
	}, nil
}

// dispute não movimenta pontos: os stakes seguem consumidos até decisão do admin.
func (r *Resolver) dispute(ctx context.Context, tx repo.Tx, creator, acceptor *domain.Wager, reason string, now time.Time) (*Resolution, error) {
	for _, w := range []*domain.Wager{creator, acceptor} {
		if err := w.Transition(domain.StatusDisputed); err != nil {
			return nil, err
		}
		w.DisputeReason = domain.Ptr(reason)
		w.UpdatedAt = now
		if err := tx.UpdateWager(ctx, w, domain.StatusCodeShared); err != nil {
			return nil, err
		}
	}
	return &Resolution{Outcome: OutcomeDispute, Reason: reason, Creator: creator, Acceptor: acceptor, From: domain.StatusCodeShared}, nil
}

// mutualCancel devolve os dois stakes.
func (r *Resolver) mutualCancel(ctx context.Context, tx repo.Tx, creator, acceptor *domain.Wager, reason string, now time.Time) (*Resolution, error) {
	for _, w := range []*domain.Wager{creator, acceptor} {
		if err := w.Transition(domain.StatusCancelled); err != nil {
			return nil, err
		}
		w.CancelReason = domain.Ptr(reason)
		w.UpdatedAt = now
		if err := tx.UpdateWager(ctx, w, domain.StatusCodeShared); err != nil {
			return nil, err
		}
	}
	if _, err := tx.LockAccounts(ctx, creator.CreatorID, acceptor.CreatorID); err != nil {
		return nil, err
	}
	for _, w := range []*domain.Wager{creator, acceptor} {
		if err := r.ledger.Release(ctx, tx, w.CreatorID, w.Points, w.ID); err != nil {
			return nil, err
		}
	}
	return &Resolution{Outcome: OutcomeMutualCancel, Reason: reason, Creator: creator, Acceptor: acceptor, From: domain.StatusCodeShared}, nil
}
