package engine

import (
	"time"

	"github.com/radieske/wager-platform/internal/wager-service/domain"
	"github.com/radieske/wager-platform/internal/wager-service/resolution"
	"github.com/radieske/wager-platform/pkg/contracts/events"
)

type transition struct {
	wagerID  string
	from, to domain.Status
}

// recorder acumula o que aconteceu numa tentativa de transação
type recorder struct {
	at          time.Time
	transitions []transition
	events      []events.WagerEvent
	ledger      map[domain.EntryType]int64
}

func newRecorder(at time.Time) *recorder {
	return &recorder{at: at, ledger: make(map[domain.EntryType]int64)}
}

func (r *recorder) moved(w *domain.Wager, from domain.Status) {
	r.transitions = append(r.transitions, transition{wagerID: w.ID, from: from, to: w.Status})
}

func (r *recorder) points(typ domain.EntryType, pts int64) { r.ledger[typ] += pts }

func (r *recorder) emit(ev events.WagerEvent) {
	ev.Ts = r.at
	r.events = append(r.events, ev)
}

func wagerEvent(typ string, w *domain.Wager, participants ...string) events.WagerEvent {
	return events.WagerEvent{
		Type:          typ,
		WagerID:       w.ID,
		CounterpartID: w.Counterpart(),
		CreatorID:     w.CreatorID,
		GameType:      w.GameType,
		Stake:         w.Points,
		Participants:  participants,
	}
}

// pairEvents gera um evento por lado, ambos endereçados aos dois participantes
func (r *recorder) pairEvents(typ string, pair []*domain.Wager, fill func(*events.WagerEvent)) {
	parts := make([]string, 0, len(pair))
	for _, w := range pair {
		parts = append(parts, w.CreatorID)
	}
	for _, w := range pair {
		ev := wagerEvent(typ, w, parts...)
		if fill != nil {
			fill(&ev)
		}
		r.emit(ev)
	}
}

func (r *recorder) resolved(res *resolution.Resolution) {
	pair := []*domain.Wager{res.Creator, res.Acceptor}
	for _, w := range pair {
		r.moved(w, res.From)
	}
	switch res.Outcome {
	case resolution.OutcomeCreatorWins, resolution.OutcomeAcceptorWins:
		r.points(domain.EntryWin, 2*res.Creator.Points)
		r.pairEvents(events.TypeWagerCompleted, pair, func(ev *events.WagerEvent) { ev.WinnerID = res.WinnerID })
	case resolution.OutcomeMutualCancel:
		r.points(domain.EntryRefund, res.Creator.Points+res.Acceptor.Points)
		r.pairEvents(events.TypeWagerCancelled, pair, func(ev *events.WagerEvent) { ev.Reason = res.Reason })
	default:
		r.pairEvents(events.TypeWagerDisputed, pair, func(ev *events.WagerEvent) { ev.Reason = res.Reason })
	}
}
