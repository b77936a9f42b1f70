package resolution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/wager-platform/internal/wager-service/domain"
	"github.com/radieske/wager-platform/internal/wager-service/ledger"
	"github.com/radieske/wager-platform/internal/wager-service/repo"
)

var now = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func TestDecide(t *testing.T) {
	cases := []struct {
		creator, acceptor domain.Result
		want              Outcome
		reason            string
	}{
		{domain.ResultWin, domain.ResultLose, OutcomeCreatorWins, ""},
		{domain.ResultLose, domain.ResultWin, OutcomeAcceptorWins, ""},
		{domain.ResultWin, domain.ResultWin, OutcomeDispute, ReasonBothClaimedVictory},
		{domain.ResultLose, domain.ResultLose, OutcomeMutualCancel, ReasonBothReportedLoss},
	}
	for _, c := range cases {
		got, reason := Decide(c.creator, c.acceptor)
		assert.Equal(t, c.want, got, "%s/%s", c.creator, c.acceptor)
		assert.Equal(t, c.reason, reason)
	}

	got, reason := Decide(domain.ResultNone, domain.ResultWin)
	assert.Equal(t, OutcomeDispute, got)
	assert.Contains(t, reason, "invalid result combination")
}

// fixture: alice (criadora) e bob (aceitante) com 900 cada depois de reservar 100
func setupPair(t *testing.T, creatorResult, acceptorResult domain.Result) (*repo.Memory, *domain.Wager, *domain.Wager) {
	t.Helper()
	ctx := context.Background()
	m := repo.NewMemory()

	base := func(id, creator string, side domain.Side, cp string, res domain.Result) *domain.Wager {
		return &domain.Wager{
			ID: id, CreatorID: creator, Points: 100, GameType: "fifa",
			Status: domain.StatusCodeShared, Side: side, CounterpartID: domain.Ptr(cp),
			SharedCode: domain.Ptr("ROOM-1"), SelfResult: res, SelfSubmitted: res != domain.ResultNone,
			CreatedAt: now, ExpiresAt: now.Add(24 * time.Hour), UpdatedAt: now,
		}
	}
	c := base("wa", "alice", domain.SideCreator, "wb", creatorResult)
	a := base("wb", "bob", domain.SideAcceptor, "wa", acceptorResult)

	require.NoError(t, m.InTx(ctx, func(tx repo.Tx) error {
		for _, id := range []string{"alice", "bob"} {
			if err := tx.CreateAccount(ctx, &domain.Account{ID: id, AvailablePoints: 900}); err != nil {
				return err
			}
		}
		if err := tx.InsertWager(ctx, c); err != nil {
			return err
		}
		return tx.InsertWager(ctx, a)
	}))
	return m, c, a
}

func resolve(t *testing.T, m *repo.Memory, a, b *domain.Wager) (*Resolution, error) {
	t.Helper()
	ctx := context.Background()
	var res *Resolution
	err := m.InTx(ctx, func(tx repo.Tx) error {
		var err error
		res, err = New(ledger.New()).Resolve(ctx, tx, a.Clone(), b.Clone(), now)
		return err
	})
	return res, err
}

func points(t *testing.T, m *repo.Memory, id string) int64 {
	t.Helper()
	acc, err := m.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return acc.AvailablePoints
}

func TestResolve_CreatorWins(t *testing.T) {
	m, c, a := setupPair(t, domain.ResultWin, domain.ResultLose)

	res, err := resolve(t, m, a, c)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreatorWins, res.Outcome)
	assert.Equal(t, "alice", res.WinnerID)
	assert.Equal(t, "bob", res.LoserID)

	assert.Equal(t, int64(1100), points(t, m, "alice"))
	assert.Equal(t, int64(900), points(t, m, "bob"))

	for _, id := range []string{"wa", "wb"} {
		w, err := m.GetWager(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, w.Status)
		require.NotNil(t, w.WinnerID)
		assert.Equal(t, "alice", *w.WinnerID)
		require.NotNil(t, w.CompletedAt)
	}

	alice, _ := m.GetAccount(context.Background(), "alice")
	bob, _ := m.GetAccount(context.Background(), "bob")
	assert.Equal(t, 1, alice.Wins)
	assert.Equal(t, 1, bob.Losses)
}

func TestResolve_AcceptorWins(t *testing.T) {
	m, c, a := setupPair(t, domain.ResultLose, domain.ResultWin)

	res, err := resolve(t, m, c, a)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAcceptorWins, res.Outcome)
	assert.Equal(t, int64(900), points(t, m, "alice"))
	assert.Equal(t, int64(1100), points(t, m, "bob"))
}

func TestResolve_BothWinIsDisputeWithoutMovingPoints(t *testing.T) {
	m, c, a := setupPair(t, domain.ResultWin, domain.ResultWin)

	res, err := resolve(t, m, c, a)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDispute, res.Outcome)
	assert.Equal(t, int64(900), points(t, m, "alice"))
	assert.Equal(t, int64(900), points(t, m, "bob"))

	w, err := m.GetWager(context.Background(), "wa")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDisputed, w.Status)
	assert.Equal(t, ReasonBothClaimedVictory, *w.DisputeReason)
}

func TestResolve_BothLoseRefunds(t *testing.T) {
	m, c, a := setupPair(t, domain.ResultLose, domain.ResultLose)

	res, err := resolve(t, m, c, a)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMutualCancel, res.Outcome)
	assert.Equal(t, int64(1000), points(t, m, "alice"))
	assert.Equal(t, int64(1000), points(t, m, "bob"))

	w, err := m.GetWager(context.Background(), "wb")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, w.Status)
}

func TestResolve_RequiresBothSubmissions(t *testing.T) {
	m, c, a := setupPair(t, domain.ResultWin, domain.ResultNone)

	_, err := resolve(t, m, c, a)
	require.ErrorIs(t, err, domain.ErrInvalidWagerState)
	assert.Equal(t, int64(900), points(t, m, "alice"))
}

func TestPayout_FromDispute(t *testing.T) {
	m, c, a := setupPair(t, domain.ResultWin, domain.ResultWin)
	_, err := resolve(t, m, c, a)
	require.NoError(t, err)

	ctx := context.Background()
	payout := func(winner string) error {
		return m.InTx(ctx, func(tx repo.Tx) error {
			ws, err := tx.LockWagers(ctx, "wa", "wb")
			if err != nil {
				return err
			}
			_, err = New(ledger.New()).Payout(ctx, tx, ws[0], ws[1], winner, domain.Ptr("video reviewed"), now)
			return err
		})
	}

	require.ErrorIs(t, payout("mallory"), domain.ErrNotParticipant)
	require.NoError(t, payout("bob"))
	assert.Equal(t, int64(1100), points(t, m, "bob"))

	w, err := m.GetWager(ctx, "wa")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, w.Status)
	assert.Equal(t, "video reviewed", *w.ResolutionNotes)

	// segunda decisão não paga de novo
	require.ErrorIs(t, payout("bob"), domain.ErrInvalidWagerState)
	assert.Equal(t, int64(1100), points(t, m, "bob"))
}

func TestBySide(t *testing.T) {
	c := &domain.Wager{ID: "c", Side: domain.SideCreator}
	a := &domain.Wager{ID: "a", Side: domain.SideAcceptor}

	gotC, gotA, err := BySide(a, c)
	require.NoError(t, err)
	assert.Same(t, c, gotC)
	assert.Same(t, a, gotA)

	_, _, err = BySide(c, c)
	assert.Error(t, err)
}
