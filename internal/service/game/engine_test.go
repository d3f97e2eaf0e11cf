package game

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Dharmateja69/4-in-Row/internal/domain"
)

func newTestEngine(rejoin time.Duration) *Engine {
	return New(Options{
		GameID:        "g1",
		SeatX:         "alice",
		SeatO:         "bob",
		RejoinTimeout: rejoin,
	})
}

func TestPlayAlternatesTurnsAndCountsPly(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(time.Second)

	res, err := e.Play("alice", 0)
	assert.NoError(err)
	assert.Equal(domain.Rows-1, res.Row)
	assert.Equal(1, e.Ply())
	assert.Equal("bob", e.CurrentUser())

	_, err = e.Play("bob", 1)
	assert.NoError(err)
	assert.Equal(2, e.Ply())
	assert.Equal("alice", e.CurrentUser())
}

func TestPlayRejections(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(time.Second)

	_, err := e.Play("mallory", 0)
	assert.ErrorIs(err, domain.ErrNotInGame)

	_, err = e.Play("bob", 0)
	assert.ErrorIs(err, domain.ErrNotYourTurn)

	_, err = e.Play("alice", 9)
	assert.ErrorIs(err, domain.ErrIllegalMove)
	assert.Equal(0, e.Ply())
}

func TestConnectFourFinishesGame(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(time.Second)

	// alice stacks column 0, bob stacks column 1; alice wins vertically.
	for i := 0; i < 3; i++ {
		_, err := e.Play("alice", 0)
		assert.NoError(err)
		_, err = e.Play("bob", 1)
		assert.NoError(err)
	}
	res, err := e.Play("alice", 0)
	assert.NoError(err)
	assert.True(res.State.Finished)
	assert.Equal("alice", res.State.Winner)
	assert.Equal(domain.ReasonConnectFour, res.State.Reason)
	assert.Equal("", res.State.Current)
}

func TestFinishedStateIsTerminal(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(time.Second)

	_, err := e.Resign("bob")
	assert.NoError(err)

	before := e.AsPublic(false)

	_, err = e.Play("alice", 0)
	assert.ErrorIs(err, domain.ErrFinished)
	_, err = e.Resign("alice")
	assert.ErrorIs(err, domain.ErrFinished)

	assert.Equal(before, e.AsPublic(false))
}

func TestResignAwardsOpponent(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(time.Second)

	state, err := e.Resign("alice")
	assert.NoError(err)
	assert.True(state.Finished)
	assert.Equal("bob", state.Winner)
	assert.Equal(domain.ReasonResign, state.Reason)
}

func TestDisconnectThenRejoinRestoresTurn(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(time.Minute)

	// It's alice's turn when she drops.
	e.OnDisconnect("alice", nil)
	assert.Equal("", e.CurrentUser())

	state := e.OnRejoin("alice")
	assert.Equal("alice", e.CurrentUser())
	assert.Equal("", state.DisconnectedPlayer)
	assert.False(state.Finished)
}

func TestRejoinOnFinishedGameDoesNotRestoreTurn(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(20 * time.Millisecond)

	e.OnDisconnect("alice", nil)
	time.Sleep(60 * time.Millisecond)
	assert.True(e.Finished())

	// A rejoin landing just after the forfeit must not resurrect the
	// turn on the finished session.
	state := e.OnRejoin("alice")
	assert.True(state.Finished)
	assert.Equal("bob", state.Winner)
	assert.Equal(domain.ReasonForfeit, state.Reason)
	assert.Equal("", state.Current)
	assert.Equal("", e.CurrentUser())
}

func TestDisconnectedOpponentLeavesGameWaiting(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(time.Minute)

	e.OnDisconnect("bob", nil)
	res, err := e.Play("alice", 3)
	assert.NoError(err)

	// Turn flipped to bob's seat but nobody may move until he rejoins.
	assert.Equal(domain.SeatO, res.State.Turn)
	assert.Equal("", res.State.Current)

	e.OnRejoin("bob")
	assert.Equal("bob", e.CurrentUser())
}

func TestForfeitFiresExactlyOnce(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(30 * time.Millisecond)

	var fired atomic.Int32
	var gotWinner atomic.Value
	e.OnDisconnect("bob", func(winner string, state domain.PublicState) {
		fired.Add(1)
		gotWinner.Store(winner)
	})
	// A second disconnect for the same user must not arm a second timer.
	e.OnDisconnect("bob", func(string, domain.PublicState) { fired.Add(10) })

	time.Sleep(120 * time.Millisecond)

	assert.Equal(int32(1), fired.Load())
	assert.Equal("alice", gotWinner.Load())

	pub := e.AsPublic(false)
	assert.True(pub.Finished)
	assert.Equal(domain.ReasonForfeit, pub.Reason)
}

func TestRejoinCancelsForfeit(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(40 * time.Millisecond)

	var fired atomic.Int32
	e.OnDisconnect("bob", func(string, domain.PublicState) { fired.Add(1) })
	e.OnRejoin("bob")

	time.Sleep(100 * time.Millisecond)

	assert.Equal(int32(0), fired.Load())
	assert.False(e.Finished())
}

func TestResignBeatsForfeitTimer(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(30 * time.Millisecond)

	var fired atomic.Int32
	e.OnDisconnect("bob", func(string, domain.PublicState) { fired.Add(1) })

	// alice resigns before bob's window elapses; the timer must no-op.
	_, err := e.Resign("alice")
	assert.NoError(err)

	time.Sleep(100 * time.Millisecond)

	assert.Equal(int32(0), fired.Load())
	pub := e.AsPublic(false)
	assert.Equal("bob", pub.Winner)
	assert.Equal(domain.ReasonResign, pub.Reason)
}

func TestAsPublicReportsRemainingWindow(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(500 * time.Millisecond)

	e.OnDisconnect("alice", nil)
	pub := e.AsPublic(true)

	assert.Equal("alice", pub.DisconnectedPlayer)
	assert.Greater(pub.TimeoutMs, int64(0))
	assert.LessOrEqual(pub.TimeoutMs, int64(500))
}

func TestPlyNeverExceedsBoardCapacity(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(time.Second)

	users := map[domain.Seat]string{domain.SeatX: "alice", domain.SeatO: "bob"}
	for !e.Finished() {
		pub := e.AsPublic(false)
		cols := domain.LegalColumns(pub.Board)
		if len(cols) == 0 {
			break
		}
		_, err := e.Play(users[pub.Turn], cols[0])
		assert.NoError(err)
	}
	assert.LessOrEqual(e.Ply(), domain.Rows*domain.Cols)
}
