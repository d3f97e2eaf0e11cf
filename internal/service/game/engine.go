package game

import (
	"log"
	"sync"
	"time"

	"github.com/Dharmateja69/4-in-Row/internal/domain"
)

// Engine is the authoritative state machine for one match. Every mutation
// goes through its mutex; different engines are fully independent.
type Engine struct {
	mu sync.Mutex

	id           string
	board        domain.Board
	seats        map[domain.Seat]string
	participants []string // humans only, the bot never appears here
	turn         domain.Seat
	currentUser  string // empty while the mover is disconnected or the game is over
	finished     bool
	winner       string // empty for draw / unfinished
	reason       string
	ply          int
	vsBot        bool
	botName      string
	createdAt    time.Time

	disconnected  map[string]bool
	rejoinTimers  map[string]*rejoinTimer
	rejoinTimeout time.Duration
}

// rejoinTimer keeps the start time so remaining milliseconds can be
// reported without re-deriving from wall-clock drift.
type rejoinTimer struct {
	timer     *time.Timer
	startedAt time.Time
}

type Options struct {
	GameID        string
	SeatX         string
	SeatO         string
	VsBot         bool
	BotName       string
	RejoinTimeout time.Duration
}

// MoveResult is the outcome of an accepted move.
type MoveResult struct {
	Row   int
	Col   int
	State domain.PublicState
}

func New(opts Options) *Engine {
	timeout := opts.RejoinTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	e := &Engine{
		id:            opts.GameID,
		board:         domain.NewBoard(),
		seats:         map[domain.Seat]string{domain.SeatX: opts.SeatX, domain.SeatO: opts.SeatO},
		turn:          domain.SeatX,
		currentUser:   opts.SeatX,
		vsBot:         opts.VsBot,
		botName:       opts.BotName,
		createdAt:     time.Now(),
		disconnected:  make(map[string]bool),
		rejoinTimers:  make(map[string]*rejoinTimer),
		rejoinTimeout: timeout,
	}
	for _, user := range []string{opts.SeatX, opts.SeatO} {
		if user != "" && user != opts.BotName {
			e.participants = append(e.participants, user)
		}
	}
	return e
}

func (e *Engine) ID() string           { return e.id }
func (e *Engine) VsBot() bool          { return e.vsBot }
func (e *Engine) BotName() string      { return e.botName }
func (e *Engine) CreatedAt() time.Time { return e.createdAt }

func (e *Engine) Finished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finished
}

func (e *Engine) Ply() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ply
}

func (e *Engine) CurrentUser() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentUser
}

func (e *Engine) IsParticipant(user string) bool {
	for _, p := range e.participants {
		if p == user {
			return true
		}
	}
	return false
}

// Participants returns the human players of the match.
func (e *Engine) Participants() []string {
	out := make([]string, len(e.participants))
	copy(out, e.participants)
	return out
}

// SeatUsers returns both seat occupants (bot included) for broadcasting.
func (e *Engine) SeatUsers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return []string{e.seats[domain.SeatX], e.seats[domain.SeatO]}
}

// SeatOf returns the seat a user occupies, or SeatNone.
func (e *Engine) SeatOf(user string) domain.Seat {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seatOfLocked(user)
}

func (e *Engine) seatOfLocked(user string) domain.Seat {
	if e.seats[domain.SeatX] == user {
		return domain.SeatX
	}
	if e.seats[domain.SeatO] == user {
		return domain.SeatO
	}
	return domain.SeatNone
}

// BoardSnapshot hands out a deep copy for the bot search, which mutates
// its board during lookahead.
func (e *Engine) BoardSnapshot() domain.Board {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.board.Clone()
}

// Play applies a move for the acting user. On success the board is
// mutated, ply incremented, and the terminal conditions evaluated in
// order: winner, draw, otherwise the turn flips.
func (e *Engine) Play(user string, col int) (MoveResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.finished {
		return MoveResult{}, domain.ErrFinished
	}
	seat := e.seatOfLocked(user)
	if seat == domain.SeatNone {
		return MoveResult{}, domain.ErrNotInGame
	}
	if e.currentUser != user {
		return MoveResult{}, domain.ErrNotYourTurn
	}

	row, ok := domain.ApplyMove(e.board, col, seat)
	if !ok {
		return MoveResult{}, domain.ErrIllegalMove
	}
	e.ply++

	if w := domain.CheckWinner(e.board); w != domain.SeatNone {
		e.finished = true
		e.winner = e.seats[w]
		e.reason = domain.ReasonConnectFour
		e.currentUser = ""
		e.stopTimersLocked()
	} else if domain.IsDraw(e.board) {
		e.finished = true
		e.winner = ""
		e.reason = domain.ReasonDraw
		e.currentUser = ""
		e.stopTimersLocked()
	} else {
		e.turn = domain.Opponent(e.turn)
		e.currentUser = e.seats[e.turn]
		if e.disconnected[e.currentUser] {
			// Opponent is away; the game waits for their rejoin.
			e.currentUser = ""
		}
	}

	return MoveResult{Row: row, Col: col, State: e.asPublicLocked(false)}, nil
}

// Resign ends the match in favor of the opponent.
func (e *Engine) Resign(user string) (domain.PublicState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.finished {
		return domain.PublicState{}, domain.ErrFinished
	}
	seat := e.seatOfLocked(user)
	if seat == domain.SeatNone {
		return domain.PublicState{}, domain.ErrNotInGame
	}

	e.resolveAgainstLocked(user, domain.ReasonResign)
	return e.asPublicLocked(false), nil
}

// resolveAgainstLocked finishes the game with `user` as the loser.
func (e *Engine) resolveAgainstLocked(user string, reason string) {
	winnerSeat := domain.Opponent(e.seatOfLocked(user))
	e.finished = true
	e.winner = e.seats[winnerSeat]
	e.reason = reason
	e.currentUser = ""
	e.stopTimersLocked()
}

// OnDisconnect marks the user away and arms the rejoin-window timer. If
// the window elapses with the user still away and the game still live,
// the match resolves against them with reason forfeit and onForfeit runs.
func (e *Engine) OnDisconnect(user string, onForfeit func(winner string, state domain.PublicState)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.finished || e.disconnected[user] {
		return
	}
	if e.seatOfLocked(user) == domain.SeatNone {
		return
	}

	e.disconnected[user] = true
	if e.currentUser == user {
		e.currentUser = ""
	}

	if old, ok := e.rejoinTimers[user]; ok {
		old.timer.Stop()
	}

	rt := &rejoinTimer{startedAt: time.Now()}
	rt.timer = time.AfterFunc(e.rejoinTimeout, func() {
		e.mu.Lock()
		if e.finished || !e.disconnected[user] {
			e.mu.Unlock()
			return
		}
		log.Printf("[ENG] forfeit timeout: %s in game %s", user, e.id)
		e.resolveAgainstLocked(user, domain.ReasonForfeit)
		winner := e.winner
		state := e.asPublicLocked(false)
		e.mu.Unlock()

		// Callback runs outside the lock; it re-enters the orchestrator.
		if onForfeit != nil {
			onForfeit(winner, state)
		}
	})
	e.rejoinTimers[user] = rt
}

// OnRejoin clears the user's away status and cancels the pending forfeit.
// A rejoin on a finished session, or for a user who was never recorded
// away, is a harmless no-op that just returns the current state.
func (e *Engine) OnRejoin(user string) domain.PublicState {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.finished || !e.disconnected[user] {
		return e.asPublicLocked(true)
	}
	delete(e.disconnected, user)
	if rt, ok := e.rejoinTimers[user]; ok {
		rt.timer.Stop()
		delete(e.rejoinTimers, user)
	}
	if e.seats[e.turn] == user {
		e.currentUser = user
	}
	return e.asPublicLocked(true)
}

// stopTimersLocked cancels every pending rejoin timer. Called on any
// terminal transition so a stale timer can never fire on a finished game.
func (e *Engine) stopTimersLocked() {
	for user, rt := range e.rejoinTimers {
		rt.timer.Stop()
		delete(e.rejoinTimers, user)
	}
}

// AsPublic projects the state both clients see. When includeDisconnect is
// set and somebody is away on a live game, the projection names them and
// the milliseconds left before forfeit.
func (e *Engine) AsPublic(includeDisconnect bool) domain.PublicState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.asPublicLocked(includeDisconnect)
}

func (e *Engine) asPublicLocked(includeDisconnect bool) domain.PublicState {
	pub := domain.PublicState{
		GameID:   e.id,
		Board:    e.board.Clone(),
		Turn:     e.turn,
		Current:  e.currentUser,
		Seats:    map[domain.Seat]string{domain.SeatX: e.seats[domain.SeatX], domain.SeatO: e.seats[domain.SeatO]},
		Finished: e.finished,
		Winner:   e.winner,
		Reason:   e.reason,
	}

	if includeDisconnect && !e.finished {
		for user := range e.disconnected {
			pub.DisconnectedPlayer = user
			remaining := e.rejoinTimeout
			if rt, ok := e.rejoinTimers[user]; ok {
				remaining -= time.Since(rt.startedAt)
				if remaining < 0 {
					remaining = 0
				}
			}
			pub.TimeoutMs = remaining.Milliseconds()
			break
		}
	}
	return pub
}
