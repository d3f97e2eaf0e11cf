package domain

// Seat is one of the two fixed sides of a match. X always moves first.
type Seat string

const (
	SeatNone Seat = ""
	SeatX    Seat = "X"
	SeatO    Seat = "O"
)

func Opponent(s Seat) Seat {
	if s == SeatX {
		return SeatO
	}
	return SeatX
}

const (
	Rows = 6
	Cols = 7
)

// Finish reasons recorded on a game.
const (
	ReasonConnectFour    = "connect4"
	ReasonDraw           = "draw"
	ReasonResign         = "resign"
	ReasonForfeit        = "forfeit"
	ReasonForfeitTimeout = "forfeit_timeout"
	ReasonInProgress     = "in_progress"
)

// Rejoin failure reasons reported to the client.
const (
	RejoinTimeoutExceeded = "timeout_exceeded"
	RejoinUnknownGame     = "unknown_game"
	RejoinNotInGame       = "player_not_in_game"
	RejoinGameFinished    = "game_finished"
)

// basic errors a game operation can reject with
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrFinished    Error = "finished"
	ErrNotInGame   Error = "not-in-game"
	ErrNotYourTurn Error = "not-your-turn"
	ErrIllegalMove Error = "illegal"
)
