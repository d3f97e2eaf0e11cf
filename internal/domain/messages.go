package domain

// ClientMessage is an inbound intent over the websocket.
// Recognized types: join, rejoin, move, resign, leaveQueue.
type ClientMessage struct {
	Type    string        `json:"type"`
	Payload ClientPayload `json:"payload"`
}

type ClientPayload struct {
	Username string `json:"username,omitempty"`
	GameID   string `json:"gameId,omitempty"`
	Col      int    `json:"col"`
}

// ServerMessage is an outbound event. Fields are populated per message
// type; everything else stays omitted on the wire.
type ServerMessage struct {
	Type               string       `json:"type"`
	GameID             string       `json:"gameId,omitempty"`
	Payload            any          `json:"payload,omitempty"`
	By                 string       `json:"by,omitempty"`
	Row                *int         `json:"row,omitempty"`
	Col                *int         `json:"col,omitempty"`
	Who                string       `json:"who,omitempty"`
	Reason             string       `json:"reason,omitempty"`
	DisconnectedPlayer string       `json:"disconnectedPlayer,omitempty"`
	TimeoutMs          int64        `json:"timeoutMs,omitempty"`
	ForfeitedPlayer    string       `json:"forfeitedPlayer,omitempty"`
	Winner             string       `json:"winner,omitempty"`
	Result             *FinalResult `json:"result,omitempty"`
	Error              string       `json:"error,omitempty"`
}

type FinalResult struct {
	Winner string `json:"winner"`
	Reason string `json:"reason"`
}

// PublicState is the projection of a game session that both clients see.
type PublicState struct {
	GameID             string          `json:"gameId"`
	Board              Board           `json:"board"`
	Turn               Seat            `json:"turn"`
	Current            string          `json:"current"`
	Seats              map[Seat]string `json:"seats"`
	Finished           bool            `json:"finished"`
	Winner             string          `json:"winner"`
	Reason             string          `json:"reason,omitempty"`
	DisconnectedPlayer string          `json:"disconnectedPlayer,omitempty"`
	TimeoutMs          int64           `json:"timeoutMs,omitempty"`
}

// MatchedPayload is the payload of a "matched" event: the initial public
// state plus the receiver's seat and opponent.
type MatchedPayload struct {
	PublicState
	Seat     Seat   `json:"seat"`
	Opponent string `json:"opponent"`
}
