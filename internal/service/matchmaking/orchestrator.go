package matchmaking

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/Dharmateja69/4-in-Row/internal/domain"
	"github.com/Dharmateja69/4-in-Row/internal/service/bot"
	"github.com/Dharmateja69/4-in-Row/internal/service/game"
	"github.com/Dharmateja69/4-in-Row/pkg/uid"
)

// Sender delivers a payload to a user's live connection, if any.
type Sender interface {
	SendToUser(username string, msg domain.ServerMessage)
}

// Store is the durable side of a match. All calls are best-effort: a
// failure is logged and never blocks or reverts game state.
type Store interface {
	UpsertPlayer(ctx context.Context, username string) error
	CreateGame(ctx context.Context, gameID, playerX, playerO string, vsBot bool, startedAt time.Time) error
	RecordMove(ctx context.Context, gameID string, ply int, player string, col, row int, playedAt time.Time) error
	RecordResult(ctx context.Context, gameID, playerX, playerO, winner, reason string, startedAt, finishedAt time.Time, ply int) error
}

// Publisher emits analytics events; implementations must never block game
// flow.
type Publisher interface {
	GameStarted(gameID, mode string, players []string, startedAt time.Time)
	MovePlayed(gameID string, ply int, by string, col int)
	GameFinished(gameID, winner, reason string, duration time.Duration)
	PlayerRejoined(gameID, username string)
	PlayerForfeited(gameID, username string)
}

type Config struct {
	RejoinTimeout time.Duration
	MatchWait     time.Duration
	BotDepth      int
	BotBudget     time.Duration
	BotThink      time.Duration
	BotName       string
}

// Orchestrator owns the waiting queue, the active-session registry and
// the disconnect bookkeeping. The queue and registries live under one
// mutex; each game session serializes its own mutations.
type Orchestrator struct {
	mu sync.Mutex

	cfg    Config
	sender Sender
	store  Store
	events Publisher

	queue        []string
	games        map[string]*game.Engine
	botTimer     *time.Timer
	botTimerFor  string
	disconnectAt map[string]time.Time // "gameID/username" -> disconnect time
}

func NewOrchestrator(cfg Config, sender Sender, store Store, events Publisher) *Orchestrator {
	if cfg.RejoinTimeout <= 0 {
		cfg.RejoinTimeout = 30 * time.Second
	}
	if cfg.MatchWait <= 0 {
		cfg.MatchWait = 10 * time.Second
	}
	if cfg.BotName == "" {
		cfg.BotName = "BOT"
	}
	return &Orchestrator{
		cfg:          cfg,
		sender:       sender,
		store:        store,
		events:       events,
		games:        make(map[string]*game.Engine),
		disconnectAt: make(map[string]time.Time),
	}
}

func disconnectKey(gameID, username string) string {
	return gameID + "/" + username
}

// Enqueue adds a player to the waiting queue and tries to pair. It is
// idempotent: a player already queued or already inside an unfinished
// game is left alone.
func (o *Orchestrator) Enqueue(username string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, queued := range o.queue {
		if queued == username {
			return
		}
	}
	for _, e := range o.games {
		if e.IsParticipant(username) && !e.Finished() {
			log.Printf("[MM] %s already in active game %s", username, e.ID())
			return
		}
	}

	o.queue = append(o.queue, username)
	o.sender.SendToUser(username, domain.ServerMessage{Type: "queued"})
	o.tryMatchLocked()
}

// Dequeue removes a waiting player, canceling their bot-fallback timer.
func (o *Orchestrator) Dequeue(username string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.removeFromQueueLocked(username)
}

func (o *Orchestrator) removeFromQueueLocked(username string) {
	for i, queued := range o.queue {
		if queued == username {
			o.queue = append(o.queue[:i], o.queue[i+1:]...)
			break
		}
	}
	if o.botTimerFor == username && o.botTimer != nil {
		o.botTimer.Stop()
		o.botTimer = nil
		o.botTimerFor = ""
	}
}

func (o *Orchestrator) tryMatchLocked() {
	if len(o.queue) >= 2 {
		p1, p2 := o.queue[0], o.queue[1]
		o.queue = o.queue[2:]
		if o.botTimer != nil {
			o.botTimer.Stop()
			o.botTimer = nil
			o.botTimerFor = ""
		}

		seatX, seatO := p1, p2
		if rand.Intn(2) == 0 {
			seatX, seatO = p2, p1
		}
		o.startGameLocked(seatX, seatO, false)
		return
	}

	if len(o.queue) == 1 {
		waiting := o.queue[0]
		if o.botTimerFor == waiting {
			return // timer already armed for this player
		}
		if o.botTimer != nil {
			o.botTimer.Stop()
		}
		o.botTimerFor = waiting
		o.botTimer = time.AfterFunc(o.cfg.MatchWait, func() {
			o.matchWithBot(waiting)
		})
		log.Printf("[MM] bot fallback timer started for %s", waiting)
	}
}

func (o *Orchestrator) matchWithBot(username string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	stillQueued := false
	for _, queued := range o.queue {
		if queued == username {
			stillQueued = true
			break
		}
	}
	if !stillQueued {
		return
	}
	o.removeFromQueueLocked(username)
	o.startGameLocked(username, o.cfg.BotName, true)
}

// startGameLocked creates the session, registers it, notifies the humans
// and kicks off best-effort persistence and analytics.
func (o *Orchestrator) startGameLocked(seatX, seatO string, vsBot bool) {
	gameID := uid.GenerateGameID()
	e := game.New(game.Options{
		GameID:        gameID,
		SeatX:         seatX,
		SeatO:         seatO,
		VsBot:         vsBot,
		BotName:       o.cfg.BotName,
		RejoinTimeout: o.cfg.RejoinTimeout,
	})
	o.games[gameID] = e

	log.Printf("[MM] match started: %s vs %s, game %s", seatX, seatO, gameID)

	initial := e.AsPublic(false)
	o.sender.SendToUser(seatX, domain.ServerMessage{
		Type:    "matched",
		Payload: domain.MatchedPayload{PublicState: initial, Seat: domain.SeatX, Opponent: seatO},
	})
	if !vsBot {
		o.sender.SendToUser(seatO, domain.ServerMessage{
			Type:    "matched",
			Payload: domain.MatchedPayload{PublicState: initial, Seat: domain.SeatO, Opponent: seatX},
		})
	}

	go o.persistGameStart(e, seatX, seatO, vsBot)

	// Publishing happens off the lock; the producer can block on the
	// broker.
	mode := "pvp"
	if vsBot {
		mode = "pve"
	}
	go o.events.GameStarted(gameID, mode, []string{seatX, seatO}, e.CreatedAt())
}

func (o *Orchestrator) persistGameStart(e *game.Engine, seatX, seatO string, vsBot bool) {
	ctx := context.Background()
	if err := o.store.UpsertPlayer(ctx, seatX); err != nil {
		log.Printf("[MM][DB] upsert player %s failed: %v", seatX, err)
	}
	if !vsBot {
		if err := o.store.UpsertPlayer(ctx, seatO); err != nil {
			log.Printf("[MM][DB] upsert player %s failed: %v", seatO, err)
		}
	}
	if err := o.store.CreateGame(ctx, e.ID(), seatX, seatO, vsBot, e.CreatedAt()); err != nil {
		log.Printf("[MM][DB] create game %s failed: %v", e.ID(), err)
	}
}

func (o *Orchestrator) getGame(gameID string) (*game.Engine, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.games[gameID]
	return e, ok
}

// OnMove routes a move to its session, persists and broadcasts it, and
// either finishes the game or hands the turn to the bot.
func (o *Orchestrator) OnMove(gameID, username string, col int) {
	e, ok := o.getGame(gameID)
	if !ok {
		o.sender.SendToUser(username, domain.ServerMessage{
			Type: "error", GameID: gameID, Error: "game not found",
		})
		return
	}

	res, err := e.Play(username, col)
	if err != nil {
		log.Printf("[MM] invalid move by %s in %s: %v", username, gameID, err)
		o.sender.SendToUser(username, domain.ServerMessage{Type: "error", Error: err.Error()})
		return
	}

	o.afterMove(e, username, res)
}

// afterMove is shared by human and bot moves.
func (o *Orchestrator) afterMove(e *game.Engine, username string, res game.MoveResult) {
	gameID := e.ID()
	ply := e.Ply()

	go func() {
		ctx := context.Background()
		if err := o.store.RecordMove(ctx, gameID, ply, username, res.Col, res.Row, time.Now()); err != nil {
			log.Printf("[MM][DB] record move failed: %v", err)
		}
	}()
	go o.events.MovePlayed(gameID, ply, username, res.Col)

	row, col := res.Row, res.Col
	o.broadcast(e, domain.ServerMessage{Type: "move", GameID: gameID, By: username, Row: &row, Col: &col})
	o.broadcast(e, domain.ServerMessage{Type: "state", Payload: e.AsPublic(true)})

	if res.State.Finished {
		o.finish(e, res.State.Winner, res.State.Reason)
		return
	}

	if e.VsBot() && e.CurrentUser() == e.BotName() {
		go o.botPlay(e)
	}
}

func (o *Orchestrator) botPlay(e *game.Engine) {
	if o.cfg.BotThink > 0 {
		time.Sleep(o.cfg.BotThink)
	}
	if e.Finished() {
		return
	}

	board := e.BoardSnapshot()
	botSeat := e.SeatOf(e.BotName())
	if botSeat == domain.SeatNone {
		return
	}

	started := time.Now()
	col := bot.FindBestMove(board, botSeat, o.cfg.BotDepth)
	if elapsed := time.Since(started); o.cfg.BotBudget > 0 && elapsed > o.cfg.BotBudget {
		log.Printf("[BOT] search exceeded budget: %s (budget %s)", elapsed, o.cfg.BotBudget)
	}

	res, err := e.Play(e.BotName(), col)
	if err != nil {
		// The game may have finished (forfeit, resign) while we searched.
		log.Printf("[BOT] move rejected in %s: %v", e.ID(), err)
		return
	}
	o.afterMove(e, e.BotName(), res)
}

// Rejoin validates the elapsed-time guard before consulting the session
// at all: a client reconnecting after the window has already passed is
// rejected even if the forfeit timer has not fired yet.
func (o *Orchestrator) Rejoin(gameID, username string) bool {
	key := disconnectKey(gameID, username)

	o.mu.Lock()
	if at, ok := o.disconnectAt[key]; ok {
		if elapsed := time.Since(at); elapsed >= o.cfg.RejoinTimeout {
			delete(o.disconnectAt, key)
			o.mu.Unlock()
			log.Printf("[MM] rejoin blocked: %s exceeded window by %s", username, elapsed-o.cfg.RejoinTimeout)
			o.sender.SendToUser(username, domain.ServerMessage{
				Type: "rejoinFailed", Reason: domain.RejoinTimeoutExceeded, GameID: gameID,
			})
			return false
		}
	}
	e, ok := o.games[gameID]
	o.mu.Unlock()

	if !ok {
		o.rejoinFailed(gameID, username, key, domain.RejoinUnknownGame)
		return false
	}
	if !e.IsParticipant(username) {
		o.rejoinFailed(gameID, username, key, domain.RejoinNotInGame)
		return false
	}
	if e.Finished() {
		o.rejoinFailed(gameID, username, key, domain.RejoinGameFinished)
		return false
	}

	state := e.OnRejoin(username)
	if state.Finished {
		// Forfeit timer won the race since the check above.
		o.rejoinFailed(gameID, username, key, domain.RejoinGameFinished)
		return false
	}

	o.mu.Lock()
	delete(o.disconnectAt, key)
	o.mu.Unlock()

	o.sender.SendToUser(username, domain.ServerMessage{Type: "state", Payload: state})
	o.broadcast(e, domain.ServerMessage{Type: "rejoined", Who: username, GameID: gameID})
	go o.events.PlayerRejoined(gameID, username)
	log.Printf("[MM] %s rejoined game %s", username, gameID)
	return true
}

func (o *Orchestrator) rejoinFailed(gameID, username, key, reason string) {
	o.mu.Lock()
	delete(o.disconnectAt, key)
	o.mu.Unlock()
	o.sender.SendToUser(username, domain.ServerMessage{
		Type: "rejoinFailed", Reason: reason, GameID: gameID,
	})
}

// Resign ends the game in the opponent's favor and runs the completion
// path. A resign racing a forfeit loses cleanly: the session is already
// finished and the call no-ops.
func (o *Orchestrator) Resign(gameID, username string) {
	e, ok := o.getGame(gameID)
	if !ok || e.Finished() {
		return
	}
	state, err := e.Resign(username)
	if err != nil {
		log.Printf("[MM] resign rejected for %s in %s: %v", username, gameID, err)
		return
	}
	log.Printf("[MM] %s resigned from %s", username, gameID)
	o.finish(e, state.Winner, state.Reason)
}

// OnDisconnect records the timestamp for the rejoin guard, warns the
// opponent, and arms the session's forfeit timer with the completion
// path as its callback.
func (o *Orchestrator) OnDisconnect(gameID, username string) {
	e, ok := o.getGame(gameID)
	if !ok || e.Finished() {
		return
	}

	o.mu.Lock()
	o.disconnectAt[disconnectKey(gameID, username)] = time.Now()
	o.mu.Unlock()

	log.Printf("[MM] disconnect: %s from %s", username, gameID)

	o.broadcast(e, domain.ServerMessage{
		Type:               "playerDisconnected",
		GameID:             gameID,
		DisconnectedPlayer: username,
		TimeoutMs:          o.cfg.RejoinTimeout.Milliseconds(),
	})

	e.OnDisconnect(username, func(winner string, state domain.PublicState) {
		go o.events.PlayerForfeited(gameID, username)
		o.finish(e, winner, domain.ReasonForfeitTimeout)
		o.broadcast(e, domain.ServerMessage{
			Type:            "gameForfeitedByTimeout",
			GameID:          gameID,
			ForfeitedPlayer: username,
			Winner:          winner,
		})
	})
}

// finish is the single completion path: persist the result, publish the
// analytics event, notify both sides, and drop every trace of the
// session. Removing the game from the registry under the lock makes the
// path run at most once even if two triggers race.
func (o *Orchestrator) finish(e *game.Engine, winner, reason string) {
	gameID := e.ID()

	o.mu.Lock()
	if _, ok := o.games[gameID]; !ok {
		o.mu.Unlock()
		return
	}
	delete(o.games, gameID)
	for key := range o.disconnectAt {
		if len(key) > len(gameID) && key[:len(gameID)] == gameID && key[len(gameID)] == '/' {
			delete(o.disconnectAt, key)
		}
	}
	o.mu.Unlock()

	log.Printf("[MM] finish game %s: winner=%q reason=%s", gameID, winner, reason)

	seats := e.SeatUsers()
	createdAt := e.CreatedAt()
	ply := e.Ply()
	go func() {
		ctx := context.Background()
		if err := o.store.RecordResult(ctx, gameID, seats[0], seats[1], winner, reason, createdAt, time.Now(), ply); err != nil {
			log.Printf("[MM][DB] record result failed: %v", err)
		}
	}()

	go o.events.GameFinished(gameID, winner, reason, time.Since(createdAt))
	o.broadcast(e, domain.ServerMessage{
		Type:   "finish",
		GameID: gameID,
		Result: &domain.FinalResult{Winner: winner, Reason: reason},
	})
}

// broadcast sends to both seat occupants; sends to the bot identity (or
// any identity without a live handle) are silently dropped by the sender.
func (o *Orchestrator) broadcast(e *game.Engine, msg domain.ServerMessage) {
	for _, user := range e.SeatUsers() {
		if user == "" || user == e.BotName() {
			continue
		}
		o.sender.SendToUser(user, msg)
	}
}

// ActiveGames reports how many sessions are live (health/diagnostics).
func (o *Orchestrator) ActiveGames() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.games)
}

// InGame returns the id of the unfinished game the user participates in.
func (o *Orchestrator) InGame(username string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, e := range o.games {
		if e.IsParticipant(username) && !e.Finished() {
			return id, true
		}
	}
	return "", false
}
