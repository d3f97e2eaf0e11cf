package analytics

import (
	"encoding/json"
	"log"
	"time"

	"github.com/Shopify/sarama"
)

// Publisher emits game lifecycle events to Kafka. A disabled publisher
// (no brokers configured, or the dial failed) swallows every event, so
// analytics can never interfere with live games.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
}

type event struct {
	Event     string    `json:"event"`
	GameID    string    `json:"gameId"`
	Timestamp time.Time `json:"timestamp"`

	Mode     string   `json:"mode,omitempty"`
	Players  []string `json:"players,omitempty"`
	Ply      int      `json:"ply,omitempty"`
	By       string   `json:"by,omitempty"`
	Col      *int     `json:"col,omitempty"`
	Winner   string   `json:"winner,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Username string   `json:"username,omitempty"`
	Duration int64    `json:"durationMs,omitempty"`
}

// NewPublisher connects a sync producer. Messages are hash-partitioned
// by game id so each game's events stay ordered within a partition.
func NewPublisher(brokers []string, clientID, topic string) (*Publisher, error) {
	config := sarama.NewConfig()
	config.ClientID = clientID
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Producer.Retry.Max = 3
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}
	return &Publisher{producer: producer, topic: topic}, nil
}

// Disabled returns a publisher that drops every event.
func Disabled() *Publisher {
	return &Publisher{}
}

func (p *Publisher) emit(ev event) {
	if p.producer == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[KAFKA] marshal %s failed: %v", ev.Event, err)
		return
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.GameID),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		log.Printf("[KAFKA] send %s failed: %v", ev.Event, err)
	}
}

func (p *Publisher) GameStarted(gameID, mode string, players []string, startedAt time.Time) {
	p.emit(event{Event: "game.started", GameID: gameID, Mode: mode, Players: players, Timestamp: startedAt})
}

func (p *Publisher) MovePlayed(gameID string, ply int, by string, col int) {
	p.emit(event{Event: "move.played", GameID: gameID, Ply: ply, By: by, Col: &col})
}

func (p *Publisher) GameFinished(gameID, winner, reason string, duration time.Duration) {
	p.emit(event{Event: "game.finished", GameID: gameID, Winner: winner, Reason: reason, Duration: duration.Milliseconds()})
}

func (p *Publisher) PlayerRejoined(gameID, username string) {
	p.emit(event{Event: "player.rejoined", GameID: gameID, Username: username})
}

func (p *Publisher) PlayerForfeited(gameID, username string) {
	p.emit(event{Event: "player.forfeited", GameID: gameID, Username: username})
}

func (p *Publisher) Close() error {
	if p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
