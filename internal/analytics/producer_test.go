package analytics

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPublisher(t *testing.T) (*Publisher, *mocks.SyncProducer) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	mock := mocks.NewSyncProducer(t, config)
	return &Publisher{producer: mock, topic: "game-events"}, mock
}

func TestEventsAreKeyedByGameID(t *testing.T) {
	assert := assert.New(t)
	pub, mock := newMockPublisher(t)

	var captured event
	mock.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		require.NoError(t, err)
		assert.Equal("g1", string(key))

		value, err := msg.Value.Encode()
		require.NoError(t, err)
		return json.Unmarshal(value, &captured)
	})

	pub.MovePlayed("g1", 3, "alice", 4)

	assert.Equal("move.played", captured.Event)
	assert.Equal("g1", captured.GameID)
	assert.Equal(3, captured.Ply)
	assert.Equal("alice", captured.By)
	require.NotNil(t, captured.Col)
	assert.Equal(4, *captured.Col)
	assert.False(captured.Timestamp.IsZero())

	require.NoError(t, mock.Close())
}

func TestGameLifecycleEvents(t *testing.T) {
	assert := assert.New(t)
	pub, mock := newMockPublisher(t)

	var names []string
	checker := func(msg *sarama.ProducerMessage) error {
		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var ev event
		if err := json.Unmarshal(value, &ev); err != nil {
			return err
		}
		names = append(names, ev.Event)
		return nil
	}
	for i := 0; i < 4; i++ {
		mock.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(checker)
	}

	started := time.Now().Add(-time.Minute)
	pub.GameStarted("g2", "pvp", []string{"alice", "bob"}, started)
	pub.PlayerRejoined("g2", "alice")
	pub.PlayerForfeited("g2", "bob")
	pub.GameFinished("g2", "alice", "forfeit_timeout", time.Minute)

	assert.Equal([]string{"game.started", "player.rejoined", "player.forfeited", "game.finished"}, names)
	require.NoError(t, mock.Close())
}

func TestDisabledPublisherDropsEverything(t *testing.T) {
	pub := Disabled()

	pub.GameStarted("g3", "pve", []string{"alice", "BOT"}, time.Now())
	pub.MovePlayed("g3", 1, "alice", 3)
	pub.GameFinished("g3", "", "draw", time.Second)

	assert.NoError(t, pub.Close())
}
