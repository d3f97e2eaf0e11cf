package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Dharmateja69/4-in-Row/internal/domain"
	"github.com/Dharmateja69/4-in-Row/internal/service/matchmaking"
)

type nullStore struct{}

func (nullStore) UpsertPlayer(context.Context, string) error { return nil }
func (nullStore) CreateGame(context.Context, string, string, string, bool, time.Time) error {
	return nil
}
func (nullStore) RecordMove(context.Context, string, int, string, int, int, time.Time) error {
	return nil
}
func (nullStore) RecordResult(context.Context, string, string, string, string, string, time.Time, time.Time, int) error {
	return nil
}

type nullEvents struct{}

func (nullEvents) GameStarted(string, string, []string, time.Time)  {}
func (nullEvents) MovePlayed(string, int, string, int)              {}
func (nullEvents) GameFinished(string, string, string, time.Duration) {}
func (nullEvents) PlayerRejoined(string, string)                    {}
func (nullEvents) PlayerForfeited(string, string)                   {}

func newTestServer(t *testing.T, heartbeat time.Duration) (*ConnectionManager, *httptest.Server) {
	cm := NewConnectionManager()
	matches := matchmaking.NewOrchestrator(matchmaking.Config{
		RejoinTimeout: time.Second,
		MatchWait:     time.Hour,
		BotName:       "BOT",
	}, cm, nullStore{}, nullEvents{})

	h := NewHandler(cm, matches, heartbeat)
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(srv.Close)
	return cm, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestJoinQueuesPlayer(t *testing.T) {
	_, srv := newTestServer(t, time.Minute)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(domain.ClientMessage{
		Type:    "join",
		Payload: domain.ClientPayload{Username: "alice"},
	}))

	var queued domain.ServerMessage
	require.NoError(t, conn.ReadJSON(&queued))
	require.Equal(t, "queued", queued.Type)
}

func TestHeartbeatCoexistsWithConcurrentSends(t *testing.T) {
	cm, srv := newTestServer(t, 5*time.Millisecond)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(domain.ClientMessage{
		Type:    "join",
		Payload: domain.ClientPayload{Username: "alice"},
	}))

	var queued domain.ServerMessage
	require.NoError(t, conn.ReadJSON(&queued))
	require.Equal(t, "queued", queued.Type)

	// Client must keep reading so pings are answered with pongs.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Hammer the write path while the heartbeat ticks every 5ms; the
	// ping must not share WriteMessage with these writers.
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			deadline := time.Now().Add(150 * time.Millisecond)
			for time.Now().Before(deadline) {
				cm.SendToUser("alice", domain.ServerMessage{Type: "state"})
			}
		}()
	}
	wg.Wait()
}
