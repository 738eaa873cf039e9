package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatgate/internal/config"
	"chatgate/internal/constants"
	"chatgate/internal/logger"
	"chatgate/pkg/models"
)

var upgrader = websocket.Upgrader{}

func writeFrame(t *testing.T, conn *websocket.Conn, frameType, id string, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(frame{Type: frameType, ID: id, Data: raw}))
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func bridgeConfig(url string) config.TransportConfig {
	return config.TransportConfig{
		Type:         constants.TransportBridge,
		AuthMode:     constants.AuthModePairingCode,
		PairingPhone: "+62 821-111",
		Bridge: config.BridgeConfig{
			URL:   url,
			Token: "tok",
			Reconnect: config.RetryConfig{
				InitialInterval: time.Millisecond,
				MaxInterval:     5 * time.Millisecond,
				Multiplier:      2,
			},
		},
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestBridge_Session(t *testing.T) {
	var auth authRequest
	var sent models.OutboundRecord
	sendSeen := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		f := readFrame(t, conn)
		assert.Equal(t, frameAuth, f.Type)
		require.NoError(t, json.Unmarshal(f.Data, &auth))

		writeFrame(t, conn, frameConnection, "", models.ConnectionUpdate{State: models.ConnectionOpen, SelfID: "628111:12@s.whatsapp.net"})
		writeFrame(t, conn, frameMessages, "", map[string]interface{}{
			"messages": []map[string]interface{}{{
				"key":     map[string]interface{}{"id": "EV1", "remoteJid": "628222@s.whatsapp.net"},
				"message": map[string]interface{}{"conversation": "!ping"},
			}},
		})

		f = readFrame(t, conn)
		assert.Equal(t, frameSend, f.Type)
		require.NoError(t, json.Unmarshal(f.Data, &sent))
		close(sendSeen)
		writeFrame(t, conn, frameSendResult, f.ID, sendResult{MessageID: "WA-1"})

		writeFrame(t, conn, frameConnection, "", models.ConnectionUpdate{State: models.ConnectionClosed, LoggedOut: true})
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	b := NewBridge(bridgeConfig(wsURL(server)), nil, logger.NopLogger())

	var mu sync.Mutex
	var updates []models.ConnectionUpdate
	b.OnConnection(func(u models.ConnectionUpdate) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
	})

	events := make(chan *models.RawEvent, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- b.Start(context.Background(), EventHandlerFunc(func(_ context.Context, raw *models.RawEvent) error {
			events <- raw
			return nil
		}))
	}()

	var raw *models.RawEvent
	select {
	case raw = <-events:
	case <-time.After(5 * time.Second):
		t.Fatal("no event delivered")
	}
	assert.Equal(t, "EV1", raw.Key.ID)
	assert.Equal(t, "!ping", raw.Message.Payload(models.TagConversation).Conversation)
	assert.True(t, b.Connected())
	assert.Equal(t, "628111@s.whatsapp.net", b.SelfID())

	id, err := b.Send(context.Background(), "628222@s.whatsapp.net", models.TextContent{Text: "Pong!"},
		models.SendOptions{Quoted: &models.MessageKey{ID: "EV1", RemoteJID: "628222@s.whatsapp.net"}})
	require.NoError(t, err)
	assert.Equal(t, "WA-1", id)
	<-sendSeen
	assert.Equal(t, "628222@s.whatsapp.net", sent.To)
	assert.Equal(t, "Pong!", sent.Content["text"])
	assert.Equal(t, "EV1", sent.Quoted.ID)

	select {
	case err := <-errCh:
		assert.Equal(t, errLoggedOut, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not stop after logout")
	}

	assert.Equal(t, constants.AuthModePairingCode, auth.AuthMode)
	assert.Equal(t, "62821111", auth.Phone)
	assert.False(t, b.Connected())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, updates, 2)
	assert.Equal(t, models.ConnectionOpen, updates[0].State)
	assert.True(t, updates[1].LoggedOut)
}

func TestBridge_ReconnectsUntilLoggedOut(t *testing.T) {
	var sessions int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		readFrame(t, conn)
		if atomic.AddInt32(&sessions, 1) < 3 {
			writeFrame(t, conn, frameConnection, "", models.ConnectionUpdate{State: models.ConnectionClosed, Reason: "stream errored"})
			return
		}
		writeFrame(t, conn, frameConnection, "", models.ConnectionUpdate{State: models.ConnectionClosed, LoggedOut: true})
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	b := NewBridge(bridgeConfig(wsURL(server)), nil, logger.NopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := b.Start(ctx, EventHandlerFunc(func(context.Context, *models.RawEvent) error { return nil }))
	assert.Equal(t, errLoggedOut, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&sessions))
}

func TestBridge_StopsOnCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	b := NewBridge(bridgeConfig(wsURL(server)), nil, logger.NopLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- b.Start(ctx, EventHandlerFunc(func(context.Context, *models.RawEvent) error { return nil }))
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not stop")
	}
}

func TestBridge_SendWithoutConnection(t *testing.T) {
	b := NewBridge(bridgeConfig("ws://127.0.0.1:1"), nil, logger.NopLogger())
	_, err := b.Send(context.Background(), "x@s.whatsapp.net", models.TextContent{Text: "hi"}, models.SendOptions{})
	assert.Error(t, err)
}

func TestBridge_DuplicateSendResultDoesNotBlock(t *testing.T) {
	b := NewBridge(bridgeConfig("ws://127.0.0.1:1"), nil, logger.NopLogger())
	ch := make(chan sendResult, 1)
	b.pending["req-1"] = ch

	done := make(chan struct{})
	go func() {
		b.resolve("req-1", sendResult{MessageID: "first"})
		b.resolve("req-1", sendResult{MessageID: "second"})
		b.resolve("unknown", sendResult{MessageID: "third"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("resolve blocked on a repeated result")
	}
	assert.Equal(t, sendResult{MessageID: "first"}, <-ch)
	assert.Empty(t, b.pending)
}
