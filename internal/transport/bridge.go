package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chatgate/internal/config"
	"chatgate/internal/constants"
	"chatgate/internal/logger"
	"chatgate/internal/normalize"
	"chatgate/pkg/errors"
	"chatgate/pkg/metrics"
	"chatgate/pkg/models"
	"chatgate/pkg/retry"
)

const (
	frameAuth       = "auth"
	frameSend       = "send"
	frameSendResult = "send.result"
	frameMessages   = "messages.upsert"
	frameConnection = "connection.update"
	frameError      = "error"
)

var errLoggedOut = errors.ErrUnavailable.WithMessage("session logged out").AsFatal()

// frame is the envelope of every websocket message exchanged with the bridge.
type frame struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type authRequest struct {
	AuthMode string `json:"auth_mode"`
	Phone    string `json:"phone,omitempty"`
}

type upsertBatch struct {
	Messages []models.RawEvent `json:"messages"`
}

type sendResult struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error,omitempty"`
}

// Bridge talks to a protocol bridge over a websocket. The bridge owns the
// chat session; this side receives events and issues sends.
type Bridge struct {
	cfg       config.BridgeConfig
	authMode  string
	phone     string
	dialer    *websocket.Dialer
	fetcher   *HTTPFetcher
	logger    logger.Logger
	listeners listeners

	writeMu sync.Mutex
	connMu  sync.RWMutex
	conn    *websocket.Conn

	pendingMu sync.Mutex
	pending   map[string]chan sendResult

	selfID    atomic.Value
	connected atomic.Bool
}

func NewBridge(cfg config.TransportConfig, fetcher *HTTPFetcher, log logger.Logger) *Bridge {
	handshake := cfg.Bridge.HandshakeTimeout
	if handshake <= 0 {
		handshake = constants.DefaultHTTPTimeout
	}

	b := &Bridge{
		cfg:      cfg.Bridge,
		authMode: cfg.AuthMode,
		phone:    SanitizePhone(cfg.PairingPhone),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshake,
		},
		fetcher: fetcher,
		logger:  log,
		pending: make(map[string]chan sendResult),
	}
	if b.authMode == "" {
		b.authMode = constants.AuthModeQR
	}
	b.selfID.Store("")
	return b
}

// Start keeps a session open until ctx is canceled. Dropped sessions are
// redialed with exponential backoff unless the bridge reports a logout.
func (b *Bridge) Start(ctx context.Context, h EventHandler) error {
	backOff := retry.ReconnectBackoff(retry.PolicyFromConfig(b.cfg.Reconnect))

	for {
		b.logger.InfowCtx(ctx, "Starting connection", "url", b.cfg.URL)
		established, err := b.session(ctx, h)
		b.setConnected(false)

		if ctx.Err() != nil {
			return nil
		}
		if err == errLoggedOut {
			b.logger.ErrorwCtx(ctx, "Session logged out, not reconnecting")
			return err
		}
		if established {
			backOff.Reset()
		}

		delay := backOff.NextBackOff()
		metrics.TransportReconnectsTotal.WithLabelValues(constants.TransportBridge).Inc()
		b.logger.WarnwCtx(ctx, "Connection lost, reconnecting",
			"error", err,
			"delay", delay,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil
		}
	}
}

func (b *Bridge) session(ctx context.Context, h EventHandler) (bool, error) {
	header := http.Header{}
	if b.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+b.cfg.Token)
	}

	conn, _, err := b.dialer.DialContext(ctx, b.cfg.URL, header)
	if err != nil {
		return false, fmt.Errorf("failed to dial bridge: %w", err)
	}
	b.setConn(conn)
	defer func() {
		b.setConn(nil)
		conn.Close()
		b.failPending("connection closed")
	}()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			b.writeMu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			b.writeMu.Unlock()
			conn.Close()
		case <-stop:
		}
	}()

	auth := authRequest{AuthMode: b.authMode}
	if b.authMode == constants.AuthModePairingCode {
		auth.Phone = b.phone
	}
	if err := b.write(frameAuth, uuid.NewString(), auth); err != nil {
		return true, fmt.Errorf("failed to send auth: %w", err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("failed to read from bridge: %w", err)
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			b.logger.WarnwCtx(ctx, "Discarding malformed frame", "error", err)
			continue
		}

		if err := b.dispatch(ctx, h, f); err != nil {
			return true, err
		}
	}
}

func (b *Bridge) dispatch(ctx context.Context, h EventHandler, f frame) error {
	switch f.Type {
	case frameMessages:
		var batch upsertBatch
		if err := json.Unmarshal(f.Data, &batch); err != nil {
			b.logger.WarnwCtx(ctx, "Discarding malformed event batch", "error", err)
			return nil
		}
		for i := range batch.Messages {
			metrics.EventsReceivedTotal.WithLabelValues(constants.TransportBridge).Inc()
			if err := h.HandleEvent(ctx, &batch.Messages[i]); err != nil {
				b.logger.ErrorwCtx(ctx, "Event handler failed",
					"event_id", batch.Messages[i].Key.ID,
					"error", err,
				)
			}
		}

	case frameConnection:
		var update models.ConnectionUpdate
		if err := json.Unmarshal(f.Data, &update); err != nil {
			b.logger.WarnwCtx(ctx, "Discarding malformed connection update", "error", err)
			return nil
		}
		return b.handleConnection(ctx, update)

	case frameSendResult:
		var result sendResult
		if err := json.Unmarshal(f.Data, &result); err != nil {
			result = sendResult{Error: fmt.Sprintf("malformed send result: %v", err)}
		}
		b.resolve(f.ID, result)

	case frameError:
		b.logger.ErrorwCtx(ctx, "Bridge reported an error", "error", string(f.Data))

	default:
		b.logger.DebugwCtx(ctx, "Ignoring frame", "type", f.Type)
	}
	return nil
}

func (b *Bridge) handleConnection(ctx context.Context, update models.ConnectionUpdate) error {
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}
	b.logger.InfowCtx(ctx, "Connection update",
		"connection", update.State,
		"reason", update.Reason,
	)

	if update.SelfID != "" {
		b.selfID.Store(normalize.NormalizeID(update.SelfID))
	}

	switch update.State {
	case models.ConnectionOpen:
		b.setConnected(true)
	case models.ConnectionClosed:
		b.setConnected(false)
	}

	b.listeners.emit(update)

	if update.State == models.ConnectionClosed {
		if update.LoggedOut {
			return errLoggedOut
		}
		return fmt.Errorf("bridge closed session: %s", update.Reason)
	}
	return nil
}

// Send forwards content to the bridge and waits for its acknowledgement.
func (b *Bridge) Send(ctx context.Context, to string, content models.OutboundContent, opts models.SendOptions) (string, error) {
	reqID := uuid.NewString()
	record := models.EncodeOutbound(opts.MessageID, models.Outbound{To: to, Content: content, Options: opts})

	ch := make(chan sendResult, 1)
	b.pendingMu.Lock()
	b.pending[reqID] = ch
	b.pendingMu.Unlock()
	defer func() {
		b.pendingMu.Lock()
		delete(b.pending, reqID)
		b.pendingMu.Unlock()
	}()

	if err := b.write(frameSend, reqID, record); err != nil {
		return "", err
	}

	timer := time.NewTimer(constants.DefaultHTTPTimeout)
	defer timer.Stop()

	select {
	case result := <-ch:
		if result.Error != "" {
			return "", fmt.Errorf("bridge rejected send: %s", result.Error)
		}
		return result.MessageID, nil
	case <-timer.C:
		return "", fmt.Errorf("timed out waiting for send acknowledgement")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (b *Bridge) write(frameType, id string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s frame: %w", frameType, err)
	}

	conn := b.currentConn()
	if conn == nil {
		return errors.ErrUnavailable.WithMessage("bridge is not connected")
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return conn.WriteJSON(frame{Type: frameType, ID: id, Data: data})
}

// resolve hands a send result to its waiter. It never blocks the read loop;
// repeated results for one id are dropped.
func (b *Bridge) resolve(id string, result sendResult) {
	b.pendingMu.Lock()
	ch, ok := b.pending[id]
	delete(b.pending, id)
	b.pendingMu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- result:
	default:
	}
}

func (b *Bridge) failPending(reason string) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	for id, ch := range b.pending {
		select {
		case ch <- sendResult{Error: reason}:
		default:
		}
		delete(b.pending, id)
	}
}

func (b *Bridge) FetchMedia(ctx context.Context, desc models.MediaDescriptor) (io.ReadCloser, error) {
	return b.fetcher.FetchMedia(ctx, desc)
}

func (b *Bridge) SelfID() string {
	return b.selfID.Load().(string)
}

func (b *Bridge) Connected() bool {
	return b.connected.Load()
}

func (b *Bridge) OnConnection(fn func(models.ConnectionUpdate)) {
	b.listeners.add(fn)
}

func (b *Bridge) Close() error {
	conn := b.currentConn()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (b *Bridge) setConn(conn *websocket.Conn) {
	b.connMu.Lock()
	b.conn = conn
	b.connMu.Unlock()
}

func (b *Bridge) currentConn() *websocket.Conn {
	b.connMu.RLock()
	defer b.connMu.RUnlock()
	return b.conn
}

func (b *Bridge) setConnected(connected bool) {
	b.connected.Store(connected)
	metrics.SetTransportConnected(constants.TransportBridge, connected)
}
