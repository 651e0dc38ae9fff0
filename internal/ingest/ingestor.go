// Package ingest implements the Ingestor: a combined multi-symbol
// trade-stream WebSocket client. It owns only the connection and its
// own state machine — every reconnect decision is delegated to the
// RecoveryManager through the OnDisconnect callback; the Ingestor
// itself never retries.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"grid-trading-btc-binance/internal/logger"
	"grid-trading-btc-binance/internal/model"
)

const (
	pingInterval        = 20 * time.Second
	pongWait            = 10 * time.Second
	subscribeAckTimeout = 5 * time.Second
	subscribeRequestID  = 1
)

// rawTrade mirrors the trade payload's field layout (spec §6); numeric
// fields travel as strings, as Binance's raw stream emits them, and
// are parsed into decimal.Decimal at the boundary.
type rawTrade struct {
	Event        string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	TradeID      int64  `json:"t"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	BuyerIsMaker bool   `json:"m"`
}

// combinedEnvelope unwraps the `/stream?streams=...` combined-stream
// wrapper, tolerated in addition to the raw `/ws` shape Start dials
// against, in case an operator points ExchangeWSBaseURL at a combined
// endpoint.
type combinedEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// subscribeRequest is the SUBSCRIBE frame sent immediately after dial
// (spec §6); subscribeResponse is its ack, which must be received
// before the connection may transition to CONNECTED (spec §4.10,
// testable property 7).
type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

type subscribeResponse struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result"`
}

// OnState is invoked on every connection state transition.
type OnState func(state model.ConnectionState)

// OnTrade is invoked for every parsed trade event.
type OnTrade func(trade model.TradeEvent)

// OnDisconnect is invoked when the read loop ends for any reason other
// than an explicit Stop(); the RecoveryManager is the sole consumer.
type OnDisconnect func(err error)

// Ingestor dials the combined trade stream for a fixed symbol set and
// exposes callbacks for state, trades, and disconnects. Grounded on
// the teacher's StreamService (Start/keepAliveLoop/readLoop/Stop
// shape), generalized from a single user-data listen-key stream to a
// combined public multi-symbol trade stream, and from "log and exit"
// to the full connection state machine.
type Ingestor struct {
	baseURL string
	symbols []string
	exchange string

	onState      OnState
	onTrade      OnTrade
	onDisconnect OnDisconnect

	mu      sync.Mutex
	conn    *websocket.Conn
	state   model.ConnectionState
	stopCh  chan struct{}
	closed  bool
}

// Config parameterizes a new Ingestor.
type Config struct {
	BaseURL  string
	Symbols  []string
	Exchange string
}

// New builds an Ingestor. The three callbacks are passed directly and
// any of them may be nil, but an Ingestor with no OnTrade is useless
// in practice.
func New(cfg Config, onState OnState, onTrade OnTrade, onDisconnect OnDisconnect) *Ingestor {
	return &Ingestor{
		baseURL:      cfg.BaseURL,
		symbols:      cfg.Symbols,
		exchange:     cfg.Exchange,
		onState:      onState,
		onTrade:      onTrade,
		onDisconnect: onDisconnect,
		state:        model.StateDisconnected,
	}
}

func (in *Ingestor) setState(s model.ConnectionState) {
	in.mu.Lock()
	in.state = s
	in.mu.Unlock()
	if in.onState != nil {
		in.onState(s)
	}
}

// State returns the current connection state.
func (in *Ingestor) State() model.ConnectionState {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state
}

// tradeParams builds the lowercased `<symbol>@trade` stream names the
// SUBSCRIBE frame's params carry, e.g. ["btcusdt@trade", "ethusdt@trade"].
func (in *Ingestor) tradeParams() []string {
	parts := make([]string, len(in.symbols))
	for i, s := range in.symbols {
		parts[i] = strings.ToLower(s) + "@trade"
	}
	return parts
}

// Start dials the stream, sends the SUBSCRIBE frame, and blocks in the
// read loop until the connection drops or Stop is called. Start never
// retries on its own; on any non-Stop termination it reports the
// error through onDisconnect and returns. The RecoveryManager is
// expected to call Start again (through Restart) after its own
// backoff delay.
func (in *Ingestor) Start(ctx context.Context) error {
	in.setState(model.StateConnecting)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, in.baseURL+"/ws", nil)
	if err != nil {
		in.setState(model.StateReconnecting)
		err = fmt.Errorf("dial trade stream: %w", err)
		if in.onDisconnect != nil {
			in.onDisconnect(err)
		}
		return err
	}

	in.mu.Lock()
	in.conn = conn
	in.stopCh = make(chan struct{})
	in.closed = false
	in.mu.Unlock()

	if err := in.subscribeAndAwaitAck(conn); err != nil {
		conn.Close()
		in.setState(model.StateReconnecting)
		if in.onDisconnect != nil {
			in.onDisconnect(err)
		}
		return err
	}

	conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		return nil
	})

	// Only reachable once the subscribe ack has been received, per
	// spec §4.10's CONNECTING -> CONNECTED transition.
	in.setState(model.StateConnected)
	logger.Info("ingestor connected", "exchange", in.exchange, "symbols", in.symbols)

	go in.pingLoop()

	err = in.readLoop()

	in.mu.Lock()
	stopped := in.closed
	in.mu.Unlock()

	if stopped {
		in.setState(model.StateClosed)
		return nil
	}

	in.setState(model.StateReconnecting)
	if in.onDisconnect != nil {
		in.onDisconnect(err)
	}
	return err
}

// subscribeAndAwaitAck sends the SUBSCRIBE frame for every configured
// symbol and blocks for its ack, bounded by subscribeAckTimeout. A
// subscribe rejection or malformed/mismatched ack is fatal for this
// attempt (spec §4.1: "a subscribe rejection is fatal for this
// attempt and triggers reconnection").
func (in *Ingestor) subscribeAndAwaitAck(conn *websocket.Conn) error {
	req := subscribeRequest{Method: "SUBSCRIBE", Params: in.tradeParams(), ID: subscribeRequestID}
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe frame: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(subscribeAckTimeout))
	_, message, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read subscribe ack: %w", err)
	}

	var ack subscribeResponse
	if err := json.Unmarshal(message, &ack); err != nil {
		return fmt.Errorf("parse subscribe ack: %w", err)
	}
	if ack.ID != req.ID {
		return fmt.Errorf("unexpected subscribe ack id %d, want %d", ack.ID, req.ID)
	}
	// A successful ack carries a "result" member (null); a rejection
	// carries an error code and message instead.
	if ack.Result == nil {
		return fmt.Errorf("subscribe rejected: %s", message)
	}
	return nil
}

func (in *Ingestor) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-in.stopCh:
			return
		case <-ticker.C:
			in.mu.Lock()
			conn := in.conn
			in.mu.Unlock()
			if conn == nil {
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				logger.Warn("ping write failed", "error", err)
				return
			}
		}
	}
}

func (in *Ingestor) readLoop() error {
	defer func() {
		in.mu.Lock()
		if in.conn != nil {
			in.conn.Close()
		}
		in.mu.Unlock()
	}()

	for {
		select {
		case <-in.stopCh:
			return nil
		default:
		}

		in.mu.Lock()
		conn := in.conn
		in.mu.Unlock()

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read trade stream: %w", err)
		}

		trade, ok := in.parse(message)
		if !ok {
			continue
		}
		if in.onTrade != nil {
			in.onTrade(trade)
		}
	}
}

func (in *Ingestor) parse(message []byte) (model.TradeEvent, bool) {
	var env combinedEnvelope
	payload := message
	if err := json.Unmarshal(message, &env); err == nil && len(env.Data) > 0 {
		payload = env.Data
	}

	var raw rawTrade
	if err := json.Unmarshal(payload, &raw); err != nil {
		logger.Error("failed to parse trade message", "error", err)
		return model.TradeEvent{}, false
	}
	if raw.Event != "trade" {
		return model.TradeEvent{}, false
	}

	price, err := decimal.NewFromString(raw.Price)
	if err != nil {
		logger.Error("invalid trade price", "raw", raw.Price, "error", err)
		return model.TradeEvent{}, false
	}
	qty, err := decimal.NewFromString(raw.Quantity)
	if err != nil {
		logger.Error("invalid trade quantity", "raw", raw.Quantity, "error", err)
		return model.TradeEvent{}, false
	}

	side := model.SideFromBuyerIsMaker(raw.BuyerIsMaker)
	trade, err := model.NewTradeEvent(in.exchange, raw.Symbol, side, price, qty, raw.TradeTime, fmt.Sprintf("%d", raw.TradeID))
	if err != nil {
		logger.Error("invalid trade event", "error", err)
		return model.TradeEvent{}, false
	}
	return trade, true
}

// Stop closes the connection cleanly; the resulting Start return is
// nil and the state transitions to CLOSED, not RECONNECTING.
func (in *Ingestor) Stop() {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return
	}
	in.closed = true
	if in.stopCh != nil {
		close(in.stopCh)
	}
	conn := in.conn
	in.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// MarkFailed transitions the Ingestor into the terminal FAILED state.
// Called by the RecoveryManager once its retry budget is exhausted —
// implements recovery.Restartable's MarkFailed half.
func (in *Ingestor) MarkFailed() {
	in.setState(model.StateFailed)
}

// Restart re-dials the stream in the background and reports errors
// back to the RecoveryManager via the standard onDisconnect path.
// Implements recovery.Restartable's Restart half.
func (in *Ingestor) Restart() error {
	go func() {
		if err := in.Start(context.Background()); err != nil {
			logger.Warn("restart attempt failed", "error", err)
		}
	}()
	return nil
}
