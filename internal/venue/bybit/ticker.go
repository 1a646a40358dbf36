package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"tradexec/internal/infra"
)

const (
	tickerPingInterval = 20 * time.Second
	tickerReadTimeout  = 60 * time.Second
	tickerMaxRetries   = 10
)

// TickerWorker maintains a Bybit V5 public ticker subscription and caches the
// last traded price per symbol. The adapter consults it to estimate executed
// price and slippage, since the order response reports neither.
type TickerWorker struct {
	wsURL     string
	symbols   []string
	prices    map[string]decimal.Decimal
	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewTickerWorker creates a ticker worker for the given symbols.
func NewTickerWorker(wsURL string, symbols []string) *TickerWorker {
	return &TickerWorker{
		wsURL:   wsURL,
		symbols: symbols,
		prices:  make(map[string]decimal.Decimal),
	}
}

// Connect starts the WebSocket connection with automatic reconnection.
func (w *TickerWorker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.connectionLoop(ctx)

	return nil
}

func (w *TickerWorker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Bybit ticker panic recovered", slog.Any("panic", r))
		}
	}()

	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			slog.Info("Bybit ticker connection loop stopped")
			return
		default:
		}

		err := w.connect(ctx)
		if err != nil {
			slog.Warn("Bybit ticker connection failed",
				slog.Any("error", err),
				slog.Int("retry", retryCount),
			)

			delay := infra.CalculateBackoff(retryCount)
			retryCount++
			if retryCount > tickerMaxRetries {
				retryCount = 0
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		retryCount = 0
		w.readLoop(ctx)
	}
}

func (w *TickerWorker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	header := make(http.Header)
	header.Add("User-Agent", infra.DefaultUserAgent)

	conn, _, err := dialer.DialContext(ctx, w.wsURL, header)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()

	if err := w.subscribe(); err != nil {
		w.closeConnection()
		return fmt.Errorf("subscribe failed: %w", err)
	}

	go w.pingLoop(ctx)

	slog.Info("Bybit ticker WebSocket connected", slog.Int("symbols", len(w.symbols)))
	return nil
}

type wsRequest struct {
	Op   string   `json:"op"`
	Args []string `json:"args,omitempty"`
}

func (w *TickerWorker) subscribe() error {
	args := make([]string, 0, len(w.symbols))
	for _, symbol := range w.symbols {
		args = append(args, "tickers."+symbol)
	}

	msgBytes, err := json.Marshal(wsRequest{Op: "subscribe", Args: args})
	if err != nil {
		return err
	}

	return w.threadSafeWrite(websocket.TextMessage, msgBytes)
}

func (w *TickerWorker) threadSafeWrite(messageType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.RLock()
	conn := w.conn
	w.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("connection is nil")
	}

	return conn.WriteMessage(messageType, data)
}

func (w *TickerWorker) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(tickerPingInterval)
	defer ticker.Stop()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Bybit ticker pingLoop panic recovered", slog.Any("panic", r))
		}
	}()

	ping, _ := json.Marshal(wsRequest{Op: "ping"})
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.threadSafeWrite(websocket.TextMessage, ping); err != nil {
				slog.Warn("Bybit ticker ping failed", slog.Any("error", err))
			}
		}
	}
}

type tickerMessage struct {
	Topic string `json:"topic"`
	Op    string `json:"op"`
	Data  struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
	} `json:"data"`
}

func (w *TickerWorker) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()

		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(tickerReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Bybit ticker read error", slog.Any("error", err))
			}
			w.closeConnection()
			return
		}

		w.handleMessage(message)
	}
}

func (w *TickerWorker) handleMessage(message []byte) {
	var msg tickerMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}

	if msg.Op == "pong" || msg.Data.Symbol == "" || msg.Data.LastPrice == "" {
		return
	}

	price, err := decimal.NewFromString(msg.Data.LastPrice)
	if err != nil {
		return
	}

	w.mu.Lock()
	w.prices[msg.Data.Symbol] = price
	w.mu.Unlock()
}

// Price returns the last cached price for a symbol, if any.
func (w *TickerWorker) Price(symbol string) (decimal.Decimal, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	price, ok := w.prices[symbol]
	return price, ok
}

func (w *TickerWorker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
}

// Disconnect closes the connection.
func (w *TickerWorker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
	slog.Info("Bybit ticker WebSocket disconnected")
}

// IsConnected returns connection status.
func (w *TickerWorker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}
