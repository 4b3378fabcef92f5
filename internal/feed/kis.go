// Package feed streams realtime trade prints from the KIS websocket
// into the tick store.
package feed

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/pkg/config"
	"github.com/wonny/aegis/v14/pkg/logger"
)

const (
	// MaxSymbols is the KIS websocket subscription ceiling
	MaxSymbols = 40

	tradeTrID = "H0STCNT0" // 실시간 체결가

	reconnectDelay    = 5 * time.Second
	maxReconnectDelay = 5 * time.Minute
	pingInterval      = 30 * time.Second
	pongWait          = 60 * time.Second
	writeWait         = 10 * time.Second
)

// TickSink persists trade prints. *store.Store satisfies it; the
// holdings current-price mirror happens inside SaveTick.
type TickSink interface {
	SaveTick(ctx context.Context, t contracts.Tick) error
}

// Approver issues the websocket approval key
type Approver interface {
	ApprovalKey(ctx context.Context) (string, error)
}

// Feed manages the KIS websocket connection and its 40-symbol budget.
// ⭐ SSOT: KIS 웹소켓 연결/구독 관리는 여기서만
type Feed struct {
	cfg      config.KISConfig
	approver Approver
	sink     TickSink
	logger   *logger.Logger

	conn   *websocket.Conn
	connMu sync.RWMutex

	symbols   map[string]bool
	symbolsMu sync.RWMutex

	reconnecting bool
	reconnectMu  sync.Mutex

	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds the feed over an approval-key source and a tick sink
func New(cfg config.KISConfig, approver Approver, sink TickSink, log *logger.Logger) *Feed {
	return &Feed{
		cfg:      cfg,
		approver: approver,
		sink:     sink,
		logger:   log.WithComponent("feed"),
		symbols:  make(map[string]bool),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start connects and launches the read and ping loops
func (f *Feed) Start(ctx context.Context) error {
	if err := f.connect(ctx); err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}
	go f.readLoop(ctx)
	go f.pingLoop(ctx)
	return nil
}

// Stop closes the connection and waits for the read loop to drain
func (f *Feed) Stop() {
	close(f.stopCh)

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
	}
	f.connMu.Unlock()

	<-f.doneCh
}

// Subscribe adds symbols up to the 40-symbol budget; extras are
// dropped with a warning.
func (f *Feed) Subscribe(ctx context.Context, codes []string) error {
	key, err := f.approver.ApprovalKey(ctx)
	if err != nil {
		return fmt.Errorf("approval key: %w", err)
	}

	f.connMu.RLock()
	conn := f.conn
	f.connMu.RUnlock()
	if conn == nil {
		return fmt.Errorf("feed not connected")
	}

	for _, code := range codes {
		f.symbolsMu.Lock()
		if f.symbols[code] {
			f.symbolsMu.Unlock()
			continue
		}
		if len(f.symbols) >= MaxSymbols {
			f.symbolsMu.Unlock()
			f.logger.WithField("code", code).Warn("Symbol budget exhausted, dropping subscription")
			continue
		}
		f.symbols[code] = true
		f.symbolsMu.Unlock()

		if err := conn.WriteJSON(subscribeMessage(key, code, "1")); err != nil {
			f.logger.WithError(err).WithField("code", code).Error("Subscribe failed")
			f.symbolsMu.Lock()
			delete(f.symbols, code)
			f.symbolsMu.Unlock()
		}
	}
	return nil
}

// Unsubscribe removes symbols from the live subscription
func (f *Feed) Unsubscribe(ctx context.Context, codes []string) error {
	key, err := f.approver.ApprovalKey(ctx)
	if err != nil {
		return fmt.Errorf("approval key: %w", err)
	}

	f.connMu.RLock()
	conn := f.conn
	f.connMu.RUnlock()
	if conn == nil {
		return nil
	}

	for _, code := range codes {
		f.symbolsMu.Lock()
		if !f.symbols[code] {
			f.symbolsMu.Unlock()
			continue
		}
		delete(f.symbols, code)
		f.symbolsMu.Unlock()

		if err := conn.WriteJSON(subscribeMessage(key, code, "2")); err != nil {
			f.logger.WithError(err).WithField("code", code).Error("Unsubscribe failed")
		}
	}
	return nil
}

// ActiveSymbols returns the currently subscribed codes
func (f *Feed) ActiveSymbols() []string {
	f.symbolsMu.RLock()
	defer f.symbolsMu.RUnlock()
	codes := make([]string, 0, len(f.symbols))
	for code := range f.symbols {
		codes = append(codes, code)
	}
	return codes
}

func (f *Feed) connect(ctx context.Context) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.cfg.WSBaseURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", f.cfg.WSBaseURL, err)
	}
	f.conn = conn

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	f.logger.Info("Connected to KIS websocket")
	return nil
}

func (f *Feed) readLoop(ctx context.Context) {
	defer close(f.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.stopCh:
			return
		default:
		}

		f.connMu.RLock()
		conn := f.conn
		f.connMu.RUnlock()
		if conn == nil {
			time.Sleep(time.Second)
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-f.stopCh:
				return
			default:
			}
			f.logger.WithError(err).Error("Websocket read failed")
			f.handleDisconnect(ctx)
			continue
		}

		tick, ok := ParseTradeMessage(string(message))
		if !ok {
			continue // 구독 응답/핑 프레임
		}
		if err := f.sink.SaveTick(ctx, tick); err != nil {
			f.logger.WithError(err).WithField("ticker", tick.TickerCode).Warn("Tick save failed")
		}
	}
}

func (f *Feed) handleDisconnect(ctx context.Context) {
	f.reconnectMu.Lock()
	if f.reconnecting {
		f.reconnectMu.Unlock()
		return
	}
	f.reconnecting = true
	f.reconnectMu.Unlock()

	defer func() {
		f.reconnectMu.Lock()
		f.reconnecting = false
		f.reconnectMu.Unlock()
	}()

	f.logger.Warn("Websocket disconnected, reconnecting")

	delay := reconnectDelay
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.stopCh:
			return
		case <-time.After(delay):
		}

		if err := f.connect(ctx); err != nil {
			f.logger.WithError(err).WithField("delay", delay.String()).Error("Reconnect failed, retrying")
			delay *= 2
			if delay > maxReconnectDelay {
				delay = maxReconnectDelay
			}
			continue
		}

		// 재연결 후 기존 구독 복구
		if err := f.Subscribe(ctx, f.resubscribeList()); err != nil {
			f.logger.WithError(err).Error("Resubscribe failed")
		}
		f.logger.Info("Reconnected to KIS websocket")
		return
	}
}

// resubscribeList snapshots the symbol set and clears it so Subscribe
// re-sends every subscription on the fresh connection.
func (f *Feed) resubscribeList() []string {
	f.symbolsMu.Lock()
	defer f.symbolsMu.Unlock()
	codes := make([]string, 0, len(f.symbols))
	for code := range f.symbols {
		codes = append(codes, code)
	}
	f.symbols = make(map[string]bool)
	return codes
}

func (f *Feed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.stopCh:
			return
		case <-ticker.C:
			f.connMu.RLock()
			conn := f.conn
			f.connMu.RUnlock()
			if conn == nil {
				continue
			}
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				f.logger.WithError(err).Error("Ping failed")
			}
		}
	}
}

func subscribeMessage(approvalKey, code, trType string) map[string]interface{} {
	return map[string]interface{}{
		"header": map[string]interface{}{
			"approval_key": approvalKey,
			"custtype":     "P",
			"tr_type":      trType, // 1 구독, 2 해지
			"content-type": "utf-8",
		},
		"body": map[string]interface{}{
			"input": map[string]interface{}{
				"tr_id":  tradeTrID,
				"tr_key": code,
			},
		},
	}
}

// ParseTradeMessage decodes one realtime trade frame. KIS pushes
// pipe-delimited frames: flag|tr_id|count|payload where the payload
// fields are caret-separated. Non-trade frames (JSON control
// responses, pings) return ok=false.
func ParseTradeMessage(raw string) (contracts.Tick, bool) {
	if !strings.HasPrefix(raw, "0|") && !strings.HasPrefix(raw, "1|") {
		return contracts.Tick{}, false
	}
	parts := strings.SplitN(raw, "|", 4)
	if len(parts) != 4 || parts[1] != tradeTrID {
		return contracts.Tick{}, false
	}

	fields := strings.Split(parts[3], "^")
	// 체결 페이로드: 0=종목코드 1=체결시각 2=현재가 5=전일대비율 12=체결량
	if len(fields) < 13 {
		return contracts.Tick{}, false
	}

	price, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil || price <= 0 {
		return contracts.Tick{}, false
	}
	volume, _ := strconv.ParseInt(fields[12], 10, 64)
	changeRate, _ := strconv.ParseFloat(fields[5], 64)

	return contracts.Tick{
		TickerCode: fields[0],
		Timestamp:  time.Now(),
		Price:      price,
		Volume:     volume,
		ChangeRate: changeRate,
	}, true
}
