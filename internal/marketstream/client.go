package marketstream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/polyarb/polyarb/pkg/types"
	"go.uber.org/zap"
)

// Config configures a Client connecting to the Polymarket CLOB
// WebSocket feed.
type Config struct {
	URL                   string
	DialTimeout           time.Duration
	PongTimeout           time.Duration
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	MessageBufferSize     int
	Logger                *zap.Logger
}

// Client is the gorilla/websocket-backed Stream implementation.
type Client struct {
	url    string
	logger *zap.Logger
	config Config

	reconnectMgr *reconnectManager
	seq          *sequencer

	conn        *websocket.Conn
	messageChan chan *types.StreamMessage

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu              sync.RWMutex
	subscribed      map[types.TokenId]struct{}
	connected       atomic.Bool
	state           atomic.Int32
	connectionStart atomic.Int64
}

var _ Stream = (*Client)(nil)

// New creates a Client. Connect must be called before Subscribe.
func New(cfg Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	reconnectCfg := ReconnectConfig{
		InitialDelay:      cfg.ReconnectInitialDelay,
		MaxDelay:          cfg.ReconnectMaxDelay,
		BackoffMultiplier: cfg.ReconnectBackoffMult,
		JitterPercent:     0.2,
	}

	c := &Client{
		url:          cfg.URL,
		logger:       cfg.Logger,
		config:       cfg,
		reconnectMgr: newReconnectManager(reconnectCfg, cfg.Logger),
		seq:          newSequencer(),
		messageChan:  make(chan *types.StreamMessage, cfg.MessageBufferSize),
		ctx:          ctx,
		cancel:       cancel,
		subscribed:   make(map[types.TokenId]struct{}),
	}
	c.state.Store(int32(Disconnected))
	return c
}

// Connect dials the upstream feed and starts the read, ping and
// reconnect-supervisor goroutines.
func (c *Client) Connect(ctx context.Context) error {
	c.state.Store(int32(Connecting))
	if err := c.dial(c.ctx); err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}

	c.wg.Add(3)
	go c.readLoop()
	go c.pingLoop()
	go c.reconnectLoop()

	return nil
}

func (c *Client) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.config.DialTimeout}

	c.logger.Info("marketstream-connecting", zap.String("url", c.url))
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	conn.SetPongHandler(func(string) error { return nil })

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	now := time.Now()
	c.connected.Store(true)
	c.connectionStart.Store(now.Unix())
	c.state.Store(int32(Streaming))
	ActiveConnections.Set(1)

	c.logger.Info("marketstream-connected")
	return nil
}

// Subscribe adds tokenIDs to the live subscription set.
func (c *Client) Subscribe(ctx context.Context, tokenIDs []types.TokenId) error {
	if len(tokenIDs) == 0 {
		return nil
	}

	c.state.Store(int32(Subscribing))
	c.mu.Lock()

	newTokens := make([]string, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		if _, ok := c.subscribed[id]; !ok {
			newTokens = append(newTokens, string(id))
			c.subscribed[id] = struct{}{}
		}
	}

	if len(newTokens) == 0 {
		c.mu.Unlock()
		c.state.Store(int32(Streaming))
		return nil
	}

	msg := map[string]interface{}{"assets_ids": newTokens, "type": "market"}
	total := len(c.subscribed)
	conn := c.conn
	c.mu.Unlock()

	if err := conn.WriteJSON(msg); err != nil {
		c.mu.Lock()
		for _, id := range newTokens {
			delete(c.subscribed, types.TokenId(id))
		}
		total = len(c.subscribed)
		c.mu.Unlock()
		SubscriptionCount.Set(float64(total))
		return fmt.Errorf("write subscribe message: %w", err)
	}

	SubscriptionCount.Set(float64(total))
	c.state.Store(int32(Streaming))
	c.logger.Info("marketstream-subscribed", zap.Int("new", len(newTokens)), zap.Int("total", total))
	return nil
}

// Unsubscribe removes tokenIDs from the live subscription set.
func (c *Client) Unsubscribe(ctx context.Context, tokenIDs []types.TokenId) error {
	if len(tokenIDs) == 0 {
		return nil
	}

	c.mu.Lock()
	removed := make([]string, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		if _, ok := c.subscribed[id]; ok {
			removed = append(removed, string(id))
			delete(c.subscribed, id)
		}
	}
	if len(removed) == 0 {
		c.mu.Unlock()
		return nil
	}

	msg := map[string]interface{}{"assets_ids": removed, "operation": "unsubscribe"}
	total := len(c.subscribed)
	conn := c.conn
	c.mu.Unlock()

	if err := conn.WriteJSON(msg); err != nil {
		c.mu.Lock()
		for _, id := range removed {
			c.subscribed[types.TokenId(id)] = struct{}{}
		}
		total = len(c.subscribed)
		c.mu.Unlock()
		SubscriptionCount.Set(float64(total))
		return fmt.Errorf("write unsubscribe message: %w", err)
	}

	for _, id := range removed {
		c.seq.reset(types.TokenId(id))
	}
	SubscriptionCount.Set(float64(total))
	return nil
}

func (c *Client) readLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, frame, err := conn.ReadMessage()
		if err != nil {
			c.logger.Warn("marketstream-read-error", zap.Error(err))

			if start := c.connectionStart.Load(); start > 0 {
				ConnectionDuration.Observe(time.Since(time.Unix(start, 0)).Seconds())
			}
			c.connected.Store(false)
			c.state.Store(int32(Disconnected))
			ActiveConnections.Set(0)
			return
		}

		start := time.Now()
		msgs, err := decodeFrame(frame, c.seq)
		if err != nil {
			c.logger.Debug("marketstream-unparseable-frame", zap.Error(err), zap.Int("bytes", len(frame)))
			continue
		}

		for _, m := range msgs {
			MessagesReceivedTotal.WithLabelValues(m.Kind.String()).Inc()
			select {
			case c.messageChan <- m:
			default:
				c.logger.Warn("marketstream-channel-full", zap.String("kind", m.Kind.String()))
				MessagesDroppedTotal.WithLabelValues("channel_full").Inc()
			}
		}
		MessageLatencySeconds.Observe(time.Since(start).Seconds())
	}
}

func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if !c.connected.Load() {
				continue
			}
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()
			if conn == nil {
				continue
			}
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second)); err != nil {
				c.logger.Warn("marketstream-ping-error", zap.Error(err))
			}
		}
	}
}

func (c *Client) reconnectLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		if c.connected.Load() {
			time.Sleep(time.Second)
			continue
		}

		c.logger.Warn("marketstream-connection-lost")

		if err := c.reconnectMgr.reconnect(c.ctx, c.dial); err != nil {
			return
		}

		if err := c.resubscribeAll(); err != nil {
			c.logger.Error("marketstream-resubscribe-failed", zap.Error(err))
			c.connected.Store(false)
			continue
		}

		c.wg.Add(1)
		go c.readLoop()
	}
}

func (c *Client) resubscribeAll() error {
	c.mu.RLock()
	tokenIDs := make([]string, 0, len(c.subscribed))
	for id := range c.subscribed {
		tokenIDs = append(tokenIDs, string(id))
		c.seq.reset(id)
	}
	conn := c.conn
	c.mu.RUnlock()

	if len(tokenIDs) == 0 {
		return nil
	}

	msg := map[string]interface{}{"assets_ids": tokenIDs, "type": "market"}
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write resubscribe message: %w", err)
	}
	c.logger.Info("marketstream-resubscribed", zap.Int("count", len(tokenIDs)))
	return nil
}

// Messages returns the channel carrying decoded stream messages.
func (c *Client) Messages() <-chan *types.StreamMessage {
	return c.messageChan
}

// State reports the client's current position in the connection state
// machine.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Close tears down the connection and all supervisor goroutines.
func (c *Client) Close() error {
	c.logger.Info("marketstream-closing")
	c.cancel()

	c.mu.RLock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.mu.RUnlock()

	c.wg.Wait()
	close(c.messageChan)
	ActiveConnections.Set(0)
	c.state.Store(int32(Disconnected))
	return nil
}
