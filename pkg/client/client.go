package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dreysen/voicelink/internal/protocol"
)

const (
	defaultLivenessTimeout  = 90 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
	defaultPingInterval     = 30 * time.Second

	writeTimeout = 10 * time.Second
)

// ErrNotConnected is returned by send methods while no live connection exists.
var ErrNotConnected = errors.New("client: not connected")

// ErrHandshakeRejected is returned when the server closes the connection
// during the auth handshake, e.g. for an invalid token.
var ErrHandshakeRejected = errors.New("client: handshake rejected")

// Config configures a Client.
type Config struct {
	// URL is the ws:// or wss:// endpoint of the session server.
	URL string

	// Token is the access token sent in the auth handshake.
	Token string

	// Backoff governs the reconnection retry cycle.
	Backoff BackoffPolicy

	// LivenessTimeout is how long the connection may stay silent before it
	// is considered dead and a reconnect cycle starts. Any inbound message
	// resets the clock. Defaults to 90s.
	LivenessTimeout time.Duration

	// HandshakeTimeout bounds dial plus auth acknowledgement. Defaults to 10s.
	HandshakeTimeout time.Duration

	// PingInterval is how often a ping message is sent to keep the
	// connection alive. Defaults to 30s.
	PingInterval time.Duration

	Logger *zap.Logger
}

// Client is a managed connection to a voicelink server. It owns the auth
// handshake, keeps the link alive, and reconnects with exponential backoff
// when the link drops. All methods are safe for concurrent use.
type Client struct {
	cfg    Config
	logger *zap.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	status    Status
	subs      []chan Status
	gen       int // connection generation, guards against stale loop exits
	sessionID string

	writeMu sync.Mutex

	messages     chan interface{}
	disconnected chan int // carries the generation that observed the drop
	done         chan struct{}
	closeOnce    sync.Once
	monitorStart sync.Once
}

// New creates a Client. Call Connect to establish the session.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("client: URL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("client: token is required")
	}
	if cfg.LivenessTimeout <= 0 {
		cfg.LivenessTimeout = defaultLivenessTimeout
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	cfg.Backoff = cfg.Backoff.withDefaults()
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Client{
		cfg:          cfg,
		logger:       cfg.Logger,
		status:       Status{State: StateDisconnected},
		messages:     make(chan interface{}, 64),
		disconnected: make(chan int, 1),
		done:         make(chan struct{}),
	}, nil
}

// Connect dials the server and completes the auth handshake. On success the
// client is Connected and begins delivering messages; a background monitor
// then keeps the session alive across drops. A failed attempt enters the
// same backoff cycle the monitor uses, so the error surfaces only once
// every attempt is exhausted. Rejected credentials are the exception:
// retrying them cannot help, so the client goes Failed immediately.
func (c *Client) Connect(ctx context.Context) error {
	c.setStatus(Status{State: StateConnecting})

	conn, sessionID, err := c.dial(ctx)
	if err != nil {
		if errors.Is(err, ErrHandshakeRejected) {
			c.setStatus(Status{State: StateFailed})
			return err
		}
		c.logger.Warn("Initial connect failed, entering retry cycle", zap.Error(err))
		if !c.reconnect() {
			return err
		}
		c.startMonitor()
		return nil
	}

	c.adopt(conn, sessionID)
	c.startMonitor()
	return nil
}

// adopt installs a fresh connection, bumps the generation, and starts the
// read and ping loops for it.
func (c *Client) adopt(conn *websocket.Conn, sessionID string) {
	c.mu.Lock()
	c.conn = conn
	c.gen++
	c.sessionID = sessionID
	gen := c.gen
	c.mu.Unlock()

	c.setStatus(Status{State: StateConnected})

	go c.readLoop(conn, gen)
	go c.pingLoop(conn, gen)
}

// startMonitor launches the drop monitor exactly once per client, no matter
// how many times Connect is called.
func (c *Client) startMonitor() {
	c.monitorStart.Do(func() {
		go c.monitor()
	})
}

// dial opens a connection and runs the handshake: send auth, await the
// acknowledgement. Returns the server-assigned session id.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, string, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.cfg.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("client: dial %s: %w", c.cfg.URL, err)
	}

	payload, err := protocol.Encode(protocol.NewAuth(c.cfg.Token))
	if err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("client: encode auth: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("client: send auth: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		if websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
			return nil, "", fmt.Errorf("%w: %v", ErrHandshakeRejected, err)
		}
		return nil, "", fmt.Errorf("client: awaiting ack: %w", err)
	}
	decoded, err := protocol.Decode(raw)
	if err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("client: decode ack: %w", err)
	}
	ack, ok := decoded.(*protocol.ConnectionAckMessage)
	if !ok {
		conn.Close()
		return nil, "", fmt.Errorf("%w: expected connection_ack, got %T", ErrHandshakeRejected, decoded)
	}

	return conn, ack.SessionID, nil
}

// readLoop delivers decoded wire messages until the connection breaks. The
// read deadline doubles as the liveness clock: any inbound frame pushes it
// forward, and silence past the timeout tears the connection down.
func (c *Client) readLoop(conn *websocket.Conn, gen int) {
	for {
		conn.SetReadDeadline(time.Now().Add(c.cfg.LivenessTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.connectionLost(gen, err)
			return
		}

		decoded, err := protocol.Decode(raw)
		if err != nil {
			if errors.Is(err, protocol.ErrUnknownType) {
				continue
			}
			c.logger.Warn("Dropping undecodable message", zap.Error(err))
			continue
		}

		select {
		case c.messages <- decoded:
		case <-c.done:
			return
		default:
			c.logger.Warn("Message channel full, dropping inbound message")
		}
	}
}

// pingLoop keeps the link warm so the liveness clock has traffic to observe.
func (c *Client) pingLoop(conn *websocket.Conn, gen int) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if !c.isCurrent(conn, gen) {
				return
			}
			payload, err := protocol.Encode(&protocol.PingMessage{
				BaseMessage: protocol.BaseMessage{Type: protocol.MessageTypePing},
			})
			if err != nil {
				return
			}
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err = conn.WriteMessage(websocket.TextMessage, payload)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *Client) isCurrent(conn *websocket.Conn, gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn == conn && c.gen == gen
}

// connectionLost reports a broken connection to the monitor, unless the drop
// came from a stale generation or a user-requested disconnect.
func (c *Client) connectionLost(gen int, cause error) {
	select {
	case <-c.done:
		return
	default:
	}

	c.mu.Lock()
	stale := gen != c.gen
	if !stale && c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
	if stale {
		return
	}

	c.logger.Warn("Connection lost", zap.Error(cause))
	select {
	case c.disconnected <- gen:
	default:
	}
}

// monitor waits for drop notifications and runs the reconnect cycle.
func (c *Client) monitor() {
	for {
		select {
		case <-c.done:
			return
		case <-c.disconnected:
			if !c.reconnect() {
				return
			}
		}
	}
}

// reconnect attempts to restore the session with exponential backoff.
// Returns false when the cycle ends in a terminal state.
func (c *Client) reconnect() bool {
	for attempt := 1; attempt <= c.cfg.Backoff.MaxAttempts; attempt++ {
		c.setStatus(Status{State: StateReconnecting, Attempt: attempt})

		delay := c.cfg.Backoff.Delay(attempt)
		c.logger.Info("Reconnecting",
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", c.cfg.Backoff.MaxAttempts),
			zap.Duration("backoff", delay))

		select {
		case <-c.done:
			return false
		case <-time.After(delay):
		}

		c.setStatus(Status{State: StateConnecting})
		conn, sessionID, err := c.dial(context.Background())
		if err != nil {
			c.logger.Warn("Reconnection attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			if errors.Is(err, ErrHandshakeRejected) {
				// The server refused the credentials; retrying cannot help.
				c.setStatus(Status{State: StateFailed})
				return false
			}
			continue
		}

		c.logger.Info("Reconnected", zap.Int("attempt", attempt), zap.String("sessionID", sessionID))
		c.adopt(conn, sessionID)
		return true
	}

	c.logger.Error("Reconnection failed after max attempts",
		zap.Int("maxAttempts", c.cfg.Backoff.MaxAttempts))
	c.setStatus(Status{State: StateFailed})
	return false
}

// Disconnect closes the session cleanly and suppresses reconnection.
// Safe to call more than once.
func (c *Client) Disconnect() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.mu.Unlock()

		if conn != nil {
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			c.writeMu.Unlock()
			err = conn.Close()
		}

		c.setStatus(Status{State: StateDisconnected})
	})
	return err
}

// SendAudio transmits one binary PCM frame.
func (c *Client) SendAudio(data []byte) error {
	return c.write(websocket.BinaryMessage, data)
}

// SendText submits typed input that bypasses audio buffering on the server.
func (c *Client) SendText(text string) error {
	payload, err := protocol.Encode(protocol.NewTextInput(text))
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, payload)
}

// EndAudio asks the server to process whatever audio it has buffered.
func (c *Client) EndAudio() error {
	payload, err := protocol.Encode(&protocol.EndAudioMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.MessageTypeEndAudio},
	})
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, payload)
}

func (c *Client) write(messageType int, data []byte) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.status.State == StateConnected
	c.mu.Unlock()
	if conn == nil || !connected {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(messageType, data)
}

// Messages returns the stream of decoded server messages.
func (c *Client) Messages() <-chan interface{} {
	return c.messages
}

// SessionID returns the id assigned by the most recent handshake.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Status returns the current lifecycle snapshot.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// StatusChanges returns a channel that receives every state transition.
// Slow receivers miss transitions rather than blocking the client.
func (c *Client) StatusChanges() <-chan Status {
	ch := make(chan Status, 16)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()
	return ch
}

func (c *Client) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	subs := c.subs
	c.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- s:
		default:
		}
	}
}
