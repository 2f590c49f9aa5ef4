// Package websocket implements the real-time voice chat session engine: the
// connection hub, the per-session authentication handshake, audio buffering,
// and the transcription → generation → synthesis pipeline.
package websocket

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dreysen/voicelink/domain/entities"
	"github.com/dreysen/voicelink/domain/repositories"
	"github.com/dreysen/voicelink/internal/auth"
	"github.com/dreysen/voicelink/internal/config"
	"github.com/dreysen/voicelink/internal/metrics"
	"github.com/dreysen/voicelink/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Time allowed for the client to complete the auth handshake.
	authWait = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio frames
)

// Hub maintains the set of active clients and owns the shared collaborators
// each session's pipeline needs.
type Hub struct {
	// Registered clients, keyed by session id.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	verifier auth.Verifier
	stt      repositories.SpeechToText
	llm      repositories.LargeLanguageModel
	tts      repositories.TextToSpeech

	cfg      *config.Config
	upgrader websocket.Upgrader

	logger *zap.Logger
	stats  *metrics.Metrics
}

// NewHub creates a WebSocket hub. stats may be nil to disable instrumentation.
func NewHub(
	verifier auth.Verifier,
	stt repositories.SpeechToText,
	llm repositories.LargeLanguageModel,
	tts repositories.TextToSpeech,
	cfg *config.Config,
	logger *zap.Logger,
	stats *metrics.Metrics,
) *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		verifier:   verifier,
		stt:        stt,
		llm:        llm,
		tts:        tts,
		cfg:        cfg,
		logger:     logger,
		stats:      stats,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin accepts browser connections only from the configured CORS
// origins. Requests without an Origin header (non-browser clients) pass.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.Server.CORSOrigins) == 0 {
		return true
	}
	for _, allowed := range h.cfg.Server.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.session.ID] = client
			h.mu.Unlock()
			if h.stats != nil {
				h.stats.SessionsActive.Inc()
				h.stats.SessionsTotal.Inc()
			}
			h.logger.Info("Session registered",
				zap.String("sessionID", client.session.ID),
				zap.String("email", client.session.Email))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.session.ID]; ok {
				delete(h.clients, client.session.ID)
				close(client.send)
			}
			h.mu.Unlock()
			if h.stats != nil {
				h.stats.SessionsActive.Dec()
			}
			h.logger.Info("Session unregistered",
				zap.String("sessionID", client.session.ID))
		}
	}
}

// ActiveSessions returns the ids of all registered sessions.
func (h *Hub) ActiveSessions() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// WriteData is one outbound WebSocket frame.
type WriteData struct {
	// Type is websocket.TextMessage or websocket.BinaryMessage.
	Type    int
	Payload []byte
}

// Client is the middleman between one WebSocket connection and the hub. All
// inbound message handling for a session runs on its read loop, so the
// session's buffer and history never see concurrent mutation from the
// receive path.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	session  *entities.Session
	buffer   *AudioBuffer
	pipeline *Pipeline

	registered bool

	logger *zap.Logger
}

// HandleWebSocket upgrades an HTTP request and runs the session until the
// connection closes. The first client frame must be an auth message.
func HandleWebSocket(hub *Hub, c echo.Context, logger *zap.Logger) error {
	conn, err := hub.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	session := entities.NewSession()
	client := &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan WriteData, 256),
		session: session,
		buffer:  NewAudioBuffer(hub.cfg.Audio.WindowSeconds, hub.cfg.Audio.SampleRate),
		logger:  logger.With(zap.String("sessionID", session.ID)),
	}
	client.pipeline = NewPipeline(PipelineConfig{
		STT:     hub.stt,
		LLM:     hub.llm,
		TTS:     hub.tts,
		Session: session,
		AudioConfig: repositories.AudioConfig{
			SampleRate: hub.cfg.Audio.SampleRate,
			Encoding:   "LINEAR16",
			Language:   hub.cfg.STT.Language,
		},
		StageTimeout: hub.cfg.StageTimeout(),
		QueueSize:    hub.cfg.Pipeline.QueueSize,
		Emit:         client.enqueueMessage,
		Logger:       client.logger,
		Stats:        hub.stats,
	})

	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection into the session.
func (c *Client) readPump() {
	defer func() {
		c.pipeline.Close()
		if c.registered {
			c.hub.unregister <- c
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	if !c.authenticate() {
		return
	}

	c.hub.register <- c
	c.registered = true
	c.pipeline.Start()
	c.enqueueMessage(protocol.NewConnectionAck(c.session.ID))

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch messageType {
		case websocket.TextMessage:
			c.handleControlMessage(message)
		case websocket.BinaryMessage:
			c.handleAudioFrame(message)
		default:
			c.logger.Warn("Received unknown frame type", zap.Int("type", messageType))
		}
	}
}

// authenticate performs the handshake: the first frame must be a JSON auth
// message carrying a valid access token for an allow-listed principal. Any
// other first frame, or an invalid token, closes the connection with a
// policy-violation code.
func (c *Client) authenticate() bool {
	c.conn.SetReadDeadline(time.Now().Add(authWait))

	messageType, message, err := c.conn.ReadMessage()
	if err != nil {
		c.logger.Warn("Connection closed before auth", zap.Error(err))
		return false
	}
	if messageType != websocket.TextMessage {
		c.closeWith(websocket.ClosePolicyViolation, "auth required")
		c.authFailed("first frame was not an auth message")
		return false
	}

	decoded, err := protocol.Decode(message)
	if err != nil {
		c.closeWith(websocket.ClosePolicyViolation, "auth required")
		c.authFailed("malformed auth frame")
		return false
	}
	authMsg, ok := decoded.(*protocol.AuthMessage)
	if !ok {
		c.closeWith(websocket.ClosePolicyViolation, "auth required")
		c.authFailed("first message was not auth")
		return false
	}
	if authMsg.Token == "" {
		c.closeWith(websocket.ClosePolicyViolation, "no token")
		c.authFailed("missing token")
		return false
	}

	email, err := c.hub.verifier.VerifyAccessToken(authMsg.Token)
	if err != nil {
		c.closeWith(websocket.ClosePolicyViolation, "invalid token")
		c.authFailed("token verification failed")
		return false
	}
	if !c.hub.verifier.IsAllowed(email) {
		c.closeWith(websocket.ClosePolicyViolation, "not authorized")
		c.authFailed("email not on allow-list")
		return false
	}

	if err := c.session.Authenticate(email); err != nil {
		c.closeWith(websocket.CloseInternalServerErr, "session error")
		return false
	}

	c.logger.Info("WebSocket authenticated", zap.String("email", email))
	return true
}

func (c *Client) authFailed(reason string) {
	if c.hub.stats != nil {
		c.hub.stats.AuthFailures.Inc()
	}
	c.logger.Warn("Authentication failed", zap.String("reason", reason))
}

// handleAudioFrame appends one binary PCM frame to the session buffer and
// drains a unit into the pipeline when the window fills. Failures here are
// contained to the message; the session stays up.
func (c *Client) handleAudioFrame(data []byte) {
	defer c.recoverProcessing("audio frame")

	if c.hub.stats != nil {
		c.hub.stats.FramesReceived.Inc()
		c.hub.stats.BytesBuffered.Add(float64(len(data)))
	}

	c.buffer.Append(data)
	c.logger.Debug("Buffered audio frame",
		zap.Int("size", len(data)),
		zap.Float64("bufferedSeconds", c.buffer.Duration()))

	if c.buffer.Ready() {
		c.submitBuffered()
		return
	}
	c.enqueueMessage(protocol.NewBuffering(c.buffer.Duration(), c.buffer.Window()))
}

// handleControlMessage dispatches one JSON frame. Unknown message types are
// ignored without terminating the connection.
func (c *Client) handleControlMessage(message []byte) {
	defer c.recoverProcessing("control message")

	decoded, err := protocol.Decode(message)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownType) {
			c.logger.Warn("Ignoring unknown message type")
			return
		}
		c.logger.Warn("Malformed control message", zap.Error(err))
		c.enqueueMessage(protocol.NewError(protocol.ErrCodeBadMessage, "malformed message"))
		return
	}

	switch msg := decoded.(type) {
	case *protocol.PingMessage:
		c.enqueueMessage(protocol.NewPong(msg.Data))

	case *protocol.TextInputMessage:
		if msg.Content == "" {
			c.enqueueMessage(protocol.NewError(protocol.ErrCodeBadMessage, "empty text input"))
			return
		}
		c.submit(Job{Text: msg.Content})

	case *protocol.EndAudioMessage:
		if c.buffer.Duration() > 0 {
			c.submitBuffered()
			return
		}
		c.enqueueMessage(protocol.NewInfo("no audio to process"))

	case *protocol.AuthMessage:
		// The session authenticates at most once per connection.
		c.enqueueMessage(protocol.NewError(protocol.ErrCodeAlreadyAuthed, "session already authenticated"))

	default:
		// Server-to-client types arriving inbound are ignored.
		c.logger.Warn("Ignoring inbound server message type")
	}
}

func (c *Client) submitBuffered() {
	unit := c.buffer.Drain()
	if c.hub.stats != nil {
		c.hub.stats.UnitsDrained.Inc()
	}
	c.submit(Job{Audio: &unit})
}

func (c *Client) submit(job Job) {
	if err := c.pipeline.Submit(job); err != nil {
		c.logger.Warn("Pipeline queue full, dropping unit")
		c.enqueueMessage(protocol.NewError(protocol.ErrCodePipelineBusy, "server busy, input dropped"))
	}
}

// recoverProcessing keeps a panic while handling one message from tearing
// down the session; the failure is reported as a turn-scoped error instead.
func (c *Client) recoverProcessing(what string) {
	if r := recover(); r != nil {
		c.logger.Error("Panic while processing message",
			zap.String("context", what),
			zap.Any("panic", r))
		c.enqueueMessage(protocol.NewError("internal_error", "failed to process message"))
	}
}

// enqueueMessage marshals a wire message onto the send channel without
// blocking. If the client cannot keep up the message is dropped; audio
// ordering is unaffected because responses are serialized upstream.
func (c *Client) enqueueMessage(msg interface{}) {
	payload, err := protocol.Encode(msg)
	if err != nil {
		c.logger.Error("Failed to encode message", zap.Error(err))
		return
	}
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Send buffer full, dropping message")
	}
}

// closeWith sends a close frame with the given code and closes the socket.
func (c *Client) closeWith(code int, reason string) {
	deadline := time.Now().Add(writeWait)
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	c.conn.Close()
}

// writePump pumps messages from the send channel to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
