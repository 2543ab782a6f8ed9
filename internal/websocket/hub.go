package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/counselkit/counsel/domain/repositories"
	"github.com/counselkit/counsel/internal/playback"
	"github.com/counselkit/counsel/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Prompts are small JSON
	// payloads, audio only ever flows server to client.
	maxMessageSize = 16 * 1024

	// submitTimeout bounds one full submission: stream, synthesize,
	// decode. Playback itself runs on its own clock.
	submitTimeout = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of active clients and the shared collaborators
// each client's advisor is built from.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	generator   repositories.AdviceGenerator
	synthesizer repositories.SpeechSynthesizer
	exchanges   repositories.ExchangeRepository
	clock       clock.Clock

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(
	generator repositories.AdviceGenerator,
	synthesizer repositories.SpeechSynthesizer,
	exchanges repositories.ExchangeRepository,
	clk clock.Clock,
	logger *zap.Logger,
) *Hub {
	return &Hub{
		clients:     make(map[string]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		generator:   generator,
		synthesizer: synthesizer,
		exchanges:   exchanges,
		clock:       clk,
		logger:      logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if prev, ok := h.clients[client.clientID]; ok {
				// A reconnect replaces the previous connection.
				prev.advisor.Stop()
				prev.shutdown()
			}
			h.clients[client.clientID] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("clientID", client.clientID))

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.clientID]; ok && current == client {
				delete(h.clients, client.clientID)
			}
			h.mu.Unlock()
			client.advisor.Stop()
			client.shutdown()
			h.logger.Info("Client unregistered", zap.String("clientID", client.clientID))
		}
	}
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
// Each client owns one advisor, so at most one speaking session exists
// per connection.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Queued submissions, processed one at a time in arrival order so
	// the last submit on the wire deterministically wins.
	submissions chan *SubmitMessage

	// Authenticated client ID for this connection
	clientID string

	// Per-connection orchestrator
	advisor *usecase.Advisor

	// Logger
	logger *zap.Logger

	validator *MessageValidator

	// Guards send against writes after shutdown. A stopped session's
	// timer can still be mid-callback when the connection goes away.
	sendMu sync.Mutex
	closed bool
}

// HandleWebSocketWithAuth handles websocket requests with a
// pre-authenticated client ID.
func HandleWebSocketWithAuth(hub *Hub, c echo.Context, clientID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan WriteData, 256),
		submissions: make(chan *SubmitMessage, 8),
		clientID:    clientID,
		logger:      logger,
		validator:   NewMessageValidator(),
	}

	engine := NewStreamEngine(client, hub.clock, logger)
	controller := playback.NewController(engine, hub.clock, logger)
	client.advisor = usecase.NewAdvisor(
		hub.generator,
		hub.synthesizer,
		hub.exchanges,
		controller,
		clientID,
		logger,
	)
	client.advisor.OnStateChange(func(state usecase.State) {
		client.sendJSON(CreateStateMessage(state))
	})

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()
	go client.submitLoop()

	// Initial state snapshot so the client can render immediately.
	client.sendJSON(CreateStateMessage(client.advisor.State()))

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
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

// processMessage processes incoming messages from the client
func (c *Client) processMessage(message []byte) {
	parsed, err := c.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Rejected message", zap.String("clientID", c.clientID), zap.Error(err))
		c.sendJSON(CreateErrorMessage("invalid_message", "message could not be parsed", err.Error()))
		return
	}

	switch msg := parsed.(type) {
	case *SubmitMessage:
		if !c.enqueueSubmit(msg) {
			c.sendJSON(CreateErrorMessage("busy", "too many pending submissions", ""))
		}
	case *StopMessage:
		c.advisor.Stop()
	case *PingMessage:
		c.sendJSON(CreatePongMessage(msg.Data))
	}
}

// submitLoop drains queued submissions one at a time. Stop messages
// bypass the queue: they are handled directly on the read pump.
func (c *Client) submitLoop() {
	for msg := range c.submissions {
		c.handleSubmit(msg)
	}
}

// handleSubmit runs one submission to completion. Submission errors
// are already reflected in the state the advisor publishes, so they
// are only logged here.
func (c *Client) handleSubmit(msg *SubmitMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	c.logger.Info("Submission received",
		zap.String("clientID", c.clientID),
		zap.Bool("thinkingMode", msg.ThinkingMode))

	if err := c.advisor.Submit(ctx, msg.Prompt, msg.ThinkingMode); err != nil {
		c.logger.Warn("Submission failed",
			zap.String("clientID", c.clientID),
			zap.Error(err))
	}
}

// enqueue offers outbound data without blocking the caller. Playback
// and state callbacks must never stall on a slow client.
func (c *Client) enqueue(data WriteData) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// enqueueSubmit queues a submission for the submit loop.
func (c *Client) enqueueSubmit(msg *SubmitMessage) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.submissions <- msg:
		return true
	default:
		return false
	}
}

// shutdown closes the outbound channels exactly once and fences off
// any further enqueues.
func (c *Client) shutdown() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	close(c.submissions)
}

func (c *Client) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal outbound message", zap.Error(err))
		return
	}
	if !c.enqueue(WriteData{Type: websocket.TextMessage, Payload: payload}) {
		c.logger.Warn("Dropped outbound message, send queue full",
			zap.String("clientID", c.clientID))
	}
}
