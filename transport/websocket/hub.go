package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Pending broadcasts kept while the hub is busy
	broadcastBuffer = 256
)

// Events published by the validation server
const (
	EventFileValidated = "file_validated"
	EventBatchComplete = "batch_complete"
	EventLevelUpdated  = "level_updated"
)

// AllChannels subscribes a client to every channel
const AllChannels = "*"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		return true
	},
}

// Message represents a WebSocket message
type Message struct {
	Channel string      `json:"channel"`
	Event   string      `json:"event"`
	Data    interface{} `json:"data,omitempty"`
}

// Client represents a WebSocket client
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	channel string
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients by channel
	channels map[string]map[*Client]bool

	// Outbound events for subscribers
	broadcast chan *Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Subscriber count queries
	count chan countRequest

	// Closed when Run returns
	done chan struct{}
}

type countRequest struct {
	channel string
	reply   chan int
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		channels:   make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan countRequest),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop. All client bookkeeping happens on this
// goroutine. It returns when ctx is done, closing every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.channels {
				for client := range clients {
					h.unregisterClient(client)
				}
			}
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case req := <-h.count:
			req.reply <- h.subscribers(req.channel)
		}
	}
}

// ServeWS upgrades the request and subscribes the connection to channel
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, channel string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, 256),
		channel: channel,
	}

	select {
	case client.hub.register <- client:
	case <-h.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

// BroadcastEvent queues an event for the subscribers of channel. It never
// blocks; events are dropped when the hub falls behind.
func (h *Hub) BroadcastEvent(channel string, event string, data interface{}) {
	message := &Message{
		Channel: channel,
		Event:   event,
		Data:    data,
	}

	select {
	case h.broadcast <- message:
	default:
		log.Printf("WebSocket hub busy, dropping %s event for channel %s", event, channel)
	}
}

// ClientCount returns the number of clients subscribed to channel
func (h *Hub) ClientCount(ctx context.Context, channel string) (int, error) {
	req := countRequest{channel: channel, reply: make(chan int, 1)}
	select {
	case h.count <- req:
	case <-h.done:
		return 0, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	return <-req.reply, nil
}

// registerClient adds a client to its channel
func (h *Hub) registerClient(client *Client) {
	if h.channels[client.channel] == nil {
		h.channels[client.channel] = make(map[*Client]bool)
	}
	h.channels[client.channel][client] = true

	log.Printf("Client subscribed to channel %s (total clients: %d)",
		client.channel, len(h.channels[client.channel]))
}

// unregisterClient removes a client from its channel
func (h *Hub) unregisterClient(client *Client) {
	if clients, ok := h.channels[client.channel]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client.send)

			// Clean up empty channels
			if len(clients) == 0 {
				delete(h.channels, client.channel)
			}

			log.Printf("Client unsubscribed from channel %s (remaining clients: %d)",
				client.channel, len(clients))
		}
	}
}

// subscribers counts the clients of a channel
func (h *Hub) subscribers(channel string) int {
	return len(h.channels[channel])
}

// broadcastMessage sends a message to the channel and to wildcard subscribers
func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Failed to marshal broadcast message: %v", err)
		return
	}

	targets := []string{message.Channel}
	if message.Channel != AllChannels {
		targets = append(targets, AllChannels)
	}

	for _, channel := range targets {
		for client := range h.channels[channel] {
			select {
			case client.send <- data:
			default:
				// Client's send channel is full, drop it
				h.unregisterClient(client)
			}
		}
	}
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// Subscribers only listen; reads keep the connection alive
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection. Each
// event is written as its own text frame.
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
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
