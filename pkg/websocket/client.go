package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	UserID   primitive.ObjectID
	UserType string
	rooms    map[string]bool

	sendMu sync.Mutex
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, userID primitive.ObjectID, userType string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		UserID:   userID,
		UserType: userType,
		rooms:    make(map[string]bool),
	}
}

// enqueue hands a frame to the write pump. Returns false when the
// buffer is full or the client is already closed; the hub unregisters
// a closed client exactly once, so a reply racing the drop is a no-op
// instead of a send on a closed channel.
func (c *Client) enqueue(data []byte) bool {
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

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

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
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithError(err).WithUserID(c.UserID).Warn("Websocket read failed")
			}
			break
		}

		c.handleEvent(message)
	}
}

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

func (c *Client) handleEvent(message []byte) {
	var event Event
	if err := json.Unmarshal(message, &event); err != nil {
		c.hub.log.WithError(err).WithUserID(c.UserID).Warn("Dropping malformed client event")
		return
	}

	if !event.Kind.Valid() {
		c.hub.log.WithUserID(c.UserID).WithField("kind", string(event.Kind)).Warn("Dropping unknown event kind")
		return
	}

	// The sender identity always comes from the authenticated session,
	// never from the payload.
	event.UserID = c.UserID.Hex()
	event.Timestamp = time.Now().Unix()

	switch event.Kind {
	case EventJoinRoom:
		var payload RoomPayload
		if err := event.DecodePayload(&payload); err != nil || payload.RoomID == "" {
			return
		}
		c.hub.JoinRoom(c, payload.RoomID)
		c.hub.sendToClient(c, MustEvent(EventRoomJoined, payload.RoomID, RoomPayload{RoomID: payload.RoomID}))

	case EventLeaveRoom:
		var payload RoomPayload
		if err := event.DecodePayload(&payload); err != nil || payload.RoomID == "" {
			return
		}
		c.hub.LeaveRoom(c, payload.RoomID)
		c.hub.sendToClient(c, MustEvent(EventRoomLeft, payload.RoomID, RoomPayload{RoomID: payload.RoomID}))

	case EventPing:
		c.hub.sendToClient(c, MustEvent(EventPong, "", nil))

	case EventSendMessage, EventRiderLocationUpdate:
		if c.hub.inbound != nil {
			c.hub.inbound.HandleInbound(c, event)
		}

	default:
		// Server-originated kinds arriving from a client are ignored.
	}
}

// InRoom reports whether the client has joined the given room.
func (c *Client) InRoom(roomID string) bool {
	c.hub.mutex.RLock()
	defer c.hub.mutex.RUnlock()
	return c.rooms[roomID]
}
