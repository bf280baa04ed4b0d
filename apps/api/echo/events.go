package echoapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	statedb "github.com/trezcool/academia/storage/database/state"
)

const (
	wsSendBuffer = 256
	wsWriteWait  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // portals are served from another origin
}

type (
	wsClient struct {
		conn *websocket.Conn
		send chan []byte
	}

	// hub broadcasts the state changes to the connected websockets.
	// Slow clients miss events: their send buffer is never waited on.
	hub struct {
		mu      sync.RWMutex
		clients map[*wsClient]struct{}
		closed  bool
		log     core.Logger
	}

	wsMessage struct {
		Type    string      `json:"type"`
		Payload interface{} `json:"payload,omitempty"`
	}
)

func newHub(logger core.Logger) *hub {
	return &hub{clients: make(map[*wsClient]struct{}), log: logger}
}

func (h *hub) register(conn *websocket.Conn, hello []byte) (*wsClient, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
	c.send <- hello
	h.clients[c] = struct{}{}
	go h.writePump(c)
	return c, true
}

func (h *hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (h *hub) broadcastEvent(ev statedb.ChangeEvent) {
	data, err := json.Marshal(wsMessage{Type: "change", Payload: ev})
	if err != nil {
		h.log.Error("marshalling change event", errors.Wrap(err, "json.Marshal"))
		return
	}
	h.broadcast(data)
}

// close disconnects every client and refuses new ones.
func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *hub) readPump(c *wsClient) {
	defer h.unregister(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *hub) writePump(c *wsClient) {
	defer func() {
		_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
		_ = c.conn.Close()
	}()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

type eventsApi struct {
	hub *hub
}

func registerEventsAPI(g *echo.Group, jwt echo.MiddlewareFunc, h *hub) {
	api := eventsApi{hub: h}
	g.GET("/events", api.subscribe, jwt)
}

// subscribe streams the state changes (see statedb.ChangeEvent) over a websocket.
func (api *eventsApi) subscribe(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	hello, err := json.Marshal(wsMessage{Type: "connected", Payload: echo.Map{"role": claims.Role}})
	if err != nil {
		return errors.Wrap(err, "marshalling hello")
	}

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return nil // the upgrader replied already
	}
	c, ok := api.hub.register(conn, hello)
	if !ok {
		_ = conn.Close()
		return nil
	}
	api.hub.readPump(c)
	return nil
}
