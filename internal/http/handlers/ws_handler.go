// README: Websocket push channels. One endpoint per role; the socket
// carries outbound lifecycle events and inbound action messages.
package handlers

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"usta/internal/http/middleware"
	"usta/internal/modules/location"
	"usta/internal/modules/order"
	"usta/internal/push"
	"usta/internal/types"
)

type WSHandler struct {
	upgrader websocket.Upgrader
	registry *push.Registry
	order    *order.Service
	location *location.Service
	log      *zap.Logger
}

func NewWSHandler(registry *push.Registry, orderSvc *order.Service, locationSvc *location.Service, log *zap.Logger) *WSHandler {
	return &WSHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Token auth makes cross-origin upgrades safe; mobile
			// clients send no Origin header at all.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		registry: registry,
		order:    orderSvc,
		location: locationSvc,
		log:      log,
	}
}

// wsConn adapts one websocket to the registry's Conn. Writes are
// serialized; gorilla forbids concurrent writers.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) Send(e push.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(e)
}

// actionMsg is the inbound action-channel message.
type actionMsg struct {
	Action    string     `json:"action"`
	OrderID   types.ID   `json:"order_id"`
	WorkerIDs []types.ID `json:"worker_ids,omitempty"`
	Payload   string     `json:"payload,omitempty"`
}

// ack is the immediate positive reply to an action.
type ack struct {
	Message string   `json:"message"`
	Action  string   `json:"action"`
	OrderID types.ID `json:"order_id,omitempty"`
}

// Worker serves a worker's push channel.
func (h *WSHandler) Worker(c *gin.Context) {
	uid := middleware.CallerUID(c)
	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	conn := &wsConn{conn: raw}
	key := push.WorkerKey(uid)
	h.registry.Register(key, conn)
	defer func() {
		h.registry.Unregister(key, conn)
		_ = raw.Close()
		h.location.HandleDisconnect(c.Request.Context(), uid)
	}()
	h.serve(c, conn, raw, uid, types.RoleWorker)
}

// Client serves a client's push channel.
func (h *WSHandler) Client(c *gin.Context) {
	uid := middleware.CallerUID(c)
	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	conn := &wsConn{conn: raw}
	key := push.ClientKey(uid)
	h.registry.Register(key, conn)
	defer func() {
		h.registry.Unregister(key, conn)
		_ = raw.Close()
	}()
	h.serve(c, conn, raw, uid, types.RoleClient)
}

func (h *WSHandler) serve(c *gin.Context, conn *wsConn, raw *websocket.Conn, uid types.ID, role string) {
	for {
		var msg actionMsg
		if err := raw.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("ws read", zap.String("uid", string(uid)), zap.Error(err))
			}
			return
		}
		h.handleAction(c, conn, msg, uid, role)
	}
}

func (h *WSHandler) handleAction(c *gin.Context, conn *wsConn, msg actionMsg, uid types.ID, role string) {
	ctx := c.Request.Context()

	switch msg.Action {
	case "accept", "reject":
		if role != types.RoleWorker {
			h.reply(conn, push.NewError(order.ErrPermissionDenied.Error()))
			return
		}
	case "confirm", "cancel":
	case "debug_echo":
		h.reply(conn, push.DebugEcho{Type: push.TypeDebugEcho, Payload: msg.Payload})
		return
	default:
		h.reply(conn, push.NewError("unknown action"))
		return
	}

	// The ack goes out before the action runs; lifecycle events the
	// action triggers on this same socket always arrive after it. A
	// failed action follows the ack with an error event.
	h.reply(conn, ackEvent{ack{Message: "ok", Action: msg.Action, OrderID: msg.OrderID}})

	var err error
	switch msg.Action {
	case "accept":
		err = h.order.Accept(ctx, order.AcceptCommand{OrderID: msg.OrderID, WorkerID: uid})
	case "reject":
		err = h.order.Reject(ctx, order.RejectCommand{OrderID: msg.OrderID, WorkerID: uid})
	case "confirm":
		err = h.order.Confirm(ctx, order.ConfirmCommand{OrderID: msg.OrderID, ActorID: uid})
	case "cancel":
		err = h.order.Cancel(ctx, order.CancelCommand{OrderID: msg.OrderID, ActorID: uid, WorkerIDs: msg.WorkerIDs})
	}
	if err != nil {
		h.reply(conn, push.NewError(err.Error()))
	}
}

func (h *WSHandler) reply(conn *wsConn, e push.Event) {
	if err := conn.Send(e); err != nil {
		h.log.Debug("ws send", zap.Error(err))
	}
}

// ackEvent lets a plain ack travel through the Conn interface.
type ackEvent struct {
	ack
}

func (ackEvent) EventType() string { return "ack" }
