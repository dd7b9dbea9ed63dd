package websocket

import (
	"context"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LocalSellerID is the fiber local the upgrade route stores the
// authenticated seller under.
const LocalSellerID = "seller_id"

type conn interface {
	WriteJSON(v any) error
	Close() error
}

type client struct {
	sellerID uuid.UUID
	conn     conn
}

type envelope struct {
	sellerID uuid.UUID
	event    any
}

// Hub keeps every open account connection per seller and pushes events to
// them. A seller may have several tabs open.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan envelope
	done       chan struct{}
	clients    map[uuid.UUID]map[*client]struct{}
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan envelope, 256),
		done:       make(chan struct{}),
		clients:    make(map[uuid.UUID]map[*client]struct{}),
		logger:     logger,
	}
}

// Run serves the hub until ctx ends. Connections opened afterwards are
// closed right away.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, set := range h.clients {
				for c := range set {
					_ = c.conn.Close()
				}
			}
			return
		case c := <-h.register:
			set, ok := h.clients[c.sellerID]
			if !ok {
				set = make(map[*client]struct{})
				h.clients[c.sellerID] = set
			}
			set[c] = struct{}{}
			h.logger.Debug("account client registered", zap.String("seller_id", c.sellerID.String()))
		case c := <-h.unregister:
			h.remove(c)
		case msg := <-h.broadcast:
			for c := range h.clients[msg.sellerID] {
				if err := c.conn.WriteJSON(msg.event); err != nil {
					h.logger.Warn("dropping account client", zap.String("seller_id", msg.sellerID.String()), zap.Error(err))
					_ = c.conn.Close()
					h.remove(c)
				}
			}
		}
	}
}

// join registers c unless the hub has stopped.
func (h *Hub) join(c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) remove(c *client) {
	set, ok := h.clients[c.sellerID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.sellerID)
	}
}

// Publish queues event for sellerID's connections. It never blocks; events
// are dropped when the hub is saturated.
func (h *Hub) Publish(sellerID uuid.UUID, event any) {
	select {
	case h.broadcast <- envelope{sellerID: sellerID, event: event}:
	default:
		h.logger.Warn("account event dropped, hub saturated", zap.String("seller_id", sellerID.String()))
	}
}

// Handler serves one upgraded connection until the client goes away.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		sellerID, ok := c.Locals(LocalSellerID).(uuid.UUID)
		if !ok {
			_ = c.Close()
			return
		}
		cl := &client{sellerID: sellerID, conn: c}
		if !h.join(cl) {
			_ = c.Close()
			return
		}
		defer h.leave(cl)

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})
}
