// Package pairingws is the realtime channel operators use to receive
// registration tokens and registration notices.
package pairingws

import (
	"context"
	"encoding/json"

	"github.com/Abraxas-365/identity/pkg/iam/auth"
	"github.com/Abraxas-365/identity/pkg/kernel"
	"github.com/Abraxas-365/identity/pkg/logx"
	"github.com/Abraxas-365/identity/pkg/pairing"
	"github.com/Abraxas-365/identity/pkg/pairing/pairinghub"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	TargetSubscribe = "SubscribeToClientRegistration"

	EventError = "ERROR"
	EventPong  = "PONG"
)

const defaultBuffer = 16

// Coordinator is the part of the pairing coordinator a connection drives.
type Coordinator interface {
	Subscribe(ctx context.Context, connID kernel.ConnectionID) error
	OnDisconnected(ctx context.Context, connID kernel.ConnectionID)
}

// Conn is the subset of *websocket.Conn used here.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type frame struct {
	Type   string `json:"type"`
	Target string `json:"target"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type Handler struct {
	coordinator Coordinator
	hub         *pairinghub.Hub
}

func NewHandler(coordinator Coordinator, hub *pairinghub.Hub) *Handler {
	return &Handler{
		coordinator: coordinator,
		hub:         hub,
	}
}

// RegisterRoutes mounts GET /hub/client. Only admins may open it.
func (h *Handler) RegisterRoutes(app fiber.Router, mw *auth.TokenMiddleware) {
	app.Get("/hub/client",
		mw.Authenticate(),
		mw.RequireAdmin(),
		requireUpgrade,
		websocket.New(h.serveWebsocket),
	)
}

func requireUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}

func (h *Handler) serveWebsocket(c *websocket.Conn) {
	operator := ""
	if ac, ok := c.Locals(auth.LocalsKey).(*kernel.AuthContext); ok {
		operator = ac.Subject
	}
	h.ServeConn(context.Background(), kernel.NewConnectionID(uuid.NewString()), operator, c)
}

// ServeConn runs one connection until its read side fails. Disconnect
// cleanup always runs before it returns.
func (h *Handler) ServeConn(ctx context.Context, connID kernel.ConnectionID, operator string, conn Conn) {
	ctx = kernel.WithConnectionID(ctx, connID)
	fields := logx.Fields{"operator": operator}

	client := NewClient(defaultBuffer)
	h.hub.Register(connID, client)
	logx.WithContext(ctx).WithFields(fields).Info("Operator connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		err := client.WriteLoop(func(b []byte) error {
			return conn.WriteMessage(websocket.TextMessage, b)
		})
		if err != nil {
			logx.WithContext(ctx).WithError(err).Warn("Websocket write failed")
			_ = conn.Close()
		}
	}()

	defer func() {
		h.coordinator.OnDisconnected(ctx, connID)
		client.Close()
		<-writerDone
		logx.WithContext(ctx).WithFields(fields).Info("Operator disconnected")
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.handleFrame(ctx, connID, client, msg)
	}
}

func (h *Handler) handleFrame(ctx context.Context, connID kernel.ConnectionID, client *Client, msg []byte) {
	var f frame
	if err := json.Unmarshal(msg, &f); err != nil {
		reply(ctx, client, EventError, errorPayload{Message: "malformed frame"})
		return
	}

	switch {
	case f.Type == "ping":
		reply(ctx, client, EventPong, nil)
	case f.Type == "invoke" && f.Target == TargetSubscribe:
		if err := h.coordinator.Subscribe(ctx, connID); err != nil {
			logx.WithContext(ctx).WithError(err).Error("Subscribe to client registration failed")
			reply(ctx, client, EventError, errorPayload{Message: "subscription failed"})
		}
	default:
		reply(ctx, client, EventError, errorPayload{Message: "unknown invocation"})
	}
}

func reply(ctx context.Context, client *Client, typ string, payload any) {
	if err := client.Send(pairing.Event{Type: typ, Payload: payload}); err != nil {
		logx.WithContext(ctx).WithError(err).Debug("Dropped reply frame")
	}
}
