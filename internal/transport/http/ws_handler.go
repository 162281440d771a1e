package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirethread/internal/auth"
	"github.com/vovakirdan/wirethread/internal/core"
	"github.com/vovakirdan/wirethread/internal/metrics"
	"github.com/vovakirdan/wirethread/internal/proto"
)

const helloTimeout = 10 * time.Second

// WSHandler upgrades HTTP connections and streams a user's events to them.
type WSHandler struct {
	hub             *core.Hub
	auth            *auth.Service
	maxMessageBytes int64
	log             *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, authService *auth.Service, maxMessageBytes int64, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, auth: authService, maxMessageBytes: maxMessageBytes, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	userID, protoErr := h.handshake(ctx, conn)
	if protoErr != nil {
		_ = wsjson.Write(ctx, conn, proto.Outbound{Type: proto.OutboundTypeError, Error: protoErr})
		conn.Close(websocket.StatusPolicyViolation, protoErr.Code)
		return
	}

	client := core.NewClient(uuid.NewString(), userID)
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)
	metrics.WebSocketClients.Inc()
	defer metrics.WebSocketClients.Dec()

	ready := proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: proto.EventReady,
		Data:  proto.ReadyData{UserID: userID, Protocol: proto.ProtocolVersion},
	}
	if err := wsjson.Write(ctx, conn, ready); err != nil {
		h.log.Warn().Err(err).Str("client_id", client.ID).Msg("write ready")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// handshake waits for the hello frame and authenticates it.
func (h *WSHandler) handshake(ctx context.Context, conn *websocket.Conn) (int64, *proto.Error) {
	helloCtx, cancel := context.WithTimeout(ctx, helloTimeout)
	defer cancel()

	var inbound proto.Inbound
	if err := wsjson.Read(helloCtx, conn, &inbound); err != nil {
		h.log.Debug().Err(err).Msg("read ws hello")
		return 0, &proto.Error{Code: proto.ErrCodeBadRequest, Msg: "hello expected"}
	}
	if inbound.Type != proto.InboundTypeHello {
		return 0, &proto.Error{Code: proto.ErrCodeBadRequest, Msg: "hello expected"}
	}

	var hello proto.HelloData
	if err := json.Unmarshal(inbound.Data, &hello); err != nil {
		return 0, &proto.Error{Code: proto.ErrCodeBadRequest, Msg: "invalid hello"}
	}
	if hello.Protocol != 0 && hello.Protocol != proto.ProtocolVersion {
		return 0, &proto.Error{Code: proto.ErrCodeUnsupportedVersion, Msg: "unsupported protocol version"}
	}

	user, err := h.auth.Authenticate(ctx, hello.Token)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws authentication failed")
		return 0, &proto.Error{Code: proto.ErrCodeUnauthorized, Msg: "invalid token"}
	}
	return user.ID, nil
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		var out proto.Outbound
		switch inbound.Type {
		case proto.InboundTypePing:
			out = proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventPong}
		default:
			out = proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: &proto.Error{Code: proto.ErrCodeUnknownType, Msg: "unknown message type"},
			}
		}
		if err := wsjson.Write(ctx, conn, out); err != nil {
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("write ws reply")
			return err
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
