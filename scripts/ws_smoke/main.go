package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirethread/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

// run registers (or logs in) a user, opens the push channel, sends the user a
// message and waits for the resulting notification.
func run() error {
	base := flag.String("base", "http://localhost:8080", "server base URL")
	user := flag.String("user", "smoketester", "username")
	password := flag.String("password", "smoke-password", "password")
	text := flag.String("text", "hello from smoke test", "message body to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	creds := map[string]string{"username": *user, "password": *password}
	var auth struct {
		Token string `json:"token"`
	}
	status, err := postJSON(ctx, *base+"/api/register", "", creds, &auth)
	if err != nil {
		return err
	}
	if status == http.StatusConflict {
		if _, err := postJSON(ctx, *base+"/api/login", "", creds, &auth); err != nil {
			return err
		}
	}
	if auth.Token == "" {
		return fmt.Errorf("no token issued (status %d)", status)
	}

	wsURL := strings.Replace(*base, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	helloPayload, err := json.Marshal(proto.HelloData{Token: auth.Token, Protocol: proto.ProtocolVersion})
	if err != nil {
		return fmt.Errorf("marshal hello: %w", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeHello, Data: helloPayload}); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}

	var sentID int64
	for {
		var outbound struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if outbound.Error != nil {
			return fmt.Errorf("server error %s: %s", outbound.Error.Code, outbound.Error.Msg)
		}

		switch outbound.Event {
		case proto.EventReady:
			var ready proto.ReadyData
			if err := json.Unmarshal(outbound.Data, &ready); err != nil {
				return fmt.Errorf("unmarshal ready: %w", err)
			}
			fmt.Printf("Ready: user_id=%d protocol=%d\n", ready.UserID, ready.Protocol)

			var msg struct {
				ID int64 `json:"id"`
			}
			body := map[string]any{"receiver_id": ready.UserID, "body": *text}
			if _, err := postJSON(ctx, *base+"/api/messages", auth.Token, body, &msg); err != nil {
				return err
			}
			sentID = msg.ID
		case proto.EventNotification:
			var n proto.NotificationData
			if err := json.Unmarshal(outbound.Data, &n); err != nil {
				return fmt.Errorf("unmarshal notification: %w", err)
			}
			fmt.Printf("Notification: id=%d detail=%q\n", n.ID, n.Detail)
			if n.MessageID != nil && *n.MessageID == sentID {
				return nil
			}
		default:
			// keep looping for the notification
		}
	}
}

func postJSON(ctx context.Context, url, token string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("POST %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s: %w", url, err)
	}
	return resp.StatusCode, nil
}
