package http

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/vovakirdan/wirethread/internal/config"
)

func TestThreadScenarioOverHTTP(t *testing.T) {
	env := newTestEnv(t, nil)
	aliceID, alice := env.register(t, "alice")
	bobID, bob := env.register(t, "bob")

	var a MessageResponse
	if code := env.do(t, http.MethodPost, "/api/messages", alice, CreateMessageRequest{ReceiverID: bobID, Body: "hi"}, &a); code != http.StatusCreated {
		t.Fatalf("create A: expected 201, got %d", code)
	}
	var b MessageResponse
	if code := env.do(t, http.MethodPost, "/api/messages", bob, CreateMessageRequest{ReceiverID: aliceID, ParentID: &a.ID, Body: "hey"}, &b); code != http.StatusCreated {
		t.Fatalf("create B: expected 201, got %d", code)
	}
	if b.ParentID == nil || *b.ParentID != a.ID {
		t.Fatalf("expected B to reply to A, got %+v", b)
	}

	var thread ThreadResponse
	if code := env.do(t, http.MethodGet, fmt.Sprintf("/api/messages/%d/thread", a.ID), alice, nil, &thread); code != http.StatusOK {
		t.Fatalf("thread: expected 200, got %d", code)
	}
	if thread.Root.ID != a.ID || len(thread.Root.Replies) != 1 || thread.Root.Replies[0].ID != b.ID {
		t.Fatalf("unexpected thread: %+v", thread)
	}
	if thread.Root.Replies[0].Replies == nil || thread.Size != 2 || thread.Depth != 1 {
		t.Fatalf("unexpected thread shape: %+v", thread)
	}

	var edited MessageResponse
	if code := env.do(t, http.MethodPatch, fmt.Sprintf("/api/messages/%d", a.ID), alice, EditMessageRequest{Body: "hi there"}, &edited); code != http.StatusOK {
		t.Fatalf("edit: expected 200, got %d", code)
	}
	if !edited.Edited || edited.EditedAt == nil || edited.Body != "hi there" {
		t.Fatalf("unexpected edit result: %+v", edited)
	}

	var hist []HistoryResponse
	if code := env.do(t, http.MethodGet, fmt.Sprintf("/api/messages/%d/history", a.ID), bob, nil, &hist); code != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", code)
	}
	if len(hist) != 1 || hist[0].OldBody != "hi" {
		t.Fatalf("expected one history entry with old body hi, got %+v", hist)
	}

	var unreadForAlice []MessageResponse
	if code := env.do(t, http.MethodGet, "/api/messages/unread", alice, nil, &unreadForAlice); code != http.StatusOK {
		t.Fatalf("unread: expected 200, got %d", code)
	}
	if len(unreadForAlice) != 1 || unreadForAlice[0].ID != b.ID {
		t.Fatalf("expected B unread for alice, got %+v", unreadForAlice)
	}

	readPath := fmt.Sprintf("/api/messages/%d/read", b.ID)
	if code := env.do(t, http.MethodPost, readPath, bob, nil, nil); code != http.StatusForbidden {
		t.Fatalf("sender mark read: expected 403, got %d", code)
	}
	var read MessageResponse
	if code := env.do(t, http.MethodPost, readPath, alice, nil, &read); code != http.StatusOK {
		t.Fatalf("mark read: expected 200, got %d", code)
	}
	if read.Unread {
		t.Fatalf("expected message to be read")
	}
	if code := env.do(t, http.MethodPost, readPath, alice, nil, nil); code != http.StatusNotFound {
		t.Fatalf("second mark read: expected 404, got %d", code)
	}

	var count UnreadCountResponse
	if code := env.do(t, http.MethodGet, "/api/messages/unread/count", alice, nil, &count); code != http.StatusOK {
		t.Fatalf("count: expected 200, got %d", code)
	}
	if count.Count != 0 {
		t.Fatalf("expected 0 unread, got %d", count.Count)
	}
}

func TestMessageErrorsMapToStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	_, alice := env.register(t, "alice")
	bobID, bob := env.register(t, "bob")
	carolID, carol := env.register(t, "carol")

	var private MessageResponse
	if code := env.do(t, http.MethodPost, "/api/messages", bob, CreateMessageRequest{ReceiverID: carolID, Body: "between us"}, &private); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	missing := int64(4242)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{name: "empty body", method: http.MethodPost, path: "/api/messages", token: alice, body: CreateMessageRequest{ReceiverID: bobID, Body: "  "}, want: http.StatusBadRequest},
		{name: "missing receiver field", method: http.MethodPost, path: "/api/messages", token: alice, body: map[string]any{"body": "x"}, want: http.StatusBadRequest},
		{name: "unknown receiver", method: http.MethodPost, path: "/api/messages", token: alice, body: CreateMessageRequest{ReceiverID: missing, Body: "x"}, want: http.StatusBadRequest},
		{name: "missing parent", method: http.MethodPost, path: "/api/messages", token: alice, body: CreateMessageRequest{ReceiverID: bobID, ParentID: &missing, Body: "x"}, want: http.StatusUnprocessableEntity},
		{name: "invisible parent", method: http.MethodPost, path: "/api/messages", token: alice, body: CreateMessageRequest{ReceiverID: bobID, ParentID: &private.ID, Body: "x"}, want: http.StatusUnprocessableEntity},
		{name: "invisible message", method: http.MethodGet, path: fmt.Sprintf("/api/messages/%d", private.ID), token: alice, want: http.StatusNotFound},
		{name: "invisible thread", method: http.MethodGet, path: fmt.Sprintf("/api/messages/%d/thread", private.ID), token: alice, want: http.StatusNotFound},
		{name: "receiver cannot edit", method: http.MethodPatch, path: fmt.Sprintf("/api/messages/%d", private.ID), token: carol, body: EditMessageRequest{Body: "x"}, want: http.StatusForbidden},
		{name: "receiver cannot delete", method: http.MethodDelete, path: fmt.Sprintf("/api/messages/%d", private.ID), token: carol, want: http.StatusForbidden},
		{name: "bad id", method: http.MethodGet, path: "/api/messages/abc", token: alice, want: http.StatusBadRequest},
		{name: "bad limit", method: http.MethodGet, path: "/api/messages?limit=-1", token: alice, want: http.StatusBadRequest},
		{name: "foreign inbox", method: http.MethodGet, path: fmt.Sprintf("/api/messages/unread?user_id=%d", carolID), token: alice, want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := env.do(t, tt.method, tt.path, tt.token, tt.body, nil); code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, code)
			}
		})
	}
}

func TestStaffSeesEverything(t *testing.T) {
	env := newTestEnv(t, nil)
	_, alice := env.register(t, "alice")
	bobID, _ := env.register(t, "bob")
	_, admin := env.register(t, "admin")

	if err := env.auth.SetStaff(context.Background(), "admin", true); err != nil {
		t.Fatalf("set staff: %v", err)
	}

	var msg MessageResponse
	if code := env.do(t, http.MethodPost, "/api/messages", alice, CreateMessageRequest{ReceiverID: bobID, Body: "hello bob"}, &msg); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}

	if code := env.do(t, http.MethodGet, fmt.Sprintf("/api/messages/%d/thread", msg.ID), admin, nil, nil); code != http.StatusOK {
		t.Fatalf("staff thread: expected 200, got %d", code)
	}

	var inbox []MessageResponse
	if code := env.do(t, http.MethodGet, fmt.Sprintf("/api/messages/unread?user_id=%d", bobID), admin, nil, &inbox); code != http.StatusOK {
		t.Fatalf("staff inbox: expected 200, got %d", code)
	}
	if len(inbox) != 1 || inbox[0].ID != msg.ID {
		t.Fatalf("unexpected inbox: %+v", inbox)
	}

	// Staff may look, but only the receiver may acknowledge.
	if code := env.do(t, http.MethodPost, fmt.Sprintf("/api/messages/%d/read", msg.ID), admin, nil, nil); code != http.StatusForbidden {
		t.Fatalf("staff mark read: expected 403, got %d", code)
	}

	var all []MessageResponse
	if code := env.do(t, http.MethodGet, "/api/messages", admin, nil, &all); code != http.StatusOK {
		t.Fatalf("staff list: expected 200, got %d", code)
	}
	if len(all) != 1 {
		t.Fatalf("expected staff to list every message, got %d", len(all))
	}
}

func TestNotificationsOverHTTP(t *testing.T) {
	env := newTestEnv(t, nil)
	_, alice := env.register(t, "alice")
	bobID, bob := env.register(t, "bob")

	if code := env.do(t, http.MethodPost, "/api/messages", alice, CreateMessageRequest{ReceiverID: bobID, Body: "ping"}, nil); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}

	var items []NotificationResponse
	if code := env.do(t, http.MethodGet, "/api/notifications?unread=true", bob, nil, &items); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(items) != 1 || items[0].Detail != "You have a new message from alice!" || items[0].IsRead {
		t.Fatalf("unexpected notifications: %+v", items)
	}

	readPath := fmt.Sprintf("/api/notifications/%d/read", items[0].ID)
	if code := env.do(t, http.MethodPost, readPath, alice, nil, nil); code != http.StatusNotFound {
		t.Fatalf("foreign notification: expected 404, got %d", code)
	}
	if code := env.do(t, http.MethodPost, readPath, bob, nil, nil); code != http.StatusOK {
		t.Fatalf("mark notification read: expected 200, got %d", code)
	}

	var remaining []NotificationResponse
	env.do(t, http.MethodGet, "/api/notifications?unread=true", bob, nil, &remaining)
	if len(remaining) != 0 {
		t.Fatalf("expected no unread notifications, got %+v", remaining)
	}
}

func TestCreateMessageRateLimited(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.MessagesPerMinute = 2 })
	_, alice := env.register(t, "alice")
	bobID, _ := env.register(t, "bob")

	for i := 0; i < 2; i++ {
		if code := env.do(t, http.MethodPost, "/api/messages", alice, CreateMessageRequest{ReceiverID: bobID, Body: "spam"}, nil); code != http.StatusCreated {
			t.Fatalf("message %d: expected 201, got %d", i, code)
		}
	}
	if code := env.do(t, http.MethodPost, "/api/messages", alice, CreateMessageRequest{ReceiverID: bobID, Body: "spam"}, nil); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}

	// Reads are not limited.
	if code := env.do(t, http.MethodGet, "/api/messages", alice, nil, nil); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}
