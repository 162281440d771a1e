package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirethread/internal/auth"
	"github.com/vovakirdan/wirethread/internal/config"
	"github.com/vovakirdan/wirethread/internal/core"
	"github.com/vovakirdan/wirethread/internal/service/history"
	"github.com/vovakirdan/wirethread/internal/service/messages"
	"github.com/vovakirdan/wirethread/internal/service/notify"
	"github.com/vovakirdan/wirethread/internal/service/threads"
	"github.com/vovakirdan/wirethread/internal/service/unread"
	"github.com/vovakirdan/wirethread/internal/store"
	"github.com/vovakirdan/wirethread/internal/store/sqlite"
)

type testEnv struct {
	server *httptest.Server
	store  *sqlite.SQLiteStore
	auth   *auth.Service
	hub    *core.Hub
}

// newTestEnv wires the full HTTP stack on an in-memory store.
func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	disabledLogger := zerolog.Nop()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.JWTSecret = "test-secret"
	cfg.JWTIssuer = "test"
	cfg.JWTAudience = "test"
	cfg.MessagesPerMinute = 0
	if mutate != nil {
		mutate(&cfg)
	}

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	})

	hub := core.NewHub(&disabledLogger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	dispatcher := notify.NewDispatcher(st, hub, &disabledLogger)
	recorder := history.NewRecorder(&disabledLogger)
	st.SetHooks(store.MessageHooks{
		Created:  dispatcher.OnMessageCreated,
		Updating: recorder.OnMessageUpdating,
	})

	server := NewServer(hub, Services{
		Auth:          authService,
		Users:         st,
		Messages:      messages.New(st, &disabledLogger, cfg.MaxBodyLength),
		Threads:       threads.New(st, &disabledLogger),
		Unread:        unread.New(st, hub, &disabledLogger),
		History:       history.New(st),
		Notifications: notify.New(st),
	}, &cfg, &disabledLogger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, store: st, auth: authService, hub: hub}
}

// register creates a user and returns its id and token.
func (e *testEnv) register(t *testing.T, username string) (int64, string) {
	t.Helper()

	token, err := e.auth.Register(context.Background(), username, "password123")
	if err != nil {
		t.Fatalf("failed to register %s: %v", username, err)
	}
	u, err := e.store.GetUserByUsername(context.Background(), username)
	if err != nil {
		t.Fatalf("failed to load %s: %v", username, err)
	}
	return u.ID, token
}

// do performs a request and decodes a JSON response into out when out is non-nil.
func (e *testEnv) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}
