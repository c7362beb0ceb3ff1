package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/auth"
	"github.com/vovakirdan/pairchat-server/internal/config"
	"github.com/vovakirdan/pairchat-server/internal/core"
	"github.com/vovakirdan/pairchat-server/internal/proto"
	"github.com/vovakirdan/pairchat-server/internal/store/sqlite"
)

const testSecret = "test-secret"

type testEnv struct {
	ts    *httptest.Server
	hub   *core.Hub
	auth  *auth.Service
	store *sqlite.SQLiteStore
}

// startTestServer wires an in-memory store, a running hub and the HTTP
// server. mutate adjusts the defaults before the server is built.
func startTestServer(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.JWT.Secret = testSecret
	cfg.WS.PingInterval = 0
	if mutate != nil {
		mutate(&cfg)
	}

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	logger := zerolog.Nop()
	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWT.Secret),
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		TTL:      cfg.JWT.TTL,
	})

	hub := core.NewHub(core.Options{
		Directory: st,
		Messages:  st,
		Logger:    &logger,
	})
	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(runDone)
	}()
	t.Cleanup(func() {
		cancel()
		<-runDone
	})

	server := NewServer(hub, authService, st, &cfg, &logger, nil)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, hub: hub, auth: authService, store: st}
}

func (e *testEnv) register(t *testing.T, username string) (token, userID string) {
	t.Helper()
	token, user, err := e.auth.Register(context.Background(), username, username+"@example.com", "password123")
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return token, user.ID
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

type wireOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// readUntil returns the first frame accepted by match, discarding the rest.
func readUntil(t *testing.T, conn *websocket.Conn, match func(wireOutbound) bool) wireOutbound {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		var out wireOutbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("read outbound: %v", err)
		}
		if match(out) {
			return out
		}
	}
}

func isEvent(name string) func(wireOutbound) bool {
	return func(o wireOutbound) bool { return o.Type == proto.OutboundTypeEvent && o.Event == name }
}

func isError(o wireOutbound) bool { return o.Type == proto.OutboundTypeError }

// notStatus skips presence broadcasts, which every connection receives.
func notStatus(o wireOutbound) bool { return o.Event != proto.EventUserStatus }

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}

// goOnline identifies the connection and waits for its own status broadcast.
func goOnline(t *testing.T, conn *websocket.Conn, userID string) {
	t.Helper()
	send(t, conn, proto.InboundTypeUserOnline, proto.UserOnlineData{UserID: userID})
	readUntil(t, conn, func(o wireOutbound) bool {
		if o.Event != proto.EventUserStatus {
			return false
		}
		st := decode[proto.UserStatusData](t, o.Data)
		return st.UserID == userID && st.IsOnline
	})
}
