package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"fivebear-admin-go/internal/domain/auth"
	"fivebear-admin-go/internal/domain/events"
	"fivebear-admin-go/internal/platform/kvstore"
	"fivebear-admin-go/internal/platform/storage"
)

type serverFixture struct {
	authSvc *auth.Service
	hub     *Hub
	bus     *events.Bus
	url     string
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	db, err := storage.Open("file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap database: %v", err)
	}
	t.Cleanup(func() {
		db.Exec("DELETE FROM users")
		_ = sqlDB.Close()
	})

	repo := storage.NewUserRepository(db)
	ctx := context.Background()
	if err := repo.Create(ctx, &storage.User{
		Username: "bob", Password: "bob-pw", Role: "admin", Status: storage.UserStatusActive,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	store := kvstore.NewMemory(kvstore.Config{})
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	logger := newTestLogger(t)
	bus := events.NewBus()
	authSvc := auth.NewService(repo,
		auth.NewTokenCodec("ws-test-secret", time.Hour),
		auth.NewThrottle(store, auth.ThrottleConfig{}),
		auth.NewSessionRegistry(store, time.Hour),
		bus, logger)

	hub := NewHub(logger)
	if err := bus.Subscribe(events.TopicForceLogout, hub.HandleForceLogout); err != nil {
		t.Fatalf("subscribe force logout: %v", err)
	}

	server := NewServer(ServerConfig{Path: "/ws"}, hub, authSvc, bus, logger)
	httpSrv := httptest.NewServer(http.HandlerFunc(server.handle))
	t.Cleanup(httpSrv.Close)

	return &serverFixture{
		authSvc: authSvc,
		hub:     hub,
		bus:     bus,
		url:     "ws" + strings.TrimPrefix(httpSrv.URL, "http"),
	}
}

func (f *serverFixture) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	client, _, err := websocket.DefaultDialer.Dial(f.url+"?token="+token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestServerHandshakeAndConnected(t *testing.T) {
	f := newServerFixture(t)

	result, err := f.authSvc.Login(context.Background(), "bob", "bob-pw", "")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	client := f.dial(t, result.Token)
	env := readEnvelope(t, client)
	if env.Type != events.TypeConnected {
		t.Fatalf("expected CONNECTED on open, got %+v", env)
	}
}

func TestServerHandshakeRejectsBadToken(t *testing.T) {
	f := newServerFixture(t)

	if _, resp, err := websocket.DefaultDialer.Dial(f.url+"?token=garbage", nil); err == nil {
		t.Fatal("expected handshake rejection")
	} else if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}

	if _, resp, err := websocket.DefaultDialer.Dial(f.url, nil); err == nil {
		t.Fatal("expected handshake rejection without token")
	} else if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func TestServerHandshakeViaAuthorizationHeader(t *testing.T) {
	f := newServerFixture(t)

	result, err := f.authSvc.Login(context.Background(), "bob", "bob-pw", "")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+result.Token)
	client, _, err := websocket.DefaultDialer.Dial(f.url, header)
	if err != nil {
		t.Fatalf("dial with header: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	env := readEnvelope(t, client)
	if env.Type != events.TypeConnected {
		t.Fatalf("expected CONNECTED, got %+v", env)
	}
}

func TestServerPingPong(t *testing.T) {
	f := newServerFixture(t)

	result, err := f.authSvc.Login(context.Background(), "bob", "bob-pw", "")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	client := f.dial(t, result.Token)
	readEnvelope(t, client) // CONNECTED

	if err := client.WriteMessage(websocket.TextMessage, []byte(`{"type":"PING"}`)); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	env := readEnvelope(t, client)
	if env.Type != events.TypePong {
		t.Fatalf("expected PONG, got %+v", env)
	}
}

func TestServerForceLogoutOnSecondDevice(t *testing.T) {
	f := newServerFixture(t)
	ctx := context.Background()

	deviceA, err := f.authSvc.Login(ctx, "bob", "bob-pw", "")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	clientA := f.dial(t, deviceA.Token)
	readEnvelope(t, clientA) // CONNECTED

	// Second login displaces the session and pushes FORCE_LOGOUT to device A.
	deviceB, err := f.authSvc.Login(ctx, "bob", "bob-pw", "")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	env := readEnvelope(t, clientA)
	if env.Type != events.TypeForceLogout {
		t.Fatalf("expected FORCE_LOGOUT on device A, got %+v", env)
	}

	if _, err := f.authSvc.ValidateToken(ctx, deviceA.Token); err == nil {
		t.Fatal("displaced token still validates")
	}
	if _, err := f.authSvc.ValidateToken(ctx, deviceB.Token); err != nil {
		t.Fatalf("newest token rejected: %v", err)
	}

	// The evicted channel is gone; device A's socket closes shortly after.
	_ = clientA.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := clientA.ReadMessage(); err == nil {
		t.Fatal("expected device A connection to close after eviction")
	}
}
