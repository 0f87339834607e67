package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fivebear-admin-go/internal/domain/auth"
	"fivebear-admin-go/internal/domain/events"
	"fivebear-admin-go/internal/platform/config"
	"fivebear-admin-go/internal/platform/kvstore"
	"fivebear-admin-go/internal/platform/storage"
	"fivebear-admin-go/internal/utils"
)

type handlerFixture struct {
	router  *Router
	service *auth.Service
}

func newHandlerFixture(t *testing.T) *handlerFixture {
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
	if err := repo.Create(context.Background(), &storage.User{
		Username: "alice", Password: "alice-pw", Role: "admin", Status: storage.UserStatusActive,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	store := kvstore.NewMemory(kvstore.Config{})
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	logger, err := utils.NewLogger(&utils.LogCfg{LogLevel: "error", LogDir: t.TempDir(), LogFile: "test.log"})
	if err != nil {
		t.Fatalf("create logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })

	service := auth.NewService(repo,
		auth.NewTokenCodec("http-test-secret", time.Hour),
		auth.NewThrottle(store, auth.ThrottleConfig{
			MaxAttempts:   5,
			FailureWindow: 15 * time.Minute,
			LockDuration:  30 * time.Minute,
		}),
		auth.NewSessionRegistry(store, time.Hour),
		events.NewBus(), logger)

	handler := NewAuthHandler(service, logger)

	cfg := config.DefaultConfig()
	cfg.Web.Enabled = false
	router, err := Build(Options{
		Config:         cfg,
		Logger:         logger,
		AuthMiddleware: handler.Middleware(),
	})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	handler.RegisterRoutes(router)

	return &handlerFixture{router: router, service: service}
}

func (f *handlerFixture) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.router.Engine.ServeHTTP(w, req)

	var resp APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return w, resp
}

func (f *handlerFixture) login(t *testing.T, username, password string) (int, APIResponse) {
	t.Helper()
	w, resp := f.do(t, http.MethodPost, "/api/auth/login", "",
		map[string]string{"username": username, "password": password})
	return w.Code, resp
}

func tokenFrom(t *testing.T, resp APIResponse) string {
	t.Helper()
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("unexpected data shape: %+v", resp.Data)
	}
	token, _ := data["token"].(string)
	if token == "" {
		t.Fatalf("no token in response: %+v", data)
	}
	return token
}

func TestLoginEndpoint(t *testing.T) {
	f := newHandlerFixture(t)

	code, resp := f.login(t, "alice", "alice-pw")
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("login failed: code=%d resp=%+v", code, resp)
	}
	tokenFrom(t, resp)

	code, resp = f.login(t, "alice", "wrong")
	if code != http.StatusUnauthorized || resp.Success {
		t.Fatalf("expected 401, got code=%d resp=%+v", code, resp)
	}
	data := resp.Data.(map[string]any)
	if data["remainingAttempts"].(float64) != 4 {
		t.Fatalf("expected 4 remaining attempts, got %v", data["remainingAttempts"])
	}

	code, _ = f.login(t, "alice", "")
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing password, got %d", code)
	}
}

func TestLoginLockoutEndpoint(t *testing.T) {
	f := newHandlerFixture(t)

	for i := 0; i < 5; i++ {
		f.login(t, "alice", "wrong")
	}

	code, resp := f.login(t, "alice", "alice-pw")
	if code != http.StatusLocked {
		t.Fatalf("expected 423 during lock, got %d: %+v", code, resp)
	}
	data := resp.Data.(map[string]any)
	remaining, _ := data["remainingTime"].(float64)
	if remaining <= 0 || remaining > 1800 {
		t.Fatalf("unexpected remainingTime: %v", remaining)
	}
}

func TestLockStatusEndpoint(t *testing.T) {
	f := newHandlerFixture(t)

	w, resp := f.do(t, http.MethodGet, "/api/auth/security/lock-status?username=alice", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	data := resp.Data.(map[string]any)
	if data["isLocked"].(bool) {
		t.Fatal("fresh account reported locked")
	}
	if data["remainingAttempts"].(float64) != 5 {
		t.Fatalf("expected 5 attempts, got %v", data["remainingAttempts"])
	}
	if data["securityServiceAvailable"] != true {
		t.Fatal("security service should be available")
	}

	for i := 0; i < 5; i++ {
		f.login(t, "alice", "wrong")
	}

	_, resp = f.do(t, http.MethodGet, "/api/auth/security/lock-status?username=alice", "", nil)
	data = resp.Data.(map[string]any)
	if !data["isLocked"].(bool) {
		t.Fatal("locked account reported unlocked")
	}
	if data["remainingTime"].(float64) <= 0 {
		t.Fatalf("expected positive remainingTime, got %v", data["remainingTime"])
	}

	w, _ = f.do(t, http.MethodGet, "/api/auth/security/lock-status", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without username, got %d", w.Code)
	}
}

func TestValidateAndUserInfo(t *testing.T) {
	f := newHandlerFixture(t)

	_, loginResp := f.login(t, "alice", "alice-pw")
	token := tokenFrom(t, loginResp)

	w, resp := f.do(t, http.MethodGet, "/api/auth/validate", token, nil)
	if w.Code != http.StatusOK || !resp.Success {
		t.Fatalf("validate failed: %d %+v", w.Code, resp)
	}

	w, resp = f.do(t, http.MethodGet, "/api/auth/user-info", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("user-info failed: %d %+v", w.Code, resp)
	}
	data := resp.Data.(map[string]any)
	if data["username"] != "alice" || data["role"] != "admin" {
		t.Fatalf("unexpected identity: %+v", data)
	}

	w, _ = f.do(t, http.MethodGet, "/api/auth/user-info", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
}

func TestSupersededTokenRejected(t *testing.T) {
	f := newHandlerFixture(t)

	_, firstResp := f.login(t, "alice", "alice-pw")
	firstToken := tokenFrom(t, firstResp)

	_, secondResp := f.login(t, "alice", "alice-pw")
	secondToken := tokenFrom(t, secondResp)

	w, resp := f.do(t, http.MethodGet, "/api/auth/validate", firstToken, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("superseded token accepted: %d", w.Code)
	}
	if resp.Message != "session superseded by a newer login" {
		t.Fatalf("unexpected message: %q", resp.Message)
	}

	w, _ = f.do(t, http.MethodGet, "/api/auth/validate", secondToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("newest token rejected: %d", w.Code)
	}
}

func TestLogoutEndpoint(t *testing.T) {
	f := newHandlerFixture(t)

	_, loginResp := f.login(t, "alice", "alice-pw")
	token := tokenFrom(t, loginResp)

	w, _ := f.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logout failed: %d", w.Code)
	}

	w, _ = f.do(t, http.MethodGet, "/api/auth/validate", token, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("token valid after logout: %d", w.Code)
	}

	// Logging out again with the same token is a harmless no-op.
	w, _ = f.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("repeated logout failed: %d", w.Code)
	}
}
