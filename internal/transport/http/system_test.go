package httptransport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fivebear-admin-go/internal/platform/config"
	"fivebear-admin-go/internal/utils"
)

type fakeCounter struct{}

func (fakeCounter) Counts() (int, int) { return 3, 2 }

func TestSystemStatusEndpoint(t *testing.T) {
	logger, err := utils.NewLogger(&utils.LogCfg{LogLevel: "error", LogDir: t.TempDir(), LogFile: "test.log"})
	if err != nil {
		t.Fatalf("create logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })

	cfg := config.DefaultConfig()
	cfg.Web.Enabled = false
	router, err := Build(Options{Config: cfg, Logger: logger})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	NewSystemHandler(fakeCounter{}, logger).RegisterRoutes(router)

	req := httptest.NewRequest(http.MethodGet, "/api/system/status", nil)
	w := httptest.NewRecorder()
	router.Engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	for _, field := range []string{"uptime_seconds", "server_time", "ws_connections", "online_accounts"} {
		if !strings.Contains(body, `"`+field+`"`) {
			t.Errorf("missing %q in response: %s", field, body)
		}
	}
}
