package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/betbot/godice/internal/domain"
	"github.com/betbot/godice/internal/engine"
	"github.com/betbot/godice/internal/peakbank"
)

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	reg := NewRegistry()
	eng := engine.New("bot-1", engine.Config{}, domain.MustMoney("100"), peakbank.New(decimal.Zero))
	reg.Register(eng)
	return New(reg, nil, nil), eng
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

// TestHealthz 健康检查
func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
}

// TestBotsList 列出全体实例状态
func TestBotsList(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodGet, "/api/v1/bots", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Bots []engine.State `json:"bots"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Bots, 1)
	require.Equal(t, "bot-1", resp.Bots[0].ID)
	require.Equal(t, domain.ModeBase, resp.Bots[0].Mode)
}

// TestBotGetUnknown 未知实例返回 404
func TestBotGetUnknown(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodGet, "/api/v1/bots/nope", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

// TestPauseResume 控制面暂停/恢复实例
func TestPauseResume(t *testing.T) {
	s, eng := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/v1/bots/bot-1/pause", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, eng.IsPaused())

	w = do(t, s, http.MethodPost, "/api/v1/bots/bot-1/resume", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.False(t, eng.IsPaused())
}

// TestRestart 以新基线重启实例
func TestRestart(t *testing.T) {
	s, eng := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/v1/bots/bot-1/restart", `{"newInitialBank": 50}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, eng.Snapshot().InitialBank.Equal(domain.MustMoney("50")))
}

// TestRestartRejectsBadBank 非法基线被拒绝
func TestRestartRejectsBadBank(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/v1/bots/bot-1/restart", `{"newInitialBank": 0}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/api/v1/bots/bot-1/restart", `not-json`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

// TestRoundsWithoutJournal 未配置流水库时 rounds 返回 404
func TestRoundsWithoutJournal(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodGet, "/api/v1/bots/bot-1/rounds", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}
