package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"meanrev/internal/store"
)

func newTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.New(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	s, err := NewServer(ServerConfig{
		JWTSecret:        "test-secret",
		OperatorPassword: "hunter2",
	}, st)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s, s.Router()
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func loginToken(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"password": "hunter2"})
	if w.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return resp.Token
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	_, r := newTestServer(t)
	w := doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, expected 401", w.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	_, r := newTestServer(t)

	if w := doJSON(t, r, http.MethodGet, "/api/runs", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status=%d, expected 401", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/api/runs", "garbage-token", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status=%d, expected 401", w.Code)
	}
}

func TestBacktestRoundTrip(t *testing.T) {
	_, r := newTestServer(t)
	token := loginToken(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/backtest", token, gin.H{
		"symbol": "TESTUSDT",
		"source": gin.H{"type": "mock", "seed": 7, "bars": 400},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("backtest status=%d body=%s", w.Code, w.Body.String())
	}
	var btResp struct {
		RunID   string `json:"run_id"`
		Summary struct {
			Symbol string `json:"symbol"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &btResp); err != nil {
		t.Fatalf("decode backtest: %v", err)
	}
	if btResp.RunID == "" || btResp.Summary.Symbol != "TESTUSDT" {
		t.Fatalf("backtest response wrong: %s", w.Body.String())
	}

	// The stored run must be retrievable through all three views.
	if w := doJSON(t, r, http.MethodGet, "/api/runs/"+btResp.RunID, token, nil); w.Code != http.StatusOK {
		t.Fatalf("get run status=%d", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/api/runs/"+btResp.RunID+"/orders", token, nil); w.Code != http.StatusOK {
		t.Fatalf("get orders status=%d", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/api/runs/"+btResp.RunID+"/equity", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get equity status=%d", w.Code)
	}
	var eqResp struct {
		Equity []struct {
			Value float64 `json:"value"`
		} `json:"equity"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &eqResp); err != nil {
		t.Fatalf("decode equity: %v", err)
	}
	if len(eqResp.Equity) != 400 {
		t.Fatalf("equity has %d points, expected 400", len(eqResp.Equity))
	}

	// And show up in the listing.
	w = doJSON(t, r, http.MethodGet, "/api/runs", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list runs status=%d", w.Code)
	}
	var listResp struct {
		Runs []struct {
			ID string `json:"id"`
		} `json:"runs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(listResp.Runs) != 1 || listResp.Runs[0].ID != btResp.RunID {
		t.Fatalf("run listing wrong: %s", w.Body.String())
	}
}

func TestBacktestRejectsBadRequests(t *testing.T) {
	_, r := newTestServer(t)
	token := loginToken(t, r)

	tests := []struct {
		name string
		body gin.H
		want int
	}{
		{"missing symbol", gin.H{"source": gin.H{"type": "mock"}}, http.StatusBadRequest},
		{"unknown source", gin.H{"symbol": "X", "source": gin.H{"type": "ftp"}}, http.StatusBadRequest},
		{"csv without path", gin.H{"symbol": "X", "source": gin.H{"type": "csv"}}, http.StatusBadRequest},
		{
			"invalid config",
			gin.H{"symbol": "X", "risk_reward_ratio": 0.5, "source": gin.H{"type": "mock"}},
			http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := doJSON(t, r, http.MethodPost, "/api/backtest", token, tt.body); w.Code != tt.want {
				t.Fatalf("status=%d, expected %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestGetRunNotFound(t *testing.T) {
	_, r := newTestServer(t)
	token := loginToken(t, r)
	if w := doJSON(t, r, http.MethodGet, "/api/runs/does-not-exist", token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("status=%d, expected 404", w.Code)
	}
}
