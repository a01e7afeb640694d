package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/realm-economy/internal/catalog"
	"github.com/talgya/realm-economy/internal/economy"
	"github.com/talgya/realm-economy/internal/engine"
	"github.com/talgya/realm-economy/internal/world"
)

const testKey = "secret"

func newTestServer(t *testing.T) (*Server, []int) {
	t.Helper()
	g := world.Generate(world.SmallTestConfig())
	econ := economy.New(catalog.Default())
	econ.Initialize(g, 31)
	sim := engine.NewSimulation(g, econ)
	s := &Server{
		Sim:      sim,
		Eng:      engine.NewEngine(),
		AdminKey: testKey,
		RelayKey: "relay",
	}
	sim.OnTurnProcessed = s.PublishTurn
	return s, econ.StateIDs()
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
}

func TestStatus(t *testing.T) {
	s, ids := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/status", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want 200", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["turn"].(float64) != 0 {
		t.Fatalf("turn: got %v want 0", body["turn"])
	}
	if int(body["states"].(float64)) != len(ids) {
		t.Fatalf("states: got %v want %d", body["states"], len(ids))
	}
	if body["world_seed"].(float64) != 42 {
		t.Fatalf("world seed: got %v want 42", body["world_seed"])
	}
}

func TestAdminAuth(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	if rec := do(t, h, http.MethodPost, "/api/v1/turn", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: got %d want 401", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/turn", "wrong", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: got %d want 401", rec.Code)
	}

	s.AdminKey = ""
	rec := do(t, h, http.MethodPost, "/api/v1/turn", testKey, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("no admin key: got %d want 403", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ECONSIM_ADMIN_KEY") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if s.Sim.CurrentTurn() != 0 {
		t.Fatalf("rejected request advanced the turn")
	}
}

func TestAdvanceTurn(t *testing.T) {
	s, ids := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/turn", testKey, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("advance: got %d want 200: %s", rec.Code, rec.Body.String())
	}
	var sum economy.TurnSummary
	decodeBody(t, rec, &sum)
	if sum.Turn != 1 || len(sum.States) != len(ids) {
		t.Fatalf("summary: turn %d states %d", sum.Turn, len(sum.States))
	}

	rec = do(t, h, http.MethodGet, "/api/v1/turn", "", nil)
	decodeBody(t, rec, &sum)
	if sum.Turn != 1 {
		t.Fatalf("last summary turn: got %d want 1", sum.Turn)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/state/"+strconv.Itoa(ids[0])+"/history", "", nil)
	var history []engine.TurnStat
	decodeBody(t, rec, &history)
	if len(history) != 1 || history[0].Turn != 1 {
		t.Fatalf("history: %+v", history)
	}
}

func TestStateEndpoints(t *testing.T) {
	s, ids := newTestServer(t)
	h := s.Handler()

	cases := []struct {
		path string
		want int
	}{
		{"/api/v1/state/" + strconv.Itoa(ids[0]), http.StatusOK},
		{"/api/v1/state/999", http.StatusNotFound},
		{"/api/v1/state/abc", http.StatusBadRequest},
		{"/api/v1/state/" + strconv.Itoa(ids[0]) + "/resources", http.StatusOK},
		{"/api/v1/state/999/resources", http.StatusNotFound},
		{"/api/v1/deposit/-1", http.StatusNotFound},
		{"/api/v1/states", http.StatusOK},
		{"/api/v1/catalog", http.StatusOK},
		{"/api/v1/map", http.StatusOK},
		{"/api/v1/revealed", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			if rec := do(t, h, http.MethodGet, tc.path, "", nil); rec.Code != tc.want {
				t.Fatalf("got %d want %d: %s", rec.Code, tc.want, rec.Body.String())
			}
		})
	}

	rec := do(t, h, http.MethodGet, "/api/v1/state/"+strconv.Itoa(ids[0]), "", nil)
	var sum economy.StateSummary
	decodeBody(t, rec, &sum)
	if sum.StateID != ids[0] || sum.StateName == "" {
		t.Fatalf("state summary: %+v", sum)
	}
}

func TestUnlockTechRevealsResource(t *testing.T) {
	s, ids := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/tech", testKey, map[string]any{"state_id": ids[0], "tech_id": "iron_working"})
	if rec.Code != http.StatusOK {
		t.Fatalf("tech: got %d want 200: %s", rec.Code, rec.Body.String())
	}

	var revealed []string
	decodeBody(t, do(t, h, http.MethodGet, "/api/v1/revealed", "", nil), &revealed)
	found := false
	for _, id := range revealed {
		if id == "iron" {
			found = true
		}
	}
	if !found {
		t.Fatalf("iron not revealed: %v", revealed)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/tech", testKey, map[string]any{"state_id": ids[0], "tech_id": "alchemy"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown tech: got %d want 422", rec.Code)
	}

	var events []engine.Event
	decodeBody(t, do(t, h, http.MethodGet, "/api/v1/events?category=tech", "", nil), &events)
	if len(events) != 1 {
		t.Fatalf("tech events: got %d want 1", len(events))
	}
}

func TestTradeDealLifecycle(t *testing.T) {
	s, ids := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/deals", testKey, map[string]any{
		"from_state": ids[0], "to_state": ids[1], "resource_id": "stone", "duration": 5,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create: got %d want 200: %s", rec.Code, rec.Body.String())
	}
	var res economy.DealResult
	decodeBody(t, rec, &res)
	if !res.Success || res.Deal == nil || res.Deal.ExpiryTurn == nil || *res.Deal.ExpiryTurn != 5 {
		t.Fatalf("deal: %+v", res)
	}

	var deals []economy.TradeDeal
	decodeBody(t, do(t, h, http.MethodGet, "/api/v1/deals?state="+strconv.Itoa(ids[1]), "", nil), &deals)
	if len(deals) != 1 {
		t.Fatalf("deals for recipient: got %d want 1", len(deals))
	}

	rec = do(t, h, http.MethodPost, "/api/v1/deals", testKey, map[string]any{
		"from_state": ids[0], "to_state": ids[0], "resource_id": "stone",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("self deal: got %d want 422", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/deals/cancel", testKey, map[string]any{"deal_id": res.Deal.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: got %d want 200: %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, do(t, h, http.MethodGet, "/api/v1/deals", "", nil), &deals)
	if len(deals) != 0 {
		t.Fatalf("deals after cancel: got %d want 0", len(deals))
	}
}

func TestSpendAndRecruitFailures(t *testing.T) {
	s, ids := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/spend", testKey, map[string]any{"state_id": ids[0], "costs": map[string]int{"iron": 50}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("spend: got %d want 422", rec.Code)
	}
	var res economy.Result
	decodeBody(t, rec, &res)
	if res.Message != "Insufficient iron: have 0, need 50" {
		t.Fatalf("message: got %q", res.Message)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/recruit", testKey, map[string]any{"state_id": ids[0], "unit_id": "warrior"})
	if rec.Code != http.StatusOK {
		t.Fatalf("recruit warrior: got %d want 200: %s", rec.Code, rec.Body.String())
	}

	if rec := do(t, h, http.MethodPost, "/api/v1/recruit", testKey, map[string]any{"unit_id": "warrior"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing state: got %d want 400", rec.Code)
	}
}

func TestSpeed(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	var body map[string]float64
	decodeBody(t, do(t, h, http.MethodGet, "/api/v1/speed", "", nil), &body)
	if body["speed"] != 1 {
		t.Fatalf("speed: got %v want 1", body["speed"])
	}

	if rec := do(t, h, http.MethodPost, "/api/v1/speed", testKey, map[string]float64{"speed": 4}); rec.Code != http.StatusOK {
		t.Fatalf("set speed: got %d", rec.Code)
	}
	if got := s.Eng.Speed(); got != 4 {
		t.Fatalf("engine speed: got %v want 4", got)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/speed", testKey, map[string]float64{"speed": -1}); rec.Code != http.StatusBadRequest {
		t.Fatalf("negative speed: got %d want 400", rec.Code)
	}
}

func TestSnapshotRestoreInline(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	raw, err := s.Sim.ExportJSON()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	do(t, h, http.MethodPost, "/api/v1/turn", testKey, nil)
	do(t, h, http.MethodPost, "/api/v1/turn", testKey, nil)

	rec := do(t, h, http.MethodPost, "/api/v1/snapshot", testKey, map[string]any{"action": "restore", "snapshot": json.RawMessage(raw)})
	if rec.Code != http.StatusOK {
		t.Fatalf("restore: got %d want 200: %s", rec.Code, rec.Body.String())
	}
	if got := s.Sim.CurrentTurn(); got != 0 {
		t.Fatalf("turn after restore: got %d want 0", got)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/snapshot", testKey, map[string]any{"action": "restore", "snapshot": map[string]any{"version": 1}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad snapshot: got %d want 422", rec.Code)
	}

	if rec := do(t, h, http.MethodPost, "/api/v1/snapshot", testKey, map[string]any{"action": "save"}); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("save without db: got %d want 503", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t)
	s.Limiter = NewRateLimiter(0.001, 2)
	h := s.Handler()

	for i := 0; i < 2; i++ {
		if rec := do(t, h, http.MethodPost, "/api/v1/turn", testKey, nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d: got %d want 200", i, rec.Code)
		}
	}
	rec := do(t, h, http.MethodPost, "/api/v1/turn", testKey, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: got %d want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
	// Reads are not limited.
	if rec := do(t, h, http.MethodGet, "/api/v1/status", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want 200", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5123"
	if got := clientIP(req, false); got != "10.0.0.7" {
		t.Fatalf("remote addr: got %s", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientIP(req, false); got != "10.0.0.7" {
		t.Fatalf("untrusted forwarded: got %s want 10.0.0.7", got)
	}
	if got := clientIP(req, true); got != "203.0.113.9" {
		t.Fatalf("trusted forwarded: got %s", got)
	}
}

func TestRateLimit_IgnoresForwardedForByDefault(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	h := rl.Middleware(func(w http.ResponseWriter, r *http.Request) {})

	send := func(xff string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "10.0.0.7:5123"
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h(rec, req)
		return rec.Code
	}
	if code := send("203.0.113.1"); code != http.StatusOK {
		t.Fatalf("first: got %d want 200", code)
	}
	if code := send("203.0.113.2"); code != http.StatusTooManyRequests {
		t.Fatalf("rotated header: got %d want 429", code)
	}

	rl.TrustProxy = true
	if code := send("203.0.113.3"); code != http.StatusOK {
		t.Fatalf("trusted proxy, new client: got %d want 200", code)
	}
}

func TestStreamReceivesTurns(t *testing.T) {
	s, _ := newTestServer(t)
	s.Hub = NewHub()
	go s.Hub.Run()
	defer s.Hub.Close()

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"

	if _, resp, err := websocket.DefaultDialer.Dial(url+"?token=nope", nil); err == nil {
		t.Fatalf("expected dial with a bad token to fail")
	} else if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token: got %d want 401", resp.StatusCode)
	}

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token=relay", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.Hub.Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.Sim.ProcessTurn()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type    string              `json:"type"`
		Turn    int                 `json:"turn"`
		Payload economy.TurnSummary `json:"payload"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "turn" || msg.Turn != 1 || msg.Payload.Turn != 1 {
		t.Fatalf("message: %+v", msg)
	}
}
