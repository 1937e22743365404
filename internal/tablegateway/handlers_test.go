package tablegateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"holdem-server/internal/game/viewmodel"
)

func newTestRouter(t *testing.T) (*harness, http.Handler) {
	t.Helper()
	h := newHarness(t, testConfig(), nil)
	r := chi.NewRouter()
	r.Route("/api/tables", func(r chi.Router) {
		Routes(r, h.coord, h.pub)
	})
	return h, r
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var out ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return out.Error
}

func TestHandlersPlayHandOverHTTP(t *testing.T) {
	_, router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/tables", CreateTableRequest{TableID: "t1", SmallBlind: 5, BigBlind: 10, ManualAdvance: true})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	for i, id := range []string{"p1", "p2"} {
		rec = do(t, router, http.MethodPost, "/api/tables/t1/seats", SeatRequest{PlayerID: id, Seat: i})
		if rec.Code != http.StatusCreated {
			t.Fatalf("seat %s: %d %s", id, rec.Code, rec.Body.String())
		}
	}
	rec = do(t, router, http.MethodPost, "/api/tables/t1/seats", SeatRequest{PlayerID: "p3", Seat: 0})
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "seat_taken" {
		t.Fatalf("taken seat: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodPost, "/api/tables/t1/hands", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, router, http.MethodPost, "/api/tables/t1/actions", ActionRequest{PlayerID: "p2", Action: "check"})
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "not_your_turn" {
		t.Fatalf("out of turn: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, router, http.MethodPost, "/api/tables/t1/advance", nil)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "betting_round_open" {
		t.Fatalf("early advance: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, router, http.MethodPost, "/api/tables/t1/actions", ActionRequest{PlayerID: "p1", Action: "call"})
	if rec.Code != http.StatusOK {
		t.Fatalf("call: %d %s", rec.Code, rec.Body.String())
	}
	var res ActionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Accepted || len(seat(res.State, "p1").HoleCards) != 2 {
		t.Fatalf("actor should get their own view back: %+v", res)
	}
	do(t, router, http.MethodPost, "/api/tables/t1/actions", ActionRequest{PlayerID: "p2", Action: "check"})

	rec = do(t, router, http.MethodPost, "/api/tables/t1/advance", AdvanceRequest{Stage: "flop"})
	if rec.Code != http.StatusOK {
		t.Fatalf("advance: %d %s", rec.Code, rec.Body.String())
	}
	var view viewmodel.TableView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Stage != "flop" || len(view.CommunityCards) != 3 {
		t.Fatalf("flop not dealt: %+v", view)
	}
	rec = do(t, router, http.MethodPost, "/api/tables/t1/advance", AdvanceRequest{Stage: "flop"})
	if rec.Code != http.StatusTooManyRequests || errorCode(t, rec) != "duplicate_advance" {
		t.Fatalf("duplicate advance: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodGet, "/api/tables/t1/lifecycle", nil)
	var lc LifecycleView
	if err := json.Unmarshal(rec.Body.Bytes(), &lc); err != nil {
		t.Fatalf("decode lifecycle: %v", err)
	}
	if lc.State != "flop" || lc.RecoveryPoints != 2 {
		t.Fatalf("lifecycle: %+v", lc)
	}
}

func TestHandlersMapErrors(t *testing.T) {
	_, router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/tables/missing", nil)
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "table_not_found" {
		t.Fatalf("missing table: %d %s", rec.Code, rec.Body.String())
	}
	req := httptest.NewRequest(http.MethodPost, "/api/tables", strings.NewReader("{"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "invalid_json" {
		t.Fatalf("bad json: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, router, http.MethodPost, "/api/tables", CreateTableRequest{TableID: "t1", SmallBlind: 0, BigBlind: 10})
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "invalid_request" {
		t.Fatalf("bad blinds: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, router, http.MethodPost, "/api/tables", CreateTableRequest{TableID: "t1", SmallBlind: 5, BigBlind: 10})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d", rec.Code)
	}
	rec = do(t, router, http.MethodPost, "/api/tables/t1/hands", nil)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "not_enough_players" {
		t.Fatalf("start without players: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, router, http.MethodPost, "/api/tables/t1/run-count", RunCountRequest{PlayerID: "p1", Runs: 2})
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "no_run_it_twice_prompt" {
		t.Fatalf("run count without prompt: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, router, http.MethodPost, "/api/tables/t1/rebuys", RebuyRequest{PlayerID: "p1", Rebuy: true})
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "no_pending_rebuy" {
		t.Fatalf("rebuy without offer: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, router, http.MethodGet, "/api/tables/t1?player_id=ghost", nil)
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "player_not_found" {
		t.Fatalf("unknown player: %d %s", rec.Code, rec.Body.String())
	}
}

func TestEventsSSEReplaysTopic(t *testing.T) {
	h, router := newTestRouter(t)
	h.headsUp(t, CreateTableRequest{})
	if err := h.coord.StartNextHand(context.Background(), "t1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/tables/t1/events?player_id=p1", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}
	rd := bufio.NewReader(bytes.NewReader(rec.Body.Bytes()))
	var events []string
	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			break
		}
		if strings.HasPrefix(line, "event: ") {
			events = append(events, strings.TrimSpace(strings.TrimPrefix(line, "event: ")))
		}
	}
	if len(events) == 0 || events[len(events)-1] != "hand_started" {
		t.Fatalf("expected replay ending in hand_started, got %v", events)
	}
	if !strings.Contains(rec.Body.String(), `"hole_cards":["As","Ad"]`) {
		t.Fatalf("player stream should carry p1's cards: %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), `"hole_cards":["Kh","Kd"]`) {
		t.Fatalf("player stream leaked opponent cards")
	}

	rec = do(t, router, http.MethodGet, "/api/tables/missing/events", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing table stream: %d", rec.Code)
	}
}
