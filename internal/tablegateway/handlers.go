package tablegateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func writeErr(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMapped(w http.ResponseWriter, err error) {
	status, code := mapErr(err)
	writeErr(w, status, code)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json")
		return false
	}
	return true
}

func CreateTableHandler(coord *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateTableRequest
		if !decode(w, r, &req) {
			return
		}
		id, err := coord.CreateTable(r.Context(), req)
		if err != nil {
			writeMapped(w, err)
			return
		}
		state, err := coord.PublicState(r.Context(), id)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, state)
	}
}

func DeleteTableHandler(coord *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := coord.DeleteTable(r.Context(), chi.URLParam(r, "table_id")); err != nil {
			writeMapped(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func SeatHandler(coord *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tableID := chi.URLParam(r, "table_id")
		var req SeatRequest
		if !decode(w, r, &req) {
			return
		}
		if err := coord.SeatPlayer(r.Context(), tableID, req); err != nil {
			writeMapped(w, err)
			return
		}
		state, err := coord.PlayerState(r.Context(), tableID, req.PlayerID)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, state)
	}
}

func LeaveHandler(coord *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := coord.LeaveTable(r.Context(), chi.URLParam(r, "table_id"), chi.URLParam(r, "player_id"))
		if err != nil {
			writeMapped(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func StartHandHandler(coord *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tableID := chi.URLParam(r, "table_id")
		if err := coord.StartNextHand(r.Context(), tableID); err != nil {
			writeMapped(w, err)
			return
		}
		state, err := coord.PublicState(r.Context(), tableID)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func ActionHandler(coord *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ActionRequest
		if !decode(w, r, &req) {
			return
		}
		res, err := coord.SubmitAction(r.Context(), chi.URLParam(r, "table_id"), req)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// AdvanceHandler accepts an empty body to mean the next street.
func AdvanceHandler(coord *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tableID := chi.URLParam(r, "table_id")
		var req AdvanceRequest
		if r.ContentLength != 0 && !decode(w, r, &req) {
			return
		}
		if err := coord.AdvanceStreet(r.Context(), tableID, req); err != nil {
			writeMapped(w, err)
			return
		}
		state, err := coord.PublicState(r.Context(), tableID)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func RunCountHandler(coord *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tableID := chi.URLParam(r, "table_id")
		var req RunCountRequest
		if !decode(w, r, &req) {
			return
		}
		if err := coord.ChooseRunCount(r.Context(), tableID, req); err != nil {
			writeMapped(w, err)
			return
		}
		state, err := coord.PlayerState(r.Context(), tableID, req.PlayerID)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func RebuyHandler(coord *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RebuyRequest
		if !decode(w, r, &req) {
			return
		}
		res, err := coord.ResolveRebuy(r.Context(), chi.URLParam(r, "table_id"), req)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// StateHandler returns the spectator view, or a player's view with
// ?player_id=.
func StateHandler(coord *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tableID := chi.URLParam(r, "table_id")
		playerID := r.URL.Query().Get("player_id")
		state, err := coord.PublicState(r.Context(), tableID)
		if playerID != "" {
			state, err = coord.PlayerState(r.Context(), tableID, playerID)
		}
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func SyncHandler(coord *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SyncRequest
		if !decode(w, r, &req) {
			return
		}
		res, err := coord.SyncState(r.Context(), chi.URLParam(r, "table_id"), req)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func LifecycleHandler(coord *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := coord.Lifecycle(r.Context(), chi.URLParam(r, "table_id"))
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func RecoverHandler(coord *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := coord.Recover(r.Context(), chi.URLParam(r, "table_id"))
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"lifecycle_state": p.State,
			"recovery_seq":    p.Seq,
			"captured_at":     p.CapturedAt,
		})
	}
}

// Routes mounts the table API on r. pub may be nil when events are not
// served in process.
func Routes(r chi.Router, coord *Coordinator, pub *TopicPublisher) {
	r.Post("/", CreateTableHandler(coord))
	r.Route("/{table_id}", func(r chi.Router) {
		r.Get("/", StateHandler(coord))
		r.Delete("/", DeleteTableHandler(coord))
		r.Post("/seats", SeatHandler(coord))
		r.Delete("/seats/{player_id}", LeaveHandler(coord))
		r.Post("/hands", StartHandHandler(coord))
		r.Post("/actions", ActionHandler(coord))
		r.Post("/advance", AdvanceHandler(coord))
		r.Post("/run-count", RunCountHandler(coord))
		r.Post("/rebuys", RebuyHandler(coord))
		r.Post("/sync", SyncHandler(coord))
		r.Get("/lifecycle", LifecycleHandler(coord))
		r.Post("/recover", RecoverHandler(coord))
		if pub != nil {
			r.Get("/events", EventsSSEHandler(coord, pub))
		}
	})
}
