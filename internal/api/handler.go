package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"batterycare/internal/engine"
	"batterycare/internal/logbook"
)

type Handler struct {
	Orch      *engine.Orchestrator
	Batteries *logbook.Repository[logbook.Battery]
	Notes     *logbook.Repository[logbook.Note]
	Reminders *logbook.Repository[logbook.Reminder]
}

func NewHandler(orch *engine.Orchestrator, batteries *logbook.Repository[logbook.Battery], notes *logbook.Repository[logbook.Note], reminders *logbook.Repository[logbook.Reminder]) *Handler {
	return &Handler{Orch: orch, Batteries: batteries, Notes: notes, Reminders: reminders}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type stateResponse struct {
	State string `json:"state"`
	URL   string `json:"url,omitempty"`
}

// AppState reports the orchestrator's observable state; the client decides
// between native UI and the web container from it.
func (h *Handler) AppState(w http.ResponseWriter, _ *http.Request) {
	st := h.Orch.State()
	writeJSON(w, http.StatusOK, stateResponse{
		State: st.Phase.String(),
		URL:   st.DestinationURL,
	})
}

func listHandler[T any](repo *logbook.Repository[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := repo.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "load failed")
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func saveHandler[T any](repo *logbook.Repository[T], prepare func(*T) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var item T
		if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		if err := prepare(&item); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := repo.Save(r.Context(), item); err != nil {
			writeError(w, http.StatusInternalServerError, "save failed")
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func deleteHandler[T any](repo *logbook.Repository[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid id")
			return
		}
		if err := repo.Delete(r.Context(), id); err != nil {
			writeError(w, http.StatusInternalServerError, "delete failed")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) listBatteries() http.HandlerFunc { return listHandler(h.Batteries) }
func (h *Handler) saveBattery() http.HandlerFunc {
	return saveHandler(h.Batteries, func(b *logbook.Battery) error {
		if b.ID == uuid.Nil {
			b.ID = uuid.New()
		}
		return nil
	})
}
func (h *Handler) deleteBattery() http.HandlerFunc { return deleteHandler(h.Batteries) }

func (h *Handler) listNotes() http.HandlerFunc { return listHandler(h.Notes) }
func (h *Handler) saveNote() http.HandlerFunc {
	return saveHandler(h.Notes, func(n *logbook.Note) error {
		if n.ID == uuid.Nil {
			n.ID = uuid.New()
		}
		if !n.EventType.Valid() {
			return errors.New("unknown event type")
		}
		return nil
	})
}
func (h *Handler) deleteNote() http.HandlerFunc { return deleteHandler(h.Notes) }

func (h *Handler) listReminders() http.HandlerFunc { return listHandler(h.Reminders) }
func (h *Handler) saveReminder() http.HandlerFunc {
	return saveHandler(h.Reminders, func(r *logbook.Reminder) error {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		return nil
	})
}
func (h *Handler) deleteReminder() http.HandlerFunc { return deleteHandler(h.Reminders) }
