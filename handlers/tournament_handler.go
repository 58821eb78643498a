package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"arena-platform/models"
	"arena-platform/repositories"
	"arena-platform/services"
	"arena-platform/tournament"
)

type TournamentHandler struct {
	manager *tournament.Manager
	archive services.ArchiveService
}

func NewTournamentHandler(manager *tournament.Manager, archive services.ArchiveService) *TournamentHandler {
	return &TournamentHandler{manager: manager, archive: archive}
}

// ListLive returns a snapshot of every in-memory tournament session.
func (h *TournamentHandler) ListLive(w http.ResponseWriter, r *http.Request) {
	snapshots := h.manager.List(r.Context())
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": snapshots}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetLive returns the current state of one session. Valid in every state,
// including finished and cancelled, until the session is archived.
func (h *TournamentHandler) GetLive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "tournamentID")
	session, ok := h.manager.Get(id)
	if !ok {
		notFoundResponse(w, r)
		return
	}

	snapshot, err := session.Snapshot(r.Context())
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": snapshot}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListArchive returns persisted tournament records.
func (h *TournamentHandler) ListArchive(w http.ResponseWriter, r *http.Request) {
	filter := repositories.ListTournamentsFilter{Limit: 50}

	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := models.TournamentStatus(statusStr)
		filter.Status = &status
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 100 {
			filter.Limit = limit
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}

	tournaments, err := h.archive.ListTournaments(r.Context(), filter)
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetArchive returns one persisted tournament with its match history and
// final standings.
func (h *TournamentHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "tournamentID")

	record, err := h.archive.GetTournament(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": record}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
