package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mxrobo/robodhs/internal/journal"
)

// handleListOperations returns paginated journal entries with optional filters.
//
// Query parameters:
//   - name: filter by operation name (e.g., mount_crystal)
//   - outcome: filter by outcome (pending, normal, error)
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListOperations(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeInternalError(w, "operation journal not configured")
		return
	}

	q := r.URL.Query()
	filter := journal.Filter{
		Name:    q.Get("name"),
		Outcome: q.Get("outcome"),
	}

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.journal.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list journal entries", "error", err)
		writeInternalError(w, "failed to list operations")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetOperation returns a single journal entry by ID.
func (s *Server) handleGetOperation(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeInternalError(w, "operation journal not configured")
		return
	}

	id := chi.URLParam(r, "id")
	entry, err := s.journal.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			writeNotFound(w, "operation not found: "+id)
			return
		}
		s.logger.Error("failed to get journal entry", "id", id, "error", err)
		writeInternalError(w, "failed to get operation")
		return
	}

	writeJSON(w, http.StatusOK, entry)
}
