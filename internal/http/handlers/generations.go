package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"retouch/internal/domain"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// ListGenerations handles GET /api/generations?limit=N, newest first.
func (a *App) ListGenerations(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	gens, err := a.Repo.ListRecent(r.Context(), limit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: failed to list generations")
		a.error(w, http.StatusInternalServerError, "failed to list generations")
		return
	}
	if gens == nil {
		gens = []domain.Generation{}
	}
	a.json(w, http.StatusOK, gens)
}

// GetGeneration handles GET /api/generations/{id}.
func (a *App) GetGeneration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		a.error(w, http.StatusBadRequest, "id required")
		return
	}

	gen, err := a.Repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "Generation not found")
			return
		}
		a.Logger.Error().Err(err).Str("generation_id", id).Msg("handlers: failed to load generation")
		a.error(w, http.StatusInternalServerError, "failed to load generation")
		return
	}
	a.json(w, http.StatusOK, gen)
}
