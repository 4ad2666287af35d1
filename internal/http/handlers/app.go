package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"retouch/internal/domain"
	"retouch/internal/imagegen"
)

// EditDispatcher is the slice of the dispatcher the handlers need.
type EditDispatcher interface {
	Dispatch(ctx context.Context, req imagegen.EditRequest) imagegen.Result
}

// App bundles the handler dependencies.
type App struct {
	Repo       domain.GenerationRepository
	Dispatcher EditDispatcher
	Limits     imagegen.Limits
	Logger     zerolog.Logger
}

func NewApp(repo domain.GenerationRepository, dispatcher EditDispatcher, limits imagegen.Limits, logger zerolog.Logger) *App {
	return &App{Repo: repo, Dispatcher: dispatcher, Limits: limits, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]any{"error": message})
}
