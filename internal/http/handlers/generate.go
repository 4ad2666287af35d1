package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"retouch/internal/domain"
	"retouch/internal/imagegen"
	"retouch/internal/middleware"
)

// multipartMemory caps how much of the form body is buffered in memory
// before spilling to disk.
const multipartMemory = 4 << 20

type generateResponse struct {
	Success    bool               `json:"success"`
	Generation *domain.Generation `json:"generation"`
	ImageURL   string             `json:"imageUrl"`
}

type failureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Generate handles POST /api/generate: validate the upload, create a pending
// record, run the fallback chain, and transition the record exactly once.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	if a.Limits.MaxBytes > 0 {
		// Leave headroom for the multipart framing and the prompt field.
		r.Body = http.MaxBytesReader(w, r.Body, a.Limits.MaxBytes+multipartMemory)
	}

	req, err := a.parseUpload(r)
	if err != nil {
		var verr *imagegen.ValidationError
		if errors.As(err, &verr) {
			a.error(w, http.StatusBadRequest, verr.Reason)
			return
		}
		a.Logger.Error().Err(err).Msg("handlers: failed to read upload")
		a.error(w, http.StatusBadRequest, "invalid upload")
		return
	}
	req.Locale = middleware.LocaleFromContext(r.Context())

	gen, err := a.Repo.Create(r.Context(), req.Prompt, imagegen.BuildDataURL(req.MIMEType, req.ImageData))
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: failed to create generation record")
		a.json(w, http.StatusInternalServerError, failureResponse{Error: "failed to create generation"})
		return
	}

	// Once a pending record exists the fallback chain must run to completion
	// and the record must reach a terminal state, even if the client hangs up
	// mid-flight. Keep the request values but drop its cancelation.
	ctx := context.WithoutCancel(r.Context())

	result := a.Dispatcher.Dispatch(ctx, *req)
	if !result.Success {
		a.Logger.Warn().Err(result.Err).Str("generation_id", gen.ID).Msg("handlers: dispatch failed")
		a.failGeneration(ctx, gen.ID, result.Error)
		a.json(w, http.StatusInternalServerError, failureResponse{Error: result.Error})
		return
	}

	imageURL := imagegen.BuildDataURL(result.MIMEType, result.ImageData)
	completed := domain.GenerationStatusCompleted
	updated, err := a.Repo.Update(ctx, gen.ID, domain.GenerationPatch{
		Status:            &completed,
		GeneratedImageURL: &imageURL,
	})
	if err != nil {
		a.Logger.Error().Err(err).Str("generation_id", gen.ID).Msg("handlers: failed to complete generation record")
		a.json(w, http.StatusInternalServerError, failureResponse{Error: "failed to persist generation result"})
		return
	}

	a.json(w, http.StatusOK, generateResponse{
		Success:    true,
		Generation: updated,
		ImageURL:   imageURL,
	})
}

// parseUpload extracts the image file and prompt from the multipart form and
// runs intake validation. Validation never touches the record store.
func (a *App) parseUpload(r *http.Request) (*imagegen.EditRequest, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, &imagegen.ValidationError{Reason: "file too large"}
		}
		return nil, &imagegen.ValidationError{Reason: "no file attached"}
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, &imagegen.ValidationError{Reason: "no file attached"}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	return imagegen.NewEditRequest(data, header.Header.Get("Content-Type"), r.FormValue("prompt"), a.Limits)
}

func (a *App) failGeneration(ctx context.Context, id, message string) {
	failed := domain.GenerationStatusFailed
	if _, err := a.Repo.Update(ctx, id, domain.GenerationPatch{
		Status:       &failed,
		ErrorMessage: &message,
	}); err != nil {
		a.Logger.Error().Err(err).Str("generation_id", id).Msg("handlers: failed to mark generation failed")
	}
}
