package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"scribeflow/internal/domain"
	"scribeflow/internal/jobengine"
)

func (a *App) PublishDevTo(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(r)
	if !ok {
		a.error(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	receipt, err := a.Engine.PublishDevTo(r.Context(), userID, chi.URLParam(r, "jobID"))
	switch {
	case err == nil:
		a.json(w, http.StatusOK, map[string]string{
			"status":  receipt.Status,
			"message": receipt.Message,
			"url":     receipt.URL,
		})
	case errors.Is(err, jobengine.ErrDevtoKeyMissing):
		a.error(w, http.StatusBadRequest, "Dev.to API key not found in profile.")
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNotCompleted):
		a.error(w, http.StatusNotFound, "Blog not found or not completed.")
	case errors.Is(err, domain.ErrForbidden):
		a.error(w, http.StatusForbidden, "Not authorized to publish this blog.")
	case errors.Is(err, jobengine.ErrNoContent):
		a.error(w, http.StatusBadRequest, "Blog content is empty.")
	default:
		a.Logger.Error().Err(err).Msg("publish to dev.to failed")
		a.error(w, http.StatusInternalServerError, "Failed to publish to Dev.to.")
	}
}
