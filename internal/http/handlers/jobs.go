package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"scribeflow/internal/domain"
)

func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(r)
	if !ok {
		a.error(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "Invalid payload.")
		return
	}
	if req.Topic == nil || strings.TrimSpace(*req.Topic) == "" {
		a.validation(w, "topic", "field required", "missing")
		return
	}
	tone, err := domain.ParseTone(req.Tone)
	if err != nil {
		a.validation(w, "tone", "unsupported tone", "value_error")
		return
	}

	jobID, err := a.Engine.Submit(r.Context(), userID, domain.GenerationRequest{Topic: *req.Topic, Tone: tone, AsOf: req.AsOf})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrQuotaExceeded):
		a.error(w, http.StatusForbidden, "Free tier limit reached. Please upgrade.")
		return
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusNotFound, "User not found")
		return
	default:
		a.Logger.Error().Err(err).Int64("user_id", userID).Msg("submit job failed")
		a.error(w, http.StatusInternalServerError, "Failed to start generation.")
		return
	}
	a.json(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (a *App) Status(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Engine.Status(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "Job not found")
			return
		}
		a.Logger.Error().Err(err).Msg("job status failed")
		a.error(w, http.StatusInternalServerError, "Failed to load job.")
		return
	}
	a.json(w, http.StatusOK, toStatusDTO(snap, true))
}

func (a *App) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(r)
	if !ok {
		a.error(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	snaps, err := a.Engine.History(r.Context(), userID)
	if err != nil {
		a.Logger.Error().Err(err).Int64("user_id", userID).Msg("history failed")
		a.error(w, http.StatusInternalServerError, "Failed to load history.")
		return
	}
	out := make([]statusDTO, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, toStatusDTO(s, false))
	}
	a.json(w, http.StatusOK, out)
}

func (a *App) UpdateBlog(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(r)
	if !ok {
		a.error(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	var req updateBlogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "Invalid payload.")
		return
	}
	if req.Content == nil {
		a.validation(w, "content", "field required", "missing")
		return
	}
	err := a.Engine.UpdateContent(r.Context(), userID, chi.URLParam(r, "jobID"), *req.Content)
	switch {
	case err == nil:
		a.json(w, http.StatusOK, map[string]string{"status": "success", "message": "Blog updated successfully"})
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "Blog not found")
	case errors.Is(err, domain.ErrForbidden):
		a.error(w, http.StatusForbidden, "Not authorized to edit this blog")
	case errors.Is(err, domain.ErrMissingContent):
		a.validation(w, "content", "content must not be empty", "value_error")
	case errors.Is(err, domain.ErrNotCompleted):
		a.error(w, http.StatusBadRequest, "Blog file not found")
	default:
		a.Logger.Error().Err(err).Msg("save blog edit failed")
		a.error(w, http.StatusInternalServerError, "Failed to save changes to file")
	}
}

func (a *App) PublicBlog(w http.ResponseWriter, r *http.Request) {
	blog, err := a.Engine.PublicBlog(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrNotCompleted) {
			a.error(w, http.StatusNotFound, "Blog not found or not ready")
			return
		}
		a.Logger.Error().Err(err).Msg("public blog failed")
		a.error(w, http.StatusInternalServerError, "Failed to load blog.")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"title":            blog.Title,
		"content":          blog.Content,
		"meta_description": optional(blog.MetaDescription),
		"author":           blog.Author,
	})
}
