package handlers

import (
	"bytes"
	"errors"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"scribeflow/internal/storage"
)

// Static serves generated articles and images from the file store under
// /static/blogs and /static/images.
func (a *App) Static(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if !strings.HasPrefix(key, "blogs/") && !strings.HasPrefix(key, "images/") {
		a.error(w, http.StatusNotFound, "Not Found")
		return
	}
	data, err := a.Files.Read(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			a.error(w, http.StatusNotFound, "Not Found")
			return
		}
		a.Logger.Error().Err(err).Str("key", key).Msg("static read failed")
		a.error(w, http.StatusInternalServerError, "Failed to read file.")
		return
	}
	contentType := mime.TypeByExtension(path.Ext(key))
	if path.Ext(key) == ".md" {
		contentType = "text/markdown; charset=utf-8"
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	http.ServeContent(w, r, path.Base(key), time.Time{}, bytes.NewReader(data))
}
