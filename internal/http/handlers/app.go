package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"scribeflow/internal/jobengine"
	"scribeflow/internal/middleware"
	"scribeflow/internal/storage"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// App holds the dependencies shared by the dev service handlers.
type App struct {
	Engine    *jobengine.Engine
	Files     *storage.FileStore
	Logger    zerolog.Logger
	JWTSecret string
	TokenTTL  time.Duration
	Clock     clockwork.Clock
}

func NewApp(engine *jobengine.Engine, files *storage.FileStore, logger zerolog.Logger, jwtSecret string, tokenTTL time.Duration, clock clockwork.Clock) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if tokenTTL <= 0 {
		tokenTTL = 7 * 24 * time.Hour
	}
	return &App{
		Engine:    engine,
		Files:     files,
		Logger:    logger,
		JWTSecret: jwtSecret,
		TokenTTL:  tokenTTL,
		Clock:     clock,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, detail string) {
	middleware.WriteDetail(w, code, detail)
}

type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// validation writes a 422 with the field error list shape clients parse.
func (a *App) validation(w http.ResponseWriter, field, msg, kind string) {
	a.json(w, http.StatusUnprocessableEntity, map[string]any{
		"detail": []fieldError{{Loc: []string{"body", field}, Msg: msg, Type: kind}},
	})
}

func (a *App) currentUserID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(middleware.UserIDFromContext(r.Context()), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(dst)
}
