package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"scribeflow/internal/domain"
	"scribeflow/internal/jobengine"
	"scribeflow/internal/middleware"
)

const (
	tokenIssuer   = "scribeflow"
	tokenAudience = "scribeflow-clients"
)

func (a *App) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "Invalid payload.")
		return
	}
	if strings.TrimSpace(req.Identifier) == "" {
		a.validation(w, "identifier", "field required", "missing")
		return
	}
	if err := a.Engine.SendOTP(r.Context(), req.Identifier); err != nil {
		a.Logger.Error().Err(err).Msg("send otp failed")
		a.error(w, http.StatusInternalServerError, "Failed to send OTP.")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"message": "OTP sent successfully."})
}

func (a *App) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "Invalid payload.")
		return
	}
	acct, err := a.Engine.VerifyOTP(r.Context(), req.Identifier, req.Code)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidOTP) {
			a.error(w, http.StatusBadRequest, "Invalid or expired OTP.")
			return
		}
		a.Logger.Error().Err(err).Msg("verify otp failed")
		a.error(w, http.StatusInternalServerError, "Login failed.")
		return
	}
	token, err := middleware.SignJWT(a.JWTSecret, middleware.TokenClaims{
		Sub:      strconv.FormatInt(acct.ID, 10),
		Exp:      a.Clock.Now().Add(a.TokenTTL).Unix(),
		Issuer:   tokenIssuer,
		Audience: tokenAudience,
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("sign jwt failed")
		a.error(w, http.StatusInternalServerError, "Login failed.")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "bearer"})
}

func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(r)
	if !ok {
		a.error(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	acct, err := a.Engine.Account(r.Context(), userID)
	if err != nil {
		a.error(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	a.json(w, http.StatusOK, toUserDTO(acct))
}

func (a *App) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(r)
	if !ok {
		a.error(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "Invalid payload.")
		return
	}
	acct, err := a.Engine.UpdateProfile(r.Context(), userID, jobengine.ProfileUpdate{
		FullName:    req.FullName,
		DevtoAPIKey: req.DevtoAPIKey,
	})
	if err != nil {
		a.error(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	a.json(w, http.StatusOK, toUserDTO(acct))
}
