package jobsvc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"scribeflow/internal/domain"
)

type submitRequest struct {
	Topic string `json:"topic"`
	Tone  string `json:"tone"`
	AsOf  string `json:"as_of,omitempty"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

type statusResponse struct {
	JobID           string          `json:"job_id"`
	Status          string          `json:"status"`
	BlogTitle       string          `json:"blog_title"`
	DownloadURL     string          `json:"download_url"`
	Images          []string        `json:"images"`
	Plan            json.RawMessage `json:"plan"`
	Evidence        json.RawMessage `json:"evidence"`
	Error           string          `json:"error"`
	MetaDescription string          `json:"meta_description"`
	Keywords        keywordList     `json:"keywords"`
}

// keywordList accepts the comma separated string the service sends as well
// as a JSON array.
type keywordList []string

func (k *keywordList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*k = nil
		return nil
	}
	if data[0] == '[' {
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*k = domain.SplitKeywords(strings.Join(items, ","))
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*k = domain.SplitKeywords(raw)
	return nil
}

type accountResponse struct {
	ID                  int64   `json:"id"`
	Email               *string `json:"email"`
	FullName            *string `json:"full_name"`
	OnboardingCompleted bool    `json:"onboarding_completed"`
	IsAdmin             bool    `json:"is_admin"`
	CreditsLeft         int     `json:"credits_left"`
	IsPremium           bool    `json:"is_premium"`
	DevtoAPIKey         *string `json:"devto_api_key"`
}

type otpRequest struct {
	Identifier string `json:"identifier"`
	Code       string `json:"code,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type updateContentRequest struct {
	Content string `json:"content"`
}

type publicBlogResponse struct {
	Title           string `json:"title"`
	Content         string `json:"content"`
	MetaDescription string `json:"meta_description"`
	Author          string `json:"author"`
}

type publishResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	URL     string `json:"url"`
}

// errorResponse mirrors the {"detail": ...} body the service returns. detail
// is a string for handled errors and a list of field errors for validation
// failures.
type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

func (e errorResponse) message() string {
	detail := bytes.TrimSpace(e.Detail)
	if len(detail) == 0 || bytes.Equal(detail, []byte("null")) {
		return ""
	}
	var text string
	if err := json.Unmarshal(detail, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var fields []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(detail, &fields); err == nil && len(fields) > 0 {
		parts := make([]string, 0, len(fields))
		for _, f := range fields {
			if len(f.Loc) > 0 {
				parts = append(parts, fmt.Sprintf("%v: %s", f.Loc[len(f.Loc)-1], f.Msg))
				continue
			}
			parts = append(parts, f.Msg)
		}
		return strings.Join(parts, "; ")
	}
	return strings.TrimSpace(string(detail))
}

func (r accountResponse) toAccount() domain.Account {
	return domain.Account{
		ID:                  r.ID,
		Email:               deref(r.Email),
		FullName:            deref(r.FullName),
		CreditsLeft:         r.CreditsLeft,
		IsPremium:           r.IsPremium,
		IsAdmin:             r.IsAdmin,
		OnboardingCompleted: r.OnboardingCompleted,
		DevtoConnected:      strings.TrimSpace(deref(r.DevtoAPIKey)) != "",
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
