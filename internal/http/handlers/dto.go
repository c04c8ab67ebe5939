package handlers

import (
	"scribeflow/internal/domain"
	"scribeflow/internal/jobengine"
)

type generateRequest struct {
	Topic *string `json:"topic"`
	Tone  string  `json:"tone"`
	AsOf  string  `json:"as_of"`
}

type statusDTO struct {
	JobID           string            `json:"job_id"`
	Status          string            `json:"status"`
	BlogTitle       *string           `json:"blog_title"`
	DownloadURL     *string           `json:"download_url"`
	Images          []string          `json:"images"`
	Plan            *domain.Plan      `json:"plan"`
	Evidence        []domain.Evidence `json:"evidence"`
	Error           *string           `json:"error"`
	MetaDescription *string           `json:"meta_description,omitempty"`
	Keywords        *string           `json:"keywords,omitempty"`
}

type userDTO struct {
	ID                  int64   `json:"id"`
	Email               string  `json:"email"`
	FullName            *string `json:"full_name"`
	OnboardingCompleted bool    `json:"onboarding_completed"`
	IsAdmin             bool    `json:"is_admin"`
	CreditsLeft         int     `json:"credits_left"`
	IsPremium           bool    `json:"is_premium"`
	DevtoAPIKey         *string `json:"devto_api_key"`
}

type otpRequest struct {
	Identifier string `json:"identifier"`
	Code       string `json:"code"`
}

type profileRequest struct {
	FullName    *string `json:"full_name"`
	DevtoAPIKey *string `json:"devto_api_key"`
}

type updateBlogRequest struct {
	Content *string `json:"content"`
}

// devtoKeyMask stands in for the stored key: clients only need to know one
// is set.
const devtoKeyMask = "********"

func toStatusDTO(s jobengine.Snapshot, withSEO bool) statusDTO {
	dto := statusDTO{
		JobID:       s.JobID,
		Status:      string(s.Status),
		BlogTitle:   optional(s.Title),
		DownloadURL: optional(s.DownloadURL),
		Images:      s.Images,
		Plan:        s.Plan,
		Evidence:    s.Evidence,
		Error:       optional(s.Error),
	}
	if dto.Images == nil {
		dto.Images = []string{}
	}
	if dto.Evidence == nil {
		dto.Evidence = []domain.Evidence{}
	}
	if withSEO {
		dto.MetaDescription = optional(s.MetaDescription)
		dto.Keywords = optional(s.Keywords)
	}
	return dto
}

func toUserDTO(a domain.Account) userDTO {
	dto := userDTO{
		ID:                  a.ID,
		Email:               a.Email,
		FullName:            optional(a.FullName),
		OnboardingCompleted: a.OnboardingCompleted,
		IsAdmin:             a.IsAdmin,
		CreditsLeft:         a.CreditsLeft,
		IsPremium:           a.IsPremium,
	}
	if a.DevtoConnected {
		mask := devtoKeyMask
		dto.DevtoAPIKey = &mask
	}
	return dto
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
