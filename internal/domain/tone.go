package domain

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tone is the writing style requested for an article.
type Tone string

const (
	ToneProfessional   Tone = "Professional"
	ToneConversational Tone = "Conversational"
	ToneWitty          Tone = "Witty"
	ToneTechnical      Tone = "Technical"
	ToneStorytelling   Tone = "Storytelling"
	ToneAcademic       Tone = "Academic"
)

// DefaultTone is used when the caller does not pick one.
const DefaultTone = ToneProfessional

var tones = []Tone{
	ToneProfessional,
	ToneConversational,
	ToneWitty,
	ToneTechnical,
	ToneStorytelling,
	ToneAcademic,
}

// Tones lists the supported tones in display order.
func Tones() []Tone {
	out := make([]Tone, len(tones))
	copy(out, tones)
	return out
}

// ParseTone accepts any casing of a supported tone. Empty input yields the
// default tone.
func ParseTone(raw string) (Tone, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultTone, nil
	}
	// Casers carry state, so one is built per call.
	tone := Tone(cases.Title(language.English).String(strings.ToLower(raw)))
	if !tone.Valid() {
		return "", ErrInvalidTone
	}
	return tone, nil
}

// Valid reports whether t is a supported tone.
func (t Tone) Valid() bool {
	for _, candidate := range tones {
		if t == candidate {
			return true
		}
	}
	return false
}

// GenerationRequest is what the user submits to start a job.
type GenerationRequest struct {
	Topic string
	Tone  Tone
	// AsOf optionally pins news-style articles to a date.
	AsOf string
}

// Normalize trims the topic, canonicalises the tone casing and fills the
// default tone. Unknown tones are left as-is for Validate to reject.
func (r GenerationRequest) Normalize() GenerationRequest {
	r.Topic = strings.TrimSpace(r.Topic)
	r.AsOf = strings.TrimSpace(r.AsOf)
	if tone, err := ParseTone(string(r.Tone)); err == nil {
		r.Tone = tone
	}
	return r
}

// Validate checks the request before it is sent anywhere.
func (r GenerationRequest) Validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return ErrEmptyTopic
	}
	if r.Tone != "" && !r.Tone.Valid() {
		return ErrInvalidTone
	}
	return nil
}
