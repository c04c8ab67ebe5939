package jobengine

import "errors"

var (
	// ErrDevtoKeyMissing means the account has no Dev.to API key on file.
	ErrDevtoKeyMissing = errors.New("jobengine: dev.to api key not found in profile")
	// ErrNoContent is returned when a completed job has no stored article.
	ErrNoContent = errors.New("jobengine: blog content is empty")
)
