package session

import (
	"context"
	"errors"
	"strings"

	"scribeflow/internal/storage"
)

const tokenKey = "session/token"

// TokenStore persists the bearer token between CLI invocations.
type TokenStore struct {
	files *storage.FileStore
}

// NewTokenStore keeps the token inside files.
func NewTokenStore(files *storage.FileStore) *TokenStore {
	return &TokenStore{files: files}
}

// Load returns the saved token or an empty string when none is saved.
func (t *TokenStore) Load(ctx context.Context) (string, error) {
	data, err := t.files.Read(ctx, tokenKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Save writes token with owner-only permissions.
func (t *TokenStore) Save(ctx context.Context, token string) error {
	_, err := t.files.WritePrivate(ctx, tokenKey, []byte(strings.TrimSpace(token)))
	return err
}

// Clear forgets the saved token.
func (t *TokenStore) Clear(ctx context.Context) error {
	return t.files.Delete(ctx, tokenKey)
}

// Restore builds a session from the saved token.
func (t *TokenStore) Restore(ctx context.Context) (*Session, error) {
	token, err := t.Load(ctx)
	if err != nil {
		return nil, err
	}
	return New(token), nil
}
