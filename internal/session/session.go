// Package session holds the bearer credential shared by every request the
// client issues. A Session is passed explicitly to the job service client
// instead of living in process-wide HTTP defaults.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
)

var (
	// ErrLoggedOut is the cancellation cause for work bound to a session that
	// logged out.
	ErrLoggedOut = errors.New("session: logged out")
	// ErrReplaced is the cancellation cause when a new login supersedes the
	// previous credential.
	ErrReplaced = errors.New("session: replaced by a new login")
)

// Session is an authentication epoch: the token plus a context that lives
// exactly as long as that token does. Work started under one epoch (poll
// loops) is cancelled when the epoch ends.
type Session struct {
	mu     sync.RWMutex
	token  string
	ctx    context.Context
	cancel context.CancelCauseFunc
}

// New returns a session holding token. An empty token yields an anonymous
// session.
func New(token string) *Session {
	s := &Session{}
	s.begin(strings.TrimSpace(token))
	return s
}

func (s *Session) begin(token string) {
	s.token = token
	s.ctx, s.cancel = context.WithCancelCause(context.Background())
}

// Token returns the current bearer token, empty when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated reports whether a token is held.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Context returns the context of the current epoch. It is cancelled on
// Logout or when Login installs a different token.
func (s *Session) Context() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

// Login installs token and ends the previous epoch.
func (s *Session) Login(token string) {
	token = strings.TrimSpace(token)
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == s.token {
		return
	}
	s.cancel(ErrReplaced)
	s.begin(token)
}

// Logout clears the token and cancels everything bound to the current epoch.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel(ErrLoggedOut)
	s.begin("")
}

// Authorize attaches the bearer token to req when one is held.
func (s *Session) Authorize(req *http.Request) {
	if token := s.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
