package api

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	tokenCookie = "access_token"
	tokenPrefix = "oai_token_"
	tokenTTL    = time.Hour
)

// TokenSet is the set of bearer tokens the API accepts. It is safe for
// concurrent use.
type TokenSet struct {
	mu     sync.RWMutex
	tokens map[string]struct{}
}

// NewTokenSet creates a set holding tokens.
func NewTokenSet(tokens ...string) *TokenSet {
	ts := &TokenSet{tokens: make(map[string]struct{}, len(tokens))}
	for _, t := range tokens {
		ts.Add(t)
	}
	return ts
}

// Add accepts t from now on.
func (ts *TokenSet) Add(t string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.tokens[t] = struct{}{}
}

// Remove stops accepting t.
func (ts *TokenSet) Remove(t string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	delete(ts.tokens, t)
}

// Contains reports whether t is accepted.
func (ts *TokenSet) Contains(t string) bool {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	_, ok := ts.tokens[t]
	return ok
}

// NewToken returns a fresh session token.
func NewToken() string {
	id := uuid.New()
	return tokenPrefix + strings.ReplaceAll(id.String(), "-", "")[:16]
}

// requestToken returns the first accepted token of the request: the bearer
// header is checked before the cookie.
func (s *Server) requestToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok && s.tokens.Contains(t) {
			return t, true
		}
	}
	if c, err := r.Cookie(tokenCookie); err == nil && s.tokens.Contains(c.Value) {
		return c.Value, true
	}
	return "", false
}

// requireAuth rejects requests without an accepted token.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.requestToken(r); !ok {
			s.writeError(w, http.StatusUnauthorized, "authentication required: provide a token via Authorization header or cookie")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// handleLogin accepts any non-empty credentials as JSON or form data, except
// the username "invalid", and issues a session token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var creds loginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid form body")
			return
		}
		creds.Username = r.PostForm.Get("username")
		creds.Password = r.PostForm.Get("password")
	}

	if creds.Username == "" || creds.Password == "" {
		s.writeError(w, http.StatusBadRequest, "username and password required")
		return
	}
	if creds.Username == "invalid" {
		s.writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token := NewToken()
	s.tokens.Add(token)

	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(tokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(tokenTTL.Seconds()),
	})
}
