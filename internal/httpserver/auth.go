// internal/httpserver/auth.go
//
// Authentication for the HTTP API.
// Responsibilities:
//   - /auth/signup, /auth/login, /auth/logout and the gated profile routes
//     (/auth/me, /stats/me, /games/mine).
//   - HS256 JWTs carried in an HttpOnly cookie or an Authorization header.
//   - Optional auth (guests allowed) and required auth middleware.
//   - Anonymous cookie IDs so guest games have a stable owner, claimed by the
//     account on signup/login.

package httpserver

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/minesweeper/internal/store"
)

// Request payload for signup/login.
type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// authUser is placed into request context by auth middleware.
type authUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ctxUserKey is the context key type for storing authUser.
type ctxUserKey struct{}

// userFrom returns the signed-in user, or nil for guests.
func userFrom(r *http.Request) *authUser {
	u, _ := r.Context().Value(ctxUserKey{}).(*authUser)
	return u
}

// mountAuthRoutes registers authentication + gated routes (/auth/*, /stats/me, /games/mine).
func (s *Server) mountAuthRoutes(r chi.Router) {
	r.Post("/auth/signup", s.handleSignup)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth())

		// Current user
		r.Get("/auth/me", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(userFrom(r))
		})

		// Stats
		r.Get("/stats/me", func(w http.ResponseWriter, r *http.Request) {
			u, err := s.ledger.UserByID(r.Context(), userFrom(r).ID)
			if err != nil {
				writeErr(w, r, err)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":          u.ID,
				"gamesPlayed": u.GamesPlayed,
				"wins":        u.Wins,
				"streak":      u.Streak,
			})
		})

		// Recent games
		r.Get("/games/mine", func(w http.ResponseWriter, r *http.Request) {
			rows, err := s.ledger.RecentGames(r.Context(), userFrom(r).ID, 50)
			if err != nil {
				log.Error().Err(err).Msg("recent games")
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}
			_ = json.NewEncoder(w).Encode(rows)
		})
	})
}

// handleSignup creates a new user, signs a JWT, sets auth cookie, and claims anon history.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	u, err := s.ledger.CreateUser(r.Context(), body.Username, body.Password)
	switch {
	case errors.Is(err, store.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "Username taken")
		return
	case errors.Is(err, store.ErrInvalidSignup):
		writeError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), store.ErrInvalidSignup.Error()+": "))
		return
	case err != nil:
		log.Error().Err(err).Msg("create user")
		writeError(w, http.StatusInternalServerError, "signup_failed")
		return
	}
	if !s.issueSession(w, r, u) {
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"id": u.ID, "username": u.Username, "createdAt": u.CreatedAt})
}

// handleLogin authenticates user, sets cookie, and claims anon history.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	u, err := s.ledger.Authenticate(r.Context(), body.Username, body.Password)
	if errors.Is(err, store.ErrBadCredentials) {
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("authenticate")
		writeError(w, http.StatusInternalServerError, "login_failed")
		return
	}
	if !s.issueSession(w, r, u) {
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"id": u.ID, "username": u.Username})
}

// issueSession signs a token for u, sets the auth cookie and attaches any
// anonymous games to the account.
func (s *Server) issueSession(w http.ResponseWriter, r *http.Request, u *store.User) bool {
	tok, exp, err := s.signJWT(u.ID, u.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sign_failed")
		return false
	}
	s.setAuthCookie(w, tok, exp)
	if err := s.ledger.ClaimAnonGames(r.Context(), s.ensureAnonID(w, r), u.ID); err != nil {
		log.Warn().Err(err).Str("user", u.ID).Msg("claim anon games")
	}
	return true
}

// handleLogout clears the auth cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearAuthCookie(w)
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// --------------------------- middleware ------------------------------------

// withOptionalAuth decorates requests with user context if a valid JWT is present.
// It never 401s; used for routes where guests are allowed.
func (s *Server) withOptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if me, err := s.authenticate(r); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, me))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireAuth enforces a valid JWT and injects authUser into request context.
func (s *Server) requireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			me, err := s.authenticate(r)
			if errors.Is(err, errNoToken) {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			ctx := context.WithValue(r.Context(), ctxUserKey{}, me)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

var (
	errNoToken      = errors.New("no token")
	errInvalidToken = errors.New("invalid token")
)

// authenticate verifies the request token and checks the user still exists.
func (s *Server) authenticate(r *http.Request) (*authUser, error) {
	tokenStr := s.bearerOrCookie(r)
	if tokenStr == "" {
		return nil, errNoToken
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}
	id, _ := claims["id"].(string)
	username, _ := claims["username"].(string)
	if id == "" || username == "" {
		return nil, errInvalidToken
	}
	// Ensure user still exists
	if _, err := s.ledger.UserByID(r.Context(), id); err != nil {
		return nil, errInvalidToken
	}
	return &authUser{ID: id, Username: username}, nil
}

// ------------------------------ anon owner ---------------------------------

const anonCookieName = "mines_anon"

// anonIDFrom reads the anonymous cookie without setting one.
func anonIDFrom(r *http.Request) string {
	if c, err := r.Cookie(anonCookieName); err == nil {
		return c.Value
	}
	return ""
}

// ensureAnonID returns an existing anon cookie or sets a new one.
// Used to associate guest games with a stable identifier.
func (s *Server) ensureAnonID(w http.ResponseWriter, r *http.Request) string {
	if id := anonIDFrom(r); id != "" {
		return id
	}
	id := genID()
	http.SetCookie(w, s.cookie(anonCookieName, id, time.Now().Add(180*24*time.Hour)))
	return id
}

// ownerFor returns the ledger owner for a request: the signed-in user, or
// the anon cookie (created on demand).
func (s *Server) ownerFor(w http.ResponseWriter, r *http.Request) store.Owner {
	if me := userFrom(r); me != nil {
		return store.Owner{UserID: me.ID}
	}
	return store.Owner{AnonID: s.ensureAnonID(w, r)}
}

// genID creates a 22‑char URL‑safe, crypto‑random identifier (no padding).
func genID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ------------------------------ JWT & cookies ------------------------------

// signJWT creates an HS256 JWT with id/username and a JWT_EXPIRES_DAYS expiry.
func (s *Server) signJWT(id, username string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(time.Duration(s.cfg.JWTExpiresDays) * 24 * time.Hour)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       id,
		"username": username,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
	})
	ss, err := t.SignedString([]byte(s.cfg.JWTSecret))
	return ss, exp, err
}

// cookie builds an HttpOnly cookie; production cookies are Secure and
// SameSite=None so a separately hosted client can send them.
func (s *Server) cookie(name, value string, exp time.Time) *http.Cookie {
	secure := s.cfg.Production()
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
		Expires:  exp,
	}
}

// setAuthCookie writes the auth token cookie.
func (s *Server) setAuthCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, s.cookie(s.cfg.CookieName, token, exp))
}

// clearAuthCookie deletes the auth token cookie.
func (s *Server) clearAuthCookie(w http.ResponseWriter) {
	c := s.cookie(s.cfg.CookieName, "", time.Time{})
	c.MaxAge = -1
	http.SetCookie(w, c)
}

// bearerOrCookie extracts a bearer token from Authorization header or auth cookie.
func (s *Server) bearerOrCookie(r *http.Request) string {
	// Authorization: Bearer <token>
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(s.cfg.CookieName); err == nil {
		return c.Value
	}
	return ""
}
