// Package session identifies anonymous shoppers with a signed cookie so each
// of them gets their own cart.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/spice_shop/internal/logging"
)

const (
	CookieName = "cartSession"
	ContextKey = "cart_session"
)

var ErrInvalidSession = errors.New("invalid session")

type Claims struct {
	jwt.RegisteredClaims
}

type Manager struct {
	Secret []byte
	TTL    time.Duration
	Secure bool
	Now    func() time.Time
}

func NewManager(secret []byte, ttl time.Duration, secure bool) *Manager {
	return &Manager{Secret: secret, TTL: ttl, Secure: secure, Now: time.Now}
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Issue signs a session token for id, minting a fresh id when empty.
func (m *Manager) Issue(id string) (string, string, time.Time, error) {
	if id == "" {
		id = uuid.NewString()
	}
	now := m.now()
	exp := now.Add(m.TTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.Secret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return id, token, exp, nil
}

func (m *Manager) Parse(token string) (*Claims, error) {
	var claims Claims
	tkn, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return m.Secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !tkn.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidSession)
	}
	return &claims, nil
}

// Require resolves the shopper's session id into the echo context, issuing a
// new session when the cookie is missing, invalid or past half its life.
func (m *Manager) Require(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		l := logging.FromContext(c.Request().Context())

		var id string
		renew := true
		if ck, err := c.Cookie(CookieName); err == nil && ck.Value != "" {
			claims, err := m.Parse(ck.Value)
			if err != nil {
				l.Warn("session_rejected", "error", err)
			} else {
				id = claims.Subject
				renew = claims.ExpiresAt.Time.Sub(m.now()) < m.TTL/2
			}
		}

		if renew {
			newID, token, exp, err := m.Issue(id)
			if err != nil {
				l.Error("session_issue_failed", "status", 500, "error", err)
				return echo.NewHTTPError(http.StatusInternalServerError, "cannot start session")
			}
			id = newID
			c.SetCookie(m.cookie(token, exp))
		}

		c.Set(ContextKey, id)
		return next(c)
	}
}

func (m *Manager) cookie(value string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ID returns the session resolved by Require.
func ID(c echo.Context) (string, error) {
	id, ok := c.Get(ContextKey).(string)
	if !ok || id == "" {
		return "", ErrInvalidSession
	}
	return id, nil
}
