// Package auth is the authentication gate: it hands out signed session tokens
// to anonymous users and to users presenting a custom token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"quizbowl-practice/internal/clock"
)

var (
	// ErrCustomTokenRejected is returned when a custom token fails verification.
	ErrCustomTokenRejected = errors.New("custom token sign-in failed")
	// ErrInvalidSession is returned for missing, expired, revoked or forged session tokens.
	ErrInvalidSession = errors.New("invalid or expired session")
	// ErrNotConfigured is returned when the gate has no signing secret.
	ErrNotConfigured = errors.New("auth gate not configured")
)

const defaultSessionTTL = 24 * time.Hour

// Session is an authenticated user.
type Session struct {
	UserID    string    `json:"userId"`
	Anonymous bool      `json:"anonymous"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`

	id string
}

// Change is delivered to state listeners; Session is nil on sign-out.
type Change struct {
	UserID  string
	Session *Session
}

type sessionClaims struct {
	Anonymous bool `json:"anon"`
	jwt.RegisteredClaims
}

type customClaims struct {
	UID string `json:"uid"`
	jwt.RegisteredClaims
}

// Config configures the gate.
type Config struct {
	SessionSecret     string
	CustomTokenSecret string
	Issuer            string
	SessionTTL        time.Duration
}

// Gate signs and verifies sessions and notifies listeners about sign-in/out.
type Gate struct {
	cfg   Config
	clock clock.Clock
	newID func() string

	mu        sync.RWMutex
	seq       int
	listeners map[int]func(Change)
	// signed-out token ids until their natural expiry
	revoked map[string]time.Time
}

func NewGate(cfg Config, clk clock.Clock) *Gate {
	if clk == nil {
		clk = clock.Real()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "quizbowl-practice"
	}
	return &Gate{
		cfg:       cfg,
		clock:     clk,
		newID:     uuid.NewString,
		listeners: make(map[int]func(Change)),
		revoked:   make(map[string]time.Time),
	}
}

// SignInAnonymously creates a fresh anonymous user.
func (g *Gate) SignInAnonymously(_ context.Context) (Session, error) {
	session, err := g.issue(g.newID(), true)
	if err != nil {
		return Session{}, fmt.Errorf("anonymous sign-in failed: %w", err)
	}
	g.notify(Change{UserID: session.UserID, Session: &session})
	return session, nil
}

// SignInWithCustomToken exchanges a custom token carrying a uid claim for a session.
func (g *Gate) SignInWithCustomToken(_ context.Context, token string) (Session, error) {
	if g.cfg.CustomTokenSecret == "" {
		return Session{}, fmt.Errorf("%w: %w", ErrCustomTokenRejected, ErrNotConfigured)
	}
	claims := &customClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(g.cfg.CustomTokenSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(g.clock.Now))
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrCustomTokenRejected, err)
	}
	if claims.UID == "" {
		return Session{}, fmt.Errorf("%w: missing uid claim", ErrCustomTokenRejected)
	}

	session, err := g.issue(claims.UID, false)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrCustomTokenRejected, err)
	}
	g.notify(Change{UserID: session.UserID, Session: &session})
	return session, nil
}

// Verify validates a session token.
func (g *Gate) Verify(token string) (Session, error) {
	if token == "" {
		return Session{}, ErrInvalidSession
	}
	if g.cfg.SessionSecret == "" {
		return Session{}, ErrNotConfigured
	}
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(g.cfg.SessionSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(g.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.clock.Now))
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if claims.Subject == "" {
		return Session{}, ErrInvalidSession
	}
	g.mu.RLock()
	_, revoked := g.revoked[claims.ID]
	g.mu.RUnlock()
	if revoked {
		return Session{}, fmt.Errorf("%w: signed out", ErrInvalidSession)
	}
	return Session{
		UserID:    claims.Subject,
		Anonymous: claims.Anonymous,
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		id:        claims.ID,
	}, nil
}

// SignOut verifies token, revokes it and tells listeners the user left.
func (g *Gate) SignOut(_ context.Context, token string) error {
	session, err := g.Verify(token)
	if err != nil {
		return err
	}
	now := g.clock.Now()
	g.mu.Lock()
	for id, expires := range g.revoked {
		if !expires.After(now) {
			delete(g.revoked, id)
		}
	}
	if session.id != "" {
		g.revoked[session.id] = session.ExpiresAt
	}
	g.mu.Unlock()
	g.notify(Change{UserID: session.UserID})
	return nil
}

// OnAuthStateChanged registers fn for sign-in/sign-out changes. Call the
// returned function to unsubscribe.
func (g *Gate) OnAuthStateChanged(fn func(Change)) func() {
	g.mu.Lock()
	g.seq++
	id := g.seq
	g.listeners[id] = fn
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		delete(g.listeners, id)
		g.mu.Unlock()
	}
}

func (g *Gate) issue(userID string, anonymous bool) (Session, error) {
	if g.cfg.SessionSecret == "" {
		return Session{}, ErrNotConfigured
	}
	now := g.clock.Now()
	expires := now.Add(g.cfg.SessionTTL)
	claims := sessionClaims{
		Anonymous: anonymous,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    g.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(g.cfg.SessionSecret))
	if err != nil {
		return Session{}, err
	}
	return Session{UserID: userID, Anonymous: anonymous, Token: signed, ExpiresAt: expires, id: claims.ID}, nil
}

func (g *Gate) notify(change Change) {
	g.mu.RLock()
	fns := make([]func(Change), 0, len(g.listeners))
	for _, fn := range g.listeners {
		fns = append(fns, fn)
	}
	g.mu.RUnlock()
	for _, fn := range fns {
		fn(change)
	}
}
