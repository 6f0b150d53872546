// Package session tracks per-page Guest/Admin sessions.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultIdleTimeout is how long an untouched session survives.
	DefaultIdleTimeout = 12 * time.Hour

	// BcryptCost is the cost factor for bcrypt password hashing.
	BcryptCost = 12
)

var (
	// ErrInvalidCredentials is returned when the admin password is wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken is returned when a session token is invalid.
	ErrInvalidToken = errors.New("invalid token")

	// ErrSessionNotFound is returned when a session is unknown or expired.
	ErrSessionNotFound = errors.New("session not found")
)

// Mode is the UI state of a session.
type Mode string

const (
	ModeGuest Mode = "guest"
	ModeAdmin Mode = "admin"
)

// Claims are the JWT claims of a session token.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Session is one page session. Every page load starts as Guest.
type Session struct {
	ID           string
	Admin        bool
	CreatedAt    time.Time
	LastActivity time.Time
}

// SessionID returns the session identifier.
func (s Session) SessionID() string { return s.ID }

// IsAdmin reports whether the session is in admin mode.
func (s Session) IsAdmin() bool { return s.Admin }

// Mode returns the UI mode of the session.
func (s Session) Mode() Mode {
	if s.Admin {
		return ModeAdmin
	}
	return ModeGuest
}

// Local returns a session that is not tracked by any manager, used by the
// command line tools.
func Local(admin bool) Session {
	now := time.Now()
	return Session{ID: "local", Admin: admin, CreatedAt: now, LastActivity: now}
}

// Options configures a Manager.
type Options struct {
	Secret       string
	PasswordHash string
	IdleTimeout  time.Duration
	Logger       zerolog.Logger
}

// Manager creates, resolves and toggles sessions. Sessions are kept in
// memory only.
type Manager struct {
	secret       []byte
	passwordHash string
	idleTimeout  time.Duration
	logger       zerolog.Logger
	now          func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager. An empty secret is replaced with a
// random one, so tokens do not survive a restart.
func NewManager(opts Options) *Manager {
	secret := opts.Secret
	if secret == "" {
		secret = uuid.NewString() + uuid.NewString()
	}
	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}

	return &Manager{
		secret:       []byte(secret),
		passwordHash: opts.PasswordHash,
		idleTimeout:  idle,
		logger:       opts.Logger.With().Str("component", "session").Logger(),
		now:          time.Now,
		sessions:     make(map[string]*Session),
	}
}

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword verifies a password against a hash.
func VerifyPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// PasswordRequired reports whether entering admin mode needs a password.
func (m *Manager) PasswordRequired() bool {
	return m.passwordHash != ""
}

// Create starts a new Guest session and returns it with its signed token.
func (m *Manager) Create() (Session, string, error) {
	now := m.now()
	s := &Session{
		ID:           uuid.NewString(),
		CreatedAt:    now,
		LastActivity: now,
	}

	token, err := m.generateToken(s.ID, now)
	if err != nil {
		return Session{}, "", err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	return *s, token, nil
}

// Resolve validates a token and returns the live session it names,
// refreshing its activity time.
func (m *Manager) Resolve(token string) (Session, error) {
	claims, err := m.validateToken(token)
	if err != nil {
		return Session{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[claims.SessionID]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	now := m.now()
	if now.Sub(s.LastActivity) > m.idleTimeout {
		delete(m.sessions, s.ID)
		return Session{}, ErrSessionNotFound
	}
	s.LastActivity = now
	return *s, nil
}

// Toggle switches a session between Guest and Admin. Leaving admin mode is
// always allowed; entering it requires the admin password when one is
// configured.
func (m *Manager) Toggle(ctx context.Context, id, password string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return Session{}, ErrSessionNotFound
	}
	admin := s.Admin
	m.mu.Unlock()

	// bcrypt is slow, keep it outside the lock
	if !admin && m.passwordHash != "" {
		if err := VerifyPassword(password, m.passwordHash); err != nil {
			m.logger.Warn().Str("session", id).Msg("Admin login rejected")
			return Session{}, ErrInvalidCredentials
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok = m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	s.Admin = !admin
	s.LastActivity = m.now()

	m.logger.Info().Str("session", id).Str("mode", string(s.Mode())).Msg("Session mode changed")
	return *s, nil
}

// Remove drops a session.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// CleanupExpired removes idle sessions and returns how many were removed.
func (m *Manager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	count := 0
	for id, s := range m.sessions {
		if now.Sub(s.LastActivity) > m.idleTimeout {
			delete(m.sessions, id)
			count++
		}
	}
	return count
}

// Counts returns the number of guest and admin sessions.
func (m *Manager) Counts() (guests, admins int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.sessions {
		if s.Admin {
			admins++
		} else {
			guests++
		}
	}
	return guests, admins
}

// StartCleanup periodically removes idle sessions until ctx is done.
func (m *Manager) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval == 0 {
		interval = 15 * time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if count := m.CleanupExpired(); count > 0 {
					m.logger.Debug().Int("count", count).Msg("Cleaned up idle sessions")
				}
			}
		}
	}()
}

func (m *Manager) generateToken(id string, now time.Time) (string, error) {
	claims := &Claims{
		SessionID: id,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (m *Manager) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
