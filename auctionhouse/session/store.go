package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
)

type Role string

const (
	RoleViewer     Role = "viewer"
	RoleTeamOwner  Role = "team_owner"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

var ErrInvalidToken = errors.New("invalid or expired session token")

// Session identifies a caller for the duration of a login. TeamID is set
// only for team owners.
type Session struct {
	Token    string    `json:"token"`
	Identity string    `json:"identity"`
	Role     Role      `json:"role"`
	TeamID   int64     `json:"teamId,omitempty"`
	IssuedAt time.Time `json:"issuedAt"`
}

// CanManage reports whether the session may invoke lifecycle and
// correction commands.
func (s *Session) CanManage() bool {
	return s != nil && (s.Role == RoleAdmin || s.Role == RoleSuperAdmin)
}

// CanBidFor reports whether the session may place bids for the given team.
// Admins may bid on behalf of any team (proxy bids called in by owners).
func (s *Session) CanBidFor(teamID int64) bool {
	if s == nil {
		return false
	}
	if s.CanManage() {
		return true
	}
	return s.Role == RoleTeamOwner && s.TeamID == teamID
}

// Store issues and resolves session tokens. Sessions live in a bounded LRU
// so an abandoned auction night cannot leak memory; eviction simply forces
// a re-login.
type Store struct {
	mu       sync.Mutex
	sessions *lru.Cache
	ttl      time.Duration
}

func NewStore(maxSessions int, ttl time.Duration) (*Store, error) {
	cache, err := lru.New(maxSessions)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}
	return &Store{sessions: cache, ttl: ttl}, nil
}

// Issue creates a session for a logged-in caller and returns its token.
func (st *Store) Issue(identity string, role Role, teamID int64) *Session {
	sess := &Session{
		Token:    uuid.NewString(),
		Identity: identity,
		Role:     role,
		TeamID:   teamID,
		IssuedAt: time.Now(),
	}

	st.mu.Lock()
	st.sessions.Add(sess.Token, sess)
	st.mu.Unlock()

	slog.Info("Session issued",
		slog.String("identity", identity),
		slog.String("role", string(role)))
	return sess
}

// Get resolves a token to its session, enforcing the TTL.
func (st *Store) Get(token string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	v, ok := st.sessions.Get(token)
	if !ok {
		return nil, ErrInvalidToken
	}
	sess := v.(*Session)
	if st.ttl > 0 && time.Since(sess.IssuedAt) > st.ttl {
		st.sessions.Remove(token)
		return nil, ErrInvalidToken
	}
	return sess, nil
}

// Clear drops a session on logout. Clearing an unknown token is a no-op.
func (st *Store) Clear(token string) {
	st.mu.Lock()
	st.sessions.Remove(token)
	st.mu.Unlock()
}
