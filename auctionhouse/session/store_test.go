package session

import (
	"errors"
	"testing"
	"time"
)

func TestStoreIssueAndGet(t *testing.T) {
	st, err := NewStore(16, time.Hour)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	issued := st.Issue("strikers", RoleTeamOwner, 3)
	if issued.Token == "" {
		t.Fatal("expected non-empty token")
	}

	got, err := st.Get(issued.Token)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Identity != "strikers" || got.Role != RoleTeamOwner || got.TeamID != 3 {
		t.Errorf("unexpected session %+v", got)
	}
}

func TestStoreUnknownToken(t *testing.T) {
	st, _ := NewStore(16, time.Hour)

	if _, err := st.Get("nonsense"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestStoreTTLExpiry(t *testing.T) {
	st, _ := NewStore(16, 10*time.Millisecond)

	sess := st.Issue("viewer", RoleViewer, 0)
	time.Sleep(20 * time.Millisecond)

	if _, err := st.Get(sess.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected expired token to be invalid, got %v", err)
	}
}

func TestStoreClear(t *testing.T) {
	st, _ := NewStore(16, time.Hour)

	sess := st.Issue("admin", RoleAdmin, 0)
	st.Clear(sess.Token)

	if _, err := st.Get(sess.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected cleared token to be invalid, got %v", err)
	}

	// Clearing twice is a no-op.
	st.Clear(sess.Token)
}

func TestStoreEvictsOldestWhenFull(t *testing.T) {
	st, _ := NewStore(2, time.Hour)

	first := st.Issue("a", RoleViewer, 0)
	st.Issue("b", RoleViewer, 0)
	st.Issue("c", RoleViewer, 0)

	if _, err := st.Get(first.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected oldest session evicted, got %v", err)
	}
}

func TestSessionPermissions(t *testing.T) {
	tests := []struct {
		name       string
		sess       *Session
		canManage  bool
		bidTeam    int64
		canBidTeam bool
	}{
		{
			name:       "nil session",
			sess:       nil,
			canManage:  false,
			bidTeam:    1,
			canBidTeam: false,
		},
		{
			name:       "viewer",
			sess:       &Session{Role: RoleViewer},
			canManage:  false,
			bidTeam:    1,
			canBidTeam: false,
		},
		{
			name:       "team owner for own team",
			sess:       &Session{Role: RoleTeamOwner, TeamID: 3},
			canManage:  false,
			bidTeam:    3,
			canBidTeam: true,
		},
		{
			name:       "team owner for another team",
			sess:       &Session{Role: RoleTeamOwner, TeamID: 3},
			canManage:  false,
			bidTeam:    4,
			canBidTeam: false,
		},
		{
			name:       "admin proxies any team",
			sess:       &Session{Role: RoleAdmin},
			canManage:  true,
			bidTeam:    7,
			canBidTeam: true,
		},
		{
			name:       "super admin",
			sess:       &Session{Role: RoleSuperAdmin},
			canManage:  true,
			bidTeam:    7,
			canBidTeam: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sess.CanManage(); got != tt.canManage {
				t.Errorf("CanManage() = %v, want %v", got, tt.canManage)
			}
			if got := tt.sess.CanBidFor(tt.bidTeam); got != tt.canBidTeam {
				t.Errorf("CanBidFor(%d) = %v, want %v", tt.bidTeam, got, tt.canBidTeam)
			}
		})
	}
}
