package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/me-zabiullakhan/smsports/auctionhouse/session"
)

func testServer(t *testing.T) (*Server, *session.Store) {
	t.Helper()
	sessions, err := session.NewStore(16, time.Hour)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	srv := New(Config{
		Addr:       "127.0.0.1:0",
		AdminToken: "hammer-time",
		Version:    "test",
	}, Deps{Sessions: sessions})
	return srv, sessions
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.app.Test(req)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, path, err)
	}
	return resp
}

func decodeToken(t *testing.T, resp *http.Response) string {
	t.Helper()
	var out struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Data.Token == "" {
		t.Fatal("expected a session token in response")
	}
	return out.Data.Token
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	resp := doJSON(t, srv, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health = %d, want 200", resp.StatusCode)
	}
}

func TestViewerLogin(t *testing.T) {
	srv, sessions := testServer(t)

	resp := doJSON(t, srv, http.MethodPost, "/api/sessions/viewer", "", map[string]any{"identity": "wall-screen"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("viewer login = %d, want 200", resp.StatusCode)
	}
	token := decodeToken(t, resp)

	sess, err := sessions.Get(token)
	if err != nil {
		t.Fatalf("issued token not resolvable: %v", err)
	}
	if sess.Role != session.RoleViewer {
		t.Errorf("role = %s, want viewer", sess.Role)
	}
}

func TestAdminLogin(t *testing.T) {
	srv, sessions := testServer(t)

	resp := doJSON(t, srv, http.MethodPost, "/api/sessions/login", "", map[string]any{"accessCode": "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong code = %d, want 401", resp.StatusCode)
	}

	resp = doJSON(t, srv, http.MethodPost, "/api/sessions/login", "", map[string]any{"accessCode": "hammer-time"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("right code = %d, want 200", resp.StatusCode)
	}
	token := decodeToken(t, resp)

	sess, err := sessions.Get(token)
	if err != nil {
		t.Fatalf("issued token not resolvable: %v", err)
	}
	if !sess.CanManage() {
		t.Errorf("admin session cannot manage: %+v", sess)
	}
}

func TestTeamSessionRequiresAdmin(t *testing.T) {
	srv, sessions := testServer(t)

	viewer := sessions.Issue("viewer", session.RoleViewer, 0)
	resp := doJSON(t, srv, http.MethodPost, "/api/sessions/team", viewer.Token, map[string]any{"teamId": 1})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("viewer issuing team session = %d, want 403", resp.StatusCode)
	}

	admin := sessions.Issue("auctioneer", session.RoleAdmin, 0)
	resp = doJSON(t, srv, http.MethodPost, "/api/sessions/team", admin.Token, map[string]any{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing teamId = %d, want 400", resp.StatusCode)
	}
}

func TestBidRequiresSession(t *testing.T) {
	srv, _ := testServer(t)

	resp := doJSON(t, srv, http.MethodPost, "/api/bids", "", map[string]any{"teamId": 1, "amount": 1000})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous bid = %d, want 401", resp.StatusCode)
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	srv, _ := testServer(t)

	resp := doJSON(t, srv, http.MethodGet, "/api/auction", "not-a-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bogus token = %d, want 401", resp.StatusCode)
	}
}

func TestLogout(t *testing.T) {
	srv, sessions := testServer(t)

	sess := sessions.Issue("viewer", session.RoleViewer, 0)
	resp := doJSON(t, srv, http.MethodDelete, "/api/sessions", sess.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout = %d, want 200", resp.StatusCode)
	}

	if _, err := sessions.Get(sess.Token); err == nil {
		t.Fatal("expected token cleared after logout")
	}
}
