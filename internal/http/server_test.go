package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Hamish-Leahy/NEIS/internal/checklist"
	"github.com/Hamish-Leahy/NEIS/internal/config"
	"github.com/Hamish-Leahy/NEIS/internal/identity"
	"github.com/Hamish-Leahy/NEIS/internal/live"
	"github.com/Hamish-Leahy/NEIS/internal/session"
)

type testEnv struct {
	app      *httptest.Server
	kv       *session.MemoryKV
	sessions *session.Store
	cfg      config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Config{
		JWTSecret:        "test-secret",
		JWTIssuer:        "test-issuer",
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  time.Hour,
		SessionKeyPrefix: "neis-user",
		SpeechLanguage:   "en-AU",
	}
	kv := session.NewMemoryKV()
	sessions := session.NewStore(kv, cfg.SessionKeyPrefix, cfg.RefreshTokenTTL)
	manager := live.NewManager(live.Config{
		ConnectDelay:     20 * time.Millisecond,
		ParticipantDelay: 30 * time.Millisecond,
		ReplyDelay:       20 * time.Millisecond,
		Tick:             10 * time.Millisecond,
	})
	server := NewServer(cfg, zap.NewNop(), identity.NewDemoVerifier(), sessions, manager, nil)
	app := httptest.NewServer(server.Router())
	t.Cleanup(app.Close)
	return &testEnv{app: app, kv: kv, sessions: sessions, cfg: cfg}
}

func doReq(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func loginDemoUser(t *testing.T, env *testEnv) authResponse {
	t.Helper()
	resp := doReq(t, http.MethodPost, env.app.URL+"/auth/login", "", map[string]string{
		"email":    "user@demo.com",
		"password": "demo123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login expected 200, got %d", resp.StatusCode)
	}
	var auth authResponse
	decodeBody(t, resp, &auth)
	return auth
}

func TestLoginDemoUser(t *testing.T) {
	env := newTestEnv(t)

	auth := loginDemoUser(t, env)
	if auth.User.Role != "user" || auth.User.Dashboard != "/user-dashboard" {
		t.Fatalf("unexpected user %+v", auth.User)
	}
	if auth.AccessToken == "" || auth.RefreshToken == "" {
		t.Fatalf("expected tokens in response")
	}

	resp := doReq(t, http.MethodGet, env.app.URL+"/auth/me", auth.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me expected 200, got %d", resp.StatusCode)
	}
	var me userSummary
	decodeBody(t, resp, &me)
	if me.Name != "Sarah Johnson" {
		t.Fatalf("unexpected identity %+v", me)
	}
}

func TestLoginInvalidCredentialsLeavesStoreUnchanged(t *testing.T) {
	env := newTestEnv(t)

	resp := doReq(t, http.MethodPost, env.app.URL+"/auth/login", "", map[string]string{
		"email":    "user@demo.com",
		"password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["error"] != "invalid_credentials" {
		t.Fatalf("unexpected error code %q", body["error"])
	}

	// The demo user id is "1"; a failed login must not create a session.
	if _, err := env.sessions.Current(context.Background(), "1"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected no session after failed login, got %v", err)
	}

	resp = doReq(t, http.MethodPost, env.app.URL+"/auth/login", "", map[string]string{
		"email": "user@demo.com",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing password, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func registerBody(overrides map[string]interface{}) map[string]interface{} {
	body := map[string]interface{}{
		"email":           "new@example.com",
		"password":        "secret1",
		"confirmPassword": "secret1",
		"name":            "New User",
		"consents": map[string]bool{
			"service": true,
		},
	}
	for key, value := range overrides {
		body[key] = value
	}
	return body
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name     string
		body     map[string]interface{}
		wantCode string
	}{
		{
			name:     "short password",
			body:     registerBody(map[string]interface{}{"password": "abc", "confirmPassword": "abc"}),
			wantCode: "password_too_short",
		},
		{
			name:     "mismatched confirmation",
			body:     registerBody(map[string]interface{}{"confirmPassword": "different"}),
			wantCode: "passwords_do_not_match",
		},
		{
			name:     "missing service consent",
			body:     registerBody(map[string]interface{}{"consents": map[string]bool{"survey": true}}),
			wantCode: "service_consent_required",
		},
		{
			name:     "missing name",
			body:     registerBody(map[string]interface{}{"name": ""}),
			wantCode: "missing_fields",
		},
		{
			name:     "invalid role",
			body:     registerBody(map[string]interface{}{"role": "superuser"}),
			wantCode: "invalid_role",
		},
	}

	for _, tc := range cases {
		resp := doReq(t, http.MethodPost, env.app.URL+"/auth/register", "", tc.body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, resp.StatusCode)
		}
		var body map[string]string
		decodeBody(t, resp, &body)
		if body["error"] != tc.wantCode {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.wantCode, body["error"])
		}
	}
}

func TestRegisterSuccess(t *testing.T) {
	env := newTestEnv(t)

	resp := doReq(t, http.MethodPost, env.app.URL+"/auth/register", "", registerBody(nil))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var auth authResponse
	decodeBody(t, resp, &auth)
	if auth.User.Email != "new@example.com" || auth.User.Role != "user" {
		t.Fatalf("unexpected user %+v", auth.User)
	}

	// Registration signs the new identity in immediately.
	resp = doReq(t, http.MethodGet, env.app.URL+"/auth/me", auth.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLogoutClearsPersistedSession(t *testing.T) {
	env := newTestEnv(t)
	auth := loginDemoUser(t, env)

	resp := doReq(t, http.MethodPost, env.app.URL+"/auth/logout", auth.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["redirect"] != "/" {
		t.Fatalf("expected redirect to public home, got %q", body["redirect"])
	}

	// The access token is still a valid JWT but the session is gone.
	resp = doReq(t, http.MethodGet, env.app.URL+"/auth/me", auth.AccessToken, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// A fresh store over the same backend simulates a process restart.
	restarted := session.NewStore(env.kv, env.cfg.SessionKeyPrefix, env.cfg.RefreshTokenTTL)
	if _, err := restarted.Current(context.Background(), "1"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected cleared session after restart, got %v", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	env := newTestEnv(t)
	auth := loginDemoUser(t, env)

	resp := doReq(t, http.MethodPost, env.app.URL+"/auth/refresh", "", map[string]string{
		"refreshToken": auth.RefreshToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh expected 200, got %d", resp.StatusCode)
	}
	var rotated authResponse
	decodeBody(t, resp, &rotated)
	if rotated.RefreshToken == auth.RefreshToken {
		t.Fatalf("expected rotated refresh token")
	}

	resp = doReq(t, http.MethodPost, env.app.URL+"/auth/refresh", "", map[string]string{
		"refreshToken": auth.RefreshToken,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected old token rejected, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func completeRequiredChecklist(t *testing.T, env *testEnv, token string) {
	t.Helper()
	resp := doReq(t, http.MethodGet, env.app.URL+"/checklist", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("checklist expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Items []checklist.Item `json:"items"`
	}
	decodeBody(t, resp, &body)
	for _, item := range body.Items {
		if !item.Required {
			continue
		}
		resp := doReq(t, http.MethodPost, env.app.URL+"/checklist/"+item.ID+"/toggle", token, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("toggle %s expected 200, got %d", item.ID, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestChecklistGatesSessionStart(t *testing.T) {
	env := newTestEnv(t)
	auth := loginDemoUser(t, env)

	resp := doReq(t, http.MethodPost, env.app.URL+"/session/start", auth.AccessToken, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 before checklist complete, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["error"] != "checklist_incomplete" {
		t.Fatalf("unexpected error code %q", body["error"])
	}

	completeRequiredChecklist(t, env, auth.AccessToken)

	resp = doReq(t, http.MethodGet, env.app.URL+"/checklist/stats", auth.AccessToken, nil)
	var stats struct {
		Stats      checklist.Stats `json:"stats"`
		CanProceed bool            `json:"canProceed"`
	}
	decodeBody(t, resp, &stats)
	if !stats.CanProceed || stats.Stats.RequiredPercentage != 100 {
		t.Fatalf("expected gate open, got %+v", stats)
	}

	resp = doReq(t, http.MethodPost, env.app.URL+"/session/start", auth.AccessToken, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 once checklist complete, got %d", resp.StatusCode)
	}
	var state live.Snapshot
	decodeBody(t, resp, &state)
	if state.Phase != live.PhaseConnecting {
		t.Fatalf("expected connecting state, got %s", state.Phase)
	}

	resp = doReq(t, http.MethodPost, env.app.URL+"/session/start", auth.AccessToken, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for second session, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSessionFlow(t *testing.T) {
	env := newTestEnv(t)
	auth := loginDemoUser(t, env)
	completeRequiredChecklist(t, env, auth.AccessToken)

	resp := doReq(t, http.MethodPost, env.app.URL+"/session/start", auth.AccessToken, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Wait for the simulated handshake to connect.
	deadline := time.Now().Add(5 * time.Second)
	var state live.Snapshot
	for time.Now().Before(deadline) {
		resp := doReq(t, http.MethodGet, env.app.URL+"/session", auth.AccessToken, nil)
		decodeBody(t, resp, &state)
		if state.Phase == live.PhaseConnected {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if state.Phase != live.PhaseConnected {
		t.Fatalf("session never connected, state %+v", state)
	}

	// Whitespace-only chat input is a no-op.
	resp = doReq(t, http.MethodPost, env.app.URL+"/session/chat", auth.AccessToken, map[string]string{"message": "   "})
	var chat struct {
		Sent bool `json:"sent"`
	}
	decodeBody(t, resp, &chat)
	if chat.Sent {
		t.Fatalf("expected whitespace message to be dropped")
	}

	resp = doReq(t, http.MethodPost, env.app.URL+"/session/chat", auth.AccessToken, map[string]string{"message": "hello"})
	decodeBody(t, resp, &chat)
	if !chat.Sent {
		t.Fatalf("expected message to be sent")
	}

	resp = doReq(t, http.MethodPost, env.app.URL+"/session/end", auth.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("end expected 200, got %d", resp.StatusCode)
	}
	var ended struct {
		DurationSeconds int    `json:"durationSeconds"`
		Duration        string `json:"duration"`
	}
	decodeBody(t, resp, &ended)
	if ended.Duration != live.FormatDuration(ended.DurationSeconds) {
		t.Fatalf("inconsistent duration %+v", ended)
	}

	resp = doReq(t, http.MethodPost, env.app.URL+"/session/end", auth.AccessToken, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for double end, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doReq(t, http.MethodDelete, env.app.URL+"/session", auth.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("teardown expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doReq(t, http.MethodGet, env.app.URL+"/session", auth.AccessToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after teardown, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSpeechUnsupported(t *testing.T) {
	env := newTestEnv(t)

	resp := doReq(t, http.MethodPost, env.app.URL+"/speech/transcribe", "", nil)
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["error"] != "speech_unsupported" {
		t.Fatalf("unexpected error code %q", body["error"])
	}
}

func TestProtectedEndpointsRequireToken(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{"/auth/me", "/checklist", "/session", "/dashboard"} {
		resp := doReq(t, http.MethodGet, env.app.URL+target, "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", target, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestDashboardRoutePerRole(t *testing.T) {
	env := newTestEnv(t)

	cases := map[string]string{
		"user@demo.com":         "/user-dashboard",
		"practitioner@demo.com": "/practitioner-dashboard",
		"supervisor@demo.com":   "/supervisor-dashboard",
		"admin@demo.com":        "/admin-dashboard",
	}
	for email, route := range cases {
		resp := doReq(t, http.MethodPost, env.app.URL+"/auth/login", "", map[string]string{
			"email":    email,
			"password": "demo123",
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("login %s expected 200, got %d", email, resp.StatusCode)
		}
		var auth authResponse
		decodeBody(t, resp, &auth)

		resp = doReq(t, http.MethodGet, env.app.URL+"/dashboard", auth.AccessToken, nil)
		var dash map[string]string
		decodeBody(t, resp, &dash)
		if dash["route"] != route {
			t.Fatalf("%s: expected route %s, got %s", email, route, dash["route"])
		}
	}
}
