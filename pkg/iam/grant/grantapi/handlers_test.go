package grantapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Abraxas-365/identity/pkg/errx"
	"github.com/Abraxas-365/identity/pkg/iam/auth"
	"github.com/Abraxas-365/identity/pkg/iam/directory"
	"github.com/Abraxas-365/identity/pkg/iam/grant"
	"github.com/Abraxas-365/identity/pkg/iam/grant/grantapi"
	"github.com/Abraxas-365/identity/pkg/kernel"
	"github.com/Abraxas-365/identity/pkg/kvstore/kvmemory"
	"github.com/Abraxas-365/identity/pkg/metrx"
	"github.com/gofiber/fiber/v2"
)

type users struct{}

var ada = &directory.User{ID: "1", Username: "ada", DisplayName: "Ada", IsAdmin: true, EmailConfirmed: true}

func (users) ValidateCredentials(_ context.Context, u, p string) (bool, error) {
	return u == "ada" && p == "pw", nil
}

func (users) FindByUsername(_ context.Context, u string) (*directory.User, error) {
	if u == "ada" {
		return ada, nil
	}
	return nil, directory.ErrUserNotFound()
}

func (users) FindByID(_ context.Context, id kernel.UserID) (*directory.User, error) {
	if id == ada.ID {
		return ada, nil
	}
	return nil, directory.ErrUserNotFound()
}

func (users) Exists(_ context.Context, id kernel.UserID) (bool, error) { return id == ada.ID, nil }
func (users) IsActive(_ context.Context, id kernel.UserID) (bool, error) {
	return id == ada.ID, nil
}

type noClients struct{}

func (noClients) GetPublicKey(context.Context, kernel.ClientID) (string, bool, error) {
	return "", false, nil
}
func (noClients) ValidateClientSecret(context.Context, kernel.ClientID, string) (bool, error) {
	return false, nil
}
func (noClients) GetAssignedGroupIDs(context.Context, kernel.ClientID) ([]kernel.GroupID, error) {
	return nil, nil
}
func (noClients) RecordTokenRequest(context.Context, kernel.ClientID, time.Time) error { return nil }
func (noClients) CreateClient(context.Context, directory.Client) error { return nil }
func (noClients) ClientExists(context.Context, kernel.ClientID) (bool, error) { return false, nil }

type nopAudit struct{}

func (nopAudit) LogGrantAttempt(context.Context, string, string, bool, string) {}
func (nopAudit) LogPairingTokenIssued(context.Context, kernel.ConnectionID) {}
func (nopAudit) LogClientRegistered(context.Context, kernel.ClientID, kernel.ConnectionID, string) {}

func newApp() (*fiber.App, *auth.JWTService) {
	tokens := auth.NewJWTService("secret", time.Hour, 15*time.Minute, "identity", kvmemory.New())
	dispatcher := grant.NewDispatcher(users{}, noClients{}, tokens)
	h := grantapi.NewTokenHandlers(dispatcher, tokens, users{}, nopAudit{}, metrx.New())

	app := fiber.New()
	h.RegisterRoutes(app, auth.NewAuthMiddleware(tokens))
	return app, tokens
}

func postForm(t *testing.T, app *fiber.App, form url.Values) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("POST", "/connect/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp, body
}

func TestExchange_PasswordIssuesRefreshToken(t *testing.T) {
	app, _ := newApp()

	resp, body := postForm(t, app, url.Values{
		"grant_type": {"password"},
		"username":   {"ada"},
		"password":   {"pw"},
		"scope":      {"offline_access"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", resp.StatusCode, body)
	}
	if body["access_token"] == "" || body["refresh_token"] == nil {
		t.Fatalf("expected access and refresh tokens, got %v", body)
	}
	if resp.Header.Get("Cache-Control") != "no-store" {
		t.Fatal("token responses must not be cached")
	}

	resp, body = postForm(t, app, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {body["refresh_token"].(string)},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d: %v", resp.StatusCode, body)
	}
}

func TestExchange_ErrorBodies(t *testing.T) {
	app, _ := newApp()

	cases := []struct {
		name   string
		form   url.Values
		status int
		code   string
	}{
		{"bad password", url.Values{"grant_type": {"password"}, "username": {"ada"}, "password": {"nope"}}, 401, "invalid_grant"},
		{"missing password", url.Values{"grant_type": {"password"}, "username": {"ada"}}, 400, "invalid_request"},
		{"unsupported", url.Values{"grant_type": {"authorization_code"}}, 400, "unsupported_grant_type"},
		{"no signature", url.Values{"grant_type": {"client_credentials"}, "client_id": {"c1"}}, 401, "invalid_client"},
		{"bad refresh", url.Values{"grant_type": {"refresh_token"}, "refresh_token": {"x.y.z"}}, 401, "invalid_grant"},
	}
	for _, tc := range cases {
		resp, body := postForm(t, app, tc.form)
		if resp.StatusCode != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, resp.StatusCode)
		}
		if body["error"] != tc.code {
			t.Fatalf("%s: expected error %q, got %v", tc.name, tc.code, body["error"])
		}
	}
}

func TestUserInfo_AdminOnly(t *testing.T) {
	app, tokens := newApp()

	p := &grant.Principal{Subject: "1", Role: kernel.RoleAdmin}
	issued, err := tokens.Issue(context.Background(), p, false)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest("GET", "/connect/userinfo", nil)
	req.Header.Set("Authorization", "Bearer "+issued.AccessToken)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var user directory.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil || user.Username != "ada" {
		t.Fatalf("unexpected body: %+v (%v)", user, err)
	}
}

func TestErrorsNeverExposeCause(t *testing.T) {
	e := grant.ErrServer(errx.New("pq: password authentication failed", errx.TypeInternal))
	body := e.ToOAuthResponse()
	if strings.Contains(body.ErrorDescription, "pq:") {
		t.Fatalf("cause leaked: %q", body.ErrorDescription)
	}
}
