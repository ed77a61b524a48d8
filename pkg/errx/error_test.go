package errx_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Abraxas-365/identity/pkg/errx"
)

var testRegistry = errx.NewRegistry("TEST")

var (
	codeDenied = testRegistry.RegisterOAuth("DENIED", "invalid_grant", errx.TypeAuthorization, http.StatusUnauthorized, "Denied")
	codeBroken = testRegistry.Register("BROKEN", errx.TypeInternal, http.StatusInternalServerError, "Broken")
)

func TestRegistry_PrefixesCode(t *testing.T) {
	err := testRegistry.New(codeDenied)
	if err.Code != "TEST_DENIED" {
		t.Fatalf("expected TEST_DENIED, got %s", err.Code)
	}
	if err.OAuthCode != "invalid_grant" {
		t.Fatalf("expected oauth code to be carried, got %q", err.OAuthCode)
	}
}

func TestError_IsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", testRegistry.New(codeDenied))

	if !errors.Is(wrapped, testRegistry.New(codeDenied)) {
		t.Fatal("expected errors.Is to match on code")
	}
	if errors.Is(wrapped, testRegistry.New(codeBroken)) {
		t.Fatal("expected different codes not to match")
	}
}

func TestError_CauseNotRendered(t *testing.T) {
	err := testRegistry.NewWithCause(codeBroken, errors.New("dial tcp: refused"))

	body := err.ToOAuthResponse()
	if body.Error != "server_error" {
		t.Fatalf("expected server_error fallback, got %s", body.Error)
	}
	if body.ErrorDescription != "Broken" {
		t.Fatalf("expected registered message only, got %q", body.ErrorDescription)
	}
	if !errors.Is(err, err.Err) {
		t.Fatal("expected cause to stay in the chain")
	}
}

func TestWrap_PreservesRegisteredCode(t *testing.T) {
	base := testRegistry.New(codeDenied)
	w := errx.Wrap(base, "outer", errx.TypeAuthorization)

	if w.Code != base.Code || w.HTTPStatus != http.StatusUnauthorized {
		t.Fatalf("unexpected wrap result: %+v", w)
	}
	if errx.Wrap(nil, "x", errx.TypeInternal) != nil {
		t.Fatal("wrapping nil should return nil")
	}
}
