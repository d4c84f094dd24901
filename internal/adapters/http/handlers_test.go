package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mobilauth/activation-service/internal/domain"
)

func TestDecodeBody(t *testing.T) {
	t.Parallel()

	type payload struct {
		UserID string `json:"user_id"`
	}

	var dst payload
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"user_id":"u1"}`))
	if err := decodeBody(r, &dst); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dst.UserID != "u1" {
		t.Fatalf("decoded %+v", dst)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"user_id":"u1","extra":1}`))
	if err := decodeBody(r, &payload{}); err == nil {
		t.Fatalf("unknown field accepted")
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"user_id":"u1"}{"user_id":"u2"}`))
	if err := decodeBody(r, &payload{}); err == nil {
		t.Fatalf("trailing JSON value accepted")
	}
}

func TestMapDomainError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid request", domain.Errf(domain.ErrInvalidRequest, "missing user id"), http.StatusBadRequest, "INVALID_REQUEST"},
		{"expired", domain.Errf(domain.ErrActivationExpired, "activation with given code not found"), http.StatusBadRequest, "ACTIVATION_EXPIRED"},
		{"bad signature", domain.Errf(domain.ErrInvalidSignature, "signature mismatch"), http.StatusUnauthorized, "INVALID_SIGNATURE"},
		{"unauthorized", domain.Errf(domain.ErrUnauthorized, "token invalid"), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"not found", domain.Errf(domain.ErrActivationNotFound, "activation not found"), http.StatusNotFound, "ACTIVATION_NOT_FOUND"},
		{"state conflict", domain.Errf(domain.ErrActivationIncorrectState, "activation is BLOCKED"), http.StatusConflict, "ACTIVATION_INCORRECT_STATE"},
		{"foreign error", errors.New("driver: connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		status, code, msg := mapDomainError(tc.err)
		if status != tc.status || code != tc.code {
			t.Errorf("%s: got %d/%s, want %d/%s", tc.name, status, code, tc.status, tc.code)
		}
		if status == http.StatusInternalServerError && strings.Contains(msg, "driver") {
			t.Errorf("%s: internal detail leaked into response message %q", tc.name, msg)
		}
	}
}

func TestBearerTokenFromHeader(t *testing.T) {
	t.Parallel()

	token, err := bearerTokenFromHeader("Bearer abc.def.ghi")
	if err != nil || token != "abc.def.ghi" {
		t.Fatalf("got %q, %v", token, err)
	}
	if _, err := bearerTokenFromHeader("Basic abc"); err == nil {
		t.Fatalf("non-bearer scheme accepted")
	}
	if _, err := bearerTokenFromHeader("Bearer "); err == nil {
		t.Fatalf("empty token accepted")
	}
	if _, err := bearerTokenFromHeader(""); err == nil {
		t.Fatalf("missing header accepted")
	}
}
