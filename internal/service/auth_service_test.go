package service

import (
	"errors"
	"testing"

	"wapair/internal/helper"
)

func TestAccessTokenRoundtrip(t *testing.T) {
	InitAuthConfig("test-secret")

	token, err := GenerateAccessToken("admin")
	if err != nil {
		t.Fatalf("GenerateAccessToken returned error: %v", err)
	}

	claims, err := ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken returned error: %v", err)
	}
	if claims.Username != "admin" || claims.Role != "admin" {
		t.Fatalf("claims = %+v", claims)
	}

	if _, err := ValidateAccessToken(token + "x"); err == nil {
		t.Fatal("tampered token validated")
	}
}

func TestAuthConfigured(t *testing.T) {
	InitAuthConfig("")
	if AuthConfigured() {
		t.Fatal("AuthConfigured true with empty secret")
	}
	InitAuthConfig("s")
	if !AuthConfigured() {
		t.Fatal("AuthConfigured false with a secret set")
	}
}

func TestAuthenticateAdmin(t *testing.T) {
	hash, err := helper.HashPassword("hunter2")
	if err != nil {
		t.Fatal(err)
	}

	if err := AuthenticateAdmin("admin", "hunter2", "admin", hash); err != nil {
		t.Fatalf("valid credentials rejected: %v", err)
	}
	if err := AuthenticateAdmin("admin", "wrong", "admin", hash); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: err = %v", err)
	}
	if err := AuthenticateAdmin("other", "hunter2", "admin", hash); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong username: err = %v", err)
	}
	if err := AuthenticateAdmin("admin", "hunter2", "admin", ""); err == nil {
		t.Fatal("missing hash accepted")
	}
}
