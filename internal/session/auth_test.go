package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStubLoginSynthesizesUser(t *testing.T) {
	user, err := StubAuthenticator{}.Login(context.Background(), "jane.doe@acme.io", "secret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if user.ID != "1" || user.Email != "jane.doe@acme.io" || user.Name != "jane.doe" {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.Avatar == nil || *user.Avatar != "https://api.dicebear.com/6.x/initials/svg?seed=jane.doe%40acme.io" {
		t.Fatalf("unexpected avatar %v", user.Avatar)
	}
}

func TestStubRejectsMalformedInput(t *testing.T) {
	ctx := context.Background()
	auth := StubAuthenticator{}
	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"blank email", "   ", "x"},
		{"missing at", "jane.acme.io", "x"},
		{"missing local part", "@acme.io", "x"},
		{"empty password", "jane@acme.io", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := auth.Login(ctx, tc.email, tc.password); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
	if _, err := auth.Register(ctx, "jane@acme.io", "x", " "); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for blank name, got %v", err)
	}
}

func TestStubGoogleIdentity(t *testing.T) {
	user, err := StubAuthenticator{}.LoginWithGoogle(context.Background())
	if err != nil {
		t.Fatalf("LoginWithGoogle failed: %v", err)
	}
	if user.Email != "demo@linkbird.ai" || user.Name != "Demo User" {
		t.Fatalf("unexpected user %+v", user)
	}
}

func TestStubRegisterUsesName(t *testing.T) {
	user, err := StubAuthenticator{}.Register(context.Background(), "jane@acme.io", "x", "Jane Doe")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.Name != "Jane Doe" {
		t.Fatalf("expected supplied name, got %q", user.Name)
	}
	if *user.Avatar != avatarBase+"Jane+Doe" {
		t.Fatalf("unexpected avatar %s", *user.Avatar)
	}
}

func TestStubDelayHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := StubAuthenticator{Delay: time.Hour}.Login(ctx, "jane@acme.io", "x")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
