package session

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"linkbird/api/internal/store"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const avatarBase = "https://api.dicebear.com/6.x/initials/svg?seed="

// Authenticator resolves an identity for the session store. It is the only
// place credentials are looked at.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (store.User, error)
	LoginWithGoogle(ctx context.Context) (store.User, error)
	Register(ctx context.Context, email, password, name string) (store.User, error)
}

// StubAuthenticator accepts any well-formed input after Delay and
// synthesizes the user from it. It performs no verification of any kind and
// must not be used where identity matters.
type StubAuthenticator struct {
	Delay time.Duration
}

func (a StubAuthenticator) wait(ctx context.Context) error {
	if a.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(a.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (a StubAuthenticator) Login(ctx context.Context, email, password string) (store.User, error) {
	email = strings.TrimSpace(email)
	if !wellFormedEmail(email) || password == "" {
		return store.User{}, ErrInvalidCredentials
	}
	if err := a.wait(ctx); err != nil {
		return store.User{}, err
	}
	return store.User{
		ID:     "1",
		Email:  email,
		Name:   localPart(email),
		Avatar: avatar(email),
	}, nil
}

func (a StubAuthenticator) LoginWithGoogle(ctx context.Context) (store.User, error) {
	if err := a.wait(ctx); err != nil {
		return store.User{}, err
	}
	return store.User{
		ID:     "1",
		Email:  "demo@linkbird.ai",
		Name:   "Demo User",
		Avatar: avatar("DemoUser"),
	}, nil
}

func (a StubAuthenticator) Register(ctx context.Context, email, password, name string) (store.User, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if !wellFormedEmail(email) || password == "" || name == "" {
		return store.User{}, ErrInvalidCredentials
	}
	if err := a.wait(ctx); err != nil {
		return store.User{}, err
	}
	return store.User{
		ID:     "1",
		Email:  email,
		Name:   name,
		Avatar: avatar(name),
	}, nil
}

func wellFormedEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1
}

func localPart(email string) string {
	if at := strings.Index(email, "@"); at >= 0 {
		return email[:at]
	}
	return email
}

func avatar(seed string) *string {
	return store.StringPtr(avatarBase + url.QueryEscape(seed))
}
