package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestService(t *testing.T, opts ...ServiceOption) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	base := []ServiceOption{WithSecret("test-secret"), WithIssuer("pts-test")}
	svc, err := NewService(store, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func seedUser(t *testing.T, store *MemoryStore, email, password string) *User {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	u := &User{
		PersonID:     "p-1",
		Email:        email,
		PasswordHash: hash,
		Status:       UserStatusActive,
	}
	if err := store.Users(context.Background()).Create(context.Background(), u); err != nil {
		t.Fatalf("Create user: %v", err)
	}
	return u
}

func TestSignInIssuesVerifiableTokens(t *testing.T) {
	svc, store := newTestService(t)
	seedUser(t, store, "m.rossi@example.com", "hunter2")

	pair, user, err := svc.SignIn(context.Background(), "  M.Rossi@Example.com ", "hunter2")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if !pair.AccessExpiresAt.After(time.Now()) {
		t.Fatalf("access token already expired: %v", pair.AccessExpiresAt)
	}

	verified, claims, err := svc.AuthenticateToken(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("AuthenticateToken: %v", err)
	}
	if verified.ID != user.ID {
		t.Fatalf("unexpected user: %s", verified.ID)
	}
	if claims.PersonID != "p-1" {
		t.Fatalf("unexpected person claim: %s", claims.PersonID)
	}
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	svc, store := newTestService(t)
	seedUser(t, store, "m.rossi@example.com", "hunter2")

	cases := []struct{ email, password string }{
		{"m.rossi@example.com", "wrong"},
		{"nobody@example.com", "hunter2"},
		{"", "hunter2"},
		{"m.rossi@example.com", ""},
	}
	for _, tc := range cases {
		if _, _, err := svc.SignIn(context.Background(), tc.email, tc.password); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("SignIn(%q, %q): expected ErrUnauthorized, got %v", tc.email, tc.password, err)
		}
	}
}

func TestSignInRejectsDisabledUser(t *testing.T) {
	svc, store := newTestService(t)
	u := seedUser(t, store, "m.rossi@example.com", "hunter2")
	_ = u

	hash, _ := HashPassword("pw")
	disabled := &User{PersonID: "p-2", Email: "gone@example.com", PasswordHash: hash, Status: UserStatusDisabled}
	if err := store.Users(context.Background()).Create(context.Background(), disabled); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, err := svc.SignIn(context.Background(), "gone@example.com", "pw"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, store := newTestService(t)
	seedUser(t, store, "m.rossi@example.com", "hunter2")

	pair, _, err := svc.SignIn(context.Background(), "m.rossi@example.com", "hunter2")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	next, _, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	// The consumed token must be dead.
	if _, _, err := svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for reused token, got %v", err)
	}
}

func TestRefreshRejectsGarbage(t *testing.T) {
	svc, _ := newTestService(t)
	for _, raw := range []string{"", "no-dot", "a.", ".b", "id.wrong-secret"} {
		if _, _, err := svc.Refresh(context.Background(), raw); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Refresh(%q): expected ErrInvalidToken, got %v", raw, err)
		}
	}
}

func TestSignOutRevokesAllRefreshTokens(t *testing.T) {
	svc, store := newTestService(t)
	u := seedUser(t, store, "m.rossi@example.com", "hunter2")

	pair1, _, err := svc.SignIn(context.Background(), "m.rossi@example.com", "hunter2")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	pair2, _, err := svc.SignIn(context.Background(), "m.rossi@example.com", "hunter2")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	if err := svc.SignOut(context.Background(), u.ID); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	for _, tok := range []string{pair1.RefreshToken, pair2.RefreshToken} {
		if _, _, err := svc.Refresh(context.Background(), tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected revoked token, got %v", err)
		}
	}
}

func TestAuthenticateTokenRejectsExpired(t *testing.T) {
	now := time.Now().UTC()
	svc, store := newTestService(t, WithAccessTTL(time.Minute), WithClock(func() time.Time { return now }))
	seedUser(t, store, "m.rossi@example.com", "hunter2")

	pair, _, err := svc.SignIn(context.Background(), "m.rossi@example.com", "hunter2")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, _, err := svc.AuthenticateToken(context.Background(), pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token rejected, got %v", err)
	}
}

func TestAuthenticateTokenRejectsForeignSignature(t *testing.T) {
	svc, store := newTestService(t)
	seedUser(t, store, "m.rossi@example.com", "hunter2")
	pair, _, err := svc.SignIn(context.Background(), "m.rossi@example.com", "hunter2")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	other, _ := newTestService(t)
	if _, _, err := other.AuthenticateToken(context.Background(), pair.AccessToken); err == nil {
		t.Fatal("token verified by service without the user")
	}

	wrongKey, err := NewService(store, WithSecret("other-secret"), WithIssuer("pts-test"))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if _, _, err := wrongKey.AuthenticateToken(context.Background(), pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected signature mismatch rejected, got %v", err)
	}
}

func TestActorContextHelpers(t *testing.T) {
	ctx := context.Background()
	if _, ok := ActorFromContext(ctx); ok {
		t.Fatal("unexpected actor in empty context")
	}
	ctx = ContextWithActor(ctx, Actor{UserID: "u-1", PersonID: "p-1"})
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.UserID != "u-1" || actor.PersonID != "p-1" {
		t.Fatalf("unexpected actor: %+v ok=%v", actor, ok)
	}

	ctx = ContextWithToken(ctx, "bearer-token")
	tok, ok := TokenFromContext(ctx)
	if !ok || tok != "bearer-token" {
		t.Fatalf("unexpected token: %q ok=%v", tok, ok)
	}
}
