package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"pts.app/internal/directory"
	"pts.app/internal/storage"
)

type stubIdentity struct {
	signInFn  func(context.Context, string, string) (AuthState, error)
	signOutFn func(context.Context) error
	current   *AuthState
}

func (s *stubIdentity) SignIn(ctx context.Context, email, password string) (AuthState, error) {
	if s.signInFn != nil {
		return s.signInFn(ctx, email, password)
	}
	return AuthState{AuthRef: "auth-1"}, nil
}

func (s *stubIdentity) CurrentState(context.Context) (AuthState, bool, error) {
	if s.current != nil {
		return *s.current, true, nil
	}
	return AuthState{}, false, nil
}

func (s *stubIdentity) SignOut(ctx context.Context) error {
	if s.signOutFn != nil {
		return s.signOutFn(ctx)
	}
	return nil
}

type stubResolver struct {
	findFn func(context.Context, string) (*directory.Person, error)
	listFn func(context.Context, string) ([]directory.Assignment, error)
}

func (s *stubResolver) FindPersonByAuthRef(ctx context.Context, ref string) (*directory.Person, error) {
	if s.findFn != nil {
		return s.findFn(ctx, ref)
	}
	return &directory.Person{ID: "p-1", AuthRef: ref, FirstName: "Mario", LastName: "Rossi"}, nil
}

func (s *stubResolver) ListActiveAssignments(ctx context.Context, personID string) ([]directory.Assignment, error) {
	if s.listFn != nil {
		return s.listFn(ctx, personID)
	}
	return nil, nil
}

// twoAssignments returns B (most recent) then A, the resolver's order.
func twoAssignments() []directory.Assignment {
	now := time.Now().UTC()
	return []directory.Assignment{
		{
			ID:        "as-b",
			PersonID:  "p-1",
			ProjectID: "proj-b",
			Role:      directory.RoleForeman,
			Active:    true,
			CreatedAt: now,
			Project:   &directory.Project{ID: "proj-b", Name: "Beta", Code: "BET"},
		},
		{
			ID:        "as-a",
			PersonID:  "p-1",
			ProjectID: "proj-a",
			Role:      directory.RoleSupervisor,
			Active:    true,
			CreatedAt: now.Add(-time.Hour),
			Project:   &directory.Project{ID: "proj-a", Name: "Alpha", Code: "ALP"},
		},
	}
}

func newTestAuthority(t *testing.T, identity Identity, resolver Resolver, opts ...Option) *Authority {
	t.Helper()
	if identity == nil {
		identity = &stubIdentity{}
	}
	if resolver == nil {
		resolver = &stubResolver{
			listFn: func(context.Context, string) ([]directory.Assignment, error) {
				return twoAssignments(), nil
			},
		}
	}
	a, err := New(identity, resolver, storage.NewMemory(), storage.NewMemory(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestSignInSelectsMostRecentAssignment(t *testing.T) {
	a := newTestAuthority(t, nil, nil)
	if err := a.SignIn(context.Background(), "m.rossi@example.com", "pw"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if a.Loading() {
		t.Fatal("loading should be cleared after sign-in")
	}
	if got := a.Assignment(); got == nil || got.ProjectID != "proj-b" {
		t.Fatalf("expected proj-b active, got %+v", got)
	}
	if p := a.Project(); p == nil || p.Code != "BET" {
		t.Fatalf("expected joined project, got %+v", p)
	}
	if a.Role() != directory.RoleForeman {
		t.Fatalf("unexpected effective role: %s", a.Role())
	}
}

func TestSelectionRestoreFromDurableStorage(t *testing.T) {
	durable := storage.NewMemory()
	if err := durable.Set(SelectedProjectKey, "proj-a"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	resolver := &stubResolver{
		listFn: func(context.Context, string) ([]directory.Assignment, error) {
			return twoAssignments(), nil
		},
	}
	a, err := New(&stubIdentity{}, resolver, durable, storage.NewMemory())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.SignIn(context.Background(), "m.rossi@example.com", "pw"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if got := a.Assignment(); got == nil || got.ProjectID != "proj-a" {
		t.Fatalf("expected persisted selection proj-a, got %+v", got)
	}
	if a.Role() != directory.RoleSupervisor {
		t.Fatalf("unexpected role: %s", a.Role())
	}
}

func TestStaleSelectionFallsBack(t *testing.T) {
	durable := storage.NewMemory()
	_ = durable.Set(SelectedProjectKey, "proj-revoked")
	resolver := &stubResolver{
		listFn: func(context.Context, string) ([]directory.Assignment, error) {
			return twoAssignments(), nil
		},
	}
	a, err := New(&stubIdentity{}, resolver, durable, storage.NewMemory())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.SignIn(context.Background(), "m.rossi@example.com", "pw"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if got := a.Assignment(); got == nil || got.ProjectID != "proj-b" {
		t.Fatalf("expected fallback to most recent, got %+v", got)
	}
}

func TestSwitchProjectIdempotentAndPersisted(t *testing.T) {
	durable := storage.NewMemory()
	resolver := &stubResolver{
		listFn: func(context.Context, string) ([]directory.Assignment, error) {
			return twoAssignments(), nil
		},
	}
	a, err := New(&stubIdentity{}, resolver, durable, storage.NewMemory())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.SignIn(context.Background(), "m.rossi@example.com", "pw"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	a.SwitchProject("proj-a")
	first := a.Assignment()
	a.SwitchProject("proj-a")
	second := a.Assignment()
	if first == nil || second == nil || first.ID != second.ID || second.ProjectID != "proj-a" {
		t.Fatalf("switch not idempotent: %+v vs %+v", first, second)
	}
	if saved, ok := durable.Get(SelectedProjectKey); !ok || saved != "proj-a" {
		t.Fatalf("selection not persisted: %q %v", saved, ok)
	}
}

func TestSwitchProjectUnknownIDIsNoOp(t *testing.T) {
	a := newTestAuthority(t, nil, nil)
	if err := a.SignIn(context.Background(), "m.rossi@example.com", "pw"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	before := a.Assignment()
	a.SwitchProject("proj-nope")
	after := a.Assignment()
	if before == nil || after == nil || before.ID != after.ID {
		t.Fatalf("stale id corrupted state: %+v vs %+v", before, after)
	}
}

func TestOverridePrecedence(t *testing.T) {
	a := newTestAuthority(t, nil, nil, WithTestRole(true))
	if err := a.SignIn(context.Background(), "m.rossi@example.com", "pw"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if err := a.SetTestRole("admin"); err != nil {
		t.Fatalf("SetTestRole: %v", err)
	}
	if a.Role() != directory.RoleAdmin {
		t.Fatalf("expected overridden role admin, got %s", a.Role())
	}
	if a.RealRole() != directory.RoleForeman {
		t.Fatalf("expected real role foreman, got %s", a.RealRole())
	}
	if !a.IsAtLeast(directory.RolePM) {
		t.Fatal("override should grant pm-level checks")
	}
	if err := a.SetTestRole(""); err != nil {
		t.Fatalf("clear override: %v", err)
	}
	if a.Role() != a.RealRole() {
		t.Fatalf("clearing override did not restore real role: %s vs %s", a.Role(), a.RealRole())
	}
}

func TestSetTestRoleDisabledByDefault(t *testing.T) {
	a := newTestAuthority(t, nil, nil)
	if err := a.SignIn(context.Background(), "m.rossi@example.com", "pw"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if err := a.SetTestRole("admin"); !errors.Is(err, ErrTestRoleDisabled) {
		t.Fatalf("expected ErrTestRoleDisabled, got %v", err)
	}
}

func TestSignOutClearsEverything(t *testing.T) {
	durable := storage.NewMemory()
	ephemeral := storage.NewMemory()
	remoteErr := errors.New("backend unreachable")
	identity := &stubIdentity{
		signOutFn: func(context.Context) error { return remoteErr },
	}
	resolver := &stubResolver{
		listFn: func(context.Context, string) ([]directory.Assignment, error) {
			return twoAssignments(), nil
		},
	}
	a, err := New(identity, resolver, durable, ephemeral, WithTestRole(true))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.SignIn(context.Background(), "m.rossi@example.com", "pw"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	a.SwitchProject("proj-a")
	if err := a.SetTestRole("admin"); err != nil {
		t.Fatalf("SetTestRole: %v", err)
	}

	if err := a.SignOut(context.Background()); !errors.Is(err, remoteErr) {
		t.Fatalf("expected remote error surfaced, got %v", err)
	}
	// Local state cleared regardless of the remote failure.
	if a.Person() != nil || a.Assignment() != nil || a.Project() != nil {
		t.Fatal("session state not cleared")
	}
	if len(a.Assignments()) != 0 {
		t.Fatal("assignments not cleared")
	}
	if a.Role() != "" || a.RealRole() != "" {
		t.Fatal("roles not cleared")
	}
	if _, ok := durable.Get(SelectedProjectKey); ok {
		t.Fatal("durable selection key not removed")
	}
	if _, ok := ephemeral.Get(TestRoleKey); ok {
		t.Fatal("ephemeral override key not removed")
	}
	if a.IsAtLeast(directory.RoleHelper) {
		t.Fatal("permission check passed after sign-out")
	}
}

func TestAssignmentLoadFailureFailsClosed(t *testing.T) {
	loadErr := errors.New("store unreachable")
	resolver := &stubResolver{
		listFn: func(context.Context, string) ([]directory.Assignment, error) {
			return nil, loadErr
		},
	}
	a := newTestAuthority(t, nil, resolver)
	if err := a.SignIn(context.Background(), "m.rossi@example.com", "pw"); err != nil {
		t.Fatalf("SignIn should not fail on load error, got %v", err)
	}
	if a.Person() == nil {
		t.Fatal("person should stay resolved")
	}
	if len(a.Assignments()) != 0 || a.Assignment() != nil {
		t.Fatal("expected zero assignments on load failure")
	}
	if a.IsAtLeast(directory.RoleHelper) || a.CanAccess(CapabilityTeams) {
		t.Fatal("expected every check to deny")
	}
	if !errors.Is(a.LoadError(), loadErr) {
		t.Fatalf("expected load error recorded, got %v", a.LoadError())
	}
}

func TestRefreshRecoversFromLoadFailure(t *testing.T) {
	failing := true
	resolver := &stubResolver{
		listFn: func(context.Context, string) ([]directory.Assignment, error) {
			if failing {
				return nil, errors.New("store unreachable")
			}
			return twoAssignments(), nil
		},
	}
	a := newTestAuthority(t, nil, resolver)
	if err := a.SignIn(context.Background(), "m.rossi@example.com", "pw"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if a.Assignment() != nil {
		t.Fatal("expected no assignment while failing")
	}

	failing = false
	if err := a.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := a.Assignment(); got == nil || got.ProjectID != "proj-b" {
		t.Fatalf("expected assignments after refresh, got %+v", got)
	}
}

func TestLateLoadResultDiscardedAfterSignOut(t *testing.T) {
	release := make(chan struct{})
	resolver := &stubResolver{
		listFn: func(context.Context, string) ([]directory.Assignment, error) {
			<-release
			return twoAssignments(), nil
		},
	}
	a := newTestAuthority(t, nil, resolver)

	done := make(chan error, 1)
	go func() {
		done <- a.SignIn(context.Background(), "m.rossi@example.com", "pw")
	}()

	// Wait until the load is in flight, then sign out underneath it.
	for !a.Loading() {
		time.Sleep(time.Millisecond)
	}
	if err := a.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	if a.Person() != nil || a.Assignment() != nil || len(a.Assignments()) != 0 {
		t.Fatal("late load result overwrote signed-out state")
	}
	if a.Role() != "" {
		t.Fatalf("expected no effective role, got %s", a.Role())
	}
}

func TestScenarioApproveAndArea(t *testing.T) {
	cases := []struct {
		role    directory.Role
		approve bool
		area    directory.Area
	}{
		{directory.RoleCM, true, directory.AreaSite},
		{directory.RoleSupervisor, false, directory.AreaSite},
		{directory.RoleDeptManager, false, directory.AreaOffice},
		{directory.RoleHelper, false, directory.AreaSite},
	}
	for _, tc := range cases {
		role := tc.role
		resolver := &stubResolver{
			listFn: func(context.Context, string) ([]directory.Assignment, error) {
				return []directory.Assignment{{
					ID:        "as-1",
					PersonID:  "p-1",
					ProjectID: "proj-x",
					Role:      role,
					Active:    true,
					CreatedAt: time.Now().UTC(),
				}}, nil
			},
		}
		a := newTestAuthority(t, nil, resolver)
		if err := a.SignIn(context.Background(), "m.rossi@example.com", "pw"); err != nil {
			t.Fatalf("SignIn: %v", err)
		}
		if got := a.CanApproveDirectly(); got != tc.approve {
			t.Fatalf("%s: CanApproveDirectly=%v, want %v", role, got, tc.approve)
		}
		if got := a.Area(); got != tc.area {
			t.Fatalf("%s: Area=%s, want %s", role, got, tc.area)
		}
	}
}

func TestIsRoleStrictEquality(t *testing.T) {
	a := newTestAuthority(t, nil, nil)
	if a.IsRole(directory.RoleForeman) {
		t.Fatal("IsRole must deny before sign-in")
	}
	if err := a.SignIn(context.Background(), "m.rossi@example.com", "pw"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if !a.IsRole(directory.RoleForeman) {
		t.Fatal("expected foreman")
	}
	if a.IsRole(directory.RoleAdmin) {
		t.Fatal("IsRole must be strict equality")
	}
}

func TestAuthFailurePropagatesUnchanged(t *testing.T) {
	authErr := errors.New("invalid credentials")
	identity := &stubIdentity{
		signInFn: func(context.Context, string, string) (AuthState, error) {
			return AuthState{}, authErr
		},
	}
	a := newTestAuthority(t, identity, nil)
	if err := a.SignIn(context.Background(), "m.rossi@example.com", "bad"); !errors.Is(err, authErr) {
		t.Fatalf("expected auth error unchanged, got %v", err)
	}
	if a.Loading() {
		t.Fatal("loading should clear after failed sign-in")
	}
}

func TestInitRestoresSessionAndOverride(t *testing.T) {
	ephemeral := storage.NewMemory()
	_ = ephemeral.Set(TestRoleKey, "pm")
	identity := &stubIdentity{current: &AuthState{AuthRef: "auth-1"}}
	resolver := &stubResolver{
		listFn: func(context.Context, string) ([]directory.Assignment, error) {
			return twoAssignments(), nil
		},
	}
	a, err := New(identity, resolver, storage.NewMemory(), ephemeral, WithTestRole(true))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if a.Person() == nil {
		t.Fatal("expected restored person")
	}
	if a.Role() != directory.RolePM {
		t.Fatalf("expected restored override pm, got %s", a.Role())
	}
	if a.RealRole() != directory.RoleForeman {
		t.Fatalf("unexpected real role: %s", a.RealRole())
	}
}
