package session

import (
	"context"

	"pts.app/internal/directory"
)

// Identity is the external authentication collaborator. Sign-in failures are
// propagated to callers unchanged; the authority never retries or rewraps
// them.
type Identity interface {
	// SignIn exchanges credentials for an authenticated state and returns the
	// auth reference that resolves to a directory person.
	SignIn(ctx context.Context, email, password string) (AuthState, error)
	// CurrentState reports a previously established authenticated state, if
	// any, so a restarted client can restore its session.
	CurrentState(ctx context.Context) (AuthState, bool, error)
	// SignOut tears down the remote authenticated state.
	SignOut(ctx context.Context) error
}

// AuthState is what the identity collaborator knows about the signed-in
// account.
type AuthState struct {
	AuthRef string
}

// Resolver loads the person record and their active project assignments.
// Implementations are pure reads; failures are treated by the authority as
// "no assignments", never as "all access".
type Resolver interface {
	FindPersonByAuthRef(ctx context.Context, ref string) (*directory.Person, error)
	ListActiveAssignments(ctx context.Context, personID string) ([]directory.Assignment, error)
}
