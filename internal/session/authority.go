// Package session implements the authorization authority every PTS screen
// consults: who is signed in, which projects they are assigned to, which
// assignment is active, and the effective role used for permission checks.
package session

import (
	"context"
	"errors"
	"sync"

	"pts.app/internal/directory"
	"pts.app/internal/events"
	"pts.app/internal/obs"
)

const (
	// SelectedProjectKey holds the active project id in durable storage so
	// the selection survives restarts.
	SelectedProjectKey = "pts.selected_project"
	// TestRoleKey holds the role override in ephemeral storage for the
	// lifetime of the process.
	TestRoleKey = "pts.test_role"
)

// KV is the storage surface the authority persists into.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
}

// Authority resolves and caches the current session. It is constructed
// explicitly with its collaborators; there is no package-level instance.
type Authority struct {
	identity  Identity
	resolver  Resolver
	durable   KV
	ephemeral KV
	stream    *events.Stream

	testRoleEnabled bool

	mu         sync.RWMutex
	generation uint64
	loading    bool
	authRef    string
	person     *directory.Person
	assigns    []directory.Assignment
	active     *directory.Assignment
	override   directory.Role
	loadErr    error
}

// Option configures an Authority.
type Option func(*Authority)

// WithEvents publishes session lifecycle events to the given stream.
func WithEvents(s *events.Stream) Option {
	return func(a *Authority) { a.stream = s }
}

// WithTestRole enables the role-override simulation aid. It must stay off in
// production builds: the override changes what the client shows, never what
// the backend authorizes.
func WithTestRole(enabled bool) Option {
	return func(a *Authority) { a.testRoleEnabled = enabled }
}

// New constructs an Authority. All four collaborators are required.
func New(identity Identity, resolver Resolver, durable, ephemeral KV, opts ...Option) (*Authority, error) {
	if identity == nil || resolver == nil {
		return nil, errors.New("session: identity and resolver are required")
	}
	if durable == nil || ephemeral == nil {
		return nil, errors.New("session: durable and ephemeral storage are required")
	}
	a := &Authority{
		identity:  identity,
		resolver:  resolver,
		durable:   durable,
		ephemeral: ephemeral,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Init restores a previously established session, if the identity layer still
// holds one. Safe to call on a fresh client; it is then a no-op.
func (a *Authority) Init(ctx context.Context) error {
	state, ok, err := a.identity.CurrentState(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	a.resolve(ctx, state.AuthRef)
	a.restoreOverride()
	return nil
}

// SignIn authenticates and loads the person's assignments. Authentication
// failures are returned unchanged. Assignment-load failures do not fail the
// call: the person stays authenticated with zero assignments until Refresh
// succeeds.
func (a *Authority) SignIn(ctx context.Context, email, password string) error {
	a.mu.Lock()
	a.loading = true
	a.mu.Unlock()

	state, err := a.identity.SignIn(ctx, email, password)
	if err != nil {
		a.mu.Lock()
		a.loading = false
		a.mu.Unlock()
		return err
	}

	a.resolve(ctx, state.AuthRef)

	a.mu.RLock()
	person := a.person
	active := a.active
	a.mu.RUnlock()
	evt := events.SessionEvent{Kind: events.KindSignedIn}
	if person != nil {
		evt.PersonID = person.ID
	}
	if active != nil {
		evt.ProjectID = active.ProjectID
		evt.Role = string(active.Role)
	}
	a.publish(evt)
	return nil
}

// Refresh re-resolves assignments for the signed-in person, e.g. after a
// transient load failure or an access change.
func (a *Authority) Refresh(ctx context.Context) error {
	a.mu.RLock()
	ref := a.authRef
	a.mu.RUnlock()
	if ref == "" {
		return ErrNotAuthenticated
	}
	a.resolve(ctx, ref)
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loadErr
}

// resolve loads person and assignments for authRef and commits the result,
// unless a sign-out (or newer resolve) invalidated this generation while the
// reads were in flight.
func (a *Authority) resolve(ctx context.Context, authRef string) {
	a.mu.Lock()
	a.generation++
	gen := a.generation
	a.loading = true
	a.authRef = authRef
	a.mu.Unlock()

	var (
		person  *directory.Person
		assigns []directory.Assignment
		loadErr error
	)
	person, err := a.resolver.FindPersonByAuthRef(ctx, authRef)
	if err != nil {
		loadErr = err
		person = nil
	} else {
		assigns, err = a.resolver.ListActiveAssignments(ctx, person.ID)
		if err != nil {
			// Fail closed: a resolver error means zero assignments, never
			// inherited access from a previous load.
			loadErr = err
			assigns = nil
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.generation != gen {
		// A sign-out or newer load superseded this one; drop the result.
		return
	}
	a.person = person
	a.assigns = assigns
	a.active = a.selectAssignment(assigns)
	a.loadErr = loadErr
	a.loading = false
	if loadErr != nil {
		obs.LogRequest(map[string]any{
			"level": "error",
			"msg":   "assignment_load_failed",
			"error": loadErr.Error(),
		})
	}
}

// selectAssignment applies the restore rule: the persisted project id when it
// is still assigned, otherwise the most recently created assignment. Called
// with a.mu held.
func (a *Authority) selectAssignment(assigns []directory.Assignment) *directory.Assignment {
	if len(assigns) == 0 {
		return nil
	}
	if saved, ok := a.durable.Get(SelectedProjectKey); ok {
		for i := range assigns {
			if assigns[i].ProjectID == saved {
				return &assigns[i]
			}
		}
		// Stale selection: access was revoked since last run. Fall back
		// silently.
	}
	return &assigns[0]
}

// restoreOverride re-applies a test-role override saved earlier in this
// process, if the feature is enabled.
func (a *Authority) restoreOverride() {
	if !a.testRoleEnabled {
		return
	}
	saved, ok := a.ephemeral.Get(TestRoleKey)
	if !ok {
		return
	}
	role, err := directory.ParseRole(saved)
	if err != nil {
		_ = a.ephemeral.Remove(TestRoleKey)
		return
	}
	a.mu.Lock()
	a.override = role
	a.mu.Unlock()
}

// SwitchProject makes the assignment for projectID active and persists the
// choice. An id that does not match any current assignment leaves every piece
// of state untouched: a screen offering a stale project must not corrupt the
// session.
func (a *Authority) SwitchProject(projectID string) {
	a.mu.Lock()
	var match *directory.Assignment
	for i := range a.assigns {
		if a.assigns[i].ProjectID == projectID {
			match = &a.assigns[i]
			break
		}
	}
	if match == nil {
		a.mu.Unlock()
		return
	}
	a.active = match
	if err := a.durable.Set(SelectedProjectKey, projectID); err != nil {
		obs.LogRequest(map[string]any{
			"level": "error",
			"msg":   "selected_project_persist_failed",
			"error": err.Error(),
		})
	}
	personID := ""
	if a.person != nil {
		personID = a.person.ID
	}
	role := match.Role
	a.mu.Unlock()

	a.publish(events.SessionEvent{
		Kind:      events.KindProjectSwitched,
		PersonID:  personID,
		ProjectID: projectID,
		Role:      string(role),
	})
}

// SetTestRole overrides the effective role for UI preview. An empty role
// clears the override. Only available when the authority was built with
// WithTestRole(true), and only while authenticated.
func (a *Authority) SetTestRole(role string) error {
	if !a.testRoleEnabled {
		return ErrTestRoleDisabled
	}
	a.mu.Lock()
	if a.authRef == "" {
		a.mu.Unlock()
		return ErrNotAuthenticated
	}
	if role == "" {
		a.override = ""
		_ = a.ephemeral.Remove(TestRoleKey)
		a.mu.Unlock()
		a.publish(events.SessionEvent{Kind: events.KindRoleOverride})
		return nil
	}
	parsed, err := directory.ParseRole(role)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	a.override = parsed
	if err := a.ephemeral.Set(TestRoleKey, string(parsed)); err != nil {
		obs.LogRequest(map[string]any{
			"level": "error",
			"msg":   "test_role_persist_failed",
			"error": err.Error(),
		})
	}
	a.mu.Unlock()
	a.publish(events.SessionEvent{Kind: events.KindRoleOverride, Role: string(parsed)})
	return nil
}

// SignOut clears every piece of local session state, then tears down the
// remote session. Local state is cleared first so the UI never keeps showing
// a role after the user asked to leave, even if the remote call fails.
func (a *Authority) SignOut(ctx context.Context) error {
	a.mu.Lock()
	a.generation++ // invalidate in-flight loads
	personID := ""
	if a.person != nil {
		personID = a.person.ID
	}
	a.authRef = ""
	a.person = nil
	a.assigns = nil
	a.active = nil
	a.override = ""
	a.loadErr = nil
	a.loading = false
	_ = a.durable.Remove(SelectedProjectKey)
	_ = a.ephemeral.Remove(TestRoleKey)
	a.mu.Unlock()

	a.publish(events.SessionEvent{Kind: events.KindSignedOut, PersonID: personID})
	return a.identity.SignOut(ctx)
}

func (a *Authority) publish(evt events.SessionEvent) {
	if a.stream != nil {
		a.stream.Publish(evt)
	}
}

// --- read-only query surface ---

// Loading reports whether a resolution is still in flight. Consumers must not
// render role-gated UI while this is true.
func (a *Authority) Loading() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loading
}

// Person returns the signed-in person, or nil.
func (a *Authority) Person() *directory.Person {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.person == nil {
		return nil
	}
	clone := *a.person
	return &clone
}

// Assignments returns all active assignments, most recently created first.
func (a *Authority) Assignments() []directory.Assignment {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]directory.Assignment, len(a.assigns))
	copy(out, a.assigns)
	return out
}

// Assignment returns the active assignment, or nil.
func (a *Authority) Assignment() *directory.Assignment {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.active == nil {
		return nil
	}
	clone := *a.active
	return &clone
}

// Project returns the active assignment's project, or nil.
func (a *Authority) Project() *directory.Project {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.active == nil || a.active.Project == nil {
		return nil
	}
	clone := *a.active.Project
	return &clone
}

// Role returns the effective role: the override when one is set, otherwise
// the active assignment's role. Empty when neither exists; every permission
// check then denies.
func (a *Authority) Role() directory.Role {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.effectiveLocked()
}

// RealRole returns the active assignment's role, ignoring any override, so
// the UI can show "testing as X, really Y".
func (a *Authority) RealRole() directory.Role {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.active == nil {
		return ""
	}
	return a.active.Role
}

// LoadError returns the failure from the last assignment resolution, if any.
func (a *Authority) LoadError() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loadErr
}

func (a *Authority) effectiveLocked() directory.Role {
	if a.override != "" {
		return a.override
	}
	if a.active == nil {
		return ""
	}
	return a.active.Role
}

// IsAtLeast reports whether the effective role sits at or above min. Unknown
// or absent roles always deny.
func (a *Authority) IsAtLeast(min directory.Role) bool {
	return a.Role().AtLeast(min)
}

// IsRole reports strict equality with the effective role.
func (a *Authority) IsRole(r directory.Role) bool {
	role := a.Role()
	if role == "" {
		return false
	}
	return role == r
}

// Area classifies the effective role for top-level routing. With no session
// it defaults to the site area; routing is not a security boundary.
func (a *Authority) Area() directory.Area {
	return a.Role().Area()
}

// CanApproveDirectly reports whether the effective role may approve
// cross-project transfers without the staged workflow.
func (a *Authority) CanApproveDirectly() bool {
	return a.Role().CanApproveDirectly()
}

// CanAccess evaluates a named capability against the effective role and the
// active assignment. Absent a session, or for a capability without a rule,
// the answer is no.
func (a *Authority) CanAccess(c Capability) bool {
	a.mu.RLock()
	role := a.effectiveLocked()
	active := a.active
	a.mu.RUnlock()
	if role == "" {
		return false
	}
	return evaluateCapability(c, role, active)
}
