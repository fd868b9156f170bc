// Package session decides which mode the operator sees: the login screen or
// the control screen.
//
// The machine reaches Control only after the backend has accepted the stored
// credential. A credential may sit in the store while the mode is
// Unauthenticated (it has not been checked yet, or the check failed for a
// reason other than 401). Any 401 seen anywhere sends the machine back to
// Unauthenticated and clears the credential.
//
// Each validation is tagged with a generation number. A result that comes
// back after a newer validation, login, logout or auth failure has started is
// dropped.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/retribution/retctl/internal/api"
	"github.com/retribution/retctl/internal/constants"
	"github.com/retribution/retctl/internal/credstore"
	"github.com/retribution/retctl/internal/events"
	"github.com/retribution/retctl/internal/http"
	"github.com/retribution/retctl/internal/logging"
	"github.com/retribution/retctl/internal/models"
)

// State is the session mode.
type State int

const (
	Unauthenticated State = iota
	Validating
	Control
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Validating:
		return "validating"
	case Control:
		return "control"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidLogin is returned by Login for any failed validation.
	ErrInvalidLogin = errors.New(constants.MsgInvalidLogin)

	// ErrSuperseded means a newer session change finished first and this
	// result was discarded.
	ErrSuperseded = errors.New("superseded by a newer session change")
)

// Validator checks the stored credential against the backend.
type Validator interface {
	ValidateAuth(ctx context.Context) error
}

// Refresher fetches status once the control screen is mounted.
type Refresher interface {
	Refresh(ctx context.Context) *models.ServerStatus
}

// Mounter loads whatever a mode needs before it is shown and returns its title.
type Mounter interface {
	Mount(ctx context.Context, s State) (title string, err error)
}

// Policy holds the tunable failure handling.
type Policy struct {
	// ClearOnTransientFailure removes the credential when startup validation
	// fails for a reason other than 401.
	ClearOnTransientFailure bool
}

// Options configures a Machine. All fields are optional.
type Options struct {
	Mounter Mounter
	Policy  Policy
	Bus     *events.EventBus
	Logger  *logging.Logger
}

// Machine is the session state machine.
type Machine struct {
	creds     credstore.Store
	validator Validator
	mounter   Mounter
	policy    Policy
	bus       *events.EventBus
	logger    *logging.Logger

	generation atomic.Uint64

	mu        sync.RWMutex
	state     State
	title     string
	refresher Refresher
}

// New creates a machine in the Unauthenticated state. Call Start to pick the
// initial mode from the credential store.
func New(creds credstore.Store, validator Validator, opts Options) *Machine {
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	return &Machine{
		creds:     creds,
		validator: validator,
		mounter:   opts.Mounter,
		policy:    opts.Policy,
		bus:       opts.Bus,
		logger:    opts.Logger,
	}
}

// SetRefresher wires the status refresh triggered on entering Control. It is
// separate from New because the synchronizer itself reports auth failures
// back to the machine.
func (m *Machine) SetRefresher(r Refresher) {
	m.mu.Lock()
	m.refresher = r
	m.mu.Unlock()
}

// State returns the current mode.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Title returns the heading of the mounted mode, if the mounter supplied one.
func (m *Machine) Title() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.title
}

// Start picks the initial mode. Without a credential the login screen is
// shown directly; with one, it is validated first.
func (m *Machine) Start(ctx context.Context) State {
	if _, ok := m.creds.Get(); !ok {
		gen := m.generation.Add(1)
		m.mountLogin(ctx, gen, "no stored credential")
		return m.State()
	}

	gen := m.generation.Add(1)
	m.transition(gen, Validating, "", "validating stored credential")

	err := m.validator.ValidateAuth(ctx)
	if m.stale(gen) {
		m.logger.Debug().Uint64("generation", gen).Msg("Discarding stale validation result")
		return m.State()
	}

	switch api.Classify(err) {
	case http.ErrorTypeSuccess:
		m.enterControl(ctx, gen, "stored credential accepted")
	case http.ErrorTypeAuthFailure:
		m.removeCredential()
		m.mountLogin(ctx, gen, "stored credential rejected")
	default:
		m.logger.Warn().Err(err).Msg("Credential validation failed")
		if m.policy.ClearOnTransientFailure {
			m.removeCredential()
		}
		m.mountLogin(ctx, gen, "credential validation failed")
	}
	return m.State()
}

// Login stores the credential for username/password and validates it. Any
// failure removes the credential again and raises the "invalid username or
// password" alert, whatever the underlying cause.
func (m *Machine) Login(ctx context.Context, username, password string) error {
	cred := models.NewCredential(username, password)
	if err := m.creds.Set(cred); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	gen := m.generation.Add(1)
	m.transition(gen, Validating, "", "validating login")

	err := m.validator.ValidateAuth(ctx)
	if m.stale(gen) {
		return ErrSuperseded
	}

	if err != nil {
		m.logger.Info().Err(err).Str("user", username).Msg("Login rejected")
		m.removeCredential()
		m.bus.PublishAlert(events.SeverityError, "login", constants.MsgInvalidLogin)
		m.mountLogin(ctx, gen, "login rejected")
		return fmt.Errorf("%w: %v", ErrInvalidLogin, err)
	}

	m.logger.Info().Str("user", username).Msg("Logged in")
	if !m.enterControl(ctx, gen, "login accepted") {
		if m.stale(gen) {
			return ErrSuperseded
		}
		return fmt.Errorf("failed to load the control screen")
	}

	// The refresh on entering Control can itself end the session
	if m.State() != Control {
		if _, ok := m.creds.Get(); !ok {
			return fmt.Errorf("credential rejected while loading server status: %w", api.ErrUnauthorized)
		}
		return ErrSuperseded
	}
	return nil
}

// Logout removes the credential and returns to the login screen. If the
// credential cannot be removed nothing changes, and a validation still in
// flight is allowed to finish.
func (m *Machine) Logout(ctx context.Context) error {
	if err := m.creds.Remove(); err != nil {
		return fmt.Errorf("failed to remove credential: %w", err)
	}
	gen := m.generation.Add(1)
	m.mountLogin(ctx, gen, "logged out")
	return nil
}

// HandleAuthFailure is called by anything that receives a 401. It clears the
// credential and forces the login screen, whatever was in progress.
func (m *Machine) HandleAuthFailure(ctx context.Context) {
	gen := m.generation.Add(1)
	m.logger.Warn().Msg("Authentication rejected by server; returning to login")
	m.removeCredential()
	m.mountLogin(ctx, gen, "authentication rejected")
}

// enterControl mounts the control screen and triggers one status refresh.
// It reports whether Control was entered.
func (m *Machine) enterControl(ctx context.Context, gen uint64, reason string) bool {
	title, err := m.mount(ctx, Control)
	if err != nil {
		// Partial load failures are log-only; the control screen is not shown
		m.logger.Warn().Err(err).Msg("Failed to load control screen")
		if !m.stale(gen) {
			m.transition(gen, Unauthenticated, m.Title(), "control screen unavailable")
		}
		return false
	}
	if !m.transition(gen, Control, title, reason) {
		return false
	}

	m.mu.RLock()
	r := m.refresher
	m.mu.RUnlock()
	if r != nil {
		r.Refresh(ctx)
	}
	return true
}

// mountLogin shows the login screen. A failed partial load clears the title
// but the mode still changes: without a valid credential there is nothing
// else to show.
func (m *Machine) mountLogin(ctx context.Context, gen uint64, reason string) {
	title, err := m.mount(ctx, Unauthenticated)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to load login screen")
		title = ""
	}
	m.transition(gen, Unauthenticated, title, reason)
}

func (m *Machine) mount(ctx context.Context, s State) (string, error) {
	if m.mounter == nil {
		return "", nil
	}
	return m.mounter.Mount(ctx, s)
}

// transition applies a state change if gen is still current.
func (m *Machine) transition(gen uint64, to State, title, reason string) bool {
	m.mu.Lock()
	if m.generation.Load() != gen {
		m.mu.Unlock()
		return false
	}
	from := m.state
	m.state = to
	m.title = title
	m.mu.Unlock()

	m.logger.Debug().
		Str("from", from.String()).
		Str("to", to.String()).
		Str("reason", reason).
		Msg("Session transition")
	m.bus.PublishMode(to.String(), from.String(), title, reason)
	return true
}

func (m *Machine) stale(gen uint64) bool {
	return m.generation.Load() != gen
}

func (m *Machine) removeCredential() {
	if err := m.creds.Remove(); err != nil {
		m.logger.Error().Err(err).Msg("Failed to remove credential")
	}
}
