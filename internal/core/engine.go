// Package core assembles the client: configuration, credential store,
// backend client, session machine and the control components, all sharing
// one event bus. Both the CLI and the terminal UI drive an Engine.
package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/retribution/retctl/internal/api"
	"github.com/retribution/retctl/internal/config"
	"github.com/retribution/retctl/internal/constants"
	"github.com/retribution/retctl/internal/control"
	"github.com/retribution/retctl/internal/credstore"
	"github.com/retribution/retctl/internal/events"
	"github.com/retribution/retctl/internal/logging"
	"github.com/retribution/retctl/internal/progress"
	"github.com/retribution/retctl/internal/session"
)

// Options customizes an Engine. Zero values pick the defaults.
type Options struct {
	// Bus is shared with the caller's logger when warnings should reach the UI.
	Bus *events.EventBus

	Logger *logging.Logger

	// Store overrides the credential file named by the config.
	Store credstore.Store

	// LoadPartials mounts the backend's HTML partials on every mode change.
	// The terminal UI uses their headings as screen titles; the CLI skips them.
	LoadPartials bool

	Progress progress.Factory
}

// Engine is the main orchestrator. It owns no goroutines of its own; polling
// is started by the frontend through Status().Poll.
type Engine struct {
	config     *config.Config
	eventBus   *events.EventBus
	ownsBus    bool
	logger     *logging.Logger
	creds      credstore.Store
	apiClient  *api.Client
	session    *session.Machine
	busy       *control.Busy
	sync       *control.Synchronizer
	dispatcher *control.Dispatcher
}

// NewEngine validates cfg and wires the components together.
func NewEngine(cfg *config.Config, opts Options) (*Engine, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bus := opts.Bus
	ownsBus := false
	if bus == nil {
		bus = events.NewEventBus(constants.EventBusDefaultBuffer)
		ownsBus = true
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger(logging.ModeCLI, bus)
	}

	creds := opts.Store
	if creds == nil {
		creds = credstore.NewFileStore(config.ExpandHome(cfg.CredentialFile), logger)
	}

	apiClient, err := api.NewClient(cfg, creds, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	var mounter session.Mounter
	if opts.LoadPartials {
		mounter = session.NewPartialMounter(apiClient)
	}
	machine := session.New(creds, apiClient, session.Options{
		Mounter: mounter,
		Policy:  session.Policy{ClearOnTransientFailure: cfg.ClearCredentialOnTransientFailure},
		Bus:     bus,
		Logger:  logger,
	})

	ctlOpts := control.Options{Bus: bus, Logger: logger, Progress: opts.Progress}
	busy := control.NewBusy(bus)
	sync := control.NewSynchronizer(apiClient, machine, busy, ctlOpts)
	machine.SetRefresher(sync)
	dispatcher := control.NewDispatcher(apiClient, sync, machine, busy, ctlOpts)

	return &Engine{
		config:     cfg,
		eventBus:   bus,
		ownsBus:    ownsBus,
		logger:     logger,
		creds:      creds,
		apiClient:  apiClient,
		session:    machine,
		busy:       busy,
		sync:       sync,
		dispatcher: dispatcher,
	}, nil
}

// Start picks the initial session mode from the stored credential.
func (e *Engine) Start(ctx context.Context) session.State {
	return e.session.Start(ctx)
}

// ErrNotLoggedIn is returned by RequireControl when there is no usable
// credential.
var ErrNotLoggedIn = errors.New("not logged in (run 'retctl login')")

// RequireControl runs Start and fails unless the stored credential was
// accepted. One-shot commands use it as their gate.
func (e *Engine) RequireControl(ctx context.Context) error {
	if e.Start(ctx) == session.Control {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if _, ok := e.creds.Get(); ok {
		// Kept credential means validation failed for a reason other than 401
		return fmt.Errorf("could not verify the stored credential with %s (see log for details)", e.config.ServerURL)
	}
	return ErrNotLoggedIn
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() *config.Config { return e.config }

// Events returns the shared event bus.
func (e *Engine) Events() *events.EventBus { return e.eventBus }

// Logger returns the engine logger.
func (e *Engine) Logger() *logging.Logger { return e.logger }

// Credentials returns the credential store.
func (e *Engine) Credentials() credstore.Store { return e.creds }

// API returns the backend client.
func (e *Engine) API() *api.Client { return e.apiClient }

// Session returns the session state machine.
func (e *Engine) Session() *session.Machine { return e.session }

// Status returns the status synchronizer.
func (e *Engine) Status() *control.Synchronizer { return e.sync }

// Commands returns the command dispatcher.
func (e *Engine) Commands() *control.Dispatcher { return e.dispatcher }

// Busy returns the shared busy indicator.
func (e *Engine) Busy() *control.Busy { return e.busy }

// Close releases the event bus if the engine created it.
func (e *Engine) Close() {
	if e.ownsBus {
		e.eventBus.Close()
	}
}
