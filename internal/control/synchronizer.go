// Package control keeps the local picture of the remote DCS server in step
// with the backend and runs the operator's commands against it.
//
// The Synchronizer owns the one canonical ServerStatus. Screens and CLI
// output are projections of it (see Project), and the Dispatcher reads it
// rather than any rendered state when deciding what a command means.
package control

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/retribution/retctl/internal/api"
	"github.com/retribution/retctl/internal/events"
	"github.com/retribution/retctl/internal/http"
	"github.com/retribution/retctl/internal/logging"
	"github.com/retribution/retctl/internal/models"
	"github.com/retribution/retctl/internal/progress"
)

// StatusSource fetches the current status from the backend.
type StatusSource interface {
	GetStatus(ctx context.Context) (*models.ServerStatus, error)
}

// AuthFailureHandler is told about every 401.
type AuthFailureHandler interface {
	HandleAuthFailure(ctx context.Context)
}

// Options carries the optional collaborators shared by the Synchronizer and
// the Dispatcher.
type Options struct {
	Bus      *events.EventBus
	Logger   *logging.Logger
	Progress progress.Factory
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logging.NewNopLogger()
	}
	if o.Progress == nil {
		o.Progress = progress.NoOpFactory()
	}
	return o
}

// Synchronizer holds the last applied status and refreshes it on demand.
type Synchronizer struct {
	source StatusSource
	auth   AuthFailureHandler
	busy   *Busy
	bus    *events.EventBus
	logger *logging.Logger

	issued atomic.Uint64

	mu      sync.RWMutex
	current *models.ServerStatus
	applied uint64
}

// NewSynchronizer creates a synchronizer with no status applied yet.
func NewSynchronizer(source StatusSource, auth AuthFailureHandler, busy *Busy, opts Options) *Synchronizer {
	opts = opts.withDefaults()
	if busy == nil {
		busy = NewBusy(opts.Bus)
	}
	return &Synchronizer{
		source: source,
		auth:   auth,
		busy:   busy,
		bus:    opts.Bus,
		logger: opts.Logger,
	}
}

// Refresh fetches and applies the status. It returns the status, or nil on
// any failure. Failures other than 401 are logged and otherwise ignored;
// the previous status stays in place.
func (s *Synchronizer) Refresh(ctx context.Context) *models.ServerStatus {
	status, _ := s.Fetch(ctx)
	return status
}

// Fetch is Refresh with the failure returned. A 401 is reported to the auth
// failure handler and the error matches api.ErrUnauthorized.
//
// Every fetch gets a generation number. If a newer fetch has already been
// applied by the time this one completes, its result is returned to the
// caller but not applied.
func (s *Synchronizer) Fetch(ctx context.Context) (*models.ServerStatus, error) {
	release := s.busy.Acquire()
	defer release()

	if api.OpID(ctx) == "" {
		ctx = api.WithOpID(ctx, api.NewOpID())
	}
	logger := s.logger.WithOp(api.OpID(ctx), "status")

	gen := s.issued.Add(1)
	status, err := s.source.GetStatus(ctx)
	if err != nil {
		switch api.Classify(err) {
		case http.ErrorTypeAuthFailure:
			logger.Warn().Msg("Status request unauthorized")
			if s.auth != nil {
				s.auth.HandleAuthFailure(ctx)
			}
		case http.ErrorTypeCanceled:
			logger.Debug().Msg("Status request canceled")
		default:
			logger.Warn().Err(err).Msg("Status refresh failed")
		}
		return nil, err
	}

	s.apply(gen, status, logger)
	return status, nil
}

func (s *Synchronizer) apply(gen uint64, status *models.ServerStatus, logger *logging.Logger) {
	s.mu.Lock()
	if gen < s.applied {
		s.mu.Unlock()
		logger.Debug().Uint64("generation", gen).Msg("Discarding stale status response")
		return
	}
	s.current = status
	s.applied = gen
	s.mu.Unlock()

	logger.Debug().
		Str("status", status.Status).
		Uint64("generation", gen).
		Msg("Status applied")
	s.bus.PublishStatus(status, Project(status), gen)
}

// Current returns the last applied status, or nil if none has been applied.
func (s *Synchronizer) Current() *models.ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// View returns the projection of the last applied status.
func (s *Synchronizer) View() models.ControlView {
	return Project(s.Current())
}

// Poll refreshes every interval until ctx is done or the backend rejects the
// credential. A non-positive interval disables polling and Poll returns
// immediately.
func (s *Synchronizer) Poll(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug().Msg("Poll loop cancelled by context")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Fetch(ctx); api.Classify(err) == http.ErrorTypeAuthFailure {
				return err
			}
		}
	}
}
