package control

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/retribution/retctl/internal/api"
	"github.com/retribution/retctl/internal/constants"
	"github.com/retribution/retctl/internal/events"
	"github.com/retribution/retctl/internal/models"
)

func TestRefresh_AppliesAndPublishes(t *testing.T) {
	h := newHarness(t)
	h.backend.SetUploadPolicy([]string{"retribution_nextturn.miz", "liberation_nextturn.miz"}, 500)
	statuses := h.bus.Subscribe(events.EventStatus)

	status := h.sync.Refresh(context.Background())
	if status == nil {
		t.Fatal("Refresh() = nil")
	}
	if h.sync.Current() != status {
		t.Error("Current() should return the applied status")
	}

	view := h.sync.View()
	if !view.Known || view.PowerOn || view.PowerTooltip != "Start Server" || !view.UploadEnabled {
		t.Errorf("view = %+v", view)
	}
	if view.UploadTooltip != "retribution_nextturn.miz liberation_nextturn.miz" {
		t.Errorf("UploadTooltip = %q", view.UploadTooltip)
	}

	select {
	case e := <-statuses:
		if e.(*events.StatusEvent).View != view {
			t.Error("published view differs from View()")
		}
	case <-time.After(time.Second):
		t.Fatal("no status event")
	}
	if h.busy.Active() {
		t.Error("busy indicator left set")
	}
}

func TestRefresh_FailureKeepsModel(t *testing.T) {
	h := newHarness(t)
	h.backend.SetRunning(true, "0:05:00")

	if h.sync.Refresh(context.Background()) == nil {
		t.Fatal("first Refresh() failed")
	}

	h.backend.Fail(constants.PathStatus, http.StatusInternalServerError, "boom")
	h.backend.SetRunning(false, "N/A")

	if got := h.sync.Refresh(context.Background()); got != nil {
		t.Errorf("Refresh() = %+v, want nil on failure", got)
	}
	if _, err := h.sync.Fetch(context.Background()); err == nil {
		t.Error("Fetch() should surface the failure")
	}
	if !h.sync.Current().IsRunning() {
		t.Error("failed refresh must leave the previous status in place")
	}
	if h.auth.Calls() != 0 {
		t.Error("500 must not trigger re-authentication")
	}
	if len(h.drainAlerts()) != 0 {
		t.Error("status failures are silent")
	}
	if h.busy.Active() {
		t.Error("busy indicator left set")
	}
}

func TestRefresh_Unauthorized(t *testing.T) {
	h := newHarness(t)
	h.backend.RemoveUser("ops")

	_, err := h.sync.Fetch(context.Background())
	if !api.IsUnauthorized(err) {
		t.Fatalf("Fetch() error = %v, want unauthorized", err)
	}
	if h.auth.Calls() != 1 {
		t.Errorf("auth failure handler calls = %d, want 1", h.auth.Calls())
	}
	if _, ok := h.store.Get(); ok {
		t.Error("credential should be removed")
	}
	if h.busy.Active() {
		t.Error("busy indicator left set")
	}
}

// scriptedSource returns queued results; the first call can be held until
// released so a later call completes first.
type scriptedSource struct {
	mu      sync.Mutex
	results []*models.ServerStatus
	hold    chan struct{}
	started chan struct{}
	calls   int
}

func (s *scriptedSource) GetStatus(ctx context.Context) (*models.ServerStatus, error) {
	s.mu.Lock()
	n := s.calls
	s.calls++
	result := s.results[n]
	s.mu.Unlock()

	if n == 0 && s.hold != nil {
		close(s.started)
		<-s.hold
	}
	return result, nil
}

func TestFetch_StaleResponseNotApplied(t *testing.T) {
	src := &scriptedSource{
		results: []*models.ServerStatus{
			{Status: constants.StatusStopped},
			{Status: constants.StatusRunning},
		},
		hold:    make(chan struct{}),
		started: make(chan struct{}),
	}
	s := NewSynchronizer(src, nil, nil, Options{})

	done := make(chan *models.ServerStatus)
	go func() {
		st, _ := s.Fetch(context.Background())
		done <- st
	}()
	<-src.started

	if st, _ := s.Fetch(context.Background()); !st.IsRunning() {
		t.Fatal("second fetch should see running")
	}
	close(src.hold)

	old := <-done
	if old == nil || old.IsRunning() {
		t.Fatalf("stale fetch returned %+v", old)
	}
	if !s.Current().IsRunning() {
		t.Error("stale response overwrote a newer status")
	}
}

type errorSource struct{ err error }

func (e errorSource) GetStatus(ctx context.Context) (*models.ServerStatus, error) {
	return nil, e.err
}

func TestPoll(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		s := NewSynchronizer(errorSource{errors.New("unused")}, nil, nil, Options{})
		if err := s.Poll(context.Background(), 0); err != nil {
			t.Errorf("Poll(0) = %v, want nil", err)
		}
	})

	t.Run("stops on cancel", func(t *testing.T) {
		h := newHarness(t)
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error)
		go func() { done <- h.sync.Poll(ctx, 10*time.Millisecond) }()

		deadline := time.Now().Add(2 * time.Second)
		for h.backend.Requests(http.MethodGet, constants.PathStatus) < 2 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		cancel()

		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Errorf("Poll() = %v, want context.Canceled", err)
		}
		if h.sync.Current() == nil {
			t.Error("poll should have applied a status")
		}
	})

	t.Run("stops on unauthorized", func(t *testing.T) {
		h := newHarness(t)
		h.backend.RemoveUser("ops")

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := h.sync.Poll(ctx, 10*time.Millisecond); !api.IsUnauthorized(err) {
			t.Errorf("Poll() = %v, want unauthorized", err)
		}
	})
}
