package control

import (
	"context"
	"sync"
	"testing"

	"github.com/retribution/retctl/internal/api"
	"github.com/retribution/retctl/internal/config"
	"github.com/retribution/retctl/internal/credstore"
	"github.com/retribution/retctl/internal/events"
	"github.com/retribution/retctl/internal/models"
	"github.com/retribution/retctl/internal/testbackend"
)

// authRecorder removes the credential the way the session machine does and
// counts how often it was called.
type authRecorder struct {
	mu    sync.Mutex
	calls int
	store credstore.Store
}

func (a *authRecorder) HandleAuthFailure(ctx context.Context) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	if a.store != nil {
		_ = a.store.Remove()
	}
}

func (a *authRecorder) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type harness struct {
	backend *testbackend.Backend
	store   *credstore.MemoryStore
	bus     *events.EventBus
	auth    *authRecorder
	busy    *Busy
	sync    *Synchronizer
	disp    *Dispatcher
	alerts  <-chan events.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	b := testbackend.New()
	t.Cleanup(b.Close)

	cfg := config.NewConfig()
	cfg.ServerURL = b.URL()
	cfg.RetryMax = 0

	store := credstore.NewMemoryStore()
	if err := store.Set(models.NewCredential("ops", "secret123")); err != nil {
		t.Fatal(err)
	}
	client, err := api.NewClient(cfg, store, nil)
	if err != nil {
		t.Fatal(err)
	}

	bus := events.NewEventBus(64)
	t.Cleanup(bus.Close)

	h := &harness{
		backend: b,
		store:   store,
		bus:     bus,
		auth:    &authRecorder{store: store},
		busy:    NewBusy(bus),
		alerts:  bus.Subscribe(events.EventAlert),
	}
	opts := Options{Bus: bus}
	h.sync = NewSynchronizer(client, h.auth, h.busy, opts)
	h.disp = NewDispatcher(client, h.sync, h.auth, h.busy, opts)
	return h
}

// drainAlerts returns every alert published so far.
func (h *harness) drainAlerts() []*events.AlertEvent {
	var out []*events.AlertEvent
	for len(h.alerts) > 0 {
		out = append(out, (<-h.alerts).(*events.AlertEvent))
	}
	return out
}
