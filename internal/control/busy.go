package control

import (
	"sync"

	"github.com/retribution/retctl/internal/events"
)

// Busy is the shared busy indicator. It counts holders and reports busy while
// at least one operation holds it, so overlapping requests never switch it
// off early. It does not serialize anything.
type Busy struct {
	mu    sync.Mutex
	count int
	bus   *events.EventBus
}

// NewBusy creates an indicator that publishes BusyEvents on bus (may be nil).
func NewBusy(bus *events.EventBus) *Busy {
	return &Busy{bus: bus}
}

// Acquire marks one operation as in flight. The returned release function
// is safe to call more than once.
func (b *Busy) Acquire() (release func()) {
	b.mu.Lock()
	b.count++
	edge := b.count == 1
	b.mu.Unlock()
	if edge {
		b.bus.PublishBusy(true)
	}

	var once sync.Once
	return func() {
		once.Do(b.release)
	}
}

func (b *Busy) release() {
	b.mu.Lock()
	b.count--
	edge := b.count == 0
	b.mu.Unlock()
	if edge {
		b.bus.PublishBusy(false)
	}
}

// Active reports whether any operation holds the indicator.
func (b *Busy) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count > 0
}
