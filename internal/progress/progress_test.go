package progress

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/retribution/retctl/internal/events"
)

type recordingReporter struct {
	updates []int64
}

func (r *recordingReporter) Start(total int64, description string) {}
func (r *recordingReporter) Update(current int64)                  { r.updates = append(r.updates, current) }
func (r *recordingReporter) Finish()                               {}
func (r *recordingReporter) Error(err error)                       {}

func TestProgressReader(t *testing.T) {
	rep := &recordingReporter{}
	src := strings.NewReader(strings.Repeat("x", 10))
	pr := NewProgressReader(io.LimitReader(src, 10), rep)

	buf := make([]byte, 4)
	var out bytes.Buffer
	if _, err := io.CopyBuffer(&out, pr, buf); err != nil {
		t.Fatalf("copy error = %v", err)
	}

	if pr.BytesRead() != 10 {
		t.Errorf("BytesRead() = %d, want 10", pr.BytesRead())
	}
	if len(rep.updates) == 0 || rep.updates[len(rep.updates)-1] != 10 {
		t.Errorf("updates = %v, want last update 10", rep.updates)
	}
	for i := 1; i < len(rep.updates); i++ {
		if rep.updates[i] <= rep.updates[i-1] {
			t.Errorf("updates not increasing: %v", rep.updates)
		}
	}
}

func TestBusProgress(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	ch := bus.Subscribe(events.EventProgress)

	p := BusFactory(bus)("state.json", "download")
	p.Start(200, "Downloading")
	p.Update(50)
	p.Finish()

	want := []float64{0, 0.25, 1}
	for i, w := range want {
		select {
		case ev := <-ch:
			pe := ev.(*events.ProgressEvent)
			if pe.Progress != w || pe.Name != "state.json" || pe.Stage != "download" {
				t.Errorf("event %d = %+v, want progress %v", i, pe, w)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("missing progress event %d", i)
		}
	}
}

func TestBusProgress_Error(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	ch := bus.Subscribe(events.EventLog)

	NewBusProgress(bus, "retribution_nextturn.miz", "upload").Error(errors.New("reset"))

	select {
	case ev := <-ch:
		le := ev.(*events.LogEvent)
		if le.Level != events.ErrorLevel || le.Source != "upload" {
			t.Errorf("log event = %+v", le)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("missing log event")
	}
}

func TestCLIProgress_NonInteractiveIsSilent(t *testing.T) {
	var out bytes.Buffer
	p := &CLIProgress{out: &out}
	p.Start(100, "Uploading")
	p.Update(50)
	p.Finish()
	p.Error(errors.New("x"))

	if out.Len() != 0 {
		t.Errorf("non-interactive progress wrote %q", out.String())
	}
}
