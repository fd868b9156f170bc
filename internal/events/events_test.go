package events

import (
	"testing"
	"time"

	"github.com/retribution/retctl/internal/models"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventProgress)

	bus.PublishProgress("retribution_nextturn.miz", "upload", 50, 100)

	select {
	case received := <-ch:
		progress, ok := received.(*ProgressEvent)
		if !ok {
			t.Fatal("Expected ProgressEvent")
		}
		if progress.Name != "retribution_nextturn.miz" {
			t.Errorf("Expected name 'retribution_nextturn.miz', got '%s'", progress.Name)
		}
		if progress.Progress != 0.5 {
			t.Errorf("Expected progress 0.5, got %f", progress.Progress)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}
}

func TestEventBus_MultipleSubscribers(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch1 := bus.Subscribe(EventAlert)
	ch2 := bus.Subscribe(EventAlert)

	bus.PublishAlert(SeverityError, "login", "Invalid username or password")

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			alert := ev.(*AlertEvent)
			if alert.Severity != SeverityError || alert.Source != "login" {
				t.Errorf("subscriber %d got %+v", i, alert)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("subscriber %d did not receive the event", i)
		}
	}
}

func TestEventBus_DifferentEventTypes(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	busyCh := bus.Subscribe(EventBusy)
	statusCh := bus.Subscribe(EventStatus)

	bus.PublishBusy(true)

	select {
	case ev := <-busyCh:
		if !ev.(*BusyEvent).Busy {
			t.Error("expected busy=true")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Busy subscriber didn't receive event")
	}

	select {
	case <-statusCh:
		t.Error("Status subscriber received wrong event type")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	allCh := bus.SubscribeAll()

	bus.PublishMode("control", "validating", "Server Control", "validated")
	bus.PublishStatus(&models.ServerStatus{Status: "stopped"}, models.ControlView{Known: true}, 1)

	count := 0
	for i := 0; i < 2; i++ {
		select {
		case <-allCh:
			count++
		case <-time.After(100 * time.Millisecond):
		}
	}

	if count != 2 {
		t.Errorf("Expected to receive 2 events, got %d", count)
	}
}

func TestEventBus_NonBlocking(t *testing.T) {
	bus := NewEventBus(2)
	defer bus.Close()

	ch := bus.Subscribe(EventBusy)

	// Publishing past the buffer must not block
	for i := 0; i < 10; i++ {
		bus.PublishBusy(i%2 == 0)
	}

	count := 0
	for {
		select {
		case <-ch:
			count++
		case <-time.After(10 * time.Millisecond):
			goto done
		}
	}
done:

	if count != 2 {
		t.Errorf("received %d events, want 2 (buffer size)", count)
	}
	if dropped := bus.GetDroppedEventCount(); dropped != 8 {
		t.Errorf("GetDroppedEventCount() = %d, want 8", dropped)
	}
}

func TestEventBus_Close(t *testing.T) {
	bus := NewEventBus(10)

	ch := bus.Subscribe(EventStatus)

	bus.Close()

	if _, ok := <-ch; ok {
		t.Error("Channel should be closed after bus.Close()")
	}

	// Publishing after close should not panic
	bus.PublishBusy(false)

	// Subscribing after close yields a closed channel
	if _, ok := <-bus.Subscribe(EventAlert); ok {
		t.Error("Subscribe after Close should return a closed channel")
	}
}

func TestEventBus_NilPublish(t *testing.T) {
	var bus *EventBus
	bus.PublishAlert(SeverityInfo, "download", "nothing")
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventAlert)
	bus.Unsubscribe(EventAlert, ch)
	bus.PublishAlert(SeverityInfo, "download", "gone")

	select {
	case <-ch:
		t.Error("unsubscribed channel received an event")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{LogLevel(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("Level %d: expected %s, got %s", tt.level, tt.expected, got)
		}
	}
}
