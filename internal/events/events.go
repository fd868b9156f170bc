package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/retribution/retctl/internal/constants"
	"github.com/retribution/retctl/internal/models"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventProgress    EventType = "progress"
	EventLog         EventType = "log"
	EventModeChanged EventType = "mode_changed" // Session switched between login and control
	EventStatus      EventType = "status"       // A status poll was applied
	EventBusy        EventType = "busy"         // Busy indicator toggled
	EventAlert       EventType = "alert"        // User-facing notice
)

// LogLevel defines log severity levels
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Severity distinguishes informational notices from failures.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "info"
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// ProgressEvent represents transfer progress updates
type ProgressEvent struct {
	BaseEvent
	Name         string  // File being transferred
	Stage        string  // "upload" or "download"
	Progress     float64 // 0.0 to 1.0
	BytesCurrent int64
	BytesTotal   int64
	Message      string
}

// LogEvent represents log messages
type LogEvent struct {
	BaseEvent
	Level   LogLevel
	Message string
	Source  string
	Error   error
}

// ModeChangedEvent is published on every session state transition.
type ModeChangedEvent struct {
	BaseEvent
	Mode     string // "unauthenticated", "validating", "control"
	Previous string
	Title    string // Heading of the mounted partial, if any
	Reason   string
}

// StatusEvent carries a freshly applied server status and its projection.
type StatusEvent struct {
	BaseEvent
	Status     *models.ServerStatus
	View       models.ControlView
	Generation uint64
}

// BusyEvent reports the busy indicator turning on or off.
type BusyEvent struct {
	BaseEvent
	Busy bool
}

// AlertEvent is a message the operator must acknowledge.
type AlertEvent struct {
	BaseEvent
	Severity Severity
	Message  string
	Source   string // "login", "upload", "download"
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers. It never blocks; events for a
// subscriber whose buffer is full are dropped and counted.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range eb.all {
		close(ch)
	}
}

func base(t EventType) BaseEvent {
	return BaseEvent{EventType: t, Time: time.Now()}
}

// PublishLog is a convenience method for publishing log events
func (eb *EventBus) PublishLog(level LogLevel, message, source string, err error) {
	eb.Publish(&LogEvent{
		BaseEvent: base(EventLog),
		Level:     level,
		Message:   message,
		Source:    source,
		Error:     err,
	})
}

// PublishProgress is a convenience method for publishing progress events
func (eb *EventBus) PublishProgress(name, stage string, current, total int64) {
	var fraction float64
	if total > 0 {
		fraction = float64(current) / float64(total)
	}
	eb.Publish(&ProgressEvent{
		BaseEvent:    base(EventProgress),
		Name:         name,
		Stage:        stage,
		Progress:     fraction,
		BytesCurrent: current,
		BytesTotal:   total,
	})
}

// PublishMode is a convenience method for publishing session transitions
func (eb *EventBus) PublishMode(mode, previous, title, reason string) {
	eb.Publish(&ModeChangedEvent{
		BaseEvent: base(EventModeChanged),
		Mode:      mode,
		Previous:  previous,
		Title:     title,
		Reason:    reason,
	})
}

// PublishStatus is a convenience method for publishing applied status
func (eb *EventBus) PublishStatus(status *models.ServerStatus, view models.ControlView, generation uint64) {
	eb.Publish(&StatusEvent{
		BaseEvent:  base(EventStatus),
		Status:     status,
		View:       view,
		Generation: generation,
	})
}

// PublishBusy is a convenience method for publishing busy indicator changes
func (eb *EventBus) PublishBusy(busy bool) {
	eb.Publish(&BusyEvent{BaseEvent: base(EventBusy), Busy: busy})
}

// PublishAlert is a convenience method for publishing user-facing notices
func (eb *EventBus) PublishAlert(severity Severity, source, message string) {
	eb.Publish(&AlertEvent{
		BaseEvent: base(EventAlert),
		Severity:  severity,
		Message:   message,
		Source:    source,
	})
}

// Unsubscribe removes a subscription channel from a specific event type
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	subscribers := eb.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			break
		}
	}
}

// UnsubscribeAll removes a subscription channel from all event types
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	for eventType, subscribers := range eb.subscribers {
		for i, subCh := range subscribers {
			if subCh == ch {
				subscribers[i] = subscribers[len(subscribers)-1]
				eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
				break
			}
		}
	}

	for i, subCh := range eb.all {
		if subCh == ch {
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			break
		}
	}
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}
