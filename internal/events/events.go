// Package events carries page, recalculation and drag notifications from the
// engine to observers such as the CLI and tests.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tagview/tagview/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventProgress EventType = "progress"
	EventLog      EventType = "log"

	// Page lifecycle
	EventPageRequested EventType = "page_requested" // Load submitted to the pool
	EventPageLoaded    EventType = "page_loaded"    // Rows arrived and were applied
	EventPageFailed    EventType = "page_failed"    // Retries exhausted, page back to Unloaded
	EventPageEvicted   EventType = "page_evicted"   // Rows freed, aspect ratios kept

	// Recalculation lifecycle
	EventRecalcScheduled EventType = "recalc_scheduled" // Debounce timer armed
	EventLayoutApplied   EventType = "layout_applied"   // Result swapped in
	EventLayoutDiscarded EventType = "layout_discarded" // Stale generation dropped
	EventWatchdogFired   EventType = "watchdog_fired"   // Pass abandoned

	EventDragState EventType = "drag_state"
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

// ProgressEvent represents progress of a long running operation (directory scans)
type ProgressEvent struct {
	BaseEvent
	Operation string
	Stage     string
	Progress  float64 // 0.0 to 1.0
	Current   int64
	Total     int64
	Message   string
}

// LogEvent represents log messages
type LogEvent struct {
	BaseEvent
	Level   LogLevel
	Message string
	Stage   string
	Error   error
}

// PageEvent reports a page state transition.
type PageEvent struct {
	BaseEvent
	Page    int
	Epoch   uint64
	Rows    int
	Attempt int
	Error   error
}

// RecalcEvent reports scheduler and apply activity.
type RecalcEvent struct {
	BaseEvent
	Generation  uint64
	Trigger     string
	Delay       time.Duration
	Items       int
	TotalHeight int
	StartPage   int
	EndPage     int
	FullLayout  bool
	Elapsed     time.Duration
}

// DragEvent reports drag controller transitions.
type DragEvent struct {
	BaseEvent
	State      string
	TargetPage int
	Fraction   float64
	Anchor     int
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

// Publish sends an event to all subscribers without blocking.
// Events for a full subscriber are dropped and counted.
// A nil bus is a valid no-op publisher.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}
	eb.deliver(eb.subscribers[event.Type()], event)
	eb.deliver(eb.all, event)
}

func (eb *EventBus) deliver(chans []chan Event, event Event) {
	for _, ch := range chans {
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

// PublishLog is a convenience method for publishing log events
func (eb *EventBus) PublishLog(level LogLevel, message, stage string, err error) {
	eb.Publish(&LogEvent{
		BaseEvent: BaseEvent{
			EventType: EventLog,
			Time:      time.Now(),
		},
		Level:   level,
		Message: message,
		Stage:   stage,
		Error:   err,
	})
}

// PublishProgress is a convenience method for publishing progress events
func (eb *EventBus) PublishProgress(operation, stage string, current, total int64, message string) {
	var fraction float64
	if total > 0 {
		fraction = float64(current) / float64(total)
	}
	eb.Publish(&ProgressEvent{
		BaseEvent: BaseEvent{
			EventType: EventProgress,
			Time:      time.Now(),
		},
		Operation: operation,
		Stage:     stage,
		Progress:  fraction,
		Current:   current,
		Total:     total,
		Message:   message,
	})
}

// PublishPage is a convenience method for publishing page lifecycle events
func (eb *EventBus) PublishPage(eventType EventType, page int, epoch uint64, rows, attempt int, err error) {
	eb.Publish(&PageEvent{
		BaseEvent: BaseEvent{
			EventType: eventType,
			Time:      time.Now(),
		},
		Page:    page,
		Epoch:   epoch,
		Rows:    rows,
		Attempt: attempt,
		Error:   err,
	})
}

// Unsubscribe removes a subscription channel from a specific event type
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.subscribers[eventType] = without(eb.subscribers[eventType], ch)
}

// UnsubscribeAll removes a subscription channel wherever it is registered.
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	for eventType, subscribers := range eb.subscribers {
		eb.subscribers[eventType] = without(subscribers, ch)
	}
	eb.all = without(eb.all, ch)
}

// without drops the first occurrence of ch. Order is not preserved.
func without(chans []chan Event, ch <-chan Event) []chan Event {
	for i, c := range chans {
		if c == ch {
			chans[i] = chans[len(chans)-1]
			return chans[:len(chans)-1]
		}
	}
	return chans
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}

// ResetDroppedEventCount resets the dropped event counter to zero
func (eb *EventBus) ResetDroppedEventCount() int64 {
	return eb.droppedEvents.Swap(0)
}
