package events

import (
	"errors"
	"testing"
	"time"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventPageLoaded)

	bus.PublishPage(EventPageLoaded, 7, 2, 1000, 1, nil)

	select {
	case received := <-ch:
		page, ok := received.(*PageEvent)
		if !ok {
			t.Fatal("Expected PageEvent")
		}
		if page.Page != 7 {
			t.Errorf("Expected page 7, got %d", page.Page)
		}
		if page.Rows != 1000 {
			t.Errorf("Expected 1000 rows, got %d", page.Rows)
		}
		if page.Epoch != 2 {
			t.Errorf("Expected epoch 2, got %d", page.Epoch)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}
}

func TestEventBus_MultipleSubscribers(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch1 := bus.Subscribe(EventLog)
	ch2 := bus.Subscribe(EventLog)

	bus.PublishLog(InfoLevel, "Test log", "test", nil)

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(100 * time.Millisecond):
			t.Errorf("Subscriber %d did not receive event", i+1)
		}
	}
}

func TestEventBus_DifferentEventTypes(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	loaded := bus.Subscribe(EventPageLoaded)
	evicted := bus.Subscribe(EventPageEvicted)

	bus.PublishPage(EventPageEvicted, 3, 0, 0, 0, nil)

	select {
	case <-loaded:
		t.Error("page_loaded subscriber should not receive page_evicted events")
	case <-time.After(50 * time.Millisecond):
	}

	select {
	case ev := <-evicted:
		if ev.Type() != EventPageEvicted {
			t.Errorf("Expected %s, got %s", EventPageEvicted, ev.Type())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for page_evicted event")
	}
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	all := bus.SubscribeAll()

	bus.PublishPage(EventPageRequested, 0, 0, 0, 0, nil)
	bus.PublishLog(WarnLevel, "warn", "", nil)
	bus.Publish(&RecalcEvent{BaseEvent: BaseEvent{EventType: EventLayoutApplied, Time: time.Now()}, Generation: 4})

	got := 0
	timeout := time.After(200 * time.Millisecond)
	for got < 3 {
		select {
		case <-all:
			got++
		case <-timeout:
			t.Fatalf("Expected 3 events, got %d", got)
		}
	}
}

func TestEventBus_NonBlocking(t *testing.T) {
	bus := NewEventBus(1)
	defer bus.Close()

	_ = bus.Subscribe(EventDragState)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			bus.Publish(&DragEvent{BaseEvent: BaseEvent{EventType: EventDragState, Time: time.Now()}, TargetPage: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	if dropped := bus.GetDroppedEventCount(); dropped != 4 {
		t.Errorf("Expected 4 dropped events, got %d", dropped)
	}
	if reset := bus.ResetDroppedEventCount(); reset != 4 {
		t.Errorf("Expected reset to return 4, got %d", reset)
	}
	if bus.GetDroppedEventCount() != 0 {
		t.Error("Expected dropped count to be 0 after reset")
	}
}

func TestEventBus_Close(t *testing.T) {
	bus := NewEventBus(10)
	ch := bus.Subscribe(EventLog)

	bus.Close()
	bus.Close()

	if _, ok := <-ch; ok {
		t.Error("Expected channel to be closed")
	}

	late := bus.Subscribe(EventLog)
	if _, ok := <-late; ok {
		t.Error("Expected subscription after Close to be closed")
	}

	// Publishing after close must not panic
	bus.PublishLog(InfoLevel, "after close", "", nil)
}

func TestEventBus_NilPublish(t *testing.T) {
	var bus *EventBus
	bus.PublishPage(EventPageLoaded, 1, 0, 0, 0, nil)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventPageFailed)
	bus.Unsubscribe(EventPageFailed, ch)

	bus.PublishPage(EventPageFailed, 1, 0, 0, 4, errors.New("boom"))

	select {
	case <-ch:
		t.Error("Unsubscribed channel received an event")
	case <-time.After(50 * time.Millisecond):
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
		{LogLevel(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("LogLevel(%d).String() = %s, want %s", tt.level, got, tt.expected)
		}
	}
}

func TestPublishProgress_Fraction(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventProgress)
	bus.PublishProgress("index", "scan", 25, 100, "")
	bus.PublishProgress("index", "scan", 0, 0, "")

	for _, want := range []float64{0.25, 0} {
		select {
		case ev := <-ch:
			p := ev.(*ProgressEvent)
			if p.Progress != want {
				t.Errorf("Expected progress %v, got %v", want, p.Progress)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("Timeout waiting for progress event")
		}
	}
}
