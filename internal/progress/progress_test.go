package progress

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/tagview/tagview/internal/events"
)

func TestBusProgress(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	ch := bus.Subscribe(events.EventProgress)

	p := NewBusProgress(bus, "index")
	p.Start(4, "scanning")
	p.Update(2)
	p.Finish()

	want := []struct {
		current int64
		stage   string
	}{
		{0, "scanning"},
		{2, "scanning"},
		{4, "scanning"},
	}
	for i, w := range want {
		select {
		case ev := <-ch:
			pe := ev.(*events.ProgressEvent)
			if pe.Current != w.current || pe.Stage != w.stage || pe.Total != 4 {
				t.Errorf("event %d: got current=%d stage=%q total=%d", i, pe.Current, pe.Stage, pe.Total)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for event %d", i)
		}
	}
}

func TestBusProgress_Error(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	ch := bus.Subscribe(events.EventLog)

	p := NewBusProgress(bus, "index")
	p.Error(nil)
	p.Error(errors.New("unreadable"))

	select {
	case ev := <-ch:
		le := ev.(*events.LogEvent)
		if le.Message != "unreadable" || le.Stage != "index" {
			t.Errorf("unexpected log event: %+v", le)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for log event")
	}
}

func TestCLIProgress_Writes(t *testing.T) {
	var buf bytes.Buffer
	p := NewCLIProgressTo(&buf)
	p.Start(3, "scanning")
	p.Update(3)
	p.Finish()

	if buf.Len() == 0 {
		t.Error("Expected progress bar output")
	}
}

func TestCLIProgress_NoStart(t *testing.T) {
	var buf bytes.Buffer
	p := NewCLIProgressTo(&buf)
	// Must not panic before Start
	p.Update(1)
	p.SetDescription("x")
	p.Finish()
}
