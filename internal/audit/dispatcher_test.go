package audit

import (
	"context"
	"testing"
	"time"
)

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("disabled dispatcher should be nil")
	}
	// nil receiver methods are safe.
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
}

func TestDispatcherDeliversToSink(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8, DropIfFull: true}, sink)

	d.Emit(context.Background(), Event{EventType: "pin_set", Success: true})

	select {
	case ev := <-sink.Events():
		if ev.EventType != "pin_set" || !ev.Success {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("event never reached the sink")
	}
	d.Close()
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16, DropIfFull: true}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "step_advanced"})
	}
	d.Close()

	delivered := 0
	for {
		select {
		case <-sink.Events():
			delivered++
		default:
			if delivered != 5 {
				t.Fatalf("delivered = %d, want 5", delivered)
			}
			return
		}
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Emit(context.Context, Event) {
	<-s.release
}

func TestDispatcherDropAccounting(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// First event occupies the worker, second fills the buffer; the
	// rest must be counted as dropped, never blocking the caller.
	for i := 0; i < 6; i++ {
		d.Emit(context.Background(), Event{EventType: "otp_sent"})
	}

	deadline := time.After(time.Second)
	for d.Dropped() < 4 {
		select {
		case <-deadline:
			t.Fatalf("dropped = %d, want >= 4", d.Dropped())
		case <-time.After(5 * time.Millisecond):
		}
	}

	close(sink.release)
	d.Close()
}

func TestCloseReturnsAgainstSaturatedSink(t *testing.T) {
	// One-slot sink, nobody consuming: the worker delivers one event
	// and then blocks in the sink until Close cancels delivery.
	sink := NewChannelSink(1)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 64, DropIfFull: true}, sink)

	for i := 0; i < 64; i++ {
		d.Emit(context.Background(), Event{EventType: "otp_sent"})
	}

	done := make(chan struct{})
	go func() {
		d.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close hung against an unconsumed sink")
	}
}

func TestEmitAfterCloseIsNoOp(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4, DropIfFull: true}, sink)
	d.Close()

	d.Emit(context.Background(), Event{EventType: "logout"})
	select {
	case ev := <-sink.Events():
		t.Fatalf("event %q delivered after close", ev.EventType)
	default:
	}
}
