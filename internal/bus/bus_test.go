package bus

import (
	"log/slog"
	"testing"
	"time"

	"alexbot/internal/domain"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := New(10, slog.Default())
	defer b.Close()

	b.Publish(domain.InboundMessage{ChatID: 1, Text: "first"})
	b.Publish(domain.InboundMessage{ChatID: 2, Text: "second"})

	inbound := b.Subscribe()
	msg := <-inbound
	if msg.ChatID != 1 || msg.Text != "first" {
		t.Fatalf("unexpected first message: %+v", msg)
	}
	msg = <-inbound
	if msg.ChatID != 2 || msg.Text != "second" {
		t.Fatalf("unexpected second message: %+v", msg)
	}
}

func TestBus_CloseStopsSubscribers(t *testing.T) {
	b := New(1, slog.Default())
	b.Close()

	select {
	case _, ok := <-b.Subscribe():
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("subscribe did not observe close")
	}
}

func TestBus_PublishAfterCloseDoesNotPanic(t *testing.T) {
	b := New(1, slog.Default())
	b.Close()
	b.Publish(domain.InboundMessage{ChatID: 1}) // dropped with a warning
}

func TestBus_DoubleCloseIsSafe(t *testing.T) {
	b := New(1, slog.Default())
	b.Close()
	b.Close()
}

func TestBus_DefaultBufferSize(t *testing.T) {
	b := New(0, slog.Default())
	defer b.Close()
	if cap(b.inbound) != 100 {
		t.Fatalf("expected default buffer of 100, got %d", cap(b.inbound))
	}
}
