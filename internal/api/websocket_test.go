package api

import (
	"testing"
	"time"

	"adaptive-trading-bot/internal/events"

	"github.com/rs/zerolog"
)

func startTestHub(t *testing.T, bus *events.Bus) (*WSHub, chan struct{}) {
	t.Helper()
	hub := NewWSHub(bus, zerolog.Nop())
	runDone := make(chan struct{})
	go func() {
		hub.Run()
		close(runDone)
	}()
	return hub, runDone
}

func TestHubBroadcastReachesClient(t *testing.T) {
	bus := events.NewBus()
	hub, _ := startTestHub(t, bus)
	defer hub.Stop()

	client := &WSClient{send: make(chan []byte, 16), hub: hub}
	hub.register <- client

	bus.PublishTradeOpened("BTCUSDT", "LONG", "trend_follow", 50000, 0.01)

	select {
	case payload := <-client.send:
		if len(payload) == 0 {
			t.Error("client received an empty payload")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event never reached the registered client")
	}
}

func TestHubStopEndsRunAndDisconnectsClients(t *testing.T) {
	hub, runDone := startTestHub(t, events.NewBus())

	client := &WSClient{send: make(chan []byte, 16), hub: hub}
	hub.register <- client

	hub.Stop()

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("expected the send channel closed, got a message")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client send channel was not closed on shutdown")
	}
}

func TestHubStopIsIdempotent(t *testing.T) {
	hub, runDone := startTestHub(t, events.NewBus())

	hub.Stop()
	hub.Stop()

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
