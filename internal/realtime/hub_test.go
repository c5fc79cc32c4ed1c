package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/halldis/tokensight/internal/analytics"
)

func TestClientWantsFilters(t *testing.T) {
	transfer := &Event{Type: EventTransfer, Account: "0xaaa", Amount: 500, RiskScore: 20}
	flagged := &Event{Type: EventAccountFlagged, Account: "0xbbb", RiskScore: 80}

	cases := []struct {
		name string
		sub  Subscription
		ev   *Event
		want bool
	}{
		{"all events", Subscription{AllEvents: true}, transfer, true},
		{"no subscription", Subscription{}, transfer, false},
		{"matching type", Subscription{EventTypes: []EventType{EventTransfer}}, transfer, true},
		{"other type", Subscription{EventTypes: []EventType{EventAccountFlagged}}, transfer, false},
		{"matching account", Subscription{AllEvents: true, Accounts: []string{"0xaaa"}}, transfer, true},
		{"other account", Subscription{AllEvents: true, Accounts: []string{"0xzzz"}}, transfer, false},
		{"amount at floor", Subscription{AllEvents: true, MinAmount: 500}, transfer, true},
		{"amount below floor", Subscription{AllEvents: true, MinAmount: 501}, transfer, false},
		{"amount floor ignores non-transfers", Subscription{AllEvents: true, MinAmount: 10000}, flagged, true},
		{"risk floor passes", Subscription{AllEvents: true, MinRiskScore: 75}, flagged, true},
		{"risk floor blocks", Subscription{AllEvents: true, MinRiskScore: 75}, transfer, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &Client{sub: tc.sub}
			if got := c.wants(tc.ev); got != tc.want {
				t.Errorf("wants = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestHubBroadcastAndShutdown(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	client := &Client{hub: hub, send: make(chan []byte, 16), sub: Subscription{AllEvents: true}}
	hub.register <- client

	hub.Broadcast(&Event{Type: EventTransfer, Account: "0xaaa", Amount: 42})

	select {
	case raw := <-client.send:
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if ev.Type != EventTransfer || ev.Account != "0xaaa" || ev.Amount != 42 {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("broadcast not delivered")
	}

	stats := hub.Stats()
	if stats["connectedClients"].(int) != 1 {
		t.Errorf("connectedClients = %v", stats["connectedClients"])
	}

	cancel()
	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("expected send channel closed on shutdown")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed on shutdown")
	}
}

func TestHubDropsSlowClients(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	// A client with a full (zero-capacity) send buffer.
	slow := &Client{hub: hub, send: make(chan []byte), sub: Subscription{AllEvents: true}}
	hub.register <- slow

	hub.Broadcast(&Event{Type: EventTransfer, Account: "0xaaa"})

	deadline := time.After(time.Second)
	for {
		stats := hub.Stats()
		if stats["connectedClients"].(int) == 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("slow client not evicted")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestNotifierShapesEvents(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &Client{hub: hub, send: make(chan []byte, 16), sub: Subscription{AllEvents: true}}
	hub.register <- client

	n := NewNotifier(hub)
	n.TransferRecorded(
		&analytics.TransferRecord{ID: 7, Account: "0xaaa", Recipient: "0xbbb", Amount: 99, Timestamp: 1234},
		&analytics.AccountProfile{Account: "0xaaa", RiskScore: 30, LoyaltyScore: 40},
	)
	n.AccountFlagged("0xaaa", 80)
	n.DormantReactivation("0xaaa", 20000)

	wantTypes := []EventType{EventTransfer, EventAccountFlagged, EventDormantWake}
	for _, want := range wantTypes {
		select {
		case raw := <-client.send:
			var ev Event
			if err := json.Unmarshal(raw, &ev); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if ev.Type != want {
				t.Errorf("event type = %s, want %s", ev.Type, want)
			}
			if ev.Account != "0xaaa" {
				t.Errorf("event account = %s", ev.Account)
			}
		case <-time.After(time.Second):
			t.Fatalf("event %s not delivered", want)
		}
	}
}
