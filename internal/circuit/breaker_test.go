package circuit

import (
	"math"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestAllowEntryWhenClosed(t *testing.T) {
	b := NewBreaker(nil)
	if allowed, reason := b.AllowEntry(); !allowed {
		t.Errorf("fresh breaker should allow entries, got reason %q", reason)
	}
	if state, _ := b.State(); state != StateClosed {
		t.Errorf("fresh breaker state = %s, want %s", state, StateClosed)
	}
}

func TestDisabledBreakerAlwaysAllows(t *testing.T) {
	b := NewBreaker(&Config{Enabled: false})
	for i := 0; i < 20; i++ {
		b.RecordOutcome(-10)
	}
	if allowed, _ := b.AllowEntry(); !allowed {
		t.Error("disabled breaker must never block entries")
	}
	if state, _ := b.State(); state != StateClosed {
		t.Errorf("disabled breaker state = %s, want %s", state, StateClosed)
	}
}

func TestConsecutiveLossesTrip(t *testing.T) {
	b := NewBreaker(&Config{
		Enabled:              true,
		MaxLossPerHour:       1000,
		MaxConsecutiveLosses: 3,
		CooldownMinutes:      30,
		MaxDailyLoss:         1000,
	})

	b.RecordOutcome(-0.1)
	b.RecordOutcome(-0.1)
	if state, _ := b.State(); state != StateClosed {
		t.Fatalf("two losses should not trip, state = %s", state)
	}

	b.RecordOutcome(-0.1)
	state, reason := b.State()
	if state != StateOpen {
		t.Fatalf("third consecutive loss should trip, state = %s", state)
	}
	if !strings.Contains(reason, "consecutive") {
		t.Errorf("trip reason = %q, want consecutive-loss reason", reason)
	}
	if allowed, _ := b.AllowEntry(); allowed {
		t.Error("open breaker must block entries")
	}
}

func TestWinResetsConsecutiveLosses(t *testing.T) {
	b := NewBreaker(&Config{
		Enabled:              true,
		MaxLossPerHour:       1000,
		MaxConsecutiveLosses: 3,
		CooldownMinutes:      30,
		MaxDailyLoss:         1000,
	})

	b.RecordOutcome(-0.1)
	b.RecordOutcome(-0.1)
	b.RecordOutcome(0.5)
	b.RecordOutcome(-0.1)
	b.RecordOutcome(-0.1)

	if state, _ := b.State(); state != StateClosed {
		t.Errorf("win should have reset the loss streak, state = %s", state)
	}
}

func TestHourlyLossTrips(t *testing.T) {
	b := NewBreaker(&Config{
		Enabled:              true,
		MaxLossPerHour:       3.0,
		MaxConsecutiveLosses: 100,
		CooldownMinutes:      30,
		MaxDailyLoss:         1000,
	})

	b.RecordOutcome(-1.6)
	b.RecordOutcome(0.1) // streak reset does not clear accumulated loss
	b.RecordOutcome(-1.6)

	state, reason := b.State()
	if state != StateOpen {
		t.Fatalf("hourly loss of 3.2%% should trip the 3%% limit, state = %s", state)
	}
	if !strings.Contains(reason, "hourly") {
		t.Errorf("trip reason = %q, want hourly-loss reason", reason)
	}
}

func TestDailyLossTrips(t *testing.T) {
	b := NewBreaker(&Config{
		Enabled:              true,
		MaxLossPerHour:       1000,
		MaxConsecutiveLosses: 100,
		CooldownMinutes:      30,
		MaxDailyLoss:         5.0,
	})

	for i := 0; i < 6; i++ {
		b.RecordOutcome(-1.0)
	}
	state, reason := b.State()
	if state != StateOpen {
		t.Fatalf("daily loss of 6%% should trip the 5%% limit, state = %s", state)
	}
	if !strings.Contains(reason, "daily") {
		t.Errorf("trip reason = %q, want daily-loss reason", reason)
	}
}

func TestCooldownMovesToHalfOpen(t *testing.T) {
	b := NewBreaker(&Config{
		Enabled:              true,
		MaxLossPerHour:       1000,
		MaxConsecutiveLosses: 2,
		CooldownMinutes:      0,
		MaxDailyLoss:         1000,
	})

	b.RecordOutcome(-0.1)
	b.RecordOutcome(-0.1)
	if state, _ := b.State(); state != StateOpen {
		t.Fatal("breaker should be open")
	}

	// Zero cooldown: the next entry check probes half-open, but the loss
	// streak still blocks until an outcome clears it.
	allowed, _ := b.AllowEntry()
	if allowed {
		t.Error("loss streak should still block right after cooldown")
	}
	if state, _ := b.State(); state != StateHalfOpen {
		t.Errorf("state after cooldown = %s, want %s", state, StateHalfOpen)
	}

	b.RecordOutcome(1.0)
	if state, _ := b.State(); state != StateClosed {
		t.Errorf("win in half-open should close the breaker, state = %s", state)
	}
	if allowed, reason := b.AllowEntry(); !allowed {
		t.Errorf("closed breaker should allow entries, got reason %q", reason)
	}
}

func TestNonFiniteOutcomesIgnored(t *testing.T) {
	b := NewBreaker(&Config{
		Enabled:              true,
		MaxLossPerHour:       0.1,
		MaxConsecutiveLosses: 1,
		CooldownMinutes:      30,
		MaxDailyLoss:         0.1,
	})

	b.RecordOutcome(math.NaN())
	b.RecordOutcome(math.Inf(-1))

	if state, _ := b.State(); state != StateClosed {
		t.Errorf("non-finite outcomes must be ignored, state = %s", state)
	}
}

func TestOnTripCallback(t *testing.T) {
	b := NewBreaker(&Config{
		Enabled:              true,
		MaxLossPerHour:       1000,
		MaxConsecutiveLosses: 1,
		CooldownMinutes:      30,
		MaxDailyLoss:         1000,
	})

	var wg sync.WaitGroup
	wg.Add(1)
	var got string
	b.OnTrip(func(reason string) {
		got = reason
		wg.Done()
	})

	b.RecordOutcome(-0.5)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("trip callback was never invoked")
	}
	if got == "" {
		t.Error("trip callback should receive a reason")
	}
}
