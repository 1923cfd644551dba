// Package circuit implements a trading circuit breaker. The trade
// lifecycle controller consults it before opening new positions and feeds
// it every closed-trade outcome.
package circuit

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// BreakerState represents the circuit breaker state.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"    // normal operation
	StateOpen     BreakerState = "open"      // entries halted
	StateHalfOpen BreakerState = "half_open" // testing recovery
)

// Config holds circuit breaker configuration.
type Config struct {
	Enabled              bool    `json:"enabled"`
	MaxLossPerHour       float64 `json:"max_loss_per_hour"`      // max loss % per hour
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"` // losing trades in a row
	CooldownMinutes      int     `json:"cooldown_minutes"`       // cooldown after trip
	MaxDailyLoss         float64 `json:"max_daily_loss"`         // max daily loss %
}

// DefaultConfig returns safe defaults.
func DefaultConfig() *Config {
	return &Config{
		Enabled:              true,
		MaxLossPerHour:       3.0,
		MaxConsecutiveLosses: 5,
		CooldownMinutes:      30,
		MaxDailyLoss:         5.0,
	}
}

// Breaker halts new entries after a run of bad outcomes and lets them
// resume through a half-open probe once the cooldown passes.
type Breaker struct {
	mu                sync.Mutex
	config            *Config
	state             BreakerState
	consecutiveLosses int
	hourlyLoss        float64
	dailyLoss         float64
	lastTripTime      time.Time
	hourlyResetTime   time.Time
	dailyResetTime    time.Time
	tripReason        string
	onTrip            func(reason string)
}

// NewBreaker creates a circuit breaker.
func NewBreaker(config *Config) *Breaker {
	if config == nil {
		config = DefaultConfig()
	}
	now := time.Now()
	return &Breaker{
		config:          config,
		state:           StateClosed,
		hourlyResetTime: now.Add(time.Hour),
		dailyResetTime:  now.Truncate(24 * time.Hour).Add(24 * time.Hour),
	}
}

// OnTrip sets the callback invoked when the breaker trips.
func (b *Breaker) OnTrip(handler func(reason string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTrip = handler
}

// AllowEntry reports whether new positions may be opened right now.
func (b *Breaker) AllowEntry() (bool, string) {
	if !b.config.Enabled {
		return true, ""
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetCountersIfNeeded()

	if b.state == StateOpen {
		elapsed := time.Since(b.lastTripTime)
		cooldown := time.Duration(b.config.CooldownMinutes) * time.Minute
		if elapsed < cooldown {
			return false, fmt.Sprintf("breaker open, cooldown remaining %v (reason: %s)",
				(cooldown - elapsed).Round(time.Second), b.tripReason)
		}
		b.state = StateHalfOpen
	}

	if b.hourlyLoss >= b.config.MaxLossPerHour {
		return false, fmt.Sprintf("hourly loss limit reached: %.2f%%", b.hourlyLoss)
	}
	if b.dailyLoss >= b.config.MaxDailyLoss {
		return false, fmt.Sprintf("daily loss limit reached: %.2f%%", b.dailyLoss)
	}
	if b.consecutiveLosses >= b.config.MaxConsecutiveLosses {
		return false, fmt.Sprintf("max consecutive losses reached: %d", b.consecutiveLosses)
	}

	return true, ""
}

// RecordOutcome feeds a closed trade's PnL percent into the breaker.
func (b *Breaker) RecordOutcome(pnlPercent float64) {
	if !b.config.Enabled {
		return
	}
	if math.IsNaN(pnlPercent) || math.IsInf(pnlPercent, 0) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetCountersIfNeeded()

	if pnlPercent < 0 {
		b.consecutiveLosses++
		b.hourlyLoss += -pnlPercent
		b.dailyLoss += -pnlPercent
		b.checkAndTrip()
		return
	}

	b.consecutiveLosses = 0
	if b.state == StateHalfOpen {
		b.state = StateClosed
	}
}

// State returns the current breaker state and trip reason, if any.
func (b *Breaker) State() (BreakerState, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state, b.tripReason
}

func (b *Breaker) checkAndTrip() {
	var reason string
	if b.consecutiveLosses >= b.config.MaxConsecutiveLosses {
		reason = fmt.Sprintf("consecutive losses: %d", b.consecutiveLosses)
	} else if b.hourlyLoss >= b.config.MaxLossPerHour {
		reason = fmt.Sprintf("hourly loss: %.2f%%", b.hourlyLoss)
	} else if b.dailyLoss >= b.config.MaxDailyLoss {
		reason = fmt.Sprintf("daily loss: %.2f%%", b.dailyLoss)
	}
	if reason == "" {
		return
	}

	b.state = StateOpen
	b.lastTripTime = time.Now()
	b.tripReason = reason
	if b.onTrip != nil {
		go b.onTrip(reason)
	}
}

func (b *Breaker) resetCountersIfNeeded() {
	now := time.Now()
	if now.After(b.hourlyResetTime) {
		b.hourlyLoss = 0
		b.hourlyResetTime = now.Add(time.Hour)
	}
	if now.After(b.dailyResetTime) {
		b.dailyLoss = 0
		b.dailyResetTime = now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	}
}
