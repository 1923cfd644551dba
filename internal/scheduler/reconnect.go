package scheduler

import (
	"sync"
	"time"

	"adaptive-trading-bot/internal/events"
	"adaptive-trading-bot/internal/exchange"

	"github.com/rs/zerolog"
)

// Reconnect backoff bounds.
const (
	backoffStart = 2 * time.Second
	backoffCap   = 60 * time.Second
)

// Reconnector governs reconnect attempts with exponential backoff so a
// flapping connection never turns into a reconnect storm.
type Reconnector struct {
	mu          sync.Mutex
	client      exchange.Client
	bus         *events.Bus
	logger      zerolog.Logger
	backoff     time.Duration
	lastAttempt time.Time
}

// NewReconnector creates a reconnector with the starting backoff.
func NewReconnector(client exchange.Client, bus *events.Bus, logger zerolog.Logger) *Reconnector {
	return &Reconnector{
		client:  client,
		bus:     bus,
		logger:  logger.With().Str("component", "reconnector").Logger(),
		backoff: backoffStart,
	}
}

// MaybeReconnect attempts a reconnect only if the backoff window since the
// last attempt has elapsed. Returns whether an attempt was made.
func (r *Reconnector) MaybeReconnect(now time.Time) bool {
	r.mu.Lock()
	if !r.lastAttempt.IsZero() && now.Sub(r.lastAttempt) < r.backoff {
		r.mu.Unlock()
		return false
	}
	r.mu.Unlock()

	r.attempt(now)
	return true
}

// ForceReconnect attempts a reconnect immediately, bypassing the backoff
// window. Used after repeated cycle failures.
func (r *Reconnector) ForceReconnect(now time.Time) {
	r.attempt(now)
}

func (r *Reconnector) attempt(now time.Time) {
	r.mu.Lock()
	r.lastAttempt = now
	r.mu.Unlock()

	err := r.client.Connect()

	r.mu.Lock()
	if err != nil {
		r.backoff *= 2
		if r.backoff > backoffCap {
			r.backoff = backoffCap
		}
	} else {
		r.backoff = backoffStart
	}
	backoff := r.backoff
	r.mu.Unlock()

	if r.bus != nil {
		r.bus.Publish(events.Event{
			Type: events.EventReconnectAttempt,
			Data: map[string]interface{}{
				"success":      err == nil,
				"next_backoff": backoff.String(),
			},
		})
	}

	if err != nil {
		r.logger.Warn().Err(err).Dur("next_backoff", backoff).Msg("reconnect attempt failed")
	} else {
		r.logger.Info().Msg("exchange connection restored")
	}
}

// Backoff returns the current backoff window, for status reporting.
func (r *Reconnector) Backoff() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backoff
}
