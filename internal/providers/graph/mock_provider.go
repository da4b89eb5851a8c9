package graph

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Scenario enumerates the supported mock behaviours. The default scenario is
// success unless overridden at construction time.
type Scenario string

const (
	ScenarioSuccess      Scenario = "success"
	ScenarioTokenFailure Scenario = "token_failure"
	ScenarioSendFailure  Scenario = "send_failure"
)

// MockOption customises the mock provider at construction time.
type MockOption func(*MockProvider)

// WithScenario selects the behaviour simulated by Send.
func WithScenario(s Scenario) MockOption {
	return func(p *MockProvider) {
		p.scenario = s
	}
}

// WithMockClock overrides the clock used for response timestamps.
func WithMockClock(now func() time.Time) MockOption {
	return func(p *MockProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// MockProvider implements Provider for tests and local development. It
// records every accepted message and can simulate each upstream failure mode.
type MockProvider struct {
	mu       sync.Mutex
	logger   zerolog.Logger
	scenario Scenario
	now      func() time.Time
	sent     []*Message
	attempts int
}

// NewMockProvider constructs a mock provider that succeeds by default.
func NewMockProvider(logger zerolog.Logger, opts ...MockOption) *MockProvider {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	p := &MockProvider{
		logger:   logger,
		scenario: ScenarioSuccess,
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p
}

// Send simulates the configured scenario. Token failures never record the
// message, matching the real client where sendMail is not attempted.
func (p *MockProvider) Send(ctx context.Context, msg *Message) (*RawResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++

	switch p.scenario {
	case ScenarioTokenFailure:
		return nil, fmt.Errorf("%w: status 401: invalid client credentials", ErrTokenRequest)
	case ScenarioSendFailure:
		raw := &RawResponse{Code: http.StatusBadGateway, Body: "mailbox unavailable", Timestamp: p.now()}
		return raw, fmt.Errorf("%w: status %d: %s", ErrSendRequest, raw.Code, raw.Body)
	default:
		clone := *msg
		p.sent = append(p.sent, &clone)
		p.logger.Debug().Str("subject", msg.Subject).Msg("mock provider: message accepted")
		return &RawResponse{Code: http.StatusAccepted, Timestamp: p.now()}, nil
	}
}

// Sent returns a copy of the messages accepted so far.
func (p *MockProvider) Sent() []*Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Message(nil), p.sent...)
}

// Attempts reports how many times Send was invoked, regardless of outcome.
func (p *MockProvider) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}
