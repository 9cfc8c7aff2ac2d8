package telephony

import (
	"context"
	"errors"
)

// ErrProvider marks a failure at the voice/SMS provider boundary. Callers
// surface it without retrying; retry policy belongs to the provider adapter,
// not the core.
var ErrProvider = errors.New("telephony: provider request failed")

// Provider defines the provider-agnostic interface used by business logic.
//
// Rules:
// - No provider SDK calls outside telephony adapters.
// - Keep request/response types provider-agnostic; raw payloads stay at the
//   adapter boundary.
type Provider interface {
	Name() string
	HealthCheck(ctx context.Context) error

	// PlaceCall originates an outbound call leg and returns the provider's
	// correlation token for later control operations.
	PlaceCall(ctx context.Context, from, to string) (providerCallID string, err error)

	// SendSMS dispatches one text message.
	SendSMS(ctx context.Context, from, to, body string) error

	// EndCall tears down a previously placed call.
	EndCall(ctx context.Context, providerCallID string) error
}
