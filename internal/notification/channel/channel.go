// Package channel adapts push gateways to a single per-message result type.
package channel

import (
	"context"
	"errors"
)

// MaxBatchSize is the largest batch a gateway accepts in one call.
const MaxBatchSize = 100

var (
	// ErrTicketMismatch means the gateway answered with a different number of
	// tickets than messages sent, so results cannot be matched by position.
	ErrTicketMismatch = errors.New("TICKET_MISMATCH")
	ErrBatchTooLarge  = errors.New("BATCH_TOO_LARGE")
)

// Message is one delivery to one device.
type Message struct {
	SubscriptionID string
	Token          string
	Title          string
	Body           string
	Data           map[string]string
}

// Outcome classifies a single message result.
type Outcome int

const (
	Delivered Outcome = iota
	RejectedPermanent
	RejectedTransient
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case RejectedPermanent:
		return "rejected_permanent"
	default:
		return "rejected_transient"
	}
}

// Result is the gateway's verdict on the message at the same position.
type Result struct {
	Outcome Outcome
	Reason  string
}

// Channel sends batches of at most MaxBatchSize messages. A non-nil error
// means the batch as a whole was not evaluated; otherwise there is exactly
// one Result per Message, in order.
type Channel interface {
	Name() string
	Send(ctx context.Context, messages []Message) ([]Result, error)
}
