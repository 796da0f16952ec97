package core

import "context"

// ILogger defines the logging interface
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}

// OutcomeKind is the closed set of classifications a gateway action can
// produce. The venue encodes "nothing left to do" conditions as error codes
// indistinguishable from real faults without this mapping, so the raw codes
// are classified once at the gateway boundary and never inspected elsewhere.
type OutcomeKind int

const (
	// OutcomeOK means the action succeeded.
	OutcomeOK OutcomeKind = iota
	// OutcomeAlreadyGone means the venue reports the order no longer
	// exists (matched or cancelled); the resting order is treated as
	// cleared, not as an error.
	OutcomeAlreadyGone
	// OutcomeBelowMinimumSize means the remaining quantity is too small
	// to post; the symbol is treated as complete.
	OutcomeBelowMinimumSize
	// OutcomeReduceOnlyRejected means the venue rejected a reduce-only
	// order with nothing left to reduce. Only valid for reduce-only
	// targets; otherwise it escalates to fatal.
	OutcomeReduceOnlyRejected
	// OutcomeNotionalTooSmall means the order notional is under the
	// venue minimum; the symbol is treated as complete.
	OutcomeNotionalTooSmall
	// OutcomeMalformedRequest indicates an internal bug in request
	// construction. Never retried.
	OutcomeMalformedRequest
	// OutcomeFatal is an unclassified venue or transport error.
	OutcomeFatal
)

// String returns a short name for the outcome kind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeAlreadyGone:
		return "already_gone"
	case OutcomeBelowMinimumSize:
		return "below_minimum_size"
	case OutcomeReduceOnlyRejected:
		return "reduce_only_rejected"
	case OutcomeNotionalTooSmall:
		return "notional_too_small"
	case OutcomeMalformedRequest:
		return "malformed_request"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome is the typed result of a gateway action.
type Outcome struct {
	Kind OutcomeKind
	// Err carries the underlying venue error for diagnostics. Set for
	// every non-OK kind.
	Err error
}

// OK reports whether the action succeeded.
func (o Outcome) OK() bool { return o.Kind == OutcomeOK }

// PlaceOrderRequest describes one post-only limit order to place.
type PlaceOrderRequest struct {
	Symbol            string
	Side              Side
	Quantity          float64
	Price             float64
	ReduceOnly        bool
	QuantityPrecision int
	PricePrecision    int
}

// ActionGateway is the boundary wrapper around the venue's order placement
// and cancellation calls. Single-flight per symbol is enforced by the
// caller, not by the gateway.
type ActionGateway interface {
	// Place posts a post-only limit order. The returned order is only
	// valid when the outcome is OK.
	Place(ctx context.Context, req PlaceOrderRequest) (RestingOrder, Outcome)
	// Cancel cancels a resting order by venue order id.
	Cancel(ctx context.Context, symbol string, orderID int64) Outcome
}
