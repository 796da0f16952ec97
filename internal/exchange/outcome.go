package exchange

import (
	"errors"

	"github.com/adshao/go-binance/v2/common"

	"makerfill/internal/core"
)

// Venue error codes that encode normal "nothing left to do" conditions.
const (
	codeUnknownOrder     = -2011 // order already matched or cancelled
	codePostOnlyRejected = -5022 // GTX order would have matched immediately
	codeQuantityTooSmall = -4003 // quantity less than or equal to zero
	codeReduceOnlyReject = -2022 // reduce-only order rejected, nothing to reduce
	codeMinNotional      = -4164 // order notional under the venue minimum
	codeBadParameter     = -1102 // mandatory parameter missing or malformed
)

// classify maps a venue error into the closed outcome set. It is the only
// place raw venue codes are inspected.
func classify(err error) core.Outcome {
	if err == nil {
		return core.Outcome{Kind: core.OutcomeOK}
	}

	var apiErr *common.APIError
	if !errors.As(err, &apiErr) {
		// Transport-level failure, not a venue response.
		return core.Outcome{Kind: core.OutcomeFatal, Err: err}
	}

	switch apiErr.Code {
	case codeUnknownOrder, codePostOnlyRejected:
		return core.Outcome{Kind: core.OutcomeAlreadyGone, Err: err}
	case codeQuantityTooSmall:
		return core.Outcome{Kind: core.OutcomeBelowMinimumSize, Err: err}
	case codeReduceOnlyReject:
		return core.Outcome{Kind: core.OutcomeReduceOnlyRejected, Err: err}
	case codeMinNotional:
		return core.Outcome{Kind: core.OutcomeNotionalTooSmall, Err: err}
	case codeBadParameter:
		return core.Outcome{Kind: core.OutcomeMalformedRequest, Err: err}
	default:
		return core.Outcome{Kind: core.OutcomeFatal, Err: err}
	}
}
