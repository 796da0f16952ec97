package exchange

import (
	"errors"
	"fmt"
	"testing"

	"github.com/adshao/go-binance/v2/common"
	"github.com/stretchr/testify/assert"

	"makerfill/internal/core"
)

func TestClassifyVenueCodes(t *testing.T) {
	tests := []struct {
		name string
		code int64
		want core.OutcomeKind
	}{
		{name: "unknown order", code: -2011, want: core.OutcomeAlreadyGone},
		{name: "post-only would match", code: -5022, want: core.OutcomeAlreadyGone},
		{name: "quantity too small", code: -4003, want: core.OutcomeBelowMinimumSize},
		{name: "reduce-only rejected", code: -2022, want: core.OutcomeReduceOnlyRejected},
		{name: "under min notional", code: -4164, want: core.OutcomeNotionalTooSmall},
		{name: "bad parameter", code: -1102, want: core.OutcomeMalformedRequest},
		{name: "unclassified venue code", code: -1000, want: core.OutcomeFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &common.APIError{Code: tt.code, Message: tt.name}
			outcome := classify(err)
			assert.Equal(t, tt.want, outcome.Kind)
			assert.ErrorIs(t, outcome.Err, err)
		})
	}
}

func TestClassifyNil(t *testing.T) {
	outcome := classify(nil)
	assert.True(t, outcome.OK())
	assert.NoError(t, outcome.Err)
}

func TestClassifyWrappedAPIError(t *testing.T) {
	wrapped := fmt.Errorf("place order: %w", &common.APIError{Code: -2011})
	assert.Equal(t, core.OutcomeAlreadyGone, classify(wrapped).Kind)
}

func TestClassifyTransportError(t *testing.T) {
	outcome := classify(errors.New("connection reset by peer"))
	assert.Equal(t, core.OutcomeFatal, outcome.Kind)
	assert.Error(t, outcome.Err)
}
