package errors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name      string
		err       error
		wantKey   string
		wantRetry bool
	}{
		{
			name:      "deadline exceeded",
			err:       context.DeadlineExceeded,
			wantKey:   "errors.timeout",
			wantRetry: true,
		},
		{
			name:      "timeout substring",
			err:       errors.New("rpc call timed out after 30s"),
			wantKey:   "errors.timeout",
			wantRetry: true,
		},
		{
			name:      "insufficient funds",
			err:       errors.New("Transfer: insufficient lamports 100, need 5000"),
			wantKey:   "errors.insufficient_balance",
			wantRetry: false,
		},
		{
			name:      "not found",
			err:       errors.New("token account does not exist"),
			wantKey:   "errors.not_found",
			wantRetry: false,
		},
		{
			name:      "network",
			err:       errors.New("dial tcp: connection refused"),
			wantKey:   "errors.network",
			wantRetry: true,
		},
		{
			name:      "invalid transaction",
			err:       errors.New("invalid blockhash"),
			wantKey:   "errors.invalid_transaction",
			wantRetry: false,
		},
		{
			name:      "unknown",
			err:       errors.New("something odd"),
			wantKey:   "errors.unknown",
			wantRetry: false,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			appErr := Classify("submit transfer", tc.err)
			require.NotNil(t, appErr)
			assert.Equal(t, tc.wantKey, appErr.UserMessage)
			assert.Equal(t, tc.wantRetry, appErr.Retryable)
		})
	}
}

func TestClassify_PassthroughAndNil(t *testing.T) {
	assert.Nil(t, Classify("op", nil))

	orig := NewInsufficientFundsError(100, 5000)
	assert.Same(t, orig, Classify("op", orig))
}
