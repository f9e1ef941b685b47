package flows

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededMint(userID int64) *Mint {
	flow := NewMint(newTextDeps())
	flow.store.Set(userID, mintStepEnterCount, mintPayload{
		Token:   validAddress,
		Name:    "Test Token",
		Symbol:  "TT",
		MintFee: 10_000_000,
		URC:     "launch01",
		Wallet:  validAddress,
	})
	return flow
}

func TestMint_CountOutOfRangeKeepsStep(t *testing.T) {
	flow := seededMint(1)

	for _, input := range []string{"0", "-3", "11", "abc", "1.5"} {
		ctx := textInput(1, input)
		require.NoError(t, flow.HandleText(ctx))

		rec, ok := flow.store.Get(1)
		require.True(t, ok)
		assert.Equal(t, mintStepEnterCount, rec.Step, "input %q must be rejected", input)
		assert.Zero(t, rec.Payload.Count)
		require.NotEmpty(t, ctx.sent)
		assert.Equal(t, "errors.invalid_batch_count", ctx.sent[0])
	}
}

func TestMint_CountAdvancesToConfirm(t *testing.T) {
	for _, count := range []string{"1", "10"} {
		flow := seededMint(1)

		require.NoError(t, flow.HandleText(textInput(1, count)))

		rec, ok := flow.store.Get(1)
		require.True(t, ok)
		assert.Equal(t, mintStepConfirm, rec.Step)
		assert.NotZero(t, rec.Payload.Count)
		assert.Equal(t, "launch01", rec.Payload.URC, "earlier fields survive the advance")
	}
}
