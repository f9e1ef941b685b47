package solana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEven(t *testing.T) {
	testCases := []struct {
		name  string
		total uint64
		n     int
		want  []uint64
	}{
		{name: "exact division", total: 100, n: 4, want: []uint64{25, 25, 25, 25}},
		{name: "remainder to first", total: 103, n: 4, want: []uint64{28, 25, 25, 25}},
		{name: "single recipient", total: 7, n: 1, want: []uint64{7}},
		{name: "zero total", total: 0, n: 3, want: []uint64{0, 0, 0}},
		{name: "fewer units than recipients", total: 2, n: 5, want: []uint64{2, 0, 0, 0, 0}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := SplitEven(tc.total, tc.n)
			assert.Equal(t, tc.want, got)

			var sum uint64
			for _, v := range got {
				sum += v
			}
			assert.Equal(t, tc.total, sum, "allocations must sum to the total")
		})
	}
}

func TestSplitEven_InvalidCount(t *testing.T) {
	assert.Nil(t, SplitEven(10, 0))
	assert.Nil(t, SplitEven(10, -1))
}

func TestParseAmount(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		decimals uint8
		want     uint64
		wantErr  bool
	}{
		{name: "whole sol", text: "1", decimals: 9, want: LamportsPerSOL},
		{name: "fractional", text: "0.5", decimals: 9, want: 500_000_000},
		{name: "trailing spaces", text: " 2.25 ", decimals: 9, want: 2_250_000_000},
		{name: "full precision", text: "0.000000001", decimals: 9, want: 1},
		{name: "token decimals", text: "12.34", decimals: 2, want: 1234},
		{name: "zero", text: "0", decimals: 9, wantErr: true},
		{name: "negative", text: "-5", decimals: 9, wantErr: true},
		{name: "not a number", text: "abc", decimals: 9, wantErr: true},
		{name: "too precise", text: "0.0000000001", decimals: 9, wantErr: true},
		{name: "empty", text: "", decimals: 9, wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseAmount(tc.text, tc.decimals)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1", FormatAmount(LamportsPerSOL, 9))
	assert.Equal(t, "0.5", FormatAmount(500_000_000, 9))
	assert.Equal(t, "2.25", FormatAmount(2_250_000_000, 9))
	assert.Equal(t, "42", FormatAmount(42, 0))
	assert.Equal(t, "0.000000001", FormatAmount(1, 9))
}

func TestValidAddress(t *testing.T) {
	assert.True(t, ValidAddress("11111111111111111111111111111111"))
	assert.True(t, ValidAddress("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"))
	assert.False(t, ValidAddress(""))
	assert.False(t, ValidAddress("not-an-address"))
	assert.False(t, ValidAddress("abc"))
	assert.False(t, ValidAddress("0x52908400098527886E0F7030069857D2E4169EE7"))
}
