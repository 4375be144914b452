package rpcclient

import (
	"math/big"
	"testing"
)

func TestGasPriceEscalation(t *testing.T) {
	base := big.NewInt(10_000_000_000) // 10 Gwei
	cases := []struct {
		attempt int
		want    int64
	}{
		{0, 10_000_000_000},
		{1, 12_000_000_000},
		{2, 14_000_000_000},
	}
	for _, tc := range cases {
		got := new(big.Int).Set(base)
		if tc.attempt > 0 {
			multiplier := big.NewInt(int64(100 + 20*tc.attempt))
			got = new(big.Int).Div(new(big.Int).Mul(got, multiplier), big.NewInt(100))
		}
		if got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Errorf("attempt %d: got %s, want %d", tc.attempt, got, tc.want)
		}
	}
}
