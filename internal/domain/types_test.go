package domain

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidChain(t *testing.T) {
	tests := []struct {
		name     string
		chain    Chain
		expected bool
	}{
		{name: "valid ethereum mainnet", chain: ChainEthereumMainnet, expected: true},
		{name: "valid ethereum sepolia", chain: ChainEthereumSepolia, expected: true},
		{name: "valid local devnet", chain: ChainEthereumLocal, expected: true},
		{name: "invalid empty chain", chain: Chain(""), expected: false},
		{name: "invalid tezos chain", chain: Chain("tezos:mainnet"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValidChain(tt.chain))
		})
	}
}

func TestTransactionStatus_CanTransitionTo(t *testing.T) {
	all := []TransactionStatus{TransactionStatusPending, TransactionStatusCompleted, TransactionStatusCancelled}
	allowed := map[[2]TransactionStatus]bool{
		{TransactionStatusPending, TransactionStatusCompleted}: true,
		{TransactionStatusPending, TransactionStatusCancelled}: true,
	}

	for _, from := range all {
		for _, to := range all {
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				assert.Equal(t, allowed[[2]TransactionStatus{from, to}], from.CanTransitionTo(to))
			})
		}
	}
}

func TestTransactionStatus_Terminal(t *testing.T) {
	assert.False(t, TransactionStatusPending.Terminal())
	assert.True(t, TransactionStatusCompleted.Terminal())
	assert.True(t, TransactionStatusCancelled.Terminal())
	assert.False(t, TransactionStatus("refunded").CanTransitionTo(TransactionStatusCompleted))
}

func TestNormalizeTxHash(t *testing.T) {
	const canonical = "0x8f3c1a2b4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6f708192a3b4c5d6e7f8"

	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{name: "already canonical", input: canonical, expected: canonical},
		{name: "missing prefix", input: strings.TrimPrefix(canonical, "0x"), expected: canonical},
		{name: "upper case", input: "0X" + strings.ToUpper(strings.TrimPrefix(canonical, "0x")), expected: canonical},
		{name: "surrounding whitespace", input: "  " + canonical + "\n", expected: canonical},
		{name: "too short", input: "0x1234", wantErr: true},
		{name: "not hex", input: "0x" + strings.Repeat("zz", 32), wantErr: true},
		{name: "odd length", input: canonical + "f", wantErr: true},
		{name: "too long", input: canonical + "ff", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeTxHash(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalizeTxHash_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	hexHash := gen.SliceOfN(32, gen.UInt8()).Map(func(b []uint8) string {
		return "0x" + new(big.Int).SetBytes(b).Text(16)
	}).SuchThat(func(s string) bool { return len(s) == 66 })

	properties.Property("normalization is idempotent", prop.ForAll(
		func(h string) bool {
			once, err := NormalizeTxHash(h)
			if err != nil {
				return false
			}
			twice, err := NormalizeTxHash(once)
			return err == nil && once == twice
		},
		hexHash,
	))

	properties.Property("case and prefix do not matter", prop.ForAll(
		func(h string) bool {
			a, errA := NormalizeTxHash(strings.ToUpper(strings.TrimPrefix(h, "0x")))
			b, errB := NormalizeTxHash(h)
			return errA == nil && errB == nil && a == b
		},
		hexHash,
	))

	properties.TestingRun(t)
}

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress("0xAbCdEf0123456789AbCdEf0123456789aBcDeF01")
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", got)

	_, err = NormalizeAddress("not-an-address")
	assert.True(t, errors.Is(err, ErrInvalidInput))

	assert.True(t, SameAddress("0xAA00000000000000000000000000000000000001", "0xaa00000000000000000000000000000000000001"))
}

func TestWeiEtherConversion(t *testing.T) {
	oneEther, ok := new(big.Int).SetString("1000000000000000000", 10)
	require.True(t, ok)

	assert.True(t, WeiToEther(oneEther).Equal(decimal.NewFromInt(1)))
	assert.True(t, WeiToEther(nil).Equal(decimal.Zero))
	assert.Equal(t, 0, EtherToWei(decimal.RequireFromString("1.5")).Cmp(new(big.Int).Mul(big.NewInt(15), big.NewInt(1e17))))

	properties := gopter.NewProperties(nil)
	properties.Property("wei survives a round trip through ether", prop.ForAll(
		func(n int64) bool {
			wei := big.NewInt(n)
			return EtherToWei(WeiToEther(wei)).Cmp(wei) == 0
		},
		gen.Int64Range(0, 1<<62),
	))
	properties.TestingRun(t)
}

func TestDefaultUsername(t *testing.T) {
	assert.Equal(t, "User_0xabcdef", DefaultUsername("0xabcdef0123456789abcdef0123456789abcdef01"))
	assert.Equal(t, "User_0x1", DefaultUsername("0x1"))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrConnection))
	assert.True(t, IsRetryable(errors.Join(errors.New("dial tcp"), ErrStore)))
	assert.False(t, IsRetryable(ErrConflict))
	assert.False(t, IsRetryable(ErrInvalidTransition))
	assert.False(t, IsRetryable(ErrNotFound))
}
