package tx

import (
	"context"
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider scripts network responses for estimator tests.
type fakeProvider struct {
	gas     uint64
	gasErr  error
	lastMsg ethereum.CallMsg
}

func (f *fakeProvider) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(20_000_000_000), nil
}

func (f *fakeProvider) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.lastMsg = msg
	if f.gasErr != nil {
		return 0, f.gasErr
	}
	return f.gas, nil
}

func (f *fakeProvider) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 0, nil
}

func (f *fakeProvider) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return nil
}

func nativeRequest(t *testing.T) *Request {
	t.Helper()
	req, err := Build(Params{
		From:         testFrom,
		To:           testRecipient,
		Amount:       "1",
		ChainID:      big.NewInt(1),
		FeeMode:      FeeModeLegacy,
		GasPriceGwei: "20",
	})
	require.NoError(t, err)
	return req
}

func tokenRequest(t *testing.T) *Request {
	t.Helper()
	decimals := uint8(6)
	req, err := Build(Params{
		From:          testFrom,
		To:            testRecipient,
		Amount:        "2",
		ChainID:       big.NewInt(1),
		FeeMode:       FeeModeLegacy,
		GasPriceGwei:  "20",
		TokenContract: testContract,
		TokenDecimals: &decimals,
	})
	require.NoError(t, err)
	return req
}

func TestEstimateGas(t *testing.T) {
	ctx := context.Background()

	t.Run("buffers successful estimate by thirty percent", func(t *testing.T) {
		p := &fakeProvider{gas: 100_000}
		est := EstimateGas(ctx, p, nativeRequest(t), EstimatorConfig{})

		assert.Equal(t, uint64(130_000), est.Gas)
		assert.Equal(t, uint64(100_000), est.Raw)
		assert.False(t, est.Fallback)
	})

	t.Run("estimate call carries the sender", func(t *testing.T) {
		p := &fakeProvider{gas: 21_000}
		EstimateGas(ctx, p, nativeRequest(t), EstimatorConfig{})
		assert.Equal(t, testFrom, p.lastMsg.From)
		require.NotNil(t, p.lastMsg.To)
		assert.Equal(t, common.HexToAddress(testRecipient), *p.lastMsg.To)
	})

	t.Run("native floor applies after buffering", func(t *testing.T) {
		p := &fakeProvider{gas: 10_000}
		est := EstimateGas(ctx, p, nativeRequest(t), EstimatorConfig{})
		assert.Equal(t, uint64(MinGasNative), est.Gas)
	})

	t.Run("token floor is higher", func(t *testing.T) {
		p := &fakeProvider{gas: 10_000}
		est := EstimateGas(ctx, p, tokenRequest(t), EstimatorConfig{})
		assert.Equal(t, uint64(MinGasToken), est.Gas)
	})

	t.Run("ceiling clamps runaway estimates", func(t *testing.T) {
		p := &fakeProvider{gas: 50_000_000}
		est := EstimateGas(ctx, p, nativeRequest(t), EstimatorConfig{})
		assert.Equal(t, uint64(MaxGas), est.Gas)
	})

	t.Run("hostile estimate near uint64 ceiling cannot wrap", func(t *testing.T) {
		for _, gas := range []uint64{math.MaxUint64, math.MaxUint64 - 1, math.MaxUint64 / 30} {
			p := &fakeProvider{gas: gas}
			est := EstimateGas(ctx, p, nativeRequest(t), EstimatorConfig{})
			assert.Equal(t, uint64(MaxGas), est.Gas, "gas %d", gas)
			assert.Equal(t, gas, est.Raw)
		}
	})

	t.Run("network failure falls back for native", func(t *testing.T) {
		p := &fakeProvider{gasErr: errors.New("rpc unavailable")}
		est := EstimateGas(ctx, p, nativeRequest(t), EstimatorConfig{})

		assert.Equal(t, uint64(FallbackNative), est.Gas)
		assert.True(t, est.Fallback)
	})

	t.Run("network failure falls back for token", func(t *testing.T) {
		p := &fakeProvider{gasErr: errors.New("rpc unavailable")}
		est := EstimateGas(ctx, p, tokenRequest(t), EstimatorConfig{})

		assert.Equal(t, uint64(65_000), est.Gas)
		assert.True(t, est.Fallback)
	})

	t.Run("custom buffer percent", func(t *testing.T) {
		p := &fakeProvider{gas: 100_000}
		est := EstimateGas(ctx, p, nativeRequest(t), EstimatorConfig{BufferPercent: 10})
		assert.Equal(t, uint64(110_000), est.Gas)
	})

	t.Run("every estimate respects bounds", func(t *testing.T) {
		for _, gas := range []uint64{1, 15_000, 21_000, 64_999, 100_000, 9_000_000, 80_000_000} {
			p := &fakeProvider{gas: gas}

			native := EstimateGas(ctx, p, nativeRequest(t), EstimatorConfig{})
			assert.GreaterOrEqual(t, native.Gas, uint64(MinGasNative))
			assert.LessOrEqual(t, native.Gas, uint64(MaxGas))

			token := EstimateGas(ctx, p, tokenRequest(t), EstimatorConfig{})
			assert.GreaterOrEqual(t, token.Gas, uint64(MinGasToken))
			assert.LessOrEqual(t, token.Gas, uint64(MaxGas))
		}
	})

	t.Run("eip1559 request passes fee caps", func(t *testing.T) {
		req, err := Build(Params{
			From:       testFrom,
			To:         testRecipient,
			Amount:     "1",
			ChainID:    big.NewInt(1),
			FeeMode:    FeeModeEip1559,
			MaxFeeGwei: "40",
		})
		require.NoError(t, err)

		p := &fakeProvider{gas: 21_000}
		EstimateGas(ctx, p, req, EstimatorConfig{})
		require.NotNil(t, p.lastMsg.GasFeeCap)
		assert.Equal(t, "40000000000", p.lastMsg.GasFeeCap.String())
	})
}
