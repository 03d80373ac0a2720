package tx

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testFrom      = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	testRecipient = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	testContract  = "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
)

func TestBuild_Native(t *testing.T) {
	t.Run("legacy transfer", func(t *testing.T) {
		req, err := Build(Params{
			From:         testFrom,
			To:           testRecipient,
			Amount:       "1.5",
			ChainID:      big.NewInt(1),
			FeeMode:      FeeModeLegacy,
			GasPriceGwei: "20",
		})
		require.NoError(t, err)

		assert.Equal(t, "1500000000000000000", req.Value.String())
		assert.Equal(t, "20000000000", req.GasPrice.String())
		assert.Equal(t, common.HexToAddress(testRecipient), req.To)
		assert.Empty(t, req.Data)
		assert.Nil(t, req.MaxFeePerGas)
		assert.Nil(t, req.MaxPriorityFeePerGas)
		assert.False(t, req.IsToken())
	})

	t.Run("eip1559 transfer with explicit priority", func(t *testing.T) {
		req, err := Build(Params{
			From:               testFrom,
			To:                 testRecipient,
			Amount:             "1",
			ChainID:            big.NewInt(1),
			FeeMode:            FeeModeEip1559,
			MaxFeeGwei:         "40",
			MaxPriorityFeeGwei: "2",
		})
		require.NoError(t, err)

		assert.Equal(t, "40000000000", req.MaxFeePerGas.String())
		assert.Equal(t, "2000000000", req.MaxPriorityFeePerGas.String())
		assert.Nil(t, req.GasPrice)
	})

	t.Run("eip1559 priority defaults to ten percent of max fee", func(t *testing.T) {
		req, err := Build(Params{
			From:       testFrom,
			To:         testRecipient,
			Amount:     "1",
			ChainID:    big.NewInt(1),
			FeeMode:    FeeModeEip1559,
			MaxFeeGwei: "40",
		})
		require.NoError(t, err)
		assert.Equal(t, "4000000000", req.MaxPriorityFeePerGas.String())
	})

	t.Run("invalid recipient", func(t *testing.T) {
		_, err := Build(Params{
			From:         testFrom,
			To:           "not-an-address",
			Amount:       "1",
			FeeMode:      FeeModeLegacy,
			GasPriceGwei: "20",
		})
		assert.ErrorIs(t, err, ErrInvalidAddress)
	})

	t.Run("invalid amount", func(t *testing.T) {
		_, err := Build(Params{
			From:         testFrom,
			To:           testRecipient,
			Amount:       "one",
			FeeMode:      FeeModeLegacy,
			GasPriceGwei: "20",
		})
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("amount rounding to zero", func(t *testing.T) {
		decimals := uint8(6)
		_, err := Build(Params{
			From:          testFrom,
			To:            testRecipient,
			Amount:        "0.0000001",
			FeeMode:       FeeModeLegacy,
			GasPriceGwei:  "20",
			TokenContract: testContract,
			TokenDecimals: &decimals,
		})
		assert.ErrorIs(t, err, ErrAmountTooSmall)
	})
}

func TestBuild_FeeModeExclusivity(t *testing.T) {
	t.Run("legacy rejects eip1559 fields", func(t *testing.T) {
		_, err := Build(Params{
			From:         testFrom,
			To:           testRecipient,
			Amount:       "1",
			FeeMode:      FeeModeLegacy,
			GasPriceGwei: "20",
			MaxFeeGwei:   "40",
		})
		assert.ErrorIs(t, err, ErrFeeConflict)
	})

	t.Run("eip1559 rejects gas price", func(t *testing.T) {
		_, err := Build(Params{
			From:         testFrom,
			To:           testRecipient,
			Amount:       "1",
			FeeMode:      FeeModeEip1559,
			MaxFeeGwei:   "40",
			GasPriceGwei: "20",
		})
		assert.ErrorIs(t, err, ErrFeeConflict)
	})

	t.Run("legacy requires a gas price", func(t *testing.T) {
		_, err := Build(Params{
			From:    testFrom,
			To:      testRecipient,
			Amount:  "1",
			FeeMode: FeeModeLegacy,
		})
		assert.ErrorIs(t, err, ErrFeeConflict)
	})

	t.Run("eip1559 requires a max fee", func(t *testing.T) {
		_, err := Build(Params{
			From:    testFrom,
			To:      testRecipient,
			Amount:  "1",
			FeeMode: FeeModeEip1559,
		})
		assert.ErrorIs(t, err, ErrFeeConflict)
	})
}

func TestBuild_Token(t *testing.T) {
	t.Run("token transfer encodes calldata", func(t *testing.T) {
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

		assert.True(t, req.IsToken())
		assert.Equal(t, common.HexToAddress(testContract), req.To)
		assert.Zero(t, req.Value.Sign())

		require.Len(t, req.Data, 68)
		assert.Equal(t, common.Hex2Bytes("a9059cbb"), req.Data[:4])
		assert.Equal(t,
			common.LeftPadBytes(common.HexToAddress(testRecipient).Bytes(), 32),
			req.Data[4:36])
		assert.Equal(t,
			common.LeftPadBytes(big.NewInt(2_000_000).Bytes(), 32),
			req.Data[36:68])
	})

	t.Run("token decimals default to 18", func(t *testing.T) {
		req, err := Build(Params{
			From:          testFrom,
			To:            testRecipient,
			Amount:        "1",
			FeeMode:       FeeModeLegacy,
			GasPriceGwei:  "20",
			TokenContract: testContract,
		})
		require.NoError(t, err)
		amount := new(big.Int).SetBytes(req.Data[36:68])
		assert.Equal(t, "1000000000000000000", amount.String())
	})

	t.Run("invalid contract address", func(t *testing.T) {
		_, err := Build(Params{
			From:          testFrom,
			To:            testRecipient,
			Amount:        "1",
			FeeMode:       FeeModeLegacy,
			GasPriceGwei:  "20",
			TokenContract: "0xzz",
		})
		assert.ErrorIs(t, err, ErrInvalidAddress)
	})
}

func TestRequest_Transaction(t *testing.T) {
	nonce := uint64(7)

	t.Run("legacy", func(t *testing.T) {
		req, err := Build(Params{
			From:         testFrom,
			To:           testRecipient,
			Amount:       "1",
			ChainID:      big.NewInt(1),
			FeeMode:      FeeModeLegacy,
			GasPriceGwei: "20",
			GasLimit:     21000,
			Nonce:        &nonce,
		})
		require.NoError(t, err)

		txn, err := req.Transaction()
		require.NoError(t, err)
		assert.Equal(t, uint64(7), txn.Nonce())
		assert.Equal(t, "20000000000", txn.GasPrice().String())
		assert.Equal(t, uint64(21000), txn.Gas())
	})

	t.Run("eip1559", func(t *testing.T) {
		req, err := Build(Params{
			From:       testFrom,
			To:         testRecipient,
			Amount:     "1",
			ChainID:    big.NewInt(1),
			FeeMode:    FeeModeEip1559,
			MaxFeeGwei: "40",
			GasLimit:   21000,
			Nonce:      &nonce,
		})
		require.NoError(t, err)

		txn, err := req.Transaction()
		require.NoError(t, err)
		assert.Equal(t, "40000000000", txn.GasFeeCap().String())
		assert.Equal(t, "4000000000", txn.GasTipCap().String())
	})

	t.Run("missing nonce", func(t *testing.T) {
		req, err := Build(Params{
			From:         testFrom,
			To:           testRecipient,
			Amount:       "1",
			ChainID:      big.NewInt(1),
			FeeMode:      FeeModeLegacy,
			GasPriceGwei: "20",
		})
		require.NoError(t, err)

		_, err = req.Transaction()
		assert.ErrorIs(t, err, ErrMissingNonce)
	})
}
