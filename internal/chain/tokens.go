package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// ERC20 function selectors used without a full ABI binding.
var (
	// balanceOf(address)
	balanceOfSelector = common.Hex2Bytes("70a08231")
	// decimals()
	decimalsSelector = common.Hex2Bytes("313ce567")
	// symbol()
	symbolSelector = common.Hex2Bytes("95d89b41")
)

// TokenDecimals reads the token's decimals, defaulting to 18 when the
// contract does not answer (many older tokens omit the method).
func (n *Network) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	result, err := n.CallContract(ctx, ethereum.CallMsg{To: &token, Data: decimalsSelector})
	if err != nil {
		return 18, err
	}
	if len(result) == 0 {
		return 18, nil
	}
	return uint8(new(big.Int).SetBytes(result).Uint64()), nil
}

// TokenSymbol reads the token's display symbol.
func (n *Network) TokenSymbol(ctx context.Context, token common.Address) (string, error) {
	result, err := n.CallContract(ctx, ethereum.CallMsg{To: &token, Data: symbolSelector})
	if err != nil {
		return "", err
	}
	return decodeString(result), nil
}

// TokenBalance reads the holder's raw token balance.
func (n *Network) TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	callData := make([]byte, 0, 36)
	callData = append(callData, balanceOfSelector...)
	callData = append(callData, common.LeftPadBytes(holder.Bytes(), 32)...)

	result, err := n.CallContract(ctx, ethereum.CallMsg{To: &token, Data: callData})
	if err != nil {
		return nil, fmt.Errorf("failed to get token balance: %w", err)
	}
	return new(big.Int).SetBytes(result), nil
}

// decodeString decodes an ABI-encoded string, tolerating the fixed-length
// encoding some legacy tokens use.
func decodeString(data []byte) string {
	if len(data) < 64 {
		return strings.TrimRight(string(data), "\x00")
	}
	length := new(big.Int).SetBytes(data[32:64]).Int64()
	if length == 0 || int(length) > len(data)-64 {
		return ""
	}
	return strings.TrimRight(string(data[64:64+length]), "\x00")
}
