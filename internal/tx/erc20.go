package tx

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// transfer(address,uint256)
var transferSelector = common.Hex2Bytes("a9059cbb")

// EncodeTransfer builds the calldata for a standard token transfer: 4-byte
// selector, 32-byte left-padded recipient, 32-byte big-endian amount.
func EncodeTransfer(to common.Address, amount *big.Int) []byte {
	data := make([]byte, 0, 68)
	data = append(data, transferSelector...)
	data = append(data, common.LeftPadBytes(to.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return data
}
