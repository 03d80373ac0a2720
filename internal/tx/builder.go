package tx

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrFeeConflict    = errors.New("fee fields do not match fee mode")
	ErrMissingNonce   = errors.New("nonce not set")
)

// FeeMode selects between a single legacy gas price and the EIP-1559
// max-fee/priority-fee pair. A request carries fee fields for exactly one
// mode.
type FeeMode int

const (
	FeeModeLegacy FeeMode = iota
	FeeModeEip1559
)

func (m FeeMode) String() string {
	switch m {
	case FeeModeLegacy:
		return "legacy"
	case FeeModeEip1559:
		return "eip1559"
	default:
		return fmt.Sprintf("FeeMode(%d)", int(m))
	}
}

// Request is a fully encoded transaction ready for gas estimation and
// signing. For token transfers To is the contract, Value is zero and Data
// carries the transfer calldata.
type Request struct {
	From     common.Address
	To       common.Address
	Value    *big.Int
	Data     []byte
	ChainID  *big.Int
	GasLimit uint64  // 0 until estimated or overridden
	Nonce    *uint64 // nil: left for the broadcasting layer

	FeeMode              FeeMode
	GasPrice             *big.Int // legacy only
	MaxFeePerGas         *big.Int // eip1559 only
	MaxPriorityFeePerGas *big.Int // eip1559 only

	// TokenContract is set when the request is a token transfer.
	TokenContract *common.Address
}

// Params are the user-intent inputs to Build. Amounts and fees arrive as
// decimal strings; all conversion happens inside Build via ParseAmount.
type Params struct {
	From    common.Address
	To      string // recipient address
	Amount  string // display-unit decimal string
	ChainID *big.Int

	FeeMode            FeeMode
	GasPriceGwei       string // legacy
	MaxFeeGwei         string // eip1559
	MaxPriorityFeeGwei string // eip1559, optional: defaults to 10% of max fee

	GasLimit uint64  // optional override
	Nonce    *uint64 // optional override

	TokenContract string // optional: token transfer via this contract
	TokenDecimals *uint8 // optional: defaults to 18
}

// Build validates the intent and produces an encoded Request. Native sends
// carry the value directly; token sends target the contract with zero value
// and transfer calldata. Populated fee fields always match FeeMode.
func Build(p Params) (*Request, error) {
	if !common.IsHexAddress(p.To) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, p.To)
	}
	recipient := common.HexToAddress(p.To)

	decimals := uint8(18)
	if p.TokenDecimals != nil {
		decimals = *p.TokenDecimals
	}

	amount, err := ParseAmount(p.Amount, decimals)
	if err != nil {
		return nil, err
	}

	req := &Request{
		From:     p.From,
		ChainID:  p.ChainID,
		GasLimit: p.GasLimit,
		Nonce:    p.Nonce,
		FeeMode:  p.FeeMode,
	}

	if p.TokenContract != "" {
		if !common.IsHexAddress(p.TokenContract) {
			return nil, fmt.Errorf("%w: token contract %q", ErrInvalidAddress, p.TokenContract)
		}
		contract := common.HexToAddress(p.TokenContract)
		req.To = contract
		req.TokenContract = &contract
		req.Value = new(big.Int)
		req.Data = EncodeTransfer(recipient, amount)
	} else {
		req.To = recipient
		req.Value = amount
	}

	if err := applyFees(req, p); err != nil {
		return nil, err
	}
	return req, nil
}

// applyFees populates exactly the fee fields of the request's mode.
func applyFees(req *Request, p Params) error {
	switch p.FeeMode {
	case FeeModeLegacy:
		if p.MaxFeeGwei != "" || p.MaxPriorityFeeGwei != "" {
			return fmt.Errorf("%w: eip1559 fees on a legacy request", ErrFeeConflict)
		}
		if p.GasPriceGwei == "" {
			return fmt.Errorf("%w: legacy request needs a gas price", ErrFeeConflict)
		}
		gasPrice, err := GweiToWei(p.GasPriceGwei)
		if err != nil {
			return fmt.Errorf("gas price: %w", err)
		}
		req.GasPrice = gasPrice

	case FeeModeEip1559:
		if p.GasPriceGwei != "" {
			return fmt.Errorf("%w: gas price on an eip1559 request", ErrFeeConflict)
		}
		if p.MaxFeeGwei == "" {
			return fmt.Errorf("%w: eip1559 request needs a max fee", ErrFeeConflict)
		}
		maxFee, err := GweiToWei(p.MaxFeeGwei)
		if err != nil {
			return fmt.Errorf("max fee: %w", err)
		}
		req.MaxFeePerGas = maxFee
		if p.MaxPriorityFeeGwei != "" {
			prio, err := GweiToWei(p.MaxPriorityFeeGwei)
			if err != nil {
				return fmt.Errorf("priority fee: %w", err)
			}
			req.MaxPriorityFeePerGas = prio
		} else {
			// Default priority to 10% of max fee, integer wei math.
			req.MaxPriorityFeePerGas = new(big.Int).Div(maxFee, big.NewInt(10))
		}

	default:
		return fmt.Errorf("%w: unknown mode %v", ErrFeeConflict, p.FeeMode)
	}
	return nil
}

// IsToken reports whether the request is a token transfer.
func (r *Request) IsToken() bool {
	return r.TokenContract != nil
}

// Transaction assembles the signable transaction. GasLimit must already be
// set (estimated or overridden) and the nonce filled by the caller.
func (r *Request) Transaction() (*types.Transaction, error) {
	if r.Nonce == nil {
		return nil, ErrMissingNonce
	}
	to := r.To
	switch r.FeeMode {
	case FeeModeEip1559:
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   r.ChainID,
			Nonce:     *r.Nonce,
			GasTipCap: r.MaxPriorityFeePerGas,
			GasFeeCap: r.MaxFeePerGas,
			Gas:       r.GasLimit,
			To:        &to,
			Value:     r.Value,
			Data:      r.Data,
		}), nil
	default:
		return types.NewTx(&types.LegacyTx{
			Nonce:    *r.Nonce,
			GasPrice: r.GasPrice,
			Gas:      r.GasLimit,
			To:       &to,
			Value:    r.Value,
			Data:     r.Data,
		}), nil
	}
}
