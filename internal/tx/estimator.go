package tx

import (
	"context"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Provider is the network collaborator the builder needs: fee data, gas
// estimation and broadcast. chain.Network implements it.
type Provider interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Gas floors and the hard ceiling. Fallbacks follow the usual wallet
// convention: plain transfer cost for native sends, a conservative token
// transfer allowance when estimation is unavailable.
const (
	MinGasNative   = 21_000
	MinGasToken    = 50_000
	MaxGas         = 10_000_000
	FallbackNative = 21_000
	FallbackToken  = 65_000

	// DefaultBufferPercent pads successful estimates against state drift
	// between estimation and inclusion.
	DefaultBufferPercent = 30
)

// EstimatorConfig tunes buffering and clamping. Zero values take defaults.
type EstimatorConfig struct {
	BufferPercent uint64
	MinGasNative  uint64
	MinGasToken   uint64
	MaxGas        uint64
}

func (c EstimatorConfig) withDefaults() EstimatorConfig {
	if c.BufferPercent == 0 {
		c.BufferPercent = DefaultBufferPercent
	}
	if c.MinGasNative == 0 {
		c.MinGasNative = MinGasNative
	}
	if c.MinGasToken == 0 {
		c.MinGasToken = MinGasToken
	}
	if c.MaxGas == 0 {
		c.MaxGas = MaxGas
	}
	return c
}

// Estimate is a buffered, clamped gas figure. Never persisted.
type Estimate struct {
	Gas      uint64 // buffered and clamped, ready for the request
	Raw      uint64 // what the node reported, zero on fallback
	Fallback bool   // true when the network query failed
}

// EstimateGas queries the node with the fully formed call and applies the
// safety buffer and bounds. A failed query degrades to a fixed conservative
// fallback instead of an error: estimation accuracy is best-effort, but it
// must never block building a transaction.
func EstimateGas(ctx context.Context, provider Provider, req *Request, cfg EstimatorConfig) Estimate {
	cfg = cfg.withDefaults()

	floor := cfg.MinGasNative
	fallback := uint64(FallbackNative)
	if req.IsToken() {
		floor = cfg.MinGasToken
		fallback = FallbackToken
	}

	to := req.To
	msg := ethereum.CallMsg{
		From:  req.From,
		To:    &to,
		Value: req.Value,
		Data:  req.Data,
	}
	switch req.FeeMode {
	case FeeModeEip1559:
		msg.GasFeeCap = req.MaxFeePerGas
		msg.GasTipCap = req.MaxPriorityFeePerGas
	default:
		msg.GasPrice = req.GasPrice
	}

	raw, err := provider.EstimateGas(ctx, msg)
	if err != nil {
		return Estimate{Gas: clamp(fallback, floor, cfg.MaxGas), Fallback: true}
	}

	return Estimate{Gas: clamp(buffer(raw, cfg.BufferPercent), floor, cfg.MaxGas), Raw: raw}
}

// buffer pads v by pct percent, saturating instead of wrapping when a
// node reports an estimate near the uint64 ceiling.
func buffer(v, pct uint64) uint64 {
	if pct > 0 && v > math.MaxUint64/pct {
		return math.MaxUint64
	}
	extra := v * pct / 100
	if v > math.MaxUint64-extra {
		return math.MaxUint64
	}
	return v + extra
}

func clamp(v, lo, hi uint64) uint64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
