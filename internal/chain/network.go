package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Network is the provider for one configured chain. It satisfies the
// builder's network collaborator interface; every method is a single RPC
// round trip against the lazily dialed connection.
type Network struct {
	client *Client
	name   string
	config *Config
}

// Name returns the configured network name.
func (n *Network) Name() string {
	return n.name
}

// ChainID returns the configured chain id.
func (n *Network) ChainID() *big.Int {
	return n.config.ChainID
}

// SuggestGasPrice returns the node's current gas price suggestion in wei.
func (n *Network) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	conn, err := n.client.conn(n.name)
	if err != nil {
		return nil, err
	}
	return conn.SuggestGasPrice(ctx)
}

// EstimateGas asks the node to simulate the call and report gas units.
func (n *Network) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	conn, err := n.client.conn(n.name)
	if err != nil {
		return 0, err
	}
	return conn.EstimateGas(ctx, msg)
}

// PendingNonceAt returns the next nonce for an address including pending
// transactions.
func (n *Network) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	conn, err := n.client.conn(n.name)
	if err != nil {
		return 0, err
	}
	return conn.PendingNonceAt(ctx, account)
}

// SendTransaction broadcasts a signed transaction. Errors surface verbatim;
// retrying a signed transaction risks double submission, so no retry
// happens here.
func (n *Network) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	conn, err := n.client.conn(n.name)
	if err != nil {
		return err
	}
	return conn.SendTransaction(ctx, tx)
}

// BalanceAt returns the native balance in wei.
func (n *Network) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	conn, err := n.client.conn(n.name)
	if err != nil {
		return nil, err
	}
	return conn.BalanceAt(ctx, account, nil)
}

// CallContract executes a read-only contract call.
func (n *Network) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	conn, err := n.client.conn(n.name)
	if err != nil {
		return nil, err
	}
	return conn.CallContract(ctx, msg, nil)
}
