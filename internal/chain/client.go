package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Client manages connections to the configured EVM networks and hands out
// per-network views.
type Client struct {
	mu     sync.Mutex
	chains map[string]*Config
	conns  map[string]*ethclient.Client
}

// NewClient creates a client over the default network set.
func NewClient() *Client {
	return &Client{
		chains: DefaultChains(),
		conns:  make(map[string]*ethclient.Client),
	}
}

// AddChain adds or overrides a network configuration.
func (c *Client) AddChain(name string, config *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chains[name] = config
}

// ChainConfig returns the configuration for a network.
func (c *Client) ChainConfig(name string) (*Config, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	config, ok := c.chains[name]
	if !ok {
		return nil, fmt.Errorf("unknown chain: %s", name)
	}
	return config, nil
}

// ListChains returns the configured network names.
func (c *Client) ListChains() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.chains))
	for name := range c.chains {
		names = append(names, name)
	}
	return names
}

// Network returns the provider view for one network. Dialing is deferred
// until the first RPC call.
func (c *Client) Network(name string) (*Network, error) {
	config, err := c.ChainConfig(name)
	if err != nil {
		return nil, err
	}
	return &Network{client: c, name: name, config: config}, nil
}

// conn returns a live connection for the network, dialing and verifying the
// chain id on first use. The write lock is held across dialing; connection
// setup is rare enough that simpler locking beats double-checking.
func (c *Client) conn(name string) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	config, ok := c.chains[name]
	if !ok {
		return nil, fmt.Errorf("unknown chain: %s", name)
	}
	if conn, ok := c.conns[name]; ok {
		return conn, nil
	}

	var lastErr error
	for _, rpcURL := range config.RPCURLs {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		conn, err := ethclient.DialContext(ctx, rpcURL)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}

		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		chainID, err := conn.ChainID(ctx)
		cancel()
		if err != nil {
			conn.Close()
			lastErr = err
			continue
		}
		if chainID.Cmp(config.ChainID) != 0 {
			conn.Close()
			lastErr = fmt.Errorf("chain ID mismatch: expected %s, got %s", config.ChainID, chainID)
			continue
		}

		c.conns[name] = conn
		return conn, nil
	}
	return nil, fmt.Errorf("failed to connect to %s: %w", name, lastErr)
}

// Close drops all live connections.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conn := range c.conns {
		conn.Close()
	}
	c.conns = make(map[string]*ethclient.Client)
}

// ChainID returns the configured chain id for a network without dialing.
func (c *Client) ChainID(name string) (*big.Int, error) {
	config, err := c.ChainConfig(name)
	if err != nil {
		return nil, err
	}
	return config.ChainID, nil
}
