package chain

import "math/big"

// Config describes one EVM network the wallet can sign for.
type Config struct {
	Name           string
	ChainID        *big.Int
	RPCURLs        []string
	NativeCurrency string
	IsTestnet      bool
}

// ConfigFromSettings builds a network config from loosely typed
// configuration values. Returns nil when the entry is unusable.
func ConfigFromSettings(name string, chainID int64, rpcURLs []string, currency string, testnet bool) *Config {
	if chainID <= 0 || len(rpcURLs) == 0 {
		return nil
	}
	if currency == "" {
		currency = "ETH"
	}
	return &Config{
		Name:           name,
		ChainID:        big.NewInt(chainID),
		RPCURLs:        rpcURLs,
		NativeCurrency: currency,
		IsTestnet:      testnet,
	}
}

// DefaultChains returns the built-in network set. Custom network
// persistence lives outside this core; callers may still AddChain at
// runtime.
func DefaultChains() map[string]*Config {
	return map[string]*Config{
		"ethereum": {
			Name:           "Ethereum Mainnet",
			ChainID:        big.NewInt(1),
			RPCURLs:        []string{"https://eth.llamarpc.com", "https://rpc.ankr.com/eth"},
			NativeCurrency: "ETH",
		},
		"base": {
			Name:           "Base",
			ChainID:        big.NewInt(8453),
			RPCURLs:        []string{"https://mainnet.base.org", "https://base.llamarpc.com"},
			NativeCurrency: "ETH",
		},
		"arbitrum": {
			Name:           "Arbitrum One",
			ChainID:        big.NewInt(42161),
			RPCURLs:        []string{"https://arb1.arbitrum.io/rpc", "https://arbitrum.llamarpc.com"},
			NativeCurrency: "ETH",
		},
		"optimism": {
			Name:           "Optimism",
			ChainID:        big.NewInt(10),
			RPCURLs:        []string{"https://mainnet.optimism.io", "https://optimism.llamarpc.com"},
			NativeCurrency: "ETH",
		},
		"polygon": {
			Name:           "Polygon",
			ChainID:        big.NewInt(137),
			RPCURLs:        []string{"https://polygon-rpc.com", "https://polygon.llamarpc.com"},
			NativeCurrency: "MATIC",
		},
		"sepolia": {
			Name:           "Sepolia Testnet",
			ChainID:        big.NewInt(11155111),
			RPCURLs:        []string{"https://rpc.sepolia.org", "https://sepolia.drpc.org"},
			NativeCurrency: "ETH",
			IsTestnet:      true,
		},
	}
}
