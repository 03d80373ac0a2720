package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yolodolo42/walletcore/internal/chain"
	"github.com/yolodolo42/walletcore/internal/core"
	"github.com/yolodolo42/walletcore/internal/store"
	"github.com/yolodolo42/walletcore/internal/tx"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "walletcore",
		Short: "Secure multi-chain wallet for the terminal",
		Long: `walletcore manages EVM accounts and signs transactions locally.

Private keys never leave this machine: they are stored encrypted under
per-account passwords, and signing is gated by a two-tier session model
with inactivity timeouts. Run without arguments for the interactive
session shell; subcommands cover one-shot operations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			return RunShell(svc)
		},
	}
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.walletcore/config.yaml)")
	rootCmd.PersistentFlags().String("chain", "ethereum", "Network to operate on")
	_ = viper.BindPFlag("chain", rootCmd.PersistentFlags().Lookup("chain"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		configDir := dataDir()
		if err := os.MkdirAll(configDir, 0700); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config directory: %v\n", err)
		}

		viper.AddConfigPath(configDir)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetDefault("session.timeout", 30*time.Minute)
	viper.SetDefault("gas.buffer_percent", tx.DefaultBufferPercent)
	viper.SetDefault("gas.min_native", tx.MinGasNative)
	viper.SetDefault("gas.min_token", tx.MinGasToken)
	viper.SetDefault("gas.max", tx.MaxGas)
	viper.SetDefault("display.decimals", tx.DisplayDecimals)

	viper.AutomaticEnv()

	// Silently ignore missing config file - it's optional
	_ = viper.ReadInConfig()
}

func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".walletcore"
	}
	return filepath.Join(home, ".walletcore")
}

// newService assembles the signing core from the on-disk store and the
// configured networks.
func newService() (*core.Service, error) {
	st, err := store.NewStore(dataDir())
	if err != nil {
		return nil, fmt.Errorf("failed to open account store: %w", err)
	}

	client := chain.NewClient()
	for name, cfg := range customChains() {
		client.AddChain(name, cfg)
	}

	return core.NewService(st, client, core.Config{
		SessionTimeout: viper.GetDuration("session.timeout"),
		Estimator: tx.EstimatorConfig{
			BufferPercent: viper.GetUint64("gas.buffer_percent"),
			MinGasNative:  viper.GetUint64("gas.min_native"),
			MinGasToken:   viper.GetUint64("gas.min_token"),
			MaxGas:        viper.GetUint64("gas.max"),
		},
		DisplayDecimals: viper.GetInt("display.decimals"),
	}), nil
}

// customChains reads user-defined networks from config, keyed by name under
// "chains". Each entry needs a chain id and at least one RPC URL.
func customChains() map[string]*chain.Config {
	chains := make(map[string]*chain.Config)
	for name := range viper.GetStringMap("chains") {
		sub := viper.Sub("chains." + name)
		if sub == nil {
			continue
		}
		cfg := chain.ConfigFromSettings(
			name,
			sub.GetInt64("chain_id"),
			sub.GetStringSlice("rpc_urls"),
			sub.GetString("currency"),
			sub.GetBool("testnet"),
		)
		if cfg != nil {
			chains[name] = cfg
		}
	}
	return chains
}
