package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yolodolo42/walletcore/internal/core"
	"github.com/yolodolo42/walletcore/internal/tx"
)

var sendCmd = &cobra.Command{
	Use:   "send <recipient> <amount>",
	Short: "Send native currency or tokens",
	Long: `Build, sign, and broadcast a transfer from the active account.

Amounts are decimal strings in display units ("1.5" for 1.5 ETH). Pass
--token to send an ERC-20 token instead of native currency. Exactly one
fee style applies: --gas-price for legacy, or --max-fee (optionally with
--priority-fee) for EIP-1559.`,
	Args: cobra.ExactArgs(2),
	RunE: runSend,
}

var estimateCmd = &cobra.Command{
	Use:   "estimate <recipient> <amount>",
	Short: "Estimate gas for a transfer without signing",
	Args:  cobra.ExactArgs(2),
	RunE:  runEstimate,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(estimateCmd)

	for _, cmd := range []*cobra.Command{sendCmd, estimateCmd} {
		cmd.Flags().String("token", "", "ERC-20 contract address for a token transfer")
		cmd.Flags().String("gas-price", "", "Legacy gas price in gwei")
		cmd.Flags().String("max-fee", "", "EIP-1559 max fee per gas in gwei")
		cmd.Flags().String("priority-fee", "", "EIP-1559 priority fee in gwei (default: 10% of max fee)")
		cmd.Flags().Uint64("gas-limit", 0, "Gas limit override (skips estimation)")
	}
	sendCmd.Flags().Uint64("nonce", 0, "Nonce override")
	sendCmd.Flags().Bool("yes", false, "Skip the confirmation prompt")
}

// paramsFromFlags assembles builder params from command arguments. The
// sender must already be resolved.
func paramsFromFlags(cmd *cobra.Command, args []string, svc *core.Service) (tx.Params, error) {
	from, ok := svc.ActiveAddress()
	if !ok {
		return tx.Params{}, errors.New("no accounts imported")
	}

	token, _ := cmd.Flags().GetString("token")
	gasPrice, _ := cmd.Flags().GetString("gas-price")
	maxFee, _ := cmd.Flags().GetString("max-fee")
	priorityFee, _ := cmd.Flags().GetString("priority-fee")
	gasLimit, _ := cmd.Flags().GetUint64("gas-limit")

	p := tx.Params{
		From:          from,
		To:            args[0],
		Amount:        args[1],
		GasLimit:      gasLimit,
		TokenContract: token,
	}

	switch {
	case maxFee != "":
		p.FeeMode = tx.FeeModeEip1559
		p.MaxFeeGwei = maxFee
		p.MaxPriorityFeeGwei = priorityFee
	case gasPrice != "":
		p.FeeMode = tx.FeeModeLegacy
		p.GasPriceGwei = gasPrice
	default:
		return tx.Params{}, errors.New("a fee is required: --gas-price or --max-fee")
	}

	if cmd.Flags().Changed("nonce") {
		nonce, _ := cmd.Flags().GetUint64("nonce")
		p.Nonce = &nonce
	}

	if token != "" {
		if !common.IsHexAddress(token) {
			return tx.Params{}, fmt.Errorf("invalid token contract address: %q", token)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		decimals := svc.TokenDecimals(ctx, viper.GetString("chain"), common.HexToAddress(token))
		p.TokenDecimals = &decimals
	}
	return p, nil
}

func runSend(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	if err := unlockWallet(svc); err != nil {
		return err
	}
	defer svc.LockWallet()

	p, err := paramsFromFlags(cmd, args, svc)
	if err != nil {
		return err
	}
	network := viper.GetString("chain")

	req, err := svc.BuildTransaction(network, p)
	if err != nil {
		return err
	}

	password, err := readPassword("Account password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if err := svc.UnlockAccount(p.From, password, false); err != nil {
		wipe(password)
		return err
	}
	wipe(password)

	fmt.Printf("\nFrom:    %s\n", p.From.Hex())
	fmt.Printf("To:      %s\n", args[0])
	if req.IsToken() {
		fmt.Printf("Token:   %s\n", req.TokenContract.Hex())
	}
	fmt.Printf("Amount:  %s\n", args[1])
	fmt.Printf("Network: %s\n", network)

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		fmt.Print("\nBroadcast this transaction? [y/N]: ")
		var answer string
		_, _ = fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" && answer != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	signed, err := svc.SignRequest(ctx, network, req)
	if err != nil {
		return err
	}
	hash, err := svc.Broadcast(ctx, network, signed)
	if err != nil {
		return fmt.Errorf("broadcast failed: %w", err)
	}

	fmt.Printf("\nTransaction sent: %s\n", hash.Hex())
	return nil
}

func runEstimate(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}

	p, err := paramsFromFlags(cmd, args, svc)
	if err != nil {
		return err
	}
	network := viper.GetString("chain")

	req, err := svc.BuildTransaction(network, p)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	est, err := svc.EstimateGas(ctx, network, req)
	if err != nil {
		return err
	}

	fmt.Printf("Gas limit: %d\n", est.Gas)
	if est.Fallback {
		fmt.Println("(estimation unavailable, using conservative fallback)")
	} else {
		fmt.Printf("Raw estimate: %d (buffered)\n", est.Raw)
	}
	return nil
}
