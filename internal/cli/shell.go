package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/yolodolo42/walletcore/internal/core"
	"github.com/yolodolo42/walletcore/internal/session"
	"github.com/yolodolo42/walletcore/internal/tx"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("35"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// shell is the interactive session loop. Unlike the one-shot subcommands
// it keeps the service alive, so wallet and account sessions persist
// between commands and the inactivity timeout actually matters.
type shell struct {
	svc     *core.Service
	network string
	in      *bufio.Reader
	done    bool
}

// RunShell starts the interactive session shell over a live service.
func RunShell(svc *core.Service) error {
	sh := &shell{
		svc:     svc,
		network: viper.GetString("chain"),
		in:      bufio.NewReader(os.Stdin),
	}
	defer svc.LockWallet()

	fmt.Println(titleStyle.Render("  walletcore"))
	fmt.Println(helpStyle.Render("  Type 'help' for commands, 'quit' to exit. The wallet locks on exit."))
	fmt.Println()

	for !sh.done {
		fmt.Print(promptStyle.Render(sh.prompt()))
		line, err := sh.in.ReadString('\n')
		if err != nil {
			break
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if err := sh.dispatch(fields[0], fields[1:]); err != nil {
			fmt.Println(errorStyle.Render("Error: " + err.Error()))
		}
	}
	fmt.Println("Locked. Goodbye.")
	return nil
}

func (s *shell) prompt() string {
	state := "locked"
	if s.svc.IsWalletUnlocked() {
		state = "unlocked"
	}
	return fmt.Sprintf("%s (%s)> ", s.network, state)
}

func (s *shell) dispatch(cmd string, args []string) error {
	switch cmd {
	case "help", "?":
		s.printHelp()
		return nil
	case "quit", "exit", "q":
		s.done = true
		return nil
	case "status":
		return s.cmdStatus()
	case "unlock":
		return s.cmdUnlock()
	case "lock":
		s.svc.LockWallet()
		fmt.Println(okStyle.Render("Wallet locked. All sessions closed."))
		return nil
	case "accounts":
		return s.cmdAccounts()
	case "use":
		return s.cmdUse(args)
	case "unlock-account":
		return s.cmdUnlockAccount(args)
	case "lock-account":
		return s.cmdLockAccount(args)
	case "chain":
		return s.cmdChain(args)
	case "balance":
		return s.cmdBalance(args)
	case "receive":
		return s.cmdReceive(args)
	case "export":
		return s.cmdExport(args)
	case "estimate":
		return s.cmdEstimate(args)
	case "send":
		return s.cmdSend(args)
	default:
		return fmt.Errorf("unknown command %q, type 'help'", cmd)
	}
}

func (s *shell) printHelp() {
	fmt.Println(helpStyle.Render(`Commands:
  status                         Wallet and session state
  unlock                         Unlock the wallet (master credential)
  lock                           Lock everything immediately
  accounts                       List accounts and session state
  use <account>                  Switch the active account
  unlock-account <account> [-r]  Open an account session (-r remembers
                                 the password for re-signing)
  lock-account <account>         Close an account session
  chain <name>                   Switch network
  balance [account]              Native balance on the current network
  receive [account]              Show a receive address and QR code
  export <account>               Export a private key (credential-gated)
  estimate <to> <amount> <gwei>  Gas estimate for a transfer
  send <to> <amount> <gwei>      Sign and broadcast a transfer
  quit                           Lock and exit

Accounts are addressed by hex address or account id.`))
}

func (s *shell) cmdStatus() error {
	if !s.svc.Initialized() {
		fmt.Println("Wallet not initialized. Run 'walletcore wallet init'.")
		return nil
	}
	if !s.svc.IsWalletUnlocked() {
		fmt.Println("Wallet: locked")
		return nil
	}
	fmt.Println("Wallet: " + okStyle.Render("unlocked"))
	for _, acct := range s.svc.Accounts() {
		if !acct.Unlocked {
			continue
		}
		addr := common.HexToAddress(acct.Address)
		if remaining, ok := s.svc.TimeUntilExpiry(addr); ok {
			fmt.Printf("  %s session expires in %s\n", acct.Address, remaining.Round(time.Second))
		}
	}
	return nil
}

func (s *shell) cmdUnlock() error {
	if s.svc.IsWalletUnlocked() {
		fmt.Println("Wallet already unlocked.")
		return nil
	}
	if err := unlockWallet(s.svc); err != nil {
		return err
	}
	fmt.Println(okStyle.Render("Wallet unlocked. Account sessions remain locked until opened."))
	return nil
}

func (s *shell) cmdAccounts() error {
	accounts := s.svc.Accounts()
	if len(accounts) == 0 {
		fmt.Println("No accounts. Run 'walletcore wallet import'.")
		return nil
	}
	for _, acct := range accounts {
		marker := "  "
		if acct.Active {
			marker = "* "
		}
		state := "locked"
		if acct.Unlocked {
			state = okStyle.Render("unlocked")
		}
		name := acct.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("%s%s  %-12s %s\n", marker, acct.Address, name, state)
	}
	return nil
}

func (s *shell) cmdUse(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: use <account>")
	}
	addr, err := s.svc.Lookup(args[0])
	if err != nil {
		return err
	}
	if err := s.svc.SwitchAccount(addr); err != nil {
		return err
	}
	fmt.Printf("Active account: %s\n", addr.Hex())
	return nil
}

func (s *shell) cmdUnlockAccount(args []string) error {
	remember := false
	var target string
	for _, a := range args {
		if a == "-r" || a == "--remember" {
			remember = true
		} else {
			target = a
		}
	}
	if target == "" {
		return errors.New("usage: unlock-account <account> [-r]")
	}
	addr, err := s.svc.Lookup(target)
	if err != nil {
		return err
	}

	password, err := readPassword("Account password: ")
	if err != nil {
		return err
	}
	defer wipe(password)

	if err := s.svc.UnlockAccount(addr, password, remember); err != nil {
		return err
	}
	if remaining, ok := s.svc.TimeUntilExpiry(addr); ok {
		fmt.Printf("%s session expires in %s\n", okStyle.Render("Unlocked."), remaining.Round(time.Second))
	}
	return nil
}

func (s *shell) cmdLockAccount(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: lock-account <account>")
	}
	addr, err := s.svc.Lookup(args[0])
	if err != nil {
		return err
	}
	s.svc.LockAccount(addr)
	fmt.Println("Account session closed.")
	return nil
}

func (s *shell) cmdChain(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: chain <name>, currently %s", s.network)
	}
	if _, err := s.svc.ChainID(args[0]); err != nil {
		return err
	}
	s.network = args[0]
	fmt.Printf("Network: %s\n", s.network)
	return nil
}

func (s *shell) resolveOrActive(args []string) (common.Address, error) {
	if len(args) >= 1 {
		return s.svc.Lookup(args[0])
	}
	addr, ok := s.svc.ActiveAddress()
	if !ok {
		return common.Address{}, errors.New("no accounts imported")
	}
	return addr, nil
}

func (s *shell) cmdBalance(args []string) error {
	addr, err := s.resolveOrActive(args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	balance, currency, err := s.svc.NativeBalance(ctx, s.network, addr)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s %s\n", addr.Hex(), tx.DisplayAmount(balance, 18, viper.GetInt("display.decimals")), currency)
	return nil
}

func (s *shell) cmdReceive(args []string) error {
	addr, err := s.resolveOrActive(args)
	if err != nil {
		return err
	}
	fmt.Printf("Receive address: %s\n\n", addr.Hex())
	qr, err := addressQR(addr.Hex())
	if err != nil {
		return err
	}
	fmt.Println(qr)
	return nil
}

// cmdExport prints a private key. A session unlocked with -r covers the
// credential check; otherwise the password is prompted.
func (s *shell) cmdExport(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: export <account>")
	}
	addr, err := s.svc.Lookup(args[0])
	if err != nil {
		return err
	}

	keyHex, err := s.svc.ExportPrivateKey(addr, nil)
	if err != nil {
		password, perr := readPassword("Account password: ")
		if perr != nil {
			return perr
		}
		keyHex, err = s.svc.ExportPrivateKey(addr, password)
		wipe(password)
		if err != nil {
			return err
		}
	}

	fmt.Println(errorStyle.Render("WARNING: anyone with this key controls the account."))
	fmt.Println(keyHex)
	return nil
}

// transferParams parses the shell's positional transfer form. Shell
// transfers are EIP-1559; the one-shot send command covers legacy fees.
func (s *shell) transferParams(args []string) (tx.Params, error) {
	if len(args) != 3 {
		return tx.Params{}, errors.New("usage: <recipient> <amount> <max-fee-gwei>")
	}
	from, ok := s.svc.ActiveAddress()
	if !ok {
		return tx.Params{}, errors.New("no accounts imported")
	}
	return tx.Params{
		From:       from,
		To:         args[0],
		Amount:     args[1],
		FeeMode:    tx.FeeModeEip1559,
		MaxFeeGwei: args[2],
	}, nil
}

func (s *shell) cmdEstimate(args []string) error {
	p, err := s.transferParams(args)
	if err != nil {
		return err
	}
	req, err := s.svc.BuildTransaction(s.network, p)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	est, err := s.svc.EstimateGas(ctx, s.network, req)
	if err != nil {
		return err
	}
	if est.Fallback {
		fmt.Printf("Gas limit: %d (fallback, node unavailable)\n", est.Gas)
	} else {
		fmt.Printf("Gas limit: %d (node reported %d)\n", est.Gas, est.Raw)
	}
	return nil
}

func (s *shell) cmdSend(args []string) error {
	p, err := s.transferParams(args)
	if err != nil {
		return err
	}
	req, err := s.svc.BuildTransaction(s.network, p)
	if err != nil {
		return err
	}

	fmt.Printf("Send %s to %s on %s? [y/N]: ", args[1], args[0], s.network)
	answer, err := s.in.ReadString('\n')
	if err != nil {
		return err
	}
	answer = strings.TrimSpace(answer)
	if answer != "y" && answer != "Y" && answer != "yes" {
		fmt.Println("Aborted.")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	signed, err := s.svc.SignRequest(ctx, s.network, req)
	if errors.Is(err, core.ErrAccountSessionLocked) || errors.Is(err, session.ErrWalletLocked) {
		return fmt.Errorf("%w: unlock first ('unlock', then 'unlock-account')", err)
	}
	if err != nil {
		return err
	}

	hash, err := s.svc.Broadcast(ctx, s.network, signed)
	if err != nil {
		return fmt.Errorf("broadcast failed: %w", err)
	}
	fmt.Println(okStyle.Render("Transaction sent: " + hash.Hex()))
	return nil
}
