package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yolodolo42/walletcore/internal/core"
	"golang.org/x/term"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage accounts",
	Long:  `Import, list, and manage signing accounts securely.`,
}

var walletInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Set the master credential for a new wallet",
	RunE:  runWalletInit,
}

var walletCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new account with a freshly generated key",
	RunE:  runWalletCreate,
}

var walletImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import an account from a private key",
	RunE:  runWalletImport,
}

var walletListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all accounts",
	RunE:  runWalletList,
}

var walletRemoveCmd = &cobra.Command{
	Use:   "remove <address>",
	Short: "Remove an account and its stored key",
	Args:  cobra.ExactArgs(1),
	RunE:  runWalletRemove,
}

var walletExportCmd = &cobra.Command{
	Use:   "export <address>",
	Short: "Export an account's private key",
	RunE:  runWalletExport,
	Args:  cobra.ExactArgs(1),
}

var walletReceiveCmd = &cobra.Command{
	Use:   "receive [address]",
	Short: "Show an address and its QR code for receiving funds",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWalletReceive,
}

func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(walletInitCmd)
	walletCmd.AddCommand(walletCreateCmd)
	walletCmd.AddCommand(walletImportCmd)
	walletCmd.AddCommand(walletListCmd)
	walletCmd.AddCommand(walletRemoveCmd)
	walletCmd.AddCommand(walletExportCmd)
	walletCmd.AddCommand(walletReceiveCmd)

	walletImportCmd.Flags().String("key", "", "Private key to import (hex, with or without 0x prefix)")
	walletImportCmd.Flags().String("name", "", "Display name for the account")
	walletCreateCmd.Flags().String("name", "", "Display name for the account")
}

// promptNewPassword reads and confirms an account password.
func promptNewPassword() ([]byte, error) {
	password, err := readPassword("Enter password to encrypt this account: ")
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	if len(password) < 8 {
		wipe(password)
		return nil, errors.New("password must be at least 8 characters")
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		wipe(password)
		return nil, fmt.Errorf("failed to read password confirmation: %w", err)
	}
	match := string(password) == string(confirm)
	wipe(confirm)
	if !match {
		wipe(password)
		return nil, errors.New("passwords do not match")
	}
	return password, nil
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println() // newline after password input
	if err != nil {
		return nil, err
	}
	return password, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// unlockWallet prompts for the master credential and opens the wallet
// session. The credential is wiped before returning.
func unlockWallet(svc *core.Service) error {
	if !svc.Initialized() {
		return errors.New("wallet not initialized: run 'walletcore wallet init' first")
	}
	credential, err := readPassword("Master credential: ")
	if err != nil {
		return fmt.Errorf("failed to read credential: %w", err)
	}
	defer wipe(credential)
	return svc.UnlockWallet(credential)
}

func runWalletInit(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	if svc.Initialized() {
		return errors.New("wallet already initialized")
	}

	credential, err := readPassword("Choose a master credential: ")
	if err != nil {
		return fmt.Errorf("failed to read credential: %w", err)
	}
	defer wipe(credential)

	if len(credential) < 8 {
		return errors.New("master credential must be at least 8 characters")
	}

	confirm, err := readPassword("Confirm master credential: ")
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	defer wipe(confirm)

	if string(credential) != string(confirm) {
		return errors.New("credentials do not match")
	}

	if err := svc.Initialize(credential); err != nil {
		return err
	}

	fmt.Println("\nWallet initialized.")
	fmt.Println("Use 'walletcore wallet import' to add your first account.")
	return nil
}

func runWalletImport(cmd *cobra.Command, args []string) error {
	privateKey, _ := cmd.Flags().GetString("key")
	name, _ := cmd.Flags().GetString("name")

	if privateKey == "" {
		keyBytes, err := readPassword("Enter private key (hex): ")
		if err != nil {
			return fmt.Errorf("failed to read private key: %w", err)
		}
		privateKey = strings.TrimSpace(string(keyBytes))
		wipe(keyBytes)
	}
	if privateKey == "" {
		return errors.New("private key is required")
	}

	svc, err := newService()
	if err != nil {
		return err
	}
	if err := unlockWallet(svc); err != nil {
		return err
	}
	defer svc.LockWallet()

	password, err := promptNewPassword()
	if err != nil {
		return err
	}
	defer wipe(password)

	addr, err := svc.ImportAccount(privateKey, name, password)
	if err != nil {
		return fmt.Errorf("failed to import key: %w", err)
	}

	fmt.Println("\nAccount imported successfully!")
	fmt.Printf("Address: %s\n", addr.Hex())
	return nil
}

func runWalletCreate(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")

	svc, err := newService()
	if err != nil {
		return err
	}
	if err := unlockWallet(svc); err != nil {
		return err
	}
	defer svc.LockWallet()

	password, err := promptNewPassword()
	if err != nil {
		return err
	}
	defer wipe(password)

	addr, err := svc.CreateAccount(name, password)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	fmt.Println("\nAccount created successfully!")
	fmt.Printf("Address: %s\n", addr.Hex())
	fmt.Println("\nIMPORTANT: export and back up this key before funding the account!")
	return nil
}

func runWalletList(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}

	accounts := svc.Accounts()
	if len(accounts) == 0 {
		fmt.Println("No accounts found.")
		fmt.Println("Use 'walletcore wallet import' to import an account.")
		return nil
	}

	fmt.Printf("Found %d account(s):\n\n", len(accounts))
	for i, acct := range accounts {
		marker := "  "
		if acct.Active {
			marker = "* "
		}
		name := acct.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("%s%d. %s  %s\n", marker, i+1, acct.Address, name)
	}
	return nil
}

func runWalletRemove(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	addr, err := svc.Lookup(args[0])
	if err != nil {
		return err
	}
	if err := unlockWallet(svc); err != nil {
		return err
	}
	defer svc.LockWallet()

	if err := svc.RemoveAccount(addr); err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", addr.Hex())
	return nil
}

func runWalletExport(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	addr, err := svc.Lookup(args[0])
	if err != nil {
		return err
	}
	if err := unlockWallet(svc); err != nil {
		return err
	}
	defer svc.LockWallet()

	password, err := readPassword("Account password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	defer wipe(password)

	keyHex, err := svc.ExportPrivateKey(addr, password)
	if err != nil {
		return err
	}

	fmt.Println("\nWARNING: anyone with this key controls the account.")
	fmt.Println(keyHex)
	return nil
}

func runWalletReceive(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}

	var addrHex string
	if len(args) == 1 {
		addr, err := svc.Lookup(args[0])
		if err != nil {
			return err
		}
		addrHex = addr.Hex()
	} else {
		addr, ok := svc.ActiveAddress()
		if !ok {
			return errors.New("no accounts imported")
		}
		addrHex = addr.Hex()
	}

	fmt.Printf("Receive address: %s\n\n", addrHex)
	qr, err := addressQR(addrHex)
	if err != nil {
		return fmt.Errorf("failed to render QR code: %w", err)
	}
	fmt.Println(qr)
	return nil
}
