package commands

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xraph/replydesk/vault"
)

func newKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a credential vault master key",
		Long: `Print a 64-character hex master key for replydesk.vault.keys.

With --passphrase the key is derived with argon2id from the passphrase
and a fresh salt; keep the salt to derive the same key again.

Examples:
  replydesk keygen
  replydesk keygen --passphrase "correct horse battery staple"
  replydesk keygen --passphrase "..." --salt 9f86d081884c7d65`,
		RunE: runKeygen,
	}

	cmd.Flags().String("passphrase", "", "derive the key from this passphrase")
	cmd.Flags().String("salt", "", "hex salt for --passphrase (random when empty)")
	return cmd
}

func runKeygen(cmd *cobra.Command, _ []string) error {
	passphrase, _ := cmd.Flags().GetString("passphrase")
	saltHex, _ := cmd.Flags().GetString("salt")
	out := cmd.OutOrStdout()

	if passphrase == "" {
		if saltHex != "" {
			return fmt.Errorf("--salt requires --passphrase")
		}
		key := make([]byte, vault.KeySize)
		if _, err := rand.Read(key); err != nil {
			return fmt.Errorf("generating key: %w", err)
		}
		fmt.Fprintln(out, hex.EncodeToString(key))
		return nil
	}

	var salt []byte
	var err error
	if saltHex != "" {
		salt, err = hex.DecodeString(saltHex)
		if err != nil {
			return fmt.Errorf("invalid --salt: %w", err)
		}
	} else {
		salt, err = vault.NewSalt()
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "key:  %s\n", vault.DeriveKey(passphrase, salt))
	fmt.Fprintf(out, "salt: %s\n", hex.EncodeToString(salt))
	return nil
}
