package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rawwerks/cass-go/internal/envelope"
	"github.com/rawwerks/cass-go/internal/export"
)

// NewUnlockCmd constructs the `cass unlock` command, which decrypts an
// exported archive's payload with either a password or a recovery secret
// and writes the resulting derived SQLite database to disk
// for offline inspection.
func NewUnlockCmd() *cobra.Command {
	var password string
	var recoverySecret string
	var out string

	cmd := &cobra.Command{
		Use:   "unlock <site-dir>",
		Short: "Decrypt an exported archive's payload to a local file",
		Args:  cobra.ExactArgs(1),
		Long: `Try the supplied credential against every key slot in site-dir's
config.json and, on success, write the decompressed
derived database to --out. A wrong password and a wrong recovery secret
are rejected with the same opaque error regardless of slot order — this
never reveals which slot, if any, almost matched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" && recoverySecret == "" {
				return fmt.Errorf("unlock: one of --password or --recovery-secret is required")
			}

			cred := envelope.Credential{Password: password}
			if recoverySecret != "" {
				cred.RecoverySecret = []byte(recoverySecret)
			}

			plain, err := export.Open(args[0], cred)
			if err != nil {
				return fmt.Errorf("unlock: %w", err)
			}

			if out == "" {
				out = "cass-export.db"
			}
			if err := os.WriteFile(out, plain, 0o600); err != nil {
				return fmt.Errorf("unlock: write %s: %w", out, err)
			}

			fmt.Printf("decrypted %d bytes to %s\n", len(plain), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Archive password")
	cmd.Flags().StringVar(&recoverySecret, "recovery-secret", "", "Archive recovery secret")
	cmd.Flags().StringVar(&out, "out", "", "Output path for the decrypted derived database (default: ./cass-export.db)")

	return cmd
}
