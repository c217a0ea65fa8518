package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rawwerks/cass-go/internal/envelope"
	"github.com/rawwerks/cass-go/internal/export"
)

// NewRotateKeyCmd constructs the `cass rotate-key` command: re-encrypt an
// archive's payload under a brand new DEK, export id, and base nonce, and
// install a fresh credential set. The old password and
// recovery secret stop working the instant this completes.
func NewRotateKeyCmd() *cobra.Command {
	var currentPassword string
	var currentRecoverySecret string
	var newPassword string
	var newRecoverySecret string
	var keepRecovery bool
	var privateDir string

	cmd := &cobra.Command{
		Use:   "rotate-key <site-dir>",
		Short: "Rotate an archive's encryption key and credentials",
		Args:  cobra.ExactArgs(1),
		Long: `Unlock site-dir with the current credential, generate a new DEK,
export id, and base nonce, re-encrypt the full payload, and install a
fresh key slot list. Pass --keep-recovery with
--new-recovery-secret to also provision a new recovery slot; omitting it
drops recovery-slot access entirely. The integrity manifest is
regenerated so `+"`cass verify`"+` passes immediately afterward.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			siteDir := args[0]
			if currentPassword == "" && currentRecoverySecret == "" {
				return fmt.Errorf("rotate-key: one of --current-password or --current-recovery-secret is required")
			}
			if newPassword == "" {
				return fmt.Errorf("rotate-key: --new-password is required")
			}

			current := envelope.Credential{Password: currentPassword}
			if currentRecoverySecret != "" {
				current.RecoverySecret = []byte(currentRecoverySecret)
			}

			next := envelope.RotatedCredentials{
				Password:     newPassword,
				KeepRecovery: keepRecovery,
			}
			if keepRecovery {
				if newRecoverySecret == "" {
					return fmt.Errorf("rotate-key: --new-recovery-secret is required with --keep-recovery")
				}
				next.RecoverySecret = []byte(newRecoverySecret)
			}

			if privateDir == "" {
				privateDir = filepath.Join(filepath.Dir(siteDir), "private")
			}

			if err := export.RotateCredentials(siteDir, privateDir, current, next); err != nil {
				return fmt.Errorf("rotate-key: %w", err)
			}

			fmt.Println("key rotation complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&currentPassword, "current-password", "", "Current archive password")
	cmd.Flags().StringVar(&currentRecoverySecret, "current-recovery-secret", "", "Current archive recovery secret")
	cmd.Flags().StringVar(&newPassword, "new-password", "", "New archive password (required)")
	cmd.Flags().StringVar(&newRecoverySecret, "new-recovery-secret", "", "New archive recovery secret")
	cmd.Flags().BoolVar(&keepRecovery, "keep-recovery", false, "Provision a new recovery slot with --new-recovery-secret")
	cmd.Flags().StringVar(&privateDir, "private-dir", "", "Path to the archive's private/ directory (default: sibling of site-dir)")

	return cmd
}
