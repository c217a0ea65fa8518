package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rawwerks/cass-go/internal/envelope"
	"github.com/rawwerks/cass-go/internal/export"
)

// NewKeysCmd constructs the `cass keys` command group for inspecting an
// archive's key slots.
func NewKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Inspect an archive's key slots",
	}
	cmd.AddCommand(newKeysListCmd())
	cmd.AddCommand(newKeysAddCmd())
	cmd.AddCommand(newKeysRevokeCmd())
	return cmd
}

// credentialFromFlags builds the Credential a key-management command
// authenticates with. Exactly one of the two flags must be set.
func credentialFromFlags(password, recoverySecret string) (envelope.Credential, error) {
	if (password == "") == (recoverySecret == "") {
		return envelope.Credential{}, fmt.Errorf("exactly one of --password or --recovery-secret is required")
	}
	cred := envelope.Credential{Password: password}
	if recoverySecret != "" {
		cred.RecoverySecret = []byte(recoverySecret)
	}
	return cred, nil
}

// newKeysAddCmd constructs `cass keys add`: unlock with an existing
// credential and wrap the same DEK into a brand new slot, leaving the
// payload untouched.
func newKeysAddCmd() *cobra.Command {
	var password string
	var recoverySecret string
	var newPassword string
	var newRecoverySecret string

	cmd := &cobra.Command{
		Use:   "add <site-dir>",
		Short: "Add a key slot to an archive without re-encrypting it",
		Args:  cobra.ExactArgs(1),
		Long: `Unlock site-dir with an existing credential, recover the archive's DEK,
and wrap it into a new slot for --new-password or --new-recovery-secret.
The payload chunks are never touched; only config.json and
integrity.json change.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cred, err := credentialFromFlags(password, recoverySecret)
			if err != nil {
				return fmt.Errorf("keys add: %w", err)
			}
			if (newPassword == "") == (newRecoverySecret == "") {
				return fmt.Errorf("keys add: exactly one of --new-password or --new-recovery-secret is required")
			}
			newCred := envelope.Credential{Password: newPassword}
			newIsRecovery := newRecoverySecret != ""
			if newIsRecovery {
				newCred = envelope.Credential{RecoverySecret: []byte(newRecoverySecret)}
			}
			if err := export.AddKeySlot(args[0], cred, newCred, newIsRecovery); err != nil {
				return fmt.Errorf("keys add: %w", err)
			}
			fmt.Println("key slot added")
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Existing archive password")
	cmd.Flags().StringVar(&recoverySecret, "recovery-secret", "", "Existing archive recovery secret")
	cmd.Flags().StringVar(&newPassword, "new-password", "", "Password for the new slot")
	cmd.Flags().StringVar(&newRecoverySecret, "new-recovery-secret", "", "Recovery secret for the new slot")

	return cmd
}

// newKeysRevokeCmd constructs `cass keys revoke`: drop a slot by id. The
// last remaining slot and the slot used to authenticate cannot be revoked.
func newKeysRevokeCmd() *cobra.Command {
	var password string
	var recoverySecret string
	var slotID int

	cmd := &cobra.Command{
		Use:   "revoke <site-dir>",
		Short: "Revoke a key slot from an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cred, err := credentialFromFlags(password, recoverySecret)
			if err != nil {
				return fmt.Errorf("keys revoke: %w", err)
			}
			if slotID < 0 {
				return fmt.Errorf("keys revoke: --slot is required")
			}
			if err := export.RevokeKeySlot(args[0], cred, slotID); err != nil {
				return fmt.Errorf("keys revoke: %w", err)
			}
			fmt.Printf("key slot %d revoked\n", slotID)
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Archive password to authenticate with")
	cmd.Flags().StringVar(&recoverySecret, "recovery-secret", "", "Archive recovery secret to authenticate with")
	cmd.Flags().IntVar(&slotID, "slot", -1, "Id of the slot to revoke")

	return cmd
}

// newKeysListCmd constructs `cass keys list`: reports each key slot's id,
// type, and KDF straight from config.json, with no credential required
// — only unlocking a slot's wrapped_dek needs one.
func newKeysListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <site-dir>",
		Short: "List an archive's key slots without unlocking them",
		Args:  cobra.ExactArgs(1),
		Long: `Read site-dir's config.json and print every key slot's id, type, and
KDF. This never touches wrapped_dek, salt, or wrapping_nonce, so
it needs no password or recovery secret — a caller can show "2 slots:
password, recovery" before prompting for anything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := export.ReadConfig(args[0])
			if err != nil {
				return fmt.Errorf("keys list: %w", err)
			}

			slots := envelope.ListSlots(cfg)
			if len(slots) == 0 {
				fmt.Println("no key slots")
				return nil
			}
			fmt.Printf("%d key slot(s):\n", len(slots))
			for _, s := range slots {
				if s.KDFParams != nil {
					fmt.Printf("  slot %d: %s (%s, memory=%dKiB iterations=%d parallelism=%d)\n",
						s.ID, s.Type, s.KDF, s.KDFParams.MemoryKiB, s.KDFParams.Iterations, s.KDFParams.Parallelism)
					continue
				}
				fmt.Printf("  slot %d: %s (%s)\n", s.ID, s.Type, s.KDF)
			}
			return nil
		},
	}
	return cmd
}
