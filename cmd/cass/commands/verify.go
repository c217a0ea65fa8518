package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rawwerks/cass-go/internal/export"
)

// NewVerifyCmd constructs the `cass verify` command, the offline integrity
// check over a bundle: recompute every file's SHA-256 against
// integrity.json and report any mismatch or missing file.
func NewVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <site-dir>",
		Short: "Verify an exported archive's integrity offline",
		Args:  cobra.ExactArgs(1),
		Long: `Recompute the SHA-256 of every file under site-dir (except
integrity.json itself) and compare it against the recorded manifest
. This
never touches the encrypted payload's contents — no credential is
needed to verify.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := export.Verify(args[0])
			if err != nil {
				return fmt.Errorf("verify: %w", err)
			}

			if result.Valid {
				fmt.Println("valid")
				return nil
			}

			fmt.Println("invalid")
			for _, m := range result.Mismatch {
				fmt.Printf("  mismatch: %s\n", m)
			}
			for _, m := range result.Missing {
				fmt.Printf("  missing: %s\n", m)
			}
			return fmt.Errorf("verify: archive failed integrity check")
		},
	}

	return cmd
}
