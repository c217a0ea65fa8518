package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rawwerks/cass-go/internal/envelope"
)

// RotateCredentials re-keys an existing bundle in place:
// it unlocks siteDirPath's config.json with current, generates a fresh
// DEK/export id/base nonce via envelope.Rotate, decrypts and re-encrypts
// every payload chunk under the new key material, and rewrites
// config.json and integrity.json to match. privateDirPath's recovery.json
// is rewritten alongside it when next keeps a recovery slot, or removed
// when it doesn't.
func RotateCredentials(siteDirPath, privateDirPath string, current envelope.Credential, next envelope.RotatedCredentials) error {
	cfg, err := ReadConfig(siteDirPath)
	if err != nil {
		return err
	}

	oldDEK, _, err := envelope.Unlock(cfg, current)
	if err != nil {
		return err
	}

	newCfg, newDEK, err := envelope.Rotate(cfg, current, next)
	if err != nil {
		return err
	}

	for i, rel := range cfg.Payload.Files {
		path := filepath.Join(siteDirPath, filepath.FromSlash(rel))
		ct, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("export: read chunk %d for rotation: %w", i, err)
		}
		plain, err := envelope.DecryptChunk(oldDEK, cfg.BaseNonce, cfg.ExportID, uint32(i), ct)
		if err != nil {
			return fmt.Errorf("export: decrypt chunk %d for rotation: %w", i, err)
		}
		newCt, err := envelope.EncryptChunk(newDEK, newCfg.BaseNonce, newCfg.ExportID, uint32(i), plain)
		if err != nil {
			return fmt.Errorf("export: re-encrypt chunk %d for rotation: %w", i, err)
		}
		if err := os.WriteFile(path, newCt, 0o644); err != nil {
			return fmt.Errorf("export: write rotated chunk %d: %w", i, err)
		}
	}

	if err := writeJSON(filepath.Join(siteDirPath, "config.json"), newCfg); err != nil {
		return err
	}

	fingerprint, err := writeIntegrity(siteDirPath)
	if err != nil {
		return err
	}

	recoveryPath := filepath.Join(privateDirPath, "recovery.json")
	if next.KeepRecovery {
		if err := writeJSON(recoveryPath, PrivateRecoveryMaterial{
			ExportID:             newCfg.ExportID,
			RecoverySecret:       next.RecoverySecret,
			IntegrityFingerprint: fingerprint,
		}); err != nil {
			return err
		}
	} else if err := os.Remove(recoveryPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("export: remove stale recovery material: %w", err)
	}

	return nil
}
