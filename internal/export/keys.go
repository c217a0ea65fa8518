package export

import (
	"path/filepath"

	"github.com/rawwerks/cass-go/internal/envelope"
)

// AddKeySlot unlocks siteDirPath's config.json with existing, wraps the
// recovered DEK into a fresh slot authenticated by newCred, and rewrites
// config.json and integrity.json. The encrypted payload is untouched.
func AddKeySlot(siteDirPath string, existing, newCred envelope.Credential, newIsRecovery bool) error {
	cfg, err := ReadConfig(siteDirPath)
	if err != nil {
		return err
	}
	newCfg, err := envelope.AddKey(cfg, existing, newCred, newIsRecovery)
	if err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(siteDirPath, "config.json"), newCfg); err != nil {
		return err
	}
	_, err = writeIntegrity(siteDirPath)
	return err
}

// RevokeKeySlot authenticates against siteDirPath's config.json with
// current, drops the slot with revokeID, and rewrites config.json and
// integrity.json. Refuses to drop the last slot or the slot current
// authenticated with; the encrypted payload is untouched.
func RevokeKeySlot(siteDirPath string, current envelope.Credential, revokeID int) error {
	cfg, err := ReadConfig(siteDirPath)
	if err != nil {
		return err
	}
	_, authSlotID, err := envelope.Unlock(cfg, current)
	if err != nil {
		return err
	}
	newCfg, err := envelope.RevokeKey(cfg, authSlotID, revokeID)
	if err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(siteDirPath, "config.json"), newCfg); err != nil {
		return err
	}
	_, err = writeIntegrity(siteDirPath)
	return err
}
